// Package challenges persists OTP challenges. Every passcode send is a new
// row; rows are never deleted.
package challenges

import (
	"context"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.OtpChallenge) error

	// Latest returns the most recent challenge for (fileID, phone).
	Latest(ctx context.Context, fileID, phone string) (*models.OtpChallenge, error)

	// RegisterFailedAttempt increments attempts only while the challenge is
	// unverified and below its cap. It returns common.ErrConflict when the
	// guard rejected the update.
	RegisterFailedAttempt(ctx context.Context, id string) (attempts int, err error)

	// MarkVerified sets verified_at under the same guard and returns
	// common.ErrConflict when it did not apply.
	MarkVerified(ctx context.Context, id string, at time.Time) error

	// LockPhone serializes rate-limit reservations for phone until the
	// surrounding transaction ends.
	LockPhone(ctx context.Context, phone string) error

	// WindowStats counts sends to phone created strictly after since.
	WindowStats(ctx context.Context, phone string, since time.Time) (models.WindowStats, error)
}
