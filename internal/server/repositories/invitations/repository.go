// Package invitations persists e-mail invitations, keyed by token hash.
package invitations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/server/models"
)

type Repository interface {
	// Create returns common.ErrConflict on a token hash collision.
	Create(ctx context.Context, inv *models.Invitation) error
	GetByTokenHash(ctx context.Context, tokenHash []byte) (*models.Invitation, error)

	// Accept moves a pending, unexpired invitation to accepted. It returns
	// common.ErrConflict when the guard rejected the update.
	Accept(ctx context.Context, id, userID string, at time.Time) error

	// MarkExpired persists the lazy pending→expired transition. It is a no-op
	// for rows that are not pending or not yet expired.
	MarkExpired(ctx context.Context, id string, at time.Time) error
}
