// Package ratelimit caps passcode sends per phone over a sliding window.
// Creating the challenge row is the reservation: Reserve runs the caller's
// create func only when the window has room, atomically with the check.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/dbx"
)

type Config struct {
	Window time.Duration
	Cap    int
}

// Decision is the outcome of one reservation attempt.
type Decision struct {
	Allowed bool
	// RemainingMinutes is set when Allowed is false.
	RemainingMinutes int
}

// CreateFunc persists the challenge. tx is the transactional handle when the
// backend provides one, otherwise the store's plain handle.
type CreateFunc func(ctx context.Context, tx dbx.DBTX) error

type Limiter interface {
	Reserve(ctx context.Context, phone string, create CreateFunc) (Decision, error)
	Name() string
}

// RemainingMinutes is the whole-minute wait until the oldest counted send
// leaves the window, rounded up and never below 1.
func RemainingMinutes(oldest time.Time, window time.Duration, now time.Time) int {
	left := oldest.Add(window).Sub(now)
	m := int(math.Ceil(left.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}
