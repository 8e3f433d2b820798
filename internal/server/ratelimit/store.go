package ratelimit

import (
	"context"

	"github.com/dmitrijs2005/secureshare/internal/dbx"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secureshare/internal/timex"
)

// StoreLimiter derives the window from the challenge rows themselves. The
// per-phone lock and the insert share one transaction.
type StoreLimiter struct {
	repos repomanager.RepositoryManager
	cfg   Config
	clock timex.Clock
}

func NewStoreLimiter(repos repomanager.RepositoryManager, cfg Config, clock timex.Clock) *StoreLimiter {
	return &StoreLimiter{repos: repos, cfg: cfg, clock: clock}
}

func (l *StoreLimiter) Name() string { return "store" }

func (l *StoreLimiter) Reserve(ctx context.Context, phone string, create CreateFunc) (Decision, error) {
	var d Decision
	err := l.repos.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := l.repos.Challenges(tx)
		if err := repo.LockPhone(ctx, phone); err != nil {
			return err
		}

		now := l.clock.Now()
		stats, err := repo.WindowStats(ctx, phone, now.Add(-l.cfg.Window))
		if err != nil {
			return err
		}
		if stats.Count >= l.cfg.Cap {
			d = Decision{RemainingMinutes: RemainingMinutes(stats.Oldest, l.cfg.Window, now)}
			return nil
		}

		if err := create(ctx, tx); err != nil {
			return err
		}
		d = Decision{Allowed: true}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}
