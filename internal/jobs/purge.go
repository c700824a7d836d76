package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/storefront/internal/metrics"
)

type RevocationStore interface {
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}

const purgeTimeout = 30 * time.Second

// RevocationPurger removes ledger rows whose tokens have expired on their
// own. Keeping them would not change any verification outcome.
type RevocationPurger struct {
	Store   RevocationStore
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func (p *RevocationPurger) Run(ctx context.Context) (int64, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := p.Store.PurgeRevoked(ctx, now().UTC())
	if err != nil {
		p.Logger.Error("revocation_purge_failed", "error", err)
		return 0, err
	}
	p.Metrics.ObservePurged(n)
	p.Logger.Info("revocation_purge_done", "removed", n)
	return n, nil
}

// Schedule registers the purge on c. An empty schedule disables it.
func (p *RevocationPurger) Schedule(c *cron.Cron, schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := c.AddFunc(schedule, func() {
		_, _ = p.Run(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule revocation purge %q: %w", schedule, err)
	}
	return nil
}
