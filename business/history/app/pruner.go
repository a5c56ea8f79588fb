package app

import (
	"context"
	"time"

	"github.com/fd1az/triarb-bot/internal/logger"
)

// Pruner deletes history older than the retention window on a fixed
// interval.
type Pruner struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	logger    logger.LoggerInterface
	now       func() time.Time
}

// NewPruner creates a pruner. A zero retention disables pruning.
func NewPruner(store Store, retention, interval time.Duration, log logger.LoggerInterface) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

// Run prunes once at start and then every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) error {
	if p.retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PruneOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PruneOnce deletes records older than now - retention. Failures are
// logged; the next tick retries.
func (p *Pruner) PruneOnce(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		p.logger.Warn(ctx, "history prune failed", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		p.logger.Info(ctx, "history pruned", "cutoff", cutoff, "deleted", n)
	}
	return n
}
