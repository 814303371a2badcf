package freshness

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
)

const pruneTimeout = 30 * time.Second

// Pruner periodically deletes snapshots older than the retention window.
type Pruner struct {
	store     repository.CachePruner
	retention time.Duration
	every     time.Duration
	logger    *slog.Logger
	now       func() time.Time
	scheduler gocron.Scheduler
}

// NewPruner constructs a Pruner. It does nothing until Start is called.
func NewPruner(store repository.CachePruner, retention, every time.Duration, logger *slog.Logger) (*Pruner, error) {
	if store == nil {
		return nil, errors.New("cache pruner requires a store")
	}
	if retention <= 0 || every <= 0 {
		return nil, errors.New("cache pruner requires positive retention and interval")
	}
	return &Pruner{store: store, retention: retention, every: every, logger: logger, now: time.Now}, nil
}

// Start schedules the prune job, running it once immediately.
func (p *Pruner) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(p.every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
			defer cancel()
			if _, err := p.Prune(ctx); err != nil {
				p.logger.Error("cache prune failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	p.scheduler = sched
	p.logger.Info("cache pruner started", "retention", p.retention.String(), "every", p.every.String())
	return nil
}

// Prune deletes entries last refreshed before now minus retention.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	removed, err := p.store.DeleteCacheEntriesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.logger.Info("cache entries pruned", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Shutdown stops the scheduler if it was started.
func (p *Pruner) Shutdown() error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.Shutdown()
}
