package freshness

import (
	"context"
	"time"

	"log/slog"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
)

// Upstream fetches a fresh snapshot.
type Upstream interface {
	Fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error)
}

// Fetcher serves snapshots from the cache while they are younger than maxAge
// and refreshes it after every successful upstream fetch. Cache failures are
// logged and never fail a fetch.
type Fetcher struct {
	cache    Service
	upstream Upstream
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewFetcher wraps upstream with cache.
func NewFetcher(cache Service, upstream Upstream, maxAge time.Duration, logger *slog.Logger) Fetcher {
	return Fetcher{cache: cache, upstream: upstream, maxAge: maxAge, logger: logger}
}

// Fetch implements the same contract as the upstream fetcher.
func (f Fetcher) Fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error) {
	snap, ok, err := f.cache.Get(ctx, externalID, f.maxAge)
	switch {
	case err != nil:
		f.logger.Warn("cache lookup failed", "external_id", externalID, "error", err)
	case ok:
		return snap, nil
	}

	snap, err = f.upstream.Fetch(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Put(ctx, externalID, *snap); err != nil {
		f.logger.Warn("cache write failed", "external_id", externalID, "error", err)
	}
	return snap, nil
}
