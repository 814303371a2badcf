package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
)

// Lookup outcomes recorded on the lookups counter.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
	resultError = "error"
)

// Service stores and serves profile snapshots younger than a caller-supplied age.
type Service struct {
	repo    repository.CacheRepository
	logger  *slog.Logger
	now     func() time.Time
	lookups *prometheus.CounterVec
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for freshness checks and writes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics counts lookups by outcome on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) {
		if reg == nil {
			return
		}
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamboard",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Snapshot cache lookups by result",
		}, []string{"result"})
		if err := reg.Register(counter); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					counter = existing
				}
			}
		}
		s.lookups = counter
	}
}

// New constructs a Service over repo.
func New(repo repository.CacheRepository, logger *slog.Logger, opts ...Option) Service {
	svc := Service{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(&svc)
	}
	return svc
}

// Get returns the stored snapshot when one exists and was written no more
// than maxAge ago. Unreadable entries count as absent.
func (s Service) Get(ctx context.Context, externalID string, maxAge time.Duration) (*domain.ProfileSnapshot, bool, error) {
	entry, err := s.repo.GetCacheEntry(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.observe(resultMiss)
			return nil, false, nil
		}
		if errors.Is(err, repository.ErrCorrupt) {
			s.logger.Warn("discarding unreadable cache entry", "external_id", externalID, "error", err)
			s.observe(resultMiss)
			return nil, false, nil
		}
		s.observe(resultError)
		return nil, false, err
	}
	if s.now().Sub(entry.UpdatedAt) > maxAge {
		s.observe(resultStale)
		return nil, false, nil
	}
	var snap domain.ProfileSnapshot
	if err := json.Unmarshal(entry.Snapshot, &snap); err != nil {
		s.logger.Warn("discarding unreadable cache entry", "external_id", externalID, "error", err)
		s.observe(resultMiss)
		return nil, false, nil
	}
	s.observe(resultHit)
	return &snap, true, nil
}

// Put replaces any stored snapshot for externalID and stamps it with now.
func (s Service) Put(ctx context.Context, externalID string, snap domain.ProfileSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.repo.UpsertCacheEntry(ctx, domain.CacheEntry{
		ExternalID: externalID,
		Snapshot:   payload,
		UpdatedAt:  s.now().UTC(),
	})
}

func (s Service) observe(result string) {
	if s.lookups != nil {
		s.lookups.WithLabelValues(result).Inc()
	}
}
