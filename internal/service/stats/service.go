package stats

import (
	"context"

	"log/slog"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
)

// Service reports aggregate record counts.
type Service struct {
	repo   repository.StatsRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(repo repository.StatsRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger}
}

// Summary returns owner, team and member totals.
func (s Service) Summary(ctx context.Context) (domain.Stats, error) {
	stats, err := s.repo.CountRecords(ctx)
	if err != nil {
		s.logger.Error("count records", "error", err)
		return domain.Stats{}, err
	}
	return stats, nil
}
