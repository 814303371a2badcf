package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
)

var (
	// ErrAlreadyExists is returned when the external id is already on the roster.
	ErrAlreadyExists = repository.ErrAlreadyExists
	// ErrOwnerNotFound signals an owner without a team.
	ErrOwnerNotFound = errors.New("owner has no team")
	// ErrInvalidMember is returned for blank display names or external ids.
	ErrInvalidMember = errors.New("display name and external id are required")
)

// ProfileFetcher confirms that an external id resolves to a real profile.
type ProfileFetcher interface {
	Fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error)
}

// Service manages the per-owner member roster.
type Service struct {
	repo    repository.TeamRepository
	fetcher ProfileFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a Service.
func New(repo repository.TeamRepository, fetcher ProfileFetcher, logger *slog.Logger) Service {
	return Service{repo: repo, fetcher: fetcher, logger: logger, now: time.Now}
}

// Team returns the owner's team, mapping a missing team to ErrOwnerNotFound.
func (s Service) Team(ctx context.Context, ownerID string) (*domain.Team, error) {
	team, err := s.repo.GetTeamByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return team, nil
}

// List returns the owner's members oldest first. An owner without a team has
// an empty roster.
func (s Service) List(ctx context.Context, ownerID string) ([]domain.Member, error) {
	team, err := s.Team(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return []domain.Member{}, nil
		}
		return nil, err
	}
	return s.repo.ListMembers(ctx, team.ID)
}

// Add verifies the external id upstream and then stores the member.
func (s Service) Add(ctx context.Context, ownerID, displayName, externalID string) (*domain.Member, error) {
	displayName = strings.TrimSpace(displayName)
	externalID = strings.TrimSpace(externalID)
	if displayName == "" || externalID == "" {
		return nil, ErrInvalidMember
	}
	team, err := s.Team(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			s.logger.Error("owner has no team", "owner_id", ownerID)
		}
		return nil, err
	}
	if _, err := s.fetcher.Fetch(ctx, externalID); err != nil {
		return nil, fmt.Errorf("verify %q: %w", externalID, err)
	}
	member := &domain.Member{
		ID:          uuid.NewString(),
		TeamID:      team.ID,
		DisplayName: displayName,
		ExternalID:  externalID,
		AddedAt:     s.now().UTC(),
	}
	if err := s.repo.InsertMember(ctx, member); err != nil {
		return nil, err
	}
	s.logger.Info("member added", "team_id", team.ID, "external_id", externalID)
	return member, nil
}

// Remove deletes the member with externalID and reports whether one existed.
func (s Service) Remove(ctx context.Context, ownerID, externalID string) (bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return false, nil
	}
	team, err := s.Team(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return false, nil
		}
		return false, err
	}
	removed, err := s.repo.DeleteMember(ctx, team.ID, externalID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("member removed", "team_id", team.ID, "external_id", externalID)
	}
	return removed, nil
}
