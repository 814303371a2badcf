package repository

import (
	"context"
	"time"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
)

// OwnerRepository persists owners and their credentials.
type OwnerRepository interface {
	// CreateOwner stores the owner and its team atomically. A taken handle
	// yields ErrAlreadyExists and leaves nothing behind.
	CreateOwner(ctx context.Context, owner *domain.Owner, team *domain.Team) error
	GetOwnerByHandle(ctx context.Context, handle string) (*domain.Owner, error)
	GetOwnerByID(ctx context.Context, id string) (*domain.Owner, error)
}

// TeamRepository manages teams and their rosters.
type TeamRepository interface {
	GetTeamByOwner(ctx context.Context, ownerID string) (*domain.Team, error)
	// ListMembers returns members ordered by add time ascending.
	ListMembers(ctx context.Context, teamID string) ([]domain.Member, error)
	// InsertMember returns ErrAlreadyExists when (team, external id) is taken.
	InsertMember(ctx context.Context, member *domain.Member) error
	// DeleteMember reports whether a row was removed.
	DeleteMember(ctx context.Context, teamID, externalID string) (bool, error)
}

// CacheRepository stores serialized profile snapshots.
type CacheRepository interface {
	GetCacheEntry(ctx context.Context, externalID string) (*domain.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry domain.CacheEntry) error
}

// CachePruner removes snapshots last refreshed before the cutoff.
type CachePruner interface {
	DeleteCacheEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatsRepository reports record counts.
type StatsRepository interface {
	CountRecords(ctx context.Context) (domain.Stats, error)
}
