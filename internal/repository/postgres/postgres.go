package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.OwnerRepository = (*Repository)(nil)
	_ repository.TeamRepository  = (*Repository)(nil)
	_ repository.CacheRepository = (*Repository)(nil)
	_ repository.CachePruner     = (*Repository)(nil)
	_ repository.StatsRepository = (*Repository)(nil)
)

// CreateOwner inserts the owner and its team in one transaction.
func (r *Repository) CreateOwner(ctx context.Context, owner *domain.Owner, team *domain.Team) error {
	if owner == nil || team == nil {
		return repository.ErrInvalidArgument
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin owner tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const ownerInsert = `INSERT INTO owners (id, handle, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, ownerInsert, owner.ID, owner.Handle, owner.PasswordHash, owner.CreatedAt); err != nil {
		return mapWriteError(err)
	}

	const teamInsert = `INSERT INTO teams (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, teamInsert, team.ID, team.Name, owner.ID, team.CreatedAt); err != nil {
		return mapWriteError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit owner tx: %w", err)
	}
	team.OwnerID = owner.ID
	return nil
}

// GetOwnerByHandle fetches an owner by handle. Matching is case-sensitive.
func (r *Repository) GetOwnerByHandle(ctx context.Context, handle string) (*domain.Owner, error) {
	const query = `SELECT id::text, handle, password_hash, created_at FROM owners WHERE handle = $1`
	return scanOwner(r.pool.QueryRow(ctx, query, handle))
}

// GetOwnerByID retrieves an owner by identifier.
func (r *Repository) GetOwnerByID(ctx context.Context, id string) (*domain.Owner, error) {
	const query = `SELECT id::text, handle, password_hash, created_at FROM owners WHERE id = $1`
	return scanOwner(r.pool.QueryRow(ctx, query, id))
}

func scanOwner(row pgx.Row) (*domain.Owner, error) {
	var o domain.Owner
	if err := row.Scan(&o.ID, &o.Handle, &o.PasswordHash, &o.CreatedAt); err != nil {
		return nil, mapReadError(err)
	}
	return &o, nil
}

// GetTeamByOwner returns the team held by the owner.
func (r *Repository) GetTeamByOwner(ctx context.Context, ownerID string) (*domain.Team, error) {
	const query = `SELECT id::text, name, owner_id::text, created_at FROM teams WHERE owner_id = $1`
	row := r.pool.QueryRow(ctx, query, ownerID)
	var team domain.Team
	if err := row.Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt); err != nil {
		return nil, mapReadError(err)
	}
	return &team, nil
}

// ListMembers returns a team's members in insertion order.
func (r *Repository) ListMembers(ctx context.Context, teamID string) ([]domain.Member, error) {
	const query = `SELECT id::text, team_id::text, display_name, external_id, added_at
		FROM members WHERE team_id = $1 ORDER BY added_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.TeamID, &m.DisplayName, &m.ExternalID, &m.AddedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// InsertMember adds a member to a team.
func (r *Repository) InsertMember(ctx context.Context, member *domain.Member) error {
	if member == nil {
		return repository.ErrInvalidArgument
	}
	const query = `INSERT INTO members (id, team_id, display_name, external_id, added_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, member.ID, member.TeamID, member.DisplayName, member.ExternalID, member.AddedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// DeleteMember removes a member by external id within the team.
func (r *Repository) DeleteMember(ctx context.Context, teamID, externalID string) (bool, error) {
	const query = `DELETE FROM members WHERE team_id = $1 AND external_id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, externalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetCacheEntry returns the stored snapshot for the external id.
func (r *Repository) GetCacheEntry(ctx context.Context, externalID string) (*domain.CacheEntry, error) {
	const query = `SELECT external_id, data, last_updated FROM profile_cache WHERE external_id = $1`
	row := r.pool.QueryRow(ctx, query, externalID)
	var entry domain.CacheEntry
	if err := row.Scan(&entry.ExternalID, &entry.Snapshot, &entry.UpdatedAt); err != nil {
		return nil, mapReadError(err)
	}
	return &entry, nil
}

// UpsertCacheEntry replaces any prior snapshot and timestamp.
func (r *Repository) UpsertCacheEntry(ctx context.Context, entry domain.CacheEntry) error {
	const query = `INSERT INTO profile_cache (external_id, data, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE SET data = EXCLUDED.data, last_updated = EXCLUDED.last_updated`
	_, err := r.pool.Exec(ctx, query, entry.ExternalID, entry.Snapshot, entry.UpdatedAt)
	return err
}

// DeleteCacheEntriesBefore prunes snapshots older than cutoff.
func (r *Repository) DeleteCacheEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM profile_cache WHERE last_updated < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountRecords reports owner, team and member totals.
func (r *Repository) CountRecords(ctx context.Context) (domain.Stats, error) {
	const query = `SELECT
		(SELECT COUNT(1) FROM owners),
		(SELECT COUNT(1) FROM teams),
		(SELECT COUNT(1) FROM members)`
	var stats domain.Stats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.Owners, &stats.Teams, &stats.Members); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func mapReadError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeInvalidText {
		// malformed uuid lookups cannot match any row
		return repository.ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return repository.ErrAlreadyExists
		case codeForeignKeyViolation:
			return repository.ErrNotFound
		case codeInvalidText:
			return repository.ErrInvalidArgument
		}
	}
	return err
}
