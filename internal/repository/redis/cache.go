package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
)

const keyPrefix = "teamboard:profile:"

// CacheStore keeps profile snapshots in Redis. Entries expire after the
// configured retention, so no pruning job is needed for this backend.
type CacheStore struct {
	client    *goredis.Client
	retention time.Duration
}

var _ repository.CacheRepository = (*CacheStore)(nil)

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewCacheStore wraps an existing client. A non-positive retention keeps
// entries until they are overwritten.
func NewCacheStore(client *goredis.Client, retention time.Duration) *CacheStore {
	return &CacheStore{client: client, retention: retention}
}

type envelope struct {
	ExternalID string          `json:"external_id"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// GetCacheEntry loads the snapshot stored for externalID.
func (s *CacheStore) GetCacheEntry(ctx context.Context, externalID string) (*domain.CacheEntry, error) {
	raw, err := s.client.Get(ctx, keyPrefix+externalID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return decodeEntry(raw)
}

// UpsertCacheEntry overwrites the snapshot and refreshes its expiry.
func (s *CacheStore) UpsertCacheEntry(ctx context.Context, entry domain.CacheEntry) error {
	payload, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	ttl := s.retention
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, keyPrefix+entry.ExternalID, payload, ttl).Err()
}

func encodeEntry(entry domain.CacheEntry) ([]byte, error) {
	if !json.Valid(entry.Snapshot) {
		return nil, fmt.Errorf("%w: snapshot is not valid JSON", repository.ErrInvalidArgument)
	}
	return json.Marshal(envelope{
		ExternalID: entry.ExternalID,
		Data:       entry.Snapshot,
		UpdatedAt:  entry.UpdatedAt.UTC(),
	})
}

func decodeEntry(raw []byte) (*domain.CacheEntry, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode cache entry: %v", repository.ErrCorrupt, err)
	}
	return &domain.CacheEntry{
		ExternalID: env.ExternalID,
		Snapshot:   []byte(env.Data),
		UpdatedAt:  env.UpdatedAt,
	}, nil
}
