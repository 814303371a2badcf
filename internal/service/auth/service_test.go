package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/config"
)

type memoryStore struct {
	mu       sync.Mutex
	byHandle map[string]domain.Owner
	teams    map[string]domain.Team
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byHandle: map[string]domain.Owner{}, teams: map[string]domain.Team{}}
}

func (m *memoryStore) CreateOwner(ctx context.Context, owner *domain.Owner, team *domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHandle[owner.Handle]; ok {
		return repository.ErrAlreadyExists
	}
	m.byHandle[owner.Handle] = *owner
	m.teams[owner.ID] = *team
	return nil
}

func (m *memoryStore) GetOwnerByHandle(ctx context.Context, handle string) (*domain.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.byHandle[handle]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &owner, nil
}

func (m *memoryStore) GetOwnerByID(ctx context.Context, id string) (*domain.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, owner := range m.byHandle {
		if owner.ID == id {
			o := owner
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetTeamByOwner(ctx context.Context, ownerID string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[ownerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &team, nil
}

func (m *memoryStore) ListMembers(ctx context.Context, teamID string) ([]domain.Member, error) {
	return nil, nil
}

func (m *memoryStore) InsertMember(ctx context.Context, member *domain.Member) error { return nil }

func (m *memoryStore) DeleteMember(ctx context.Context, teamID, externalID string) (bool, error) {
	return false, nil
}

func newTestService(store *memoryStore) Service {
	cfg := config.DefaultAPIConfig()
	cfg.BcryptCost = 4
	cfg.JWTSecret = "test-secret"
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, store, log, cfg)
}

func TestRegisterCreatesOwnerAndTeam(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	owner, team, err := svc.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if team.OwnerID != owner.ID {
		t.Fatalf("team owner %q does not match owner %q", team.OwnerID, owner.ID)
	}
	if team.Name != "alice's Team" {
		t.Fatalf("unexpected team name %q", team.Name)
	}
	if string(owner.PasswordHash) == "s3cret" {
		t.Fatal("secret stored in plain text")
	}
}

func TestRegisterDuplicateHandleKeepsFirstOwner(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, firstTeam, err := svc.Register(ctx, "alice", "one")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "alice", "two"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	ok, err := svc.Authenticate(ctx, "alice", "one")
	if err != nil || !ok {
		t.Fatalf("original credential must still verify, ok=%v err=%v", ok, err)
	}
	team, err := store.GetTeamByOwner(ctx, first.ID)
	if err != nil || team.ID != firstTeam.ID {
		t.Fatalf("original team changed: %v %v", team, err)
	}
}

func TestRegisterHandleIsCaseSensitive(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "Alice", "pw"); err != nil {
		t.Fatalf("differently cased handle must register, got %v", err)
	}
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	svc := newTestService(newMemoryStore())
	for _, tc := range []struct{ handle, secret string }{{"", "pw"}, {"   ", "pw"}, {"bob", ""}} {
		if _, _, err := svc.Register(context.Background(), tc.handle, tc.secret); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("register(%q, %q): expected ErrInvalidCredentials, got %v", tc.handle, tc.secret, err)
		}
	}
}

func TestAuthenticateRequiresExactSecret(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "alice", "Secret"); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := map[string]bool{
		"Secret":  true,
		"secret":  false,
		"Secret ": false,
		" Secret": false,
		"":        false,
	}
	for secret, want := range cases {
		got, err := svc.Authenticate(ctx, "alice", secret)
		if err != nil {
			t.Fatalf("authenticate(%q): %v", secret, err)
		}
		if got != want {
			t.Fatalf("authenticate(%q) = %v, want %v", secret, got, want)
		}
	}

	if ok, err := svc.Authenticate(ctx, "nobody", "Secret"); ok || err != nil {
		t.Fatalf("unknown handle: ok=%v err=%v", ok, err)
	}
}

func TestLoginIssuesTokensThatAuthorize(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()
	owner, team, err := svc.Register(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, tokens, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, claims, err := svc.Authorize(ctx, "  "+tokens.AccessToken+" ")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got.ID != owner.ID || claims.TeamID != team.ID {
		t.Fatalf("unexpected claims owner=%s team=%s", got.ID, claims.TeamID)
	}

	if _, _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Authorize(ctx, " "); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestRegisterRejectsPaddedHandle(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, handle := range []string{" alice", "alice ", "\talice"} {
		if _, _, err := svc.Register(ctx, handle, "other"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("register(%q): expected ErrInvalidCredentials, got %v", handle, err)
		}
	}
	if ok, err := svc.Authenticate(ctx, " alice", "pw"); ok || err != nil {
		t.Fatalf("padded handle must not match the stored one: ok=%v err=%v", ok, err)
	}
	if len(store.byHandle) != 1 {
		t.Fatalf("expected a single stored owner, got %d", len(store.byHandle))
	}
}

func TestRegisterAcceptsLongSecret(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()
	secret := strings.Repeat("s", 80)

	if _, _, err := svc.Register(ctx, "alice", secret); err != nil {
		t.Fatalf("register with %d-byte secret: %v", len(secret), err)
	}
	ok, err := svc.Authenticate(ctx, "alice", secret)
	if err != nil || !ok {
		t.Fatalf("long secret must verify, ok=%v err=%v", ok, err)
	}
	if ok, _ := svc.Authenticate(ctx, "alice", secret[:72]); ok {
		t.Fatal("a 72-byte prefix must not verify")
	}
}
