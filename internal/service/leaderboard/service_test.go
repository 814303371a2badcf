package leaderboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/config"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/leetcode"
)

type stubRoster struct {
	members map[string][]domain.Member
	err     error
}

func (s stubRoster) List(ctx context.Context, ownerID string) ([]domain.Member, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Member{}, s.members[ownerID]...), nil
}

type stubFetcher struct {
	solved map[string]int
	errs   map[string]error
	delay  map[string]time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	calls    []string
}

func (f *stubFetcher) Fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, externalID)
	f.mu.Unlock()
	if d := f.delay[externalID]; d > 0 {
		time.Sleep(d)
	}
	if err := f.errs[externalID]; err != nil {
		return nil, err
	}
	return &domain.ProfileSnapshot{
		Username:    externalID,
		RealName:    "Real " + externalID,
		TotalSolved: f.solved[externalID],
	}, nil
}

func members(ids ...string) []domain.Member {
	out := make([]domain.Member, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Member{
			ID:          "m-" + id,
			DisplayName: "Name " + id,
			ExternalID:  id,
			AddedAt:     time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		})
	}
	return out
}

func newTestService(roster Roster, fetcher Fetcher, concurrency int, policy string) Service {
	cfg := config.DefaultAPIConfig()
	cfg.FetchConcurrency = concurrency
	cfg.FetchErrorPolicy = policy
	return New(roster, fetcher, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func entryIDs(board *Leaderboard) []string {
	ids := make([]string, 0, len(board.Entries))
	for _, e := range board.Entries {
		ids = append(ids, e.Member.ExternalID)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildSortsDescendingWithStableTies(t *testing.T) {
	roster := stubRoster{members: map[string][]domain.Member{"owner": members("C", "A", "B")}}
	fetcher := &stubFetcher{solved: map[string]int{"C": 50, "A": 50, "B": 10}}
	svc := newTestService(roster, fetcher, 1, "skip")

	board, err := svc.Build(context.Background(), "owner", "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := entryIDs(board); !equalIDs(got, []string{"C", "A", "B"}) {
		t.Fatalf("unexpected order %v", got)
	}
	for i, e := range board.Entries {
		if e.Rank != i+1 {
			t.Fatalf("entry %d has rank %d", i, e.Rank)
		}
	}
	if board.Entries[0].Progress != 1 || board.Entries[2].Progress != 0.2 {
		t.Fatalf("unexpected progress %v / %v", board.Entries[0].Progress, board.Entries[2].Progress)
	}
	if board.Entries[0].DisplayName != "Name C" {
		t.Fatalf("stored display name should win, got %q", board.Entries[0].DisplayName)
	}
}

func TestBuildConcurrentKeepsRosterOrderForTies(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	roster := stubRoster{members: map[string][]domain.Member{"owner": members(ids...)}}
	fetcher := &stubFetcher{
		solved: map[string]int{"a": 1, "b": 7, "c": 7, "d": 3, "e": 7, "f": 1},
		// later members finish first
		delay: map[string]time.Duration{"a": 30 * time.Millisecond, "b": 20 * time.Millisecond, "c": 10 * time.Millisecond},
	}
	svc := newTestService(roster, fetcher, 3, "skip")

	board, err := svc.Build(context.Background(), "owner", PolicySkip)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := entryIDs(board); !equalIDs(got, []string{"b", "c", "e", "d", "a", "f"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if peak := fetcher.peak.Load(); peak > 3 {
		t.Fatalf("concurrency limit exceeded: %d", peak)
	}
}

func TestBuildSkipPolicyExcludesFailures(t *testing.T) {
	roster := stubRoster{members: map[string][]domain.Member{"owner": members("alice", "ghost", "bob")}}
	fetcher := &stubFetcher{
		solved: map[string]int{"alice": 5, "bob": 9},
		errs:   map[string]error{"ghost": leetcode.ErrProfileNotFound},
	}
	svc := newTestService(roster, fetcher, 2, "skip")

	board, err := svc.Build(context.Background(), "owner", "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := entryIDs(board); !equalIDs(got, []string{"bob", "alice"}) {
		t.Fatalf("unexpected entries %v", got)
	}
	if len(board.Failures) != 0 {
		t.Fatalf("skip policy must not report failures, got %+v", board.Failures)
	}
	if board.Policy != PolicySkip {
		t.Fatalf("expected default policy skip, got %q", board.Policy)
	}
}

func TestBuildReportPolicyListsFailures(t *testing.T) {
	roster := stubRoster{members: map[string][]domain.Member{"owner": members("alice", "ghost", "flaky")}}
	fetcher := &stubFetcher{
		solved: map[string]int{"alice": 5},
		errs: map[string]error{
			"ghost": leetcode.ErrProfileNotFound,
			"flaky": &leetcode.UpstreamError{ExternalID: "flaky", Err: errors.New("timeout")},
		},
	}
	svc := newTestService(roster, fetcher, 4, "skip")

	board, err := svc.Build(context.Background(), "owner", PolicyReport)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := entryIDs(board); !equalIDs(got, []string{"alice"}) {
		t.Fatalf("unexpected entries %v", got)
	}
	if len(board.Failures) != 2 {
		t.Fatalf("expected two failures, got %+v", board.Failures)
	}
	if board.Failures[0].Member.ExternalID != "ghost" || board.Failures[0].Reason != "not_found" {
		t.Fatalf("unexpected first failure %+v", board.Failures[0])
	}
	if board.Failures[1].Reason != "upstream_error" || board.Failures[1].Message == "" {
		t.Fatalf("unexpected second failure %+v", board.Failures[1])
	}
}

func TestBuildEmptyRosterAndRosterErrors(t *testing.T) {
	svc := newTestService(stubRoster{}, &stubFetcher{}, 1, "report")
	board, err := svc.Build(context.Background(), "owner", "")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(board.Entries) != 0 || board.Policy != PolicyReport {
		t.Fatalf("unexpected board %+v", board)
	}

	boom := errors.New("db down")
	svc = newTestService(stubRoster{err: boom}, &stubFetcher{}, 1, "skip")
	if _, err := svc.Build(context.Background(), "owner", ""); !errors.Is(err, boom) {
		t.Fatalf("expected roster error, got %v", err)
	}
}

func TestBuildHonoursCancellation(t *testing.T) {
	roster := stubRoster{members: map[string][]domain.Member{"owner": members("a")}}
	svc := newTestService(roster, &stubFetcher{}, 1, "skip")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Build(ctx, "owner", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDisplayNameFallbacks(t *testing.T) {
	snap := domain.ProfileSnapshot{RealName: "Real Name"}
	if got := detailFor(domain.Member{DisplayName: "Stored", ExternalID: "x"}, snap).DisplayName; got != "Stored" {
		t.Fatalf("expected stored name, got %q", got)
	}
	if got := detailFor(domain.Member{ExternalID: "x"}, snap).DisplayName; got != "Real Name" {
		t.Fatalf("expected real name, got %q", got)
	}
	if got := detailFor(domain.Member{ExternalID: "x"}, domain.ProfileSnapshot{}).DisplayName; got != "x" {
		t.Fatalf("expected external id, got %q", got)
	}
}

func TestProfile(t *testing.T) {
	roster := stubRoster{members: map[string][]domain.Member{"owner": members("alice")}}
	fetcher := &stubFetcher{solved: map[string]int{"alice": 12}}
	svc := newTestService(roster, fetcher, 1, "skip")

	detail, err := svc.Profile(context.Background(), "owner", " alice ")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if detail.Snapshot.TotalSolved != 12 || detail.DisplayName != "Name alice" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, err := svc.Profile(context.Background(), "owner", "bob"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
	if _, err := svc.Profile(context.Background(), "other-owner", "alice"); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("another owner's roster must not leak, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for raw, want := range map[string]Policy{"": "", "skip": PolicySkip, " Report ": PolicyReport} {
		got, err := ParsePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParsePolicy("ignore"); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}
