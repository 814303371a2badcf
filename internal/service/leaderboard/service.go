package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/config"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/leetcode"
)

// Policy decides what happens to members whose fetch fails.
type Policy string

const (
	// PolicySkip leaves failed members out of the result.
	PolicySkip Policy = "skip"
	// PolicyReport lists failed members in Leaderboard.Failures.
	PolicyReport Policy = "report"
)

// ErrMemberNotFound is returned when an external id is not on the owner's roster.
var ErrMemberNotFound = errors.New("member not found")

// ErrInvalidPolicy is returned by ParsePolicy for unknown values.
var ErrInvalidPolicy = errors.New("unknown fetch error policy")

// ParsePolicy maps a string onto a Policy. Blank input yields "".
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", PolicySkip, PolicyReport:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// Roster lists an owner's members oldest first.
type Roster interface {
	List(ctx context.Context, ownerID string) ([]domain.Member, error)
}

// Fetcher returns a snapshot for one external id.
type Fetcher interface {
	Fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error)
}

// Detail pairs a roster member with its fetched snapshot.
type Detail struct {
	Member      domain.Member          `json:"member"`
	DisplayName string                 `json:"display_name"`
	Snapshot    domain.ProfileSnapshot `json:"snapshot"`
}

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank int `json:"rank"`
	// Progress is TotalSolved relative to the leader, between 0 and 1.
	Progress float64 `json:"progress"`
	Detail
}

// Failure describes a member whose snapshot could not be fetched.
type Failure struct {
	Member  domain.Member `json:"member"`
	Reason  string        `json:"reason"`
	Message string        `json:"message"`
}

// Leaderboard is the ranked result for one owner.
type Leaderboard struct {
	Policy      Policy    `json:"policy"`
	Entries     []Entry   `json:"entries"`
	Failures    []Failure `json:"failures"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Service builds leaderboards from an owner's roster.
type Service struct {
	roster        Roster
	fetcher       Fetcher
	logger        *slog.Logger
	concurrency   int
	defaultPolicy Policy
	now           func() time.Time
}

// New constructs a Service using the fetch settings in cfg.
func New(roster Roster, fetcher Fetcher, logger *slog.Logger, cfg config.APIConfig) Service {
	concurrency := cfg.FetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	policy, err := ParsePolicy(cfg.FetchErrorPolicy)
	if err != nil || policy == "" {
		policy = PolicySkip
	}
	return Service{
		roster:        roster,
		fetcher:       fetcher,
		logger:        logger,
		concurrency:   concurrency,
		defaultPolicy: policy,
		now:           time.Now,
	}
}

type outcome struct {
	snapshot *domain.ProfileSnapshot
	err      error
}

// Build fetches every member of the owner's roster and ranks them by total
// solved, highest first. Members with equal totals keep roster order. A failed
// fetch never aborts the build; policy decides whether it is reported.
func (s Service) Build(ctx context.Context, ownerID string, policy Policy) (*Leaderboard, error) {
	if policy == "" {
		policy = s.defaultPolicy
	}
	members, err := s.roster.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	results := make([]outcome, len(members))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, member := range members {
		g.Go(func() error {
			snap, err := s.fetcher.Fetch(ctx, member.ExternalID)
			results[i] = outcome{snapshot: snap, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	board := &Leaderboard{
		Policy:      policy,
		Entries:     make([]Entry, 0, len(members)),
		Failures:    make([]Failure, 0),
		GeneratedAt: s.now().UTC(),
	}
	for i, member := range members {
		res := results[i]
		if res.err != nil {
			s.logger.Warn("profile fetch failed", "external_id", member.ExternalID, "policy", string(policy), "error", res.err)
			if policy == PolicyReport {
				board.Failures = append(board.Failures, Failure{
					Member:  member,
					Reason:  failureReason(res.err),
					Message: res.err.Error(),
				})
			}
			continue
		}
		board.Entries = append(board.Entries, Entry{Detail: detailFor(member, *res.snapshot)})
	}

	sort.SliceStable(board.Entries, func(a, b int) bool {
		return board.Entries[a].Snapshot.TotalSolved > board.Entries[b].Snapshot.TotalSolved
	})
	leader := 0
	if len(board.Entries) > 0 {
		leader = board.Entries[0].Snapshot.TotalSolved
	}
	for i := range board.Entries {
		board.Entries[i].Rank = i + 1
		if leader > 0 {
			board.Entries[i].Progress = float64(board.Entries[i].Snapshot.TotalSolved) / float64(leader)
		}
	}
	return board, nil
}

// Profile fetches the snapshot for one member of the owner's roster.
func (s Service) Profile(ctx context.Context, ownerID, externalID string) (*Detail, error) {
	externalID = strings.TrimSpace(externalID)
	members, err := s.roster.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		if member.ExternalID != externalID {
			continue
		}
		snap, err := s.fetcher.Fetch(ctx, member.ExternalID)
		if err != nil {
			return nil, err
		}
		detail := detailFor(member, *snap)
		return &detail, nil
	}
	return nil, ErrMemberNotFound
}

// detailFor resolves the name shown for a member: the stored display name,
// then the upstream real name, then the external id.
func detailFor(member domain.Member, snap domain.ProfileSnapshot) Detail {
	name := strings.TrimSpace(member.DisplayName)
	if name == "" {
		name = strings.TrimSpace(snap.RealName)
	}
	if name == "" {
		name = member.ExternalID
	}
	return Detail{Member: member, DisplayName: name, Snapshot: snap}
}

func failureReason(err error) string {
	var upstream *leetcode.UpstreamError
	switch {
	case errors.Is(err, leetcode.ErrProfileNotFound):
		return "not_found"
	case errors.As(err, &upstream):
		return "upstream_error"
	default:
		return "error"
	}
}
