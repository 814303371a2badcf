package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
)

// DefaultEndpoint is the public LeetCode GraphQL endpoint.
const DefaultEndpoint = "https://leetcode.com/graphql"

const defaultTimeout = 5 * time.Second

// ErrProfileNotFound reports that the external id does not resolve to a profile.
var ErrProfileNotFound = errors.New("leetcode: profile not found")

// UpstreamError wraps transport and decoding failures talking to the API.
type UpstreamError struct {
	ExternalID string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("leetcode: fetch %q: %v", e.ExternalID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client fetches and normalizes public profile statistics.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
	fetches    *prometheus.CounterVec
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout bounds every fetch. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for tolerated upstream anomalies.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source stamped onto snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics counts fetch outcomes on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		if reg == nil {
			return
		}
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamboard",
			Subsystem: "leetcode",
			Name:      "fetches_total",
			Help:      "Profile fetches by outcome",
		}, []string{"outcome"})
		if err := reg.Register(counter); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					counter = existing
				}
			}
		}
		c.fetches = counter
	}
}

// New constructs a Client for the given GraphQL endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = DefaultEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid leetcode endpoint %q", trimmed)
	}
	cli := &Client{
		endpoint:   trimmed,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// Fetch retrieves one profile. It fails with ErrProfileNotFound when the API
// answers with a non-success status or a null profile node, and with an
// *UpstreamError for transport or envelope failures. Nothing is retried.
func (c *Client) Fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error) {
	snap, err := c.fetch(ctx, externalID)
	c.observe(err)
	return snap, err
}

func (c *Client) fetch(ctx context.Context, externalID string) (*domain.ProfileSnapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(graphQLRequest{
		Query:     profileQuery,
		Variables: map[string]any{"username": externalID},
	})
	if err != nil {
		return nil, &UpstreamError{ExternalID: externalID, Err: fmt.Errorf("encode request body: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &UpstreamError{ExternalID: externalID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://leetcode.com/"+url.PathEscape(externalID)+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{ExternalID: externalID, Err: fmt.Errorf("perform request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %q answered with status %d", ErrProfileNotFound, externalID, resp.StatusCode)
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &UpstreamError{ExternalID: externalID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if envelope.Data == nil || envelope.Data.MatchedUser == nil {
		return nil, fmt.Errorf("%w: %q%s", ErrProfileNotFound, externalID, upstreamMessages(envelope.Errors))
	}

	snap, calErr := normalize(envelope.Data.MatchedUser, c.now())
	if calErr != nil {
		c.logger.Warn("submission calendar ignored", "external_id", externalID, "error", calErr)
	}
	return &snap, nil
}

func (c *Client) observe(err error) {
	if c.fetches == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrProfileNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "upstream_error"
	}
	c.fetches.WithLabelValues(outcome).Inc()
}

func upstreamMessages(errs []graphQLError) string {
	if len(errs) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if m := strings.TrimSpace(e.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return ""
	}
	return " (" + strings.Join(msgs, "; ") + ")"
}
