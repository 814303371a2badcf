package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:4000"

// Client provides typed access to the teamboard API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
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

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError carrying the given status.
func IsStatus(err error, status int) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return errors.New("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := strings.TrimSpace(token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// Owner reflects API owner payloads.
type Owner struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Owner Owner       `json:"owner"`
	Team  domain.Team `json:"team"`
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	Owner  Owner     `json:"owner"`
	Tokens TokenPair `json:"tokens"`
}

// TokenPair includes access and refresh tokens. ExpiresIn is in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type credentials struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// Register creates an owner account together with its team.
func (c *Client) Register(ctx context.Context, handle, password string) (RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", credentials{handle, password}, "", &resp); err != nil {
		return RegisterResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, handle, password string) (LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{handle, password}, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// ListMembers returns the caller's roster in insertion order.
func (c *Client) ListMembers(ctx context.Context, token string) ([]domain.Member, error) {
	var resp struct {
		Members []domain.Member `json:"members"`
	}
	if err := c.do(ctx, http.MethodGet, "/members", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// AddMember registers a tracked profile on the caller's roster.
func (c *Client) AddMember(ctx context.Context, token, displayName, externalID string) (domain.Member, error) {
	body := map[string]string{
		"display_name": displayName,
		"external_id":  externalID,
	}
	var member domain.Member
	if err := c.do(ctx, http.MethodPost, "/members", body, token, &member); err != nil {
		return domain.Member{}, err
	}
	return member, nil
}

// RemoveMember drops a tracked profile. A 404 means nothing was removed.
func (c *Client) RemoveMember(ctx context.Context, token, externalID string) error {
	path := fmt.Sprintf("/members/%s", url.PathEscape(externalID))
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank        int                    `json:"rank"`
	Progress    float64                `json:"progress"`
	Member      domain.Member          `json:"member"`
	DisplayName string                 `json:"display_name"`
	Snapshot    domain.ProfileSnapshot `json:"snapshot"`
}

// Failure names a member whose profile could not be fetched.
type Failure struct {
	Member  domain.Member `json:"member"`
	Reason  string        `json:"reason"`
	Message string        `json:"message"`
}

// Leaderboard is the ranked roster returned by the API.
type Leaderboard struct {
	Policy      string    `json:"policy"`
	Entries     []Entry   `json:"entries"`
	Failures    []Failure `json:"failures"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Leaderboard builds the caller's leaderboard. An empty policy uses the
// server default.
func (c *Client) Leaderboard(ctx context.Context, token, policy string) (Leaderboard, error) {
	path := "/leaderboard"
	if p := strings.TrimSpace(policy); p != "" {
		path += "?policy=" + url.QueryEscape(p)
	}
	var board Leaderboard
	if err := c.do(ctx, http.MethodGet, path, nil, token, &board); err != nil {
		return Leaderboard{}, err
	}
	return board, nil
}

// Profile is the detail view of one roster member.
type Profile struct {
	Member      domain.Member          `json:"member"`
	DisplayName string                 `json:"display_name"`
	Snapshot    domain.ProfileSnapshot `json:"snapshot"`
}

// Profile fetches the detail view for one member of the caller's roster.
func (c *Client) Profile(ctx context.Context, token, externalID string) (Profile, error) {
	path := fmt.Sprintf("/profiles/%s", url.PathEscape(externalID))
	var profile Profile
	if err := c.do(ctx, http.MethodGet, path, nil, token, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Stats returns deployment-wide record counts.
func (c *Client) Stats(ctx context.Context, token string) (domain.Stats, error) {
	var stats domain.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, token, &stats); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}
