package httpx

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/auth"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/leaderboard"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/roster"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/stats"
	jwtpkg "github.com/saralaufeyson/leetcode-team-dashboard/pkg/jwt"
)

// AuthService registers owners and resolves bearer tokens.
type AuthService interface {
	Register(ctx context.Context, handle, secret string) (*domain.Owner, *domain.Team, error)
	Login(ctx context.Context, handle, secret string) (*domain.Owner, auth.TokenPair, error)
	Authorize(ctx context.Context, token string) (*domain.Owner, *jwtpkg.Claims, error)
}

// RosterService manages the caller's members.
type RosterService interface {
	List(ctx context.Context, ownerID string) ([]domain.Member, error)
	Add(ctx context.Context, ownerID, displayName, externalID string) (*domain.Member, error)
	Remove(ctx context.Context, ownerID, externalID string) (bool, error)
}

// LeaderboardService ranks the caller's members.
type LeaderboardService interface {
	Build(ctx context.Context, ownerID string, policy leaderboard.Policy) (*leaderboard.Leaderboard, error)
	Profile(ctx context.Context, ownerID, externalID string) (*leaderboard.Detail, error)
}

// StatsService reports record totals.
type StatsService interface {
	Summary(ctx context.Context) (domain.Stats, error)
}

var (
	_ AuthService        = auth.Service{}
	_ RosterService      = roster.Service{}
	_ LeaderboardService = leaderboard.Service{}
	_ StatsService       = stats.Service{}
)

// Services groups the handlers' dependencies.
type Services struct {
	Auth        AuthService
	Roster      RosterService
	Leaderboard LeaderboardService
	Stats       StatsService
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	auth        AuthService
	roster      RosterService
	leaderboard LeaderboardService
	stats       StatsService
	limiter     RateLimiter
	registry    *prometheus.Registry
	metrics     *routerMetrics
	dbHealth    func(context.Context) error
	trusted     []netip.Prefix
}

// RouterOption customises router construction.
type RouterOption func(*Router)

// WithTrustedProxies makes the router honour X-Forwarded-For on requests
// whose peer address falls inside one of the prefixes.
func WithTrustedProxies(prefixes []netip.Prefix) RouterOption {
	return func(r *Router) {
		r.trusted = append([]netip.Prefix(nil), prefixes...)
	}
}

const (
	rateWindowDefault    = time.Minute
	rateLimitRegister    = 5
	rateLimitLogin       = 12
	rateLimitRead        = 120
	rateLimitWrite       = 60
	rateLimitMemberAdd   = 30
	rateLimitLeaderboard = 30
	healthCheckTimeout   = 2 * time.Second
)

// NewRouter assembles routes with dependencies. A nil registry gets a private
// one; a nil limiter gets an in-memory one.
func NewRouter(logger *slog.Logger, services Services, limiter RateLimiter, registry *prometheus.Registry, dbHealth func(context.Context) error, opts ...RouterOption) *Router {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if limiter == nil {
		limiter = NewMemoryRateLimiter()
	}
	r := &Router{
		mux:         http.NewServeMux(),
		logger:      logger,
		auth:        services.Auth,
		roster:      services.Roster,
		leaderboard: services.Leaderboard,
		stats:       services.Stats,
		limiter:     limiter,
		registry:    registry,
		metrics:     newRouterMetrics(registry),
		dbHealth:    dbHealth,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(pattern, h))
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	r.handle("POST /auth/register", r.withRateLimit("POST /auth/register", rateLimitRegister, rateWindowDefault, r.rateLimitKeyIP, r.handleRegister))
	r.handle("POST /auth/login", r.withRateLimit("POST /auth/login", rateLimitLogin, rateWindowDefault, r.rateLimitKeyIP, r.handleLogin))
	r.handle("GET /members", r.authRate("GET /members", rateLimitRead, r.handleListMembers))
	r.handle("POST /members", r.authRate("POST /members", rateLimitMemberAdd, r.handleAddMember))
	r.handle("DELETE /members/{external_id}", r.authRate("DELETE /members/{external_id}", rateLimitWrite, r.handleRemoveMember))
	r.handle("GET /leaderboard", r.authRate("GET /leaderboard", rateLimitLeaderboard, r.handleLeaderboard))
	r.handle("GET /profiles/{external_id}", r.authRate("GET /profiles/{external_id}", rateLimitRead, r.handleProfile))
	r.handle("GET /stats", r.authRate("GET /stats", rateLimitRead, r.handleStats))
}

type credentialsPayload struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func ownerJSON(owner *domain.Owner) map[string]any {
	return map[string]any{
		"id":         owner.ID,
		"handle":     owner.Handle,
		"created_at": owner.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload credentialsPayload
	if !decodeJSON(w, req, &payload) {
		return
	}
	owner, team, err := r.auth.Register(req.Context(), payload.Handle, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"owner": ownerJSON(owner),
		"team":  team,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload credentialsPayload
	if !decodeJSON(w, req, &payload) {
		return
	}
	owner, tokens, err := r.auth.Login(req.Context(), payload.Handle, payload.Password)
	if err != nil {
		if statusForError(err) == http.StatusBadRequest {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner": ownerJSON(owner),
		"tokens": map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_in":    int(tokens.ExpiresIn / time.Second),
		},
	})
}

func (r *Router) handleListMembers(w http.ResponseWriter, req *http.Request) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	members, err := r.roster.List(req.Context(), info.OwnerID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (r *Router) handleAddMember(w http.ResponseWriter, req *http.Request) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	var payload struct {
		DisplayName string `json:"display_name"`
		ExternalID  string `json:"external_id"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	member, err := r.roster.Add(req.Context(), info.OwnerID, payload.DisplayName, payload.ExternalID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (r *Router) handleRemoveMember(w http.ResponseWriter, req *http.Request) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	removed, err := r.roster.Remove(req.Context(), info.OwnerID, req.PathValue("external_id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleLeaderboard(w http.ResponseWriter, req *http.Request) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	policy, err := leaderboard.ParsePolicy(req.URL.Query().Get("policy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	board, err := r.leaderboard.Build(req.Context(), info.OwnerID, policy)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	info, ok := r.callerInfo(w, req)
	if !ok {
		return
	}
	detail, err := r.leaderboard.Profile(req.Context(), info.OwnerID, req.PathValue("external_id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) {
	summary, err := r.stats.Summary(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{"status": "down", "error": err.Error()}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Router) callerInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
	}
	return info, ok
}

// audit logs and measures every request under its route pattern.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.metrics.observeRequest(req.Method, route, status, duration)

		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := r.clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			fields = append(fields, "owner_id", info.OwnerID)
			if info.TeamID != "" {
				fields = append(fields, "team_id", info.TeamID)
			}
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}
