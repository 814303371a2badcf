package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/config"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/crypto"
	jwtpkg "github.com/saralaufeyson/leetcode-team-dashboard/pkg/jwt"
)

var (
	// ErrAlreadyExists is returned when the handle is already registered.
	ErrAlreadyExists = repository.ErrAlreadyExists
	// ErrInvalidCredentials covers empty input and failed logins alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenRequired is returned when Authorize receives a blank token.
	ErrTokenRequired = errors.New("token required")
)

// Service handles authentication workflows.
type Service struct {
	owners repository.OwnerRepository
	teams  repository.TeamRepository
	logger *slog.Logger
	cfg    config.APIConfig
	now    func() time.Time
}

// New constructs a Service.
func New(owners repository.OwnerRepository, teams repository.TeamRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{owners: owners, teams: teams, logger: logger, cfg: cfg, now: time.Now}
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Register creates an owner together with its team. Handles are exact keys:
// compared case-sensitively and never trimmed, so surrounding whitespace is
// rejected.
func (s Service) Register(ctx context.Context, handle, secret string) (*domain.Owner, *domain.Team, error) {
	if strings.TrimSpace(handle) == "" || secret == "" {
		return nil, nil, fmt.Errorf("%w: handle and secret are required", ErrInvalidCredentials)
	}
	if strings.TrimSpace(handle) != handle {
		return nil, nil, fmt.Errorf("%w: handle must not start or end with whitespace", ErrInvalidCredentials)
	}
	hash, err := crypto.HashPasswordCost(secret, s.cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	owner := &domain.Owner{
		ID:           uuid.NewString(),
		Handle:       handle,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	team := &domain.Team{
		ID:        uuid.NewString(),
		Name:      domain.DefaultTeamName(handle),
		OwnerID:   owner.ID,
		CreatedAt: now,
	}
	if err := s.owners.CreateOwner(ctx, owner, team); err != nil {
		return nil, nil, err
	}
	s.logger.Info("owner registered", "owner_id", owner.ID, "team_id", team.ID)
	return owner, team, nil
}

// Authenticate reports whether secret matches the stored credential for
// handle. Unknown handles yield false without an error.
func (s Service) Authenticate(ctx context.Context, handle, secret string) (bool, error) {
	_, ok, err := s.verify(ctx, handle, secret)
	return ok, err
}

func (s Service) verify(ctx context.Context, handle, secret string) (*domain.Owner, bool, error) {
	owner, err := s.owners.GetOwnerByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := crypto.ComparePassword(owner.PasswordHash, secret); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return owner, true, nil
}

// Login authenticates an owner and returns tokens.
func (s Service) Login(ctx context.Context, handle, secret string) (*domain.Owner, TokenPair, error) {
	owner, ok, err := s.verify(ctx, handle, secret)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !ok {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	teamID := ""
	team, err := s.teams.GetTeamByOwner(ctx, owner.ID)
	switch {
	case err == nil:
		teamID = team.ID
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Error("owner has no team", "owner_id", owner.ID)
	default:
		return nil, TokenPair{}, err
	}
	tokens, err := s.issueTokens(owner.ID, teamID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("owner logged in", "owner_id", owner.ID)
	return owner, tokens, nil
}

// Authorize validates a bearer token and returns the associated owner and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.Owner, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, ErrTokenRequired
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.owners.GetOwnerByID(ctx, claims.OwnerID)
	if err != nil {
		return nil, nil, err
	}
	return owner, claims, nil
}

func (s Service) issueTokens(ownerID, teamID string) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(ownerID, teamID, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(ownerID, teamID, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}
