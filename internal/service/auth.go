package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

// AuthService signs users in through identity providers.
//
//	AuthHandler → AuthService → IdentityProvider (code exchange)
//	                          → UserRepository (link or create)
//	                          → TokenService (access token)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	providers map[string]auth.IdentityProvider
	logger    *slog.Logger
}

// NewAuthService creates an AuthService. tokens may be nil when signing
// in is disabled; every login then fails with UpstreamUnavailable.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	providers map[string]auth.IdentityProvider,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		providers: providers,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with their access token.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"access_token"`
}

// Providers lists the configured provider names, sorted.
func (s *AuthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AuthURL returns the provider sign-in URL carrying state.
func (s *AuthService) AuthURL(provider, state string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// Login exchanges a provider code for an identity, links it to exactly one
// account and issues an access token.
//
// Linking: an account already holding the provider key is reused and its
// profile refreshed; otherwise an account with the same email and no key
// for this provider gets the key attached; otherwise a new account is made.
func (s *AuthService) Login(ctx context.Context, provider, code string) (*AuthResult, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	if s.tokens == nil {
		return nil, apperror.UpstreamUnavailable("sign-in", errors.New("token signing is not configured"))
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.InvalidArgument("code", "authorization code is required")
	}

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			return nil, apperror.Unauthorized("the authorization code was rejected by " + provider)
		}
		s.logger.Warn("identity exchange failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return nil, apperror.UpstreamUnavailable(provider, err)
	}

	user, err := s.users.LinkOrCreateUser(ctx, *identity)
	if err != nil {
		s.logger.Error("failed to link user",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("linking %s identity: %w", provider, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// CurrentUser returns the account behind a validated token.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("sign-in required")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *AuthService) provider(name string) (auth.IdentityProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, apperror.NotFound("identity provider", name)
	}
	return p, nil
}
