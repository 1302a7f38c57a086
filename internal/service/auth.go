package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/metrics"
	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/repository"
)

// IdentityProvider is an OAuth provider as the service uses it.
// *auth.OAuthProvider implements it.
type IdentityProvider interface {
	Kind() model.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Grant, error)
	FetchProfile(ctx context.Context, accessToken string) (model.Profile, error)
}

// AuthService handles provider sign-in and re-authentication.
//
//	AuthHandler (HTTP) → AuthService → IdentityRepository (Credential Store)
//	                                 ↘ IdentityProvider (GitHub, GitLab)
//	                                 ↘ TokenService (session JWT)
//
// It never sets cookies or reads requests; that is the handler's job.
type AuthService struct {
	identities repository.IdentityRepository
	tokens     *auth.TokenService
	providers  map[model.Provider]IdentityProvider
	activity   ActivityLogger
	logger     *slog.Logger
}

// NewAuthService creates an AuthService. Only the given providers can be used
// for sign-in; activity may be nil, in which case sign-ins are not logged.
func NewAuthService(
	identities repository.IdentityRepository,
	tokens *auth.TokenService,
	activity ActivityLogger,
	logger *slog.Logger,
	providers ...IdentityProvider,
) *AuthService {
	byKind := make(map[model.Provider]IdentityProvider, len(providers))
	for _, p := range providers {
		byKind[p.Kind()] = p
	}
	return &AuthService{
		identities: identities,
		tokens:     tokens,
		providers:  byKind,
		activity:   activity,
		logger:     logger,
	}
}

// SignInResult bundles the session and its signed token so the handler can
// set the cookie and redirect in one step.
type SignInResult struct {
	Session model.Session
	Token   string
}

// Provider returns the configured provider of the given kind.
func (s *AuthService) Provider(kind model.Provider) (IdentityProvider, error) {
	p, ok := s.providers[kind]
	if !ok {
		return nil, apperror.NotFound("provider", string(kind))
	}
	return p, nil
}

// SignIn completes the OAuth callback for provider kind:
//
//  1. Exchange the code for a token and the user's profile
//  2. Upsert the identity so the Credential Store holds the newest token
//  3. Record a login event (a failed write does not block sign-in)
//  4. Issue a session token
func (s *AuthService) SignIn(ctx context.Context, kind model.Provider, code, ipAddress string) (*SignInResult, error) {
	provider, err := s.Provider(kind)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperror.ValidationFailed("code", "Authorization code is required")
	}

	grant, err := provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("OAuth exchange failed", slog.String("provider", string(kind)), slog.String("error", err.Error()))
		return nil, apperror.UpstreamAuth("Sign-in with provider failed")
	}

	email := strings.TrimSpace(grant.Profile.Email())
	if email == "" {
		return nil, apperror.UpstreamAuth("Provider account has no email address")
	}

	identity := &model.UserIdentity{
		Email:            email,
		Name:             grant.Profile.DisplayName(),
		Provider:         kind,
		ProviderUsername: grant.Profile.Username(),
		AvatarURL:        grant.Profile.AvatarURL(),
		AccessToken:      grant.Token.AccessToken,
		RefreshToken:     grant.Token.RefreshToken,
	}
	if !grant.Token.Expiry.IsZero() {
		expiry := grant.Token.Expiry
		identity.TokenExpiry = &expiry
	}

	if err := s.identities.Upsert(ctx, identity); err != nil {
		return nil, fmt.Errorf("service/auth: upserting identity %s: %w", email, err)
	}

	s.logger.Info("user signed in",
		slog.String("provider", string(kind)),
		slog.String("username", identity.ProviderUsername),
	)

	if s.activity != nil {
		res := s.activity.Log(ctx, model.Event{
			Kind:      model.EventLogin,
			Email:     email,
			Name:      identity.Name,
			IPAddress: ipAddress,
		})
		if !res.Success {
			s.logger.Warn("login event not recorded", slog.String("email", email), slog.Any("error", res.Err))
		}
	}

	session := model.Session{
		Email:            email,
		Name:             identity.Name,
		Provider:         kind,
		ProviderUsername: identity.ProviderUsername,
		Profile:          grant.Profile,
	}
	token, err := s.tokens.Generate(session)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating session for %s: %w", email, err)
	}

	return &SignInResult{Session: session, Token: token}, nil
}

// Authenticate checks whether the stored provider token for email is still
// accepted by GitHub.
//
// A nil user with a nil error means "not authenticated": no stored token, the
// provider rejected it, or the provider could not be reached. Each case is
// logged and counted. Only an empty email or a Credential Store failure comes
// back as an error. The stored token is never rewritten here.
func (s *AuthService) Authenticate(ctx context.Context, email string) (*model.AuthenticatedUser, error) {
	user, _, err := s.check(ctx, email)
	return user, err
}

// Reauthenticate is Authenticate followed by a fresh session token for the
// confirmed user. Both results are nil when the check did not succeed.
func (s *AuthService) Reauthenticate(ctx context.Context, email string) (*model.AuthenticatedUser, *SignInResult, error) {
	user, profile, err := s.check(ctx, email)
	if err != nil || user == nil {
		return nil, nil, err
	}

	session := model.Session{
		Email:            user.Email,
		Name:             user.Name,
		Provider:         user.Provider,
		ProviderUsername: user.Username,
		Profile:          profile,
	}
	token, err := s.tokens.Generate(session)
	if err != nil {
		return nil, nil, fmt.Errorf("service/auth: generating session for %s: %w", user.Email, err)
	}
	return user, &SignInResult{Session: session, Token: token}, nil
}

func (s *AuthService) check(ctx context.Context, email string) (*model.AuthenticatedUser, model.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.Profile{}, apperror.ValidationFailed("email", "Email is required")
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		s.missingCredential(email, "no stored identity")
		return nil, model.Profile{}, nil
	case err != nil:
		return nil, model.Profile{}, fmt.Errorf("service/auth: loading identity %s: %w", email, err)
	}

	if identity.Provider != model.ProviderGitHub {
		s.missingCredential(email, "identity is not a GitHub account")
		return nil, model.Profile{}, nil
	}
	if identity.AccessToken == "" {
		s.missingCredential(email, "no stored access token")
		return nil, model.Profile{}, nil
	}

	provider, ok := s.providers[model.ProviderGitHub]
	if !ok {
		s.missingCredential(email, "GitHub sign-in is not configured")
		return nil, model.Profile{}, nil
	}

	profile, err := provider.FetchProfile(ctx, identity.AccessToken)
	if err != nil {
		outcome := "transport_error"
		if errors.Is(err, auth.ErrTokenRejected) || errors.Is(err, auth.ErrUpstreamStatus) {
			outcome = "upstream_rejected"
		}
		metrics.ProviderChecks.WithLabelValues(outcome).Inc()
		s.logger.Warn("provider re-authentication failed",
			slog.String("email", email),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return nil, model.Profile{}, nil
	}

	metrics.ProviderChecks.WithLabelValues("success").Inc()

	return &model.AuthenticatedUser{
		Email:     email,
		Name:      profile.DisplayName(),
		Username:  profile.Username(),
		AvatarURL: profile.AvatarURL(),
		Provider:  model.ProviderGitHub,
	}, profile, nil
}

func (s *AuthService) missingCredential(email, reason string) {
	metrics.ProviderChecks.WithLabelValues("missing_credential").Inc()
	s.logger.Info("no usable provider credential", slog.String("email", email), slog.String("reason", reason))
}

// ValidateToken resolves a session token into the session it carries.
func (s *AuthService) ValidateToken(token string) (*model.Session, error) {
	session, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return session, nil
}
