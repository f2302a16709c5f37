package authgate

import (
	"context"
	"reflect"
	"strings"
)

// Login strategies
const (
	StrategyLocal = "local"
	StrategyJWT   = "jwt"
)

// LoginRequest is the payload of a login on either transport
type LoginRequest struct {
	Strategy    string `json:"strategy"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	Provider    string `json:"-"`
}

// Profile is the public view of an identity
type Profile struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

// ProfileOf returns the public view of identity
func ProfileOf(identity Identity) Profile {
	if identity == nil {
		return Profile{}
	}
	return Profile{ID: identity.ID(), Email: identity.Email()}
}

// AuthResult is returned by a successful login or logout. The profile
// fields sit next to the token.
type AuthResult struct {
	AccessToken string `json:"accessToken"`
	Profile
}

type Auther struct {
	provider     IdentityProvider
	tokenService TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, tokenService TokenService) *Auther {
	return &Auther{
		provider:     provider,
		tokenService: tokenService,
		logger:       newDefLogger("authgate.authenticator"),
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger, "authgate.authenticator")
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login runs the requested strategy and returns a token with the
// caller's profile.
func (s *Auther) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	strategy := strings.ToLower(strings.TrimSpace(req.Strategy))

	var (
		result *AuthResult
		err    error
	)

	switch strategy {
	case StrategyLocal:
		result, err = s.loginLocal(ctx, req)
	case StrategyJWT:
		result, err = s.loginJWT(ctx, req)
	default:
		err = ErrInvalidStrategy
	}

	meta := map[string]any{"strategy": strategy}
	if err != nil {
		s.logger.Error("Login error", "strategy", strategy, "provider", req.Provider, "error", err)
		meta["kind"] = KindOf(err)
		emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Provider:  req.Provider,
			Metadata:  meta,
		})
		return nil, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    result.ID,
		Provider:  req.Provider,
		Metadata:  meta,
	})

	return result, nil
}

func (s *Auther) loginLocal(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	identity, err := s.provider.VerifyIdentity(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	return &AuthResult{AccessToken: token, Profile: ProfileOf(identity)}, nil
}

func (s *Auther) loginJWT(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if req.AccessToken == "" {
		return nil, ErrNoAuthToken
	}

	identity, _, err := s.Authenticate(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	return &AuthResult{AccessToken: req.AccessToken, Profile: ProfileOf(identity)}, nil
}

// Authenticate verifies raw and resolves its subject to a live identity
func (s *Auther) Authenticate(ctx context.Context, raw string) (Identity, *Claims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		return nil, nil, err
	}

	identity, err := s.provider.FindIdentityByID(ctx, claims.Subject())
	if err != nil {
		s.logger.Debug("Authenticate subject lookup failed", "subject", claims.Subject(), "error", err)
		return nil, nil, err
	}

	return identity, claims, nil
}

// Logout checks raw is still valid and returns it for client side
// disposal. Tokens are stateless, nothing is revoked.
func (s *Auther) Logout(ctx context.Context, raw, provider string) (*AuthResult, error) {
	if raw == "" {
		return nil, ErrNoAuthToken
	}

	identity, _, err := s.Authenticate(ctx, raw)
	if err != nil {
		return nil, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    identity.ID(),
		Provider:  provider,
	})

	return &AuthResult{AccessToken: raw, Profile: ProfileOf(identity)}, nil
}
