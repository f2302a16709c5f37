package authgate

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenServiceImpl implements TokenService over a single HMAC key
type TokenServiceImpl struct {
	signingKey []byte
	method     jwt.SigningMethod
	lifetime   time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	clock      Clock
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the time source used for iat, exp and validation
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.clock = normalizeClock(clock)
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(logger, "authgate.tokens")
	}
}

// NewTokenService creates a TokenService from cfg. The signing key is
// copied and read only from here on.
func NewTokenService(cfg Config, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	method, ok := signingMethod(cfg.GetSigningMethod())
	if !ok {
		return nil, goerrors.New("unsupported signing method", goerrors.CategoryValidation).
			WithTextCode(KindBadRequest).
			WithMetadata(map[string]any{"signing_method": cfg.GetSigningMethod()})
	}

	if cfg.GetSigningKey() == "" {
		return nil, goerrors.New("signing key is required", goerrors.CategoryValidation).
			WithTextCode(KindBadRequest)
	}

	audience := make(jwt.ClaimStrings, len(cfg.GetAudience()))
	copy(audience, cfg.GetAudience())

	ts := &TokenServiceImpl{
		signingKey: []byte(cfg.GetSigningKey()),
		method:     method,
		lifetime:   cfg.GetTokenLifetime(),
		issuer:     cfg.GetIssuer(),
		audience:   audience,
		clock:      time.Now,
		logger:     newDefLogger("authgate.tokens"),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// Lifetime is the configured token lifetime
func (ts *TokenServiceImpl) Lifetime() time.Duration {
	return ts.lifetime
}

// Generate mints a token for identity with a fresh jti
func (ts *TokenServiceImpl) Generate(identity Identity) (string, error) {
	if identity == nil || identity.ID() == "" {
		return "", goerrors.New("identity is required", goerrors.CategoryBadInput).
			WithTextCode(KindBadRequest)
	}

	now := ts.clock()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.lifetime)),
		},
		UserID: identity.ID(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs claims with the configured key
func (ts *TokenServiceImpl) SignClaims(claims *Claims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Validate checks signature first, then exp, iat, iss and aud. Claims
// are only returned once all checks pass.
func (ts *TokenServiceImpl) Validate(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrNoAuthToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ts.clock),
		jwt.WithPaddingAllowed(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalidAlgorithm
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		mapped := mapTokenError(err)
		ts.logger.Debug("token validation failed", "kind", KindOf(mapped), "error", err)
		return nil, mapped
	}

	if !token.Valid || claims.Subject() == "" {
		return nil, ErrTokenInvalidClaims
	}

	return claims, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, ErrTokenInvalidAlgorithm):
		return ErrTokenInvalidAlgorithm
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidAlgorithm
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrTokenInvalidAudience
	default:
		return ErrTokenInvalidClaims
	}
}
