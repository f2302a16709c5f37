package authgate

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

// Logger is the logging contract used by every component. Arguments
// after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Email() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() []string
	GetTokenLifetime() time.Duration
	GetAuthScheme() string
	GetBcryptCost() int
	GetPaginate() Paginate
}

// IdentityProvider verifies credentials against the user store and
// resolves token subjects
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, email, password string) (Identity, error)
	FindIdentityByID(ctx context.Context, id string) (Identity, error)
}

// TokenService mints and validates access tokens
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *Claims) (string, error)
	Validate(raw string) (*Claims, error)
}

// Service is a resource service reachable through the Gateway. Data is
// the raw JSON body of the call.
type Service interface {
	Find(ctx context.Context, params *Params) (any, error)
	Get(ctx context.Context, id string, params *Params) (any, error)
	Create(ctx context.Context, data json.RawMessage, params *Params) (any, error)
	Update(ctx context.Context, id string, data json.RawMessage, params *Params) (any, error)
	Patch(ctx context.Context, id string, data json.RawMessage, params *Params) (any, error)
	Remove(ctx context.Context, id string, params *Params) (any, error)
}

// Clock returns the current time
type Clock func() time.Time

type defLogger struct {
	l *slog.Logger
}

func newDefLogger(name string) Logger {
	return defLogger{
		l: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})).
			With("logger", name),
	}
}

func (d defLogger) Debug(msg string, args ...any) { d.l.Debug(msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.l.Info(msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.l.Warn(msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.l.Error(msg, args...) }

func normalizeLogger(logger Logger, name string) Logger {
	if logger == nil {
		return newDefLogger(name)
	}
	return logger
}

func normalizeClock(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}
