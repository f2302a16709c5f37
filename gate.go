package authgate

import (
	"context"
	"encoding/json"
	"strings"
)

// Method names a resource service operation
type Method string

const (
	MethodFind   Method = "find"
	MethodGet    Method = "get"
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodPatch  Method = "patch"
	MethodRemove Method = "remove"
)

// Valid reports whether m is one of the service methods
func (m Method) Valid() bool {
	switch m {
	case MethodFind, MethodGet, MethodCreate, MethodUpdate, MethodPatch, MethodRemove:
		return true
	}
	return false
}

// Transport providers, recorded on Params and activity events
const (
	ProviderREST   = "rest"
	ProviderSocket = "socket"
)

// Params travel with a call through the gate into the service.
// Identity and Claims are only ever set by the Gateway after the
// access token verified.
type Params struct {
	Provider    string
	AccessToken string
	Query       map[string]string
	Identity    Identity
	Claims      *Claims
	AuthErr     error
}

// Call is a single resource operation
type Call struct {
	Path   string
	Method Method
	ID     string
	Data   json.RawMessage
	Params *Params
}

// Hook runs before a service method. A non nil error rejects the call.
type Hook func(ctx context.Context, call *Call) error

// HookSet holds the before hooks per method
type HookSet map[Method][]Hook

// Authenticate requires a token that verified
func Authenticate() Hook {
	return func(_ context.Context, call *Call) error {
		p := call.Params
		if p == nil || p.AccessToken == "" {
			return ErrNoAuthToken
		}
		if p.AuthErr != nil {
			return p.AuthErr
		}
		if p.Identity == nil {
			return ErrNotAuthenticated
		}
		return nil
	}
}

// RestrictToAuthenticated requires a verified identity on the call
func RestrictToAuthenticated() Hook {
	return func(_ context.Context, call *Call) error {
		if call.Params == nil || call.Params.Identity == nil {
			return ErrNotAuthenticated
		}
		return nil
	}
}

// RestrictToOwner only lets an identity act on its own record
func RestrictToOwner() Hook {
	return func(_ context.Context, call *Call) error {
		if call.Params == nil || call.Params.Identity == nil {
			return ErrNotAuthenticated
		}
		if call.ID == "" || call.ID != call.Params.Identity.ID() {
			return ErrForbidden
		}
		return nil
	}
}

// DefaultUserHooks registration is public, reads need a verified token
// and writes are limited to the owner.
func DefaultUserHooks() HookSet {
	return HookSet{
		MethodFind:   {Authenticate()},
		MethodGet:    {RestrictToAuthenticated()},
		MethodCreate: nil,
		MethodUpdate: {Authenticate(), RestrictToOwner()},
		MethodPatch:  {Authenticate(), RestrictToOwner()},
		MethodRemove: {Authenticate(), RestrictToOwner()},
	}
}

// ExtractToken returns the token carried by an Authorization header
// value, with or without the scheme prefix.
func ExtractToken(header, scheme string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	if scheme != "" && len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		if rest := header[len(scheme):]; rest[0] == ' ' {
			return strings.TrimSpace(rest)
		}
	}

	return header
}
