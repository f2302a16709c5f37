package authgate

import (
	"context"
	"sort"
	"strings"
)

type route struct {
	service Service
	hooks   HookSet
}

// Gateway is the transport independent entry point: both transports
// funnel logins and resource calls through it.
type Gateway struct {
	auth         *Auther
	routes       map[string]route
	logger       Logger
	activitySink ActivitySink
}

// NewGateway creates a Gateway using auth for logins and token checks
func NewGateway(auth *Auther) *Gateway {
	return &Gateway{
		auth:         auth,
		routes:       map[string]route{},
		logger:       newDefLogger("authgate.gateway"),
		activitySink: noopActivitySink{},
	}
}

func (g *Gateway) WithLogger(logger Logger) *Gateway {
	g.logger = normalizeLogger(logger, "authgate.gateway")
	return g
}

// WithActivitySink configures where gate rejections are reported
func (g *Gateway) WithActivitySink(sink ActivitySink) *Gateway {
	g.activitySink = normalizeActivitySink(sink)
	return g
}

// Use registers svc under path. Routes are expected to be registered
// before the transports start serving.
func (g *Gateway) Use(path string, svc Service, hooks HookSet) *Gateway {
	if hooks == nil {
		hooks = HookSet{}
	}
	g.routes[cleanPath(path)] = route{service: svc, hooks: hooks}
	return g
}

// Paths lists the registered service paths
func (g *Gateway) Paths() []string {
	out := make([]string, 0, len(g.routes))
	for p := range g.routes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Has reports whether a service is registered under path
func (g *Gateway) Has(path string) bool {
	_, ok := g.routes[cleanPath(path)]
	return ok
}

// Login runs a login strategy
func (g *Gateway) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	return g.auth.Login(ctx, req)
}

// Logout validates the token being discarded
func (g *Gateway) Logout(ctx context.Context, token, provider string) (*AuthResult, error) {
	return g.auth.Logout(ctx, token, provider)
}

// Call verifies the call's token once, runs the method's hooks and
// dispatches to the service. Rejections are terminal.
func (g *Gateway) Call(ctx context.Context, call *Call) (any, error) {
	if call.Params == nil {
		call.Params = &Params{}
	}
	p := call.Params

	r, ok := g.routes[cleanPath(call.Path)]
	if !ok {
		return nil, withMetadata(ErrPageNotFound, map[string]any{"path": call.Path})
	}

	if !call.Method.Valid() {
		return nil, withMetadata(ErrMethodNotAllowed, map[string]any{"method": string(call.Method)})
	}

	p.Identity, p.Claims, p.AuthErr = nil, nil, nil
	if p.AccessToken != "" {
		p.Identity, p.Claims, p.AuthErr = g.auth.Authenticate(ctx, p.AccessToken)
	}

	for _, hook := range r.hooks[call.Method] {
		if err := hook(ctx, call); err != nil {
			g.reject(ctx, call, err)
			return nil, err
		}
	}

	if p.Identity != nil {
		ctx = WithIdentity(ctx, p.Identity)
		ctx = WithClaims(ctx, p.Claims)
	}

	return dispatch(ctx, r.service, call)
}

func (g *Gateway) reject(ctx context.Context, call *Call, err error) {
	kind := KindOf(err)
	g.logger.Debug("gate rejected call",
		"path", call.Path,
		"method", string(call.Method),
		"provider", call.Params.Provider,
		"kind", kind,
	)

	event := ActivityEvent{
		EventType: ActivityEventGateRejected,
		Provider:  call.Params.Provider,
		Metadata: map[string]any{
			"path":   cleanPath(call.Path),
			"method": string(call.Method),
			"kind":   kind,
		},
	}
	if call.Params.Identity != nil {
		event.UserID = call.Params.Identity.ID()
	}
	emitActivity(ctx, g.activitySink, g.logger, event)
}

func dispatch(ctx context.Context, svc Service, call *Call) (any, error) {
	switch call.Method {
	case MethodFind:
		return svc.Find(ctx, call.Params)
	case MethodGet:
		return svc.Get(ctx, call.ID, call.Params)
	case MethodCreate:
		return svc.Create(ctx, call.Data, call.Params)
	case MethodUpdate:
		return svc.Update(ctx, call.ID, call.Data, call.Params)
	case MethodPatch:
		return svc.Patch(ctx, call.ID, call.Data, call.Params)
	case MethodRemove:
		return svc.Remove(ctx, call.ID, call.Params)
	default:
		return nil, ErrMethodNotAllowed
	}
}

func cleanPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
