package socket

import (
	"context"
	"encoding/json"

	"github.com/antarasi/authgate"
)

// Conn is the part of a websocket connection the handler needs
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Handler serves frames for duplex connections. One Handler is shared by
// every connection, each connection brings its own Session.
type Handler struct {
	gateway *authgate.Gateway
	logger  authgate.Logger
	baseCtx context.Context
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the logger
func WithLogger(logger authgate.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBaseContext sets the context connections run under. Cancelling it
// closes every open connection.
func WithBaseContext(ctx context.Context) Option {
	return func(h *Handler) {
		if ctx != nil {
			h.baseCtx = ctx
		}
	}
}

// NewHandler creates a Handler routing frames through gateway
func NewHandler(gateway *authgate.Gateway, opts ...Option) *Handler {
	h := &Handler{
		gateway: gateway,
		logger:  nopLogger{},
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Serve reads frames from conn and answers them in order until the
// connection fails or ctx is done.
func (h *Handler) Serve(ctx context.Context, conn Conn, session *authgate.Session) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := conn.WriteJSON(h.Handle(ctx, session, raw)); err != nil {
			return err
		}
	}
}

// Handle answers a single raw frame
func (h *Handler) Handle(ctx context.Context, session *authgate.Session, raw []byte) *Reply {
	frame, err := decodeFrame(raw)
	if err != nil {
		h.logger.Debug("bad frame", "error", err)
		return newReply(0, nil, err)
	}

	var result any
	switch frame.Type {
	case FrameAuthenticate:
		result, err = h.authenticate(ctx, session, frame)
	case FrameLogout:
		result, err = h.logout(ctx, session)
	case FrameCall:
		result, err = h.call(ctx, session, frame)
	default:
		err = errUnknownFrame
	}

	if err != nil {
		h.logger.Debug("frame failed", "id", frame.ID, "type", frame.Type, "path", frame.Path, "error", err)
	}
	return newReply(frame.ID, result, err)
}

// BindToken binds session to token when it is valid. Invalid tokens
// leave the session unauthenticated.
func (h *Handler) BindToken(ctx context.Context, session *authgate.Session, token string) error {
	result, err := h.gateway.Login(ctx, authgate.LoginRequest{
		Strategy:    authgate.StrategyJWT,
		AccessToken: token,
		Provider:    authgate.ProviderSocket,
	})
	if err != nil {
		return err
	}
	session.Bind(result.AccessToken, profile{p: result.Profile})
	return nil
}

func (h *Handler) authenticate(ctx context.Context, session *authgate.Session, frame *Frame) (any, error) {
	req := authgate.LoginRequest{}
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil, errBadFrame
		}
	}
	req.Provider = authgate.ProviderSocket

	result, err := h.gateway.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	session.Bind(result.AccessToken, profile{p: result.Profile})
	return result, nil
}

func (h *Handler) logout(ctx context.Context, session *authgate.Session) (any, error) {
	token := session.Token()
	session.Clear()
	return h.gateway.Logout(ctx, token, authgate.ProviderSocket)
}

func (h *Handler) call(ctx context.Context, session *authgate.Session, frame *Frame) (any, error) {
	return h.gateway.Call(ctx, &authgate.Call{
		Path:   frame.Path,
		Method: authgate.Method(frame.Method),
		ID:     frame.ResourceID,
		Data:   frame.Data,
		Params: session.Params(frame.Query),
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
