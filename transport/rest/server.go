package rest

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/antarasi/authgate"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
)

//go:embed views
var viewsFS embed.FS

// Server is the request/response transport over fiber
type Server struct {
	app     *fiber.App
	gateway *authgate.Gateway
	scheme  string
	logger  authgate.Logger
	views   fs.FS
	mounts  []func(app *fiber.App)
	index   fiber.Map
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger authgate.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthScheme sets the Authorization header scheme
func WithAuthScheme(scheme string) Option {
	return func(s *Server) {
		s.scheme = scheme
	}
}

// WithViews replaces the embedded index and error views
func WithViews(views fs.FS) Option {
	return func(s *Server) {
		if views != nil {
			s.views = views
		}
	}
}

// WithMount registers extra routes before the resource routes and the
// not found handler, e.g. the websocket endpoint or /metrics.
func WithMount(mount func(app *fiber.App)) Option {
	return func(s *Server) {
		if mount != nil {
			s.mounts = append(s.mounts, mount)
		}
	}
}

// WithIndexData adds values to the index view
func WithIndexData(data fiber.Map) Option {
	return func(s *Server) {
		for k, v := range data {
			s.index[k] = v
		}
	}
}

// New creates the fiber app with every route registered
func New(gateway *authgate.Gateway, opts ...Option) (*Server, error) {
	s := &Server{
		gateway: gateway,
		scheme:  authgate.DefaultAuthScheme,
		logger:  nopLogger{},
		index:   fiber.Map{"title": "authgate"},
	}

	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	s.views = sub

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	engine := django.NewFileSystem(http.FS(s.views), ".html")
	if err := engine.Load(); err != nil {
		return nil, err
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "authgate",
		UnescapePath:          true,
		StrictRouting:         false,
		DisableStartupMessage: true,
		Views:                 engine,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(s.requestLogger)

	for _, mount := range s.mounts {
		mount(s.app)
	}

	s.routes()

	return s, nil
}

// App returns the fiber app, mostly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for in flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)

	s.app.Post("/authentication", s.handleLogin)
	s.app.Delete("/authentication", s.handleLogout)

	s.app.Get("/:service", s.handleCall(authgate.MethodFind, http.StatusOK))
	s.app.Post("/:service", s.handleCall(authgate.MethodCreate, http.StatusCreated))
	s.app.Get("/:service/:id", s.handleCall(authgate.MethodGet, http.StatusOK))
	s.app.Put("/:service/:id", s.handleCall(authgate.MethodUpdate, http.StatusOK))
	s.app.Patch("/:service/:id", s.handleCall(authgate.MethodPatch, http.StatusOK))
	s.app.Delete("/:service/:id", s.handleCall(authgate.MethodRemove, http.StatusOK))

	s.app.Use(func(c *fiber.Ctx) error {
		return authgate.ErrPageNotFound
	})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	data := fiber.Map{"paths": s.gateway.Paths()}
	for k, v := range s.index {
		data[k] = v
	}
	return c.Render("index", data)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	req := authgate.LoginRequest{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errInvalidBody
		}
	}
	req.Provider = authgate.ProviderREST

	result, err := s.gateway.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(result)
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	result, err := s.gateway.Logout(c.UserContext(), s.token(c), authgate.ProviderREST)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleCall(method authgate.Method, status int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := s.gateway.Call(c.UserContext(), &authgate.Call{
			Path:   c.Params("service"),
			Method: method,
			ID:     c.Params("id"),
			Data:   json.RawMessage(append([]byte(nil), c.Body()...)),
			Params: &authgate.Params{
				Provider:    authgate.ProviderREST,
				AccessToken: s.token(c),
				Query:       c.Queries(),
			},
		})
		if err != nil {
			return err
		}
		return c.Status(status).JSON(out)
	}
}

func (s *Server) token(c *fiber.Ctx) string {
	return authgate.ExtractToken(c.Get(fiber.HeaderAuthorization), s.scheme)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"duration", time.Since(start).String(),
	)
	return err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
