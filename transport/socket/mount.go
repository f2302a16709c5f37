package socket

import (
	"time"

	"github.com/antarasi/authgate"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// DefaultPath is where the websocket endpoint is mounted
const DefaultPath = "/socket"

// Mount returns a function registering the websocket endpoint at path on
// a fiber app. Plain HTTP requests to path get 426 Upgrade Required.
func (h *Handler) Mount(path string) func(app *fiber.App) {
	if path == "" {
		path = DefaultPath
	}

	return func(app *fiber.App) {
		app.Use(path, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})

		app.Get(path, websocket.New(func(c *websocket.Conn) {
			ctx := h.baseCtx
			session := authgate.NewSession()

			if token := c.Query("access_token"); token != "" {
				if err := h.BindToken(ctx, session, token); err != nil {
					h.logger.Debug("connect token rejected", "error", err)
				}
			}

			if err := h.Serve(ctx, c, session); err != nil && !websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Debug("socket closed", "error", err)
			}

			if session.IsAuthenticated() {
				h.logger.Debug("socket session ended",
					"user_id", session.Identity().ID(),
					"bound_for", time.Since(session.BoundAt()),
				)
			}
		}))
	}
}
