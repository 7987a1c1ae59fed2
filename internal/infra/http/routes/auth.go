package routes

import (
	"github.com/webscanio/api/internal/infra/http/handler"
	"github.com/webscanio/api/pkg/logger"
)

// registerAuthRoutes registers authentication endpoints.
//
// Register, login, and refresh are reachable without a credential: they
// are how a client obtains one. They still pass admission, so credential
// stuffing burns the attacker's budget like any other traffic. Profile
// and WebSocket token endpoints require a verified caller.
func registerAuthRoutes(
	router Router,
	h *handler.AuthHandler,
	log *logger.Logger,
	gate Middleware,
	admitted []Middleware,
) {
	router.Group("/api/v1/auth", func(r Router) {
		// Public entry points
		r.POST("/register", handler.Wrap(log, h.Register))
		r.POST("/login", handler.Wrap(log, h.Login))
		r.POST("/refresh", handler.Wrap(log, h.Refresh))

		// Current account profile
		r.GET("/me", handler.Wrap(log, h.Me), gate)

		// Short-lived token for WebSocket handshakes, where the browser
		// cannot set an Authorization header
		r.GET("/ws-token", handler.Wrap(log, h.WSToken), gate)
	}, admitted...)
}
