// Package routes registers all HTTP routes for the API.
// Routes are organized by domain for maintainability.
package routes

import (
	"github.com/webscanio/api/internal/config"
	infrahttp "github.com/webscanio/api/internal/infra/http"
	"github.com/webscanio/api/internal/infra/http/handler"
	"github.com/webscanio/api/internal/infra/http/middleware"
	"github.com/webscanio/api/internal/infra/websocket"
	"github.com/webscanio/api/pkg/jwt"
	"github.com/webscanio/api/pkg/logger"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Scan      *handler.ScanHandler
	Report    *handler.ReportHandler
	WebSocket *websocket.Handler // nil when the event hub is not running
}

// AuthConfig holds what the credential gate needs for route registration.
type AuthConfig struct {
	Validator *jwt.Generator
	Users     middleware.SubjectStore
}

// Register registers all application routes.
// This keeps route definitions in the infrastructure layer, not in main.
//
// Routes are organized across multiple files by domain:
//   - auth.go: Registration, login, token refresh, profile
//   - scans.go: Scan lifecycle
//   - reports.go: Reports, export, analytics
//   - misc.go: Health, metrics, WebSocket
//
// Everything under /api/v1 sits behind the admission gate; health and
// metrics endpoints stay outside it so probes keep working when a client
// has spent its budget. The credential gate applies per group, which
// leaves the auth entry points reachable without a token.
func Register(
	router Router,
	h Handlers,
	cfg *config.Config,
	log *logger.Logger,
	authCfg AuthConfig,
	admitter middleware.Admitter,
) {
	gate := middleware.Auth(middleware.AuthConfig{
		JWT:    authCfg.Validator,
		Users:  authCfg.Users,
		Logger: log,
	})

	// Admission applies to every /api/v1 group when a counter store is
	// configured. Tests may register routes without one.
	var admitted []Middleware
	if cfg.RateLimit.Enabled && admitter != nil {
		admitted = append(admitted, middleware.Admission(admitter, log))
	}

	// Health and metrics (public, unmetered)
	registerHealthRoutes(router, h.Health)

	// Auth routes (entry points public, profile behind the gate)
	registerAuthRoutes(router, h.Auth, log, gate, admitted)

	// Scan lifecycle routes
	registerScanRoutes(router, h.Scan, log, gate, admitted)

	// Report routes (including export and analytics)
	registerReportRoutes(router, h.Report, log, gate, admitted)

	// WebSocket endpoint for scan progress streaming
	if h.WebSocket != nil {
		registerWebSocketRoutes(router, h.WebSocket, gate, admitted)
	}
}

// protected appends the credential gate to the admission chain.
func protected(admitted []Middleware, gate Middleware) []Middleware {
	chain := make([]Middleware, 0, len(admitted)+1)
	chain = append(chain, admitted...)
	return append(chain, gate)
}
