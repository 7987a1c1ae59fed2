package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webscanio/api/internal/infra/http/handler"
	"github.com/webscanio/api/internal/infra/websocket"
)

// registerHealthRoutes registers health check and metrics endpoints.
// These sit outside admission and the credential gate: orchestrator
// probes and scrapers carry no token and must never see a 429.
func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	router.GET("/healthz", h.Health)
	router.GET("/readyz", h.Ready)
	router.GET("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
}

// registerWebSocketRoutes registers the WebSocket endpoint for scan
// progress streaming.
//
// The credential gate accepts the short-lived token from /auth/ws-token
// via the "token" query parameter, since browsers cannot set headers on
// an upgrade request. Subscriptions are checked against ownership per
// channel inside the hub.
func registerWebSocketRoutes(
	router Router,
	h *websocket.Handler,
	gate Middleware,
	admitted []Middleware,
) {
	router.Group("/api/v1/ws", func(r Router) {
		r.GET("/", h.ServeWS)
	}, protected(admitted, gate)...)
}
