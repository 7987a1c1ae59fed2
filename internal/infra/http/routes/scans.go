package routes

import (
	"github.com/webscanio/api/internal/infra/http/handler"
	"github.com/webscanio/api/pkg/logger"
)

// registerScanRoutes registers scan lifecycle endpoints.
// All scan routes require a verified caller; ownership is enforced in the
// application layer, so a valid token is necessary but not sufficient.
func registerScanRoutes(
	router Router,
	h *handler.ScanHandler,
	log *logger.Logger,
	gate Middleware,
	admitted []Middleware,
) {
	router.Group("/api/v1/scans", func(r Router) {
		// Create scan (queues for async execution)
		r.POST("/", handler.Wrap(log, h.CreateScan))

		// List caller's scans with filters and pagination
		r.GET("/", handler.Wrap(log, h.ListScans))

		// Get, cancel, delete specific scan
		r.GET("/{id}", handler.Wrap(log, h.GetScan))
		r.PATCH("/{id}/cancel", handler.Wrap(log, h.CancelScan))
		r.DELETE("/{id}", handler.Wrap(log, h.DeleteScan))
	}, protected(admitted, gate)...)
}
