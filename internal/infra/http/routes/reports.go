package routes

import (
	"github.com/webscanio/api/internal/infra/http/handler"
	"github.com/webscanio/api/pkg/logger"
)

// registerReportRoutes registers report endpoints.
// Fixed segments (export, analytics, bulk-delete) are registered before
// the {id} routes so they never parse as report IDs.
func registerReportRoutes(
	router Router,
	h *handler.ReportHandler,
	log *logger.Logger,
	gate Middleware,
	admitted []Middleware,
) {
	router.Group("/api/v1/reports", func(r Router) {
		// Create report attached to an owned scan
		r.POST("/", handler.Wrap(log, h.CreateReport))

		// List caller's reports with filters and pagination
		r.GET("/", handler.Wrap(log, h.ListReports))

		// Export caller's reports as a downloadable artifact
		r.GET("/export", handler.Wrap(log, h.ExportReports))

		// Aggregated scan and report statistics for the caller
		r.GET("/analytics", handler.Wrap(log, h.GetAnalytics))

		// Delete several reports in one all-or-nothing operation
		r.POST("/bulk-delete", handler.Wrap(log, h.BulkDeleteReports))

		// Get, update, delete specific report
		r.GET("/{id}", handler.Wrap(log, h.GetReport))
		r.PATCH("/{id}", handler.Wrap(log, h.UpdateReport))
		r.DELETE("/{id}", handler.Wrap(log, h.DeleteReport))

		// Share report with a recipient by email
		r.POST("/{id}/share", handler.Wrap(log, h.ShareReport))
	}, protected(admitted, gate)...)
}
