// Package notification delivers shared reports to recipients out of band.
package notification

import (
	"context"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/logger"
)

// severityColor returns a hex color for the given severity.
func severityColor(severity report.Severity) string {
	switch severity {
	case report.SeverityCritical:
		return "#dc2626" // Red
	case report.SeverityHigh:
		return "#ea580c" // Orange
	case report.SeverityMedium:
		return "#ca8a04" // Yellow
	case report.SeverityLow:
		return "#2563eb" // Blue
	default:
		return "#6b7280" // Gray
	}
}

// LogNotifier is the delivery fallback for environments without SMTP.
// Shares succeed and land in the log instead of a mailbox, which keeps
// the share endpoint usable in development.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.With("component", "log_notifier")}
}

// SendReportShare logs the share instead of delivering it.
func (n *LogNotifier) SendReportShare(_ context.Context, share app.ReportShare) error {
	n.logger.Info("report share (smtp disabled, logged only)",
		"report_id", share.Report.ID.String(),
		"recipient", share.RecipientEmail,
	)
	return nil
}
