package app

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/pagination"
)

// ReportNotifier delivers a shared report to a recipient out of band.
type ReportNotifier interface {
	SendReportShare(ctx context.Context, share ReportShare) error
}

// ReportShare carries what the notifier needs to deliver one share.
type ReportShare struct {
	Report         *report.Report
	RecipientEmail string
	Message        string
}

// ReportExporter builds an export artifact from a set of reports and
// stores it, returning a descriptor of the stored object.
type ReportExporter interface {
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}

// ExportRequest is the exporter's input.
type ExportRequest struct {
	OwnerID     shared.ID
	Format      string
	Compression string
	Reports     []*report.Report
}

// ExportResult describes a stored export artifact.
type ExportResult struct {
	Format      string `json:"format"`
	ObjectKey   string `json:"objectKey"`
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size"`
	Count       int    `json:"count"`
	ContentType string `json:"contentType"`
}

// Export formats the API accepts. Checked before any store access so an
// unsupported format never costs a query.
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
	ExportFormatYAML = "yaml"
)

// Compression codecs the exporter supports.
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// ReportService manages the report lifecycle. Reports are always read
// and written in the caller's ownership scope.
type ReportService struct {
	reportRepo report.Repository
	scanRepo   scan.Repository
	notifier   ReportNotifier
	exporter   ReportExporter
	logger     *logger.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(
	reportRepo report.Repository,
	scanRepo scan.Repository,
	notifier ReportNotifier,
	exporter ReportExporter,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		scanRepo:   scanRepo,
		notifier:   notifier,
		exporter:   exporter,
		logger:     log.With("service", "report"),
	}
}

// CreateReportInput represents the input for creating a report.
type CreateReportInput struct {
	ScanID   string           `json:"scanId" validate:"required"`
	Title    string           `json:"title" validate:"required,max=200"`
	Summary  string           `json:"summary"`
	Severity string           `json:"severity" validate:"omitempty,severity"`
	Findings []report.Finding `json:"findings"`
}

// CreateReport creates a report against one of the caller's scans. The
// referenced scan must exist and be owned by the caller.
func (s *ReportService) CreateReport(ctx context.Context, callerID shared.ID, input CreateReportInput) (*report.Report, error) {
	scanID, err := shared.ParseID(input.ScanID)
	if err != nil {
		return nil, err
	}

	sc, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !sc.OwnedBy(callerID) {
		return nil, shared.Forbidden("Access denied")
	}

	rep, err := report.NewReport(callerID, scanID, input.Title, input.Summary, report.Severity(input.Severity), input.Findings)
	if err != nil {
		return nil, err
	}

	if err := s.reportRepo.Create(ctx, rep); err != nil {
		return nil, err
	}

	metrics.ReportsCreatedTotal.Inc()
	s.logger.Info("report created",
		"report_id", rep.ID.String(),
		"scan_id", scanID.String(),
		"owner_id", callerID.String(),
	)

	return rep, nil
}

// GetReport returns a report after an ownership check.
func (s *ReportService) GetReport(ctx context.Context, callerID, reportID shared.ID) (*report.Report, error) {
	rep, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !rep.OwnedBy(callerID) {
		return nil, shared.Forbidden("Access denied")
	}
	return rep, nil
}

// ListReportsInput represents the query options for listing reports.
type ListReportsInput struct {
	Severity string
	ScanID   string
	Search   string
	Page     int
	Limit    int
}

// ListReports lists the caller's reports, newest first.
func (s *ReportService) ListReports(ctx context.Context, callerID shared.ID, input ListReportsInput) (pagination.Result[*report.Report], error) {
	filter := report.Filter{
		OwnerID: &callerID,
		Search:  input.Search,
	}

	if input.Severity != "" {
		severity, err := report.ParseSeverity(input.Severity)
		if err != nil {
			return pagination.Result[*report.Report]{}, err
		}
		filter.Severity = &severity
	}

	if input.ScanID != "" {
		scanID, err := shared.ParseID(input.ScanID)
		if err != nil {
			return pagination.Result[*report.Report]{}, err
		}
		filter.ScanID = &scanID
	}

	return s.reportRepo.List(ctx, filter, pagination.New(input.Page, input.Limit))
}

// UpdateReportInput represents a partial report update. Nil fields are
// left untouched; an empty findings list clears the findings.
type UpdateReportInput struct {
	Title    *string          `json:"title" validate:"omitempty,max=200"`
	Summary  *string          `json:"summary"`
	Severity *string          `json:"severity" validate:"omitempty,severity"`
	Findings []report.Finding `json:"findings"`
}

// UpdateReport merges the provided fields into one of the caller's
// reports and returns the merged record.
func (s *ReportService) UpdateReport(ctx context.Context, callerID, reportID shared.ID, input UpdateReportInput) (*report.Report, error) {
	rep, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !rep.OwnedBy(callerID) {
		return nil, shared.Forbidden("Access denied")
	}

	if input.Title != nil {
		if err := rep.SetTitle(*input.Title); err != nil {
			return nil, err
		}
	}
	if input.Summary != nil {
		rep.SetSummary(*input.Summary)
	}
	if input.Severity != nil {
		if err := rep.SetSeverity(report.Severity(*input.Severity)); err != nil {
			return nil, err
		}
	}
	if input.Findings != nil {
		if err := rep.SetFindings(input.Findings); err != nil {
			return nil, err
		}
	}

	if err := s.reportRepo.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.logger.Info("report updated", "report_id", rep.ID.String())

	return rep, nil
}

// DeleteReport removes one of the caller's reports.
func (s *ReportService) DeleteReport(ctx context.Context, callerID, reportID shared.ID) error {
	rep, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	if !rep.OwnedBy(callerID) {
		return shared.Forbidden("Access denied")
	}

	if err := s.reportRepo.Delete(ctx, reportID); err != nil {
		return err
	}

	s.logger.Info("report deleted", "report_id", reportID.String())

	return nil
}

// ShareReportInput represents the input for sharing a report.
type ShareReportInput struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email,max=255"`
	Message        string `json:"message" validate:"omitempty,max=2000"`
}

// ShareReportResult confirms a share without echoing the report body.
type ShareReportResult struct {
	Shared         bool   `json:"shared"`
	RecipientEmail string `json:"recipientEmail"`
}

// ShareReport sends one of the caller's reports to a recipient through
// the notifier and returns a confirmation, not the report itself.
func (s *ReportService) ShareReport(ctx context.Context, callerID, reportID shared.ID, input ShareReportInput) (*ShareReportResult, error) {
	if _, err := mail.ParseAddress(input.RecipientEmail); err != nil {
		return nil, shared.InvalidInput("Invalid recipient email address")
	}

	rep, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !rep.OwnedBy(callerID) {
		return nil, shared.Forbidden("Access denied")
	}

	share := ReportShare{
		Report:         rep,
		RecipientEmail: input.RecipientEmail,
		Message:        input.Message,
	}
	if err := s.notifier.SendReportShare(ctx, share); err != nil {
		s.logger.Error("failed to send report share",
			"report_id", reportID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to send report share: %w", err)
	}

	metrics.ReportSharesTotal.Inc()
	s.logger.Info("report shared",
		"report_id", reportID.String(),
		"recipient", input.RecipientEmail,
	)

	return &ShareReportResult{
		Shared:         true,
		RecipientEmail: input.RecipientEmail,
	}, nil
}

// ExportReportsInput represents the query options for an export.
type ExportReportsInput struct {
	Format      string
	Compression string
	Severity    string
}

// ExportReports builds an export artifact of the caller's reports. The
// format is checked before any store access.
func (s *ReportService) ExportReports(ctx context.Context, callerID shared.ID, input ExportReportsInput) (*ExportResult, error) {
	switch input.Format {
	case ExportFormatJSON, ExportFormatCSV, ExportFormatYAML:
	default:
		return nil, shared.InvalidInput(fmt.Sprintf("Unsupported export format: %s", input.Format))
	}
	switch input.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return nil, shared.InvalidInput(fmt.Sprintf("Unsupported compression: %s", input.Compression))
	}

	filter := report.Filter{OwnerID: &callerID}
	if input.Severity != "" {
		severity, err := report.ParseSeverity(input.Severity)
		if err != nil {
			return nil, err
		}
		filter.Severity = &severity
	}

	reports, err := s.reportRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	result, err := s.exporter.Export(ctx, ExportRequest{
		OwnerID:     callerID,
		Format:      input.Format,
		Compression: input.Compression,
		Reports:     reports,
	})
	if err != nil {
		s.logger.Error("failed to export reports",
			"owner_id", callerID.String(),
			"format", input.Format,
			"error", err,
		)
		return nil, fmt.Errorf("failed to export reports: %w", err)
	}

	s.logger.Info("reports exported",
		"owner_id", callerID.String(),
		"format", input.Format,
		"count", result.Count,
		"object_key", result.ObjectKey,
	)

	return result, nil
}

// BulkDeleteInput represents the input for a bulk delete.
type BulkDeleteInput struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// BulkDeleteResult reports how many reports a bulk delete removed.
type BulkDeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// BulkDeleteReports deletes a set of the caller's reports atomically.
// If any requested id is missing from the caller's ownership scope the
// whole operation fails and nothing is deleted.
func (s *ReportService) BulkDeleteReports(ctx context.Context, callerID shared.ID, input BulkDeleteInput) (*BulkDeleteResult, error) {
	if len(input.IDs) == 0 {
		return nil, shared.InvalidInput("No report IDs provided")
	}

	// Duplicate ids would make the owned-subset count undershoot the
	// request size, so they are collapsed before the comparison.
	ids := make([]shared.ID, 0, len(input.IDs))
	seen := make(map[shared.ID]struct{}, len(input.IDs))
	for _, raw := range input.IDs {
		id, err := shared.ParseID(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	reports, err := s.reportRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	owned := 0
	for _, rep := range reports {
		if rep.OwnedBy(callerID) {
			owned++
		}
	}
	if owned != len(ids) {
		return nil, shared.Forbidden("Access denied")
	}

	deleted, err := s.reportRepo.DeleteManyOwned(ctx, callerID, ids)
	if err != nil {
		return nil, err
	}

	s.logger.Info("reports bulk deleted",
		"owner_id", callerID.String(),
		"count", deleted,
	)

	return &BulkDeleteResult{DeletedCount: deleted}, nil
}
