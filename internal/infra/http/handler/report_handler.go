package handler

import (
	"net/http"
	"time"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/pagination"
	"github.com/webscanio/api/pkg/validator"
)

// ReportHandler handles report lifecycle requests. The analytics view
// lives here too because it is served under the reports surface.
type ReportHandler struct {
	reportService    *app.ReportService
	analyticsService *app.AnalyticsService
	validator        *validator.Validator
	logger           *logger.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	reportService *app.ReportService,
	analyticsService *app.AnalyticsService,
	v *validator.Validator,
	log *logger.Logger,
) *ReportHandler {
	return &ReportHandler{
		reportService:    reportService,
		analyticsService: analyticsService,
		validator:        v,
		logger:           log.With("handler", "report"),
	}
}

// ReportResponse is the wire view of a report.
type ReportResponse struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"ownerId"`
	ScanID    string           `json:"scanId"`
	Title     string           `json:"title"`
	Summary   string           `json:"summary"`
	Severity  string           `json:"severity"`
	Findings  []report.Finding `json:"findings"`
	CreatedAt string           `json:"createdAt"`
	UpdatedAt string           `json:"updatedAt"`
}

// CreateReport handles POST /api/v1/reports
// @Summary      Create report
// @Description  Create a report against one of the caller's scans
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        request  body      app.CreateReportInput  true  "Report details"
// @Success      201  {object}  ReportResponse
// @Failure      400  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports [post]
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	var input app.CreateReportInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	created, err := h.reportService.CreateReport(r.Context(), caller, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusCreated, toReportResponse(created))
}

// GetReport handles GET /api/v1/reports/{id}
// @Summary      Get report
// @Description  Return one of the caller's reports
// @Tags         Reports
// @Produce      json
// @Param        id   path      string  true  "Report ID"
// @Success      200  {object}  ReportResponse
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/{id} [get]
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	reportID, err := pathID(r, report.NotFoundError())
	if err != nil {
		return err
	}

	rep, err := h.reportService.GetReport(r.Context(), caller, reportID)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toReportResponse(rep))
}

// ListReports handles GET /api/v1/reports
// @Summary      List reports
// @Description  List the caller's reports, newest first
// @Tags         Reports
// @Produce      json
// @Param        severity  query     string  false  "Filter by severity"
// @Param        scanId    query     string  false  "Filter by scan"
// @Param        search    query     string  false  "Search in title and summary"
// @Param        page      query     int     false  "Page number"
// @Param        limit     query     int     false  "Page size"
// @Success      200  {object}  pagination.Result[ReportResponse]
// @Failure      400  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports [get]
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	input := app.ListReportsInput{
		Severity: r.URL.Query().Get("severity"),
		ScanID:   r.URL.Query().Get("scanId"),
		Search:   r.URL.Query().Get("search"),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", pagination.DefaultLimit),
	}

	result, err := h.reportService.ListReports(r.Context(), caller, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, pagination.Map(result, toReportResponse))
}

// UpdateReport handles PATCH /api/v1/reports/{id}
// @Summary      Update report
// @Description  Merge the provided fields into one of the caller's reports
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Report ID"
// @Param        request  body      app.UpdateReportInput  true  "Fields to update"
// @Success      200  {object}  ReportResponse
// @Failure      400  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/{id} [patch]
func (h *ReportHandler) UpdateReport(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	reportID, err := pathID(r, report.NotFoundError())
	if err != nil {
		return err
	}

	var input app.UpdateReportInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	rep, err := h.reportService.UpdateReport(r.Context(), caller, reportID, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toReportResponse(rep))
}

// DeleteReport handles DELETE /api/v1/reports/{id}
// @Summary      Delete report
// @Description  Delete one of the caller's reports
// @Tags         Reports
// @Param        id   path      string  true  "Report ID"
// @Success      204  "No Content"
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/{id} [delete]
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	reportID, err := pathID(r, report.NotFoundError())
	if err != nil {
		return err
	}

	if err := h.reportService.DeleteReport(r.Context(), caller, reportID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// ShareReport handles POST /api/v1/reports/{id}/share
// @Summary      Share report
// @Description  Send one of the caller's reports to a recipient by email
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Report ID"
// @Param        request  body      app.ShareReportInput  true  "Recipient"
// @Success      200  {object}  app.ShareReportResult
// @Failure      400  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/{id}/share [post]
func (h *ReportHandler) ShareReport(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	reportID, err := pathID(r, report.NotFoundError())
	if err != nil {
		return err
	}

	var input app.ShareReportInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	result, err := h.reportService.ShareReport(r.Context(), caller, reportID, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, result)
}

// ExportReports handles GET /api/v1/reports/export
// @Summary      Export reports
// @Description  Build an export artifact of the caller's reports and store it
// @Tags         Reports
// @Produce      json
// @Param        format       query     string  true   "Export format: json, csv, or yaml"
// @Param        compression  query     string  false  "Compression: gzip or zstd"
// @Param        severity     query     string  false  "Filter by severity"
// @Success      200  {object}  app.ExportResult
// @Failure      400  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/export [get]
func (h *ReportHandler) ExportReports(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	input := app.ExportReportsInput{
		Format:      r.URL.Query().Get("format"),
		Compression: r.URL.Query().Get("compression"),
		Severity:    r.URL.Query().Get("severity"),
	}

	result, err := h.reportService.ExportReports(r.Context(), caller, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, result)
}

// BulkDeleteReports handles POST /api/v1/reports/bulk-delete
// @Summary      Bulk delete reports
// @Description  Delete a set of the caller's reports, all or nothing
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        request  body      app.BulkDeleteInput  true  "Report IDs"
// @Success      200  {object}  app.BulkDeleteResult
// @Failure      400  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/bulk-delete [post]
func (h *ReportHandler) BulkDeleteReports(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	var input app.BulkDeleteInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	result, err := h.reportService.BulkDeleteReports(r.Context(), caller, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, result)
}

// GetAnalytics handles GET /api/v1/reports/analytics
// @Summary      Report analytics
// @Description  Return aggregates over the caller's scans and reports
// @Tags         Reports
// @Produce      json
// @Success      200  {object}  app.AnalyticsResult
// @Failure      401  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /reports/analytics [get]
func (h *ReportHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	result, err := h.analyticsService.GetAnalytics(r.Context(), caller)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, result)
}

func toReportResponse(rep *report.Report) ReportResponse {
	findings := rep.Findings
	if findings == nil {
		findings = []report.Finding{}
	}

	return ReportResponse{
		ID:        rep.ID.String(),
		OwnerID:   rep.OwnerID.String(),
		ScanID:    rep.ScanID.String(),
		Title:     rep.Title,
		Summary:   rep.Summary,
		Severity:  string(rep.Severity),
		Findings:  findings,
		CreatedAt: rep.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rep.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
