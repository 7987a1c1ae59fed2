package handler

import (
	"net/http"
	"time"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/pagination"
	"github.com/webscanio/api/pkg/validator"
)

// ScanHandler handles scan lifecycle requests.
type ScanHandler struct {
	scanService *app.ScanService
	validator   *validator.Validator
	logger      *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(scanService *app.ScanService, v *validator.Validator, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scanService: scanService,
		validator:   v,
		logger:      log.With("handler", "scan"),
	}
}

// ScanResponse is the wire view of a scan.
type ScanResponse struct {
	ID                 string               `json:"id"`
	OwnerID            string               `json:"ownerId"`
	URL                string               `json:"url"`
	Domain             string               `json:"domain"`
	ScanType           []string             `json:"scanType"`
	Status             string               `json:"status"`
	Progress           int                  `json:"progress"`
	Vulnerabilities    []scan.Vulnerability `json:"vulnerabilities"`
	VulnerabilityCount int                  `json:"vulnerabilityCount"`
	Error              string               `json:"error,omitempty"`
	StartedAt          *string              `json:"startedAt,omitempty"`
	CompletedAt        *string              `json:"completedAt,omitempty"`
	CreatedAt          string               `json:"createdAt"`
	UpdatedAt          string               `json:"updatedAt"`
}

// CreateScan handles POST /api/v1/scans
// @Summary      Create scan
// @Description  Queue a security scan of a target URL
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        request  body      app.CreateScanInput  true  "Scan request"
// @Success      201  {object}  ScanResponse
// @Failure      400  {object}  apierror.Response
// @Failure      401  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /scans [post]
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	var input app.CreateScanInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	created, err := h.scanService.CreateScan(r.Context(), caller, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusCreated, toScanResponse(created))
}

// GetScan handles GET /api/v1/scans/{id}
// @Summary      Get scan
// @Description  Return one of the caller's scans
// @Tags         Scans
// @Produce      json
// @Param        id   path      string  true  "Scan ID"
// @Success      200  {object}  ScanResponse
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /scans/{id} [get]
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	scanID, err := pathID(r, scan.NotFoundError())
	if err != nil {
		return err
	}

	sc, err := h.scanService.GetScan(r.Context(), caller, scanID)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toScanResponse(sc))
}

// ListScans handles GET /api/v1/scans
// @Summary      List scans
// @Description  List the caller's scans, newest first
// @Tags         Scans
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        domain  query     string  false  "Filter by registrable domain"
// @Param        search  query     string  false  "Search in URL and domain"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200  {object}  pagination.Result[ScanResponse]
// @Failure      400  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /scans [get]
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	input := app.ListScansInput{
		Status: r.URL.Query().Get("status"),
		Domain: r.URL.Query().Get("domain"),
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", pagination.DefaultLimit),
	}

	result, err := h.scanService.ListScans(r.Context(), caller, input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, pagination.Map(result, toScanResponse))
}

// CancelScan handles PATCH /api/v1/scans/{id}/cancel
// @Summary      Cancel scan
// @Description  Withdraw a scan that has not finished
// @Tags         Scans
// @Produce      json
// @Param        id   path      string  true  "Scan ID"
// @Success      200  {object}  ScanResponse
// @Failure      400  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /scans/{id}/cancel [patch]
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	scanID, err := pathID(r, scan.NotFoundError())
	if err != nil {
		return err
	}

	sc, err := h.scanService.CancelScan(r.Context(), caller, scanID)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toScanResponse(sc))
}

// DeleteScan handles DELETE /api/v1/scans/{id}
// @Summary      Delete scan
// @Description  Delete one of the caller's scans and its reports
// @Tags         Scans
// @Param        id   path      string  true  "Scan ID"
// @Success      204  "No Content"
// @Failure      403  {object}  apierror.Response
// @Failure      404  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /scans/{id} [delete]
func (h *ScanHandler) DeleteScan(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}
	scanID, err := pathID(r, scan.NotFoundError())
	if err != nil {
		return err
	}

	if err := h.scanService.DeleteScan(r.Context(), caller, scanID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func toScanResponse(s *scan.Scan) ScanResponse {
	types := make([]string, 0, len(s.Types))
	for _, t := range s.Types {
		types = append(types, string(t))
	}

	vulns := s.Vulnerabilities
	if vulns == nil {
		vulns = []scan.Vulnerability{}
	}

	resp := ScanResponse{
		ID:                 s.ID.String(),
		OwnerID:            s.OwnerID.String(),
		URL:                s.URL,
		Domain:             s.Domain,
		ScanType:           types,
		Status:             string(s.Status),
		Progress:           s.Progress,
		Vulnerabilities:    vulns,
		VulnerabilityCount: len(vulns),
		Error:              s.Error,
		CreatedAt:          s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          s.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if s.StartedAt != nil {
		started := s.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &started
	}
	if s.CompletedAt != nil {
		completed := s.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completed
	}

	return resp
}
