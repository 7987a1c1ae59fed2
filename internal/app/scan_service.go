package app

import (
	"context"
	"fmt"

	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/pagination"
)

// ScanQueue is the execution engine's intake. Enqueue hands a persisted
// scan to the engine; Remove withdraws a queued task and purges any
// engine-side progress state for the scan.
type ScanQueue interface {
	Enqueue(ctx context.Context, s *scan.Scan) error
	Remove(ctx context.Context, scanID shared.ID) error
}

// ScanEventPublisher announces scan status changes to live watchers.
type ScanEventPublisher interface {
	PublishStatus(ctx context.Context, s *scan.Scan) error
}

// ScanService manages the scan lifecycle on the gateway side. The
// execution engine owns in_progress/completed/failed; this service only
// creates scans and writes cancelled.
type ScanService struct {
	scanRepo scan.Repository
	queue    ScanQueue
	events   ScanEventPublisher
	logger   *logger.Logger
}

// NewScanService creates a new ScanService.
func NewScanService(
	scanRepo scan.Repository,
	queue ScanQueue,
	events ScanEventPublisher,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		scanRepo: scanRepo,
		queue:    queue,
		events:   events,
		logger:   log.With("service", "scan"),
	}
}

// CreateScanInput represents the input for creating a scan.
type CreateScanInput struct {
	URL      string   `json:"url" validate:"required,max=2048"`
	ScanType []string `json:"scanType" validate:"required,min=1,dive,scan_type"`
}

// CreateScan validates the request, persists a pending scan owned by the
// caller, and hands it to the execution engine. An enqueue failure fails
// the request; the orphaned record is removed best-effort.
func (s *ScanService) CreateScan(ctx context.Context, ownerID shared.ID, input CreateScanInput) (*scan.Scan, error) {
	types, err := scan.ParseCheckTypes(input.ScanType)
	if err != nil {
		return nil, err
	}

	sc, err := scan.NewScan(ownerID, input.URL, types)
	if err != nil {
		return nil, err
	}

	if err := s.scanRepo.Create(ctx, sc); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, sc); err != nil {
		s.logger.Error("failed to enqueue scan",
			"scan_id", sc.ID.String(),
			"error", err,
		)
		if delErr := s.scanRepo.Delete(ctx, sc.ID); delErr != nil {
			s.logger.Error("failed to remove unqueued scan",
				"scan_id", sc.ID.String(),
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("failed to enqueue scan: %w", err)
	}

	// Seed the live view so watchers joining before the engine picks the
	// scan up still see it as pending.
	if err := s.events.PublishStatus(ctx, sc); err != nil {
		s.logger.Warn("failed to publish scan created event",
			"scan_id", sc.ID.String(),
			"error", err,
		)
	}

	metrics.ScansCreatedTotal.Inc()
	s.logger.Info("scan created",
		"scan_id", sc.ID.String(),
		"owner_id", ownerID.String(),
		"domain", sc.Domain,
		"types", len(sc.Types),
	)

	return sc, nil
}

// GetScan returns a scan after an ownership check. The existence of a
// foreign scan is acknowledged but its body is never returned.
func (s *ScanService) GetScan(ctx context.Context, callerID, scanID shared.ID) (*scan.Scan, error) {
	sc, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !sc.OwnedBy(callerID) {
		return nil, shared.Forbidden("Access denied")
	}
	return sc, nil
}

// ListScansInput represents the query options for listing scans.
type ListScansInput struct {
	Status string
	Domain string
	Search string
	Page   int
	Limit  int
}

// ListScans lists the caller's scans, newest first.
func (s *ScanService) ListScans(ctx context.Context, callerID shared.ID, input ListScansInput) (pagination.Result[*scan.Scan], error) {
	filter := scan.Filter{
		OwnerID: &callerID,
		Domain:  input.Domain,
		Search:  input.Search,
	}

	if input.Status != "" {
		status, err := scan.ParseStatus(input.Status)
		if err != nil {
			return pagination.Result[*scan.Scan]{}, err
		}
		filter.Status = &status
	}

	return s.scanRepo.List(ctx, filter, pagination.New(input.Page, input.Limit))
}

// CancelScan withdraws a pending or running scan. Cancelling an already
// cancelled scan is a no-op success; completed and failed scans reject
// the request and keep their status.
func (s *ScanService) CancelScan(ctx context.Context, callerID, scanID shared.ID) (*scan.Scan, error) {
	sc, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !sc.OwnedBy(callerID) {
		return nil, shared.Forbidden("Access denied")
	}

	if sc.Status == scan.StatusCancelled {
		return sc, nil
	}

	if err := sc.Cancel(); err != nil {
		return nil, err
	}

	updated, err := s.scanRepo.UpdateIfStatus(ctx, sc, scan.StatusPending, scan.StatusInProgress)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race against the engine or another cancel; the stored
		// row is the truth.
		current, err := s.scanRepo.GetByID(ctx, scanID)
		if err != nil {
			return nil, err
		}
		if current.Status == scan.StatusCancelled {
			return current, nil
		}
		return nil, shared.InvalidInput(fmt.Sprintf("Cannot cancel scan in status %s", current.Status))
	}

	if err := s.events.PublishStatus(ctx, sc); err != nil {
		s.logger.Warn("failed to publish scan cancelled event",
			"scan_id", sc.ID.String(),
			"error", err,
		)
	}

	metrics.ScansFinishedTotal.WithLabelValues(string(scan.StatusCancelled)).Inc()
	s.logger.Info("scan cancelled", "scan_id", sc.ID.String())

	return sc, nil
}

// DeleteScan removes a scan and its reports. Engine cleanup runs first
// and its failure fails the whole operation, so a half-deleted scan
// cannot keep running in the engine.
func (s *ScanService) DeleteScan(ctx context.Context, callerID, scanID shared.ID) error {
	sc, err := s.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		return err
	}
	if !sc.OwnedBy(callerID) {
		return shared.Forbidden("Access denied")
	}

	if err := s.queue.Remove(ctx, scanID); err != nil {
		return fmt.Errorf("failed to remove scan from engine: %w", err)
	}

	if err := s.scanRepo.Delete(ctx, scanID); err != nil {
		return err
	}

	s.logger.Info("scan deleted", "scan_id", scanID.String())

	return nil
}
