package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

// TypeScanExecute is the task type for running a scan.
const TypeScanExecute = "scan:execute"

// ScanTaskPayload contains data for executing a scan. The scan id is
// the source of truth; the rest is carried for logging only, the engine
// re-reads the record before running.
type ScanTaskPayload struct {
	ScanID  string `json:"scan_id"`
	OwnerID string `json:"owner_id"`
	URL     string `json:"url"`
}

// NewScanExecuteTask creates a task for executing a scan. Queue and
// retry options are applied at enqueue time by the Client.
func NewScanExecuteTask(payload ScanTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal scan payload: %w", err)
	}
	return asynq.NewTask(TypeScanExecute, data), nil
}

// ScanProcessor defines the interface for executing a scan.
// This is implemented by Engine.
type ScanProcessor interface {
	// ProcessScan runs the scan's checks and records the outcome.
	ProcessScan(ctx context.Context, scanID shared.ID) error
}

// ScanTaskHandler handles scan execution tasks.
type ScanTaskHandler struct {
	processor ScanProcessor
	logger    *logger.Logger
}

// NewScanTaskHandler creates a new scan task handler.
func NewScanTaskHandler(processor ScanProcessor, log *logger.Logger) *ScanTaskHandler {
	return &ScanTaskHandler{
		processor: processor,
		logger:    log,
	}
}

// HandleExecute handles the scan execution task.
func (h *ScanTaskHandler) HandleExecute(ctx context.Context, t *asynq.Task) error {
	var payload ScanTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("failed to unmarshal scan payload", "error", err)
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	scanID, err := shared.ParseID(payload.ScanID)
	if err != nil {
		h.logger.Error("invalid scan_id in task payload",
			"scan_id", payload.ScanID,
			"error", err,
		)
		// A malformed id never becomes valid; retrying is pointless.
		return fmt.Errorf("invalid scan_id: %w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("processing scan task",
		"scan_id", payload.ScanID,
		"url", payload.URL,
	)

	if err := h.processor.ProcessScan(ctx, scanID); err != nil {
		h.logger.Error("failed to process scan",
			"scan_id", payload.ScanID,
			"error", err,
		)
		return err
	}

	return nil
}

// RegisterHandlers registers scan task handlers with the asynq mux.
func (h *ScanTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScanExecute, h.HandleExecute)
}
