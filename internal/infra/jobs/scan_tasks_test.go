package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

type fakeProcessor struct {
	got shared.ID
	err error
}

func (f *fakeProcessor) ProcessScan(_ context.Context, scanID shared.ID) error {
	f.got = scanID
	return f.err
}

func TestScanTaskHandler_HandleExecute(t *testing.T) {
	scanID := shared.NewID()

	t.Run("dispatches to the processor", func(t *testing.T) {
		task, err := NewScanExecuteTask(ScanTaskPayload{
			ScanID:  scanID.String(),
			OwnerID: shared.NewID().String(),
			URL:     "https://example.com",
		})
		if err != nil {
			t.Fatalf("NewScanExecuteTask() unexpected error: %v", err)
		}
		if task.Type() != TypeScanExecute {
			t.Errorf("task type = %q, want %q", task.Type(), TypeScanExecute)
		}

		proc := &fakeProcessor{}
		h := NewScanTaskHandler(proc, logger.NewNop())
		if err := h.HandleExecute(context.Background(), task); err != nil {
			t.Fatalf("HandleExecute() unexpected error: %v", err)
		}
		if !proc.got.Equals(scanID) {
			t.Errorf("processor got scan %v, want %v", proc.got, scanID)
		}
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		task := asynq.NewTask(TypeScanExecute, []byte("{not json"))

		h := NewScanTaskHandler(&fakeProcessor{}, logger.NewNop())
		err := h.HandleExecute(context.Background(), task)
		if !errors.Is(err, asynq.SkipRetry) {
			t.Errorf("HandleExecute() error = %v, want SkipRetry", err)
		}
	})

	t.Run("invalid scan id is not retried", func(t *testing.T) {
		raw, _ := json.Marshal(ScanTaskPayload{ScanID: "not-a-uuid"})
		task := asynq.NewTask(TypeScanExecute, raw)

		h := NewScanTaskHandler(&fakeProcessor{}, logger.NewNop())
		err := h.HandleExecute(context.Background(), task)
		if !errors.Is(err, asynq.SkipRetry) {
			t.Errorf("HandleExecute() error = %v, want SkipRetry", err)
		}
	})

	t.Run("processor errors propagate for retry", func(t *testing.T) {
		raw, _ := json.Marshal(ScanTaskPayload{ScanID: scanID.String()})
		task := asynq.NewTask(TypeScanExecute, raw)

		procErr := errors.New("engine unavailable")
		h := NewScanTaskHandler(&fakeProcessor{err: procErr}, logger.NewNop())
		err := h.HandleExecute(context.Background(), task)
		if !errors.Is(err, procErr) {
			t.Errorf("HandleExecute() error = %v, want the processor error", err)
		}
		if errors.Is(err, asynq.SkipRetry) {
			t.Error("processor errors must stay retryable")
		}
	})
}
