package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
)

// ScanQueueAdapter wraps the job Client to implement app.ScanQueue.
type ScanQueueAdapter struct {
	client *Client
	state  *redis.ScanStateStore
}

// NewScanQueueAdapter creates a new adapter.
func NewScanQueueAdapter(client *Client, state *redis.ScanStateStore) *ScanQueueAdapter {
	return &ScanQueueAdapter{client: client, state: state}
}

// Enqueue hands a persisted scan to the execution engine.
func (a *ScanQueueAdapter) Enqueue(ctx context.Context, s *scan.Scan) error {
	return a.client.EnqueueScan(ctx, ScanTaskPayload{
		ScanID:  s.ID.String(),
		OwnerID: s.OwnerID.String(),
		URL:     s.URL,
	})
}

// Remove withdraws the scan's task and purges its live-state snapshot.
// The task goes first so a fresh run cannot repopulate the snapshot
// after it is cleared.
func (a *ScanQueueAdapter) Remove(ctx context.Context, scanID shared.ID) error {
	if err := a.client.RemoveScan(ctx, scanID); err != nil {
		return err
	}
	return a.state.RemoveSnapshot(ctx, scanID)
}

// ScanEventRecorder publishes scan status changes and keeps the
// per-scan snapshot current, implementing app.ScanEventPublisher.
// The snapshot is written before the publish so a watcher that joins
// on the heels of an event never reads state older than it.
type ScanEventRecorder struct {
	bus   *redis.ScanEventBus
	state *redis.ScanStateStore
}

// NewScanEventRecorder creates a new recorder.
func NewScanEventRecorder(bus *redis.ScanEventBus, state *redis.ScanStateStore) *ScanEventRecorder {
	return &ScanEventRecorder{bus: bus, state: state}
}

// PublishStatus records the scan's current status and announces it.
func (r *ScanEventRecorder) PublishStatus(ctx context.Context, s *scan.Scan) error {
	// One timestamp for both writes so the snapshot and the published
	// event describe the same moment.
	event := &redis.ScanEvent{
		ScanID:    s.ID.String(),
		OwnerID:   s.OwnerID.String(),
		Status:    string(s.Status),
		Progress:  s.Progress,
		Error:     s.Error,
		Timestamp: time.Now().UTC(),
	}

	if err := r.state.SetSnapshot(ctx, event); err != nil {
		return fmt.Errorf("store scan snapshot: %w", err)
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish scan event: %w", err)
	}

	return nil
}

// Ensure adapters implement the app interfaces
var _ app.ScanQueue = (*ScanQueueAdapter)(nil)
var _ app.ScanEventPublisher = (*ScanEventRecorder)(nil)
