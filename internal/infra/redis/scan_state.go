package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

const (
	// Key patterns
	scanSnapshotKey = "scan:state:%s" // scan:state:{scan_id}

	// Snapshots outlive the longest expected scan so a watcher joining
	// late still sees the last known state.
	scanSnapshotTTL = 1 * time.Hour
)

// ScanStateStore keeps the latest event per scan in Redis so a subscriber
// joining mid-scan gets the current state immediately instead of waiting
// for the next published event.
type ScanStateStore struct {
	client *Client
	logger *logger.Logger
}

// NewScanStateStore creates a new ScanStateStore.
func NewScanStateStore(client *Client, log *logger.Logger) *ScanStateStore {
	return &ScanStateStore{
		client: client,
		logger: log,
	}
}

// SetSnapshot stores the latest event for a scan.
func (s *ScanStateStore) SetSnapshot(ctx context.Context, event *ScanEvent) error {
	key := fmt.Sprintf(scanSnapshotKey, event.ScanID)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal scan snapshot: %w", err)
	}

	if err := s.client.Set(ctx, key, string(data), scanSnapshotTTL); err != nil {
		return fmt.Errorf("failed to store scan snapshot: %w", err)
	}

	return nil
}

// GetSnapshot retrieves the latest event for a scan.
// Returns nil, nil if no snapshot exists.
func (s *ScanStateStore) GetSnapshot(ctx context.Context, scanID shared.ID) (*ScanEvent, error) {
	key := fmt.Sprintf(scanSnapshotKey, scanID.String())

	data, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scan snapshot: %w", err)
	}

	var event ScanEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan snapshot: %w", err)
	}

	return &event, nil
}

// RemoveSnapshot removes the snapshot for a scan (after deletion).
func (s *ScanStateStore) RemoveSnapshot(ctx context.Context, scanID shared.ID) error {
	key := fmt.Sprintf(scanSnapshotKey, scanID.String())
	if err := s.client.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to remove scan snapshot: %w", err)
	}
	return nil
}
