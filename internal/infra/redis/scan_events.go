package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

// ScanEventChannel is the default Redis pub/sub channel for scan lifecycle events.
const ScanEventChannel = "scan:events"

// ScanEvent represents a scan lifecycle or progress update published by workers.
type ScanEvent struct {
	ScanID    string    `json:"scanId"`
	OwnerID   string    `json:"ownerId"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanEventBus fans scan events out from workers to in-process subscribers.
// Workers publish through Redis pub/sub so events cross process boundaries;
// each API instance runs one listener and dispatches to its own subscribers
// (typically websocket sessions watching a scan).
type ScanEventBus struct {
	client  *Client
	channel string
	logger  *logger.Logger

	// Subscribers keyed by scan, then by subscription.
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *ScanEvent
}

// NewScanEventBus creates a new ScanEventBus. An empty channel name falls
// back to ScanEventChannel.
func NewScanEventBus(client *Client, channel string, log *logger.Logger) *ScanEventBus {
	if channel == "" {
		channel = ScanEventChannel
	}
	return &ScanEventBus{
		client:      client,
		channel:     channel,
		logger:      log,
		subscribers: make(map[string]map[string]chan *ScanEvent),
	}
}

// Publish sends a scan event to all API instances.
// A zero Timestamp is stamped with the current time before publishing.
func (b *ScanEventBus) Publish(ctx context.Context, event *ScanEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish scan event: %w", err)
	}

	b.logger.Debug("published scan event",
		"scan_id", event.ScanID,
		"status", event.Status,
		"progress", event.Progress,
	)

	return nil
}

// Subscribe registers interest in events for one scan.
// Returns a subscription ID and a channel that receives matching events.
// The caller must call Unsubscribe with the returned ID when done.
func (b *ScanEventBus) Subscribe(scanID shared.ID) (string, <-chan *ScanEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subID := uuid.New().String()

	// Buffered channel to avoid blocking the dispatch loop
	ch := make(chan *ScanEvent, 10)

	key := scanID.String()
	if b.subscribers[key] == nil {
		b.subscribers[key] = make(map[string]chan *ScanEvent)
	}
	b.subscribers[key][subID] = ch

	b.logger.Debug("subscribed to scan events",
		"scan_id", key,
		"subscription_id", subID,
	)

	return subID, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *ScanEventBus) Unsubscribe(scanID shared.ID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := scanID.String()
	subs, ok := b.subscribers[key]
	if !ok {
		return
	}

	if ch, ok := subs[subID]; ok {
		close(ch)
		delete(subs, subID)
		b.logger.Debug("unsubscribed from scan events",
			"scan_id", key,
			"subscription_id", subID,
		)
	}

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}
}

// StartListener starts listening for Redis pub/sub messages and dispatches
// them to subscribers. This should be called once when the application starts.
func (b *ScanEventBus) StartListener(ctx context.Context) error {
	pubsub := b.client.Client().Subscribe(ctx, b.channel)

	// Wait for subscription confirmation
	_, err := pubsub.Receive(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to channel: %w", err)
	}

	b.logger.Info("scan event bus listening",
		"channel", b.channel,
	)

	go b.listenLoop(ctx, pubsub)

	return nil
}

func (b *ScanEventBus) listenLoop(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("scan event bus stopping")
			return

		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("pub/sub channel closed")
				return
			}

			var event ScanEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("failed to unmarshal scan event",
					"payload", msg.Payload,
					"error", err,
				)
				continue
			}

			b.dispatch(&event)
		}
	}
}

func (b *ScanEventBus) dispatch(event *ScanEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[event.ScanID]
	if !ok {
		return
	}

	dispatched := 0
	for subID, ch := range subs {
		select {
		case ch <- event:
			dispatched++
		default:
			// Channel full, subscriber is not keeping up
			b.logger.Debug("subscriber channel full, dropping scan event",
				"scan_id", event.ScanID,
				"subscription_id", subID,
			)
		}
	}

	b.logger.Debug("dispatched scan event",
		"scan_id", event.ScanID,
		"subscribers", len(subs),
		"dispatched", dispatched,
	)
}

// SubscriberCount returns the current number of subscriptions across all scans.
func (b *ScanEventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	return total
}
