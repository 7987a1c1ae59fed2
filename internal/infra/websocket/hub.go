package websocket

import (
	"context"

	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

// Hub configuration constants
const (
	// Max connections per user
	maxConnectionsPerUser = 10
)

// ScanAccess resolves a scan for a caller. The lookup enforces ownership,
// so a successful resolve doubles as the subscribe authorization and
// provides the snapshot the client receives as its first frame.
type ScanAccess interface {
	GetScan(ctx context.Context, callerID, scanID shared.ID) (*scan.Scan, error)
}

// Hub maintains the set of active clients. Event fan-out lives in the
// ScanEventBus; the hub only tracks connections and tears their
// subscriptions down when they go.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// User connection counts
	userConnCounts map[string]int

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Event source shared with the scan worker
	bus *redis.ScanEventBus

	// Ownership-checked scan lookups for subscribe authorization
	scans ScanAccess

	logger *logger.Logger
}

// NewHub creates a new Hub.
func NewHub(bus *redis.ScanEventBus, scans ScanAccess, log *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		userConnCounts: make(map[string]int),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		bus:            bus,
		scans:          scans,
		logger:         log,
	}
}

// Run starts the hub's main loop. Client registration, unregistration,
// and shutdown all flow through here, so the maps need no locking.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopping")
			h.closeAllClients()
			return

		case client := <-h.register:
			count := h.userConnCounts[client.UserID.String()]
			if count >= maxConnectionsPerUser {
				h.logger.Warn("connection limit exceeded",
					"user_id", client.UserID.String(),
					"current", count,
					"max", maxConnectionsPerUser,
				)
				client.Close()
				continue
			}
			h.userConnCounts[client.UserID.String()] = count + 1
			h.clients[client] = true
			metrics.WebsocketConnections.Inc()

			h.logger.Debug("client registered",
				"client_id", client.ID,
				"user_id", client.UserID.String(),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.dropSubscriptions()
				metrics.WebsocketConnections.Dec()
				key := client.UserID.String()
				if count := h.userConnCounts[key]; count > 1 {
					h.userConnCounts[key] = count - 1
				} else {
					delete(h.userConnCounts, key)
				}
			}

			h.logger.Debug("client unregistered",
				"client_id", client.ID,
				"user_id", client.UserID.String(),
			)
		}
	}
}

// RegisterClient registers a new client.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// authorizeScan resolves a scan on behalf of a subscribing client.
// NotFound and Forbidden come back exactly as the REST surface would
// produce them, so subscribing to a foreign scan reveals nothing.
func (h *Hub) authorizeScan(ctx context.Context, callerID, scanID shared.ID) (*scan.Scan, error) {
	return h.scans.GetScan(ctx, callerID, scanID)
}

// closeAllClients closes all client connections.
func (h *Hub) closeAllClients() {
	for client := range h.clients {
		client.dropSubscriptions()
		client.Close()
		delete(h.clients, client)
		metrics.WebsocketConnections.Dec()
	}
	h.userConnCounts = make(map[string]int)
}

// Stats returns hub statistics.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Subscriptions: h.bus.SubscriberCount(),
	}
}

// HubStats contains hub statistics.
type HubStats struct {
	Subscriptions int `json:"subscriptions"`
}
