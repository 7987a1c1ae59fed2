package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/webscanio/api/internal/infra/redis"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/apierror"
	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Max scan subscriptions per connection
	maxSubscriptionsPerClient = 50

	// Budget for the ownership lookup behind a subscribe. The request
	// context is gone by the time the pumps run, so each lookup gets its
	// own deadline.
	authorizeTimeout = 5 * time.Second
)

// subscription ties a channel to its registration on the event bus.
type subscription struct {
	scanID shared.ID
	subID  string
}

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *logger.Logger

	// Identity
	ID     string
	UserID shared.ID

	// Active scan subscriptions (channel -> bus registration)
	subscriptions map[string]subscription
	subMu         sync.Mutex

	// State
	closed bool
	mu     sync.Mutex
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub, conn *websocket.Conn, userID shared.ID, log *logger.Logger) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		logger:        log,
		ID:            uuid.New().String(),
		UserID:        userID,
		subscriptions: make(map[string]subscription),
	}
}

// SendMessage sends a message to the client. A full send buffer drops the
// message rather than stalling the dispatcher behind one slow reader.
func (c *Client) SendMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// The send channel is closed under the same mutex, so a send can
	// never hit a closed channel.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message",
			"client_id", c.ID,
			"user_id", c.UserID.String(),
		)
	}
	return nil
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// ReadPump pumps messages from the WebSocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error",
					"client_id", c.ID,
					"error", err,
				)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("invalid websocket message",
				"client_id", c.ID,
				"error", err,
			)
			c.sendError("INVALID_MESSAGE", "Invalid message format", "")
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message so the client never has to split JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from client.
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MessageTypePing:
		c.SendMessage(NewMessage(MessageTypePong))
	default:
		c.sendError("UNKNOWN_MESSAGE_TYPE", "Unknown message type: "+string(msg.Type), "")
	}
}

// handleSubscribe processes subscribe requests. The ownership lookup is
// the authorization: a scan the caller cannot read is a channel the
// caller cannot watch. The resolved scan becomes the snapshot frame, so
// a subscriber starts from current state instead of a gap.
func (c *Client) handleSubscribe(msg *Message) {
	req := decodeChannelRequest(msg)
	if req.Channel == "" {
		c.sendError("INVALID_CHANNEL", "Channel is required", req.RequestID)
		return
	}

	scanID, ok := parseScanChannel(req.Channel)
	if !ok {
		c.sendError("INVALID_CHANNEL", "Unknown channel: "+req.Channel, req.RequestID)
		return
	}

	c.subMu.Lock()
	if _, exists := c.subscriptions[req.Channel]; exists {
		c.subMu.Unlock()
		// Repeated subscribe is a no-op confirm
		c.SendMessage(NewMessage(MessageTypeSubscribed).WithChannel(req.Channel).WithRequestID(req.RequestID))
		return
	}
	if len(c.subscriptions) >= maxSubscriptionsPerClient {
		c.subMu.Unlock()
		c.logger.Warn("subscription limit exceeded",
			"client_id", c.ID,
			"user_id", c.UserID.String(),
			"max", maxSubscriptionsPerClient,
		)
		c.sendError("SUBSCRIPTION_LIMIT", "Too many subscriptions", req.RequestID)
		return
	}
	c.subMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
	sc, err := c.hub.authorizeScan(ctx, c.UserID, scanID)
	cancel()
	if err != nil {
		apiErr := apierror.FromError(err)
		code := "SUBSCRIBE_FAILED"
		switch apiErr.Status {
		case http.StatusNotFound:
			code = "NOT_FOUND"
		case http.StatusForbidden:
			code = "FORBIDDEN"
		}
		c.sendError(code, apiErr.Message, req.RequestID)
		return
	}

	subID, events := c.hub.bus.Subscribe(scanID)

	c.subMu.Lock()
	if _, exists := c.subscriptions[req.Channel]; exists {
		// Lost a race against a duplicate subscribe on this connection
		c.subMu.Unlock()
		c.hub.bus.Unsubscribe(scanID, subID)
		c.SendMessage(NewMessage(MessageTypeSubscribed).WithChannel(req.Channel).WithRequestID(req.RequestID))
		return
	}
	c.subscriptions[req.Channel] = subscription{scanID: scanID, subID: subID}
	c.subMu.Unlock()

	go c.forwardEvents(req.Channel, events)

	c.logger.Debug("client subscribed",
		"client_id", c.ID,
		"channel", req.Channel,
	)

	c.SendMessage(NewMessage(MessageTypeSubscribed).WithChannel(req.Channel).WithRequestID(req.RequestID))
	c.SendMessage(NewMessage(MessageTypeSnapshot).WithChannel(req.Channel).WithData(snapshotEvent(sc)))
}

// handleUnsubscribe processes unsubscribe requests.
func (c *Client) handleUnsubscribe(msg *Message) {
	req := decodeChannelRequest(msg)
	if req.Channel == "" {
		c.sendError("INVALID_CHANNEL", "Channel is required", req.RequestID)
		return
	}

	c.subMu.Lock()
	sub, ok := c.subscriptions[req.Channel]
	if ok {
		delete(c.subscriptions, req.Channel)
	}
	c.subMu.Unlock()

	if ok {
		// Closes the event channel, which stops the forwarder
		c.hub.bus.Unsubscribe(sub.scanID, sub.subID)
		c.logger.Debug("client unsubscribed",
			"client_id", c.ID,
			"channel", req.Channel,
		)
	}

	c.SendMessage(NewMessage(MessageTypeUnsubscribed).WithChannel(req.Channel).WithRequestID(req.RequestID))
}

// forwardEvents relays bus events for one channel until the subscription
// is dropped.
func (c *Client) forwardEvents(channel string, events <-chan *redis.ScanEvent) {
	for event := range events {
		c.SendMessage(NewMessage(MessageTypeEvent).WithChannel(channel).WithData(event))
		metrics.WebsocketEventsForwardedTotal.Inc()
	}
}

// snapshotEvent renders the stored scan state in the same shape the
// worker publishes, so subscribers handle one payload format.
func snapshotEvent(sc *scan.Scan) *redis.ScanEvent {
	return &redis.ScanEvent{
		ScanID:    sc.ID.String(),
		OwnerID:   sc.OwnerID.String(),
		Status:    string(sc.Status),
		Progress:  sc.Progress,
		Error:     sc.Error,
		Timestamp: sc.UpdatedAt.UTC(),
	}
}

// dropSubscriptions releases every bus registration this client holds.
// Called by the hub when the connection goes away.
func (c *Client) dropSubscriptions() {
	c.subMu.Lock()
	subs := c.subscriptions
	c.subscriptions = make(map[string]subscription)
	c.subMu.Unlock()

	for _, sub := range subs {
		c.hub.bus.Unsubscribe(sub.scanID, sub.subID)
	}
}

// decodeChannelRequest reads the channel and request ID from a message,
// accepting them either nested in data or on the envelope itself.
func decodeChannelRequest(msg *Message) SubscribeRequest {
	var req SubscribeRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err == nil && req.Channel != "" {
			if req.RequestID == "" {
				req.RequestID = msg.RequestID
			}
			return req
		}
	}
	return SubscribeRequest{Channel: msg.Channel, RequestID: msg.RequestID}
}

// parseScanChannel validates a channel string as scan:{uuid}.
func parseScanChannel(channel string) (shared.ID, bool) {
	channelType, raw := ParseChannel(channel)
	if channelType != ChannelTypeScan {
		return shared.ID{}, false
	}
	id, err := shared.ParseID(raw)
	if err != nil {
		return shared.ID{}, false
	}
	return id, true
}

// sendError sends an error message to the client.
func (c *Client) sendError(code, message, requestID string) {
	errMsg := NewMessage(MessageTypeError).
		WithData(ErrorData{Code: code, Message: message}).
		WithRequestID(requestID)
	c.SendMessage(errMsg)
}
