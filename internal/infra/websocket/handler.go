package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/webscanio/api/internal/infra/http/middleware"
	"github.com/webscanio/api/pkg/apierror"
	"github.com/webscanio/api/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Access control is the short-lived credential, not the Origin
		// header; cross-origin dashboards are expected callers.
		return true
	},
}

// Handler handles WebSocket connections.
type Handler struct {
	hub    *Hub
	logger *logger.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: log,
	}
}

// ServeWS handles WebSocket upgrade requests.
// GET /api/v1/ws?token=xxx
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Identity comes from the credential gate
	subject := middleware.GetSubject(r.Context())
	if subject.IsZero() {
		h.logger.Warn("websocket connection attempt without auth",
			"remote_addr", r.RemoteAddr,
		)
		apierror.Unauthorized("Authentication required").WriteJSON(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			"user_id", subject.String(),
			"error", err,
		)
		return
	}

	client := NewClient(h.hub, conn, subject, h.logger)
	h.hub.RegisterClient(client)

	h.logger.Info("websocket client connected",
		"client_id", client.ID,
		"user_id", subject.String(),
		"remote_addr", r.RemoteAddr,
	)

	go client.WritePump()
	go client.ReadPump()
}
