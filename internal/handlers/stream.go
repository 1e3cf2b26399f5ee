package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/geolock/internal/broadcast"
)

// SessionHub runs viewer sessions.
type SessionHub interface {
	Attach(conn broadcast.Conn, transport string) error
	Count() int
}

// StreamHandler upgrades viewers to websocket and hands them to the hub
type StreamHandler struct {
	hub      SessionHub
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new websocket stream handler
func NewStreamHandler(hub SessionHub) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The viewer is a local file, so browsers send Origin "null".
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and blocks for the lifetime of the session
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected a WebSocket upgrade", http.StatusUpgradeRequired)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.WithError(err).WithField("remote", r.RemoteAddr).Warn("WebSocket upgrade failed")
		return
	}

	_ = h.hub.Attach(broadcast.NewWebsocketConn(ws), "websocket")
}
