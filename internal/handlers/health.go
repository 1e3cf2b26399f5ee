package handlers

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ukydev/geolock/internal/control"
	"github.com/ukydev/geolock/internal/models"
)

// StateReader reports the server lifecycle state.
type StateReader interface {
	Current() control.ServerState
}

// CoordinateSource is the read side of the coordinate store.
type CoordinateSource interface {
	Current() (models.Coordinate, bool)
	UpdatedAt() time.Time
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	State         string     `json:"state"`
	Sessions      int        `json:"sessions"`
	HasCoordinate bool       `json:"has_coordinate"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// HealthHandler reports server state, session count and coordinate freshness
type HealthHandler struct {
	state  StateReader
	hub    SessionHub
	coords CoordinateSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(state StateReader, hub SessionHub, coords CoordinateSource) *HealthHandler {
	return &HealthHandler{state: state, hub: hub, coords: coords}
}

// ServeHTTP answers 200 while running and 503 otherwise
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	current := h.state.Current()
	resp := HealthResponse{
		State:    current.String(),
		Sessions: h.hub.Count(),
	}
	if _, ok := h.coords.Current(); ok {
		resp.HasCoordinate = true
		at := h.coords.UpdatedAt()
		resp.UpdatedAt = &at
	}

	status := http.StatusOK
	if current != control.StateRunning {
		status = http.StatusServiceUnavailable
	}

	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to encode health", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
