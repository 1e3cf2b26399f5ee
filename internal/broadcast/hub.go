package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/geolock/internal/metrics"
)

// DefaultInterval is the broadcast cadence.
const DefaultInterval = 5 * time.Second

// ErrHubClosed is returned by Attach once Close has been called.
var ErrHubClosed = errors.New("broadcast hub closed")

// StateReader exposes the part of the control plane a session cares about.
type StateReader interface {
	ShuttingDown() <-chan struct{}
}

// HubConfig configures session cadence.
type HubConfig struct {
	Interval time.Duration
	// Linger bounds how long Close waits for sessions before force-closing
	// them. Defaults to Interval.
	Linger time.Duration
	Clock  clockwork.Clock
}

// Hub runs and tracks viewer sessions for every transport.
type Hub struct {
	cfg    HubConfig
	coords CoordinateReader
	state  StateReader

	mu       sync.Mutex
	closing  bool
	sessions map[string]*Session
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewHub creates a new session hub.
func NewHub(cfg HubConfig, coords CoordinateReader, state StateReader) *Hub {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Linger <= 0 {
		cfg.Linger = cfg.Interval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Hub{
		cfg:      cfg,
		coords:   coords,
		state:    state,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
}

// Attach runs a session on conn and blocks until it ends. The connection is
// always closed on return.
func (h *Hub) Attach(conn Conn, transport string) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		_ = conn.Shutdown()
		return ErrHubClosed
	}
	s := &Session{
		ID:        uuid.NewString(),
		Transport: transport,
		conn:      conn,
		coords:    h.coords,
		interval:  h.cfg.Interval,
		clock:     h.cfg.Clock,
		stop:      h.state.ShuttingDown(),
		done:      h.done,
	}
	h.sessions[s.ID] = s
	h.wg.Add(1)
	h.mu.Unlock()

	metrics.SessionsActive.WithLabelValues(transport).Inc()
	logger := log.WithFields(log.Fields{
		"session":   s.ID,
		"transport": transport,
		"remote":    conn.RemoteAddr(),
	})
	logger.Info("Client connected")

	defer func() {
		h.mu.Lock()
		delete(h.sessions, s.ID)
		h.mu.Unlock()
		metrics.SessionsActive.WithLabelValues(transport).Dec()
		h.wg.Done()
	}()

	err := s.Run()
	switch {
	case err == nil:
		_ = conn.Shutdown()
		logger.Info("Session ended on shutdown")
	case errors.Is(err, ErrConnectionClosed):
		_ = conn.Close()
		logger.Info("Client connection closed.")
	default:
		_ = conn.Close()
		logger.WithError(err).Error("Session ended after send failure")
	}
	return err
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close refuses new sessions, tells running ones to stop, and waits for them
// for at most the linger period (or until ctx is done) before force-closing
// whatever is left.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return nil
	}
	h.closing = true
	close(h.done)
	h.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-h.cfg.Clock.After(h.cfg.Linger):
	case <-ctx.Done():
	}

	h.mu.Lock()
	remaining := len(h.sessions)
	for _, s := range h.sessions {
		_ = s.conn.Close()
	}
	h.mu.Unlock()
	if remaining > 0 {
		log.WithField("sessions", remaining).Warn("Force-closed sessions that outlived the shutdown linger")
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
