package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ukydev/geolock/internal/metrics"
)

// ServerState is the lifecycle of the broadcast server.
type ServerState int32

const (
	StateStarting ServerState = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s ServerState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ErrInvalidTransition is returned for transitions the state machine forbids.
var ErrInvalidTransition = errors.New("invalid server state transition")

// State owns the server lifecycle:
//
//	Starting -> Running -> ShuttingDown -> Stopped
//
// Starting may also go straight to ShuttingDown. Stopped is terminal. Only the
// control plane mutates it; everyone else reads it or waits on its channels.
type State struct {
	mu           sync.RWMutex
	current      ServerState
	shuttingDown chan struct{}
	stopped      chan struct{}
}

// NewState creates a state machine in Starting.
func NewState() *State {
	metrics.ServerState.Set(float64(StateStarting))
	return &State{
		current:      StateStarting,
		shuttingDown: make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Current returns the current state.
func (s *State) Current() ServerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ShuttingDown is closed when the state leaves Running for good.
func (s *State) ShuttingDown() <-chan struct{} {
	return s.shuttingDown
}

// Stopped is closed once the server has fully closed.
func (s *State) Stopped() <-chan struct{} {
	return s.stopped
}

// MarkRunning records a successful bind.
func (s *State) MarkRunning() error {
	return s.transition(StateRunning, StateStarting)
}

// BeginShutdown starts a graceful shutdown.
func (s *State) BeginShutdown() error {
	return s.transition(StateShuttingDown, StateStarting, StateRunning)
}

// MarkStopped records that the server finished closing.
func (s *State) MarkStopped() error {
	return s.transition(StateStopped, StateShuttingDown)
}

func (s *State) transition(to ServerState, from ...ServerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := false
	for _, f := range from {
		if s.current == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.current, to)
	}

	s.current = to
	switch to {
	case StateShuttingDown:
		close(s.shuttingDown)
	case StateStopped:
		close(s.stopped)
	}
	metrics.ServerState.Set(float64(to))
	return nil
}
