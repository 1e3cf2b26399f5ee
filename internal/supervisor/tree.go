// Package supervisor runs the long-lived services under a suture tree so a
// crashing loop is logged and restarted with backoff without taking its
// siblings down.
package supervisor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

// TreeConfig tunes restart behaviour. Zero values take the defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns the restart settings used in production.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree groups the ingest side (coordinate poller) and the serving side
// (broadcast server, console display) under one root.
type Tree struct {
	root   *suture.Supervisor
	ingest *suture.Supervisor
	serve  *suture.Supervisor
}

// NewTree creates a new supervisor tree
func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := spec
	spec.EventHook = LogEvent

	t := &Tree{
		root:   suture.New("geolock", spec),
		ingest: suture.New("ingest", childSpec),
		serve:  suture.New("serve", childSpec),
	}
	t.root.Add(t.ingest)
	t.root.Add(t.serve)
	return t
}

// AddIngest supervises a service that feeds the coordinate store.
func (t *Tree) AddIngest(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// AddServe supervises a service that reads the coordinate store.
func (t *Tree) AddServe(svc suture.Service) suture.ServiceToken {
	return t.serve.Add(svc)
}

// ServeBackground starts the tree; the channel yields its result once ctx ends.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Serve runs the tree until ctx is done.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// LogEvent reports supervisor events through logrus.
func LogEvent(e suture.Event) {
	entry := log.WithFields(log.Fields(e.Map()))
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
		entry.Error(e.String())
	case suture.EventTypeBackoff, suture.EventTypeStopTimeout:
		entry.Warn(e.String())
	default:
		entry.Info(e.String())
	}
}
