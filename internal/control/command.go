// Package control is the operator's control plane: the server lifecycle state,
// the global commands that drive it, and the controller executing them.
package control

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Command is an operator request.
type Command int

const (
	CommandShutdown Command = iota + 1
	CommandOpenViewer
)

func (c Command) String() string {
	switch c {
	case CommandShutdown:
		return "shutdown"
	case CommandOpenViewer:
		return "open-viewer"
	default:
		return "unknown"
	}
}

// Source emits commands until ctx ends. Run blocks; it returns a non-nil error
// only when the source could not start.
type Source interface {
	Run(ctx context.Context, out chan<- Command) error
}

// SignalListener turns SIGINT and SIGTERM into shutdown commands.
type SignalListener struct {
	signals []os.Signal
}

// NewSignalListener creates a listener for the given signals, or for SIGINT and
// SIGTERM when none are given.
func NewSignalListener(signals ...os.Signal) *SignalListener {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return &SignalListener{signals: signals}
}

// Run implements Source.
func (l *SignalListener) Run(ctx context.Context, out chan<- Command) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, l.signals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			log.WithField("signal", sig.String()).Info("Received interrupt")
			if !emit(ctx, out, CommandShutdown) {
				return nil
			}
		}
	}
}

func emit(ctx context.Context, out chan<- Command, cmd Command) bool {
	select {
	case out <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}
