package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ServerCloser is the part of the broadcast server the controller drives.
type ServerCloser interface {
	Close(ctx context.Context) error
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	State  *State
	Server ServerCloser
	Opener Opener
	// Viewer is the URL or file the open-viewer command launches.
	Viewer string
	// Exit runs once the server is stopped, typically cancelling the root context.
	Exit func()
	// CloseTimeout bounds the wait for the server to close. Default: 30s
	CloseTimeout time.Duration
	Sources      []Source
}

// Controller executes operator commands against the running server. It is the
// only writer of the server state after startup.
type Controller struct {
	cfg ControllerConfig

	shutdownOnce sync.Once
	shutdownErr  error
	viewers      sync.WaitGroup
}

// NewController creates a new command controller
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.State == nil {
		return nil, fmt.Errorf("controller state is required")
	}
	if cfg.Server == nil {
		return nil, fmt.Errorf("controller server is required")
	}
	if cfg.Opener == nil {
		cfg.Opener = NewBrowserOpener()
	}
	if cfg.Exit == nil {
		cfg.Exit = func() {}
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	return &Controller{cfg: cfg}, nil
}

// Run starts every command source and dispatches commands until ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	cmds := make(chan Command, 4)
	for _, src := range c.cfg.Sources {
		go func(src Source) {
			if err := src.Run(ctx, cmds); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("Command source unavailable")
			}
		}(src)
	}

	for {
		select {
		case <-ctx.Done():
			c.viewers.Wait()
			return ctx.Err()
		case cmd := <-cmds:
			if err := c.Handle(cmd); err != nil {
				log.WithError(err).WithField("command", cmd.String()).Error("An error occurred while handling command")
			}
		}
	}
}

// Handle executes one command. Open-viewer runs in the background and reports
// its own failure; shutdown blocks until the server is closed.
func (c *Controller) Handle(cmd Command) error {
	switch cmd {
	case CommandShutdown:
		return c.Shutdown()
	case CommandOpenViewer:
		c.viewers.Add(1)
		go func() {
			defer c.viewers.Done()
			if err := c.OpenViewer(); err != nil {
				log.WithError(err).Error("An error occurred while opening map view")
			}
		}()
		return nil
	default:
		return fmt.Errorf("unknown command %d", int(cmd))
	}
}

// OpenViewer launches the configured viewer.
func (c *Controller) OpenViewer() error {
	log.WithField("viewer", c.cfg.Viewer).Info("Opening map view in browser...")
	if err := c.cfg.Opener.Open(c.cfg.Viewer); err != nil {
		return fmt.Errorf("open viewer: %w", err)
	}
	return nil
}

// Shutdown moves the state to ShuttingDown, waits for the server to close,
// marks it Stopped and calls Exit. Later calls return the first result.
func (c *Controller) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.shutdown()
	})
	return c.shutdownErr
}

func (c *Controller) shutdown() error {
	if err := c.cfg.State.BeginShutdown(); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			log.WithField("state", c.cfg.State.Current().String()).Debug("Shutdown already in progress")
			return nil
		}
		return err
	}
	log.Info("Shutting down WebSocket server...")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CloseTimeout)
	defer cancel()

	closeErr := c.cfg.Server.Close(ctx)
	if closeErr != nil {
		log.WithError(closeErr).Error("Server did not close cleanly")
	}
	if err := c.cfg.State.MarkStopped(); err != nil {
		return errors.Join(closeErr, err)
	}
	log.Info("Shutdown Successful")
	c.cfg.Exit()
	return closeErr
}
