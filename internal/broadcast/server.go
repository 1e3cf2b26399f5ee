package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thejerf/suture/v4"
)

// DefaultAddr is where viewers connect unless configured otherwise.
const DefaultAddr = "localhost:8765"

// Config configures the listening endpoints.
type Config struct {
	// Addr serves HTTP: the websocket endpoint, health and metrics.
	Addr string
	// TCPAddr serves the raw line protocol. Empty disables it.
	TCPAddr string
	// ShutdownTimeout bounds Close when the caller's context has no deadline.
	ShutdownTimeout time.Duration
}

// Server owns the listening sockets and hands accepted connections to a Hub.
type Server struct {
	cfg     Config
	hub     *Hub
	httpSrv *http.Server

	mu     sync.Mutex
	httpLn net.Listener
	tcpLn  net.Listener
	closed bool
}

// NewServer creates a server that serves handler over HTTP and feeds raw TCP
// connections to hub.
func NewServer(cfg Config, handler http.Handler, hub *Hub) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		cfg: cfg,
		hub: hub,
		httpSrv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Listen binds the configured endpoints. It is safe to call again after a
// listener failed; only missing listeners are bound.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return http.ErrServerClosed
	}

	if s.httpLn == nil {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		s.httpLn = ln
		log.WithField("addr", ln.Addr().String()).Info("WebSocket server listening")
	}
	if s.cfg.TCPAddr != "" && s.tcpLn == nil {
		ln, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.cfg.TCPAddr, err)
		}
		s.tcpLn = ln
		log.WithField("addr", ln.Addr().String()).Info("TCP line server listening")
	}
	return nil
}

// Addr returns the bound HTTP address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// TCPAddr returns the bound line-protocol address, or "" when disabled.
func (s *Server) TCPAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn == nil {
		return ""
	}
	return s.tcpLn.Addr().String()
}

// Serve accepts connections until the server is closed or ctx is done. It
// implements suture.Service; once closed it asks not to be restarted.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return suture.ErrDoNotRestart
		}
		return err
	}

	s.mu.Lock()
	httpLn, tcpLn := s.httpLn, s.tcpLn
	s.mu.Unlock()

	errCh := make(chan error, 2)
	go func() { errCh <- s.serveHTTP(httpLn) }()
	pending := 1
	if tcpLn != nil {
		pending++
		go func() { errCh <- s.serveTCP(tcpLn) }()
	}

	for pending > 0 {
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			err := s.Close(closeCtx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("Closing broadcast server after cancellation")
			}
			return ctx.Err()
		case err := <-errCh:
			pending--
			if err != nil && !s.isClosed() {
				return err
			}
		}
	}
	return suture.ErrDoNotRestart
}

func (s *Server) serveHTTP(ln net.Listener) error {
	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.dropListener(ln)
	return fmt.Errorf("http server: %w", err)
}

func (s *Server) serveTCP(ln net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				log.WithError(err).Warnf("Accept error, retrying in %v", backoff)
				time.Sleep(backoff)
				continue
			}
			s.dropListener(ln)
			return fmt.Errorf("tcp accept: %w", err)
		}
		backoff = 0
		go func() { _ = s.hub.Attach(NewLineConn(conn), "tcp") }()
	}
}

func (s *Server) dropListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ln {
	case s.httpLn:
		s.httpLn = nil
	case s.tcpLn:
		s.tcpLn = nil
	}
	_ = ln.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting, closes the listening sockets, then waits for the
// sessions to end (see Hub.Close). The sockets are closed by the time it
// returns, even when the wait is cut short.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tcpLn := s.tcpLn
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	// Hijacked websocket connections are not tracked by http.Server, so this
	// only closes the listener and idle keep-alive connections.
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if tcpLn != nil {
		if err := tcpLn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close tcp listener: %w", err))
		}
	}
	if err := s.hub.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	return errors.Join(errs...)
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string {
	return "broadcast-server"
}
