package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/geolock/internal/models"
	"github.com/ukydev/geolock/internal/pipeline"
)

const scenarioLine = "Latitude=40.7128, Longitude=-74.006"

type fakeState struct{ ch chan struct{} }

func newFakeState() *fakeState { return &fakeState{ch: make(chan struct{})} }

func (s *fakeState) ShuttingDown() <-chan struct{} { return s.ch }

type fakeConn struct {
	mu        sync.Mutex
	lines     []string
	writeErr  error
	block     bool
	closed    chan struct{}
	closeOnce sync.Once
	shutdowns atomic.Int32
}

func newFakeConn() *fakeConn { return &fakeConn{closed: make(chan struct{})} }

func (c *fakeConn) WriteLine(line string) error {
	c.mu.Lock()
	block, werr := c.block, c.writeErr
	c.mu.Unlock()
	if block {
		<-c.closed
	}
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	if werr != nil {
		return werr
	}
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *fakeConn) Closed() <-chan struct{} { return c.closed }

func (c *fakeConn) Shutdown() error {
	c.shutdowns.Add(1)
	return c.Close()
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func attach(h *Hub, conn Conn) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.Attach(conn, "test") }()
	return done
}

func scenarioStore() *pipeline.Store {
	store := pipeline.NewStore()
	store.Replace(models.NewCoordinate(40.7128, -74.0060))
	return store
}

func TestSession_SendsImmediatelyThenEveryInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	hub := NewHub(HubConfig{Interval: 5 * time.Second, Clock: clock}, scenarioStore(), newFakeState())
	conn := newFakeConn()
	done := attach(hub, conn)

	assert.Eventually(t, func() bool { return len(conn.Lines()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(5 * time.Second)
	assert.Eventually(t, func() bool { return len(conn.Lines()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{scenarioLine, scenarioLine}, conn.Lines())

	_ = conn.Close()
	assert.ErrorIs(t, <-done, ErrConnectionClosed)
}

func TestSession_SendsNothingWithoutCoordinate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	store := pipeline.NewStore()
	hub := NewHub(HubConfig{Interval: time.Second, Clock: clock}, store, newFakeState())
	conn := newFakeConn()
	done := attach(hub, conn)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Empty(t, conn.Lines())

	store.Replace(models.NewCoordinate(1.5, 2.5))
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return len(conn.Lines()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Latitude=1.5, Longitude=2.5", conn.Lines()[0])

	_ = conn.Close()
	<-done
}

func TestHub_DisconnectEndsOnlyThatSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	hub := NewHub(HubConfig{Interval: time.Second, Clock: clock}, scenarioStore(), newFakeState())
	first, second := newFakeConn(), newFakeConn()
	firstDone := attach(hub, first)
	secondDone := attach(hub, second)

	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	assert.Equal(t, 2, hub.Count())

	_ = first.Close()
	assert.ErrorIs(t, <-firstDone, ErrConnectionClosed)
	assert.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	sent := len(second.Lines())
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return len(second.Lines()) == sent+1 }, time.Second, 5*time.Millisecond)

	_ = second.Close()
	<-secondDone
}

func TestHub_SendErrorEndsSession(t *testing.T) {
	hub := NewHub(HubConfig{Interval: time.Second, Clock: clockwork.NewFakeClock()}, scenarioStore(), newFakeState())
	conn := newFakeConn()
	conn.writeErr = errors.New("boom")

	err := hub.Attach(conn, "test")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, 0, hub.Count())
	select {
	case <-conn.Closed():
	default:
		t.Fatal("connection should be closed after a send error")
	}
}

func TestHub_StopsWhenShuttingDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	state := newFakeState()
	hub := NewHub(HubConfig{Interval: time.Second, Clock: clock}, scenarioStore(), state)
	conn := newFakeConn()
	done := attach(hub, conn)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	close(state.ch)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("session did not observe shutdown")
	}
	assert.Equal(t, int32(1), conn.shutdowns.Load())
}

func TestHub_CloseRejectsNewSessions(t *testing.T) {
	hub := NewHub(HubConfig{Interval: time.Second}, scenarioStore(), newFakeState())
	require.NoError(t, hub.Close(context.Background()))

	conn := newFakeConn()
	assert.ErrorIs(t, hub.Attach(conn, "test"), ErrHubClosed)
	assert.Equal(t, int32(1), conn.shutdowns.Load())
	assert.Empty(t, conn.Lines())
}

func TestHub_CloseEndsIdleSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	hub := NewHub(HubConfig{Interval: time.Second, Clock: clock}, scenarioStore(), newFakeState())
	conn := newFakeConn()
	done := attach(hub, conn)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	require.NoError(t, hub.Close(ctx))
	assert.NoError(t, <-done)
	assert.Equal(t, 0, hub.Count())
}

func TestHub_CloseForceClosesAfterLinger(t *testing.T) {
	hub := NewHub(HubConfig{Interval: time.Hour, Linger: 50 * time.Millisecond}, scenarioStore(), newFakeState())
	conn := newFakeConn()
	conn.block = true
	done := attach(hub, conn)
	assert.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, hub.Close(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.ErrorIs(t, <-done, ErrConnectionClosed)
}

func TestIsDisconnect(t *testing.T) {
	assert.True(t, isDisconnect(net.ErrClosed))
	assert.True(t, isDisconnect(fmt.Errorf("write: %w", syscall.EPIPE)))
	assert.True(t, isDisconnect(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.False(t, isDisconnect(errors.New("boom")))

	assert.NoError(t, normalize(nil))
	assert.ErrorIs(t, normalize(io.EOF), ErrConnectionClosed)
	assert.NotErrorIs(t, normalize(errors.New("boom")), ErrConnectionClosed)
}
