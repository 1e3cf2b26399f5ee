package broadcast

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024
)

// ErrConnectionClosed reports that the viewer went away.
var ErrConnectionClosed = errors.New("connection closed")

// Conn is one viewer connection speaking the line protocol. WriteLine is only
// called from the session goroutine; Close may be called from anywhere.
type Conn interface {
	WriteLine(line string) error
	// Closed is closed once the peer disconnects.
	Closed() <-chan struct{}
	// Shutdown tells the peer the server is going away, then closes.
	Shutdown() error
	Close() error
	RemoteAddr() string
}

// WebsocketConn sends each line as one text frame.
type WebsocketConn struct {
	ws        *websocket.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

// NewWebsocketConn wraps an upgraded connection and starts draining its reads
// so pings, pongs and close frames are processed.
func NewWebsocketConn(ws *websocket.Conn) *WebsocketConn {
	c := &WebsocketConn{ws: ws, closed: make(chan struct{})}
	ws.SetReadLimit(maxMessageSize)
	go c.readPump()
	return c
}

func (c *WebsocketConn) readPump() {
	defer c.markClosed()
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			return
		}
	}
}

func (c *WebsocketConn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// WriteLine implements Conn.
func (c *WebsocketConn) WriteLine(line string) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return normalize(err)
	}
	return normalize(c.ws.WriteMessage(websocket.TextMessage, []byte(line)))
}

// Closed implements Conn.
func (c *WebsocketConn) Closed() <-chan struct{} { return c.closed }

// Shutdown implements Conn.
func (c *WebsocketConn) Shutdown() error {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.Close()
}

// Close implements Conn.
func (c *WebsocketConn) Close() error {
	return c.ws.Close()
}

// RemoteAddr implements Conn.
func (c *WebsocketConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// LineConn writes newline-terminated lines to a raw TCP connection.
type LineConn struct {
	conn      net.Conn
	w         *bufio.Writer
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLineConn wraps conn and watches it for the peer hanging up.
func NewLineConn(conn net.Conn) *LineConn {
	c := &LineConn{conn: conn, w: bufio.NewWriter(conn), closed: make(chan struct{})}
	go c.readPump()
	return c
}

func (c *LineConn) readPump() {
	defer c.closeOnce.Do(func() { close(c.closed) })
	// Viewers never send anything meaningful; reading only detects EOF.
	_, _ = io.Copy(io.Discard, io.LimitReader(c.conn, 1<<20))
}

// WriteLine implements Conn.
func (c *LineConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return normalize(err)
	}
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return normalize(err)
	}
	return normalize(c.w.Flush())
}

// Closed implements Conn.
func (c *LineConn) Closed() <-chan struct{} { return c.closed }

// Shutdown implements Conn.
func (c *LineConn) Shutdown() error { return c.Close() }

// Close implements Conn.
func (c *LineConn) Close() error { return c.conn.Close() }

// RemoteAddr implements Conn.
func (c *LineConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// normalize maps the many ways a peer hang-up surfaces to ErrConnectionClosed.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if isDisconnect(err) {
		return errors.Join(ErrConnectionClosed, err)
	}
	return err
}

func isDisconnect(err error) bool {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr),
		errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return false
}
