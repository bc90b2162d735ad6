package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const writeTimeout = 10 * time.Second

// Conn is one accepted websocket connection. It implements
// realtime.Channel: Send queues a frame on a bounded buffer drained by a
// single write pump, so a slow reader never blocks the sender.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	logger *slog.Logger

	mu     sync.RWMutex
	send   chan []byte
	closed bool
}

func newConn(ws *websocket.Conn, userID string, buffer int) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, buffer),
		logger: slog.Default().With("component", "websocket", "user_id", userID, "channel", id),
	}
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user that owns the connection.
func (c *Conn) UserID() string { return c.userID }

// Send queues frame for delivery. It reports false when the connection is
// closed or its buffer is full; the frame is dropped in both cases.
func (c *Conn) Send(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn("Client send channel full, dropping message", "buffer", cap(c.send))
		return false
	}
}

// close stops accepting frames and lets the write pump drain and exit.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump writes queued frames until the buffer is closed or a write
// fails.
func (c *Conn) writePump(ctx context.Context) {
	defer c.ws.Close(websocket.StatusNormalClosure, "")

	for frame := range c.send {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			c.logger.Debug("WebSocket write failed", "error", err)
			return
		}
	}
}
