// Package websocket carries realtime sessions over websocket connections:
// it upgrades authenticated requests, feeds every inbound frame to the
// Dispatcher and drains outbound frames through a per-connection write
// pump.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/collabhub/internal/middleware"
	"github.com/nfrund/collabhub/internal/presence"
	"golang.org/x/sync/errgroup"
)

// Options tune accepted connections.
type Options struct {
	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer int
	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
	// AllowedOrigins are host patterns accepted in the Origin header. Empty
	// means same origin only.
	AllowedOrigins []string
}

// Handler upgrades authenticated requests and runs one session per
// connection.
type Handler struct {
	coord      *presence.Coordinator
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewHandler creates a Handler.
func NewHandler(coord *presence.Coordinator, dispatcher *Dispatcher, opts Options) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 * 1024
	}
	return &Handler{
		coord:      coord,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     slog.Default().With("component", "websocket"),
		conns:      make(map[string]*Conn),
	}
}

// Serve is the echo handler for GET /ws. It must run behind
// middleware.TokenAuth.
func (h *Handler) Serve(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication error"})
	}
	logger := middleware.FromContext(c.Request().Context())

	ws, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: h.opts.AllowedOrigins,
	})
	if err != nil {
		// Accept has already written the failure response.
		logger.Warn("Failed to upgrade connection to WebSocket", "user_id", user.ID, "error", err)
		return nil
	}
	ws.SetReadLimit(h.opts.ReadLimit)

	// The request context is cancelled once Serve returns; the session
	// runs inside Serve so that is exactly its lifetime.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	conn := newConn(ws, user.ID, h.opts.SendBuffer)
	h.track(conn)
	defer h.untrack(conn)

	go conn.writePump(ctx)

	h.coord.OnConnect(ctx, user.Summary(), conn)
	defer func() {
		h.coord.OnDisconnect(context.WithoutCancel(ctx), user.ID, conn)
		conn.close()
	}()

	h.readLoop(ctx, conn)
	return nil
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn) {
	for {
		typ, frame, err := conn.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				conn.logger.Info("WebSocket closed by client")
			case errors.Is(err, context.Canceled):
				conn.logger.Debug("WebSocket session cancelled")
			default:
				conn.logger.Info("WebSocket read ended", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			h.dispatcher.reply(ctx, conn, msgUnknownEvent)
			continue
		}
		// A command already read runs to completion even if the peer
		// goes away meanwhile.
		h.dispatcher.Dispatch(context.WithoutCancel(ctx), conn.userID, conn, frame)
	}
}

// Count returns the number of open connections, including replaced ones
// that have not closed yet.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every open connection with "going away". Each session
// then runs its normal disconnect path.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "Closing websocket connections", "count", len(conns))
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range conns {
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				c.ws.Close(websocket.StatusGoingAway, "server shutting down")
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				c.ws.CloseNow()
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

func (h *Handler) track(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Handler) untrack(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}
