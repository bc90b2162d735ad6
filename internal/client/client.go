// Package client keeps one logical realtime connection to the server
// alive, reconnecting with exponential backoff after transport failures.
//
// Room subscriptions do not survive a reconnect on the server side. The
// OnConnect hook runs after every successful (re)connect and is where a
// consumer re-joins the rooms it cares about.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nfrund/collabhub/internal/backoff"
	"github.com/nfrund/collabhub/internal/realtime"
)

var (
	// ErrAuthentication is terminal: the server refused the token.
	ErrAuthentication = errors.New("authentication error")
	// ErrRetriesExhausted is returned when every reconnect attempt failed.
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	// ErrNotConnected is returned by Send while no transport is open.
	ErrNotConnected = errors.New("not connected")
)

// State is the connection state reported to OnStateChange.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// DefaultPolicy waits 1s, 2s, 4s, 5s, 5s between five reconnect attempts.
func DefaultPolicy() backoff.Policy {
	return backoff.Policy{
		Initial:     time.Second,
		Max:         5 * time.Second,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// Options configure a Client.
type Options struct {
	URL   string
	Token string

	// Policy controls reconnection. MaxAttempts bounds the dials made
	// after one disconnect.
	Policy backoff.Policy
	Dialer Dialer

	// OnConnect runs after every successful connect, once the online
	// heartbeat has been sent.
	OnConnect func(ctx context.Context, c *Client) error
	// OnEvent receives every event read from the server.
	OnEvent func(ev realtime.RawEvent)
	// OnStateChange observes state transitions.
	OnStateChange func(s State)

	// Sleep waits between attempts. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client is a reconnecting realtime client. Run drives it; the other
// methods may be called from any goroutine.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	transport Transport
	state     State
	closed    bool
	cancel    context.CancelFunc
	rooms     []string
}

// New creates a Client. Zero options fall back to the defaults.
func New(opts Options) *Client {
	if opts.Policy == (backoff.Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Sleep == nil {
		opts.Sleep = backoff.Sleep
	}
	return &Client{
		opts:   opts,
		logger: slog.Default().With("component", "client"),
	}
}

// Run connects and keeps the connection alive until ctx ends, Close is
// called, the token is rejected or reconnection gives up. It returns nil
// after Close, an error wrapping ErrAuthentication or ErrRetriesExhausted,
// or the context's error.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	c.setState(StateConnecting)
	t, err := c.opts.Dialer.Dial(ctx, c.opts.URL, c.opts.Token)
	for {
		if err != nil {
			if c.isClosed() {
				return c.finish(nil)
			}
			if errors.Is(err, ErrAuthentication) {
				return c.finish(err)
			}
			if ctx.Err() != nil {
				return c.finish(ctx.Err())
			}
			c.logger.WarnContext(ctx, "Connection lost, reconnecting", "error", err)
			t, err = c.reconnect(ctx)
			if err != nil {
				if c.isClosed() {
					return c.finish(nil)
				}
				return c.finish(err)
			}
		}

		c.attach(t)
		if err := c.announce(ctx); err != nil {
			c.logger.WarnContext(ctx, "Post-connect setup failed", "error", err)
		}
		err = c.readLoop(ctx, t)
		c.detach(t)

		if c.isClosed() {
			return c.finish(nil)
		}
		if ctx.Err() != nil {
			return c.finish(ctx.Err())
		}
		if err == nil {
			err = errors.New("connection closed by server")
		}
	}
}

// reconnect dials until one attempt succeeds, waiting the policy's delay
// before each attempt.
func (c *Client) reconnect(ctx context.Context) (Transport, error) {
	c.setState(StateReconnecting)
	var lastErr error
	for attempt := 0; attempt < c.opts.Policy.MaxAttempts; attempt++ {
		delay := c.opts.Policy.Delay(attempt)
		c.logger.InfoContext(ctx, "Reconnect scheduled", "attempt", attempt+1, "max_attempts", c.opts.Policy.MaxAttempts, "delay", delay)
		if err := c.opts.Sleep(ctx, delay); err != nil {
			return nil, err
		}

		t, err := c.opts.Dialer.Dial(ctx, c.opts.URL, c.opts.Token)
		if err == nil {
			return t, nil
		}
		if errors.Is(err, ErrAuthentication) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		c.logger.WarnContext(ctx, "Reconnect attempt failed", "attempt", attempt+1, "error", err)
	}
	if lastErr == nil {
		return nil, ErrRetriesExhausted
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.opts.Policy.MaxAttempts, lastErr)
}

// announce tells the server the user is active again and hands control to
// the consumer's OnConnect hook.
func (c *Client) announce(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return err
	}
	if c.opts.OnConnect != nil {
		return c.opts.OnConnect(ctx, c)
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, t Transport) error {
	for {
		frame, err := t.Read(ctx)
		if err != nil {
			return err
		}
		ev, err := realtime.ParseEvent(frame)
		if err != nil {
			c.logger.WarnContext(ctx, "Dropping malformed server frame", "error", err)
			continue
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

// Send writes one command.
func (c *Client) Send(ctx context.Context, typ realtime.CommandType, payload any) error {
	cmd, err := realtime.NewCommand(typ, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	c.mu.RLock()
	t := c.transport
	c.mu.RUnlock()
	if t == nil {
		return ErrNotConnected
	}
	return t.Write(ctx, frame)
}

// Ping sends the activity heartbeat.
func (c *Client) Ping(ctx context.Context) error {
	return c.Send(ctx, realtime.CommandPing, nil)
}

// JoinRoom subscribes to a project room and remembers it for Rooms.
func (c *Client) JoinRoom(ctx context.Context, projectID string) error {
	if err := c.Send(ctx, realtime.CommandJoinRoom, realtime.RoomArgs{ProjectID: projectID}); err != nil {
		return err
	}
	c.mu.Lock()
	if !slices.Contains(c.rooms, projectID) {
		c.rooms = append(c.rooms, projectID)
	}
	c.mu.Unlock()
	return nil
}

// LeaveRoom unsubscribes from a project room.
func (c *Client) LeaveRoom(ctx context.Context, projectID string) error {
	c.mu.Lock()
	if i := slices.Index(c.rooms, projectID); i >= 0 {
		c.rooms = slices.Delete(c.rooms, i, i+1)
	}
	c.mu.Unlock()
	return c.Send(ctx, realtime.CommandLeaveRoom, realtime.RoomArgs{ProjectID: projectID})
}

// SendMessage posts chat content to a project room.
func (c *Client) SendMessage(ctx context.Context, projectID, content string) error {
	return c.Send(ctx, realtime.CommandSendMessage, realtime.SendMessageArgs{ProjectID: projectID, Content: content})
}

// Rooms lists the rooms joined through JoinRoom and not left since.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.rooms)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Close stops the client. A close is never followed by a reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	t := c.transport
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		return t.Close()
	}
	return nil
}

func (c *Client) attach(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
	c.setState(StateConnected)
	c.logger.Info("Connected", "url", c.opts.URL)
}

func (c *Client) detach(t Transport) {
	c.mu.Lock()
	if c.transport == t {
		c.transport = nil
	}
	c.mu.Unlock()
	t.Close()
	c.setState(StateDisconnected)
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) finish(err error) error {
	c.setState(StateClosed)
	return err
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}
