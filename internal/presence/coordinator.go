package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/pubsub"
	"github.com/nfrund/collabhub/internal/realtime"
)

// Coordinator drives online/offline broadcasts and room join/leave side
// effects. Events of one session must be fed to it in arrival order; events
// of different sessions may interleave.
type Coordinator struct {
	sessions *SessionRegistry
	rooms    *RoomIndex
	authz    domain.Authorizer

	publisher       pubsub.Publisher
	broadcastOnline bool
	now             func() time.Time
	logger          *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets the bus that receives presence activity events.
func WithPublisher(p pubsub.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithOnlineBroadcast toggles the presence.online/offline fan-out to every
// connected session.
func WithOnlineBroadcast(enabled bool) Option {
	return func(c *Coordinator) { c.broadcastOnline = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator over the given registry and index.
func NewCoordinator(sessions *SessionRegistry, rooms *RoomIndex, authz domain.Authorizer, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions:        sessions,
		rooms:           rooms,
		authz:           authz,
		publisher:       pubsub.Discard{},
		broadcastOnline: true,
		now:             Now,
		logger:          slog.Default().With("component", "presence"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sessions exposes the registry for read-only use by diagnostics.
func (c *Coordinator) Sessions() *SessionRegistry { return c.sessions }

// Rooms exposes the room index for read-only use by diagnostics.
func (c *Coordinator) Rooms() *RoomIndex { return c.rooms }

// OnConnect registers the session and announces the user as online.
func (c *Coordinator) OnConnect(ctx context.Context, user domain.UserSummary, ch realtime.Channel) {
	if prev, replaced := c.sessions.Register(user, ch); replaced {
		c.logger.InfoContext(ctx, "Session replaced by newer connection, old one on standby",
			"user_id", user.ID, "old_channel", prev.ID(), "new_channel", ch.ID())
	} else {
		c.logger.InfoContext(ctx, "User came online", "user_id", user.ID, "channel", ch.ID())
	}

	at := c.now()
	if c.broadcastOnline {
		c.emit(ctx, realtime.PresenceOnline(user, at), c.sessions.ChannelsExcept(user.ID)...)
	}
	c.publish(ctx, TopicUserOnline, ActivityEvent{UserID: user.ID, ChannelID: ch.ID(), At: at})
}

// JoinRoom subscribes the user to the project's room after checking that
// they are an active team member or an admin. Denial returns
// domain.ErrAccessDenied and leaves the index untouched.
func (c *Coordinator) JoinRoom(ctx context.Context, userID, projectID string) error {
	session, ok := c.sessions.Session(userID)
	if !ok {
		return fmt.Errorf("%w: user %s has no live session", domain.ErrUnauthenticated, userID)
	}

	allowed, err := c.authz.IsActiveMemberOrAdmin(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("authorize join of %s: %w", projectID, err)
	}
	if !allowed {
		c.logger.InfoContext(ctx, "Room join denied", "user_id", userID, "project_id", projectID)
		return domain.ErrAccessDenied
	}

	// The session may have closed or been replaced while the authorization
	// call was in flight.
	if current, ok := c.sessions.Session(userID); !ok {
		return fmt.Errorf("%w: session closed during join", domain.ErrUnauthenticated)
	} else if current.ChannelID != session.ChannelID {
		return fmt.Errorf("%w: join of %s", domain.ErrSessionReplaced, projectID)
	}

	added := c.rooms.Join(projectID, userID)
	c.emit(ctx, realtime.RoomJoined(projectID, c.summaries(c.rooms.MembersOf(projectID))), session.Channel)
	if !added {
		return nil
	}

	c.logger.DebugContext(ctx, "User joined room", "user_id", userID, "project_id", projectID)
	c.emit(ctx, realtime.MemberJoined(projectID, session.User, c.now()), c.roomChannelsExcept(projectID, userID)...)
	return nil
}

// LeaveRoom unsubscribes the user and tells the remaining subscribers.
// Leaving a room the user is not in does nothing.
func (c *Coordinator) LeaveRoom(ctx context.Context, userID, projectID string) {
	user := c.summary(userID)
	wasTyping := c.rooms.IsTyping(projectID, userID)
	if !c.rooms.Leave(projectID, userID) {
		return
	}
	c.logger.DebugContext(ctx, "User left room", "user_id", userID, "project_id", projectID)
	c.announceLeft(ctx, projectID, user, wasTyping)
}

// Authoritative reports whether channelID is the connection that currently
// addresses userID. Commands from any other connection of the user must be
// refused.
func (c *Coordinator) Authoritative(userID, channelID string) bool {
	return c.sessions.IsCurrent(userID, channelID)
}

// OnDisconnect tears down the session held by ch: the user leaves every
// room, each room hears "member left", then everyone hears "offline".
//
// A user with another open connection is not torn down. Closing a standby
// connection does nothing; closing the addressable one promotes the most
// recent standby connection, and only the rooms hear that typing stopped.
// It reports whether a teardown happened.
func (c *Coordinator) OnDisconnect(ctx context.Context, userID string, ch realtime.Channel) bool {
	user := c.summary(userID)
	typing := make(map[string]bool)
	for _, projectID := range c.rooms.RoomsOf(userID) {
		if c.rooms.IsTyping(projectID, userID) {
			typing[projectID] = true
		}
	}

	next, gone := c.sessions.Release(userID, ch.ID())
	if !gone {
		if next == nil {
			c.logger.DebugContext(ctx, "Closed connection was not authoritative", "user_id", userID, "channel", ch.ID())
			return false
		}
		for projectID := range typing {
			if c.rooms.SetTyping(projectID, userID, false) {
				c.emit(ctx, realtime.Typing(false, projectID, user), c.roomChannelsExcept(projectID, userID)...)
			}
		}
		c.logger.InfoContext(ctx, "Standby connection promoted",
			"user_id", userID, "closed_channel", ch.ID(), "channel", next.ChannelID)
		return false
	}

	left := c.rooms.LeaveAll(userID)
	for _, projectID := range left {
		c.announceLeft(ctx, projectID, user, typing[projectID])
	}

	at := c.now()
	if c.broadcastOnline {
		c.emit(ctx, realtime.PresenceOffline(userID, at), c.sessions.ChannelsExcept(userID)...)
	}
	c.publish(ctx, TopicUserOffline, ActivityEvent{UserID: userID, ChannelID: ch.ID(), At: at})

	c.logger.InfoContext(ctx, "User went offline", "user_id", userID, "rooms_left", len(left))
	return true
}

// Heartbeat records that a connected user is active.
func (c *Coordinator) Heartbeat(ctx context.Context, userID string) {
	c.publish(ctx, TopicUserActive, ActivityEvent{UserID: userID, At: c.now()})
}

func (c *Coordinator) announceLeft(ctx context.Context, projectID string, user domain.UserSummary, wasTyping bool) {
	remaining := c.roomChannelsExcept(projectID, user.ID)
	if wasTyping {
		c.emit(ctx, realtime.Typing(false, projectID, user), remaining...)
	}
	c.emit(ctx, realtime.MemberLeft(projectID, user, c.now()), remaining...)
}

func (c *Coordinator) roomChannelsExcept(projectID, userID string) []realtime.Channel {
	members := c.rooms.MembersOf(projectID)
	others := members[:0]
	for _, id := range members {
		if id != userID {
			others = append(others, id)
		}
	}
	return c.sessions.Channels(others)
}

func (c *Coordinator) summary(userID string) domain.UserSummary {
	if s, ok := c.sessions.Session(userID); ok {
		return s.User
	}
	return domain.UserSummary{ID: userID, DisplayName: userID}
}

func (c *Coordinator) summaries(userIDs []string) []domain.UserSummary {
	out := make([]domain.UserSummary, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, c.summary(id))
	}
	return out
}

func (c *Coordinator) emit(ctx context.Context, ev realtime.Event, targets ...realtime.Channel) {
	sent, err := realtime.Emit(ev, targets...)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to encode event", "event", ev.Type, "error", err)
		return
	}
	if sent < len(targets) {
		c.logger.WarnContext(ctx, "Event not delivered to every recipient",
			"event", ev.Type, "recipients", len(targets), "delivered", sent)
	}
}

func (c *Coordinator) publish(ctx context.Context, event pubsub.Event[ActivityEvent], payload ActivityEvent) {
	if err := pubsub.Publish(ctx, c.publisher, event, payload.UserID, payload); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish presence activity", "topic", event.Name(), "user_id", payload.UserID, "error", err)
	}
}
