// Package relay moves room-scoped traffic between connected users: chat
// messages, typing indicators, project updates and match requests.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/ratelimit"
	"github.com/nfrund/collabhub/internal/realtime"
)

// Deps are the collaborators of a Relay.
type Deps struct {
	Coordinator   *presence.Coordinator
	Access        domain.ProjectAuthorizer
	Projects      domain.ProjectStore
	Chats         domain.ChatStore
	Notifications domain.NotificationStore
	// Limiter bounds message.send per user. Nil means unlimited.
	Limiter ratelimit.Limiter
}

// Relay persists and fans out room traffic.
type Relay struct {
	coord         *presence.Coordinator
	sessions      *presence.SessionRegistry
	rooms         *presence.RoomIndex
	access        domain.ProjectAuthorizer
	projects      domain.ProjectStore
	chats         domain.ChatStore
	notifications domain.NotificationStore
	limiter       ratelimit.Limiter

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// New creates a Relay.
func New(deps Deps, opts ...Option) *Relay {
	r := &Relay{
		coord:         deps.Coordinator,
		sessions:      deps.Coordinator.Sessions(),
		rooms:         deps.Coordinator.Rooms(),
		access:        deps.Access,
		projects:      deps.Projects,
		chats:         deps.Chats,
		notifications: deps.Notifications,
		limiter:       deps.Limiter,
		now:           presence.Now,
		logger:        slog.Default().With("component", "relay"),
	}
	if r.limiter == nil {
		r.limiter = ratelimit.Unlimited{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send persists a chat message and delivers it to the room.
//
// The sender must be subscribed to the room and still pass the membership
// check; a sender who no longer does is removed from the room. Nothing is
// delivered unless the chat store accepted the message. Afterwards every
// other active team member gets a notification, pushed live when online.
func (r *Relay) Send(ctx context.Context, senderID string, args realtime.SendMessageArgs) (*domain.ChatMessage, error) {
	msg := &domain.OutboundMessage{
		ProjectID:        args.ProjectID,
		SenderID:         senderID,
		Content:          args.Content,
		MessageType:      args.MessageType,
		ReplyToMessageID: args.ReplyToMessageID,
	}
	msg.Normalize()
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	// Only well-formed sends count against the quota.
	if ok, err := r.limiter.Allow(ctx, "message:"+senderID); err != nil {
		r.logger.WarnContext(ctx, "Rate limit check failed, allowing send", "user_id", senderID, "error", err)
	} else if !ok {
		return nil, domain.ErrRateLimited
	}

	if !r.rooms.IsMember(msg.ProjectID, senderID) {
		return nil, domain.ErrAccessDenied
	}
	allowed, err := r.access.IsActiveMemberOrAdmin(ctx, msg.ProjectID, senderID)
	if err != nil {
		return nil, fmt.Errorf("authorize send to %s: %w", msg.ProjectID, err)
	}
	if !allowed {
		r.logger.InfoContext(ctx, "Sender lost access, removing from room", "user_id", senderID, "project_id", msg.ProjectID)
		r.coord.LeaveRoom(ctx, senderID, msg.ProjectID)
		return nil, domain.ErrAccessDenied
	}

	saved, err := r.chats.AppendMessage(ctx, msg.ProjectID, msg)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: append message: %w", domain.ErrPersistence, err)
	}

	sender := r.summary(senderID)
	r.emit(ctx, realtime.MessageDelivered(saved, sender), r.roomChannels(msg.ProjectID, "")...)

	r.notifyTeam(ctx, saved, sender)
	return saved, nil
}

// notifyTeam creates a notification for every active team member except
// the sender. A failure for one member does not stop the others.
func (r *Relay) notifyTeam(ctx context.Context, msg *domain.ChatMessage, sender domain.UserSummary) {
	project, err := r.projects.GetProject(ctx, msg.ProjectID)
	if err != nil {
		r.logger.WarnContext(ctx, "Skipping message notifications, project unavailable", "project_id", msg.ProjectID, "error", err)
		return
	}
	members, err := r.projects.GetActiveTeamMembers(ctx, msg.ProjectID)
	if err != nil {
		r.logger.WarnContext(ctx, "Skipping message notifications, team unavailable", "project_id", msg.ProjectID, "error", err)
		return
	}

	created := 0
	for _, memberID := range members {
		if memberID == msg.SenderID {
			continue
		}
		n := domain.NewMessageNotification(memberID, sender, project, r.now())
		if err := n.Validate(); err != nil {
			r.logger.WarnContext(ctx, "Invalid message notification", "recipient_id", memberID, "error", err)
			continue
		}
		saved, err := r.notifications.CreateNotification(ctx, n)
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to create message notification",
				"recipient_id", memberID, "project_id", msg.ProjectID, "error", err)
			continue
		}
		created++
		if ch, ok := r.sessions.Lookup(memberID); ok {
			r.emit(ctx, realtime.NotificationNew(saved), ch)
		}
	}
	r.logger.DebugContext(ctx, "Message notifications created", "project_id", msg.ProjectID, "count", created)
}

// Typing relays a typing indicator to the rest of the room.
func (r *Relay) Typing(ctx context.Context, userID, projectID string, started bool) error {
	if !r.rooms.SetTyping(projectID, userID, started) {
		return domain.ErrAccessDenied
	}
	r.emit(ctx, realtime.Typing(started, projectID, r.summary(userID)), r.roomChannels(projectID, userID)...)
	return nil
}

// UpdateProgress records a project's progress and tells the room.
func (r *Relay) UpdateProgress(ctx context.Context, userID, projectID string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", domain.ErrInvalidInput, progress)
	}
	allowed, err := r.access.CanUpdateProject(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("authorize progress update of %s: %w", projectID, err)
	}
	if !allowed {
		return domain.ErrAccessDenied
	}

	if err := r.projects.UpdateProgress(ctx, projectID, progress); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: update progress: %w", domain.ErrPersistence, err)
	}

	r.logger.InfoContext(ctx, "Project progress updated", "project_id", projectID, "progress", progress, "user_id", userID)
	r.emit(ctx, realtime.ProjectProgress(projectID, progress, r.summary(userID), r.now()), r.roomChannels(projectID, "")...)
	return nil
}

// CompleteTask marks a task completed and tells the room.
func (r *Relay) CompleteTask(ctx context.Context, userID, projectID, taskID string) (*domain.Project, error) {
	allowed, err := r.access.IsActiveMemberOrAdmin(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("authorize task completion in %s: %w", projectID, err)
	}
	if !allowed {
		return nil, domain.ErrAccessDenied
	}

	at := r.now()
	project, err := r.projects.CompleteTask(ctx, projectID, taskID, at)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: complete task: %w", domain.ErrPersistence, err)
	}
	task := project.Task(taskID)
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}

	r.emit(ctx, realtime.TaskCompleted(project, *task, r.summary(userID), at), r.roomChannels(projectID, "")...)
	return project, nil
}

// MatchRequest pushes a collaboration request to the recipient if they are
// online. It reports whether the request was delivered.
func (r *Relay) MatchRequest(ctx context.Context, requesterID string, args realtime.MatchRequestArgs) (bool, error) {
	if args.RecipientID == requesterID {
		return false, fmt.Errorf("%w: cannot send a match request to yourself", domain.ErrInvalidInput)
	}
	ch, ok := r.sessions.Lookup(args.RecipientID)
	if !ok {
		r.logger.DebugContext(ctx, "Match request recipient offline", "recipient_id", args.RecipientID)
		return false, nil
	}
	ev := realtime.MatchRequest(r.summary(requesterID), args.ProjectID, args.Message, r.now())
	sent, err := realtime.Emit(ev, ch)
	if err != nil {
		return false, err
	}
	return sent == 1, nil
}

// roomChannels returns the live channels of the room's subscribers,
// leaving out except.
func (r *Relay) roomChannels(projectID, except string) []realtime.Channel {
	members := r.rooms.MembersOf(projectID)
	ids := make([]string, 0, len(members))
	for _, id := range members {
		if id != except {
			ids = append(ids, id)
		}
	}
	return r.sessions.Channels(ids)
}

func (r *Relay) summary(userID string) domain.UserSummary {
	if s, ok := r.sessions.Session(userID); ok {
		return s.User
	}
	return domain.UserSummary{ID: userID, DisplayName: userID}
}

func (r *Relay) emit(ctx context.Context, ev realtime.Event, targets ...realtime.Channel) {
	sent, err := realtime.Emit(ev, targets...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to encode event", "event", ev.Type, "error", err)
		return
	}
	if sent < len(targets) {
		r.logger.WarnContext(ctx, "Event not delivered to every recipient",
			"event", ev.Type, "recipients", len(targets), "delivered", sent)
	}
}
