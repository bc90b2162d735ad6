package websocket

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/realtime"
	"github.com/nfrund/collabhub/internal/relay"
)

// Client-facing error messages.
const (
	msgProjectIDRequired = "Project ID is required"
	msgProjectNotFound   = "Project not found"
	msgAccessDenied      = "Access denied to project"
	msgSendArgsRequired  = "Project ID and content are required"
	msgSendFailed        = "Failed to send message"
	msgJoinFailed        = "Failed to join project room"
	msgRateLimited       = "Too many messages, slow down"
	msgUnknownEvent      = "Unknown event"
	msgInvalidMessage    = "Invalid message"
	msgProgressRequired  = "Project ID and progress between 0 and 100 are required"
	msgProgressFailed    = "Failed to update project progress"
	msgTaskRequired      = "Project ID and task ID are required"
	msgTaskNotFound      = "Project or task not found"
	msgTaskFailed        = "Failed to complete task"
	msgMatchRequired     = "Recipient and project are required"
	msgMatchInvalid      = "Invalid match request"
	msgMatchFailed       = "Failed to send match request"
	msgSessionReplaced   = "Session is active on another connection"
)

// Dispatcher routes the commands of one user's connection. Commands of a
// connection are dispatched one at a time in arrival order.
type Dispatcher struct {
	coord     *presence.Coordinator
	relay     *relay.Relay
	whitelist *Whitelist
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil whitelist allows every known
// command.
func NewDispatcher(coord *presence.Coordinator, r *relay.Relay, whitelist *Whitelist) *Dispatcher {
	if whitelist == nil {
		whitelist = DefaultWhitelist()
	}
	return &Dispatcher{
		coord:     coord,
		relay:     r,
		whitelist: whitelist,
		logger:    slog.Default().With("component", "dispatcher"),
	}
}

// Dispatch handles one inbound frame from userID's connection ch. Failures
// are reported to ch as error events and never end the connection.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, ch realtime.Channel, frame []byte) {
	cmd, err := realtime.ParseCommand(frame)
	if err != nil {
		d.logger.DebugContext(ctx, "Malformed frame", "user_id", userID, "error", err)
		d.reply(ctx, ch, msgUnknownEvent)
		return
	}
	if !d.whitelist.IsAllowed(cmd.Type) {
		d.logger.DebugContext(ctx, "Command not allowed", "user_id", userID, "command", cmd.Type)
		d.reply(ctx, ch, msgUnknownEvent)
		return
	}
	// A superseded connection may still ping, but routing belongs to the
	// newer one.
	if cmd.Type != realtime.CommandPing && !d.coord.Authoritative(userID, ch.ID()) {
		d.logger.DebugContext(ctx, "Command on standby connection", "user_id", userID, "channel", ch.ID(), "command", cmd.Type)
		d.reply(ctx, ch, msgSessionReplaced)
		return
	}

	switch cmd.Type {
	case realtime.CommandJoinRoom:
		var args realtime.RoomArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgProjectIDRequired)
			return
		}
		if err := d.coord.JoinRoom(ctx, userID, args.ProjectID); err != nil {
			d.fail(ctx, ch, cmd, userID, err, msgJoinFailed)
		}

	case realtime.CommandLeaveRoom:
		var args realtime.RoomArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgProjectIDRequired)
			return
		}
		d.coord.LeaveRoom(ctx, userID, args.ProjectID)

	case realtime.CommandSendMessage:
		var args realtime.SendMessageArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgSendArgsRequired)
			return
		}
		if _, err := d.relay.Send(ctx, userID, args); err != nil {
			d.fail(ctx, ch, cmd, userID, err, msgSendFailed)
		}

	case realtime.CommandTypingStart, realtime.CommandTypingStop:
		var args realtime.RoomArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgProjectIDRequired)
			return
		}
		started := cmd.Type == realtime.CommandTypingStart
		if err := d.relay.Typing(ctx, userID, args.ProjectID, started); err != nil {
			d.fail(ctx, ch, cmd, userID, err, msgAccessDenied)
		}

	case realtime.CommandPing:
		d.coord.Heartbeat(ctx, userID)

	case realtime.CommandProgress:
		var args realtime.ProgressArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgProgressRequired)
			return
		}
		if err := d.relay.UpdateProgress(ctx, userID, args.ProjectID, *args.Progress); err != nil {
			d.fail(ctx, ch, cmd, userID, err, msgProgressFailed)
		}

	case realtime.CommandTaskComplete:
		var args realtime.TaskCompleteArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgTaskRequired)
			return
		}
		if _, err := d.relay.CompleteTask(ctx, userID, args.ProjectID, args.TaskID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				d.reply(ctx, ch, msgTaskNotFound)
				return
			}
			d.fail(ctx, ch, cmd, userID, err, msgTaskFailed)
		}

	case realtime.CommandMatchRequest:
		var args realtime.MatchRequestArgs
		if err := cmd.Decode(&args); err != nil {
			d.reply(ctx, ch, msgMatchRequired)
			return
		}
		if _, err := d.relay.MatchRequest(ctx, userID, args); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				d.reply(ctx, ch, msgMatchInvalid)
				return
			}
			d.fail(ctx, ch, cmd, userID, err, msgMatchFailed)
		}

	default:
		d.reply(ctx, ch, msgUnknownEvent)
	}
}

// fail maps a domain error to the message shown to the client. Errors that
// are not the client's fault are logged.
func (d *Dispatcher) fail(ctx context.Context, ch realtime.Channel, cmd realtime.Command, userID string, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		d.reply(ctx, ch, msgRateLimited)
	case errors.Is(err, domain.ErrSessionReplaced):
		d.reply(ctx, ch, msgSessionReplaced)
	case errors.Is(err, domain.ErrAccessDenied):
		d.reply(ctx, ch, msgAccessDenied)
	case errors.Is(err, domain.ErrNotFound):
		d.reply(ctx, ch, msgProjectNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		d.reply(ctx, ch, msgInvalidMessage)
	default:
		d.logger.ErrorContext(ctx, "Command failed", "user_id", userID, "command", cmd.Type, "error", err)
		d.reply(ctx, ch, fallback)
	}
}

func (d *Dispatcher) reply(ctx context.Context, ch realtime.Channel, message string) {
	if _, err := realtime.Emit(realtime.Error(message), ch); err != nil {
		d.logger.ErrorContext(ctx, "Failed to encode error event", "error", err)
	}
}
