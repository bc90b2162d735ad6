// Package realtime defines the tagged-union frames exchanged over a
// realtime connection: inbound commands and outbound events.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/collabhub/internal/domain"
)

var validate = validator.New()

// CommandType tags an inbound frame.
type CommandType string

const (
	CommandJoinRoom     CommandType = "room.join"
	CommandLeaveRoom    CommandType = "room.leave"
	CommandSendMessage  CommandType = "message.send"
	CommandTypingStart  CommandType = "typing.start"
	CommandTypingStop   CommandType = "typing.stop"
	CommandPing         CommandType = "presence.ping"
	CommandProgress     CommandType = "project.progress"
	CommandTaskComplete CommandType = "project.taskComplete"
	CommandMatchRequest CommandType = "match.request"
)

// CommandTypes lists every command a client may send.
func CommandTypes() []CommandType {
	return []CommandType{
		CommandJoinRoom, CommandLeaveRoom, CommandSendMessage,
		CommandTypingStart, CommandTypingStop, CommandPing,
		CommandProgress, CommandTaskComplete, CommandMatchRequest,
	}
}

// Command is an inbound frame. Payload is decoded lazily by the dispatcher
// once the type is known.
type Command struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseCommand decodes a raw frame into a Command.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: malformed frame: %v", domain.ErrInvalidInput, err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("%w: frame has no type", domain.ErrInvalidInput)
	}
	return cmd, nil
}

// NewCommand builds a Command with a JSON encoded payload.
func NewCommand(t CommandType, payload any) (Command, error) {
	cmd := Command{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Command{}, err
		}
		cmd.Payload = raw
	}
	return cmd, nil
}

// Decode unmarshals the payload into dst and validates it.
func (c Command) Decode(dst any) error {
	if len(c.Payload) == 0 {
		return fmt.Errorf("%w: %s requires a payload", domain.ErrInvalidInput, c.Type)
	}
	if err := json.Unmarshal(c.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", domain.ErrInvalidInput, c.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s.%s failed %s", domain.ErrInvalidInput, c.Type, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// RoomArgs is the payload of room.join, room.leave and typing commands.
type RoomArgs struct {
	ProjectID string `json:"projectId" validate:"required"`
}

// SendMessageArgs is the payload of message.send.
type SendMessageArgs struct {
	ProjectID        string             `json:"projectId" validate:"required"`
	Content          string             `json:"content" validate:"required"`
	MessageType      domain.MessageType `json:"messageType,omitempty"`
	ReplyToMessageID string             `json:"replyToMessageId,omitempty"`
}

// ProgressArgs is the payload of project.progress.
type ProgressArgs struct {
	ProjectID string `json:"projectId" validate:"required"`
	Progress  *int   `json:"progress" validate:"required,min=0,max=100"`
}

// TaskCompleteArgs is the payload of project.taskComplete.
type TaskCompleteArgs struct {
	ProjectID string `json:"projectId" validate:"required"`
	TaskID    string `json:"taskId" validate:"required"`
}

// MatchRequestArgs is the payload of match.request.
type MatchRequestArgs struct {
	RecipientID string `json:"recipientId" validate:"required"`
	ProjectID   string `json:"projectId" validate:"required"`
	Message     string `json:"message" validate:"max=500"`
}
