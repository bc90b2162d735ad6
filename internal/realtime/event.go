package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
)

// EventType tags an outbound frame.
type EventType string

const (
	EventPresenceOnline   EventType = "presence.online"
	EventPresenceOffline  EventType = "presence.offline"
	EventRoomJoined       EventType = "room.joined"
	EventMemberJoined     EventType = "room.memberJoined"
	EventMemberLeft       EventType = "room.memberLeft"
	EventMessageDelivered EventType = "message.delivered"
	EventTypingStart      EventType = "typing.start"
	EventTypingStop       EventType = "typing.stop"
	EventNotification     EventType = "notification.new"
	EventProjectUpdated   EventType = "project.updated"
	EventTaskCompleted    EventType = "project.taskCompleted"
	EventMatchRequest     EventType = "match.request"
	EventError            EventType = "error"
)

// Event is an outbound frame.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Encode renders the event as a text frame.
func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type, err)
	}
	return b, nil
}

// RawEvent is an outbound frame as seen by a client, before its payload
// is decoded.
type RawEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEvent decodes a frame received from the server.
func ParseEvent(data []byte) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RawEvent{}, err
	}
	return ev, nil
}

// Decode unmarshals the payload into dst.
func (e RawEvent) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// PresencePayload carries presence.online and presence.offline. User is
// only set when the user comes online.
type PresencePayload struct {
	UserID    string              `json:"userId"`
	User      *domain.UserSummary `json:"user,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// MemberPayload carries room.memberJoined and room.memberLeft.
type MemberPayload struct {
	ProjectID string             `json:"projectId"`
	User      domain.UserSummary `json:"user"`
	Timestamp time.Time          `json:"timestamp"`
}

// RoomJoinedPayload acknowledges a join with the room's current members.
type RoomJoinedPayload struct {
	ProjectID string               `json:"projectId"`
	Members   []domain.UserSummary `json:"members"`
}

// DeliveredMessage is a persisted chat message with its sender expanded.
type DeliveredMessage struct {
	ID               string             `json:"id"`
	ProjectID        string             `json:"projectId"`
	Sender           domain.UserSummary `json:"sender"`
	Content          string             `json:"content"`
	MessageType      domain.MessageType `json:"messageType"`
	ReplyToMessageID string             `json:"replyToMessageId,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// MessagePayload carries message.delivered.
type MessagePayload struct {
	ProjectID string           `json:"projectId"`
	Message   DeliveredMessage `json:"message"`
}

// TypingPayload carries typing.start and typing.stop.
type TypingPayload struct {
	ProjectID string             `json:"projectId"`
	User      domain.UserSummary `json:"user"`
}

// NotificationPayload is the live push of a stored notification.
type NotificationPayload struct {
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	ProjectID string                  `json:"projectId,omitempty"`
}

// ProjectUpdatedPayload carries project.updated.
type ProjectUpdatedPayload struct {
	ProjectID  string             `json:"projectId"`
	UpdateType string             `json:"updateType"`
	Progress   int                `json:"progress"`
	UpdatedBy  domain.UserSummary `json:"updatedBy"`
	Timestamp  time.Time          `json:"timestamp"`
}

// TaskCompletedPayload carries project.taskCompleted with the progress
// after the completion.
type TaskCompletedPayload struct {
	ProjectID   string             `json:"projectId"`
	TaskID      string             `json:"taskId"`
	Task        domain.Task        `json:"task"`
	Progress    int                `json:"progress"`
	CompletedBy domain.UserSummary `json:"completedBy"`
	Timestamp   time.Time          `json:"timestamp"`
}

// MatchRequestPayload carries a collaboration request to its recipient.
type MatchRequestPayload struct {
	Requester domain.UserSummary `json:"requester"`
	ProjectID string             `json:"projectId"`
	Message   string             `json:"message,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ErrorPayload is the client-facing text of a failed command.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PresenceOnline announces that user connected.
func PresenceOnline(user domain.UserSummary, at time.Time) Event {
	return Event{Type: EventPresenceOnline, Payload: PresencePayload{UserID: user.ID, User: &user, Timestamp: at}}
}

// PresenceOffline announces that userID has no connection left.
func PresenceOffline(userID string, at time.Time) Event {
	return Event{Type: EventPresenceOffline, Payload: PresencePayload{UserID: userID, Timestamp: at}}
}

// RoomJoined acknowledges a room join to the joiner.
func RoomJoined(projectID string, members []domain.UserSummary) Event {
	return Event{Type: EventRoomJoined, Payload: RoomJoinedPayload{ProjectID: projectID, Members: members}}
}

// MemberJoined tells a room that user subscribed.
func MemberJoined(projectID string, user domain.UserSummary, at time.Time) Event {
	return Event{Type: EventMemberJoined, Payload: MemberPayload{ProjectID: projectID, User: user, Timestamp: at}}
}

// MemberLeft tells a room that user left or disconnected.
func MemberLeft(projectID string, user domain.UserSummary, at time.Time) Event {
	return Event{Type: EventMemberLeft, Payload: MemberPayload{ProjectID: projectID, User: user, Timestamp: at}}
}

// MessageDelivered fans a persisted message out to its room.
func MessageDelivered(msg *domain.ChatMessage, sender domain.UserSummary) Event {
	return Event{Type: EventMessageDelivered, Payload: MessagePayload{
		ProjectID: msg.ProjectID,
		Message: DeliveredMessage{
			ID:               msg.ID,
			ProjectID:        msg.ProjectID,
			Sender:           sender,
			Content:          msg.Content,
			MessageType:      msg.MessageType,
			ReplyToMessageID: msg.ReplyToMessageID,
			CreatedAt:        msg.CreatedAt,
		},
	}}
}

// Typing builds typing.start or typing.stop.
func Typing(started bool, projectID string, user domain.UserSummary) Event {
	t := EventTypingStop
	if started {
		t = EventTypingStart
	}
	return Event{Type: t, Payload: TypingPayload{ProjectID: projectID, User: user}}
}

// NotificationNew pushes a stored notification to its recipient.
func NotificationNew(n *domain.Notification) Event {
	return Event{Type: EventNotification, Payload: NotificationPayload{
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ProjectID: n.ProjectID,
	}}
}

// Error reports a failed command to the connection that sent it.
func Error(message string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Message: message}}
}

// ProjectProgress tells a room that the project's progress changed.
func ProjectProgress(projectID string, progress int, by domain.UserSummary, at time.Time) Event {
	return Event{Type: EventProjectUpdated, Payload: ProjectUpdatedPayload{
		ProjectID:  projectID,
		UpdateType: "progress",
		Progress:   progress,
		UpdatedBy:  by,
		Timestamp:  at,
	}}
}

// TaskCompleted tells a room that task was completed.
func TaskCompleted(project *domain.Project, task domain.Task, by domain.UserSummary, at time.Time) Event {
	return Event{Type: EventTaskCompleted, Payload: TaskCompletedPayload{
		ProjectID:   project.ID,
		TaskID:      task.ID,
		Task:        task,
		Progress:    project.Progress,
		CompletedBy: by,
		Timestamp:   at,
	}}
}

// MatchRequest delivers a collaboration request.
func MatchRequest(requester domain.UserSummary, projectID, message string, at time.Time) Event {
	return Event{Type: EventMatchRequest, Payload: MatchRequestPayload{
		Requester: requester,
		ProjectID: projectID,
		Message:   message,
		Timestamp: at,
	}}
}
