package domain

import (
	"fmt"
	"time"
)

// NotificationType enumerates what a notification is about.
type NotificationType string

const (
	NotifyMatchRequest       NotificationType = "Match Request"
	NotifyMatchResponse      NotificationType = "Match Response"
	NotifyProjectInvitation  NotificationType = "Project Invitation"
	NotifyProjectUpdate      NotificationType = "Project Update"
	NotifyTaskAssignment     NotificationType = "Task Assignment"
	NotifyMessageReceived    NotificationType = "Message Received"
	NotifyFileShared         NotificationType = "File Shared"
	NotifyPartnerReplacement NotificationType = "Partner Replacement"
	NotifySystemAlert        NotificationType = "System Alert"
	NotifyDeadlineReminder   NotificationType = "Deadline Reminder"
)

// Notification priorities and categories used by the realtime layer.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"

	CategorySocial  = "Social"
	CategoryProject = "Project"
	CategorySystem  = "System"
)

// Notification is a persisted notice for one recipient.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId" validate:"required"`
	SenderID    string           `json:"senderId,omitempty"`
	Type        NotificationType `json:"type" validate:"required"`
	Title       string           `json:"title" validate:"required,max=100"`
	Message     string           `json:"message" validate:"required,max=500"`
	ProjectID   string           `json:"projectId,omitempty"`
	Priority    string           `json:"priority" validate:"oneof=Low Medium High"`
	Category    string           `json:"category" validate:"oneof=Social Project System"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Validate checks the notification against its field rules.
func (n *Notification) Validate() error {
	return validationError(validatorInstance.Struct(n))
}

// NewMessageNotification builds the notice sent to team members when
// sender posts in project.
func NewMessageNotification(recipientID string, sender UserSummary, project *Project, at time.Time) *Notification {
	name := sender.FirstName
	if name == "" {
		name = sender.DisplayName
	}
	return &Notification{
		RecipientID: recipientID,
		SenderID:    sender.ID,
		Type:        NotifyMessageReceived,
		Title:       "New Message",
		Message:     truncate(fmt.Sprintf("%s sent a message in %s", name, project.Title), 500),
		ProjectID:   project.ID,
		Priority:    PriorityLow,
		Category:    CategorySocial,
		CreatedAt:   at,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
