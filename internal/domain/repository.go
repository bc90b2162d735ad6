package domain

import (
	"context"
	"time"
)

// These interfaces are requirements OF the realtime layer, implemented by
// the store backends. Every lookup of a missing record returns ErrNotFound.

// Authorizer answers whether a user may subscribe to a project's room.
type Authorizer interface {
	IsActiveMemberOrAdmin(ctx context.Context, projectID, userID string) (bool, error)
}

// ProjectAuthorizer also answers whether a user may change a project's
// progress: its creator, an active team member or an admin.
type ProjectAuthorizer interface {
	Authorizer
	CanUpdateProject(ctx context.Context, projectID, userID string) (bool, error)
}

// ProjectStore reads and updates projects.
type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*Project, error)
	GetActiveTeamMembers(ctx context.Context, projectID string) ([]string, error)
	UpdateProgress(ctx context.Context, projectID string, progress int) error
	// CompleteTask marks the task completed, recomputes project progress and
	// returns the updated project.
	CompleteTask(ctx context.Context, projectID, taskID string, at time.Time) (*Project, error)
}

// ChatStore appends messages to a project's chat, creating the chat record
// on first use.
type ChatStore interface {
	AppendMessage(ctx context.Context, projectID string, msg *OutboundMessage) (*ChatMessage, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) (*Notification, error)
}

// UserDirectory reads users and records their activity.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}
