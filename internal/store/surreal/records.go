package surreal

import (
	"fmt"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

const (
	userTable         = "user"
	projectTable      = "project"
	chatTable         = "chat"
	chatMessageTable  = "chat_message"
	notificationTable = "notification"
)

// Records mirror the stored documents. References are record links and
// times are SurrealDB datetimes; the domain sees plain ids and time.Time.

type userRecord struct {
	ID           *models.RecordID       `json:"id,omitempty"`
	FirstName    string                 `json:"firstName"`
	LastName     string                 `json:"lastName"`
	Email        string                 `json:"email"`
	Avatar       string                 `json:"avatar,omitempty"`
	Availability string                 `json:"availability"`
	IsAdmin      bool                   `json:"isAdmin"`
	Status       string                 `json:"status"`
	LastActive   *models.CustomDateTime `json:"lastActive,omitempty"`
}

type teamMemberRecord struct {
	User     *models.RecordID       `json:"user"`
	Role     string                 `json:"role"`
	Status   string                 `json:"status"`
	JoinedAt *models.CustomDateTime `json:"joinedAt,omitempty"`
}

type taskRecord struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	AssignedTo  *models.RecordID       `json:"assignedTo,omitempty"`
	Status      string                 `json:"status"`
	CompletedAt *models.CustomDateTime `json:"completedAt,omitempty"`
}

type projectRecord struct {
	ID          *models.RecordID   `json:"id,omitempty"`
	Title       string             `json:"title"`
	Creator     *models.RecordID   `json:"creator"`
	TeamMembers []teamMemberRecord `json:"teamMembers"`
	Progress    int                `json:"progress"`
	Tasks       []taskRecord       `json:"tasks"`
}

type chatMessageRecord struct {
	ID          *models.RecordID       `json:"id,omitempty"`
	Chat        *models.RecordID       `json:"chat"`
	Sender      *models.RecordID       `json:"sender"`
	Content     string                 `json:"content"`
	MessageType string                 `json:"messageType"`
	ReplyTo     *models.RecordID       `json:"replyTo,omitempty"`
	CreatedAt   *models.CustomDateTime `json:"createdAt,omitempty"`
}

type notificationRecord struct {
	ID        *models.RecordID       `json:"id,omitempty"`
	Recipient *models.RecordID       `json:"recipient"`
	Sender    *models.RecordID       `json:"sender,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Project   *models.RecordID       `json:"project,omitempty"`
	Priority  string                 `json:"priority"`
	Category  string                 `json:"category"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt *models.CustomDateTime `json:"createdAt,omitempty"`
}

func recordID(table, id string) *models.RecordID {
	if id == "" {
		return nil
	}
	rid := models.NewRecordID(table, id)
	return &rid
}

// key returns the id part of a record link, "alice" for user:alice.
func key(rid *models.RecordID) string {
	if rid == nil {
		return ""
	}
	return fmt.Sprint(rid.ID)
}

func datetime(t time.Time) *models.CustomDateTime {
	if t.IsZero() {
		return nil
	}
	return &models.CustomDateTime{Time: t.UTC()}
}

func timeOf(dt *models.CustomDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	return dt.Time
}

func (r *userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:           key(r.ID),
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Avatar:       r.Avatar,
		Availability: domain.Availability(r.Availability),
		IsAdmin:      r.IsAdmin,
		Status:       domain.UserStatus(r.Status),
		LastActive:   timeOf(r.LastActive),
	}
}

func (r *projectRecord) toDomain() *domain.Project {
	p := &domain.Project{
		ID:          key(r.ID),
		Title:       r.Title,
		CreatorID:   key(r.Creator),
		Progress:    r.Progress,
		TeamMembers: make([]domain.TeamMember, 0, len(r.TeamMembers)),
		Tasks:       make([]domain.Task, 0, len(r.Tasks)),
	}
	for _, m := range r.TeamMembers {
		p.TeamMembers = append(p.TeamMembers, domain.TeamMember{
			UserID:   key(m.User),
			Role:     m.Role,
			Status:   domain.MemberStatus(m.Status),
			JoinedAt: timeOf(m.JoinedAt),
		})
	}
	for _, t := range r.Tasks {
		task := domain.Task{
			ID:         t.ID,
			Title:      t.Title,
			AssignedTo: key(t.AssignedTo),
			Status:     domain.TaskStatus(t.Status),
		}
		if t.CompletedAt != nil {
			at := t.CompletedAt.Time
			task.CompletedAt = &at
		}
		p.Tasks = append(p.Tasks, task)
	}
	return p
}

func projectFromDomain(p *domain.Project) *projectRecord {
	r := &projectRecord{
		ID:       recordID(projectTable, p.ID),
		Title:    p.Title,
		Creator:  recordID(userTable, p.CreatorID),
		Progress: p.Progress,
	}
	for _, m := range p.TeamMembers {
		r.TeamMembers = append(r.TeamMembers, teamMemberRecord{
			User:     recordID(userTable, m.UserID),
			Role:     m.Role,
			Status:   string(m.Status),
			JoinedAt: datetime(m.JoinedAt),
		})
	}
	for _, t := range p.Tasks {
		tr := taskRecord{
			ID:         t.ID,
			Title:      t.Title,
			AssignedTo: recordID(userTable, t.AssignedTo),
			Status:     string(t.Status),
		}
		if t.CompletedAt != nil {
			tr.CompletedAt = datetime(*t.CompletedAt)
		}
		r.Tasks = append(r.Tasks, tr)
	}
	return r
}

func (r *chatMessageRecord) toDomain(projectID string) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:               key(r.ID),
		ProjectID:        projectID,
		SenderID:         key(r.Sender),
		Content:          r.Content,
		MessageType:      domain.MessageType(r.MessageType),
		ReplyToMessageID: key(r.ReplyTo),
		CreatedAt:        timeOf(r.CreatedAt),
	}
}

func notificationFromDomain(n *domain.Notification) *notificationRecord {
	return &notificationRecord{
		Recipient: recordID(userTable, n.RecipientID),
		Sender:    recordID(userTable, n.SenderID),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Project:   recordID(projectTable, n.ProjectID),
		Priority:  n.Priority,
		Category:  n.Category,
		IsRead:    n.IsRead,
		CreatedAt: datetime(n.CreatedAt),
	}
}

func (r *notificationRecord) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:          key(r.ID),
		RecipientID: key(r.Recipient),
		SenderID:    key(r.Sender),
		Type:        domain.NotificationType(r.Type),
		Title:       r.Title,
		Message:     r.Message,
		ProjectID:   key(r.Project),
		Priority:    r.Priority,
		Category:    r.Category,
		IsRead:      r.IsRead,
		CreatedAt:   timeOf(r.CreatedAt),
	}
}
