// Package surreal is the SurrealDB backend of the realtime layer's stores.
package surreal

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/domain"
)

// Store implements the project, chat, notification and user stores.
type Store struct {
	conn          *Connection
	users         *Client[userRecord]
	projects      *Client[projectRecord]
	messages      *Client[chatMessageRecord]
	notifications *Client[notificationRecord]
	now           func() time.Time
}

var (
	_ domain.ProjectStore      = (*Store)(nil)
	_ domain.ChatStore         = (*Store)(nil)
	_ domain.NotificationStore = (*Store)(nil)
	_ domain.UserDirectory     = (*Store)(nil)
)

// Open connects to SurrealDB and returns a Store.
func Open(ctx context.Context, cfg config.Provider) (*Store, error) {
	conn := NewConnection(cfg)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return NewStore(conn, cfg.GetDBQueryTimeout(), cfg.GetDBExecuteTimeout()), nil
}

// NewStore creates a Store over an established connection.
func NewStore(conn *Connection, queryTimeout, executeTimeout time.Duration) *Store {
	return &Store{
		conn:          conn,
		users:         NewClient[userRecord](conn, queryTimeout, executeTimeout),
		projects:      NewClient[projectRecord](conn, queryTimeout, executeTimeout),
		messages:      NewClient[chatMessageRecord](conn, queryTimeout, executeTimeout),
		notifications: NewClient[notificationRecord](conn, queryTimeout, executeTimeout),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the connection.
func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	rec, err := s.users.QueryOne(ctx, "SELECT * FROM type::thing($tb, $id)",
		map[string]any{"tb": userTable, "id": userID})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return rec.toDomain(), nil
}

func (s *Store) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := s.users.Write(ctx,
		"UPDATE type::thing($tb, $id) SET lastActive = $at RETURN AFTER",
		map[string]any{"tb": userTable, "id": userID, "at": datetime(at)})
	if err != nil {
		return fmt.Errorf("touch user %s: %w", userID, err)
	}
	return nil
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(ctx context.Context, u *domain.User) error {
	rec := userRecord{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Avatar:       u.Avatar,
		Availability: string(u.Availability),
		IsAdmin:      u.IsAdmin,
		Status:       string(u.Status),
		LastActive:   datetime(u.LastActive),
	}
	_, err := s.users.Write(ctx, "UPSERT type::thing($tb, $id) CONTENT $data",
		map[string]any{"tb": userTable, "id": u.ID, "data": rec})
	if err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	rec, err := s.projects.QueryOne(ctx, "SELECT * FROM type::thing($tb, $id)",
		map[string]any{"tb": projectTable, "id": projectID})
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return rec.toDomain(), nil
}

// PutProject inserts or replaces a project.
func (s *Store) PutProject(ctx context.Context, p *domain.Project) error {
	rec := projectFromDomain(p)
	rec.ID = nil
	_, err := s.projects.Write(ctx, "UPSERT type::thing($tb, $id) CONTENT $data",
		map[string]any{"tb": projectTable, "id": p.ID, "data": rec})
	if err != nil {
		return fmt.Errorf("put project %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetActiveTeamMembers(ctx context.Context, projectID string) ([]string, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.ActiveMemberIDs(), nil
}

func (s *Store) UpdateProgress(ctx context.Context, projectID string, progress int) error {
	_, err := s.projects.Write(ctx, "UPDATE type::thing($tb, $id) SET progress = $progress RETURN AFTER",
		map[string]any{"tb": projectTable, "id": projectID, "progress": progress})
	if err != nil {
		return fmt.Errorf("update progress of %s: %w", projectID, err)
	}
	return nil
}

// Task completion touches only the matching array element, guarded by the
// task id, so concurrent completions of different tasks cannot overwrite
// each other. Progress is then recomputed from the stored row, never from
// a copy read earlier.
const (
	completeTaskQuery = `UPDATE type::thing($tb, $id)
	SET tasks[$idx].status = $status, tasks[$idx].completedAt = $at
	WHERE tasks[$idx].id = $task
	RETURN AFTER`

	recomputeProgressQuery = `UPDATE type::thing($tb, $id)
	SET progress = math::floor(<float> count(tasks[WHERE status = $status]) * 100 / count(tasks) + 0.5)
	RETURN AFTER`
)

// CompleteTask marks one task completed in place and stores the
// recomputed progress.
func (s *Store) CompleteTask(ctx context.Context, projectID, taskID string, at time.Time) (*domain.Project, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(p.Tasks, func(t domain.Task) bool { return t.ID == taskID })
	if idx < 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}

	params := map[string]any{
		"tb":     projectTable,
		"id":     projectID,
		"idx":    idx,
		"task":   taskID,
		"status": string(domain.TaskCompleted),
		"at":     datetime(at.UTC()),
	}
	if _, err := s.projects.Write(ctx, completeTaskQuery, params); err != nil {
		return nil, fmt.Errorf("complete task %s: %w", taskID, err)
	}
	updated, err := s.projects.Write(ctx, recomputeProgressQuery, params)
	if err != nil {
		return nil, fmt.Errorf("recompute progress of %s: %w", projectID, err)
	}
	return updated.toDomain(), nil
}

// AppendMessage creates the project's chat record on first use, then the
// message linked to it.
func (s *Store) AppendMessage(ctx context.Context, projectID string, msg *domain.OutboundMessage) (*domain.ChatMessage, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	chatID := recordID(chatTable, projectID)
	if err := s.messages.Exec(ctx,
		"UPSERT $chat SET project = $project, updatedAt = time::now() RETURN NONE",
		map[string]any{"chat": chatID, "project": recordID(projectTable, projectID)}); err != nil {
		return nil, fmt.Errorf("open chat of %s: %w", projectID, err)
	}

	rec := chatMessageRecord{
		Chat:        chatID,
		Sender:      recordID(userTable, msg.SenderID),
		Content:     msg.Content,
		MessageType: string(msg.MessageType),
		CreatedAt:   datetime(s.now()),
	}
	if msg.ReplyToMessageID != "" {
		rec.ReplyTo = recordID(chatMessageTable, msg.ReplyToMessageID)
	}
	saved, err := s.messages.Write(ctx, "CREATE type::table($tb) CONTENT $data",
		map[string]any{"tb": chatMessageTable, "data": rec})
	if err != nil {
		return nil, fmt.Errorf("append message to %s: %w", projectID, err)
	}
	return saved.toDomain(projectID), nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	saved, err := s.notifications.Write(ctx, "CREATE type::table($tb) CONTENT $data",
		map[string]any{"tb": notificationTable, "data": notificationFromDomain(n)})
	if err != nil {
		return nil, fmt.Errorf("create notification for %s: %w", n.RecipientID, err)
	}
	return saved.toDomain(), nil
}
