// Package memory is an in-process store for development and tests. It
// implements every store interface of the realtime layer.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/collabhub/internal/domain"
)

// Store keeps users, projects, chats and notifications in maps.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	projects      map[string]domain.Project
	chats         map[string][]domain.ChatMessage
	notifications map[string][]domain.Notification
	now           func() time.Time
}

var (
	_ domain.ProjectStore      = (*Store)(nil)
	_ domain.ChatStore         = (*Store)(nil)
	_ domain.NotificationStore = (*Store)(nil)
	_ domain.UserDirectory     = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		projects:      make(map[string]domain.Project),
		chats:         make(map[string][]domain.ChatMessage),
		notifications: make(map[string][]domain.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutProject inserts or replaces a project.
func (s *Store) PutProject(p domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = cloneProject(p)
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if at.After(u.LastActive) {
		u.LastActive = at
		s.users[userID] = u
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	out := cloneProject(p)
	return &out, nil
}

func (s *Store) GetActiveTeamMembers(ctx context.Context, projectID string) ([]string, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.ActiveMemberIDs(), nil
}

func (s *Store) UpdateProgress(ctx context.Context, projectID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	p.Progress = progress
	s.projects[projectID] = p
	return nil
}

func (s *Store) CompleteTask(ctx context.Context, projectID, taskID string, at time.Time) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	task := p.Task(taskID)
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	completedAt := at
	task.Status = domain.TaskCompleted
	task.CompletedAt = &completedAt
	p.Progress = p.CompletionProgress()
	s.projects[projectID] = p

	out := cloneProject(p)
	return &out, nil
}

// AppendMessage stores the message under the project's chat, creating the
// chat on first use.
func (s *Store) AppendMessage(ctx context.Context, projectID string, msg *domain.OutboundMessage) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	saved := domain.ChatMessage{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		SenderID:         msg.SenderID,
		Content:          msg.Content,
		MessageType:      msg.MessageType,
		ReplyToMessageID: msg.ReplyToMessageID,
		CreatedAt:        s.now(),
	}
	s.chats[projectID] = append(s.chats[projectID], saved)
	return &saved, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *n
	saved.ID = uuid.NewString()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = s.now()
	}
	s.notifications[n.RecipientID] = append(s.notifications[n.RecipientID], saved)
	return &saved, nil
}

// Messages returns a project's chat in append order.
func (s *Store) Messages(projectID string) []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), s.chats[projectID]...)
}

// Notifications returns a recipient's notifications in creation order.
func (s *Store) Notifications(recipientID string) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.notifications[recipientID]...)
}

// Users lists every user sorted by id.
func (s *Store) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneProject(p domain.Project) domain.Project {
	p.TeamMembers = append([]domain.TeamMember(nil), p.TeamMembers...)
	p.Tasks = append([]domain.Task(nil), p.Tasks...)
	return p
}
