package domain

import (
	"math"
	"time"
)

// MemberStatus is the state of a user's seat on a project team.
type MemberStatus string

const (
	MemberActive   MemberStatus = "Active"
	MemberInactive MemberStatus = "Inactive"
	MemberLeft     MemberStatus = "Left"
)

// TaskStatus is the lifecycle state of a project task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
	TaskBlocked    TaskStatus = "Blocked"
)

// TeamMember is one persisted seat on a project team.
type TeamMember struct {
	UserID   string       `json:"userId"`
	Role     string       `json:"role"`
	Status   MemberStatus `json:"status"`
	JoinedAt time.Time    `json:"joinedAt"`
}

// Task is a unit of project work.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	Status      TaskStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Project is the persisted project as seen by the realtime layer.
type Project struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	CreatorID   string       `json:"creatorId"`
	TeamMembers []TeamMember `json:"teamMembers"`
	Progress    int          `json:"progress"`
	Tasks       []Task       `json:"tasks"`
}

// IsActiveMember reports whether userID holds an active seat on the team.
func (p *Project) IsActiveMember(userID string) bool {
	for _, m := range p.TeamMembers {
		if m.UserID == userID && m.Status == MemberActive {
			return true
		}
	}
	return false
}

// ActiveMemberIDs lists the users holding an active seat.
func (p *Project) ActiveMemberIDs() []string {
	ids := make([]string, 0, len(p.TeamMembers))
	for _, m := range p.TeamMembers {
		if m.Status == MemberActive {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// Task returns a pointer into Tasks for the given id, or nil.
func (p *Project) Task(taskID string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == taskID {
			return &p.Tasks[i]
		}
	}
	return nil
}

// CompletionProgress is the rounded percentage of completed tasks.
func (p *Project) CompletionProgress() int {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range p.Tasks {
		if t.Status == TaskCompleted {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(p.Tasks)) * 100))
}
