package mongo

import (
	"time"

	"github.com/nfrund/collabhub/internal/domain"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	FirstName    string    `bson:"firstName"`
	LastName     string    `bson:"lastName"`
	Email        string    `bson:"email"`
	Avatar       string    `bson:"avatar,omitempty"`
	Availability string    `bson:"availability"`
	IsAdmin      bool      `bson:"isAdmin"`
	Status       string    `bson:"status"`
	LastActive   time.Time `bson:"lastActive,omitempty"`
}

type teamMemberDoc struct {
	User     string    `bson:"user"`
	Role     string    `bson:"role"`
	Status   string    `bson:"status"`
	JoinedAt time.Time `bson:"joinedAt"`
}

type taskDoc struct {
	ID          string     `bson:"id"`
	Title       string     `bson:"title"`
	AssignedTo  string     `bson:"assignedTo,omitempty"`
	Status      string     `bson:"status"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
}

type projectDoc struct {
	ID          string          `bson:"_id"`
	Title       string          `bson:"title"`
	Creator     string          `bson:"creator"`
	TeamMembers []teamMemberDoc `bson:"teamMembers"`
	Progress    int             `bson:"progress"`
	Tasks       []taskDoc       `bson:"tasks"`
}

func userToDoc(u *domain.User) userDoc {
	return userDoc{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Avatar:       u.Avatar,
		Availability: string(u.Availability),
		IsAdmin:      u.IsAdmin,
		Status:       string(u.Status),
		LastActive:   u.LastActive,
	}
}

func (d userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Avatar:       d.Avatar,
		Availability: domain.Availability(d.Availability),
		IsAdmin:      d.IsAdmin,
		Status:       domain.UserStatus(d.Status),
		LastActive:   d.LastActive,
	}
}

func projectToDoc(p *domain.Project) projectDoc {
	d := projectDoc{
		ID:       p.ID,
		Title:    p.Title,
		Creator:  p.CreatorID,
		Progress: p.Progress,
	}
	for _, m := range p.TeamMembers {
		d.TeamMembers = append(d.TeamMembers, teamMemberDoc{
			User: m.UserID, Role: m.Role, Status: string(m.Status), JoinedAt: m.JoinedAt,
		})
	}
	for _, t := range p.Tasks {
		d.Tasks = append(d.Tasks, taskDoc{
			ID: t.ID, Title: t.Title, AssignedTo: t.AssignedTo, Status: string(t.Status), CompletedAt: t.CompletedAt,
		})
	}
	return d
}

func (d projectDoc) toDomain() *domain.Project {
	p := &domain.Project{
		ID:          d.ID,
		Title:       d.Title,
		CreatorID:   d.Creator,
		Progress:    d.Progress,
		TeamMembers: make([]domain.TeamMember, 0, len(d.TeamMembers)),
		Tasks:       make([]domain.Task, 0, len(d.Tasks)),
	}
	for _, m := range d.TeamMembers {
		p.TeamMembers = append(p.TeamMembers, domain.TeamMember{
			UserID: m.User, Role: m.Role, Status: domain.MemberStatus(m.Status), JoinedAt: m.JoinedAt,
		})
	}
	for _, t := range d.Tasks {
		p.Tasks = append(p.Tasks, domain.Task{
			ID: t.ID, Title: t.Title, AssignedTo: t.AssignedTo, Status: domain.TaskStatus(t.Status), CompletedAt: t.CompletedAt,
		})
	}
	return p
}
