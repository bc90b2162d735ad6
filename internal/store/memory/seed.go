package memory

import (
	"time"

	"github.com/nfrund/collabhub/internal/domain"
)

// Seed loads a small demo data set: four students, an admin and two
// projects.
func (s *Store) Seed() {
	joined := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	users := []domain.User{
		{ID: "alice", FirstName: "Alice", LastName: "Nguyen", Email: "alice@example.edu", Availability: domain.Available, Status: domain.UserActive},
		{ID: "bob", FirstName: "Bob", LastName: "Okafor", Email: "bob@example.edu", Availability: domain.Busy, Status: domain.UserActive},
		{ID: "carol", FirstName: "Carol", LastName: "Haddad", Email: "carol@example.edu", Availability: domain.LookingForProjects, Status: domain.UserActive},
		{ID: "dave", FirstName: "Dave", LastName: "Kim", Email: "dave@example.edu", Availability: domain.Available, Status: domain.UserSuspended},
		{ID: "admin", FirstName: "Ada", LastName: "Admin", Email: "admin@example.edu", IsAdmin: true, Status: domain.UserActive},
	}
	for _, u := range users {
		s.PutUser(u)
	}

	s.PutProject(domain.Project{
		ID:        "robotics",
		Title:     "Line-following robot",
		CreatorID: "alice",
		TeamMembers: []domain.TeamMember{
			{UserID: "alice", Role: "Leader", Status: domain.MemberActive, JoinedAt: joined},
			{UserID: "bob", Role: "Member", Status: domain.MemberActive, JoinedAt: joined},
			{UserID: "carol", Role: "Member", Status: domain.MemberLeft, JoinedAt: joined},
		},
		Tasks: []domain.Task{
			{ID: "chassis", Title: "Build chassis", AssignedTo: "bob", Status: domain.TaskInProgress},
			{ID: "sensors", Title: "Calibrate sensors", AssignedTo: "alice", Status: domain.TaskPending},
		},
	})
	s.PutProject(domain.Project{
		ID:        "compilers",
		Title:     "Toy compiler",
		CreatorID: "bob",
		TeamMembers: []domain.TeamMember{
			{UserID: "bob", Role: "Leader", Status: domain.MemberActive, JoinedAt: joined},
			{UserID: "alice", Role: "Member", Status: domain.MemberActive, JoinedAt: joined},
		},
	})
}
