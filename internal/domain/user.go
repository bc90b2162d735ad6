package domain

import (
	"strings"
	"time"
)

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserActive    UserStatus = "Active"
	UserInactive  UserStatus = "Inactive"
	UserSuspended UserStatus = "Suspended"
)

// Availability is what a user advertises to potential collaborators.
type Availability string

const (
	Available          Availability = "Available"
	Busy               Availability = "Busy"
	Unavailable        Availability = "Unavailable"
	LookingForProjects Availability = "Looking for projects"
)

// User is the subset of a user profile the realtime layer reads.
type User struct {
	ID           string       `json:"id"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Email        string       `json:"email"`
	Avatar       string       `json:"avatar,omitempty"`
	Availability Availability `json:"availability"`
	IsAdmin      bool         `json:"isAdmin"`
	Status       UserStatus   `json:"status"`
	LastActive   time.Time    `json:"lastActive"`
}

// IsActive reports whether the account may open realtime connections.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserActive
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Summary returns the minimal public view sent with presence events.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		DisplayName:  u.DisplayName(),
		Avatar:       u.Avatar,
		Availability: u.Availability,
	}
}

// UserSummary is the public, minimal description of a user.
type UserSummary struct {
	ID           string       `json:"id"`
	FirstName    string       `json:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty"`
	DisplayName  string       `json:"displayName"`
	Avatar       string       `json:"avatar,omitempty"`
	Availability Availability `json:"availability,omitempty"`
}
