// Package access decides who may act on a project, from the persisted
// team roster and the user's admin flag.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/nfrund/collabhub/internal/domain"
)

// Checker implements domain.ProjectAuthorizer on top of the stores.
type Checker struct {
	projects domain.ProjectStore
	users    domain.UserDirectory
}

var _ domain.ProjectAuthorizer = (*Checker)(nil)

// NewChecker creates a Checker.
func NewChecker(projects domain.ProjectStore, users domain.UserDirectory) *Checker {
	return &Checker{projects: projects, users: users}
}

// IsActiveMemberOrAdmin reports whether userID holds an active seat on the
// project or is an admin. A missing project is domain.ErrNotFound even
// for admins.
func (c *Checker) IsActiveMemberOrAdmin(ctx context.Context, projectID, userID string) (bool, error) {
	project, err := c.projects.GetProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if project.IsActiveMember(userID) {
		return true, nil
	}
	return c.isAdmin(ctx, userID)
}

// CanUpdateProject additionally allows the project's creator.
func (c *Checker) CanUpdateProject(ctx context.Context, projectID, userID string) (bool, error) {
	project, err := c.projects.GetProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if project.CreatorID == userID || project.IsActiveMember(userID) {
		return true, nil
	}
	return c.isAdmin(ctx, userID)
}

func (c *Checker) isAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := c.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.IsAdmin && user.IsActive(), nil
}
