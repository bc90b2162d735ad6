package access

import (
	"context"
	"testing"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker(t *testing.T) {
	store := memory.New()
	store.Seed()
	store.PutProject(domain.Project{ID: "solo", Title: "Solo", CreatorID: "carol"})
	checker := NewChecker(store, store)
	ctx := context.Background()

	tests := []struct {
		name       string
		projectID  string
		userID     string
		wantMember bool
		wantUpdate bool
	}{
		{"active member", "robotics", "bob", true, true},
		{"former member", "robotics", "carol", false, false},
		{"admin", "robotics", "admin", true, true},
		{"creator without seat", "solo", "carol", false, true},
		{"stranger", "solo", "bob", false, false},
		{"unknown user", "robotics", "ghost", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := checker.IsActiveMemberOrAdmin(ctx, tt.projectID, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMember, ok)

			ok, err = checker.CanUpdateProject(ctx, tt.projectID, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUpdate, ok)
		})
	}
}

func TestChecker_MissingProject(t *testing.T) {
	store := memory.New()
	store.Seed()
	checker := NewChecker(store, store)

	_, err := checker.IsActiveMemberOrAdmin(context.Background(), "nope", "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = checker.CanUpdateProject(context.Background(), "nope", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
