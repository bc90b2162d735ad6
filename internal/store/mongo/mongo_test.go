package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

func TestProjectDocConversion(t *testing.T) {
	done := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p := &domain.Project{
		ID:        "robotics",
		Title:     "Robot",
		CreatorID: "alice",
		TeamMembers: []domain.TeamMember{
			{UserID: "alice", Role: "Leader", Status: domain.MemberActive, JoinedAt: done},
		},
		Tasks: []domain.Task{{ID: "t1", Title: "Chassis", Status: domain.TaskCompleted, CompletedAt: &done}},
	}

	raw, err := bson.Marshal(projectToDoc(p))
	require.NoError(t, err)
	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "robotics", fields["_id"])
	assert.Contains(t, fields, "teamMembers")

	var back projectDoc
	require.NoError(t, bson.Unmarshal(raw, &back))
	got := back.toDomain()
	assert.Equal(t, p.TeamMembers[0].UserID, got.TeamMembers[0].UserID)
	require.NotNil(t, got.Tasks[0].CompletedAt)
	assert.True(t, done.Equal(*got.Tasks[0].CompletedAt))
}

func TestStore_Integration(t *testing.T) {
	uri := testutils.IntegrationEnv(t, "MONGO_URI")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := "collabhub_test_" + uuid.NewString()[:8]
	store, err := Open(ctx, uri, dbName)
	require.NoError(t, err)
	defer func() {
		store.db.Drop(context.Background())
		store.Close(context.Background())
	}()

	require.NoError(t, store.PutUser(ctx, &domain.User{ID: "alice", FirstName: "Alice", Status: domain.UserActive}))
	require.NoError(t, store.PutProject(ctx, &domain.Project{
		ID: "p1", Title: "Integration", CreatorID: "alice",
		TeamMembers: []domain.TeamMember{{UserID: "alice", Status: domain.MemberActive}, {UserID: "bob", Status: domain.MemberActive}},
		Tasks:       []domain.Task{{ID: "t1", Status: domain.TaskPending}, {ID: "t2", Status: domain.TaskPending}},
	}))

	_, err = store.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first, err := store.AppendMessage(ctx, "p1", &domain.OutboundMessage{SenderID: "alice", Content: "one", MessageType: domain.MessageText})
	require.NoError(t, err)
	second, err := store.AppendMessage(ctx, "p1", &domain.OutboundMessage{SenderID: "alice", Content: "two", MessageType: domain.MessageText})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := store.db.Collection(chatsCollection).CountDocuments(ctx, bson.M{"project": "p1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "one chat document per project")

	p, err := store.CompleteTask(ctx, "p1", "t2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 50, p.Progress)
	_, err = store.CompleteTask(ctx, "p1", "missing", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.TouchLastActive(ctx, "alice", time.Now()))
	assert.ErrorIs(t, store.TouchLastActive(ctx, "ghost", time.Now()), domain.ErrNotFound)
}

func TestStore_ConcurrentTaskCompletions(t *testing.T) {
	uri := testutils.IntegrationEnv(t, "MONGO_URI")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, uri, "collabhub_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	defer func() {
		store.db.Drop(context.Background())
		store.Close(context.Background())
	}()

	tasks := make([]domain.Task, 8)
	for i := range tasks {
		tasks[i] = domain.Task{ID: fmt.Sprintf("t%d", i), Status: domain.TaskPending}
	}
	require.NoError(t, store.PutProject(ctx, &domain.Project{ID: "race", CreatorID: "alice", Tasks: tasks}))

	var g errgroup.Group
	for _, task := range tasks[:3] {
		g.Go(func() error {
			_, err := store.CompleteTask(ctx, "race", task.ID, time.Now())
			return err
		})
	}
	require.NoError(t, g.Wait())

	p, err := store.GetProject(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 38, p.Progress, "3 of 8 rounds half up")
	for _, task := range p.Tasks[:3] {
		assert.Equal(t, domain.TaskCompleted, task.Status)
	}
}
