package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nfrund/collabhub/internal/access"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/ratelimit"
	"github.com/nfrund/collabhub/internal/realtime"
	"github.com/nfrund/collabhub/internal/realtime/realtimetest"
	"github.com/nfrund/collabhub/internal/relay"
	"github.com/nfrund/collabhub/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }

type fixture struct {
	t     *testing.T
	store *memory.Store
	coord *presence.Coordinator
	disp  *Dispatcher
}

func newFixture(t *testing.T, limiter ratelimit.Limiter, wl *Whitelist) *fixture {
	t.Helper()
	store := memory.New()
	store.Seed()
	checker := access.NewChecker(store, store)
	coord := presence.NewCoordinator(presence.NewSessionRegistry(), presence.NewRoomIndex(), checker)
	r := relay.New(relay.Deps{
		Coordinator:   coord,
		Access:        checker,
		Projects:      store,
		Chats:         store,
		Notifications: store,
		Limiter:       limiter,
	})
	return &fixture{t: t, store: store, coord: coord, disp: NewDispatcher(coord, r, wl)}
}

func (f *fixture) connect(userID string) *realtimetest.Recorder {
	f.t.Helper()
	user, err := f.store.GetUser(context.Background(), userID)
	require.NoError(f.t, err)
	rec := realtimetest.NewRecorder("conn-" + userID)
	f.coord.OnConnect(context.Background(), user.Summary(), rec)
	rec.Reset()
	return rec
}

func (f *fixture) send(userID string, ch realtime.Channel, t realtime.CommandType, payload any) {
	f.t.Helper()
	cmd, err := realtime.NewCommand(t, payload)
	require.NoError(f.t, err)
	frame, err := json.Marshal(cmd)
	require.NoError(f.t, err)
	f.disp.Dispatch(context.Background(), userID, ch, frame)
}

func errorsOf(t *testing.T, rec *realtimetest.Recorder) []string {
	t.Helper()
	var out []string
	for _, ev := range rec.EventsOf(realtime.EventError) {
		p, err := realtimetest.Decode[realtime.ErrorPayload](ev)
		require.NoError(t, err)
		out = append(out, p.Message)
	}
	return out
}

func room(id string) realtime.RoomArgs { return realtime.RoomArgs{ProjectID: id} }

func TestDispatch_JoinRoom(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")
	bob := f.connect("bob")
	alice.Reset()

	f.send("bob", bob, realtime.CommandJoinRoom, room("robotics"))
	f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))

	assert.Empty(t, errorsOf(t, alice))
	assert.Equal(t, []realtime.EventType{realtime.EventRoomJoined}, alice.Types())
	assert.Contains(t, bob.Types(), realtime.EventMemberJoined)
	assert.True(t, f.coord.Rooms().IsMember("robotics", "alice"))
}

func TestDispatch_JoinRoomErrors(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		payload any
		want    string
	}{
		{name: "missing payload", user: "alice", payload: nil, want: "Project ID is required"},
		{name: "empty project id", user: "alice", payload: room(""), want: "Project ID is required"},
		{name: "unknown project", user: "alice", payload: room("nope"), want: "Project not found"},
		{name: "former member", user: "carol", payload: room("robotics"), want: "Access denied to project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			ch := f.connect(tt.user)

			f.send(tt.user, ch, realtime.CommandJoinRoom, tt.payload)

			assert.Equal(t, []string{tt.want}, errorsOf(t, ch))
			assert.Empty(t, f.coord.Rooms().RoomsOf(tt.user))
		})
	}
}

func TestDispatch_SendMessage(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")
	bob := f.connect("bob")
	f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))
	f.send("bob", bob, realtime.CommandJoinRoom, room("robotics"))
	alice.Reset()
	bob.Reset()

	f.send("alice", alice, realtime.CommandSendMessage, realtime.SendMessageArgs{ProjectID: "robotics", Content: "hello team"})

	require.Len(t, bob.EventsOf(realtime.EventMessageDelivered), 1)
	require.Len(t, alice.EventsOf(realtime.EventMessageDelivered), 1)
	assert.Len(t, bob.EventsOf(realtime.EventNotification), 1)

	delivered, err := realtimetest.Decode[realtime.MessagePayload](bob.EventsOf(realtime.EventMessageDelivered)[0])
	require.NoError(t, err)
	assert.Equal(t, "hello team", delivered.Message.Content)
	assert.Equal(t, "alice", delivered.Message.Sender.ID)

	assert.Len(t, f.store.Messages("robotics"), 1)
	assert.Len(t, f.store.Notifications("bob"), 1)
}

func TestDispatch_SendMessageErrors(t *testing.T) {
	t.Run("missing content", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		alice := f.connect("alice")
		f.send("alice", alice, realtime.CommandSendMessage, map[string]string{"projectId": "robotics"})
		assert.Equal(t, []string{"Project ID and content are required"}, errorsOf(t, alice))
	})

	t.Run("not subscribed", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		alice := f.connect("alice")
		f.send("alice", alice, realtime.CommandSendMessage, realtime.SendMessageArgs{ProjectID: "robotics", Content: "hi"})
		assert.Equal(t, []string{"Access denied to project"}, errorsOf(t, alice))
		assert.Empty(t, f.store.Messages("robotics"))
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, denyLimiter{}, nil)
		alice := f.connect("alice")
		f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))
		f.send("alice", alice, realtime.CommandSendMessage, realtime.SendMessageArgs{ProjectID: "robotics", Content: "hi"})
		assert.Equal(t, []string{"Too many messages, slow down"}, errorsOf(t, alice))
	})

	t.Run("unknown message type", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		alice := f.connect("alice")
		f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))
		f.send("alice", alice, realtime.CommandSendMessage, realtime.SendMessageArgs{ProjectID: "robotics", Content: "hi", MessageType: "Video"})
		assert.Equal(t, []string{"Invalid message"}, errorsOf(t, alice))
	})
}

func TestDispatch_UnknownAndMalformed(t *testing.T) {
	f := newFixture(t, nil, NewWhitelist(realtime.CommandPing))
	alice := f.connect("alice")

	f.disp.Dispatch(context.Background(), "alice", alice, []byte(`{not json`))
	f.disp.Dispatch(context.Background(), "alice", alice, []byte(`{"type":"game.move"}`))
	f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))
	f.send("alice", alice, realtime.CommandPing, nil)

	assert.Equal(t, []string{"Unknown event", "Unknown event", "Unknown event"}, errorsOf(t, alice))
	assert.Empty(t, f.coord.Rooms().RoomsOf("alice"))
}

func TestDispatch_Typing(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")
	bob := f.connect("bob")

	f.send("alice", alice, realtime.CommandTypingStart, room("robotics"))
	assert.Equal(t, []string{"Access denied to project"}, errorsOf(t, alice))

	f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))
	f.send("bob", bob, realtime.CommandJoinRoom, room("robotics"))
	bob.Reset()

	f.send("alice", alice, realtime.CommandTypingStart, room("robotics"))
	f.send("alice", alice, realtime.CommandTypingStop, room("robotics"))

	assert.Equal(t, []realtime.EventType{realtime.EventTypingStart, realtime.EventTypingStop}, bob.Types())
	assert.Empty(t, alice.EventsOf(realtime.EventTypingStart), "typing is not echoed to the typist")
}

func TestDispatch_LeaveRoom(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")
	bob := f.connect("bob")
	f.send("alice", alice, realtime.CommandJoinRoom, room("robotics"))
	f.send("bob", bob, realtime.CommandJoinRoom, room("robotics"))
	bob.Reset()

	f.send("alice", alice, realtime.CommandLeaveRoom, room("robotics"))
	f.send("alice", alice, realtime.CommandLeaveRoom, room("robotics"))

	assert.Equal(t, []realtime.EventType{realtime.EventMemberLeft}, bob.Types())
	assert.Empty(t, errorsOf(t, alice))
}

func TestDispatch_ProjectUpdates(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")
	bob := f.connect("bob")
	f.send("bob", bob, realtime.CommandJoinRoom, room("robotics"))
	bob.Reset()

	progress := 150
	f.send("alice", alice, realtime.CommandProgress, realtime.ProgressArgs{ProjectID: "robotics", Progress: &progress})
	assert.Equal(t, []string{"Project ID and progress between 0 and 100 are required"}, errorsOf(t, alice))

	progress = 40
	f.send("alice", alice, realtime.CommandProgress, realtime.ProgressArgs{ProjectID: "robotics", Progress: &progress})
	require.Len(t, bob.EventsOf(realtime.EventProjectUpdated), 1)
	project, err := f.store.GetProject(context.Background(), "robotics")
	require.NoError(t, err)
	assert.Equal(t, 40, project.Progress)

	alice.Reset()
	f.send("alice", alice, realtime.CommandTaskComplete, realtime.TaskCompleteArgs{ProjectID: "robotics", TaskID: "wheels"})
	assert.Equal(t, []string{"Project or task not found"}, errorsOf(t, alice))

	f.send("alice", alice, realtime.CommandTaskComplete, realtime.TaskCompleteArgs{ProjectID: "robotics", TaskID: "chassis"})
	completed := bob.EventsOf(realtime.EventTaskCompleted)
	require.Len(t, completed, 1)
	payload, err := realtimetest.Decode[realtime.TaskCompletedPayload](completed[0])
	require.NoError(t, err)
	assert.Equal(t, 50, payload.Progress)
}

func TestDispatch_MatchRequest(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")
	carol := f.connect("carol")

	f.send("alice", alice, realtime.CommandMatchRequest, realtime.MatchRequestArgs{RecipientID: "alice", ProjectID: "robotics"})
	assert.Equal(t, []string{"Invalid match request"}, errorsOf(t, alice))

	alice.Reset()
	f.send("alice", alice, realtime.CommandMatchRequest, realtime.MatchRequestArgs{RecipientID: "carol", ProjectID: "robotics", Message: "Want to join?"})
	f.send("alice", alice, realtime.CommandMatchRequest, realtime.MatchRequestArgs{RecipientID: "bob", ProjectID: "robotics"})

	assert.Empty(t, errorsOf(t, alice), "offline recipients are not an error")
	require.Len(t, carol.EventsOf(realtime.EventMatchRequest), 1)
}

func TestDispatch_PingIsSilent(t *testing.T) {
	f := newFixture(t, nil, nil)
	alice := f.connect("alice")

	f.send("alice", alice, realtime.CommandPing, nil)

	assert.Empty(t, alice.Events())
}

func TestDispatch_StandbyConnectionIsRefused(t *testing.T) {
	f := newFixture(t, nil, nil)
	tab1 := f.connect("alice")
	bob := f.connect("bob")
	alice, err := f.store.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	tab2 := realtimetest.NewRecorder("conn-alice-2")
	f.coord.OnConnect(context.Background(), alice.Summary(), tab2)
	f.send("bob", bob, realtime.CommandJoinRoom, room("robotics"))
	tab1.Reset()
	bob.Reset()

	f.send("alice", tab1, realtime.CommandJoinRoom, room("robotics"))
	f.send("alice", tab1, realtime.CommandPing, nil)

	assert.Equal(t, []string{"Session is active on another connection"}, errorsOf(t, tab1))
	assert.Empty(t, tab2.EventsOf(realtime.EventRoomJoined))
	assert.False(t, f.coord.Rooms().IsMember("robotics", "alice"))
	assert.Empty(t, bob.Types())

	f.coord.OnDisconnect(context.Background(), "alice", tab2)
	tab1.Reset()
	f.send("alice", tab1, realtime.CommandJoinRoom, room("robotics"))

	assert.Empty(t, errorsOf(t, tab1))
	assert.Len(t, tab1.EventsOf(realtime.EventRoomJoined), 1)
	assert.Contains(t, bob.Types(), realtime.EventMemberJoined)
}
