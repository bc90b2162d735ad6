package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/pubsub"
	"github.com/nfrund/collabhub/internal/realtime"
	"github.com/nfrund/collabhub/internal/realtime/realtimetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthz allows (project, user) pairs listed in members.
type fakeAuthz struct {
	members map[string][]string
	err     error
	calls   int
}

func (f *fakeAuthz) IsActiveMemberOrAdmin(ctx context.Context, projectID, userID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.members[projectID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type authzFunc func(ctx context.Context, projectID, userID string) (bool, error)

func (fn authzFunc) IsActiveMemberOrAdmin(ctx context.Context, projectID, userID string) (bool, error) {
	return fn(ctx, projectID, userID)
}

// mockPublisher implements pubsub.Publisher for testing
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, msg.Topic)
	}
	return out
}

type fixture struct {
	coord *Coordinator
	authz *fakeAuthz
	pub   *mockPublisher
	chans map[string]*realtimetest.Recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		authz: &fakeAuthz{members: map[string][]string{
			"P1": {"alice", "bob"},
			"P2": {"alice", "dave"},
		}},
		pub:   &mockPublisher{},
		chans: make(map[string]*realtimetest.Recorder),
	}
	clock := func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithPublisher(f.pub), WithClock(clock)}, opts...)
	f.coord = NewCoordinator(NewSessionRegistry(), NewRoomIndex(), f.authz, opts...)
	return f
}

func (f *fixture) connect(id string) *realtimetest.Recorder {
	ch := realtimetest.NewRecorder(id + "-conn")
	f.chans[id] = ch
	f.coord.OnConnect(context.Background(), user(id), ch)
	return ch
}

func (f *fixture) resetAll() {
	for _, ch := range f.chans {
		ch.Reset()
	}
}

func TestCoordinator_OnConnectBroadcastsOnlineToOthers(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	bob := f.connect("bob")

	assert.Empty(t, alice.EventsOf(realtime.EventPresenceOffline))
	online := alice.EventsOf(realtime.EventPresenceOnline)
	require.Len(t, online, 1)

	payload, err := realtimetest.Decode[realtime.PresencePayload](online[0])
	require.NoError(t, err)
	assert.Equal(t, "bob", payload.UserID)
	require.NotNil(t, payload.User)
	assert.Equal(t, "bob", payload.User.DisplayName)

	assert.Empty(t, bob.EventsOf(realtime.EventPresenceOnline), "the connecting user is not told about itself")
	assert.Equal(t, []string{"presence.user.online", "presence.user.online"}, f.pub.topics())
}

func TestCoordinator_OnlineBroadcastDisabled(t *testing.T) {
	f := newFixture(t, WithOnlineBroadcast(false))
	alice := f.connect("alice")
	f.connect("bob")

	assert.Empty(t, alice.Events())
	assert.Len(t, f.pub.topics(), 2, "bus events are still published")
}

func TestCoordinator_JoinRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	bob := f.connect("bob")
	carol := f.connect("carol")
	ctx := context.Background()

	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	f.resetAll()

	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))

	joined := bob.EventsOf(realtime.EventRoomJoined)
	require.Len(t, joined, 1)
	ack, err := realtimetest.Decode[realtime.RoomJoinedPayload](joined[0])
	require.NoError(t, err)
	assert.Equal(t, "P1", ack.ProjectID)
	assert.Len(t, ack.Members, 2)

	memberJoined := alice.EventsOf(realtime.EventMemberJoined)
	require.Len(t, memberJoined, 1)
	mp, err := realtimetest.Decode[realtime.MemberPayload](memberJoined[0])
	require.NoError(t, err)
	assert.Equal(t, "bob", mp.User.ID)
	assert.Equal(t, "P1", mp.ProjectID)

	assert.Empty(t, bob.EventsOf(realtime.EventMemberJoined), "joiner does not hear its own join")
	assert.Empty(t, carol.Events(), "non-subscribers hear nothing")
	assert.Equal(t, []string{"alice", "bob"}, f.coord.Rooms().MembersOf("P1"))
}

func TestCoordinator_RejoinDoesNotRebroadcast(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	bob := f.connect("bob")
	ctx := context.Background()

	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))
	f.resetAll()

	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))

	assert.Empty(t, alice.Events())
	assert.Len(t, bob.EventsOf(realtime.EventRoomJoined), 1)
}

func TestCoordinator_JoinRoomDenied(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	f.connect("carol")
	ctx := context.Background()
	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	f.resetAll()

	err := f.coord.JoinRoom(ctx, "carol", "P1")

	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Equal(t, []string{"alice"}, f.coord.Rooms().MembersOf("P1"))
	assert.Empty(t, alice.Events())
}

func TestCoordinator_JoinRoomAuthorizationFailure(t *testing.T) {
	f := newFixture(t)
	f.connect("alice")
	f.authz.err = domain.ErrNotFound

	err := f.coord.JoinRoom(context.Background(), "alice", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.coord.Rooms().RoomsOf("alice"))
}

func TestCoordinator_JoinRoomWithoutSession(t *testing.T) {
	f := newFixture(t)

	err := f.coord.JoinRoom(context.Background(), "alice", "P1")

	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Zero(t, f.authz.calls)
}

func TestCoordinator_LeaveRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	bob := f.connect("bob")
	ctx := context.Background()
	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))
	f.resetAll()

	f.coord.LeaveRoom(ctx, "bob", "P1")
	f.coord.LeaveRoom(ctx, "bob", "P1")

	assert.Len(t, alice.EventsOf(realtime.EventMemberLeft), 1, "second leave is a no-op")
	assert.Empty(t, bob.Events())
	assert.Equal(t, []string{"alice"}, f.coord.Rooms().MembersOf("P1"))
}

func TestCoordinator_OnDisconnectCascades(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	bob := f.connect("bob")
	dave := f.connect("dave")
	ctx := context.Background()

	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P2"))
	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))
	f.resetAll()

	assert.True(t, f.coord.OnDisconnect(ctx, "alice", alice))

	bobLeft := bob.EventsOf(realtime.EventMemberLeft)
	require.Len(t, bobLeft, 1)
	payload, err := realtimetest.Decode[realtime.MemberPayload](bobLeft[0])
	require.NoError(t, err)
	assert.Equal(t, "P1", payload.ProjectID)
	assert.Equal(t, "alice", payload.User.ID)

	assert.Empty(t, dave.EventsOf(realtime.EventMemberLeft), "dave never joined P2's room")
	assert.Len(t, bob.EventsOf(realtime.EventPresenceOffline), 1)
	assert.Len(t, dave.EventsOf(realtime.EventPresenceOffline), 1)
	assert.Equal(t,
		[]realtime.EventType{realtime.EventMemberLeft, realtime.EventPresenceOffline},
		bob.Types(), "room departures precede the offline event")

	assert.Empty(t, f.coord.Rooms().RoomsOf("alice"))
	_, ok := f.coord.Sessions().Lookup("alice")
	assert.False(t, ok)
	assert.Contains(t, f.pub.topics(), "presence.user.offline")
}

func TestCoordinator_OnDisconnectEmitsOneLeftPerRoom(t *testing.T) {
	f := newFixture(t)
	f.authz.members = map[string][]string{"P1": {"alice", "bob"}, "P2": {"alice", "bob"}, "P3": {"alice", "bob"}}
	alice := f.connect("alice")
	bob := f.connect("bob")
	ctx := context.Background()
	for _, p := range []string{"P1", "P2", "P3"} {
		require.NoError(t, f.coord.JoinRoom(ctx, "alice", p))
		require.NoError(t, f.coord.JoinRoom(ctx, "bob", p))
	}
	f.resetAll()

	f.coord.OnDisconnect(ctx, "alice", alice)

	assert.Len(t, bob.EventsOf(realtime.EventMemberLeft), 3)
	assert.Empty(t, f.coord.Rooms().RoomsOf("alice"))
}

func TestCoordinator_OnDisconnectStopsTyping(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	bob := f.connect("bob")
	ctx := context.Background()
	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))
	f.coord.Rooms().SetTyping("P1", "alice", true)
	f.resetAll()

	f.coord.OnDisconnect(ctx, "alice", alice)

	assert.Equal(t,
		[]realtime.EventType{realtime.EventTypingStop, realtime.EventMemberLeft, realtime.EventPresenceOffline},
		bob.Types())
}

func TestCoordinator_StaleConnectionDoesNotTearDown(t *testing.T) {
	f := newFixture(t)
	first := f.connect("alice")
	bob := f.connect("bob")
	ctx := context.Background()

	second := realtimetest.NewRecorder("alice-second")
	f.coord.OnConnect(ctx, user("alice"), second)
	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	bob.Reset()

	assert.False(t, f.coord.OnDisconnect(ctx, "alice", first))

	assert.Empty(t, bob.Events())
	assert.True(t, f.coord.Rooms().IsMember("P1", "alice"))
	ch, ok := f.coord.Sessions().Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "alice-second", ch.ID())
}

func TestCoordinator_SecondTabClosingPromotesFirst(t *testing.T) {
	f := newFixture(t)
	tab1 := f.connect("alice")
	bob := f.connect("bob")
	ctx := context.Background()
	tab2 := realtimetest.NewRecorder("alice-tab2")
	f.coord.OnConnect(ctx, user("alice"), tab2)

	assert.False(t, f.coord.Authoritative("alice", tab1.ID()))
	assert.True(t, f.coord.Authoritative("alice", tab2.ID()))

	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P1"))
	require.NoError(t, f.coord.JoinRoom(ctx, "bob", "P1"))
	f.coord.Rooms().SetTyping("P1", "alice", true)
	assert.Empty(t, tab1.EventsOf(realtime.EventRoomJoined), "only the addressable tab gets the ack")
	assert.Len(t, tab2.EventsOf(realtime.EventRoomJoined), 1)
	f.resetAll()
	tab2.Reset()

	assert.False(t, f.coord.OnDisconnect(ctx, "alice", tab2), "tab1 is still open")

	assert.True(t, f.coord.Authoritative("alice", tab1.ID()))
	assert.True(t, f.coord.Rooms().IsMember("P1", "alice"))
	assert.False(t, f.coord.Rooms().IsTyping("P1", "alice"))
	assert.Equal(t, []realtime.EventType{realtime.EventTypingStop}, bob.Types(), "no member left or offline for a promoted tab")
	assert.NotContains(t, f.pub.topics(), "presence.user.offline")

	require.NoError(t, f.coord.JoinRoom(ctx, "alice", "P2"))
	assert.Len(t, tab1.EventsOf(realtime.EventRoomJoined), 1)

	assert.True(t, f.coord.OnDisconnect(ctx, "alice", tab1))
	assert.Contains(t, bob.Types(), realtime.EventPresenceOffline)
	assert.Empty(t, f.coord.Rooms().RoomsOf("alice"))
}

func TestCoordinator_JoinRoomReplacedDuringAuthorization(t *testing.T) {
	f := newFixture(t)
	f.connect("alice")
	ctx := context.Background()
	f.coord.authz = authzFunc(func(ctx context.Context, projectID, userID string) (bool, error) {
		f.coord.OnConnect(ctx, user("alice"), realtimetest.NewRecorder("alice-tab2"))
		return true, nil
	})

	err := f.coord.JoinRoom(ctx, "alice", "P1")

	assert.ErrorIs(t, err, domain.ErrSessionReplaced)
	assert.Empty(t, f.coord.Rooms().RoomsOf("alice"))
}

func TestCoordinator_UnreachableRecipientDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	alice.SetUnreachable(true)

	bob := f.connect("bob")

	assert.Equal(t, 1, alice.Rejected())
	_, ok := f.coord.Sessions().Lookup("bob")
	assert.True(t, ok)
	assert.Empty(t, bob.EventsOf(realtime.EventError))
}

func TestCoordinator_Heartbeat(t *testing.T) {
	f := newFixture(t)
	f.coord.Heartbeat(context.Background(), "alice")
	assert.Equal(t, []string{"presence.user.active"}, f.pub.topics())
}

func TestCoordinator_DefaultPublisherDiscards(t *testing.T) {
	c := NewCoordinator(NewSessionRegistry(), NewRoomIndex(), &fakeAuthz{err: errors.New("unused")})
	c.OnConnect(context.Background(), user("alice"), realtimetest.NewRecorder("a"))
	c.Heartbeat(context.Background(), "alice")
	assert.Equal(t, 1, c.Sessions().Count())
}
