package presence

import (
	"sync"
	"testing"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/realtime/realtimetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(id string) domain.UserSummary {
	return domain.UserSummary{ID: id, FirstName: id, DisplayName: id}
}

func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewSessionRegistry()
	ch := realtimetest.NewRecorder("c1")

	prev, replaced := reg.Register(user("alice"), ch)
	assert.False(t, replaced)
	assert.Nil(t, prev)

	got, ok := reg.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())

	_, ok = reg.Lookup("bob")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())
}

func TestSessionRegistry_ReplaceKeepsLatest(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register(user("alice"), realtimetest.NewRecorder("c1"))

	prev, replaced := reg.Register(user("alice"), realtimetest.NewRecorder("c2"))
	require.True(t, replaced)
	assert.Equal(t, "c1", prev.ID())

	got, _ := reg.Lookup("alice")
	assert.Equal(t, "c2", got.ID())
	assert.Equal(t, 1, reg.Count())
}

func TestSessionRegistry_Unregister(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register(user("alice"), realtimetest.NewRecorder("c1"))

	prev, ok := reg.Unregister("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", prev.ID())

	prev, ok = reg.Unregister("alice")
	assert.False(t, ok)
	assert.Nil(t, prev)
}

func TestSessionRegistry_ReleaseStandby(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register(user("alice"), realtimetest.NewRecorder("c1"))
	reg.Register(user("alice"), realtimetest.NewRecorder("c2"))
	require.Equal(t, 1, reg.Standby("alice"))
	assert.False(t, reg.IsCurrent("alice", "c1"))
	assert.True(t, reg.IsCurrent("alice", "c2"))

	next, gone := reg.Release("alice", "c1")
	assert.Nil(t, next)
	assert.False(t, gone)
	assert.Zero(t, reg.Standby("alice"))
	assert.True(t, reg.IsCurrent("alice", "c2"))

	next, gone = reg.Release("alice", "c2")
	assert.Nil(t, next)
	assert.True(t, gone)
	_, ok := reg.Lookup("alice")
	assert.False(t, ok)
}

func TestSessionRegistry_ReleasePromotesNewestStandby(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register(user("alice"), realtimetest.NewRecorder("c1"))
	reg.Register(user("alice"), realtimetest.NewRecorder("c2"))
	reg.Register(user("alice"), realtimetest.NewRecorder("c3"))

	next, gone := reg.Release("alice", "c3")
	require.NotNil(t, next)
	assert.False(t, gone)
	assert.Equal(t, "c2", next.ChannelID)
	assert.True(t, reg.IsCurrent("alice", "c2"))
	assert.Equal(t, 1, reg.Count())

	next, _ = reg.Release("alice", "c2")
	require.NotNil(t, next)
	assert.Equal(t, "c1", next.ChannelID)

	_, gone = reg.Release("alice", "c1")
	assert.True(t, gone)
	assert.Zero(t, reg.Count())
}

func TestSessionRegistry_ReRegisterSameChannel(t *testing.T) {
	reg := NewSessionRegistry()
	ch := realtimetest.NewRecorder("c1")
	reg.Register(user("alice"), ch)
	reg.Register(user("alice"), ch)

	assert.Zero(t, reg.Standby("alice"))
	_, gone := reg.Release("alice", "c1")
	assert.True(t, gone)
}

func TestSessionRegistry_UnregisterDropsStandby(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register(user("alice"), realtimetest.NewRecorder("c1"))
	reg.Register(user("alice"), realtimetest.NewRecorder("c2"))

	_, ok := reg.Unregister("alice")
	require.True(t, ok)
	assert.Zero(t, reg.Standby("alice"))
}

func TestSessionRegistry_ListAllAndChannels(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register(user("carol"), realtimetest.NewRecorder("c3"))
	reg.Register(user("alice"), realtimetest.NewRecorder("c1"))
	reg.Register(user("bob"), realtimetest.NewRecorder("c2"))

	all := reg.ListAll()
	require.Len(t, all, 3)
	assert.Equal(t, "alice", all[0].UserID)
	assert.Equal(t, "c1", all[0].ChannelID)
	assert.False(t, all[0].ConnectedAt.IsZero())

	chans := reg.Channels([]string{"bob", "nobody", "carol"})
	require.Len(t, chans, 2)
	assert.Equal(t, "c2", chans[0].ID())
	assert.Equal(t, "c3", chans[1].ID())

	assert.Len(t, reg.ChannelsExcept("alice"), 2)
}

func TestSessionRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewSessionRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			reg.Register(user(id), realtimetest.NewRecorder(id))
			reg.Lookup(id)
			reg.ListAll()
			if i%3 == 0 {
				reg.Unregister(id)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, reg.Count(), 26)
}
