package topicmgr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RegisterAndList(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Register(Define("presence.user.online", "user connected")))
	require.NoError(t, m.Register(Define("chat.message.persisted", "message stored")))
	require.NoError(t, m.Register(DefineFramework("ws.client.ready", "socket ready")))

	assert.Equal(t, 3, m.Count())

	names := []string{}
	for _, topic := range m.List() {
		names = append(names, topic.Name)
	}
	assert.Equal(t, []string{"chat.message.persisted", "presence.user.online", "ws.client.ready"}, names)

	presence := m.ListByModule("presence")
	require.Len(t, presence, 1)
	assert.Equal(t, ScopeModule, presence[0].Scope)
	assert.False(t, presence[0].RegisteredAt.IsZero())

	topic, ok := m.Get("ws.client.ready")
	require.True(t, ok)
	assert.Equal(t, ScopeFramework, topic.Scope)
	assert.Empty(t, topic.Module)
}

func TestManager_RegisterRejects(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(Define("presence.user.online", "user connected")))

	tests := []struct {
		name  string
		topic Topic
		kind  ErrorKind
	}{
		{name: "duplicate", topic: Define("presence.user.online", "again"), kind: ErrorDuplicateRegistration},
		{name: "uppercase", topic: Define("Presence.User", "bad"), kind: ErrorInvalidName},
		{name: "trailing dot", topic: Define("presence.", "bad"), kind: ErrorInvalidName},
		{name: "no description", topic: Define("presence.user.away", " "), kind: ErrorValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Register(tt.topic)
			var terr *TopicError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.kind, terr.Kind)
		})
	}
}

func TestManager_MustRegisterPanicsOnDuplicate(t *testing.T) {
	m := NewManager()
	m.MustRegister(Define("relay.message.sent", "sent"))
	assert.Panics(t, func() { m.MustRegister(Define("relay.message.sent", "sent")) })
}
