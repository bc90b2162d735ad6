package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nfrund/collabhub/internal/security"
	"github.com/nfrund/collabhub/internal/topicmgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "collabhub v"+version+"\n", out)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test")

	out, err := execute(t, "token", "alice")
	require.NoError(t, err)

	userID, err := security.NewTokenManager("cli-test", 0).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "alice")
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestTopicsCommand_JSON(t *testing.T) {
	out, err := execute(t, "topics", "--format", "json", "--module", "presence")
	require.NoError(t, err)

	var topics []topicmgr.Topic
	require.NoError(t, json.Unmarshal([]byte(out), &topics))
	var names []string
	for _, topic := range topics {
		names = append(names, topic.Name)
	}
	assert.Contains(t, names, "presence.user.online")
	assert.Contains(t, names, "presence.user.offline")
	assert.Contains(t, names, "presence.user.active")
}
