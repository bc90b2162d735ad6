package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/collabhub/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 1000; i++ {
		ok, err := l.Allow(context.Background(), "alice")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestRedis_WindowKey(t *testing.T) {
	r := NewRedis(nil, 5, time.Minute)
	r.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 42, 0, time.UTC) }

	key := r.windowKey("message:alice")
	assert.Equal(t, "ratelimit:message:alice:1767268800", key)

	r.now = func() time.Time { return time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC) }
	assert.NotEqual(t, key, r.windowKey("message:alice"), "a new window uses a new counter")
}

func TestRedis_Allow_Integration(t *testing.T) {
	addr := testutils.IntegrationEnv(t, "REDIS_ADDR")

	ctx := context.Background()
	client, err := NewClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	limiter := NewRedis(client, 3, time.Minute)
	key := "test:" + uuid.NewString()
	defer limiter.Reset(ctx, key)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i)
	}
	ok, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, key))
	ok, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
