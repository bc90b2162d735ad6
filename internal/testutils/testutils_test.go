package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrationEnv_ReturnsValue(t *testing.T) {
	if testing.Short() {
		t.Skip("IntegrationEnv skips in short mode")
	}
	t.Setenv("COLLABHUB_TESTUTILS_PROBE", "present")
	assert.Equal(t, "present", IntegrationEnv(t, "COLLABHUB_TESTUTILS_PROBE"))
}

func TestConfigForTests_ReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ADDR", ":9999")
	cfg := ConfigForTests(t)
	assert.Equal(t, ":9999", cfg.AppAddr)
}
