// Package testutils holds helpers shared by integration tests that talk to
// real backing services.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/nfrund/collabhub/internal/config"
)

// IntegrationEnv loads .env.test from the project root when one exists and
// returns the value of key. The test is skipped in short mode or when key
// is unset.
func IntegrationEnv(t *testing.T, key string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	loadEnvTest(t)

	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// ConfigForTests returns configuration read from the environment after
// .env.test has been applied. It does not validate, so tests can adjust
// fields first.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()
	loadEnvTest(t)
	return config.FromEnv()
}

// loadEnvTest finds the project root by looking for go.mod and applies
// .env.test with t.Setenv. A missing file is not an error.
func loadEnvTest(t *testing.T) {
	t.Helper()
	path, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			break
		}
		if path == filepath.Dir(path) {
			return
		}
		path = filepath.Dir(path)
	}

	env, err := godotenv.Read(filepath.Join(path, ".env.test"))
	if err != nil {
		return
	}
	for key, value := range env {
		if _, set := os.LookupEnv(key); !set {
			t.Setenv(key, value)
		}
	}
}
