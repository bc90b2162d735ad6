package surreal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/nfrund/collabhub/internal/backoff"
	"github.com/nfrund/collabhub/internal/config"
	"github.com/surrealdb/surrealdb.go"
)

// Connection manages a SurrealDB connection, reconnecting with backoff
// when an operation fails for network reasons.
type Connection struct {
	cfg    config.Provider
	retry  backoff.Policy
	logger *slog.Logger

	mu   sync.RWMutex
	conn *surrealdb.DB
}

// NewConnection creates an unconnected Connection.
func NewConnection(cfg config.Provider) *Connection {
	return &Connection{
		cfg:    cfg,
		retry:  backoff.Default(),
		logger: slog.Default().With("component", "surreal"),
	}
}

// Connect establishes the initial connection, retrying with backoff.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	return c.retry.Retry(ctx, func() error {
		return c.reconnect(ctx)
	})
}

// WithConnection runs fn on the current connection. If fn fails with a
// connection error the connection is re-established and fn retried.
func (c *Connection) WithConnection(ctx context.Context, fn func(*surrealdb.DB) error) error {
	conn := c.current()
	if conn == nil {
		return NewDBError(ErrNotConnected, "database not connected")
	}

	err := fn(conn)
	if err == nil || !isConnectionError(err) {
		return err
	}

	c.logger.WarnContext(ctx, "Database operation failed, reconnecting", "error", err, "db_url", redactDBURL(c.cfg.GetDBURL()))
	return c.retry.Retry(ctx, func() error {
		c.mu.Lock()
		rerr := c.reconnect(ctx)
		c.mu.Unlock()
		if rerr != nil {
			return fmt.Errorf("reconnection failed: %w (original error: %v)", rerr, err)
		}
		return fn(c.current())
	})
}

// Ping checks the connection by asking the server for its version.
func (c *Connection) Ping(ctx context.Context) error {
	return c.WithConnection(ctx, func(db *surrealdb.DB) error {
		_, err := db.Version(ctx)
		return err
	})
}

// Close closes the connection.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	return err
}

func (c *Connection) current() *surrealdb.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// reconnect must be called with mu held.
func (c *Connection) reconnect(ctx context.Context) error {
	if c.conn != nil {
		c.conn.Close(ctx)
		c.conn = nil
	}

	dbURL := c.cfg.GetDBURL()
	c.logger.DebugContext(ctx, "Connecting to database", "db_url", redactDBURL(dbURL))

	conn, err := surrealdb.FromEndpointURLString(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database at %s: %w", redactDBURL(dbURL), err)
	}

	if _, err = conn.SignIn(ctx, &surrealdb.Auth{
		Username: c.cfg.GetDBUser(),
		Password: c.cfg.GetDBPass(),
	}); err != nil {
		conn.Close(ctx)
		return backoff.Permanent(fmt.Errorf("failed to sign in: %w", err))
	}

	if err = conn.Use(ctx, c.cfg.GetDBNs(), c.cfg.GetDBDb()); err != nil {
		conn.Close(ctx)
		return fmt.Errorf("failed to use namespace/db: %w", err)
	}

	c.conn = conn
	c.logger.InfoContext(ctx, "Database connection established",
		"db_url", redactDBURL(dbURL), "namespace", c.cfg.GetDBNs(), "database", c.cfg.GetDBDb())
	return nil
}

// isConnectionError checks if an error is likely due to a lost connection
// rather than a failed statement.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "use of closed network connection")
}

// redactDBURL returns the URL with any password replaced.
func redactDBURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	return parsed.Redacted()
}
