package surreal

import (
	"context"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/surrealdb/surrealdb.go"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// ContextKeyQueryTimeout overrides the default timeout for reads.
	ContextKeyQueryTimeout ContextKey = "db_query_timeout"
	// ContextKeyExecuteTimeout overrides the default timeout for writes.
	ContextKeyExecuteTimeout ContextKey = "db_execute_timeout"
)

// Client runs typed SurrealQL statements over a Connection. Reads and
// writes carry separate default timeouts.
type Client[T any] struct {
	conn           *Connection
	queryTimeout   time.Duration
	executeTimeout time.Duration
}

// NewClient creates a client for records of type T.
func NewClient[T any](conn *Connection, queryTimeout, executeTimeout time.Duration) *Client[T] {
	return &Client[T]{conn: conn, queryTimeout: queryTimeout, executeTimeout: executeTimeout}
}

// Query runs a read and returns the rows of its first statement.
func (c *Client[T]) Query(ctx context.Context, query string, params map[string]any) ([]T, error) {
	ctx, cancel := withTimeout(ctx, c.queryTimeout, ContextKeyQueryTimeout)
	defer cancel()
	return c.run(ctx, query, params)
}

// QueryOne runs a read and returns its first row, or a not-found error.
func (c *Client[T]) QueryOne(ctx context.Context, query string, params map[string]any) (*T, error) {
	ctx, cancel := withTimeout(ctx, c.queryTimeout, ContextKeyQueryTimeout)
	defer cancel()
	return c.first(ctx, query, params)
}

// Write runs a statement that modifies data and returns its first row,
// or a not-found error when it touched nothing.
func (c *Client[T]) Write(ctx context.Context, query string, params map[string]any) (*T, error) {
	ctx, cancel := withTimeout(ctx, c.executeTimeout, ContextKeyExecuteTimeout)
	defer cancel()
	return c.first(ctx, query, params)
}

// Exec runs a write whose result is not needed.
func (c *Client[T]) Exec(ctx context.Context, query string, params map[string]any) error {
	ctx, cancel := withTimeout(ctx, c.executeTimeout, ContextKeyExecuteTimeout)
	defer cancel()
	err := c.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		_, err := surrealdb.Query[any](ctx, db, query, params)
		return err
	})
	if err != nil {
		return NewDBError(err, "query execution failed").WithQuery(query, params)
	}
	return nil
}

func (c *Client[T]) first(ctx context.Context, query string, params map[string]any) (*T, error) {
	rows, err := c.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, NewDBError(domain.ErrNotFound, "no matching record").WithQuery(query, params)
	}
	return &rows[0], nil
}

func (c *Client[T]) run(ctx context.Context, query string, params map[string]any) ([]T, error) {
	var rows []T
	err := c.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		results, err := surrealdb.Query[[]T](ctx, db, query, params)
		if err != nil {
			return err
		}
		if results == nil || len(*results) == 0 {
			rows = nil
			return nil
		}
		rows = (*results)[0].Result
		return nil
	})
	if err != nil {
		return nil, NewDBError(err, "query execution failed").WithQuery(query, params)
	}
	return rows, nil
}

// withTimeout applies the timeout stored in ctx under key, or def.
func withTimeout(ctx context.Context, def time.Duration, key ContextKey) (context.Context, context.CancelFunc) {
	timeout := def
	if v, ok := ctx.Value(key).(time.Duration); ok && v > 0 {
		timeout = v
	}
	return context.WithTimeout(ctx, timeout)
}
