// Package store opens the backend selected in configuration and exposes it
// through the interfaces the realtime layer consumes.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/store/memory"
	"github.com/nfrund/collabhub/internal/store/mongo"
	"github.com/nfrund/collabhub/internal/store/surreal"
)

// Backend is what every store implementation provides.
type Backend interface {
	domain.ProjectStore
	domain.ChatStore
	domain.NotificationStore
	domain.UserDirectory
}

// Stores bundles the opened backend with its lifecycle.
type Stores struct {
	Backend
	Name string

	ping  func(context.Context) error
	close func(context.Context) error
}

// Ping checks the backend is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend's connections.
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Shutdown lets the application container close the backend on exit.
func (s *Stores) Shutdown(ctx context.Context) error {
	return s.Close(ctx)
}

// Memory returns the in-process store when that backend is active.
func (s *Stores) Memory() (*memory.Store, bool) {
	m, ok := s.Backend.(*memory.Store)
	return m, ok
}

// Open connects to the backend named by cfg.GetStoreBackend().
func Open(ctx context.Context, cfg config.Provider) (*Stores, error) {
	backend := cfg.GetStoreBackend()
	slog.InfoContext(ctx, "Opening store", "backend", backend)

	switch backend {
	case config.BackendMemory, "":
		return FromMemory(memory.New()), nil
	case config.BackendSurreal:
		s, err := surreal.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open surreal store: %w", err)
		}
		return &Stores{Backend: s, Name: config.BackendSurreal, ping: s.Ping, close: s.Close}, nil
	case config.BackendMongo:
		s, err := mongo.Open(ctx, cfg.GetMongoURI(), cfg.GetMongoDB())
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return &Stores{Backend: s, Name: config.BackendMongo, ping: s.Ping, close: s.Close}, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidInput, backend)
	}
}

// FromMemory wraps an in-process store.
func FromMemory(m *memory.Store) *Stores {
	return &Stores{Backend: m, Name: config.BackendMemory}
}
