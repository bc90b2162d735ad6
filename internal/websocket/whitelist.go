package websocket

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/nfrund/collabhub/internal/realtime"
)

var (
	// ErrCommandAlreadyAllowed is returned when adding a command twice.
	ErrCommandAlreadyAllowed = errors.New("command already exists in whitelist")
	// ErrInvalidCommand is returned for an empty command type.
	ErrInvalidCommand = errors.New("command cannot be empty")
)

// Whitelist holds the command types clients may send. Anything else is
// answered with an "Unknown event" error.
type Whitelist struct {
	mu      sync.RWMutex
	allowed []realtime.CommandType
}

// NewWhitelist creates a whitelist of the given commands, ignoring empty
// ones.
func NewWhitelist(commands ...realtime.CommandType) *Whitelist {
	valid := make([]realtime.CommandType, 0, len(commands))
	for _, cmd := range commands {
		if cmd != "" {
			valid = append(valid, cmd)
		}
	}
	return &Whitelist{allowed: valid}
}

// DefaultWhitelist allows every command the dispatcher understands.
func DefaultWhitelist() *Whitelist {
	return NewWhitelist(realtime.CommandTypes()...)
}

// IsAllowed reports whether clients may send cmd.
func (w *Whitelist) IsAllowed(cmd realtime.CommandType) bool {
	if cmd == "" {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.allowed, cmd)
}

// Add allows cmd.
func (w *Whitelist) Add(cmd realtime.CommandType) error {
	if cmd == "" {
		return ErrInvalidCommand
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.allowed, cmd) {
		return ErrCommandAlreadyAllowed
	}
	w.allowed = append(w.allowed, cmd)
	slog.Info("Added command to whitelist", "command", cmd)
	return nil
}

// Remove disallows cmd. It reports whether cmd was allowed.
func (w *Whitelist) Remove(cmd realtime.CommandType) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.Index(w.allowed, cmd)
	if i < 0 {
		return false
	}
	w.allowed = slices.Delete(w.allowed, i, i+1)
	return true
}
