package topicmgr

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Manager is a concurrency-safe topic registry.
type Manager struct {
	mu     sync.RWMutex
	topics map[string]Topic
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{topics: make(map[string]Topic)}
}

var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the process-wide registry used by package-level event definitions.
func Default() *Manager {
	defaultOnce.Do(func() { defaultManager = NewManager() })
	return defaultManager
}

// Register validates and adds a topic. Registering the same name twice fails.
func (m *Manager) Register(t Topic) error {
	if err := t.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.topics[t.Name]; exists {
		return &TopicError{Kind: ErrorDuplicateRegistration, Topic: t.Name, Message: "topic already registered"}
	}
	if t.RegisteredAt.IsZero() {
		t.RegisteredAt = time.Now().UTC()
	}
	m.topics[t.Name] = t
	return nil
}

// MustRegister is Register for package-level definitions, where a failure
// is a programming error.
func (m *Manager) MustRegister(t Topic) {
	if err := m.Register(t); err != nil {
		panic(err)
	}
}

// Get looks a topic up by name.
func (m *Manager) Get(name string) (Topic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.topics[name]
	return t, ok
}

// List returns every topic sorted by name.
func (m *Manager) List() []Topic {
	m.mu.RLock()
	out := make([]Topic, 0, len(m.topics))
	for _, t := range m.topics {
		out = append(out, t)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Topic) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// ListByModule returns the topics owned by module, sorted by name.
func (m *Manager) ListByModule(module string) []Topic {
	var out []Topic
	for _, t := range m.List() {
		if t.Module == module {
			out = append(out, t)
		}
	}
	return out
}

// Count returns the number of registered topics.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics)
}
