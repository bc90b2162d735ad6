package presence

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/realtime"
)

// Session is one live realtime connection.
type Session struct {
	UserID      string             `json:"user_id"`
	User        domain.UserSummary `json:"user"`
	Channel     realtime.Channel   `json:"-"`
	ChannelID   string             `json:"channel_id"`
	ConnectedAt time.Time          `json:"connected_at"`
}

// SessionRegistry maps each user to the connection that currently
// addresses them. At most one session per user is addressable; a newer
// registration replaces the older one, which is kept on standby until its
// transport closes.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	standby  map[string][]Session // oldest first
	now      func() time.Time
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
		standby:  make(map[string][]Session),
		now:      Now,
	}
}

// Register maps user to ch, overwriting any prior entry. It returns the
// replaced channel, if any.
func (r *SessionRegistry) Register(user domain.UserSummary, ch realtime.Channel) (realtime.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.sessions[user.ID]
	r.sessions[user.ID] = Session{
		UserID:      user.ID,
		User:        user,
		Channel:     ch,
		ChannelID:   ch.ID(),
		ConnectedAt: r.now(),
	}
	if existed {
		if prev.ChannelID != ch.ID() {
			r.standby[user.ID] = append(r.standby[user.ID], prev)
		}
		return prev.Channel, true
	}
	return nil, false
}

// Unregister removes every connection of userID and returns the
// addressable channel it held.
func (r *SessionRegistry) Unregister(userID string) (realtime.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.sessions[userID]
	delete(r.standby, userID)
	if !ok {
		return nil, false
	}
	delete(r.sessions, userID)
	return prev.Channel, true
}

// Release forgets the connection channelID of userID. A standby connection
// is just dropped. When channelID is the addressable connection, the most
// recent standby connection takes its place and is returned as next. gone
// reports that userID has no connection left.
func (r *SessionRegistry) Release(userID, channelID string) (next *Session, gone bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok || s.ChannelID != channelID {
		r.standby[userID] = slices.DeleteFunc(r.standby[userID], func(w Session) bool {
			return w.ChannelID == channelID
		})
		if len(r.standby[userID]) == 0 {
			delete(r.standby, userID)
		}
		return nil, false
	}

	waiting := r.standby[userID]
	if len(waiting) == 0 {
		delete(r.sessions, userID)
		return nil, true
	}
	promoted := waiting[len(waiting)-1]
	if len(waiting) == 1 {
		delete(r.standby, userID)
	} else {
		r.standby[userID] = waiting[:len(waiting)-1]
	}
	r.sessions[userID] = promoted
	return &promoted, false
}

// IsCurrent reports whether channelID is the addressable connection of userID.
func (r *SessionRegistry) IsCurrent(userID, channelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return ok && s.ChannelID == channelID
}

// Standby counts the superseded connections of userID that are still open.
func (r *SessionRegistry) Standby(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.standby[userID])
}

// Lookup returns the channel currently addressing userID.
func (r *SessionRegistry) Lookup(userID string) (realtime.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.Channel, true
}

// Session returns the full session for userID.
func (r *SessionRegistry) Session(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return s, ok
}

// ListAll returns a snapshot of all sessions ordered by user id. It is
// meant for diagnostics only.
func (r *SessionRegistry) ListAll() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int { return strings.Compare(a.UserID, b.UserID) })
	return out
}

// Channels returns the live channels for userIDs, skipping users with no session.
func (r *SessionRegistry) Channels(userIDs []string) []realtime.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]realtime.Channel, 0, len(userIDs))
	for _, id := range userIDs {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s.Channel)
		}
	}
	return out
}

// ChannelsExcept returns every live channel except the one for userID.
func (r *SessionRegistry) ChannelsExcept(userID string) []realtime.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]realtime.Channel, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id != userID {
			out = append(out, s.Channel)
		}
	}
	return out
}

// Count returns the number of addressable users.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}
