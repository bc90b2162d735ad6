package presence

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// RoomMember is one subscription of a user to a project room.
type RoomMember struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
	Typing   bool      `json:"typing"`
}

// RoomIndex tracks which users are subscribed to which project rooms.
// It is process-local derived state, never the source of truth for team
// membership.
type RoomIndex struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*RoomMember // projectID -> userID -> member
	byUser map[string]map[string]struct{}    // userID -> projectIDs
	now    func() time.Time
}

// NewRoomIndex creates an empty index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		rooms:  make(map[string]map[string]*RoomMember),
		byUser: make(map[string]map[string]struct{}),
		now:    Now,
	}
}

// Join subscribes userID to projectID. It reports whether the user was
// newly added; joining twice has no further effect.
func (idx *RoomIndex) Join(projectID, userID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	room, ok := idx.rooms[projectID]
	if !ok {
		room = make(map[string]*RoomMember)
		idx.rooms[projectID] = room
	}
	if _, exists := room[userID]; exists {
		return false
	}
	room[userID] = &RoomMember{UserID: userID, JoinedAt: idx.now()}

	projects, ok := idx.byUser[userID]
	if !ok {
		projects = make(map[string]struct{})
		idx.byUser[userID] = projects
	}
	projects[projectID] = struct{}{}
	return true
}

// Leave unsubscribes userID from projectID. It reports whether the user
// was a member; leaving when absent is a no-op.
func (idx *RoomIndex) Leave(projectID, userID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.leaveLocked(projectID, userID)
}

func (idx *RoomIndex) leaveLocked(projectID, userID string) bool {
	room, ok := idx.rooms[projectID]
	if !ok {
		return false
	}
	if _, exists := room[userID]; !exists {
		return false
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(idx.rooms, projectID)
	}
	if projects, ok := idx.byUser[userID]; ok {
		delete(projects, projectID)
		if len(projects) == 0 {
			delete(idx.byUser, userID)
		}
	}
	return true
}

// LeaveAll removes userID from every room and returns the affected
// projects in sorted order.
func (idx *RoomIndex) LeaveAll(userID string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	projects := make([]string, 0, len(idx.byUser[userID]))
	for projectID := range idx.byUser[userID] {
		projects = append(projects, projectID)
	}
	slices.Sort(projects)
	for _, projectID := range projects {
		idx.leaveLocked(projectID, userID)
	}
	return projects
}

// MembersOf returns the user ids subscribed to projectID, sorted.
func (idx *RoomIndex) MembersOf(projectID string) []string {
	idx.mu.RLock()
	room := idx.rooms[projectID]
	out := make([]string, 0, len(room))
	for userID := range room {
		out = append(out, userID)
	}
	idx.mu.RUnlock()

	slices.Sort(out)
	return out
}

// IsMember reports whether userID is subscribed to projectID.
func (idx *RoomIndex) IsMember(projectID, userID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.rooms[projectID][userID]
	return ok
}

// RoomsOf returns the projects userID is subscribed to, sorted.
func (idx *RoomIndex) RoomsOf(userID string) []string {
	idx.mu.RLock()
	out := make([]string, 0, len(idx.byUser[userID]))
	for projectID := range idx.byUser[userID] {
		out = append(out, projectID)
	}
	idx.mu.RUnlock()

	slices.Sort(out)
	return out
}

// SetTyping records the typing flag of a subscribed user. It reports
// false when the user is not in the room.
func (idx *RoomIndex) SetTyping(projectID, userID string, typing bool) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	m, ok := idx.rooms[projectID][userID]
	if !ok {
		return false
	}
	m.Typing = typing
	return true
}

// IsTyping reports the typing flag of a subscribed user.
func (idx *RoomIndex) IsTyping(projectID, userID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m, ok := idx.rooms[projectID][userID]
	return ok && m.Typing
}

// Snapshot copies every room for diagnostics.
func (idx *RoomIndex) Snapshot() map[string][]RoomMember {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string][]RoomMember, len(idx.rooms))
	for projectID, room := range idx.rooms {
		members := make([]RoomMember, 0, len(room))
		for _, m := range room {
			members = append(members, *m)
		}
		slices.SortFunc(members, func(a, b RoomMember) int { return strings.Compare(a.UserID, b.UserID) })
		out[projectID] = members
	}
	return out
}
