package presence

import (
	"time"

	"github.com/nfrund/collabhub/internal/pubsub"
)

// ActivityEvent is published on the bus whenever a user's liveness changes.
type ActivityEvent struct {
	UserID    string    `json:"userId"`
	ChannelID string    `json:"channelId,omitempty"`
	At        time.Time `json:"at"`
}

var (
	// TopicUserOnline is published after a session is registered.
	TopicUserOnline = pubsub.NewEvent[ActivityEvent]("presence.user.online", "A user opened a realtime connection")
	// TopicUserOffline is published after a session is torn down.
	TopicUserOffline = pubsub.NewEvent[ActivityEvent]("presence.user.offline", "A user's realtime connection closed")
	// TopicUserActive is published on client heartbeats.
	TopicUserActive = pubsub.NewEvent[ActivityEvent]("presence.user.active", "A connected user reported activity")
)
