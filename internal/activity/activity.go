// Package activity records when users were last seen, from presence
// events on the bus.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/pubsub"
)

// Recorder updates a user's last-active time whenever they connect,
// disconnect or ping.
type Recorder struct {
	subscriber pubsub.Subscriber
	users      domain.UserDirectory
	logger     *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(sub pubsub.Subscriber, users domain.UserDirectory) *Recorder {
	return &Recorder{
		subscriber: sub,
		users:      users,
		logger:     slog.Default().With("component", "activity"),
	}
}

// Start subscribes to the presence topics. Consumption stops when ctx is
// canceled.
func (r *Recorder) Start(ctx context.Context) error {
	for _, topic := range []pubsub.Event[presence.ActivityEvent]{
		presence.TopicUserOnline,
		presence.TopicUserOffline,
		presence.TopicUserActive,
	} {
		if err := pubsub.Subscribe(ctx, r.subscriber, topic, r.handle); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic.Name(), err)
		}
	}
	r.logger.Info("Activity recorder started")
	return nil
}

func (r *Recorder) handle(ctx context.Context, ev presence.ActivityEvent) error {
	err := r.users.TouchLastActive(ctx, ev.UserID, ev.At)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.DebugContext(ctx, "Activity for unknown user", "user_id", ev.UserID)
		return nil
	}
	return err
}
