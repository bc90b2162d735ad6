package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/nfrund/collabhub/internal/topicmgr"
)

// Event[T] binds a topic name to its payload type.
type Event[T any] struct {
	name string
}

// NewEvent creates a typed event and registers it with the default topic
// manager, recording the payload's JSON field names for documentation.
func NewEvent[T any](name, description string) Event[T] {
	topic := topicmgr.Define(name, description)

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	topic.TypeName = t.Name()
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
			if tag != "" && tag != "-" {
				topic.PayloadFields = append(topic.PayloadFields, tag)
			}
		}
	}

	topicmgr.Default().MustRegister(topic)
	return Event[T]{name: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.name
}

// Publish sends a typed event. userID is copied into the message envelope.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], userID string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.name, err)
	}
	return p.Publish(ctx, Message{Topic: event.name, UserID: userID, Payload: data})
}

// Subscribe decodes each message of event's topic into T before calling fn.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], fn func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.name, func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.name, err)
		}
		return fn(ctx, payload)
	})
}
