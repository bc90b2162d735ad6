package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "presence.user.online").
	Topic string
	// UserID identifies the user the event is about.
	UserID string
	// Payload contains the JSON encoded event.
	Payload []byte
	// Metadata carries arbitrary key-value context.
	Metadata map[string]string
}

// Handler processes a received message. Returned errors are logged by the bus.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe starts consuming topic in the background and returns once the
	// subscription is active. Consumption stops when ctx is canceled or the
	// bus is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is both ends of the bus.
type Bus interface {
	Publisher
	Subscriber
}

// Discard is a Publisher that drops everything, for components running without a bus.
type Discard struct{}

func (Discard) Publish(context.Context, Message) error { return nil }
func (Discard) Close() error                           { return nil }
