package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Metadata keys used to transfer our Message fields through watermill's message.
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"

	defaultOutputBuffer = 256
)

// WatermillBridge implements Bus on top of watermill's in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
	logger *slog.Logger

	wg   sync.WaitGroup
	once sync.Once
}

var _ Bus = (*WatermillBridge)(nil)

// BridgeOption configures a WatermillBridge.
type BridgeOption func(*WatermillBridge)

// WithTracer traces every publish and every handled message.
func WithTracer(tracer trace.Tracer) BridgeOption {
	return func(b *WatermillBridge) { b.tracer = tracer }
}

// NewWatermillBridge initializes an in-memory bus.
func NewWatermillBridge(opts ...BridgeOption) *WatermillBridge {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: defaultOutputBuffer},
		watermill.NewStdLogger(false, false),
	)

	b := &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: slog.Default().With("component", "pubsub"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracer != nil {
		b.pub = NewPublisherTracingMiddleware(goChannel, b.tracer)
	}
	return b
}

func mapToWatermillMessage(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.Metadata.Set(metaKeyUserID, msg.UserID)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	wmMsg.SetContext(ctx)
	return wmMsg
}

func mapToPubSubMessage(wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeyUserID && k != metaKeyTopic {
			metadata[k] = v
		}
	}
	return Message{
		Topic:    wmMsg.Metadata.Get(metaKeyTopic),
		UserID:   wmMsg.Metadata.Get(metaKeyUserID),
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements Publisher.
func (b *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return b.pub.Publish(msg.Topic, mapToWatermillMessage(ctx, msg))
}

// Subscribe implements Subscriber. Messages of one subscription are handled
// sequentially in publish order.
func (b *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	process := func(wmMsg *message.Message) ([]*message.Message, error) {
		return nil, handler(wmMsg.Context(), mapToPubSubMessage(wmMsg))
	}
	if b.tracer != nil {
		process = TracingMiddleware(b.tracer)(process)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for wmMsg := range messages {
			// GoChannel redelivers nacked messages forever, so failures are
			// logged and acked.
			if _, err := process(wmMsg); err != nil {
				b.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		b.logger.Debug("Subscription message loop ended", "topic", topic)
	}()
	return nil
}

// Close shuts the bus down and waits for running handlers to return.
func (b *WatermillBridge) Close() error {
	var err error
	b.once.Do(func() {
		err = b.pub.Close()
		if subErr := b.sub.Close(); err == nil {
			err = subErr
		}
		b.wg.Wait()
	})
	return err
}
