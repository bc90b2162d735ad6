package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// startSpan opens a span for one bus message and stores the span context
// back on the message so downstream handlers continue the trace.
func startSpan(tracer trace.Tracer, operation, topic string, msg *message.Message, kind trace.SpanKind) trace.Span {
	ctx := msg.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "bus "+operation+" "+topic,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("messaging.system", "watermill"),
			attribute.String("messaging.operation", operation),
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.message.id", msg.UUID),
			attribute.Int("messaging.message.body.size", len(msg.Payload)),
			attribute.String("collabhub.user_id", msg.Metadata.Get(metaKeyUserID)),
		),
	)
	msg.SetContext(ctx)
	return span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TracingMiddleware wraps a subscriber handler in a consumer span.
func TracingMiddleware(tracer trace.Tracer) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			span := startSpan(tracer, "process", msg.Metadata.Get(metaKeyTopic), msg, trace.SpanKindConsumer)
			produced, err := h(msg)
			endSpan(span, err)
			if err != nil {
				return nil, err
			}
			return produced, nil
		}
	}
}

// PublisherTracingMiddleware is a message.Publisher that records a producer
// span per published message.
type PublisherTracingMiddleware struct {
	publisher message.Publisher
	tracer    trace.Tracer
}

// NewPublisherTracingMiddleware creates a tracing publisher.
func NewPublisherTracingMiddleware(publisher message.Publisher, tracer trace.Tracer) *PublisherTracingMiddleware {
	return &PublisherTracingMiddleware{publisher: publisher, tracer: tracer}
}

// Publish implements message.Publisher.
func (p *PublisherTracingMiddleware) Publish(topic string, messages ...*message.Message) error {
	spans := make([]trace.Span, len(messages))
	for i, msg := range messages {
		spans[i] = startSpan(p.tracer, "publish", topic, msg, trace.SpanKindProducer)
	}
	err := p.publisher.Publish(topic, messages...)
	for _, span := range spans {
		endSpan(span, err)
	}
	return err
}

// Close closes the wrapped publisher.
func (p *PublisherTracingMiddleware) Close() error {
	return p.publisher.Close()
}
