package pubsub

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "collabhub-bus"

// TracingConfig controls tracing of presence and activity traffic on the bus.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	ZipkinURL   string
	// SampleRatio is the share of root spans kept, between 0 and 1.
	SampleRatio float64
}

// DefaultTracingConfig returns tracing disabled, sampling everything once
// enabled, with a local Zipkin collector.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "collabhub",
		ZipkinURL:   "http://localhost:9411/api/v2/spans",
		SampleRatio: 1,
	}
}

// SetupOTel installs a tracer provider exporting to Zipkin and returns the
// bus tracer with the provider's shutdown. Disabled tracing yields a no-op
// tracer.
func SetupOTel(ctx context.Context, config TracingConfig) (trace.Tracer, func(context.Context) error, error) {
	if !config.Enabled {
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) error { return nil }, nil
	}

	exporter, err := zipkin.New(config.ZipkinURL)
	if err != nil {
		return nil, nil, fmt.Errorf("zipkin exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(tracerName), tp.Shutdown, nil
}
