// Package tracing builds the process-wide OpenTelemetry TracerProvider
// the resilience executor's spans (internal/resilience/executor.go) need
// to be real rather than no-ops. Grounded on the teacher's
// internal/infrastructure/observability/tracing.go (InitTracing,
// createExporter/createResource/createSampler), trimmed of its
// Lambda/X-Ray branches since this service only ever runs on ECS.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// Config carries the knobs spec section 6's tracing table names.
type Config struct {
	ServiceName string
	Environment string
	Endpoint    string
	SampleRatio float64
}

// Init builds an OTLP/gRPC-exporting TracerProvider and installs it as the
// process-global provider — the only thing internal/resilience's
// otel.Tracer(...) call can see — returning a shutdown func for the
// caller to run during graceful shutdown. Only called when spec section
// 6's Tracing.Enabled is true; an unset Endpoint falls back to the
// standard local collector address rather than failing startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg)))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func sampleRatio(cfg Config) float64 {
	if cfg.SampleRatio <= 0 {
		return 0.01
	}
	if cfg.SampleRatio > 1 {
		return 1
	}
	return cfg.SampleRatio
}
