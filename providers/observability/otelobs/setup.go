package otelobs

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewStdoutTracing builds a TracerProvider that pretty-prints finished spans to
// writer, and an Observer bound to it. The returned shutdown flushes pending
// spans and must be called before exit.
func NewStdoutTracing(writer io.Writer, serviceName string) (*Observer, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(writer),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", serviceName),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return New(tracerProvider.Tracer(InstrumentationName), nil), tracerProvider.Shutdown, nil
}
