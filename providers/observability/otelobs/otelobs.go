// Package otelobs adapts observability.Provider to OpenTelemetry.
//
// Spans map to trace.Span, counters to Int64Counter and histograms to
// Float64Histogram. Log calls become span events on the active span, so a
// stdout or OTLP trace exporter shows them inline with the graph run.
package otelobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/leofalp/stategraph/providers/observability"
)

// InstrumentationName is the tracer and meter name used by [New] defaults.
const InstrumentationName = "github.com/leofalp/stategraph"

// Observer implements observability.Provider with an OpenTelemetry tracer and meter.
type Observer struct {
	tracer trace.Tracer
	meter  metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

var _ observability.Provider = (*Observer)(nil)

// New returns an Observer. Nil tracer or meter fall back to the globally
// registered providers (otel.Tracer / otel.Meter).
func New(tracer trace.Tracer, meter metric.Meter) *Observer {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	return &Observer{
		tracer:     tracer,
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// StartSpan starts an OpenTelemetry span and attaches both the otel span and
// the wrapper to the returned context.
func (observer *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	ctx, otelSpan := observer.tracer.Start(ctx, name, trace.WithAttributes(convertAttributes(attrs)...))
	span := &otelSpanAdapter{span: otelSpan}
	return observability.ContextWithSpan(ctx, span), span
}

// Counter lazily creates an Int64Counter for name.
func (observer *Observer) Counter(name string) observability.Counter {
	observer.mu.Lock()
	defer observer.mu.Unlock()

	counter, exists := observer.counters[name]
	if !exists {
		created, err := observer.meter.Int64Counter(name)
		if err != nil {
			return noopCounter{}
		}
		counter = created
		observer.counters[name] = counter
	}
	return int64CounterAdapter{counter: counter}
}

// Histogram lazily creates a Float64Histogram for name. Duration histograms
// are recorded in seconds.
func (observer *Observer) Histogram(name string) observability.Histogram {
	observer.mu.Lock()
	defer observer.mu.Unlock()

	histogram, exists := observer.histograms[name]
	if !exists {
		created, err := observer.meter.Float64Histogram(name, metric.WithUnit("s"))
		if err != nil {
			return noopHistogram{}
		}
		histogram = created
		observer.histograms[name] = histogram
	}
	return float64HistogramAdapter{histogram: histogram}
}

func (observer *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	addLogEvent(ctx, "trace", msg, attrs)
}

func (observer *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	addLogEvent(ctx, "debug", msg, attrs)
}

func (observer *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	addLogEvent(ctx, "info", msg, attrs)
}

func (observer *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	addLogEvent(ctx, "warn", msg, attrs)
}

func (observer *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	addLogEvent(ctx, "error", msg, attrs)
}

// addLogEvent records a log line as an event on the span active in ctx.
// Lines logged outside any recording span are dropped.
func addLogEvent(ctx context.Context, level, msg string, attrs []observability.Attribute) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	eventAttrs := append([]attribute.KeyValue{attribute.String("log.level", level)}, convertAttributes(attrs)...)
	span.AddEvent(msg, trace.WithAttributes(eventAttrs...))
}

type otelSpanAdapter struct {
	span trace.Span
}

func (adapter *otelSpanAdapter) End() {
	adapter.span.End()
}

func (adapter *otelSpanAdapter) SetAttributes(attrs ...observability.Attribute) {
	adapter.span.SetAttributes(convertAttributes(attrs)...)
}

func (adapter *otelSpanAdapter) SetStatus(code observability.StatusCode, description string) {
	switch code {
	case observability.StatusOK:
		adapter.span.SetStatus(codes.Ok, description)
	case observability.StatusError:
		adapter.span.SetStatus(codes.Error, description)
	default:
		adapter.span.SetStatus(codes.Unset, description)
	}
}

func (adapter *otelSpanAdapter) RecordError(err error) {
	if err != nil {
		adapter.span.RecordError(err)
	}
}

func (adapter *otelSpanAdapter) AddEvent(name string, attrs ...observability.Attribute) {
	adapter.span.AddEvent(name, trace.WithAttributes(convertAttributes(attrs)...))
}

type int64CounterAdapter struct {
	counter metric.Int64Counter
}

func (adapter int64CounterAdapter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	adapter.counter.Add(ctx, value, metric.WithAttributes(convertAttributes(attrs)...))
}

type float64HistogramAdapter struct {
	histogram metric.Float64Histogram
}

func (adapter float64HistogramAdapter) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	adapter.histogram.Record(ctx, value, metric.WithAttributes(convertAttributes(attrs)...))
}

type noopCounter struct{}

func (noopCounter) Add(context.Context, int64, ...observability.Attribute) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64, ...observability.Attribute) {}

// convertAttributes maps observability attributes to OpenTelemetry key-values,
// keeping native types where OpenTelemetry has one.
func convertAttributes(attrs []observability.Attribute) []attribute.KeyValue {
	converted := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		switch value := attr.Value.(type) {
		case string:
			converted = append(converted, attribute.String(attr.Key, value))
		case []string:
			converted = append(converted, attribute.StringSlice(attr.Key, value))
		case int:
			converted = append(converted, attribute.Int(attr.Key, value))
		case int64:
			converted = append(converted, attribute.Int64(attr.Key, value))
		case float64:
			converted = append(converted, attribute.Float64(attr.Key, value))
		case bool:
			converted = append(converted, attribute.Bool(attr.Key, value))
		case time.Duration:
			converted = append(converted, attribute.Float64(attr.Key, value.Seconds()))
		default:
			converted = append(converted, attribute.String(attr.Key, fmt.Sprint(value)))
		}
	}
	return converted
}
