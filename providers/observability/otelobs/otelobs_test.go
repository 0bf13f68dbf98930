package otelobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/leofalp/stategraph/providers/observability"
)

func newRecordedObserver() (*Observer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return New(tracerProvider.Tracer("test"), nil), recorder
}

func TestStartSpan_RecordsAttributesAndStatus(testCase *testing.T) {
	observer, recorder := newRecordedObserver()

	ctx, span := observer.StartSpan(context.Background(), "graph.invoke",
		observability.String("graph.name", "bmi"),
		observability.Int("graph.nodes", 2),
	)
	observer.Info(ctx, "superstep finished", observability.Int("graph.superstep", 1))
	span.RecordError(errors.New("boom"))
	span.SetStatus(observability.StatusError, "failed")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		testCase.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	recorded := ended[0]
	if recorded.Name() != "graph.invoke" {
		testCase.Errorf("span name = %q", recorded.Name())
	}
	if recorded.Status().Code != codes.Error {
		testCase.Errorf("status = %v, want Error", recorded.Status().Code)
	}

	foundName := false
	for _, kv := range recorded.Attributes() {
		if kv.Key == "graph.name" && kv.Value.AsString() == "bmi" {
			foundName = true
		}
	}
	if !foundName {
		testCase.Errorf("graph.name attribute missing: %v", recorded.Attributes())
	}

	eventNames := make([]string, 0)
	for _, event := range recorded.Events() {
		eventNames = append(eventNames, event.Name)
	}
	joined := strings.Join(eventNames, ",")
	if !strings.Contains(joined, "superstep finished") || !strings.Contains(joined, "exception") {
		testCase.Errorf("events = %v", eventNames)
	}
}

func TestStartSpan_NestsUnderParent(testCase *testing.T) {
	observer, recorder := newRecordedObserver()

	ctx, parent := observer.StartSpan(context.Background(), "graph.invoke")
	_, child := observer.StartSpan(ctx, "graph.node")
	child.End()
	parent.End()

	ended := recorder.Ended()
	if len(ended) != 2 {
		testCase.Fatalf("expected 2 spans, got %d", len(ended))
	}
	childSpan, parentSpan := ended[0], ended[1]
	if childSpan.Parent().SpanID() != parentSpan.SpanContext().SpanID() {
		testCase.Error("child span is not parented by graph.invoke")
	}
}

func TestConvertAttributes(testCase *testing.T) {
	converted := convertAttributes([]observability.Attribute{
		observability.String("s", "v"),
		observability.Int("i", 3),
		observability.Bool("b", true),
		observability.Duration("d", 1500*time.Millisecond),
		observability.StringSlice("ss", []string{"a", "b"}),
		{Key: "other", Value: struct{ X int }{X: 1}},
	})

	byKey := make(map[attribute.Key]attribute.Value)
	for _, kv := range converted {
		byKey[kv.Key] = kv.Value
	}
	if byKey["i"].AsInt64() != 3 {
		testCase.Errorf("int attribute = %v", byKey["i"])
	}
	if byKey["d"].AsFloat64() != 1.5 {
		testCase.Errorf("duration attribute = %v", byKey["d"])
	}
	if len(byKey["ss"].AsStringSlice()) != 2 {
		testCase.Errorf("slice attribute = %v", byKey["ss"])
	}
	if byKey["other"].AsString() != "{1}" {
		testCase.Errorf("fallback attribute = %v", byKey["other"])
	}
}

func TestNewStdoutTracing_WritesSpans(testCase *testing.T) {
	buffer := &bytes.Buffer{}
	observer, shutdown, err := NewStdoutTracing(buffer, "stategraph-test")
	if err != nil {
		testCase.Fatalf("setup failed: %v", err)
	}

	_, span := observer.StartSpan(context.Background(), "graph.superstep")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		testCase.Fatalf("shutdown failed: %v", err)
	}

	if !strings.Contains(buffer.String(), "graph.superstep") {
		testCase.Errorf("expected exported span in output, got %q", buffer.String())
	}
}

func TestMetrics_DoNotPanicWithGlobalMeter(testCase *testing.T) {
	observer, _ := newRecordedObserver()
	ctx := context.Background()
	observer.Counter("stategraph.graph.invocations").Add(ctx, 1, observability.String("status", "completed"))
	observer.Histogram("stategraph.graph.node.duration").Record(ctx, 0.3)
}
