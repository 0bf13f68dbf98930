// Package promobs exposes observability metrics through the Prometheus client.
//
// Counters become CounterVecs and histograms become HistogramVecs registered
// on a caller-supplied registerer. Metric and label names are derived from the
// dotted observability names ("stategraph.graph.node.duration" becomes
// "stategraph_graph_node_duration_seconds"). Tracing and logging calls are
// accepted and dropped; combine with slogobs through observability.Multi.
package promobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leofalp/stategraph/providers/observability"
)

// MetricSpec declares the help text, label keys and buckets of a metric ahead
// of its first use. Label keys use the dotted attribute names.
type MetricSpec struct {
	Help    string
	Labels  []string
	Buckets []float64
}

// DefaultSpecs describes the metrics emitted by the graph executor and the
// model middleware.
var DefaultSpecs = map[string]MetricSpec{
	"stategraph.graph.invocations": {
		Help:   "Graph invocations by final status",
		Labels: []string{"graph.name", "status"},
	},
	"stategraph.graph.node.executions": {
		Help:   "Node executions by status",
		Labels: []string{"graph.name", "graph.node", "status"},
	},
	"stategraph.graph.conflicts": {
		Help:   "Merge conflicts on non-reducible fields",
		Labels: []string{"graph.name", "graph.field"},
	},
	"stategraph.graph.node.duration": {
		Help:    "Node execution latency in seconds",
		Labels:  []string{"graph.name", "graph.node"},
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	"stategraph.graph.superstep.duration": {
		Help:    "Superstep latency in seconds",
		Labels:  []string{"graph.name"},
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	observability.MetricModelCalls: {
		Help:   "Model collaborator calls by operation and status",
		Labels: []string{observability.AttrModelOperation, observability.AttrStatus},
	},
	observability.MetricModelDuration: {
		Help:    "Model collaborator latency in seconds",
		Labels:  []string{observability.AttrModelOperation},
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	},
	observability.MetricModelRetries: {
		Help:   "Retry attempts made by the model retry middleware",
		Labels: []string{observability.AttrModelOperation},
	},
}

// Observer implements observability.Provider on top of Prometheus collectors.
type Observer struct {
	registerer prometheus.Registerer
	specs      map[string]MetricSpec

	mu         sync.Mutex
	counters   map[string]*labelledCounter
	histograms map[string]*labelledHistogram
}

var _ observability.Provider = (*Observer)(nil)

// New creates an Observer registering its collectors on registerer. A nil
// registerer uses prometheus.DefaultRegisterer. Extra specs override or extend
// [DefaultSpecs].
func New(registerer prometheus.Registerer, extraSpecs map[string]MetricSpec) *Observer {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	specs := make(map[string]MetricSpec, len(DefaultSpecs)+len(extraSpecs))
	for name, spec := range DefaultSpecs {
		specs[name] = spec
	}
	for name, spec := range extraSpecs {
		specs[name] = spec
	}

	return &Observer{
		registerer: registerer,
		specs:      specs,
		counters:   make(map[string]*labelledCounter),
		histograms: make(map[string]*labelledHistogram),
	}
}

// Counter returns the counter for name, registering a CounterVec on first use.
func (observer *Observer) Counter(name string) observability.Counter {
	observer.mu.Lock()
	defer observer.mu.Unlock()

	if counter, exists := observer.counters[name]; exists {
		return counter
	}

	spec := observer.specFor(name)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricName(name, "_total"),
		Help: spec.Help,
	}, sanitizeAll(spec.Labels))
	vec = registerOrReuse(observer.registerer, vec)

	counter := &labelledCounter{vec: vec, labelKeys: spec.Labels}
	observer.counters[name] = counter
	return counter
}

// Histogram returns the histogram for name, registering a HistogramVec on first use.
func (observer *Observer) Histogram(name string) observability.Histogram {
	observer.mu.Lock()
	defer observer.mu.Unlock()

	if histogram, exists := observer.histograms[name]; exists {
		return histogram
	}

	spec := observer.specFor(name)
	suffix := ""
	if strings.HasSuffix(name, "duration") {
		suffix = "_seconds"
	}
	buckets := spec.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricName(name, suffix),
		Help:    spec.Help,
		Buckets: buckets,
	}, sanitizeAll(spec.Labels))
	vec = registerOrReuse(observer.registerer, vec)

	histogram := &labelledHistogram{vec: vec, labelKeys: spec.Labels}
	observer.histograms[name] = histogram
	return histogram
}

func (observer *Observer) specFor(name string) MetricSpec {
	if spec, exists := observer.specs[name]; exists {
		return spec
	}
	return MetricSpec{Help: fmt.Sprintf("stategraph metric %s", name)}
}

// StartSpan is a no-op; Prometheus has no notion of spans.
func (observer *Observer) StartSpan(ctx context.Context, _ string, _ ...observability.Attribute) (context.Context, observability.Span) {
	return ctx, noopSpan{}
}

func (observer *Observer) Trace(context.Context, string, ...observability.Attribute) {}
func (observer *Observer) Debug(context.Context, string, ...observability.Attribute) {}
func (observer *Observer) Info(context.Context, string, ...observability.Attribute)  {}
func (observer *Observer) Warn(context.Context, string, ...observability.Attribute)  {}
func (observer *Observer) Error(context.Context, string, ...observability.Attribute) {}

type labelledCounter struct {
	vec       *prometheus.CounterVec
	labelKeys []string
}

func (counter *labelledCounter) Add(_ context.Context, value int64, attrs ...observability.Attribute) {
	if value < 0 {
		return
	}
	counter.vec.WithLabelValues(labelValues(counter.labelKeys, attrs)...).Add(float64(value))
}

type labelledHistogram struct {
	vec       *prometheus.HistogramVec
	labelKeys []string
}

func (histogram *labelledHistogram) Record(_ context.Context, value float64, attrs ...observability.Attribute) {
	histogram.vec.WithLabelValues(labelValues(histogram.labelKeys, attrs)...).Observe(value)
}

type noopSpan struct{}

func (noopSpan) End()                                        {}
func (noopSpan) SetAttributes(...observability.Attribute)    {}
func (noopSpan) SetStatus(observability.StatusCode, string)  {}
func (noopSpan) RecordError(error)                           {}
func (noopSpan) AddEvent(string, ...observability.Attribute) {}

// MetricName converts a dotted observability name into a Prometheus metric
// name and appends suffix unless already present.
func MetricName(name, suffix string) string {
	sanitized := sanitize(name)
	if suffix != "" && !strings.HasSuffix(sanitized, suffix) {
		sanitized += suffix
	}
	return sanitized
}

// labelValues picks the values for labelKeys out of attrs; missing keys map to "".
func labelValues(labelKeys []string, attrs []observability.Attribute) []string {
	values := make([]string, len(labelKeys))
	for index, key := range labelKeys {
		for _, attr := range attrs {
			if attr.Key == key {
				values[index] = fmt.Sprint(attr.Value)
				break
			}
		}
	}
	return values
}

func sanitizeAll(keys []string) []string {
	sanitized := make([]string, len(keys))
	for index, key := range keys {
		sanitized[index] = sanitize(key)
	}
	return sanitized
}

func sanitize(name string) string {
	var builder strings.Builder
	for index, char := range name {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char == '_':
			builder.WriteRune(char)
		case char >= '0' && char <= '9':
			if index == 0 {
				builder.WriteRune('_')
			}
			builder.WriteRune(char)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

// registerOrReuse registers collector, returning the already registered
// instance when an identical collector exists (several Observers sharing the
// default registry).
func registerOrReuse[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			if existing, isSameType := alreadyRegistered.ExistingCollector.(C); isSameType {
				return existing
			}
		}
	}
	return collector
}
