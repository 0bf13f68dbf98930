package slogobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leofalp/stategraph/providers/observability"
)

// Observer implements observability.Provider using Go's standard library slog.
// It routes tracing, metrics, and log events through a structured slog.Logger.
type Observer struct {
	logger  *slog.Logger
	metrics *metricsStore
}

// New creates a new slog-based observer with functional options.
// If no options are provided, it uses environment variables for configuration
// (STATEGRAPH_LOG_FORMAT and STATEGRAPH_LOG_LEVEL), defaulting to text format
// and INFO level on stderr.
//
// Example usage:
//
//	// Use defaults from environment
//	observer := slogobs.New()
//
//	// Explicit configuration
//	observer := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatJSON),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(newHandler(cfg))
	}

	return &Observer{
		logger:  logger,
		metrics: newMetricsStore(),
	}
}

// Ensure Observer implements observability.Provider
var _ observability.Provider = (*Observer)(nil)

// Logger returns the underlying slog logger.
func (o *Observer) Logger() *slog.Logger {
	return o.logger
}

// CounterTotals returns the running totals of every counter touched so far,
// keyed by metric name. The CLI prints it as a run summary.
func (o *Observer) CounterTotals() map[string]int64 {
	return o.metrics.totals()
}

// --- TRACING ---

// StartSpan begins a new named span and emits a debug log event at its start.
// The returned context carries the span so nested calls can find it.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:      name,
		startTime: time.Now(),
		logger:    o.logger,
		attrs:     attrs,
	}

	logAttrs := []slog.Attr{
		slog.String("span", name),
		slog.String("event", "span.start"),
	}
	logAttrs = appendAttrs(logAttrs, attrs)
	o.logger.LogAttrs(ctx, slog.LevelDebug, "Span started", logAttrs...)

	return observability.ContextWithSpan(ctx, span), span
}

type slogSpan struct {
	name      string
	startTime time.Time
	logger    *slog.Logger
	attrs     []observability.Attribute
	mu        sync.Mutex
}

// End logs the span end event at debug level with its elapsed time and attributes.
func (s *slogSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("span", s.name),
		slog.String("event", "span.end"),
		slog.Duration("duration", time.Since(s.startTime)),
	}
	logAttrs = appendAttrs(logAttrs, s.attrs)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span ended", logAttrs...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, code.String()))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

// RecordError stores err on the span and logs it at error level.
func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs = append(s.attrs, observability.Error(err))
	s.logger.LogAttrs(context.Background(), slog.LevelError, "Span error",
		slog.String("span", s.name),
		slog.String("event", "error"),
		slog.String("error", err.Error()),
	)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	logAttrs := []slog.Attr{
		slog.String("span", s.name),
		slog.String("event", name),
	}
	logAttrs = appendAttrs(logAttrs, attrs)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span event", logAttrs...)
}

// --- METRICS ---

// Counter returns a named counter backed by the in-memory metrics store.
// Multiple calls with the same name return the same counter instance.
func (o *Observer) Counter(name string) observability.Counter {
	return o.metrics.getCounter(name, o.logger)
}

// Histogram returns a named histogram that logs every observation at debug level.
func (o *Observer) Histogram(name string) observability.Histogram {
	return o.metrics.getHistogram(name, o.logger)
}

// metricsStore holds metrics in memory (thread-safe)
type metricsStore struct {
	mu         sync.RWMutex
	counters   map[string]*slogCounter
	histograms map[string]*slogHistogram
}

func newMetricsStore() *metricsStore {
	return &metricsStore{
		counters:   make(map[string]*slogCounter),
		histograms: make(map[string]*slogHistogram),
	}
}

func (m *metricsStore) getCounter(name string, logger *slog.Logger) *slogCounter {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if exists {
		return counter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if counter, exists := m.counters[name]; exists {
		return counter
	}

	counter = &slogCounter{name: name, logger: logger}
	m.counters[name] = counter
	return counter
}

func (m *metricsStore) getHistogram(name string, logger *slog.Logger) *slogHistogram {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if exists {
		return histogram
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, exists := m.histograms[name]; exists {
		return histogram
	}

	histogram = &slogHistogram{name: name, logger: logger}
	m.histograms[name] = histogram
	return histogram
}

func (m *metricsStore) totals() map[string]int64 {
	m.mu.RLock()
	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	totals := make(map[string]int64, len(names))
	for _, name := range names {
		counter := m.getCounter(name, nil)
		counter.mu.Lock()
		totals[name] = counter.value
		counter.mu.Unlock()
	}
	return totals
}

type slogCounter struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	value  int64
}

// Add increments the counter by value and logs the updated total at DEBUG level.
func (c *slogCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.mu.Lock()
	c.value += value
	currentValue := c.value
	c.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("metric", c.name),
		slog.String("type", "counter"),
		slog.Int64("value", currentValue),
		slog.Int64("delta", value),
	}
	logAttrs = appendAttrs(logAttrs, attrs)
	c.logger.LogAttrs(ctx, slog.LevelDebug, "Counter", logAttrs...)
}

type slogHistogram struct {
	name   string
	logger *slog.Logger
}

// Record logs a histogram observation at DEBUG level.
func (h *slogHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	logAttrs := []slog.Attr{
		slog.String("metric", h.name),
		slog.String("type", "histogram"),
		slog.Float64("value", value),
	}
	logAttrs = appendAttrs(logAttrs, attrs)
	h.logger.LogAttrs(ctx, slog.LevelDebug, "Histogram", logAttrs...)
}

// --- LOGGING ---

// Trace logs at [LevelTrace], below DEBUG. It is filtered out unless the level
// is explicitly set to TRACE.
func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, LevelTrace, msg, attrs...)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug, msg, attrs...)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelInfo, msg, attrs...)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelWarn, msg, attrs...)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelError, msg, attrs...)
}

func (o *Observer) log(ctx context.Context, level slog.Level, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, level, msg, appendAttrs(make([]slog.Attr, 0, len(attrs)), attrs)...)
}

func appendAttrs(logAttrs []slog.Attr, attrs []observability.Attribute) []slog.Attr {
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	return logAttrs
}
