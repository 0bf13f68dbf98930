// Package observability defines the core interfaces and semantic conventions
// used for tracing, metrics collection, and structured logging throughout
// stategraph.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics],
// and [Logger] into a single injectable dependency. Callers propagate an active
// [Provider] and [Span] through a [context.Context] using [ContextWithObserver]
// and [ContextWithSpan]; they can be retrieved with [ObserverFromContext] and
// [SpanFromContext].
//
// Backends live in sub-packages: slogobs (log/slog), promobs (Prometheus) and
// otelobs (OpenTelemetry). [Multi] fans every call out to several of them.
//
// The semconv.go file contains the standard attribute-key and metric-name
// constants shared by the executor and the model collaborators.
package observability
