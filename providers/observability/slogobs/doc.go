// Package slogobs provides an observability.Provider implementation backed by
// Go's standard library log/slog package.
// Spans are logged at debug level on start and end, counters keep an in-memory
// running total, and log calls map onto slog levels (with a TRACE level below
// DEBUG). The main entry point is [New]; output format and log level can be
// tuned with [WithFormat], [WithLevel], [WithOutput] and [WithLogger], or with
// the STATEGRAPH_LOG_FORMAT and STATEGRAPH_LOG_LEVEL environment variables.
package slogobs
