package graph

import (
	"time"

	"github.com/leofalp/stategraph/providers/observability"
)

// Option is a functional option for configuring graph behavior.
// Options are applied by NewBuilder and frozen into the compiled Workflow.
type Option func(*graphConfig)

// NodeOption is a functional option for configuring individual node behavior.
// Node options are applied via Builder.AddNode.
type NodeOption func(*node)

// BranchOption configures a conditional router registered with
// Builder.AddConditionalEdges.
type BranchOption func(*branch)

// InvokeOption configures a single invocation.
type InvokeOption func(*invokeConfig)

// invokeConfig is resolved per call from the graph configuration and InvokeOptions.
type invokeConfig struct {
	threadID       string
	runID          string
	recursionLimit int
}

// --- Graph Options ---

// WithName labels the graph in telemetry, events and diagrams.
func WithName(name string) Option {
	return func(config *graphConfig) {
		if name != "" {
			config.name = name
		}
	}
}

// WithRecursionLimit bounds the number of supersteps an invocation may run.
// Graphs with conditional back-edges rely on it to stop runaway loops.
// Values below 1 keep the default of DefaultRecursionLimit.
func WithRecursionLimit(limit int) Option {
	return func(config *graphConfig) {
		if limit > 0 {
			config.recursionLimit = limit
		}
	}
}

// WithMaxConcurrency limits the number of nodes that execute in parallel
// within the same superstep. A value of 0 (default) means unlimited
// concurrency: every frontier node starts at once.
//
// Example:
//
//	graph.NewBuilder(schema,
//	    graph.WithMaxConcurrency(3), // at most 3 model calls at once
//	)
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(config *graphConfig) {
		config.maxConcurrency = maxConcurrency
	}
}

// WithExecutionTimeout sets the maximum duration of a single invocation.
// When it expires the context is cancelled and the run stops at the next
// superstep boundary. A value of 0 (default) means no timeout.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(config *graphConfig) {
		config.executionTimeout = timeout
	}
}

// WithDefaultNodeTimeout bounds every node that has no WithTimeout of its own.
func WithDefaultNodeTimeout(timeout time.Duration) Option {
	return func(config *graphConfig) {
		config.nodeTimeout = timeout
	}
}

// WithLastWriteWins resolves overwrite conflicts by keeping the value written
// by the node registered last, instead of failing with ConflictError.
func WithLastWriteWins() Option {
	return func(config *graphConfig) {
		config.lastWriteWins = true
	}
}

// WithObserver attaches an observability provider. The executor emits spans,
// metrics and logs through it, and node bodies can reach it with
// observability.ObserverFromContext.
func WithObserver(provider observability.Provider) Option {
	return func(config *graphConfig) {
		config.observer = provider
	}
}

// --- Node Options ---

// WithTimeout bounds a single execution of the node.
//
// Example:
//
//	builder.AddNode("Get LLM Response", respond,
//	    graph.WithTimeout(30 * time.Second),
//	)
func WithTimeout(timeout time.Duration) NodeOption {
	return func(graphNode *node) {
		graphNode.timeout = timeout
	}
}

// WithDescription attaches a free-text description shown by introspection.
func WithDescription(description string) NodeOption {
	return func(graphNode *node) {
		graphNode.description = description
	}
}

// --- Branch Options ---

// WithRouterName labels the router. The default is "<from>_router".
func WithRouterName(name string) BranchOption {
	return func(graphBranch *branch) {
		if name != "" {
			graphBranch.name = name
		}
	}
}

// --- Invoke Options ---

// WithThreadID records a conversation or session identifier on the run. It
// shows up in events and telemetry only; state is never persisted by it.
func WithThreadID(threadID string) InvokeOption {
	return func(config *invokeConfig) {
		config.threadID = threadID
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(runID string) InvokeOption {
	return func(config *invokeConfig) {
		if runID != "" {
			config.runID = runID
		}
	}
}

// WithInvokeRecursionLimit overrides the graph's recursion limit for one call.
func WithInvokeRecursionLimit(limit int) InvokeOption {
	return func(config *invokeConfig) {
		if limit > 0 {
			config.recursionLimit = limit
		}
	}
}
