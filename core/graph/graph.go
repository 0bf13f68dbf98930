package graph

import (
	"context"
	"time"

	"github.com/leofalp/stategraph/providers/observability"
)

// Sentinel pseudo-nodes. Start is the implicit entry point of every graph and
// End the implicit exit. Neither can be registered as a node.
const (
	Start = "__start__"
	End   = "__end__"
)

// DefaultRecursionLimit bounds the number of supersteps of a single invocation
// unless overridden with WithRecursionLimit or WithInvokeRecursionLimit.
const DefaultRecursionLimit = 25

// NodeStatus is the outcome of a single node execution inside a superstep.
type NodeStatus string

const (
	// NodeCompleted indicates the node returned an update without error.
	NodeCompleted NodeStatus = "completed"

	// NodeFailed indicates the node returned an error or panicked.
	NodeFailed NodeStatus = "failed"
)

// Update is the partial state returned by a node: only the fields it writes.
// Fields with an append or custom reducer carry the value to merge rather
// than the final value.
type Update map[string]any

// NodeFunc is the body of a node. It receives a private copy of the
// superstep snapshot and returns the fields it wants to change.
//
// Example:
//
//	func calculateBMI(ctx context.Context, state graph.State) (graph.Update, error) {
//	    weight, err := state.Number("weight")
//	    if err != nil {
//	        return nil, err
//	    }
//	    height, err := state.Number("height")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return graph.Update{"bmi": weight / (height * height)}, nil
//	}
type NodeFunc func(ctx context.Context, state State) (Update, error)

// Route is the result of a router: one or more successor identifiers. When a
// path map is attached to the router the identifiers are path-map keys,
// otherwise they are node names (or End).
type Route []string

// To builds a Route. A single name is the common case; several names fan out
// to all of them in the next superstep.
func To(names ...string) Route {
	return Route(names)
}

// RouterFunc picks the successors of a node from the post-merge state of the
// superstep that just ran it.
type RouterFunc func(ctx context.Context, state State) (Route, error)

// PathMap translates the raw values returned by a router into node names.
// Values may map to End.
type PathMap map[string]string

// node represents a single registered step in the graph.
type node struct {
	// name is the unique identifier for this node within the graph.
	name string

	// fn contains the processing logic for this node.
	fn NodeFunc

	// description is free text shown by introspection helpers.
	description string

	// timeout bounds a single execution of this node. Zero means the graph
	// default (WithDefaultNodeTimeout) or no timeout.
	timeout time.Duration

	// position is the registration index, used for every deterministic ordering.
	position int
}

// edge represents a static, always-taken connection between two nodes.
type edge struct {
	from string
	to   string
}

// branch is a conditional router attached to a source node.
type branch struct {
	// from is the node (or Start) whose completion triggers the router.
	from string

	// name labels the router in diagrams and errors.
	name string

	// router computes the successors.
	router RouterFunc

	// pathMap is optional; nil means the router returns node names directly.
	pathMap PathMap
}

// targets lists the nodes this branch can possibly activate, given every
// registered node. Without a path map any node (and End) is possible.
func (graphBranch *branch) targets(nodeOrder []string) []string {
	if graphBranch.pathMap == nil {
		possible := make([]string, 0, len(nodeOrder)+1)
		possible = append(possible, nodeOrder...)
		return append(possible, End)
	}

	seen := make(map[string]bool, len(graphBranch.pathMap))
	possible := make([]string, 0, len(graphBranch.pathMap))
	for _, key := range sortedKeys(graphBranch.pathMap) {
		target := graphBranch.pathMap[key]
		if !seen[target] {
			seen[target] = true
			possible = append(possible, target)
		}
	}
	return possible
}

// graphConfig holds the configuration for a graph, populated by Options.
type graphConfig struct {
	// name labels the graph in telemetry and diagrams.
	name string

	// recursionLimit is the maximum number of supersteps per invocation.
	recursionLimit int

	// maxConcurrency limits how many nodes of one superstep run at once.
	// Zero means unlimited concurrency.
	maxConcurrency int

	// executionTimeout bounds an entire invocation. Zero means no timeout.
	executionTimeout time.Duration

	// nodeTimeout is the default per-node timeout. Zero means no timeout.
	nodeTimeout time.Duration

	// lastWriteWins resolves overwrite conflicts in favour of the node
	// registered last instead of failing with ConflictError.
	lastWriteWins bool

	// observer receives spans, metrics and logs. Nil disables observability.
	observer observability.Provider
}

func defaultGraphConfig() graphConfig {
	return graphConfig{
		name:           "graph",
		recursionLimit: DefaultRecursionLimit,
	}
}
