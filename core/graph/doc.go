// Package graph implements a superstep graph executor for workflows made of
// small node functions that share one state record.
//
// A graph is built with [NewBuilder], compiled once with [Builder.Compile] and
// invoked any number of times, concurrently if needed, with [Workflow.Invoke]
// or [Workflow.Stream].
//
// Execution proceeds in supersteps. Every node in the frontier runs in
// parallel against a private copy of the same snapshot; the updates are then
// merged in node-registration order using each field's reducer, and the next
// frontier is computed from static edges and from routers evaluated on the
// merged state. The run ends when the frontier is empty.
//
// Key features:
//   - Per-field reducers declared in a [Schema]: overwrite, append or custom
//   - Deterministic conflict detection for overwrite fields, with an explicit
//     last-writer-wins fallback ([WithLastWriteWins])
//   - Conditional routing with optional path maps and parallel fan-out
//   - Bounded loops through conditional back-edges, guarded by a recursion limit
//   - Graph-level and node-level timeouts, cancellation at superstep boundaries
//   - Streaming events and Mermaid / ASCII diagrams
//   - Observability through [observability.Provider] (spans, counters, histograms)
//
// Example:
//
//	schema := graph.MustSchema(
//	    graph.Number("value"),
//	    graph.List("results").Append(),
//	)
//
//	workflow, err := graph.NewBuilder(schema).
//	    AddNode("big", big).
//	    AddNode("small", small).
//	    AddConditionalEdges(graph.Start, func(ctx context.Context, state graph.State) (graph.Route, error) {
//	        return graph.To("big", "small"), nil
//	    }, nil).
//	    AddEdge("big", graph.End).
//	    AddEdge("small", graph.End).
//	    Compile()
//
//	final, err := workflow.Invoke(ctx, graph.State{"value": 42})
//
// TODO: Future enhancements:
//   - Subgraphs as nodes
//   - Interrupts before selected nodes
package graph
