package workflows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leofalp/stategraph/core/graph"
)

// DecideNext routes values above 10 to "big" and the rest to "small".
func DecideNext(_ context.Context, state graph.State) (graph.Route, error) {
	value, err := state.Number("value")
	if err != nil {
		return nil, err
	}
	if value > 10 {
		return graph.To("big"), nil
	}
	return graph.To("small"), nil
}

// BigNode marks the value as big.
func BigNode(context.Context, graph.State) (graph.Update, error) {
	return graph.Update{"result": "Value is big"}, nil
}

// SmallNode marks the value as small.
func SmallNode(context.Context, graph.State) (graph.Update, error) {
	return graph.Update{"result": "Value is small"}, nil
}

// PassThrough changes nothing.
func PassThrough(context.Context, graph.State) (graph.Update, error) {
	return nil, nil
}

// CountIteration increments iteration.
func CountIteration(_ context.Context, state graph.State) (graph.Update, error) {
	iteration, err := state.Int("iteration")
	if err != nil {
		return nil, err
	}
	return graph.Update{"iteration": iteration + 1}, nil
}

// CheckIteration returns "continue_small" while iteration < max_iterations, else "end".
func CheckIteration(_ context.Context, state graph.State) (graph.Route, error) {
	iteration, err := state.Number("iteration")
	if err != nil {
		return nil, err
	}
	maxIterations, err := state.Number("max_iterations")
	if err != nil {
		return nil, err
	}
	if iteration < maxIterations {
		return graph.To("continue_small"), nil
	}
	return graph.To("end"), nil
}

// DecideParallel activates big and small together.
func DecideParallel(context.Context, graph.State) (graph.Route, error) {
	return graph.To("big", "small"), nil
}

func processedValue(prefix string) graph.NodeFunc {
	return func(_ context.Context, state graph.State) (graph.Update, error) {
		value, err := state.Number("value")
		if err != nil {
			return nil, err
		}
		return graph.Update{"results": []string{fmt.Sprintf("%s processed value: %s", prefix, strconv.FormatFloat(value, 'f', -1, 64))}}, nil
	}
}

// NewBasicRouting builds a START router without a path map: big goes straight
// to END, small passes through pass_through first.
func NewBasicRouting(deps Deps) (*graph.Workflow, error) {
	schema, err := graph.NewSchema(graph.Number("value"), graph.Text("result"))
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("basic_routing")...).
		AddNode("big", BigNode).
		AddNode("small", SmallNode).
		AddNode("pass_through", PassThrough).
		AddConditionalEdges(graph.Start, DecideNext, nil, graph.WithRouterName("decide_next")).
		AddEdge("big", graph.End).
		AddEdge("small", "pass_through").
		AddEdge("pass_through", graph.End).
		Compile()
}

// NewLoopRouting builds the path-map loop: small -> pass_through, then
// check_iteration either returns to small or ends.
func NewLoopRouting(deps Deps) (*graph.Workflow, error) {
	schema, err := graph.NewSchema(
		graph.Number("value"),
		graph.Text("status"),
		graph.Number("iteration"),
		graph.Number("max_iterations"),
		graph.Text("result"),
	)
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("loop_routing")...).
		AddNode("big", BigNode).
		AddNode("small", SmallNode).
		AddNode("pass_through", CountIteration).
		AddConditionalEdges(graph.Start, DecideNext,
			graph.PathMap{"big": "big", "small": "small"},
			graph.WithRouterName("decide_next")).
		AddEdge("big", graph.End).
		AddEdge("small", "pass_through").
		AddConditionalEdges("pass_through", CheckIteration,
			graph.PathMap{"continue_small": "small", "end": graph.End},
			graph.WithRouterName("check_iteration")).
		Compile()
}

// NewParallelPaths builds a START router returning both big and small, whose
// contributions meet in the append-reduced results list.
func NewParallelPaths(deps Deps) (*graph.Workflow, error) {
	schema, err := graph.NewSchema(graph.Number("value"), graph.List("results").Append())
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, deps.options("parallel_paths")...).
		AddNode("big", processedValue("Big")).
		AddNode("small", processedValue("Small")).
		AddConditionalEdges(graph.Start, DecideParallel, nil, graph.WithRouterName("decide_parallel")).
		AddEdge("big", graph.End).
		AddEdge("small", graph.End).
		Compile()
}
