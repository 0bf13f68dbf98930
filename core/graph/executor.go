package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// errConsumerStopped ends a streamed run whose consumer stopped iterating.
var errConsumerStopped = errors.New("stream consumer stopped")

// errUnmappedRoute is the cause of a RoutingError for a value missing from a path map.
var errUnmappedRoute = errors.New("value is not a key of the path map")

// nodeResult is the outcome of one node in a superstep.
type nodeResult struct {
	name     string
	update   Update
	duration time.Duration
}

// Invoke runs the workflow to completion and returns the final merged state.
//
// The execution proceeds in supersteps:
//  1. Validate initial against the schema and compute the first frontier from
//     the edges and routers leaving Start
//  2. Run every frontier node in parallel on a private copy of the same snapshot
//  3. Merge the updates in registration order, applying each field's reducer
//  4. Compute the next frontier from static edges and routers evaluated on the
//     merged state
//  5. Stop when the frontier is empty
//
// The initial state is never modified. On error the returned state is nil.
//
// Example:
//
//	final, err := workflow.Invoke(ctx, graph.State{"weight": 70.0, "height": 1.75})
//	if err != nil {
//	    return err
//	}
//	category, _ := final.Text("category")
func (workflow *Workflow) Invoke(ctx context.Context, initial State, opts ...InvokeOption) (State, error) {
	final, err := workflow.run(ctx, initial, workflow.resolveInvokeConfig(opts), nil)
	if err != nil {
		return nil, err
	}
	return final, nil
}

func (workflow *Workflow) resolveInvokeConfig(opts []InvokeOption) invokeConfig {
	config := invokeConfig{recursionLimit: workflow.config.recursionLimit}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// run is the superstep loop shared by Invoke and Stream. emit may be nil;
// when it returns false the run stops with errConsumerStopped.
func (workflow *Workflow) run(ctx context.Context, initial State, config invokeConfig, emit func(Event) bool) (State, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if emit == nil {
		emit = func(Event) bool { return true }
	}
	if config.runID == "" {
		config.runID = uuid.NewString()
	}

	runStart := time.Now()
	observer := workflow.observeRunStart(&ctx, config)

	if workflow.config.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, workflow.config.executionTimeout)
		defer cancel()
	}

	step := 0
	fail := func(err error) (State, error) {
		observer.observeRunFailed(ctx, err, step, time.Since(runStart))
		return nil, err
	}

	if err := workflow.schema.validateValues(Start, initial); err != nil {
		return fail(err)
	}
	state := initial.Clone()

	if !emit(Event{Type: EventRunStart, RunID: config.runID, ThreadID: config.threadID, State: state.Clone()}) {
		return fail(errConsumerStopped)
	}

	frontier, err := workflow.nextFrontier(ctx, observer, []string{Start}, state)
	if err != nil {
		return fail(err)
	}

	for len(frontier) > 0 {
		step++

		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("invocation cancelled before superstep %d: %w", step, err))
		}

		if step > config.recursionLimit {
			return fail(&RecursionLimitError{Limit: config.recursionLimit, Frontier: frontier})
		}

		if !emit(Event{Type: EventStepStart, RunID: config.runID, ThreadID: config.threadID, Step: step, Nodes: frontier}) {
			return fail(errConsumerStopped)
		}

		var results []nodeResult
		state, frontier, results, err = workflow.superstep(ctx, observer, step, frontier, state)
		if err != nil {
			return fail(err)
		}

		for _, result := range results {
			if !emit(Event{
				Type:     EventNodeComplete,
				RunID:    config.runID,
				ThreadID: config.threadID,
				Step:     step,
				Node:     result.name,
				Update:   result.update,
				Duration: result.duration,
			}) {
				return fail(errConsumerStopped)
			}
		}

		if !emit(Event{Type: EventStepComplete, RunID: config.runID, ThreadID: config.threadID, Step: step, Nodes: frontier, State: state.Clone()}) {
			return fail(errConsumerStopped)
		}
	}

	if !emit(Event{Type: EventRunComplete, RunID: config.runID, ThreadID: config.threadID, Step: step, State: state.Clone(), Duration: time.Since(runStart)}) {
		return fail(errConsumerStopped)
	}

	observer.observeRunCompleted(ctx, step, time.Since(runStart))
	return state, nil
}

// superstep executes frontier against snapshot, merges the updates and
// computes the next frontier.
func (workflow *Workflow) superstep(ctx context.Context, observer *runObserver, step int, frontier []string, snapshot State) (State, []string, []nodeResult, error) {
	stepStart := time.Now()
	stepContext := ctx
	observer.observeSuperstepStart(&stepContext, step, frontier)

	results, err := workflow.runNodes(stepContext, observer, step, frontier, snapshot)
	if err == nil && ctx.Err() != nil {
		// Nodes that ignored cancellation may still have returned; their
		// results are discarded.
		err = fmt.Errorf("invocation cancelled during superstep %d: %w", step, ctx.Err())
	}

	var merged State
	if err == nil {
		merged, err = workflow.merge(stepContext, observer, step, snapshot, results)
	}

	var next []string
	if err == nil {
		next, err = workflow.nextFrontier(stepContext, observer, frontier, merged)
	}

	observer.observeSuperstepEnd(stepContext, step, next, err, time.Since(stepStart))
	if err != nil {
		return nil, nil, nil, err
	}
	return merged, next, results, nil
}

// runNodes executes the frontier in parallel, subject to maxConcurrency.
// The first failure cancels the siblings through the errgroup context.
// Results are returned in frontier order.
func (workflow *Workflow) runNodes(ctx context.Context, observer *runObserver, step int, frontier []string, snapshot State) ([]nodeResult, error) {
	results := make([]nodeResult, len(frontier))

	group, groupContext := errgroup.WithContext(ctx)
	if workflow.config.maxConcurrency > 0 {
		group.SetLimit(workflow.config.maxConcurrency)
	}

	for index, nodeName := range frontier {
		graphNode := workflow.nodes[nodeName]
		group.Go(func() error {
			// Check if a sibling already failed before starting.
			if groupContext.Err() != nil {
				return nil
			}

			update, duration, err := workflow.executeNode(groupContext, observer, step, graphNode, snapshot.Clone())
			if err != nil {
				return &NodeExecutionError{Node: nodeName, Step: step, State: snapshot.Clone(), Cause: err}
			}

			if err := workflow.schema.validateValues(nodeName, update); err != nil {
				return err
			}

			results[index] = nodeResult{name: nodeName, update: update, duration: duration}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// executeNode runs a single node body with its timeout, panic recovery and
// observability.
func (workflow *Workflow) executeNode(ctx context.Context, observer *runObserver, step int, graphNode *node, input State) (update Update, duration time.Duration, err error) {
	nodeContext := ctx
	observer.observeNodeStart(&nodeContext, graphNode.name, step)

	timeout := graphNode.timeout
	if timeout == 0 {
		timeout = workflow.config.nodeTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		nodeContext, cancel = context.WithTimeout(nodeContext, timeout)
		defer cancel()
	}

	nodeStart := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
		duration = time.Since(nodeStart)
		if err != nil {
			update = nil
			observer.observeNodeFailed(nodeContext, graphNode.name, err, duration)
			return
		}
		observer.observeNodeCompleted(nodeContext, graphNode.name, update, duration)
	}()

	update, err = graphNode.fn(nodeContext, input)
	if err == nil && update == nil {
		update = Update{}
	}
	return update, 0, err
}

// merge folds the updates of one superstep into a copy of snapshot.
// Updates are applied in registration order so every reducer sees the same
// sequence regardless of goroutine scheduling.
func (workflow *Workflow) merge(ctx context.Context, observer *runObserver, step int, snapshot State, results []nodeResult) (State, error) {
	merged := snapshot.Clone()
	written := make(map[string]any)
	writers := make(map[string][]string)
	conflicted := make(map[string]bool)

	for _, result := range results {
		for _, key := range sortedKeys(result.update) {
			field, _ := workflow.schema.Field(key)
			value := result.update[key]

			if field.Reducer == ReduceAppend || field.Reducer == ReduceCustom {
				current, hasCurrent := merged[key]
				reduced, err := field.reduce(current, hasCurrent, value)
				if err != nil {
					return nil, &InvalidUpdateError{Node: result.name, Field: key, Reason: "reducer failed", Cause: err}
				}
				merged[key] = reduced
				continue
			}

			if previous, seen := written[key]; seen && !reflect.DeepEqual(previous, value) {
				conflicted[key] = true
			}
			written[key] = value
			writers[key] = append(writers[key], result.name)
			merged[key] = value
		}
	}

	for _, key := range sortedKeys(conflicted) {
		observer.observeConflict(ctx, key, writers[key], step, workflow.config.lastWriteWins)
		if !workflow.config.lastWriteWins {
			return nil, &ConflictError{Field: key, Nodes: writers[key], Step: step}
		}
	}

	return merged, nil
}

// nextFrontier collects the static successors and router results of every
// source, deduplicated, without End, ordered by registration position.
func (workflow *Workflow) nextFrontier(ctx context.Context, observer *runObserver, sources []string, state State) ([]string, error) {
	scheduled := make(map[string]bool)

	for _, source := range sources {
		for _, target := range workflow.successors[source] {
			scheduled[target] = true
		}
		for _, graphBranch := range workflow.routers[source] {
			targets, err := workflow.evaluateBranch(ctx, graphBranch, state)
			if err != nil {
				return nil, err
			}
			observer.observeRoute(ctx, source, graphBranch.name, targets)
			for _, target := range targets {
				scheduled[target] = true
			}
		}
	}

	delete(scheduled, End)

	frontier := make([]string, 0, len(scheduled))
	for nodeName := range scheduled {
		frontier = append(frontier, nodeName)
	}
	sort.Slice(frontier, func(indexA, indexB int) bool {
		return workflow.nodes[frontier[indexA]].position < workflow.nodes[frontier[indexB]].position
	})
	return frontier, nil
}

// evaluateBranch runs a router once on a private copy of state and resolves
// its route to node names (or End).
func (workflow *Workflow) evaluateBranch(ctx context.Context, graphBranch *branch, state State) (targets []string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &RoutingError{Source: graphBranch.from, Router: graphBranch.name, Cause: fmt.Errorf("panic: %v", recovered)}
		}
	}()

	route, routeErr := graphBranch.router(ctx, state.Clone())
	if routeErr != nil {
		return nil, &RoutingError{Source: graphBranch.from, Router: graphBranch.name, Cause: routeErr}
	}

	targets = make([]string, 0, len(route))
	for _, value := range route {
		target := value
		if graphBranch.pathMap != nil {
			mapped, exists := graphBranch.pathMap[value]
			if !exists {
				return nil, &RoutingError{Source: graphBranch.from, Router: graphBranch.name, Value: value, Cause: errUnmappedRoute}
			}
			target = mapped
		}

		if target != End {
			if _, exists := workflow.nodes[target]; !exists {
				return nil, &RoutingError{
					Source: graphBranch.from,
					Router: graphBranch.name,
					Value:  value,
					Cause:  &UnknownNodeError{Node: target, Reference: "route"},
				}
			}
		}
		targets = append(targets, target)
	}
	return targets, nil
}
