package graph

import (
	"context"
	"time"

	"github.com/leofalp/stategraph/providers/observability"
)

// Semantic conventions for graph observability attributes.
const (
	// spanGraphInvoke is the span name for an entire invocation.
	spanGraphInvoke = "graph.invoke"

	// spanGraphSuperstep is the span name for one superstep.
	spanGraphSuperstep = "graph.superstep"

	// spanGraphNode is the span name for one node execution.
	spanGraphNode = "graph.node"

	// AttrGraphName identifies the graph (WithName).
	AttrGraphName = "graph.name"

	// AttrGraphNode identifies the node within the graph.
	AttrGraphNode = "graph.node"

	// AttrGraphSuperstep is the 1-based superstep number.
	AttrGraphSuperstep = "graph.superstep"

	// AttrGraphRunID is the invocation's run identifier.
	AttrGraphRunID = "graph.run_id"

	// AttrGraphThreadID is the session identifier passed with WithThreadID.
	AttrGraphThreadID = "graph.thread_id"

	// AttrGraphFrontier lists the nodes scheduled in a superstep.
	AttrGraphFrontier = "graph.frontier"

	// AttrGraphField names the state field involved in a merge conflict.
	AttrGraphField = "graph.field"

	// attrGraphRouter names the router evaluated for a source node.
	attrGraphRouter = "graph.router"

	// attrGraphSupersteps is the number of supersteps a run took.
	attrGraphSupersteps = "graph.supersteps"

	// MetricGraphInvocations counts invocations by final status.
	MetricGraphInvocations = "stategraph.graph.invocations"

	// MetricGraphNodeExecutions counts node executions by status.
	MetricGraphNodeExecutions = "stategraph.graph.node.executions"

	// MetricGraphConflicts counts overwrite conflicts, resolved or not.
	MetricGraphConflicts = "stategraph.graph.conflicts"

	// MetricGraphNodeDuration is the histogram of node execution time.
	MetricGraphNodeDuration = "stategraph.graph.node.duration"

	// MetricGraphSuperstepDuration is the histogram of superstep time.
	MetricGraphSuperstepDuration = "stategraph.graph.superstep.duration"
)

// runObserver holds the provider and root span for one invocation. It lives
// on the stack of the run, so concurrent invocations never share it.
type runObserver struct {
	// provider is the observability provider. Nil means observability is
	// disabled (zero overhead).
	provider observability.Provider

	// rootSpan is the top-level span for the invocation.
	rootSpan observability.Span

	graphName string
	runID     string
	threadID  string
}

// observeRunStart creates the root span and attaches both the span and the
// provider to ctx, so node bodies can log through the same backend.
func (workflow *Workflow) observeRunStart(ctx *context.Context, config invokeConfig) *runObserver {
	observer := &runObserver{
		provider:  workflow.config.observer,
		graphName: workflow.config.name,
		runID:     config.runID,
		threadID:  config.threadID,
	}
	if observer.provider == nil {
		return observer
	}

	*ctx, observer.rootSpan = observer.provider.StartSpan(*ctx, spanGraphInvoke, observer.runAttributes()...)
	*ctx = observability.ContextWithSpan(*ctx, observer.rootSpan)
	*ctx = observability.ContextWithObserver(*ctx, observer.provider)

	observer.provider.Info(*ctx, "graph invocation started",
		append(observer.runAttributes(), observability.Int("graph.nodes", len(workflow.nodeOrder)))...,
	)
	return observer
}

func (observer *runObserver) runAttributes() []observability.Attribute {
	attrs := []observability.Attribute{
		observability.String(AttrGraphName, observer.graphName),
		observability.String(AttrGraphRunID, observer.runID),
	}
	if observer.threadID != "" {
		attrs = append(attrs, observability.String(AttrGraphThreadID, observer.threadID))
	}
	return attrs
}

// observeRunCompleted closes the root span of a successful invocation.
func (observer *runObserver) observeRunCompleted(ctx context.Context, supersteps int, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Counter(MetricGraphInvocations).Add(ctx, 1,
		observability.String(AttrGraphName, observer.graphName),
		observability.String(observability.AttrStatus, "completed"),
	)

	observer.provider.Info(ctx, "graph invocation completed",
		observability.String(AttrGraphRunID, observer.runID),
		observability.Int(attrGraphSupersteps, supersteps),
		observability.Duration(observability.AttrDuration, duration),
	)

	if observer.rootSpan != nil {
		observer.rootSpan.SetAttributes(observability.Int(attrGraphSupersteps, supersteps))
		observer.rootSpan.SetStatus(observability.StatusOK, "graph invocation completed")
		observer.rootSpan.End()
	}
}

// observeRunFailed closes the root span of a failed invocation.
func (observer *runObserver) observeRunFailed(ctx context.Context, runError error, supersteps int, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Counter(MetricGraphInvocations).Add(ctx, 1,
		observability.String(AttrGraphName, observer.graphName),
		observability.String(observability.AttrStatus, "failed"),
	)

	observer.provider.Error(ctx, "graph invocation failed",
		observability.String(AttrGraphRunID, observer.runID),
		observability.Int(attrGraphSupersteps, supersteps),
		observability.Error(runError),
		observability.Duration(observability.AttrDuration, duration),
	)

	if observer.rootSpan != nil {
		observer.rootSpan.RecordError(runError)
		observer.rootSpan.SetStatus(observability.StatusError, "graph invocation failed")
		observer.rootSpan.End()
	}
}

// observeSuperstepStart opens the superstep span on ctx.
func (observer *runObserver) observeSuperstepStart(ctx *context.Context, step int, frontier []string) {
	if observer.provider == nil {
		return
	}

	var stepSpan observability.Span
	*ctx, stepSpan = observer.provider.StartSpan(*ctx, spanGraphSuperstep,
		observability.String(AttrGraphName, observer.graphName),
		observability.Int(AttrGraphSuperstep, step),
		observability.StringSlice(AttrGraphFrontier, frontier),
	)
	*ctx = observability.ContextWithSpan(*ctx, stepSpan)

	observer.provider.Debug(*ctx, "superstep started",
		observability.Int(AttrGraphSuperstep, step),
		observability.StringSlice(AttrGraphFrontier, frontier),
	)
}

// observeSuperstepEnd records the superstep duration and closes its span.
// stepError is nil when the superstep merged successfully.
func (observer *runObserver) observeSuperstepEnd(ctx context.Context, step int, next []string, stepError error, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Histogram(MetricGraphSuperstepDuration).Record(ctx, duration.Seconds(),
		observability.String(AttrGraphName, observer.graphName),
	)

	if stepError == nil {
		observer.provider.Debug(ctx, "superstep completed",
			observability.Int(AttrGraphSuperstep, step),
			observability.StringSlice("graph.next", next),
			observability.Duration(observability.AttrDuration, duration),
		)
	}

	stepSpan := observability.SpanFromContext(ctx)
	if stepSpan == nil || stepSpan == observer.rootSpan {
		return
	}
	if stepError != nil {
		stepSpan.RecordError(stepError)
		stepSpan.SetStatus(observability.StatusError, "superstep failed")
	} else {
		stepSpan.SetStatus(observability.StatusOK, "superstep completed")
	}
	stepSpan.End()
}

// observeNodeStart creates a child span for a node execution.
func (observer *runObserver) observeNodeStart(ctx *context.Context, nodeName string, step int) {
	if observer.provider == nil {
		return
	}

	var nodeSpan observability.Span
	*ctx, nodeSpan = observer.provider.StartSpan(*ctx, spanGraphNode,
		observability.String(AttrGraphNode, nodeName),
		observability.Int(AttrGraphSuperstep, step),
	)
	*ctx = observability.ContextWithSpan(*ctx, nodeSpan)

	observer.provider.Debug(*ctx, "node execution started",
		observability.String(AttrGraphNode, nodeName),
		observability.Int(AttrGraphSuperstep, step),
	)
}

// observeNodeCompleted records the successful completion of a node and closes its span.
func (observer *runObserver) observeNodeCompleted(ctx context.Context, nodeName string, update Update, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.recordNode(ctx, nodeName, NodeCompleted, duration)

	observer.provider.Info(ctx, "node execution completed",
		observability.String(AttrGraphNode, nodeName),
		observability.StringSlice("graph.node.writes", sortedKeys(update)),
		observability.Duration(observability.AttrDuration, duration),
	)

	if nodeSpan := observability.SpanFromContext(ctx); nodeSpan != nil {
		nodeSpan.SetAttributes(
			observability.String(observability.AttrStatus, string(NodeCompleted)),
			observability.Duration(observability.AttrDuration, duration),
		)
		nodeSpan.SetStatus(observability.StatusOK, "node completed")
		nodeSpan.End()
	}
}

// observeNodeFailed records the failure of a node and closes its span.
func (observer *runObserver) observeNodeFailed(ctx context.Context, nodeName string, nodeError error, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.recordNode(ctx, nodeName, NodeFailed, duration)

	observer.provider.Error(ctx, "node execution failed",
		observability.String(AttrGraphNode, nodeName),
		observability.Error(nodeError),
		observability.Duration(observability.AttrDuration, duration),
	)

	if nodeSpan := observability.SpanFromContext(ctx); nodeSpan != nil {
		nodeSpan.RecordError(nodeError)
		nodeSpan.SetAttributes(
			observability.String(observability.AttrStatus, string(NodeFailed)),
			observability.Duration(observability.AttrDuration, duration),
		)
		nodeSpan.SetStatus(observability.StatusError, "node failed")
		nodeSpan.End()
	}
}

func (observer *runObserver) recordNode(ctx context.Context, nodeName string, status NodeStatus, duration time.Duration) {
	observer.provider.Histogram(MetricGraphNodeDuration).Record(ctx, duration.Seconds(),
		observability.String(AttrGraphName, observer.graphName),
		observability.String(AttrGraphNode, nodeName),
	)
	observer.provider.Counter(MetricGraphNodeExecutions).Add(ctx, 1,
		observability.String(AttrGraphName, observer.graphName),
		observability.String(AttrGraphNode, nodeName),
		observability.String(observability.AttrStatus, string(status)),
	)
}

// observeRoute logs the successors chosen by a router.
func (observer *runObserver) observeRoute(ctx context.Context, source, router string, targets []string) {
	if observer.provider == nil {
		return
	}

	observer.provider.Debug(ctx, "router evaluated",
		observability.String(AttrGraphNode, source),
		observability.String(attrGraphRouter, router),
		observability.StringSlice("graph.route", targets),
	)
}

// observeConflict counts an overwrite conflict. resolved is true when
// WithLastWriteWins settled it.
func (observer *runObserver) observeConflict(ctx context.Context, field string, writers []string, step int, resolved bool) {
	if observer.provider == nil {
		return
	}

	observer.provider.Counter(MetricGraphConflicts).Add(ctx, 1,
		observability.String(AttrGraphName, observer.graphName),
		observability.String(AttrGraphField, field),
	)

	attrs := []observability.Attribute{
		observability.String(AttrGraphField, field),
		observability.StringSlice("graph.writers", writers),
		observability.Int(AttrGraphSuperstep, step),
	}
	if resolved {
		observer.provider.Warn(ctx, "conflicting writes resolved by last writer", attrs...)
		return
	}
	observer.provider.Error(ctx, "conflicting writes", attrs...)
}
