package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leofalp/stategraph/providers/observability"
)

// --- Mock Types ---

// testObserver implements observability.Provider for verifying observe calls.
type testObserver struct {
	mu      sync.Mutex
	spans   []string
	logs    []string
	metrics map[string]float64
}

var _ observability.Provider = (*testObserver)(nil)

func newTestObserver() *testObserver {
	return &testObserver{
		spans:   make([]string, 0),
		logs:    make([]string, 0),
		metrics: make(map[string]float64),
	}
}

func (observer *testObserver) StartSpan(ctx context.Context, name string, _ ...observability.Attribute) (context.Context, observability.Span) {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	observer.spans = append(observer.spans, name)
	return ctx, &testSpan{name: name}
}

func (observer *testObserver) record(msg string) {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	observer.logs = append(observer.logs, msg)
}

func (observer *testObserver) Trace(_ context.Context, msg string, _ ...observability.Attribute) {
	observer.record(msg)
}

func (observer *testObserver) Debug(_ context.Context, msg string, _ ...observability.Attribute) {
	observer.record(msg)
}

func (observer *testObserver) Info(_ context.Context, msg string, _ ...observability.Attribute) {
	observer.record(msg)
}

func (observer *testObserver) Warn(_ context.Context, msg string, _ ...observability.Attribute) {
	observer.record(msg)
}

func (observer *testObserver) Error(_ context.Context, msg string, _ ...observability.Attribute) {
	observer.record(msg)
}

func (observer *testObserver) Counter(name string) observability.Counter {
	return &testCounter{name: name, observer: observer}
}

func (observer *testObserver) Histogram(name string) observability.Histogram {
	return &testHistogram{name: name, observer: observer}
}

func (observer *testObserver) countSpans(name string) int {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	count := 0
	for _, span := range observer.spans {
		if span == name {
			count++
		}
	}
	return count
}

func (observer *testObserver) metric(name string) float64 {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	return observer.metrics[name]
}

func (observer *testObserver) hasLog(msg string) bool {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	for _, logged := range observer.logs {
		if logged == msg {
			return true
		}
	}
	return false
}

// testSpan is a mock span for testing observability.
type testSpan struct {
	name string
}

func (span *testSpan) End()                                            {}
func (span *testSpan) SetAttributes(_ ...observability.Attribute)      {}
func (span *testSpan) SetStatus(_ observability.StatusCode, _ string)  {}
func (span *testSpan) RecordError(_ error)                             {}
func (span *testSpan) AddEvent(_ string, _ ...observability.Attribute) {}

// testCounter is a mock counter for testing observability.
type testCounter struct {
	name     string
	observer *testObserver
}

func (counter *testCounter) Add(_ context.Context, value int64, _ ...observability.Attribute) {
	counter.observer.mu.Lock()
	defer counter.observer.mu.Unlock()
	counter.observer.metrics[counter.name] += float64(value)
}

// testHistogram is a mock histogram for testing observability.
type testHistogram struct {
	name     string
	observer *testObserver
}

func (histogram *testHistogram) Record(_ context.Context, value float64, _ ...observability.Attribute) {
	histogram.observer.mu.Lock()
	defer histogram.observer.mu.Unlock()
	histogram.observer.metrics[histogram.name] = value
}

// --- Helpers ---

// writeNode returns a NodeFunc that always writes the given update.
func writeNode(update Update) NodeFunc {
	return func(_ context.Context, _ State) (Update, error) {
		return update, nil
	}
}

// failingNode returns a NodeFunc that always fails with the given error.
func failingNode(err error) NodeFunc {
	return func(_ context.Context, _ State) (Update, error) {
		return nil, err
	}
}

// trackingNode returns a NodeFunc that records its invocation and writes update.
func trackingNode(executionOrder *[]string, mu *sync.Mutex, name string, update Update) NodeFunc {
	return func(_ context.Context, _ State) (Update, error) {
		mu.Lock()
		*executionOrder = append(*executionOrder, name)
		mu.Unlock()
		return update, nil
	}
}

// routeTo returns a RouterFunc that always returns the given names.
func routeTo(names ...string) RouterFunc {
	return func(_ context.Context, _ State) (Route, error) {
		return To(names...), nil
	}
}

// mustCompile compiles builder or fails the test.
func mustCompile(testingHelper *testing.T, builder *Builder) *Workflow {
	testingHelper.Helper()
	workflow, err := builder.Compile()
	if err != nil {
		testingHelper.Fatalf("unexpected compile error: %v", err)
	}
	return workflow
}

// --- Builder Validation Tests ---

func TestNewBuilder_DefaultConfig(testCase *testing.T) {
	builder := NewBuilder(nil)

	if builder.config.name != "graph" {
		testCase.Errorf("expected default name %q, got %q", "graph", builder.config.name)
	}
	if builder.config.recursionLimit != DefaultRecursionLimit {
		testCase.Errorf("expected default recursion limit %d, got %d", DefaultRecursionLimit, builder.config.recursionLimit)
	}
	if builder.config.maxConcurrency != 0 {
		testCase.Errorf("expected default maxConcurrency to be 0, got %d", builder.config.maxConcurrency)
	}
	if builder.config.lastWriteWins {
		testCase.Error("expected last-write-wins to be off by default")
	}
}

func TestNewBuilder_WithOptions(testCase *testing.T) {
	observer := newTestObserver()
	builder := NewBuilder(nil,
		WithName("bmi"),
		WithRecursionLimit(7),
		WithMaxConcurrency(2),
		WithLastWriteWins(),
		WithObserver(observer),
	)

	if builder.config.name != "bmi" {
		testCase.Errorf("name = %q", builder.config.name)
	}
	if builder.config.recursionLimit != 7 {
		testCase.Errorf("recursionLimit = %d", builder.config.recursionLimit)
	}
	if builder.config.maxConcurrency != 2 {
		testCase.Errorf("maxConcurrency = %d", builder.config.maxConcurrency)
	}
	if !builder.config.lastWriteWins {
		testCase.Error("expected lastWriteWins")
	}
	if builder.config.observer != observer {
		testCase.Error("expected observer to be set")
	}
}

func TestWithRecursionLimit_IgnoresNonPositive(testCase *testing.T) {
	builder := NewBuilder(nil, WithRecursionLimit(0))
	if builder.config.recursionLimit != DefaultRecursionLimit {
		testCase.Errorf("expected default limit, got %d", builder.config.recursionLimit)
	}
}

func TestCompile_DuplicateNode(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddNode("a", writeNode(nil)).
		AddEdge(Start, "a").
		Compile()

	if !errors.Is(err, ErrGraphValidation) {
		testCase.Fatalf("expected ErrGraphValidation, got %v", err)
	}
	var duplicate *DuplicateNodeError
	if !errors.As(err, &duplicate) {
		testCase.Fatalf("expected DuplicateNodeError in %v", err)
	}
	if duplicate.Node != "a" {
		testCase.Errorf("duplicate node = %q", duplicate.Node)
	}
	if !errors.Is(err, ErrDuplicateNode) {
		testCase.Error("expected errors.Is(err, ErrDuplicateNode)")
	}
}

func TestCompile_RejectsInvalidRegistrations(testCase *testing.T) {
	cases := []struct {
		name    string
		builder *Builder
		message string
	}{
		{"empty name", NewBuilder(nil).AddNode("", writeNode(nil)), "must not be empty"},
		{"nil function", NewBuilder(nil).AddNode("a", nil), "must not be nil"},
		{"reserved start", NewBuilder(nil).AddNode(Start, writeNode(nil)), "reserved"},
		{"reserved end", NewBuilder(nil).AddNode(End, writeNode(nil)), "reserved"},
		{"edge from end", NewBuilder(nil).AddNode("a", writeNode(nil)).AddEdge(End, "a"), "cannot leave"},
		{"edge into start", NewBuilder(nil).AddNode("a", writeNode(nil)).AddEdge("a", Start), "cannot enter"},
		{"nil router", NewBuilder(nil).AddNode("a", writeNode(nil)).AddConditionalEdges(Start, nil, nil), "router must not be nil"},
	}

	for _, current := range cases {
		testCase.Run(current.name, func(subTest *testing.T) {
			_, err := current.builder.Compile()
			if err == nil {
				subTest.Fatal("expected a compile error")
			}
			if !strings.Contains(err.Error(), current.message) {
				subTest.Errorf("expected %q in %v", current.message, err)
			}
		})
	}
}

func TestCompile_UnknownEdgeEndpoint(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddEdge(Start, "a").
		AddEdge("a", "ghost").
		Compile()

	var unknown *UnknownNodeError
	if !errors.As(err, &unknown) {
		testCase.Fatalf("expected UnknownNodeError, got %v", err)
	}
	if unknown.Node != "ghost" {
		testCase.Errorf("unknown node = %q", unknown.Node)
	}
	if !errors.Is(err, ErrUnknownNode) {
		testCase.Error("expected errors.Is(err, ErrUnknownNode)")
	}
}

func TestCompile_UnknownPathMapTarget(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddConditionalEdges(Start, routeTo("x"), PathMap{"x": "a", "y": "missing"}).
		Compile()

	var unknown *UnknownNodeError
	if !errors.As(err, &unknown) || unknown.Node != "missing" {
		testCase.Fatalf("expected UnknownNodeError for %q, got %v", "missing", err)
	}
}

func TestCompile_MissingStartWiring(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddEdge("a", End).
		Compile()

	if err == nil || !strings.Contains(err.Error(), "no outgoing edge or router") {
		testCase.Fatalf("expected missing START wiring error, got %v", err)
	}
}

func TestCompile_UnreachableNode(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddNode("orphan", writeNode(nil)).
		AddEdge(Start, "a").
		AddEdge("a", End).
		Compile()

	if !errors.Is(err, ErrGraphValidation) {
		testCase.Fatalf("expected ErrGraphValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "orphan") {
		testCase.Errorf("expected orphan in error, got %v", err)
	}
}

func TestCompile_RouterWithoutPathMapReachesEveryNode(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddNode("b", writeNode(nil)).
		AddConditionalEdges(Start, routeTo("a"), nil).
		Compile()

	if err != nil {
		testCase.Fatalf("expected compile success, got %v", err)
	}
}

func TestCompile_StaticCycleRejected(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddNode("b", writeNode(nil)).
		AddEdge(Start, "a").
		AddEdge("a", "b").
		AddEdge("b", "a").
		Compile()

	if err == nil || !strings.Contains(err.Error(), "cycle") {
		testCase.Fatalf("expected cycle error, got %v", err)
	}
}

func TestCompile_ConditionalBackEdgeAllowed(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("small", writeNode(nil)).
		AddNode("pass_through", writeNode(nil)).
		AddEdge(Start, "small").
		AddEdge("small", "pass_through").
		AddConditionalEdges("pass_through", routeTo("end"), PathMap{"continue_small": "small", "end": End}).
		Compile()

	if err != nil {
		testCase.Fatalf("expected a loop through a router to compile, got %v", err)
	}
}

func TestCompile_DuplicateEdge(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddEdge(Start, "a").
		AddEdge(Start, "a").
		Compile()

	if err == nil || !strings.Contains(err.Error(), "duplicate edge") {
		testCase.Fatalf("expected duplicate edge error, got %v", err)
	}
}

func TestCompile_ReportsAllProblems(testCase *testing.T) {
	_, err := NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddNode("a", writeNode(nil)).
		AddEdge("a", "ghost").
		Compile()

	var validation *GraphValidationError
	if !errors.As(err, &validation) {
		testCase.Fatalf("expected GraphValidationError, got %v", err)
	}
	if len(validation.Problems) < 3 {
		testCase.Errorf("expected duplicate, unknown and start problems, got %v", validation.Problems)
	}
}

func TestCompile_DoesNotMutateBuilder(testCase *testing.T) {
	builder := NewBuilder(nil).
		AddNode("a", writeNode(Update{"x": 1})).
		AddEdge(Start, "a").
		AddEdge("a", End)

	first := mustCompile(testCase, builder)
	builder.AddNode("b", writeNode(nil)).AddEdge(Start, "b")
	second := mustCompile(testCase, builder)

	if len(first.Nodes()) != 1 {
		testCase.Errorf("first workflow changed after builder reuse: %v", first.Nodes())
	}
	if len(second.Nodes()) != 2 {
		testCase.Errorf("second workflow nodes = %v", second.Nodes())
	}
}

func TestNewSchema_Validation(testCase *testing.T) {
	cases := []struct {
		name   string
		fields []Field
	}{
		{"empty name", []Field{Number("")}},
		{"duplicate", []Field{Number("a"), Text("a")}},
		{"reserved", []Field{Text(Start)}},
		{"append on text", []Field{Text("a").Append()}},
		{"nil custom", []Field{Number("a").Reduce(nil)}},
	}
	for _, current := range cases {
		testCase.Run(current.name, func(subTest *testing.T) {
			if _, err := NewSchema(current.fields...); err == nil {
				subTest.Error("expected schema error")
			}
		})
	}
}

func TestSchema_FieldsKeepDeclarationOrder(testCase *testing.T) {
	schema := MustSchema(Number("weight"), Number("height"), Text("category"))
	fields := schema.Fields()
	if len(fields) != 3 || fields[0].Name != "weight" || fields[2].Name != "category" {
		testCase.Errorf("unexpected fields %v", fields)
	}
	if _, exists := schema.Field("bmi"); exists {
		testCase.Error("undeclared field reported as present")
	}
}

func TestWorkflow_Introspection(testCase *testing.T) {
	workflow := mustCompile(testCase, NewBuilder(nil, WithName("routing")).
		AddNode("big", writeNode(nil), WithDescription("handles big values")).
		AddNode("small", writeNode(nil)).
		AddConditionalEdges(Start, routeTo("big"), PathMap{"big": "big", "small": "small"}, WithRouterName("decide_next")).
		AddEdge("big", End).
		AddEdge("small", End))

	if workflow.Name() != "routing" {
		testCase.Errorf("name = %q", workflow.Name())
	}

	nodes := workflow.Nodes()
	if len(nodes) != 2 || nodes[0].Name != "big" || nodes[0].Description != "handles big values" {
		testCase.Errorf("unexpected nodes %v", nodes)
	}

	edges := workflow.Edges()
	if len(edges) != 2 || edges[0] != (EdgeInfo{From: "big", To: End}) {
		testCase.Errorf("unexpected edges %v", edges)
	}

	branches := workflow.Branches()
	if len(branches) != 1 || branches[0].Name != "decide_next" || branches[0].From != Start {
		testCase.Fatalf("unexpected branches %v", branches)
	}
	branches[0].PathMap["big"] = "small"
	if workflow.Branches()[0].PathMap["big"] != "big" {
		testCase.Error("Branches must return a copy of the path map")
	}
}

func TestWorkflow_DefaultRouterName(testCase *testing.T) {
	workflow := mustCompile(testCase, NewBuilder(nil).
		AddNode("a", writeNode(nil)).
		AddConditionalEdges(Start, routeTo("a"), nil))

	if got := workflow.Branches()[0].Name; got != "__start___router" {
		testCase.Errorf("default router name = %q", got)
	}
}
