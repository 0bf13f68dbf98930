package graph

import (
	"fmt"
	"sort"
)

// Builder assembles nodes, edges and routers, and compiles them into an
// immutable Workflow.
//
// Registration problems do not interrupt the fluent chain: they accumulate in
// the builder and are reported together by Compile.
//
// Example:
//
//	workflow, err := graph.NewBuilder(schema, graph.WithName("bmi")).
//	    AddNode("Calculate BMI", calculateBMI).
//	    AddNode("Categorize BMI", categorizeBMI).
//	    AddEdge(graph.Start, "Calculate BMI").
//	    AddEdge("Calculate BMI", "Categorize BMI").
//	    AddEdge("Categorize BMI", graph.End).
//	    Compile()
type Builder struct {
	// schema declares the state fields. Nil means schemaless.
	schema *Schema

	// config holds the graph-level configuration populated from Options.
	config graphConfig

	// nodes stores all registered nodes keyed by name.
	nodes map[string]*node

	// nodeOrder preserves registration order; every deterministic ordering
	// in the executor derives from it.
	nodeOrder []string

	// edges stores static edges in registration order.
	edges []edge

	// branches stores conditional routers in registration order.
	branches []*branch

	// buildErrors accumulates problems found while registering and is
	// reported by Compile.
	buildErrors []error
}

// NewBuilder creates a Builder for a graph over schema. A nil schema accepts
// every field with an overwrite reducer.
func NewBuilder(schema *Schema, opts ...Option) *Builder {
	config := defaultGraphConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Builder{
		schema:    schema,
		config:    config,
		nodes:     make(map[string]*node),
		nodeOrder: make([]string, 0),
		edges:     make([]edge, 0),
		branches:  make([]*branch, 0),
	}
}

// AddNode registers a node under a unique name.
//
// Example:
//
//	builder.AddNode("Evaluate Language", evaluateLanguage,
//	    graph.WithTimeout(30 * time.Second),
//	    graph.WithDescription("scores grammar and style"),
//	)
func (builder *Builder) AddNode(name string, fn NodeFunc, opts ...NodeOption) *Builder {
	if name == "" {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("node name must not be empty"))
		return builder
	}

	if name == Start || name == End {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("node name %q is reserved", name))
		return builder
	}

	if fn == nil {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("function must not be nil for node %q", name))
		return builder
	}

	if _, exists := builder.nodes[name]; exists {
		builder.buildErrors = append(builder.buildErrors, &DuplicateNodeError{Node: name})
		return builder
	}

	graphNode := &node{
		name:     name,
		fn:       fn,
		position: len(builder.nodeOrder),
	}

	for _, opt := range opts {
		opt(graphNode)
	}

	builder.nodes[name] = graphNode
	builder.nodeOrder = append(builder.nodeOrder, name)

	return builder
}

// AddEdge adds a static edge: whenever from runs, to runs in the next
// superstep. Endpoints are checked by Compile, so nodes may be registered
// after the edges that reference them.
func (builder *Builder) AddEdge(from, to string) *Builder {
	if from == "" || to == "" {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("edge endpoints must not be empty (from=%q, to=%q)", from, to))
		return builder
	}

	if from == End {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("edge cannot leave %s (to=%q)", End, to))
		return builder
	}

	if to == Start {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("edge cannot enter %s (from=%q)", Start, from))
		return builder
	}

	builder.edges = append(builder.edges, edge{from: from, to: to})

	return builder
}

// AddConditionalEdges attaches a router to from. After from runs, router is
// evaluated on the merged state and its route decides the next nodes.
//
// With a path map the route values are keys translated through it; any value
// missing from the map fails the run with RoutingError. With a nil path map
// the route values are node names (or End).
//
// Example:
//
//	builder.AddConditionalEdges(graph.Start, decideNext, graph.PathMap{
//	    "big":   "big",
//	    "small": "small",
//	}, graph.WithRouterName("decide_next"))
func (builder *Builder) AddConditionalEdges(from string, router RouterFunc, pathMap PathMap, opts ...BranchOption) *Builder {
	if from == "" {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("router source must not be empty"))
		return builder
	}

	if from == End {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("router cannot be attached to %s", End))
		return builder
	}

	if router == nil {
		builder.buildErrors = append(builder.buildErrors, fmt.Errorf("router must not be nil for source %q", from))
		return builder
	}

	graphBranch := &branch{
		from:   from,
		name:   from + "_router",
		router: router,
	}

	if pathMap != nil {
		graphBranch.pathMap = make(PathMap, len(pathMap))
		for key, target := range pathMap {
			graphBranch.pathMap[key] = target
		}
	}

	for _, opt := range opts {
		opt(graphBranch)
	}

	builder.branches = append(builder.branches, graphBranch)

	return builder
}

// Compile validates the graph structure and produces an immutable Workflow.
// It performs the following validations:
//
//  1. No accumulated registration errors
//  2. At least one node exists
//  3. All edge endpoints and path-map targets reference registered nodes
//  4. No duplicate edges
//  5. START has at least one outgoing edge or router
//  6. No cycle made only of static edges (validated via Kahn's algorithm)
//  7. Every node is reachable from START
//
// Every problem found is reported in a single *GraphValidationError. Compile
// does not modify the builder and can be called repeatedly.
func (builder *Builder) Compile() (*Workflow, error) {
	problems := make([]error, 0, len(builder.buildErrors))
	problems = append(problems, builder.buildErrors...)

	if len(builder.nodes) == 0 {
		problems = append(problems, fmt.Errorf("graph must contain at least one node"))
	}

	problems = append(problems, builder.validateEdges()...)
	problems = append(problems, builder.validateBranches()...)

	if !builder.hasStartWiring() {
		problems = append(problems, fmt.Errorf("%s has no outgoing edge or router", Start))
	}

	if err := kahnTopologicalSort(builder.staticAdjacency(), builder.nodeOrder); err != nil {
		problems = append(problems, err)
	}

	if len(problems) == 0 {
		if unreachable := builder.unreachableNodes(); len(unreachable) > 0 {
			problems = append(problems, fmt.Errorf("nodes not reachable from %s: %v", Start, unreachable))
		}
	}

	if len(problems) > 0 {
		return nil, &GraphValidationError{Problems: problems}
	}

	return newWorkflow(builder), nil
}

// isEndpoint reports whether name is a registered node or the given sentinel.
func (builder *Builder) isEndpoint(name, sentinel string) bool {
	if name == sentinel {
		return true
	}
	_, exists := builder.nodes[name]
	return exists
}

// validateEdges checks that all edge endpoints reference existing nodes
// and that there are no duplicate edges.
func (builder *Builder) validateEdges() []error {
	var problems []error
	edgeSet := make(map[edge]bool, len(builder.edges))

	for _, graphEdge := range builder.edges {
		if !builder.isEndpoint(graphEdge.from, Start) {
			problems = append(problems, &UnknownNodeError{Node: graphEdge.from, Reference: "edge source"})
		}
		if !builder.isEndpoint(graphEdge.to, End) {
			problems = append(problems, &UnknownNodeError{Node: graphEdge.to, Reference: "edge target"})
		}

		if edgeSet[graphEdge] {
			problems = append(problems, fmt.Errorf("duplicate edge from %q to %q", graphEdge.from, graphEdge.to))
		}
		edgeSet[graphEdge] = true
	}

	return problems
}

// validateBranches checks router sources and path-map targets.
func (builder *Builder) validateBranches() []error {
	var problems []error
	routerNames := make(map[string]bool, len(builder.branches))

	for _, graphBranch := range builder.branches {
		if !builder.isEndpoint(graphBranch.from, Start) {
			problems = append(problems, &UnknownNodeError{Node: graphBranch.from, Reference: fmt.Sprintf("router %q source", graphBranch.name)})
		}
		if routerNames[graphBranch.from+"\x00"+graphBranch.name] {
			problems = append(problems, fmt.Errorf("duplicate router %q on %q", graphBranch.name, graphBranch.from))
		}
		routerNames[graphBranch.from+"\x00"+graphBranch.name] = true

		for _, key := range sortedKeys(graphBranch.pathMap) {
			target := graphBranch.pathMap[key]
			if !builder.isEndpoint(target, End) {
				problems = append(problems, &UnknownNodeError{
					Node:      target,
					Reference: fmt.Sprintf("path %q of router %q", key, graphBranch.name),
				})
			}
		}
	}

	return problems
}

func (builder *Builder) hasStartWiring() bool {
	for _, graphEdge := range builder.edges {
		if graphEdge.from == Start {
			return true
		}
	}
	for _, graphBranch := range builder.branches {
		if graphBranch.from == Start {
			return true
		}
	}
	return false
}

// staticAdjacency maps each registered node to the registered nodes its
// static edges lead to. START and END never take part in a cycle and are left out.
func (builder *Builder) staticAdjacency() map[string][]string {
	adjacency := make(map[string][]string, len(builder.nodes))
	for _, nodeName := range builder.nodeOrder {
		adjacency[nodeName] = make([]string, 0)
	}
	for _, graphEdge := range builder.edges {
		_, fromExists := builder.nodes[graphEdge.from]
		_, toExists := builder.nodes[graphEdge.to]
		if fromExists && toExists {
			adjacency[graphEdge.from] = append(adjacency[graphEdge.from], graphEdge.to)
		}
	}
	return adjacency
}

// unreachableNodes walks the graph from START over static edges and every
// possible router target, returning the nodes never visited in registration order.
func (builder *Builder) unreachableNodes() []string {
	successors := make(map[string][]string)
	for _, graphEdge := range builder.edges {
		successors[graphEdge.from] = append(successors[graphEdge.from], graphEdge.to)
	}
	for _, graphBranch := range builder.branches {
		successors[graphBranch.from] = append(successors[graphBranch.from], graphBranch.targets(builder.nodeOrder)...)
	}

	visited := map[string]bool{Start: true}
	queue := []string{Start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range successors[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	unreachable := make([]string, 0)
	for _, nodeName := range builder.nodeOrder {
		if !visited[nodeName] {
			unreachable = append(unreachable, nodeName)
		}
	}
	return unreachable
}

// kahnTopologicalSort runs Kahn's algorithm over the static edges and reports
// a cycle when some nodes can never reach in-degree zero. Nodes are visited in
// registration order so the error message is deterministic.
func kahnTopologicalSort(adjacency map[string][]string, nodeOrder []string) error {
	inDegree := make(map[string]int, len(adjacency))
	for nodeName := range adjacency {
		if _, seen := inDegree[nodeName]; !seen {
			inDegree[nodeName] = 0
		}
		for _, neighbor := range adjacency[nodeName] {
			inDegree[neighbor]++
		}
	}

	currentLevel := make([]string, 0)
	for _, nodeName := range nodeOrder {
		if inDegree[nodeName] == 0 {
			currentLevel = append(currentLevel, nodeName)
		}
	}

	processedCount := 0
	for len(currentLevel) > 0 {
		processedCount += len(currentLevel)
		nextLevel := make([]string, 0)
		for _, nodeName := range currentLevel {
			for _, neighbor := range adjacency[nodeName] {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 {
					nextLevel = append(nextLevel, neighbor)
				}
			}
		}
		currentLevel = nextLevel
	}

	if processedCount != len(inDegree) {
		cycleNodes := make([]string, 0)
		for nodeName, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, nodeName)
			}
		}
		sort.Strings(cycleNodes)
		return fmt.Errorf("cycle of static edges involving nodes %v; loops need a conditional edge", cycleNodes)
	}

	return nil
}
