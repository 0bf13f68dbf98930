package graph

// Workflow is a compiled, immutable graph. It is safe to Invoke repeatedly
// and from several goroutines at once: every invocation works on its own
// state and holds no mutable data on the Workflow.
type Workflow struct {
	schema    *Schema
	config    graphConfig
	nodes     map[string]*node
	nodeOrder []string
	edges     []edge
	branches  []*branch

	// successors lists the static successors of each source (including Start).
	successors map[string][]string

	// routers lists the branches attached to each source (including Start).
	routers map[string][]*branch
}

// newWorkflow freezes a validated builder. Every slice and map is copied so
// later builder calls cannot affect the workflow.
func newWorkflow(builder *Builder) *Workflow {
	workflow := &Workflow{
		schema:     builder.schema,
		config:     builder.config,
		nodes:      make(map[string]*node, len(builder.nodes)),
		nodeOrder:  append([]string(nil), builder.nodeOrder...),
		edges:      append([]edge(nil), builder.edges...),
		branches:   make([]*branch, 0, len(builder.branches)),
		successors: make(map[string][]string),
		routers:    make(map[string][]*branch),
	}

	for name, graphNode := range builder.nodes {
		copied := *graphNode
		workflow.nodes[name] = &copied
	}

	for _, graphEdge := range workflow.edges {
		workflow.successors[graphEdge.from] = append(workflow.successors[graphEdge.from], graphEdge.to)
	}

	for _, graphBranch := range builder.branches {
		copied := *graphBranch
		if graphBranch.pathMap != nil {
			copied.pathMap = make(PathMap, len(graphBranch.pathMap))
			for key, target := range graphBranch.pathMap {
				copied.pathMap[key] = target
			}
		}
		workflow.branches = append(workflow.branches, &copied)
		workflow.routers[copied.from] = append(workflow.routers[copied.from], &copied)
	}

	return workflow
}

// NodeInfo describes a registered node.
type NodeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EdgeInfo describes a static edge.
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BranchInfo describes a conditional router. PathMap is nil when the router
// returns node names directly.
type BranchInfo struct {
	Name    string            `json:"name"`
	From    string            `json:"from"`
	PathMap map[string]string `json:"path_map,omitempty"`
}

// Name returns the graph name set with WithName.
func (workflow *Workflow) Name() string {
	return workflow.config.name
}

// Schema returns the state schema, or nil for a schemaless graph.
func (workflow *Workflow) Schema() *Schema {
	return workflow.schema
}

// Nodes returns the nodes in registration order.
func (workflow *Workflow) Nodes() []NodeInfo {
	infos := make([]NodeInfo, 0, len(workflow.nodeOrder))
	for _, name := range workflow.nodeOrder {
		infos = append(infos, NodeInfo{Name: name, Description: workflow.nodes[name].description})
	}
	return infos
}

// Edges returns the static edges in registration order.
func (workflow *Workflow) Edges() []EdgeInfo {
	infos := make([]EdgeInfo, 0, len(workflow.edges))
	for _, graphEdge := range workflow.edges {
		infos = append(infos, EdgeInfo{From: graphEdge.from, To: graphEdge.to})
	}
	return infos
}

// Branches returns the routers in registration order.
func (workflow *Workflow) Branches() []BranchInfo {
	infos := make([]BranchInfo, 0, len(workflow.branches))
	for _, graphBranch := range workflow.branches {
		info := BranchInfo{Name: graphBranch.name, From: graphBranch.from}
		if graphBranch.pathMap != nil {
			info.PathMap = make(map[string]string, len(graphBranch.pathMap))
			for key, target := range graphBranch.pathMap {
				info.PathMap[key] = target
			}
		}
		infos = append(infos, info)
	}
	return infos
}
