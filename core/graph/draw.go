package graph

import (
	"fmt"
	"sort"
	"strings"
)

// DrawMermaid renders the graph as a Mermaid flowchart. Static edges are solid
// arrows; router edges are dotted and labelled with the path-map key, or with
// the router name when the router has no path map.
func (workflow *Workflow) DrawMermaid() string {
	var builder strings.Builder

	builder.WriteString("graph TD;\n")
	fmt.Fprintf(&builder, "\t%s([%s]):::first\n", Start, Start)
	for _, name := range workflow.nodeOrder {
		fmt.Fprintf(&builder, "\t%s[\"%s\"]\n", workflow.mermaidID(name), mermaidLabel(name))
	}
	fmt.Fprintf(&builder, "\t%s([%s]):::last\n", End, End)

	for _, graphEdge := range workflow.edges {
		fmt.Fprintf(&builder, "\t%s --> %s;\n", workflow.mermaidID(graphEdge.from), workflow.mermaidID(graphEdge.to))
	}

	for _, graphBranch := range workflow.branches {
		for _, arrow := range workflow.branchArrows(graphBranch) {
			fmt.Fprintf(&builder, "\t%s -.->|%s| %s;\n",
				workflow.mermaidID(graphBranch.from), mermaidLabel(arrow.label), workflow.mermaidID(arrow.target))
		}
	}

	builder.WriteString("\tclassDef default fill:#f2f0ff,line-height:1.2\n")
	builder.WriteString("\tclassDef first fill-opacity:0\n")
	builder.WriteString("\tclassDef last fill:#bfb6fc\n")

	return builder.String()
}

// DrawASCII renders a plain-text listing. Nodes are grouped by their distance
// from START (shown in parentheses) and followed by their outgoing arrows.
//
//	(0) __start__
//	    --> Calculate BMI
//	(1) Calculate BMI
//	    --> Categorize BMI
func (workflow *Workflow) DrawASCII() string {
	depths := workflow.depths()

	names := make([]string, 0, len(workflow.nodeOrder)+1)
	names = append(names, Start)
	names = append(names, workflow.nodeOrder...)
	sort.SliceStable(names, func(indexA, indexB int) bool {
		return depths[names[indexA]] < depths[names[indexB]]
	})

	var builder strings.Builder
	for _, name := range names {
		fmt.Fprintf(&builder, "(%d) %s\n", depths[name], name)
		for _, target := range workflow.successors[name] {
			fmt.Fprintf(&builder, "    --> %s\n", target)
		}
		for _, graphBranch := range workflow.routers[name] {
			for _, arrow := range workflow.branchArrows(graphBranch) {
				fmt.Fprintf(&builder, "    -.-> %s [%s: %s]\n", arrow.target, graphBranch.name, arrow.label)
			}
		}
	}
	return builder.String()
}

type branchArrow struct {
	label  string
	target string
}

// branchArrows lists the possible destinations of a router. Path-map keys are
// listed in lexical order.
func (workflow *Workflow) branchArrows(graphBranch *branch) []branchArrow {
	if graphBranch.pathMap == nil {
		arrows := make([]branchArrow, 0, len(workflow.nodeOrder)+1)
		for _, target := range graphBranch.targets(workflow.nodeOrder) {
			if target == graphBranch.from {
				continue
			}
			arrows = append(arrows, branchArrow{label: graphBranch.name, target: target})
		}
		return arrows
	}

	arrows := make([]branchArrow, 0, len(graphBranch.pathMap))
	for _, key := range sortedKeys(graphBranch.pathMap) {
		arrows = append(arrows, branchArrow{label: key, target: graphBranch.pathMap[key]})
	}
	return arrows
}

// depths computes the breadth-first distance of every node from START over
// static edges and router destinations. Unreached names default to 0, which
// cannot happen for a compiled workflow.
func (workflow *Workflow) depths() map[string]int {
	depths := map[string]int{Start: 0}
	queue := []string{Start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next := append([]string(nil), workflow.successors[current]...)
		for _, graphBranch := range workflow.routers[current] {
			for _, arrow := range workflow.branchArrows(graphBranch) {
				next = append(next, arrow.target)
			}
		}

		for _, target := range next {
			if target == End {
				continue
			}
			if _, seen := depths[target]; !seen {
				depths[target] = depths[current] + 1
				queue = append(queue, target)
			}
		}
	}
	return depths
}

func (workflow *Workflow) mermaidID(name string) string {
	if name == Start || name == End {
		return name
	}
	return fmt.Sprintf("n%d", workflow.nodes[name].position)
}

func mermaidLabel(text string) string {
	return strings.ReplaceAll(text, "\"", "#quot;")
}
