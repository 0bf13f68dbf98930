package definition

import (
	"errors"
	"fmt"
	"slices"

	"github.com/leofalp/stategraph/core/graph"
)

var fieldConstructors = map[graph.FieldType]func(string) graph.Field{
	graph.TypeNumber: graph.Number,
	graph.TypeText:   graph.Text,
	graph.TypeBool:   graph.Bool,
	graph.TypeList:   graph.List,
	graph.TypeRecord: graph.Record,
	graph.TypeAny:    graph.Any,
}

// Validate reports every unresolved function or router name, unknown field
// type and unknown reducer. Graph structure is checked later by Compile.
func (definition *Definition) Validate(registry *Registry) error {
	var problems []error
	for _, field := range definition.Fields {
		if _, known := fieldConstructors[field.Type]; !known {
			problems = append(problems, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, field.Name, field.Type))
		}
		switch graph.ReducerKind(field.Reducer) {
		case "", graph.ReduceAppend, graph.ReduceOverwrite:
		default:
			problems = append(problems, fmt.Errorf("%w: field %q has unknown reducer %q", ErrInvalidDefinition, field.Name, field.Reducer))
		}
	}
	for _, node := range definition.Nodes {
		if _, known := registry.Function(node.Function); !known {
			problems = append(problems, fmt.Errorf("%w: node %q uses %q", ErrUnknownFunction, node.Name, node.Function))
		}
	}
	for _, branch := range definition.Branches {
		if _, known := registry.Router(branch.Router); !known {
			problems = append(problems, fmt.Errorf("%w: branch from %q uses %q", ErrUnknownRouter, branch.From, branch.Router))
		}
	}
	return errors.Join(problems...)
}

// Schema builds the state schema, or nil when no state block was declared.
func (definition *Definition) Schema() (*graph.Schema, error) {
	if len(definition.Fields) == 0 {
		return nil, nil
	}
	fields := make([]graph.Field, 0, len(definition.Fields))
	for _, declared := range definition.Fields {
		constructor, known := fieldConstructors[declared.Type]
		if !known {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, declared.Name, declared.Type)
		}
		field := constructor(declared.Name)
		if graph.ReducerKind(declared.Reducer) == graph.ReduceAppend {
			field = field.Append()
		}
		fields = append(fields, field)
	}
	return graph.NewSchema(fields...)
}

// Builder validates the definition against registry and returns a builder
// holding its nodes, edges and branches. The definition's own name and
// recursion limit take precedence over opts.
func (definition *Definition) Builder(registry *Registry, opts ...graph.Option) (*graph.Builder, error) {
	if err := definition.Validate(registry); err != nil {
		return nil, err
	}
	schema, err := definition.Schema()
	if err != nil {
		return nil, err
	}

	var options []graph.Option
	if definition.Name != "" {
		options = append(options, graph.WithName(definition.Name))
	}
	if definition.RecursionLimit > 0 {
		options = append(options, graph.WithRecursionLimit(definition.RecursionLimit))
	}
	builder := graph.NewBuilder(schema, slices.Concat(opts, options)...)

	for _, node := range definition.Nodes {
		function, _ := registry.Function(node.Function)
		var nodeOptions []graph.NodeOption
		if node.Description != "" {
			nodeOptions = append(nodeOptions, graph.WithDescription(node.Description))
		}
		if node.Timeout > 0 {
			nodeOptions = append(nodeOptions, graph.WithTimeout(node.Timeout))
		}
		builder.AddNode(node.Name, function, nodeOptions...)
	}
	for _, edge := range definition.Edges {
		builder.AddEdge(edge.From, edge.To)
	}
	for _, branch := range definition.Branches {
		router, _ := registry.Router(branch.Router)
		name := branch.Name
		if name == "" {
			name = branch.Router
		}
		var paths graph.PathMap
		if branch.Paths != nil {
			paths = graph.PathMap(branch.Paths)
		}
		builder.AddConditionalEdges(branch.From, router, paths, graph.WithRouterName(name))
	}
	return builder, nil
}

// Compile builds and compiles the workflow.
func (definition *Definition) Compile(registry *Registry, opts ...graph.Option) (*graph.Workflow, error) {
	builder, err := definition.Builder(registry, opts...)
	if err != nil {
		return nil, err
	}
	return builder.Compile()
}
