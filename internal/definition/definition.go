package definition

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/leofalp/stategraph/core/graph"
)

var (
	// ErrUnknownFunction is returned when a node names a function missing from the registry.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrUnknownRouter is returned when a branch names a router missing from the registry.
	ErrUnknownRouter = errors.New("unknown router")

	// ErrInvalidDefinition wraps every other load-time problem.
	ErrInvalidDefinition = errors.New("invalid definition")
)

// Definition is a workflow declared in HCL.
type Definition struct {
	Name           string
	RecursionLimit int
	Fields         []Field
	Nodes          []Node
	Edges          []Edge
	Branches       []Branch
	// Input is the initial state declared by the input block, if any.
	Input graph.State
}

// Field declares one state field.
type Field struct {
	Name    string
	Type    graph.FieldType
	Reducer string
}

// Node binds a node name to a registered function.
type Node struct {
	Name        string
	Function    string
	Description string
	Timeout     time.Duration
}

// Edge is a static edge.
type Edge struct {
	From string
	To   string
}

// Branch attaches a registered router to From.
type Branch struct {
	From   string
	Router string
	Name   string
	Paths  map[string]string
}

type fileSchema struct {
	Name           string        `hcl:"name,optional"`
	RecursionLimit int           `hcl:"recursion_limit,optional"`
	State          *stateBlock   `hcl:"state,block"`
	Nodes          []nodeBlock   `hcl:"node,block"`
	Edges          []edgeBlock   `hcl:"edge,block"`
	Branches       []branchBlock `hcl:"branch,block"`
	Input          *inputBlock   `hcl:"input,block"`
}

type stateBlock struct {
	Fields []fieldBlock `hcl:"field,block"`
}

type fieldBlock struct {
	Name    string `hcl:"name,label"`
	Type    string `hcl:"type,optional"`
	Reducer string `hcl:"reducer,optional"`
}

type nodeBlock struct {
	Name        string `hcl:"name,label"`
	Func        string `hcl:"func"`
	Description string `hcl:"description,optional"`
	Timeout     string `hcl:"timeout,optional"`
}

type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

type branchBlock struct {
	From   string            `hcl:"from"`
	Router string            `hcl:"router"`
	Name   string            `hcl:"name,optional"`
	Paths  map[string]string `hcl:"paths,optional"`
}

type inputBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// LoadFile parses the HCL definition at path.
func LoadFile(path string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse parses an HCL definition held in memory. filename is used in
// diagnostics only.
func Parse(src []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Definition, error) {
	var parsed fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	definition := &Definition{
		Name:           parsed.Name,
		RecursionLimit: parsed.RecursionLimit,
	}
	var problems []error

	if parsed.State != nil {
		for _, block := range parsed.State.Fields {
			fieldType := graph.FieldType(block.Type)
			if block.Type == "" {
				fieldType = graph.TypeAny
			}
			definition.Fields = append(definition.Fields, Field{Name: block.Name, Type: fieldType, Reducer: block.Reducer})
		}
	}

	for _, block := range parsed.Nodes {
		node := Node{Name: block.Name, Function: block.Func, Description: block.Description}
		if block.Timeout != "" {
			timeout, err := time.ParseDuration(block.Timeout)
			if err != nil {
				problems = append(problems, fmt.Errorf("node %q: invalid timeout %q: %w", block.Name, block.Timeout, err))
			}
			node.Timeout = timeout
		}
		definition.Nodes = append(definition.Nodes, node)
	}

	for _, block := range parsed.Edges {
		definition.Edges = append(definition.Edges, Edge{From: endpoint(block.From), To: endpoint(block.To)})
	}

	for _, block := range parsed.Branches {
		branch := Branch{From: endpoint(block.From), Router: block.Router, Name: block.Name}
		if len(block.Paths) > 0 {
			branch.Paths = make(map[string]string, len(block.Paths))
			for key, target := range block.Paths {
				branch.Paths[key] = endpoint(target)
			}
		}
		definition.Branches = append(definition.Branches, branch)
	}

	if parsed.Input != nil {
		input, err := decodeInput(parsed.Input.Body)
		if err != nil {
			problems = append(problems, err)
		}
		definition.Input = input
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, filename, errors.Join(problems...))
	}
	return definition, nil
}

// endpoint maps the START and END aliases onto the reserved node names.
func endpoint(name string) string {
	switch name {
	case "START":
		return graph.Start
	case "END":
		return graph.End
	default:
		return name
	}
}

func decodeInput(body hcl.Body) (graph.State, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("input: %w", diags)
	}

	state := make(graph.State, len(attrs))
	for name, attr := range attrs {
		value, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("input %q: %w", name, diags)
		}
		native, err := toNative(value)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		state[name] = native
	}
	return state, nil
}
