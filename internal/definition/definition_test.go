package definition_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/stategraph/core/graph"
	"github.com/leofalp/stategraph/internal/definition"
	"github.com/leofalp/stategraph/workflows"
)

func builtinRegistry() *definition.Registry {
	return definition.NewRegistry(workflows.Functions(workflows.Deps{}), workflows.Routers())
}

func TestLoadFile_Loop(t *testing.T) {
	loaded, err := definition.LoadFile("testdata/loop.hcl")
	require.NoError(t, err)

	assert.Equal(t, "loop_routing", loaded.Name)
	assert.Equal(t, 20, loaded.RecursionLimit)
	require.Len(t, loaded.Nodes, 3)
	assert.Equal(t, "increments iteration", loaded.Nodes[2].Description)
	require.Len(t, loaded.Branches, 2)
	assert.Equal(t, graph.Start, loaded.Branches[0].From)
	assert.Equal(t, map[string]string{"continue_small": "small", "end": graph.End}, loaded.Branches[1].Paths)
	assert.Equal(t, graph.State{"value": 5.0, "status": "small", "iteration": 0.0, "max_iterations": 3.0}, loaded.Input)

	workflow, err := loaded.Compile(builtinRegistry())
	require.NoError(t, err)
	assert.Equal(t, "loop_routing", workflow.Name())

	final, err := workflow.Invoke(context.Background(), loaded.Input)
	require.NoError(t, err)
	assert.Equal(t, 3, final["iteration"])
	assert.Equal(t, "Value is small", final["result"])
}

func TestLoadFile_BattingMatchesBuiltin(t *testing.T) {
	loaded, err := definition.LoadFile("testdata/batting.hcl")
	require.NoError(t, err)

	workflow, err := loaded.Compile(builtinRegistry())
	require.NoError(t, err)
	final, err := workflow.Invoke(context.Background(), loaded.Input)
	require.NoError(t, err)

	assert.Equal(t, 125.0, final["sr"])
	assert.Equal(t, 0.8, final["ballsperrun"])
	assert.Equal(t, 12.5, final["bountrate"])
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := definition.LoadFile("testdata/missing.hcl")
	require.Error(t, err)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := definition.Parse([]byte(`node "a" {`), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.hcl")
}

func TestParse_UnsupportedArgument(t *testing.T) {
	_, err := definition.Parse([]byte(`colour = "blue"`), "extra.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestParse_InvalidTimeout(t *testing.T) {
	_, err := definition.Parse([]byte(`
node "a" {
  func    = "routing.big"
  timeout = "soon"
}
`), "timeout.hcl")
	require.ErrorIs(t, err, definition.ErrInvalidDefinition)
	assert.Contains(t, err.Error(), `"soon"`)
}

func TestParse_NodeOptionsAndInputTypes(t *testing.T) {
	loaded, err := definition.Parse([]byte(`
node "fetch" {
  func    = "web.fetch"
  timeout = "5s"
}

input {
  tags    = ["a", "b"]
  limits  = { depth = 2, strict = true }
  comment = null
}
`), "input.hcl")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, loaded.Nodes[0].Timeout)
	assert.Equal(t, []any{"a", "b"}, loaded.Input["tags"])
	assert.Equal(t, map[string]any{"depth": 2.0, "strict": true}, loaded.Input["limits"])
	assert.Contains(t, loaded.Input, "comment")
	assert.Nil(t, loaded.Input["comment"])
}

func TestCompile_UnknownNames(t *testing.T) {
	loaded, err := definition.Parse([]byte(`
state {
  field "value" { type = "decimal" }
  field "seen" {
    type    = "list"
    reducer = "sum"
  }
}

node "a" { func = "does.not_exist" }

edge {
  from = "START"
  to   = "a"
}

branch {
  from   = "a"
  router = "nowhere"
}
`), "unknown.hcl")
	require.NoError(t, err)

	_, err = loaded.Compile(builtinRegistry())
	require.Error(t, err)
	assert.ErrorIs(t, err, definition.ErrUnknownFunction)
	assert.ErrorIs(t, err, definition.ErrUnknownRouter)
	assert.ErrorIs(t, err, definition.ErrInvalidDefinition)
	assert.Contains(t, err.Error(), `"decimal"`)
	assert.Contains(t, err.Error(), `"sum"`)
}

func TestCompile_GraphErrorsComeFromCompile(t *testing.T) {
	loaded, err := definition.Parse([]byte(`
node "a" { func = "routing.big" }
node "b" { func = "routing.small" }

edge {
  from = "START"
  to   = "a"
}
`), "unreachable.hcl")
	require.NoError(t, err)

	_, err = loaded.Compile(builtinRegistry())
	assert.ErrorIs(t, err, graph.ErrGraphValidation)
}

func TestCompile_SchemalessDefinition(t *testing.T) {
	loaded, err := definition.Parse([]byte(`
node "a" { func = "routing.big" }

edge {
  from = "START"
  to   = "a"
}
`), "schemaless.hcl")
	require.NoError(t, err)

	workflow, err := loaded.Compile(builtinRegistry(), graph.WithName("adhoc"))
	require.NoError(t, err)
	assert.Equal(t, "adhoc", workflow.Name())
	assert.Nil(t, workflow.Schema())

	final, err := workflow.Invoke(context.Background(), graph.State{})
	require.NoError(t, err)
	assert.Equal(t, "Value is big", final["result"])
}

func TestRegistry(t *testing.T) {
	registry := definition.NewRegistry(
		map[string]graph.NodeFunc{"b": workflows.BigNode, "a": workflows.SmallNode},
		map[string]graph.RouterFunc{"r": workflows.DecideNext},
	)

	assert.Equal(t, []string{"a", "b"}, registry.FunctionNames())
	assert.Equal(t, []string{"r"}, registry.RouterNames())
	_, found := registry.Function("missing")
	assert.False(t, found)
}
