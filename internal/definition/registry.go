package definition

import (
	"maps"
	"slices"

	"github.com/leofalp/stategraph/core/graph"
)

// Registry resolves the function and router names used by definitions.
type Registry struct {
	functions map[string]graph.NodeFunc
	routers   map[string]graph.RouterFunc
}

// NewRegistry copies functions and routers into a Registry.
func NewRegistry(functions map[string]graph.NodeFunc, routers map[string]graph.RouterFunc) *Registry {
	return &Registry{
		functions: maps.Clone(functions),
		routers:   maps.Clone(routers),
	}
}

// Function returns the node function registered as name.
func (registry *Registry) Function(name string) (graph.NodeFunc, bool) {
	function, exists := registry.functions[name]
	return function, exists
}

// Router returns the router registered as name.
func (registry *Registry) Router(name string) (graph.RouterFunc, bool) {
	router, exists := registry.routers[name]
	return router, exists
}

// FunctionNames returns the registered function names, sorted.
func (registry *Registry) FunctionNames() []string {
	return slices.Sorted(maps.Keys(registry.functions))
}

// RouterNames returns the registered router names, sorted.
func (registry *Registry) RouterNames() []string {
	return slices.Sorted(maps.Keys(registry.routers))
}
