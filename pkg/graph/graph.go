package graph

import (
	"github.com/weavegraph/weave/pkg/state"
)

// Graph is a compiled workflow. It is immutable after Compile and may be
// shared read-only across any number of concurrent executions.
type Graph struct {
	name        string
	schema      *state.Schema
	entryPoint  string
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]conditionalEdge
}

// Name returns the graph's name.
func (g *Graph) Name() string {
	return g.name
}

// Schema returns the channel schema the graph runs over.
func (g *Graph) Schema() *state.Schema {
	return g.schema
}

// EntryPoint returns the node execution starts from.
func (g *Graph) EntryPoint() string {
	return g.entryPoint
}

// Nodes returns the registered node names, unordered.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	return names
}

// HasNode reports whether the graph registers a node by name.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}
