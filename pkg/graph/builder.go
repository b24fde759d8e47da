package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/weavegraph/weave/pkg/state"
)

// End is the terminal marker. Edges and router results targeting End stop the
// execution with the current merged state.
const End = "__end__"

// ErrorRoute is the reserved routing key a conditional edge may map to catch
// failures of its source node. When the source node fails and its path map
// contains ErrorRoute, execution continues at the mapped target instead of
// failing the run.
const ErrorRoute = "error"

// ErrorChannel is the state channel the executor writes a node failure into
// before routing to an error path.
const ErrorChannel = "error"

// NodeFunc is a compute node. It receives a read-only snapshot of the current
// state and returns a partial update, which the executor merges through the
// schema's channel reducers.
type NodeFunc func(ctx context.Context, st state.State) (state.State, error)

// RouterFunc picks the next node after a conditional edge's source completes.
// The returned key must be present in the edge's path map or be End.
type RouterFunc func(ctx context.Context, st state.State) (string, error)

type conditionalEdge struct {
	router  RouterFunc
	pathMap map[string]string
}

// Builder accumulates nodes and edges for one graph. It is a construction
// phase object; Compile produces the immutable Graph used at run time.
type Builder struct {
	name        string
	schema      *state.Schema
	entryPoint  string
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]conditionalEdge
	dupEdges    []string
}

// NewBuilder creates a builder for a named graph over the given channel
// schema.
func NewBuilder(name string, schema *state.Schema) *Builder {
	return &Builder{
		name:        name,
		schema:      schema,
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge),
	}
}

// AddNode registers or replaces a compute node. Re-registration overwrites so
// builders may be called idempotently.
func (b *Builder) AddNode(name string, fn NodeFunc) *Builder {
	b.nodes[name] = fn
	return b
}

// AddEdge registers the static edge taken after from completes. A second
// static edge from the same source is recorded as a violation for Compile.
func (b *Builder) AddEdge(from, to string) *Builder {
	if prev, ok := b.edges[from]; ok && prev != to {
		b.dupEdges = append(b.dupEdges,
			fmt.Sprintf("node %q has conflicting static edges to %q and %q", from, prev, to))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges registers a router evaluated after source completes.
// The router's return value selects the next node through pathMap.
func (b *Builder) AddConditionalEdges(source string, router RouterFunc, pathMap map[string]string) *Builder {
	cp := make(map[string]string, len(pathMap))
	for k, v := range pathMap {
		cp[k] = v
	}
	b.conditional[source] = conditionalEdge{router: router, pathMap: cp}
	return b
}

// SetEntryPoint names the node execution starts from.
func (b *Builder) SetEntryPoint(name string) *Builder {
	b.entryPoint = name
	return b
}

// Compile validates the wiring and returns the immutable graph. Every
// violation found is reported in one ConfigError. Compile is idempotent and
// has no side effects on the builder.
func (b *Builder) Compile() (*Graph, error) {
	var violations []string
	violations = append(violations, b.dupEdges...)

	if b.schema == nil {
		violations = append(violations, "no state schema declared")
	} else if err := b.schema.Validate(); err != nil {
		violations = append(violations, err.Error())
	}

	if len(b.nodes) == 0 {
		violations = append(violations, "no nodes registered")
	}

	if b.entryPoint == "" {
		violations = append(violations, "no entry point set")
	} else if _, ok := b.nodes[b.entryPoint]; !ok {
		violations = append(violations, fmt.Sprintf("entry point %q is not a registered node", b.entryPoint))
	}

	for name := range b.nodes {
		if name == End {
			violations = append(violations, fmt.Sprintf("node name %q collides with the terminal marker", End))
		}
	}

	edgeSources := make([]string, 0, len(b.edges))
	for from := range b.edges {
		edgeSources = append(edgeSources, from)
	}
	sort.Strings(edgeSources)
	for _, from := range edgeSources {
		to := b.edges[from]
		if _, ok := b.nodes[from]; !ok {
			violations = append(violations, fmt.Sprintf("edge from unregistered node %q", from))
		}
		if to != End {
			if _, ok := b.nodes[to]; !ok {
				violations = append(violations, fmt.Sprintf("edge %q -> %q targets an unregistered node", from, to))
			}
		}
		if _, ok := b.conditional[from]; ok {
			violations = append(violations, fmt.Sprintf("node %q has both a static and a conditional edge", from))
		}
	}

	condSources := make([]string, 0, len(b.conditional))
	for source := range b.conditional {
		condSources = append(condSources, source)
	}
	sort.Strings(condSources)
	for _, source := range condSources {
		ce := b.conditional[source]
		if _, ok := b.nodes[source]; !ok {
			violations = append(violations, fmt.Sprintf("conditional edge from unregistered node %q", source))
		}
		if ce.router == nil {
			violations = append(violations, fmt.Sprintf("conditional edge from %q has no router", source))
		}
		if len(ce.pathMap) == 0 {
			violations = append(violations, fmt.Sprintf("conditional edge from %q has an empty path map", source))
		}
		keys := make([]string, 0, len(ce.pathMap))
		for k := range ce.pathMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			target := ce.pathMap[key]
			if target == End {
				continue
			}
			if _, ok := b.nodes[target]; !ok {
				violations = append(violations,
					fmt.Sprintf("conditional edge from %q maps key %q to unregistered node %q", source, key, target))
			}
		}
	}

	if len(violations) > 0 {
		return nil, newConfigError(b.name, violations...)
	}

	nodes := make(map[string]NodeFunc, len(b.nodes))
	for name, fn := range b.nodes {
		nodes[name] = fn
	}
	edges := make(map[string]string, len(b.edges))
	for from, to := range b.edges {
		edges[from] = to
	}
	conditional := make(map[string]conditionalEdge, len(b.conditional))
	for source, ce := range b.conditional {
		cp := make(map[string]string, len(ce.pathMap))
		for k, v := range ce.pathMap {
			cp[k] = v
		}
		conditional[source] = conditionalEdge{router: ce.router, pathMap: cp}
	}

	return &Graph{
		name:        b.name,
		schema:      b.schema,
		entryPoint:  b.entryPoint,
		nodes:       nodes,
		edges:       edges,
		conditional: conditional,
	}, nil
}
