// Package graph provides the directed-graph workflow engine: a builder that
// registers nodes and edges against a declared state schema, a compiler that
// validates the wiring into an immutable Graph, and an executor that advances
// the graph one node per step, merging partial state updates through channel
// reducers and checkpointing after each step.
//
// Invariants:
//   - A compiled Graph is immutable and safe to share across concurrent
//     executions.
//   - Compile reports every wiring violation it finds, not just the first.
//   - The executor never exceeds its step budget; hitting the budget is a
//     distinguishable outcome (StatusStepLimit), not an error.
//   - Node failures are recovered into the "error" channel and routed to an
//     error path when one is mapped; only graph wiring mistakes surface as Go
//     errors from Invoke.
//
// Usage:
//
//	b := graph.NewBuilder("agent", schema)
//	b.AddNode("generate", generateFn)
//	b.AddConditionalEdges("generate", route, map[string]string{
//		"tools":  "tools",
//		graph.End: graph.End,
//	})
//	b.AddEdge("tools", "generate")
//	b.SetEntryPoint("generate")
//	g, err := b.Compile()
package graph
