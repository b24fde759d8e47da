// Package state implements the channel-based state container shared by all
// graph executions.
//
// Invariants:
// - A Schema is declared once per graph; reducers are checked at compile time.
// - Merge never mutates its inputs; it returns a new State.
// - Disjoint-channel merges commute; the append reducer preserves relative order.
//
// Usage:
//
//	schema := state.NewSchema().
//		AddChannel("messages", state.Channel{Reducer: state.ReducerAppend}).
//		AddChannel("response", state.Channel{Reducer: state.ReducerReplace})
//	st, _ := schema.NewState(state.State{"response": ""})
//	st, _ = schema.Merge(st, state.State{"response": "hello"})
package state
