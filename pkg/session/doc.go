// Package session provides the orchestrator tying compiled graphs, threads
// and current state into interactive sessions. Sessions live in an in-memory
// registry; durability is delegated to the checkpoint store keyed by the
// session's thread id.
//
// Invariants:
//   - Execute never returns a Go error for recoverable failures; outcomes
//     travel in the result envelope.
//   - Operating on an unknown session or graph name is an explicit not-found
//     result, never a crash.
//   - Two sessions never share mutable state; executions on different
//     sessions proceed independently.
package session
