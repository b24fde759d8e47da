// Package tool provides the tool registry consumed by the agent tool-call
// loop. Tools are registered as definitions with typed parameters; arguments
// are validated against a generated JSON Schema before the handler runs.
//
// Invariants:
//   - Execute never panics and never returns a Go error for tool-level
//     failures; a missing tool, invalid arguments, or a handler error all
//     produce a Result with Success=false so the calling loop can surface
//     the failure to the model instead of aborting.
//   - The registry is safe for concurrent use.
package tool
