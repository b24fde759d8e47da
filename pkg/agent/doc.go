// Package agent wires the graph engine into runnable agents: a ReAct agent
// driving the generate/tools loop against the LLM contract, and a RAG
// pipeline retrieving knowledge before generation.
//
// Invariants:
//   - MaxIterations bounds LLM round trips, not raw node steps; the loop
//     always halts with a step-limit outcome when the model keeps asking for
//     tools.
//   - Tool calls from one assistant turn may run concurrently, but their
//     result messages are appended in the order the model emitted the calls.
//   - Generation and tool failures never abort a run; they surface as
//     messages the model (or the caller) can react to.
package agent
