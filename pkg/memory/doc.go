// Package memory manages conversation history: it decides when a message
// list has grown past the summarization threshold, compresses older messages
// into one summary through the LLM contract, truncates as a fallback, and
// retrieves past messages by keyword overlap.
//
// Invariants:
//   - Truncate always preserves system-role messages.
//   - Compact never fails a conversation: when the LLM summary call errors
//     it falls back to truncation.
//   - Retrieve is keyword matching over history, not semantic search; richer
//     retrieval belongs to the knowledge package's Retriever contract.
package memory
