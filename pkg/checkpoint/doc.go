// Package checkpoint defines the durable snapshot contract used by the graph
// executor, with in-memory, SQLite and Redis backed stores.
//
// Invariants:
// - Checkpoints for a thread form an append-only history; Put never mutates
//   or deletes prior checkpoints.
// - Writes for one thread are applied in the order the steps executed.
// - Get with an empty checkpoint id returns the most recent checkpoint.
//
// Usage:
//
//	store := checkpoint.NewMemoryStore()
//	id, _ := store.Put(ctx, "thread-1", st.Snapshot(), checkpoint.Metadata{Step: 1})
//	cp, _ := store.Get(ctx, "thread-1", "")
//	_ = id
//	_ = cp
package checkpoint
