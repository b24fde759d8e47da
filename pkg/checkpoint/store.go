package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/weavegraph/weave/pkg/state"
)

// ErrNotFound is returned when a thread or checkpoint id has no stored
// checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Metadata describes one checkpoint.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Step      int       `json:"step_count"`
	Node      string    `json:"node,omitempty"`
	Graph     string    `json:"graph,omitempty"`
}

// Checkpoint is a durable snapshot of execution state keyed by thread id.
type Checkpoint struct {
	ThreadID string      `json:"thread_id"`
	ID       string      `json:"checkpoint_id"`
	State    state.State `json:"state"`
	Metadata Metadata    `json:"metadata"`
}

// Store is the persistence contract the executor writes to. Implementations
// may be shared across threads but must preserve per-thread write ordering.
type Store interface {
	// Put appends a new checkpoint for the thread and returns its id.
	Put(ctx context.Context, threadID string, st state.State, meta Metadata) (string, error)

	// Get returns a checkpoint by id, or the most recent one for the thread
	// when checkpointID is empty. Returns ErrNotFound when nothing matches.
	Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)

	// List returns up to limit checkpoint ids for the thread, most recent
	// first. A non-positive limit returns all ids.
	List(ctx context.Context, threadID string, limit int) ([]string, error)
}
