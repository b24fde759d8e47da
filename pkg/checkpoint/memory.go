package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/weavegraph/weave/pkg/state"
)

// MemoryStore keeps checkpoint histories in process memory. It is the
// default store for tests and for sessions that do not need durability.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]*Checkpoint
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]*Checkpoint),
	}
}

// Put appends a checkpoint for the thread.
func (s *MemoryStore) Put(ctx context.Context, threadID string, st state.State, meta Metadata) (string, error) {
	if threadID == "" {
		return "", fmt.Errorf("thread id cannot be empty")
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate checkpoint id: %w", err)
	}

	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	cp := &Checkpoint{
		ThreadID: threadID,
		ID:       id,
		State:    st.Snapshot(),
		Metadata: meta,
	}

	s.mu.Lock()
	s.threads[threadID] = append(s.threads[threadID], cp)
	s.mu.Unlock()

	return id, nil
}

// Get returns a checkpoint by id, or the latest for the thread when id is
// empty.
func (s *MemoryStore) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.threads[threadID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	if checkpointID == "" {
		return copyCheckpoint(history[len(history)-1]), nil
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ID == checkpointID {
			return copyCheckpoint(history[i]), nil
		}
	}

	return nil, ErrNotFound
}

// List returns checkpoint ids for the thread, most recent first.
func (s *MemoryStore) List(ctx context.Context, threadID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.threads[threadID]
	ids := make([]string, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		ids = append(ids, history[i].ID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}

	return ids, nil
}

func copyCheckpoint(cp *Checkpoint) *Checkpoint {
	out := *cp
	out.State = cp.State.Snapshot()
	return &out
}
