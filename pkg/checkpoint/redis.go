package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/weavegraph/weave/pkg/state"
)

// RedisStore persists checkpoints in Redis. Each thread keeps an ordered
// list of checkpoint ids plus one JSON value per checkpoint.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis using a URL of the form
// redis://[:password@]host:port/db. A zero ttl keeps checkpoints forever.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) historyKey(threadID string) string {
	return "weave:checkpoints:" + threadID
}

func (s *RedisStore) checkpointKey(threadID, id string) string {
	return "weave:checkpoint:" + threadID + ":" + id
}

// Put appends a checkpoint for the thread.
func (s *RedisStore) Put(ctx context.Context, threadID string, st state.State, meta Metadata) (string, error) {
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

	cp := Checkpoint{ThreadID: threadID, ID: id, State: st.Snapshot(), Metadata: meta}
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(threadID, id), data, s.ttl)
	pipe.RPush(ctx, s.historyKey(threadID), id)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.historyKey(threadID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return id, nil
}

// Get returns a checkpoint by id, or the latest for the thread when id is
// empty.
func (s *RedisStore) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	if checkpointID == "" {
		ids, err := s.client.LRange(ctx, s.historyKey(threadID), -1, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint history: %w", err)
		}
		if len(ids) == 0 {
			return nil, ErrNotFound
		}
		checkpointID = ids[0]
	}

	data, err := s.client.Get(ctx, s.checkpointKey(threadID, checkpointID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &cp, nil
}

// List returns checkpoint ids for the thread, most recent first.
func (s *RedisStore) List(ctx context.Context, threadID string, limit int) ([]string, error) {
	ids, err := s.client.LRange(ctx, s.historyKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	// Most recent first
	out := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, ids[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
