package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/weavegraph/weave/pkg/state"
)

// SQLiteStore persists checkpoint histories in a SQLite database, one row
// per (thread_id, checkpoint_id).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a checkpoint database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id     TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL UNIQUE,
			state         TEXT NOT NULL,
			metadata      TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, seq);
	`)
	return err
}

// Put appends a checkpoint row for the thread.
func (s *SQLiteStore) Put(ctx context.Context, threadID string, st state.State, meta Metadata) (string, error) {
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

	stateJSON, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, checkpoint_id, state, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		threadID, id, string(stateJSON), string(metaJSON), meta.Timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	return id, nil
}

// Get returns a checkpoint by id, or the latest row for the thread when id
// is empty.
func (s *SQLiteStore) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	var row *sql.Row
	if checkpointID == "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT checkpoint_id, state, metadata FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
			threadID,
		)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT checkpoint_id, state, metadata FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?`,
			threadID, checkpointID,
		)
	}

	var id, stateJSON, metaJSON string
	if err := row.Scan(&id, &stateJSON, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var st state.State
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &Checkpoint{ThreadID: threadID, ID: id, State: st, Metadata: meta}, nil
}

// List returns checkpoint ids for the thread, most recent first.
func (s *SQLiteStore) List(ctx context.Context, threadID string, limit int) ([]string, error) {
	query := `SELECT checkpoint_id FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC`
	args := []interface{}{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
