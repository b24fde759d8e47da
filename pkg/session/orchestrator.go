package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/weavegraph/weave/internal/observability"
	"github.com/weavegraph/weave/internal/tracing"
	"github.com/weavegraph/weave/pkg/agent"
	"github.com/weavegraph/weave/pkg/checkpoint"
	"github.com/weavegraph/weave/pkg/graph"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/memory"
	"github.com/weavegraph/weave/pkg/state"
)

var (
	// ErrGraphNotFound reports an unregistered graph name.
	ErrGraphNotFound = errors.New("graph not found")
	// ErrSessionNotFound reports an unknown or closed session id.
	ErrSessionNotFound = errors.New("session not found")
)

// Runner is a compiled, executable graph. agent.React and agent.RAG satisfy
// it; custom graphs can wrap a graph.Executor.
type Runner interface {
	Graph() *graph.Graph
	Run(ctx context.Context, initial state.State, threadID string) (graph.Result, error)
}

// Session binds a registered graph, a thread and current state.
type Session struct {
	ID            string      `json:"session_id"`
	GraphName     string      `json:"graph_name"`
	ThreadID      string      `json:"thread_id"`
	State         state.State `json:"state"`
	CreatedAt     time.Time   `json:"created_at"`
	LastUpdatedAt time.Time   `json:"last_updated_at"`
	Iterations    int         `json:"iteration_count"`
	Executions    int         `json:"executions"`
}

// Info is the read-only session summary returned to callers.
type Info struct {
	ID            string    `json:"session_id"`
	GraphName     string    `json:"graph_name"`
	ThreadID      string    `json:"thread_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Iterations    int       `json:"iteration_count"`
	Executions    int       `json:"executions"`
	MessageCount  int       `json:"message_count"`
}

// Result is the execution envelope. Failures are reported here, never as a
// panic or a Go error from Execute.
type Result struct {
	SessionID     string        `json:"session_id"`
	Status        graph.Status  `json:"status"`
	State         state.State   `json:"state,omitempty"`
	Response      string        `json:"response,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	// Memory, when set, truncates stored histories between executions.
	Memory *memory.Manager
	// Store, when set, enables resuming sessions from checkpoints.
	Store checkpoint.Store
	// Logger defaults to the global logger when nil.
	Logger *zerolog.Logger
}

// Orchestrator manages session lifecycle on top of registered graphs.
type Orchestrator struct {
	mu       sync.RWMutex
	graphs   map[string]Runner
	sessions map[string]*Session
	memory   *memory.Manager
	store    checkpoint.Store
	log      zerolog.Logger
}

// NewOrchestrator creates an orchestrator with no graphs registered.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	observability.EnsureRegistered()

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Orchestrator{
		graphs:   make(map[string]Runner),
		sessions: make(map[string]*Session),
		memory:   cfg.Memory,
		store:    cfg.Store,
		log:      logger,
	}
}

// RegisterGraph makes a compiled graph available under a name.
// Re-registration replaces the previous runner.
func (o *Orchestrator) RegisterGraph(name string, runner Runner) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.graphs[name] = runner
	o.log.Info().Str("graph", name).Msg("Graph registered")
}

// GraphNames returns the registered graph names, sorted.
func (o *Orchestrator) GraphNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.graphs))
	for name := range o.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateSession resolves a registered graph, seeds the session state from
// the graph's channel defaults plus the caller's initial values, and returns
// the generated session id.
func (o *Orchestrator) CreateSession(ctx context.Context, graphName string, initial state.State) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	runner, ok := o.graphs[graphName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrGraphNotFound, graphName)
	}

	seeded, err := runner.Graph().Schema().NewState(initial)
	if err != nil {
		return "", fmt.Errorf("seed session state: %w", err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		GraphName:     graphName,
		ThreadID:      uuid.NewString(),
		State:         seeded,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	o.sessions[sess.ID] = sess
	observability.SetActiveSessions(len(o.sessions))

	logger := tracing.LoggerFromContext(ctx, o.log)
	logger.Info().Str("session_id", sess.ID).Str("graph", graphName).Str("thread_id", sess.ThreadID).Msg("Session created")
	observability.RecordSessionAudit(ctx, "session_created", sess.ID, map[string]interface{}{"graph": graphName})

	return sess.ID, nil
}

// ResumeSession rebuilds a session for a graph from the latest checkpoint of
// a thread, so execution interrupted by a crash or restart continues where
// the checkpoint trail left off. The new session keeps the thread id; future
// checkpoints append to the same trail. Unknown threads report
// checkpoint.ErrNotFound.
func (o *Orchestrator) ResumeSession(ctx context.Context, graphName, threadID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store == nil {
		return "", fmt.Errorf("resume session: no checkpoint store configured")
	}
	runner, ok := o.graphs[graphName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrGraphNotFound, graphName)
	}

	cp, err := o.store.Get(ctx, threadID, "")
	if err != nil {
		return "", fmt.Errorf("load checkpoint for thread %q: %w", threadID, err)
	}

	restored, err := rehydrate(cp.State)
	if err != nil {
		return "", fmt.Errorf("restore thread %q: %w", threadID, err)
	}
	seeded, err := runner.Graph().Schema().NewState(restored)
	if err != nil {
		return "", fmt.Errorf("seed session state: %w", err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		GraphName:     graphName,
		ThreadID:      threadID,
		State:         seeded,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Iterations:    seeded.GetInt(agent.ChannelIterationCount),
	}
	o.sessions[sess.ID] = sess
	observability.SetActiveSessions(len(o.sessions))

	logger := tracing.LoggerFromContext(ctx, o.log)
	logger.Info().
		Str("session_id", sess.ID).
		Str("graph", graphName).
		Str("thread_id", threadID).
		Str("checkpoint_id", cp.ID).
		Int("step", cp.Metadata.Step).
		Msg("Session resumed from checkpoint")
	observability.RecordSessionAudit(ctx, "session_resumed", sess.ID, map[string]interface{}{
		"graph":         graphName,
		"thread_id":     threadID,
		"checkpoint_id": cp.ID,
	})

	return sess.ID, nil
}

// rehydrate restores typed channel values that JSON-backed checkpoint stores
// degrade to []any on load.
func rehydrate(st state.State) (state.State, error) {
	out := st.Snapshot()
	msgs, err := llm.DecodeMessages(out[agent.ChannelMessages])
	if err != nil {
		return nil, fmt.Errorf("rehydrate messages: %w", err)
	}
	if msgs == nil {
		delete(out, agent.ChannelMessages)
	} else {
		out[agent.ChannelMessages] = msgs
	}
	return out, nil
}

// Execute appends the user input to the session's messages and runs the
// graph to its next terminal or step-limit point. It never returns an error
// through the envelope's Success/Error fields alone; unknown sessions get a
// not-found envelope.
func (o *Orchestrator) Execute(ctx context.Context, sessionID, userInput string) Result {
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"session",
		"session.execute",
		attribute.String("session.id", sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, o.log).With().Str("session_id", sessionID).Logger()

	o.mu.Lock()
	sess, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return Result{SessionID: sessionID, Error: ErrSessionNotFound.Error()}
	}
	runner, ok := o.graphs[sess.GraphName]
	if !ok {
		o.mu.Unlock()
		return Result{SessionID: sessionID, Error: fmt.Sprintf("graph %q no longer registered", sess.GraphName)}
	}
	initial := sess.State.Snapshot()
	threadID := sess.ThreadID
	graphName := sess.GraphName
	o.mu.Unlock()

	if userInput != "" {
		msgs, _ := initial[agent.ChannelMessages].([]llm.Message)
		initial[agent.ChannelMessages] = append(msgs, llm.UserMessage(userInput))
	}

	start := time.Now()
	res, err := runner.Run(ctx, initial, threadID)
	elapsed := time.Since(start)

	if err != nil {
		// Configuration errors are programmer mistakes in graph wiring;
		// report them in the envelope too, the session stays usable.
		logger.Error().Err(err).Msg("session execution failed")
		observability.RecordSessionExecution(graphName, elapsed, false)
		observability.RecordGraphAudit(ctx, graphName, sessionID, "failure", map[string]interface{}{"error": err.Error()})
		return Result{SessionID: sessionID, ExecutionTime: elapsed, Error: err.Error()}
	}

	finalState := res.State
	if o.memory != nil {
		finalState = o.truncateHistory(finalState)
	}

	o.mu.Lock()
	if cur, ok := o.sessions[sessionID]; ok {
		cur.State = finalState
		cur.LastUpdatedAt = time.Now().UTC()
		cur.Iterations = finalState.GetInt(agent.ChannelIterationCount)
		cur.Executions++
	}
	o.mu.Unlock()

	success := res.Status != graph.StatusFailed
	out := Result{
		SessionID:     sessionID,
		Status:        res.Status,
		State:         finalState,
		Response:      finalState.GetString(agent.ChannelResponse),
		ExecutionTime: elapsed,
		Success:       success,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	} else if errText := finalState.GetString(agent.ChannelError); errText != "" && !success {
		out.Error = errText
	}

	auditStatus := "success"
	if !success {
		auditStatus = "failure"
	}
	observability.RecordSessionExecution(graphName, elapsed, success)
	observability.RecordGraphAudit(ctx, graphName, sessionID, auditStatus, map[string]interface{}{"steps": res.Steps})
	logger.Info().
		Str("status", string(res.Status)).
		Int("steps", res.Steps).
		Dur("execution_time", elapsed).
		Msg("Session executed")

	return out
}

// truncateHistory bounds the stored messages channel between executions.
func (o *Orchestrator) truncateHistory(st state.State) state.State {
	msgs, ok := st[agent.ChannelMessages].([]llm.Message)
	if !ok {
		return st
	}
	truncated := o.memory.Truncate(msgs, 0)
	if len(truncated) == len(msgs) {
		return st
	}
	out := st.Snapshot()
	out[agent.ChannelMessages] = truncated
	return out
}

// GetSessionInfo returns a session summary, or false for an unknown id.
func (o *Orchestrator) GetSessionInfo(sessionID string) (Info, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	sess, ok := o.sessions[sessionID]
	if !ok {
		return Info{}, false
	}
	return o.infoLocked(sess), true
}

// ListSessions returns summaries for every live session, newest first.
func (o *Orchestrator) ListSessions() []Info {
	o.mu.RLock()
	defer o.mu.RUnlock()

	infos := make([]Info, 0, len(o.sessions))
	for _, sess := range o.sessions {
		infos = append(infos, o.infoLocked(sess))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

func (o *Orchestrator) infoLocked(sess *Session) Info {
	msgs, _ := sess.State[agent.ChannelMessages].([]llm.Message)
	return Info{
		ID:            sess.ID,
		GraphName:     sess.GraphName,
		ThreadID:      sess.ThreadID,
		CreatedAt:     sess.CreatedAt,
		LastUpdatedAt: sess.LastUpdatedAt,
		Iterations:    sess.Iterations,
		Executions:    sess.Executions,
		MessageCount:  len(msgs),
	}
}

// CloseSession removes a session from the registry. Checkpoints for its
// thread remain in the store.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	delete(o.sessions, sessionID)
	observability.SetActiveSessions(len(o.sessions))

	log := tracing.LoggerFromContext(ctx, o.log)
	log.Info().Str("session_id", sessionID).Msg("Session closed")
	observability.RecordSessionAudit(ctx, "session_closed", sessionID, nil)
	return nil
}

// ResetSession closes a session and recreates one for the same graph,
// returning the new session id.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string, newState state.State) (string, error) {
	o.mu.RLock()
	sess, ok := o.sessions[sessionID]
	var graphName string
	if ok {
		graphName = sess.GraphName
	}
	o.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	if err := o.CloseSession(ctx, sessionID); err != nil {
		return "", err
	}
	return o.CreateSession(ctx, graphName, newState)
}

// Len returns the number of live sessions.
func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}
