package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/weavegraph/weave/internal/observability"
	"github.com/weavegraph/weave/internal/tracing"
	"github.com/weavegraph/weave/pkg/checkpoint"
	"github.com/weavegraph/weave/pkg/state"
)

// Status is the terminal outcome of one execution.
type Status string

const (
	// StatusCompleted means the graph reached the terminal marker naturally.
	StatusCompleted Status = "completed"
	// StatusStepLimit means the step budget tripped before termination.
	StatusStepLimit Status = "step_limit"
	// StatusFailed means a node failed with no error route mapped.
	StatusFailed Status = "failed"
)

// DefaultMaxSteps bounds executions whose config does not set a budget.
const DefaultMaxSteps = 25

// Result is the outcome envelope of one execution.
type Result struct {
	Status   Status
	State    state.State
	Steps    int
	Duration time.Duration
	// Err carries the node failure for StatusFailed. It is reported here,
	// not as the Invoke error, so callers can still read the partial state.
	Err error
}

// Completed reports whether the run reached the terminal marker.
func (r Result) Completed() bool {
	return r.Status == StatusCompleted
}

// ExecutorConfig configures an Executor. All collaborators are injected;
// the executor holds no global state.
type ExecutorConfig struct {
	// Store receives a checkpoint after every merged step. Nil disables
	// checkpointing.
	Store checkpoint.Store
	// MaxSteps bounds the number of node executions per Invoke.
	// Non-positive falls back to DefaultMaxSteps.
	MaxSteps int
	// RequireDurability turns checkpoint write failures into run failures
	// instead of logged warnings.
	RequireDurability bool
	// Logger defaults to the global logger when zero.
	Logger *zerolog.Logger
}

// Executor advances a compiled graph one node per step.
type Executor struct {
	graph             *Graph
	store             checkpoint.Store
	maxSteps          int
	requireDurability bool
	log               zerolog.Logger
}

// NewExecutor creates an executor for a compiled graph.
func NewExecutor(g *Graph, cfg ExecutorConfig) *Executor {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Executor{
		graph:             g,
		store:             cfg.Store,
		maxSteps:          maxSteps,
		requireDurability: cfg.RequireDurability,
		log:               logger.With().Str("graph", g.Name()).Logger(),
	}
}

// Invoke runs the graph from its entry point until the terminal marker, the
// step budget, or an unrecovered node failure. The returned error is non-nil
// only for configuration errors (unknown node, unmapped router key, reducer
// mismatch); recoverable conditions are reported through the Result.
func (e *Executor) Invoke(ctx context.Context, initial state.State, threadID string) (Result, error) {
	ctx = tracing.WithGraph(tracing.WithThreadID(tracing.WithRunID(ctx, tracing.NewRunID()), threadID), e.graph.Name())
	ctx, span := tracing.StartSpan(ctx, "graph", "graph.invoke",
		attribute.String("graph.name", e.graph.Name()),
		attribute.String("thread.id", threadID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.log)
	started := time.Now()

	cur, err := e.graph.Schema().NewState(initial)
	if err != nil {
		return Result{}, newConfigError(e.graph.Name(), fmt.Sprintf("initial state: %v", err))
	}

	current := e.graph.entryPoint
	steps := 0

	for {
		if current == End {
			res := Result{Status: StatusCompleted, State: cur, Steps: steps, Duration: time.Since(started)}
			e.finish(logger, res)
			return res, nil
		}
		if steps >= e.maxSteps {
			logger.Warn().Int("steps", steps).Str("node", current).Msg("step budget reached before termination")
			res := Result{Status: StatusStepLimit, State: cur, Steps: steps, Duration: time.Since(started)}
			e.finish(logger, res)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res := Result{Status: StatusFailed, State: cur, Steps: steps, Duration: time.Since(started), Err: err}
			e.finish(logger, res)
			return res, nil
		}

		fn, ok := e.graph.nodes[current]
		if !ok {
			return Result{}, newConfigError(e.graph.Name(), fmt.Sprintf("execution reached unregistered node %q", current))
		}

		stepStart := time.Now()
		partial, nodeErr := fn(ctx, cur.Snapshot())
		observability.RecordStep(e.graph.Name(), current, time.Since(stepStart), nodeErr == nil)
		steps++

		if nodeErr != nil {
			logger.Error().Err(nodeErr).Str("node", current).Int("step", steps).Msg("node execution failed")

			// Recover the failure into the error channel so downstream
			// nodes can branch on it.
			next := cur.Snapshot()
			next[ErrorChannel] = nodeErr.Error()
			cur = next

			if ce, ok := e.graph.conditional[current]; ok {
				if target, ok := ce.pathMap[ErrorRoute]; ok {
					if err := e.saveCheckpoint(ctx, logger, threadID, cur, steps, current); err != nil {
						res := Result{Status: StatusFailed, State: cur, Steps: steps, Duration: time.Since(started), Err: err}
						e.finish(logger, res)
						return res, nil
					}
					current = target
					continue
				}
			}

			res := Result{Status: StatusFailed, State: cur, Steps: steps, Duration: time.Since(started),
				Err: fmt.Errorf("node %q: %w", current, nodeErr)}
			e.finish(logger, res)
			return res, nil
		}

		if len(partial) > 0 {
			merged, err := e.graph.Schema().Merge(cur, partial)
			if err != nil {
				return Result{}, newConfigError(e.graph.Name(), fmt.Sprintf("node %q output: %v", current, err))
			}
			cur = merged
		}

		logger.Debug().Str("node", current).Int("step", steps).Msg("node completed")

		if err := e.saveCheckpoint(ctx, logger, threadID, cur, steps, current); err != nil {
			res := Result{Status: StatusFailed, State: cur, Steps: steps, Duration: time.Since(started), Err: err}
			e.finish(logger, res)
			return res, nil
		}

		next, err := e.route(ctx, current, cur)
		if err != nil {
			return Result{}, err
		}
		current = next
	}
}

// route resolves the next node after from completes: static edge first, then
// conditional edge evaluated against the post-merge state, else the implicit
// terminal transition.
func (e *Executor) route(ctx context.Context, from string, cur state.State) (string, error) {
	if to, ok := e.graph.edges[from]; ok {
		return to, nil
	}

	ce, ok := e.graph.conditional[from]
	if !ok {
		return End, nil
	}

	key, err := ce.router(ctx, cur.Snapshot())
	if err != nil {
		return "", newConfigError(e.graph.Name(), fmt.Sprintf("router after %q: %v", from, err))
	}
	if key == End {
		return End, nil
	}
	target, ok := ce.pathMap[key]
	if !ok {
		return "", newConfigError(e.graph.Name(),
			fmt.Sprintf("router after %q returned key %q with no path map entry", from, key))
	}
	return target, nil
}

// saveCheckpoint offers the current snapshot to the store. Write failures are
// logged and ignored unless the executor requires durability.
func (e *Executor) saveCheckpoint(ctx context.Context, logger zerolog.Logger, threadID string, cur state.State, step int, node string) error {
	if e.store == nil || threadID == "" {
		return nil
	}

	meta := checkpoint.Metadata{
		Timestamp: time.Now().UTC(),
		Step:      step,
		Node:      node,
		Graph:     e.graph.Name(),
	}

	start := time.Now()
	id, err := e.store.Put(ctx, threadID, cur.Snapshot(), meta)
	observability.RecordCheckpointWrite(time.Since(start), err == nil)
	if err != nil {
		logger.Warn().Err(err).Str("thread_id", threadID).Int("step", step).Msg("checkpoint write failed")
		if e.requireDurability {
			return fmt.Errorf("checkpoint write for thread %q at step %d: %w", threadID, step, err)
		}
		return nil
	}

	logger.Debug().Str("thread_id", threadID).Str("checkpoint_id", id).Int("step", step).Msg("checkpoint saved")
	return nil
}

func (e *Executor) finish(logger zerolog.Logger, res Result) {
	observability.RecordGraphRun(e.graph.Name(), string(res.Status), res.Duration)
	logger.Info().
		Str("status", string(res.Status)).
		Int("steps", res.Steps).
		Dur("duration", res.Duration).
		Msg("graph run finished")
}

// Invoke runs the graph once with a throwaway executor. Callers that execute
// repeatedly should hold an Executor instead.
func (g *Graph) Invoke(ctx context.Context, initial state.State, threadID string, cfg ExecutorConfig) (Result, error) {
	return NewExecutor(g, cfg).Invoke(ctx, initial, threadID)
}
