package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weavegraph/weave/internal/observability"
	"github.com/weavegraph/weave/pkg/checkpoint"
	"github.com/weavegraph/weave/pkg/graph"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/memory"
	"github.com/weavegraph/weave/pkg/state"
	"github.com/weavegraph/weave/pkg/tool"
)

// DefaultMaxIterations bounds the generate/tools loop when the config does
// not set a cap.
const DefaultMaxIterations = 10

// generateMaxRetries caps retries of one LLM call on transient failures.
const generateMaxRetries = 3

const defaultSystemPrompt = "You are a helpful AI assistant that answers questions, provides information and performs tasks for the user."

// ReactConfig configures a ReAct agent.
type ReactConfig struct {
	// Name names the compiled graph. Defaults to "react_agent".
	Name string
	// Client is the LLM contract. Required.
	Client llm.Client
	// Tools is optional; without it the agent is a single generate step.
	Tools *tool.Registry
	// SystemPrompt defaults to a generic assistant prompt.
	SystemPrompt string
	// Memory, when set, adds a leading summarization step that folds long
	// histories into the messages_summary channel.
	Memory *memory.Manager
	// MaxIterations bounds LLM round trips per run.
	MaxIterations int
	// Store receives checkpoints after every step.
	Store checkpoint.Store
	// RequireDurability makes checkpoint failures fatal to the run.
	RequireDurability bool
	Model             string
	Temperature       float64
	MaxTokens         int
	Logger            *zerolog.Logger
}

// React is a compiled ReAct agent ready to run.
type React struct {
	graph        *graph.Graph
	executor     *graph.Executor
	cfg          ReactConfig
	retryBackoff time.Duration
}

// NewReact builds and compiles the ReAct graph:
//
//	summarize -> generate -(tool calls?)-> tools -> generate ... -> end
//
// The summarize step is present only when a memory manager is configured.
func NewReact(cfg ReactConfig) (*React, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("react agent requires an llm client")
	}
	if cfg.Name == "" {
		cfg.Name = "react_agent"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	a := &React{cfg: cfg, retryBackoff: time.Second}

	b := graph.NewBuilder(cfg.Name, baseSchema())
	b.AddNode("generate", a.generateNode)

	entry := "generate"
	if cfg.Memory != nil {
		b.AddNode("summarize", a.summarizeNode)
		b.AddEdge("summarize", "generate")
		entry = "summarize"
	}

	if cfg.Tools != nil && cfg.Tools.Len() > 0 {
		b.AddNode("tools", a.toolsNode)
		b.AddConditionalEdges("generate", a.shouldUseTools, map[string]string{
			"tools":   "tools",
			graph.End: graph.End,
		})
		b.AddEdge("tools", "generate")
	} else {
		b.AddEdge("generate", graph.End)
	}

	b.SetEntryPoint(entry)

	g, err := b.Compile()
	if err != nil {
		return nil, err
	}

	a.graph = g
	a.executor = graph.NewExecutor(g, graph.ExecutorConfig{
		Store:             cfg.Store,
		MaxSteps:          a.maxSteps(),
		RequireDurability: cfg.RequireDurability,
		Logger:            &logger,
	})
	return a, nil
}

// Graph returns the compiled graph.
func (a *React) Graph() *graph.Graph {
	return a.graph
}

// Run executes the agent until the model stops asking for tools or the
// iteration bound trips.
func (a *React) Run(ctx context.Context, initial state.State, threadID string) (graph.Result, error) {
	return a.executor.Invoke(ctx, initial, threadID)
}

// maxSteps translates the LLM round-trip bound into the executor's node step
// budget: each round trip is one generate plus at most one tools step, and
// the optional summarize step runs once at entry.
func (a *React) maxSteps() int {
	steps := 2 * a.cfg.MaxIterations
	if a.cfg.Memory != nil {
		steps++
	}
	return steps
}

// summarizeNode folds a long history into the messages_summary channel. The
// message list itself is untouched here; the session layer truncates stored
// history between runs.
func (a *React) summarizeNode(ctx context.Context, st state.State) (state.State, error) {
	messages := messagesFrom(st)
	if !a.cfg.Memory.ShouldSummarize(messages) {
		return nil, nil
	}

	keep := a.cfg.Memory.Config().KeepRecent
	_, rest := splitOutSystem(messages)
	if len(rest) <= keep {
		return nil, nil
	}
	older := rest[:len(rest)-keep]

	if prev := st.GetString(ChannelSummary); prev != "" {
		older = append([]llm.Message{llm.SystemMessage(prev)}, older...)
	}

	summary, err := a.cfg.Memory.Summarize(ctx, older)
	if err != nil {
		// Keep the previous summary; truncation happens at the session layer.
		log.Warn().Err(err).Msg("conversation summary failed")
		return nil, nil
	}
	return state.State{ChannelSummary: summary.Content}, nil
}

// generateNode calls the LLM with the system prompt, any running summary and
// the accumulated messages. LLM failures become an assistant message plus an
// error channel update rather than a node failure, so the caller always gets
// a response to show.
func (a *React) generateNode(ctx context.Context, st state.State) (state.State, error) {
	systemPrompt := a.cfg.SystemPrompt
	if summary := st.GetString(ChannelSummary); summary != "" {
		systemPrompt += "\n\n## Summary of the conversation so far:\n" + summary
	}

	req := llm.Request{
		Model:        a.cfg.Model,
		SystemPrompt: systemPrompt,
		Messages:     messagesFrom(st),
		Temperature:  a.cfg.Temperature,
		MaxTokens:    a.cfg.MaxTokens,
	}
	if a.cfg.Tools != nil && a.cfg.Tools.Len() > 0 {
		req.Tools = a.cfg.Tools.Schemas()
	}

	iteration := st.GetInt(ChannelIterationCount)
	log.Debug().
		Int("iteration", iteration+1).
		Int("estimated_tokens", llm.EstimateTokens(req.Messages)).
		Msg("Calling LLM")

	start := time.Now()
	msg, err := a.generateWithRetry(ctx, req)
	observability.RecordGeneration(a.cfg.Client.Provider(), time.Since(start), err == nil)

	if err != nil {
		content := fmt.Sprintf("Sorry, an error occurred while generating a response: %v", err)
		return state.State{
			ChannelMessages:       []llm.Message{llm.AssistantMessage(content)},
			ChannelResponse:       content,
			ChannelError:          err.Error(),
			ChannelIterationCount: iteration + 1,
			ChannelShouldContinue: false,
		}, nil
	}

	return state.State{
		ChannelMessages:       []llm.Message{msg},
		ChannelResponse:       msg.Content,
		ChannelIterationCount: iteration + 1,
	}, nil
}

// generateWithRetry calls the LLM, retrying transient provider failures with
// exponential backoff (1s, 2s). Permanent errors return immediately.
func (a *React) generateWithRetry(ctx context.Context, req llm.Request) (llm.Message, error) {
	var lastErr error

	for attempt := 0; attempt < generateMaxRetries; attempt++ {
		msg, err := a.cfg.Client.Generate(ctx, req)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		if !llm.IsRetryableError(err) {
			return llm.Message{}, err
		}
		if attempt == generateMaxRetries-1 {
			break
		}

		delay := a.retryBackoff * (1 << attempt)
		log.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying generation after transient error")

		select {
		case <-ctx.Done():
			return llm.Message{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return llm.Message{}, fmt.Errorf("max retries (%d) exceeded: %w", generateMaxRetries, lastErr)
}

// shouldUseTools routes to the tools node when the last assistant message
// carries tool calls.
func (a *React) shouldUseTools(_ context.Context, st state.State) (string, error) {
	last, ok := llm.LastMessage(messagesFrom(st))
	if !ok {
		return graph.End, nil
	}
	if last.Role == llm.RoleAssistant && len(last.ToolCalls) > 0 {
		return "tools", nil
	}
	return graph.End, nil
}

// toolsNode executes every tool call from the last assistant message.
// Calls are dispatched concurrently; results are appended in call order so
// the messages channel stays deterministic.
func (a *React) toolsNode(ctx context.Context, st state.State) (state.State, error) {
	last, ok := llm.LastMessage(messagesFrom(st))
	if !ok || len(last.ToolCalls) == 0 {
		return nil, nil
	}

	results := make([]llm.Message, len(last.ToolCalls))
	var wg sync.WaitGroup
	for i, call := range last.ToolCalls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			res := a.cfg.Tools.Execute(ctx, call.Name, call.Arguments)
			results[i] = llm.ToolResultMessage(call.ID, res.Content())
		}(i, call)
	}
	wg.Wait()

	return state.State{ChannelMessages: results}, nil
}

func splitOutSystem(messages []llm.Message) (systems, rest []llm.Message) {
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			systems = append(systems, msg)
		} else {
			rest = append(rest, msg)
		}
	}
	return systems, rest
}
