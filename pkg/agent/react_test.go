package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavegraph/weave/pkg/graph"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/memory"
	"github.com/weavegraph/weave/pkg/state"
	"github.com/weavegraph/weave/pkg/tool"
)

// scriptedClient replays responses in order and records the requests it saw.
type scriptedClient struct {
	responses []llm.Message
	errs      []error
	requests  []llm.Request
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (llm.Message, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return llm.Message{}, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return llm.Message{}, errors.New("scripted client exhausted")
}

func (c *scriptedClient) Provider() string { return "scripted" }

func calcRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, r.Register(tool.NewCalculator()))
	return r
}

func initialState(userInput string) state.State {
	return state.State{ChannelMessages: []llm.Message{llm.UserMessage(userInput)}}
}

func TestReactRequiresClient(t *testing.T) {
	_, err := NewReact(ReactConfig{})
	assert.Error(t, err)
}

func TestReactDirectAnswer(t *testing.T) {
	// The model answers without tools: one round trip, two messages.
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("Hello! How can I help?"),
	}}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("hi"), "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Equal(t, "Hello! How can I help?", res.State.GetString(ChannelResponse))
	assert.Equal(t, 1, res.State.GetInt(ChannelIterationCount))

	msgs := messagesFrom(res.State)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	require.Len(t, client.requests, 1)
	assert.NotEmpty(t, client.requests[0].Tools, "tool schemas are bound")
}

func TestReactToolRoundTrip(t *testing.T) {
	// Round trip one requests the calculator; round trip two answers.
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("", llm.ToolCall{
			ID:        "call-1",
			Name:      "calculator",
			Arguments: map[string]interface{}{"expression": "25 * 17"},
		}),
		llm.AssistantMessage("25 * 17 is 425."),
	}}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("what is 25 * 17?"), "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Equal(t, "25 * 17 is 425.", res.State.GetString(ChannelResponse))
	assert.Equal(t, 2, res.State.GetInt(ChannelIterationCount))
	assert.Len(t, client.requests, 2)

	// user, assistant(tool call), tool result, assistant answer
	msgs := messagesFrom(res.State)
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleTool, msgs[2].Role)
	assert.Equal(t, "call-1", msgs[2].ToolCallID)
	assert.Equal(t, "25 * 17 = 425", msgs[2].Content)
}

func TestReactParallelToolCalls(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("",
			llm.ToolCall{ID: "a", Name: "calculator", Arguments: map[string]interface{}{"expression": "1 + 1"}},
			llm.ToolCall{ID: "b", Name: "calculator", Arguments: map[string]interface{}{"expression": "2 + 2"}},
		),
		llm.AssistantMessage("2 and 4."),
	}}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("compute both"), "")
	require.NoError(t, err)
	require.Equal(t, graph.StatusCompleted, res.Status)

	// Results land in call order regardless of completion order.
	msgs := messagesFrom(res.State)
	require.Len(t, msgs, 5)
	assert.Equal(t, "a", msgs[2].ToolCallID)
	assert.Equal(t, "1 + 1 = 2", msgs[2].Content)
	assert.Equal(t, "b", msgs[3].ToolCallID)
	assert.Equal(t, "2 + 2 = 4", msgs[3].Content)
}

func TestReactIterationBound(t *testing.T) {
	// The model asks for tools on every round trip; the bound trips after
	// exactly MaxIterations generations.
	var responses []llm.Message
	for i := 0; i < 10; i++ {
		responses = append(responses, llm.AssistantMessage("", llm.ToolCall{
			ID:        fmt.Sprintf("call-%d", i),
			Name:      "calculator",
			Arguments: map[string]interface{}{"expression": "1 + 1"},
		}))
	}
	client := &scriptedClient{responses: responses}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t), MaxIterations: 2})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("loop forever"), "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusStepLimit, res.Status)
	assert.Len(t, client.requests, 2, "exactly MaxIterations LLM round trips")
	assert.Equal(t, 2, res.State.GetInt(ChannelIterationCount))
}

func TestReactLLMFailureProducesApology(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("invalid api key")}}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("hi"), "")
	require.NoError(t, err)

	// The run completes with an apologetic response, not a failure. A
	// permanent provider error is not retried.
	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Len(t, client.requests, 1)
	assert.Contains(t, res.State.GetString(ChannelResponse), "Sorry")
	assert.Equal(t, "invalid api key", res.State.GetString(ChannelError))
	assert.False(t, res.State.GetBool(ChannelShouldContinue))
}

func TestReactRetriesTransientGenerationError(t *testing.T) {
	// First call hits a rate limit, second succeeds inside the same
	// generate step.
	client := &scriptedClient{
		errs:      []error{errors.New("429 Too Many Requests")},
		responses: []llm.Message{{}, llm.AssistantMessage("Recovered.")},
	}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)
	a.retryBackoff = time.Millisecond

	res, err := a.Run(context.Background(), initialState("hi"), "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Len(t, client.requests, 2, "one retry after the transient error")
	assert.Equal(t, "Recovered.", res.State.GetString(ChannelResponse))
	assert.Empty(t, res.State.GetString(ChannelError))
	assert.Equal(t, 1, res.State.GetInt(ChannelIterationCount), "retries do not count as iterations")
}

func TestReactRetryBudgetExhausted(t *testing.T) {
	transient := errors.New("503 Service Unavailable")
	client := &scriptedClient{errs: []error{transient, transient, transient}}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)
	a.retryBackoff = time.Millisecond

	res, err := a.Run(context.Background(), initialState("hi"), "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Len(t, client.requests, 3)
	assert.Contains(t, res.State.GetString(ChannelError), "max retries")
	assert.Contains(t, res.State.GetString(ChannelError), "503")
	assert.False(t, res.State.GetBool(ChannelShouldContinue))
}

func TestReactToolFailureFeedsBackToModel(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("", llm.ToolCall{
			ID:        "call-1",
			Name:      "calculator",
			Arguments: map[string]interface{}{"expression": "1 / 0"},
		}),
		llm.AssistantMessage("Dividing by zero is undefined."),
	}}

	a, err := NewReact(ReactConfig{Client: client, Tools: calcRegistry(t)})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("divide by zero"), "")
	require.NoError(t, err)
	require.Equal(t, graph.StatusCompleted, res.Status)

	msgs := messagesFrom(res.State)
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[2].Content, "Error:")
	assert.Contains(t, msgs[2].Content, "division by zero")
	assert.Equal(t, "Dividing by zero is undefined.", res.State.GetString(ChannelResponse))
}

func TestReactWithoutToolsIsSingleGenerate(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("just text"),
	}}

	a, err := NewReact(ReactConfig{Client: client})
	require.NoError(t, err)
	assert.False(t, a.Graph().HasNode("tools"))

	res, err := a.Run(context.Background(), initialState("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Equal(t, 1, res.Steps)
	assert.Empty(t, client.requests[0].Tools)
}

func TestReactSummarizeFoldsHistory(t *testing.T) {
	// First scripted response serves the summary call, the second the answer.
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("earlier the user computed several sums"),
		llm.AssistantMessage("final answer"),
	}}
	mem := memory.NewManager(memory.Config{SummarizationThreshold: 4, KeepRecent: 2}, client)

	a, err := NewReact(ReactConfig{Client: client, Memory: mem})
	require.NoError(t, err)
	assert.Equal(t, "summarize", a.Graph().EntryPoint())

	initial := state.State{ChannelMessages: []llm.Message{
		llm.UserMessage("add 1 and 1"),
		llm.AssistantMessage("2"),
		llm.UserMessage("add 2 and 2"),
		llm.AssistantMessage("4"),
		llm.UserMessage("what did we do so far?"),
	}}

	res, err := a.Run(context.Background(), initial, "")
	require.NoError(t, err)
	require.Equal(t, graph.StatusCompleted, res.Status)

	summary := res.State.GetString(ChannelSummary)
	assert.Contains(t, summary, "several sums")

	// The generate call sees the summary in its system prompt.
	require.Len(t, client.requests, 2)
	assert.Contains(t, client.requests[1].SystemPrompt, "Summary of the conversation so far")
	assert.Equal(t, "final answer", res.State.GetString(ChannelResponse))
}

func TestReactSummarizeSkipsShortHistory(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("hello"),
	}}
	mem := memory.NewManager(memory.Config{SummarizationThreshold: 30}, client)

	a, err := NewReact(ReactConfig{Client: client, Memory: mem})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), initialState("hi"), "")
	require.NoError(t, err)
	require.Equal(t, graph.StatusCompleted, res.Status)

	assert.Len(t, client.requests, 1, "no summary call under the threshold")
	assert.Equal(t, "", res.State.GetString(ChannelSummary))
}
