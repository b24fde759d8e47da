package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavegraph/weave/pkg/graph"
	"github.com/weavegraph/weave/pkg/knowledge"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/state"
)

type failingRetriever struct{}

func (failingRetriever) Search(context.Context, string, int) ([]knowledge.Document, error) {
	return nil, errors.New("index offline")
}

func ragRetriever() *knowledge.KeywordRetriever {
	r := knowledge.NewKeywordRetriever()
	r.Add("Weave compiles graphs before execution and reports every wiring violation at once.", map[string]interface{}{"source": "design.md"})
	r.Add("Checkpoints are stored per thread in memory, SQLite or Redis.", map[string]interface{}{"source": "storage.md"})
	r.Add("Completely unrelated text about cooking pasta.", nil)
	return r
}

func TestRAGRequiresClientAndRetriever(t *testing.T) {
	_, err := NewRAG(RAGConfig{Retriever: ragRetriever()})
	assert.Error(t, err)

	_, err = NewRAG(RAGConfig{Client: &scriptedClient{}})
	assert.Error(t, err)
}

func TestRAGAnswersFromContext(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("Checkpoints can live in memory, SQLite or Redis. [Document 1]"),
	}}

	p, err := NewRAG(RAGConfig{Client: client, Retriever: ragRetriever()})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), state.State{
		ChannelQuery: "where are checkpoints stored",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Equal(t, 5, res.Steps)
	assert.Contains(t, res.State.GetString(ChannelResponse), "SQLite or Redis")

	// The generate prompt embeds the retrieved documents.
	require.Len(t, client.requests, 1)
	prompt := client.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "[Document 1]")
	assert.Contains(t, prompt, "where are checkpoints stored")

	docs, _ := res.State[ChannelDocuments].([]knowledge.Document)
	require.NotEmpty(t, docs)
	assert.Contains(t, docs[0].Content, "Checkpoints")
}

func TestRAGQueryFromLastUserMessage(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("answer"),
	}}

	p, err := NewRAG(RAGConfig{Client: client, Retriever: ragRetriever()})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), state.State{
		ChannelMessages: []llm.Message{
			llm.UserMessage("first question"),
			llm.AssistantMessage("first answer"),
			llm.UserMessage("how are graphs compiled"),
		},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "how are graphs compiled", res.State.GetString(ChannelQuery))
}

func TestRAGRerankCutsToKeepTop(t *testing.T) {
	retriever := knowledge.NewKeywordRetriever()
	for i := 0; i < 6; i++ {
		retriever.Add("weave orchestration engine notes", nil)
	}

	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("ok"),
	}}

	p, err := NewRAG(RAGConfig{Client: client, Retriever: retriever, RetrievalK: 5, KeepTop: 2})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), state.State{ChannelQuery: "weave"}, "")
	require.NoError(t, err)

	docs, _ := res.State[ChannelDocuments].([]knowledge.Document)
	assert.Len(t, docs, 2)
}

func TestRAGNoMatchesStillAnswers(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("I have no information about that."),
	}}

	p, err := NewRAG(RAGConfig{Client: client, Retriever: ragRetriever()})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), state.State{
		ChannelQuery: "quantum chromodynamics",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Equal(t, "No relevant information found.", res.State.GetString(ChannelContext))
}

func TestRAGRetrieverFailureIsRecorded(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		llm.AssistantMessage("answering without context"),
	}}

	p, err := NewRAG(RAGConfig{Client: client, Retriever: failingRetriever{}})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), state.State{ChannelQuery: "anything"}, "")
	require.NoError(t, err)

	// Retrieval failure degrades to an empty context instead of failing.
	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Contains(t, res.State.GetString(ChannelError), "index offline")
	assert.Equal(t, "No relevant information found.", res.State.GetString(ChannelContext))
}

func TestRAGGenerateFailureProducesApology(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("model overloaded")}}

	p, err := NewRAG(RAGConfig{Client: client, Retriever: ragRetriever()})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), state.State{ChannelQuery: "checkpoints"}, "")
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, res.Status)
	assert.Contains(t, res.State.GetString(ChannelResponse), "Sorry")
	assert.Equal(t, "model overloaded", res.State.GetString(ChannelError))
}
