package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weavegraph/weave/internal/observability"
	"github.com/weavegraph/weave/pkg/checkpoint"
	"github.com/weavegraph/weave/pkg/graph"
	"github.com/weavegraph/weave/pkg/knowledge"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/state"
)

const defaultRAGSystemPrompt = "You are an AI assistant that answers questions based on a knowledge base."

// RAGConfig configures the retrieval-augmented pipeline.
type RAGConfig struct {
	// Name names the compiled graph. Defaults to "rag_workflow".
	Name string
	// Client is the LLM contract. Required.
	Client llm.Client
	// Retriever supplies the knowledge base. Required.
	Retriever knowledge.Retriever
	// SystemPrompt defaults to a knowledge-base answering prompt.
	SystemPrompt string
	// RetrievalK is how many documents to fetch. Defaults to 5.
	RetrievalK int
	// KeepTop is how many documents survive reranking. Defaults to 3.
	KeepTop int
	// Store receives checkpoints after every step.
	Store             checkpoint.Store
	RequireDurability bool
	Model             string
	Temperature       float64
	MaxTokens         int
	Logger            *zerolog.Logger
}

// RAG is a compiled retrieval pipeline:
//
//	analyze -> retrieve -> rerank -> build_context -> generate -> end
type RAG struct {
	graph    *graph.Graph
	executor *graph.Executor
	cfg      RAGConfig
}

// NewRAG builds and compiles the RAG pipeline.
func NewRAG(cfg RAGConfig) (*RAG, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("rag pipeline requires an llm client")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("rag pipeline requires a retriever")
	}
	if cfg.Name == "" {
		cfg.Name = "rag_workflow"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultRAGSystemPrompt
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 5
	}
	if cfg.KeepTop <= 0 {
		cfg.KeepTop = 3
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	p := &RAG{cfg: cfg}

	b := graph.NewBuilder(cfg.Name, ragSchema())
	b.AddNode("analyze", p.analyzeNode)
	b.AddNode("retrieve", p.retrieveNode)
	b.AddNode("rerank", p.rerankNode)
	b.AddNode("build_context", p.buildContextNode)
	b.AddNode("generate", p.generateNode)
	b.AddEdge("analyze", "retrieve")
	b.AddEdge("retrieve", "rerank")
	b.AddEdge("rerank", "build_context")
	b.AddEdge("build_context", "generate")
	b.AddEdge("generate", graph.End)
	b.SetEntryPoint("analyze")

	g, err := b.Compile()
	if err != nil {
		return nil, err
	}

	p.graph = g
	p.executor = graph.NewExecutor(g, graph.ExecutorConfig{
		Store:             cfg.Store,
		RequireDurability: cfg.RequireDurability,
		Logger:            &logger,
	})
	return p, nil
}

// Graph returns the compiled graph.
func (p *RAG) Graph() *graph.Graph {
	return p.graph
}

// Run executes the pipeline for one query.
func (p *RAG) Run(ctx context.Context, initial state.State, threadID string) (graph.Result, error) {
	return p.executor.Invoke(ctx, initial, threadID)
}

// analyzeNode resolves the effective query: the query channel when set, else
// the last user message.
func (p *RAG) analyzeNode(_ context.Context, st state.State) (state.State, error) {
	query := st.GetString(ChannelQuery)
	if query == "" {
		msgs := messagesFrom(st)
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == llm.RoleUser {
				query = msgs[i].Content
				break
			}
		}
	}
	return state.State{ChannelQuery: query}, nil
}

func (p *RAG) retrieveNode(ctx context.Context, st state.State) (state.State, error) {
	query := st.GetString(ChannelQuery)
	if query == "" {
		return state.State{ChannelDocuments: []knowledge.Document{}}, nil
	}

	start := time.Now()
	docs, err := p.cfg.Retriever.Search(ctx, query, p.cfg.RetrievalK)
	observability.RecordMemorySearch(time.Since(start))
	if err != nil {
		return state.State{
			ChannelDocuments: []knowledge.Document{},
			ChannelError:     fmt.Sprintf("retrieval failed: %v", err),
		}, nil
	}
	return state.State{ChannelDocuments: docs}, nil
}

// rerankNode keeps the highest-scoring documents. Search results arrive
// score-ordered, so this is a cut, not a re-sort.
func (p *RAG) rerankNode(_ context.Context, st state.State) (state.State, error) {
	docs, _ := st[ChannelDocuments].([]knowledge.Document)
	if len(docs) > p.cfg.KeepTop {
		docs = docs[:p.cfg.KeepTop]
	}
	return state.State{ChannelDocuments: docs}, nil
}

func (p *RAG) buildContextNode(_ context.Context, st state.State) (state.State, error) {
	docs, _ := st[ChannelDocuments].([]knowledge.Document)
	if len(docs) == 0 {
		return state.State{ChannelContext: "No relevant information found."}, nil
	}

	var parts []string
	for i, doc := range docs {
		content := doc.Content
		if len(content) > 1000 {
			content = content[:1000] + "..."
		}
		parts = append(parts, fmt.Sprintf("[Document %d] %s", i+1, content))
	}
	return state.State{ChannelContext: strings.Join(parts, "\n\n")}, nil
}

func (p *RAG) generateNode(ctx context.Context, st state.State) (state.State, error) {
	query := st.GetString(ChannelQuery)
	docContext := st.GetString(ChannelContext)

	prompt := fmt.Sprintf(
		"Answer the question based on the following context.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer from the context only; if the context has no relevant information, say so. Cite the document numbers you used.",
		docContext, query,
	)

	start := time.Now()
	msg, err := p.cfg.Client.Generate(ctx, llm.Request{
		Model:        p.cfg.Model,
		SystemPrompt: p.cfg.SystemPrompt,
		Messages:     []llm.Message{llm.UserMessage(prompt)},
		Temperature:  p.cfg.Temperature,
		MaxTokens:    p.cfg.MaxTokens,
	})
	observability.RecordGeneration(p.cfg.Client.Provider(), time.Since(start), err == nil)

	if err != nil {
		content := fmt.Sprintf("Sorry, an error occurred while generating an answer: %v", err)
		return state.State{
			ChannelMessages: []llm.Message{llm.AssistantMessage(content)},
			ChannelResponse: content,
			ChannelError:    err.Error(),
		}, nil
	}

	return state.State{
		ChannelMessages: []llm.Message{msg},
		ChannelResponse: msg.Content,
	}, nil
}
