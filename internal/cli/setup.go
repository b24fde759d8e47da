package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/weavegraph/weave/internal/config"
	"github.com/weavegraph/weave/internal/logger"
	"github.com/weavegraph/weave/pkg/agent"
	"github.com/weavegraph/weave/pkg/checkpoint"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/memory"
	"github.com/weavegraph/weave/pkg/session"
	"github.com/weavegraph/weave/pkg/tool"
)

// runtime bundles the engine components a command needs.
type runtime struct {
	cfg          *config.Config
	log          *logger.Logger
	client       llm.Client
	store        checkpoint.Store
	tools        *tool.Registry
	browser      *tool.Browser
	memory       *memory.Manager
	orchestrator *session.Orchestrator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newRuntime assembles the full engine stack from configuration and
// registers a ReAct agent graph named "assistant".
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		Service:   "weave",
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zl := lg.GetZerolog()

	client, err := llm.NewClient(llm.ProviderConfig{
		Provider: cfg.Provider.Provider,
		APIKey:   cfg.Provider.APIKey,
		BaseURL:  cfg.Provider.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tools := tool.NewRegistry()
	defs := []tool.Definition{tool.NewCalculator(), tool.NewClock()}
	var browser *tool.Browser
	if cfg.Agent.EnableBrowser {
		browser = tool.NewBrowser()
		defs = append(defs, browser.Definition())
	}
	for _, def := range defs {
		if err := tools.Register(def); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}

	mem := memory.NewManager(memory.Config{
		SummarizationThreshold: cfg.Memory.SummarizationThreshold,
		KeepRecent:             cfg.Memory.KeepRecent,
		MaxMessageHistory:      cfg.Memory.MaxMessageHistory,
		RetrievalK:             cfg.Memory.RetrievalK,
		Logger:                 &zl,
	}, client)

	orch := session.NewOrchestrator(session.OrchestratorConfig{
		Memory: mem,
		Store:  store,
		Logger: &zl,
	})

	react, err := newAssistant(cfg, client, tools, mem, store, &zl)
	if err != nil {
		return nil, err
	}
	orch.RegisterGraph("assistant", react)

	return &runtime{
		cfg:          cfg,
		log:          lg,
		client:       client,
		store:        store,
		tools:        tools,
		browser:      browser,
		memory:       mem,
		orchestrator: orch,
	}, nil
}

// close releases the browser, the store and the logger.
func (r *runtime) close() {
	if r.browser != nil {
		_ = r.browser.Close()
	}
	if c, ok := r.store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	_ = r.log.Close()
}

func newAssistant(cfg *config.Config, client llm.Client, tools *tool.Registry, mem *memory.Manager, store checkpoint.Store, zl *zerolog.Logger) (*agent.React, error) {
	var agentMem *memory.Manager
	if cfg.Agent.EnableMemory {
		agentMem = mem
	}
	return agent.NewReact(agent.ReactConfig{
		Name:              "assistant",
		Client:            client,
		Tools:             tools,
		SystemPrompt:      cfg.Agent.SystemPrompt,
		Memory:            agentMem,
		MaxIterations:     cfg.Agent.MaxIterations,
		Store:             store,
		RequireDurability: cfg.Checkpoint.RequireDurability,
		Model:             cfg.Provider.Model,
		Temperature:       cfg.Provider.Temperature,
		MaxTokens:         cfg.Provider.MaxTokens,
		Logger:            zl,
	})
}

func newStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.Checkpoint.Backend {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		path := cfg.Checkpoint.Path
		if !filepath.IsAbs(path) && cfg.DataDir != "" {
			path = filepath.Join(cfg.DataDir, path)
		}
		return checkpoint.NewSQLiteStore(path)
	case "redis":
		ttl := time.Duration(cfg.Checkpoint.TTLSeconds) * time.Second
		return checkpoint.NewRedisStore(ctx, cfg.Checkpoint.URL, ttl)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %s", cfg.Checkpoint.Backend)
	}
}
