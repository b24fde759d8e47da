package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Weave configuration
type Config struct {
	// Provider holds the LLM provider settings
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Agent holds the default agent settings
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Memory holds the conversation memory thresholds
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Checkpoint holds the checkpoint store settings
	Checkpoint CheckpointConfig `json:"checkpoint" mapstructure:"checkpoint"`

	// Session holds the session lifecycle settings
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Metrics holds the metrics endpoint settings
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProviderConfig holds LLM provider configuration
type ProviderConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig holds the default agent configuration
type AgentConfig struct {
	SystemPrompt  string `json:"system_prompt" mapstructure:"system_prompt"`
	MaxIterations int    `json:"max_iterations" mapstructure:"max_iterations"`
	EnableMemory  bool   `json:"enable_memory" mapstructure:"enable_memory"`
	// EnableBrowser registers the headless-browser browse tool. Requires a
	// local Chrome or Chromium install.
	EnableBrowser bool `json:"enable_browser" mapstructure:"enable_browser"`
}

// MemoryConfig holds conversation memory thresholds
type MemoryConfig struct {
	SummarizationThreshold int `json:"summarization_threshold" mapstructure:"summarization_threshold"`
	KeepRecent             int `json:"keep_recent" mapstructure:"keep_recent"`
	MaxMessageHistory      int `json:"max_message_history" mapstructure:"max_message_history"`
	RetrievalK             int `json:"retrieval_k" mapstructure:"retrieval_k"`
}

// CheckpointConfig holds checkpoint store configuration
type CheckpointConfig struct {
	Backend           string `json:"backend" mapstructure:"backend"` // memory, sqlite, redis
	Path              string `json:"path" mapstructure:"path"`       // sqlite database path
	URL               string `json:"url" mapstructure:"url"`         // redis connection URL
	TTLSeconds        int    `json:"ttl_seconds" mapstructure:"ttl_seconds"`
	RequireDurability bool   `json:"require_durability" mapstructure:"require_durability"`
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	IdleTimeoutMinutes int    `json:"idle_timeout_minutes" mapstructure:"idle_timeout_minutes"`
	CleanupSchedule    string `json:"cleanup_schedule" mapstructure:"cleanup_schedule"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			EnableMemory:  true,
		},
		Memory: MemoryConfig{
			SummarizationThreshold: 30,
			KeepRecent:             5,
			MaxMessageHistory:      50,
			RetrievalK:             5,
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
		Session: SessionConfig{
			IdleTimeoutMinutes: 30,
			CleanupSchedule:    "@every 10m",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider.Provider {
	case "anthropic", "openai":
	case "":
		return fmt.Errorf("provider is required")
	default:
		return fmt.Errorf("invalid provider %q (must be: anthropic, openai)", c.Provider.Provider)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider api_key is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider model is required")
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent max_iterations must be positive")
	}

	switch c.Checkpoint.Backend {
	case "memory", "":
	case "sqlite":
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint path is required for the sqlite backend")
		}
	case "redis":
		if c.Checkpoint.URL == "" {
			return fmt.Errorf("checkpoint url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid checkpoint backend %q (must be: memory, sqlite, redis)", c.Checkpoint.Backend)
	}

	if c.Memory.KeepRecent < 0 || c.Memory.SummarizationThreshold < 0 {
		return fmt.Errorf("memory thresholds cannot be negative")
	}

	return nil
}
