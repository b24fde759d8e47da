package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "anthropic", cfg.Provider.Provider)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 30, cfg.Memory.SummarizationThreshold)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, "@every 10m", cfg.Session.CleanupSchedule)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Provider.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Provider.Provider = "bard" }},
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }},
		{"missing model", func(c *Config) { c.Provider.Model = "" }},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }},
		{"unknown backend", func(c *Config) { c.Checkpoint.Backend = "dynamo" }},
		{"sqlite without path", func(c *Config) { c.Checkpoint.Backend = "sqlite" }},
		{"redis without url", func(c *Config) { c.Checkpoint.Backend = "redis" }},
		{"negative keep recent", func(c *Config) { c.Memory.KeepRecent = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Checkpoint.Backend = "sqlite"
	cfg.Checkpoint.Path = "weave.db"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Checkpoint.Backend = "redis"
	cfg.Checkpoint.URL = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "weave.json"))
	assert.False(t, loader.Exists())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider.Provider)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weave.json")
	loader := NewLoader(path)

	cfg := validConfig()
	cfg.Provider.Model = "claude-opus-4-20250514"
	cfg.Agent.MaxIterations = 7
	cfg.Checkpoint.Backend = "sqlite"
	cfg.Checkpoint.Path = "state.db"

	require.NoError(t, loader.Save(cfg))
	assert.True(t, loader.Exists())

	loaded, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-20250514", loaded.Provider.Model)
	assert.Equal(t, 7, loaded.Agent.MaxIterations)
	assert.Equal(t, "sqlite", loaded.Checkpoint.Backend)
	assert.Equal(t, filepath.Dir(path), loaded.DataDir, "data dir defaults beside the config")
}

func TestConfigString(t *testing.T) {
	s := validConfig().String()
	assert.Contains(t, s, "anthropic")
	assert.Contains(t, s, "max_iterations")
}
