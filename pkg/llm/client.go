package llm

import "fmt"

// ProviderConfig selects and authenticates a provider SDK.
type ProviderConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // "anthropic", "openai"
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	// BaseURL overrides the provider endpoint, for proxies and
	// API-compatible gateways. Empty uses the SDK default.
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// NewClient creates a provider-backed client from a config.
func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.BaseURL), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
