package provider

import (
	"fmt"
	"strings"

	"github.com/saturn-platform/opsclaw/internal/config"
)

// NewProviderFromConfig builds an LLM provider from the selected LLM profile.
func NewProviderFromConfig(cfg config.LLMProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case NameAnthropic:
		return newAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.BaseURL, nil)
	case NameOpenAI:
		return newOpenAIProvider(NameOpenAI, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.BaseURL, nil)
	case NameOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOpenRouterURL
		}
		return newOpenAIProvider(NameOpenRouter, cfg.APIKey, cfg.Model, cfg.MaxTokens, baseURL, nil)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
