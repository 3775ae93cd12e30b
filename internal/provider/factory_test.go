package provider

import (
	"testing"

	"github.com/saturn-platform/opsclaw/internal/config"
)

func TestNewProviderFromConfig_SelectsAnthropic(t *testing.T) {
	p, err := NewProviderFromConfig(config.LLMProviderConfig{
		Provider: "anthropic",
		APIKey:   "k",
		Model:    "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*anthropicProvider); !ok {
		t.Fatalf("expected anthropic provider, got %T", p)
	}
}

func TestNewProviderFromConfig_SelectsOpenRouter(t *testing.T) {
	p, err := NewProviderFromConfig(config.LLMProviderConfig{
		Provider: "openrouter",
		APIKey:   "k",
		Model:    "deepseek/deepseek-chat",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	op, ok := p.(*openAIProvider)
	if !ok {
		t.Fatalf("expected openai-compatible provider, got %T", p)
	}
	if op.name != NameOpenRouter {
		t.Fatalf("expected openrouter name, got %q", op.name)
	}
}

func TestNewProviderFromConfig_SelectsOpenAI(t *testing.T) {
	p, err := NewProviderFromConfig(config.LLMProviderConfig{
		Provider: "OpenAI",
		APIKey:   "k",
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op, ok := p.(*openAIProvider); !ok || op.name != NameOpenAI {
		t.Fatalf("expected openai provider, got %T", p)
	}
}

func TestNewProviderFromConfig_RequiresAPIKey(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "openrouter"} {
		if _, err := NewProviderFromConfig(config.LLMProviderConfig{Provider: name, Model: "m"}); err == nil {
			t.Fatalf("%s: expected missing api key error", name)
		}
	}
}

func TestNewProviderFromConfig_UnsupportedProvider(t *testing.T) {
	_, err := NewProviderFromConfig(config.LLMProviderConfig{
		Provider: "nope",
		APIKey:   "k",
		Model:    "m",
	})
	if err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}
