package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		LLM: map[string]LLMProviderConfig{
			"default": {
				Provider:       "anthropic",
				APIKey:         "k",
				Model:          "claude-sonnet-4-5",
				RequestTimeout: 30 * time.Second,
			},
		},
		Redis:    RedisConfig{ConfirmationTTL: time.Minute},
		Executor: ExecutorConfig{Operator: "ops"},
		Log:      LogConfig{Level: "info"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "no llm",
			mutate: func(c *Config) { c.LLM = nil },
			want:   "at least one llm",
		},
		{
			name: "missing api key",
			mutate: func(c *Config) {
				llm := c.LLM["default"]
				llm.APIKey = ""
				c.LLM["default"] = llm
			},
			want: "llm.default: api_key is required",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				llm := c.LLM["default"]
				llm.Provider = "ollama"
				c.LLM["default"] = llm
			},
			want: "unsupported provider",
		},
		{
			name: "structured output on anthropic",
			mutate: func(c *Config) {
				llm := c.LLM["default"]
				llm.StructuredOutput = true
				c.LLM["default"] = llm
			},
			want: "structured_output needs an OpenAI-compatible provider",
		},
		{
			name:   "bad dsn",
			mutate: func(c *Config) { c.Database.DSN = "mysql:nope" },
			want:   "database:",
		},
		{
			name:   "bad prometheus address",
			mutate: func(c *Config) { c.Prometheus.Address = "localhost:9090" },
			want:   "prometheus:",
		},
		{
			name:   "platform without token",
			mutate: func(c *Config) { c.Platform = PlatformConfig{URL: "https://paas.example.com", LogLines: 10, RequestTimeout: time.Second} },
			want:   "platform: token is required",
		},
		{
			name:   "platform bad url",
			mutate: func(c *Config) { c.Platform = PlatformConfig{URL: "paas.example.com", Token: "t"} },
			want:   "platform: url",
		},
		{
			name:   "zero ttl",
			mutate: func(c *Config) { c.Redis.ConfirmationTTL = 0 },
			want:   "redis: confirmation_ttl",
		},
		{
			name: "bad cron",
			mutate: func(c *Config) {
				c.Watch.Jobs = []JobConfig{{ID: "a", Cron: "every day", Instruction: "status api"}}
			},
			want: "watch: jobs[0]: invalid cron",
		},
		{
			name: "duplicate job",
			mutate: func(c *Config) {
				c.Watch.Jobs = []JobConfig{
					{ID: "a", Cron: "@hourly", Instruction: "status api"},
					{ID: "a", Cron: "@daily", Instruction: "status api"},
				}
			},
			want: "duplicate id",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
			want:   "log: invalid level",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidate_OpenAIProvidersNeedKey(t *testing.T) {
	for _, p := range []string{"openai", "openrouter"} {
		cfg := LLMProviderConfig{Provider: p, Model: "m", RequestTimeout: time.Second}
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected missing api key error", p)
		}
	}
}
