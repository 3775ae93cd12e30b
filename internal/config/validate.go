package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

// Validate checks required LLM provider fields and provider-specific rules.
func (c LLMProviderConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	if c.MaxTokens < 0 {
		return errors.New("max_tokens must be >= 0")
	}

	switch c.Provider {
	case "anthropic", "openai", "openrouter":
		if c.APIKey == "" {
			return errors.New("api_key is required")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.StructuredOutput && c.Provider == "anthropic" {
		return errors.New("structured_output needs an OpenAI-compatible provider")
	}
	return nil
}

// Validate checks the DSN scheme when a database is configured.
func (c DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return nil
	}
	if !strings.HasPrefix(c.DSN, "postgres://") && !strings.HasPrefix(c.DSN, "postgresql://") && !strings.Contains(c.DSN, "=") {
		return fmt.Errorf("dsn %q is neither a postgres URL nor a key=value string", c.DSN)
	}
	return nil
}

// Validate requires a token whenever the platform API is enabled.
func (c PlatformConfig) Validate() error {
	if c.URL == "" {
		return nil
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url %q must be an http(s) URL", c.URL)
	}
	if c.Token == "" {
		return errors.New("token is required when url is set")
	}
	if c.LogLines <= 0 {
		return errors.New("log_lines must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	return nil
}

func (c PrometheusConfig) Validate() error {
	if c.Address == "" {
		return nil
	}
	if !strings.HasPrefix(c.Address, "http://") && !strings.HasPrefix(c.Address, "https://") {
		return fmt.Errorf("address %q must be an http(s) URL", c.Address)
	}
	return nil
}

func (c RedisConfig) Validate() error {
	if c.DB < 0 {
		return errors.New("db must be >= 0")
	}
	if c.ConfirmationTTL <= 0 {
		return errors.New("confirmation_ttl must be > 0")
	}
	return nil
}

func (c ExecutorConfig) Validate() error {
	if c.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}

// Validate checks job ids are unique and cron specs parse.
func (c WatchConfig) Validate() error {
	seen := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.ID == "" {
			return fmt.Errorf("jobs[%d]: id is required", i)
		}
		if seen[job.ID] {
			return fmt.Errorf("jobs[%d]: duplicate id %q", i, job.ID)
		}
		seen[job.ID] = true
		if strings.TrimSpace(job.Instruction) == "" {
			return fmt.Errorf("jobs[%d]: instruction is required", i)
		}
		if _, err := cron.ParseStandard(job.Cron); err != nil {
			return fmt.Errorf("jobs[%d]: invalid cron %q: %w", i, job.Cron, err)
		}
	}
	return nil
}

func (c LogConfig) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	return nil
}

// Validate validates startup configuration and returns the first fatal error.
func (cfg *Config) Validate() error {
	var errs []error

	if len(cfg.LLM) == 0 {
		errs = append(errs, errors.New("at least one llm.* profile is required"))
	}
	for name, llmCfg := range cfg.LLM {
		if err := llmCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("llm.%s: %w", name, err))
		}
	}

	sections := []struct {
		name    string
		section Validatable
	}{
		{"database", cfg.Database},
		{"platform", cfg.Platform},
		{"prometheus", cfg.Prometheus},
		{"redis", cfg.Redis},
		{"executor", cfg.Executor},
		{"watch", cfg.Watch},
		{"log", cfg.Log},
	}
	for _, s := range sections {
		if err := s.section.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
