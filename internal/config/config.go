// Package config loads opsclaw runtime configuration from a TOML file and environment variables, exposing typed structs and accessors for all sections.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const defaultLLMProfile = "default"

// Config is the runtime configuration loaded from defaults, config.toml, and env vars.
type Config struct {
	// HomeDir is runtime-resolved from OPSCLAW_HOME and not read from config.
	HomeDir    string                       `mapstructure:"-"`
	LLM        map[string]LLMProviderConfig `mapstructure:"llm"`
	Database   DatabaseConfig               `mapstructure:"database"`
	Platform   PlatformConfig               `mapstructure:"platform"`
	Prometheus PrometheusConfig             `mapstructure:"prometheus"`
	Redis      RedisConfig                  `mapstructure:"redis"`
	Executor   ExecutorConfig               `mapstructure:"executor"`
	Watch      WatchConfig                  `mapstructure:"watch"`
	Log        LogConfig                    `mapstructure:"log"`
}

// LLMProviderConfig configures one LLM provider profile. StructuredOutput
// requests JSON answers against a response schema instead of tool calls.
type LLMProviderConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	BaseURL          string        `mapstructure:"base_url"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	StructuredOutput bool          `mapstructure:"structured_output"`
}

// DatabaseConfig points at the platform inventory database. An empty DSN
// disables resource lookup.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PlatformConfig is the platform REST API used for lifecycle actions and logs.
// An empty URL disables them.
type PlatformConfig struct {
	URL            string        `mapstructure:"url"`
	Token          string        `mapstructure:"token"`
	LogLines       int           `mapstructure:"log_lines"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PrometheusConfig is the query endpoint used by the metrics action.
type PrometheusConfig struct {
	Address string `mapstructure:"address"`
}

// RedisConfig backs pending confirmations. An empty Addr keeps them in-process only.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl"`
}

// ExecutorConfig is the operator scope commands run under.
type ExecutorConfig struct {
	TeamID        string `mapstructure:"team_id"`
	Operator      string `mapstructure:"operator"`
	DefaultPeriod string `mapstructure:"default_period"`
	ReadOnly      bool   `mapstructure:"read_only"`
}

// WatchConfig lists scheduled instructions and the metrics listener for `opsclaw watch`.
type WatchConfig struct {
	Listen string      `mapstructure:"listen"`
	Jobs   []JobConfig `mapstructure:"jobs"`
}

// JobConfig is one scheduled instruction.
type JobConfig struct {
	ID          string `mapstructure:"id"`
	Cron        string `mapstructure:"cron"`
	Instruction string `mapstructure:"instruction"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaultConfig = Config{
	LLM: map[string]LLMProviderConfig{
		defaultLLMProfile: {
			APIKey:         "",
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-5",
			MaxTokens:      1024,
			RequestTimeout: 30 * time.Second,
		},
	},
	Platform: PlatformConfig{
		LogLines:       200,
		RequestTimeout: 30 * time.Second,
	},
	Redis: RedisConfig{
		ConfirmationTTL: 5 * time.Minute,
	},
	Executor: ExecutorConfig{
		Operator:      "operator",
		DefaultPeriod: "7d",
	},
	Watch: WatchConfig{
		Listen: ":9464",
	},
	Log: LogConfig{
		Level: "info",
	},
}

// defaultUserConfig is the starter config written by `opsclaw config init` for first-time
// users. It contains only user-editable essentials.
var defaultUserConfig = Config{
	LLM: map[string]LLMProviderConfig{
		defaultLLMProfile: {
			APIKey:         "$ANTHROPIC_API_KEY",
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-5",
			RequestTimeout: 30 * time.Second,
		},
	},
	Database: DatabaseConfig{
		DSN: "$OPSCLAW_DATABASE_DSN",
	},
	Platform: PlatformConfig{
		URL:   "",
		Token: "$OPSCLAW_PLATFORM_TOKEN",
	},
	Executor: ExecutorConfig{
		TeamID: "",
	},
}

// Load merges hardcoded defaults and config file values in that order.
// Config is always at $OPSCLAW_HOME/config.toml.
func Load() (*Config, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}

	v, err := readConfig(home)
	if err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = home
	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by user
// config) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}
	home, err := homeDir()
	if err != nil {
		return err
	}
	v, err := readConfig(home)
	if err != nil {
		return err
	}

	// Keep duration fields human-readable in generated TOML.
	for profile := range v.GetStringMap("llm") {
		key := "llm." + profile + ".request_timeout"
		v.Set(key, v.GetDuration(key).String())
	}
	v.Set("platform.request_timeout", v.GetDuration("platform.request_timeout").String())
	v.Set("redis.confirmation_ttl", v.GetDuration("redis.confirmation_ttl").String())

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultUserConfigTOML renders the starter user config as TOML.
func DefaultUserConfigTOML() (string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	for profile, llm := range defaultUserConfig.LLM {
		v.Set("llm."+profile+".api_key", llm.APIKey)
		v.Set("llm."+profile+".provider", llm.Provider)
		v.Set("llm."+profile+".model", llm.Model)
		v.Set("llm."+profile+".request_timeout", llm.RequestTimeout.String())
	}
	v.Set("database.dsn", defaultUserConfig.Database.DSN)
	v.Set("platform.url", defaultUserConfig.Platform.URL)
	v.Set("platform.token", defaultUserConfig.Platform.Token)
	v.Set("executor.team_id", defaultUserConfig.Executor.TeamID)

	var out bytes.Buffer
	if err := v.WriteConfigTo(&out); err != nil {
		return "", fmt.Errorf("write default user config: %w", err)
	}
	return out.String(), nil
}

func readConfig(home string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(home))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	llm := defaultConfig.LLM[defaultLLMProfile]
	v.SetDefault("llm.default.api_key", llm.APIKey)
	v.SetDefault("llm.default.provider", llm.Provider)
	v.SetDefault("llm.default.model", llm.Model)
	v.SetDefault("llm.default.base_url", llm.BaseURL)
	v.SetDefault("llm.default.max_tokens", llm.MaxTokens)
	v.SetDefault("llm.default.request_timeout", llm.RequestTimeout)

	v.SetDefault("database.dsn", defaultConfig.Database.DSN)
	v.SetDefault("platform.url", defaultConfig.Platform.URL)
	v.SetDefault("platform.token", defaultConfig.Platform.Token)
	v.SetDefault("platform.log_lines", defaultConfig.Platform.LogLines)
	v.SetDefault("platform.request_timeout", defaultConfig.Platform.RequestTimeout)
	v.SetDefault("prometheus.address", defaultConfig.Prometheus.Address)

	v.SetDefault("redis.addr", defaultConfig.Redis.Addr)
	v.SetDefault("redis.db", defaultConfig.Redis.DB)
	v.SetDefault("redis.confirmation_ttl", defaultConfig.Redis.ConfirmationTTL)

	v.SetDefault("executor.team_id", defaultConfig.Executor.TeamID)
	v.SetDefault("executor.operator", defaultConfig.Executor.Operator)
	v.SetDefault("executor.default_period", defaultConfig.Executor.DefaultPeriod)
	v.SetDefault("executor.read_only", defaultConfig.Executor.ReadOnly)

	v.SetDefault("watch.listen", defaultConfig.Watch.Listen)
	v.SetDefault("log.level", defaultConfig.Log.Level)
}

// DefaultLLM returns the default LLM profile with fallback defaults.
func (c *Config) DefaultLLM() LLMProviderConfig {
	return c.LLMProfile(defaultLLMProfile)
}

// LLMProfile returns the named LLM profile, falling back to the built-in default.
func (c *Config) LLMProfile(name string) LLMProviderConfig {
	if name == "" {
		name = defaultLLMProfile
	}
	if llm, ok := c.LLM[name]; ok {
		return llm
	}
	return defaultConfig.LLM[defaultLLMProfile]
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
