package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/becomeliminal/bridge-go-sdk/core"
)

// Config is the SDK configuration loaded from YAML and ENV.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig describes how to reach the structured-AI API.
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	BearerToken  string        `mapstructure:"bearer_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Transport    string        `mapstructure:"transport"` // http, websocket or grpc
	WebSocketURL string        `mapstructure:"websocket_url"`
	GRPCTarget   string        `mapstructure:"grpc_target"`
	GRPCService  string        `mapstructure:"grpc_service"`
}

// BridgeConfig holds the retry orchestrator settings.
type BridgeConfig struct {
	MaxRetries         int           `mapstructure:"max_retries"`
	AutoRetry          bool          `mapstructure:"auto_retry"`
	SignatureAlgorithm string        `mapstructure:"signature_algorithm"`
	SchemaCacheTTL     time.Duration `mapstructure:"schema_cache_ttl"` // 0 disables the cache
	Concurrency        int           `mapstructure:"concurrency"`
}

// MemoryConfig holds the rolling memory settings.
type MemoryConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Owner           string `mapstructure:"owner"`
	Backend         string `mapstructure:"backend"` // file, sqlite or none
	Dir             string `mapstructure:"dir"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	IndexPath       string `mapstructure:"index_path"` // chromem recall index; empty disables recall
	MaxInteractions int    `mapstructure:"max_interactions"`
	MaxSummaries    int    `mapstructure:"max_summaries"`
	Summarizer      string `mapstructure:"summarizer"` // none or anthropic
	AnthropicModel  string `mapstructure:"anthropic_model"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// Load reads configuration from path, or searches for futureself.yaml in the
// working directory and ./configs when path is empty. A missing file in search
// mode is not an error: defaults and environment still apply.
// Environment variables override file values (prefix FUTURESELF_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FUTURESELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("futureself")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults populates defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.bearer_token", "")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("api.transport", "http")
	v.SetDefault("api.websocket_url", "")
	v.SetDefault("api.grpc_target", "")
	v.SetDefault("api.grpc_service", "")

	v.SetDefault("bridge.max_retries", 3)
	v.SetDefault("bridge.auto_retry", true)
	v.SetDefault("bridge.signature_algorithm", "")
	v.SetDefault("bridge.schema_cache_ttl", time.Duration(0))
	v.SetDefault("bridge.concurrency", 4)

	v.SetDefault("memory.enabled", false)
	v.SetDefault("memory.owner", "default")
	v.SetDefault("memory.backend", "file")
	v.SetDefault("memory.dir", ".futureself/memory")
	v.SetDefault("memory.sqlite_path", ".futureself/memory.db")
	v.SetDefault("memory.index_path", "")
	v.SetDefault("memory.max_interactions", 21)
	v.SetDefault("memory.max_summaries", 3)
	v.SetDefault("memory.summarizer", "none")
	v.SetDefault("memory.anthropic_model", "claude-sonnet-4-20250514")
	v.SetDefault("memory.anthropic_api_key", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	switch c.API.Transport {
	case "http":
		// BaseURL is checked when a transport is built so that commands that
		// never touch the API (memory show) work without one.
	case "websocket":
		if c.API.WebSocketURL == "" {
			return invalid("api.websocket_url is required for the websocket transport")
		}
	case "grpc":
		if c.API.GRPCTarget == "" {
			return invalid("api.grpc_target is required for the grpc transport")
		}
	default:
		return invalid(fmt.Sprintf("unknown api.transport %q", c.API.Transport))
	}

	if c.Bridge.MaxRetries < 0 {
		return invalid("bridge.max_retries must be >= 0")
	}
	if c.Bridge.Concurrency < 1 {
		return invalid("bridge.concurrency must be >= 1")
	}
	if _, err := core.ParseSignatureAlgorithm(c.Bridge.SignatureAlgorithm); err != nil {
		return fmt.Errorf("bridge.signature_algorithm: %w", err)
	}

	if c.Memory.MaxInteractions < 0 || c.Memory.MaxSummaries < 0 {
		return invalid("memory bounds must be >= 0")
	}
	switch c.Memory.Backend {
	case "file", "sqlite", "none":
	default:
		return invalid(fmt.Sprintf("unknown memory.backend %q", c.Memory.Backend))
	}
	switch c.Memory.Summarizer {
	case "none", "anthropic":
	default:
		return invalid(fmt.Sprintf("unknown memory.summarizer %q", c.Memory.Summarizer))
	}
	if c.Memory.Enabled && strings.TrimSpace(c.Memory.Owner) == "" {
		return invalid("memory.owner is required when memory is enabled")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidConfig, msg)
}
