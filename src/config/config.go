package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"quote-observer/src/codec"
	"quote-observer/src/helpers"
	"quote-observer/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file. The token is usually
// kept out of the config file and supplied through the environment or .env.
const (
	EnvToken   = "QUOTE_OBSERVER_TOKEN"
	EnvSymbols = "QUOTE_OBSERVER_SYMBOLS"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file, the process
// environment and an optional .env file in the working directory.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Load .env into the process environment if present
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML plus environment overrides.
func Parse(data []byte) (*Config, error) {
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: modelConfig}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Defaults returns the configuration used for every key the file omits.
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "quote-observer",
		LogLevel: "INFO",
		Stream: models.MStreamConfig{
			URL:                    "wss://ws.finnhub.io",
			ConnectTimeout:         10 * time.Second,
			IdleTimeout:            90 * time.Second,
			ClosedMarketIdleFactor: 10,
			BackoffBase:            time.Second,
			BackoffCap:             60 * time.Second,
			BackoffJitter:          0.2,
			StableAfter:            30 * time.Second,
		},
		Analysis: models.MAnalysisConfig{
			Windows:       []string{"1m", "15m"},
			CheckInterval: 5 * time.Second,
		},
		Pipeline: models.MPipelineConfig{
			QueueCapacity:  1024,
			OverflowPolicy: "drop_oldest",
			ShutdownGrace:  5 * time.Second,
		},
		Journal: models.MJournalConfig{
			Dir:             "data/journal",
			MaxSegmentBytes: 16 << 20,
			RetryAttempts:   3,
			RetryStep:       50 * time.Millisecond,
		},
		Storage: models.MStorageConfig{
			DBType:        "none",
			RetentionDays: 7,
			WriteTimeout:  2 * time.Second,
		},
		Publish: models.MPublishConfig{
			Kind:    "none",
			Topic:   "quote-snapshots",
			TTL:     time.Hour,
			Timeout: 2 * time.Second,
		},
		Server: models.MServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Grpc: models.MGrpcConfig{
			Host: "127.0.0.1",
			Port: 8091,
		},
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if token := os.Getenv(EnvToken); token != "" {
		c.Stream.Token = token
	}
	if raw := os.Getenv(EnvSymbols); raw != "" {
		var symbols []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		c.Stream.Symbols = symbols
	}
}

// -----------------------------------------------------------------------------

// Validate performs configuration validation. Every failure is a
// *helpers.ConfigurationError.
func (c *Config) Validate() error {
	if c.Name == "" {
		return helpers.NewConfigurationError("application name cannot be empty")
	}

	// Stream
	if c.Stream.URL == "" {
		return helpers.NewConfigurationError("stream url cannot be empty")
	}
	if c.Stream.Token == "" {
		return helpers.NewConfigurationError("stream token is missing (set stream.token or %s)", EnvToken)
	}
	if len(c.Stream.Symbols) == 0 {
		return helpers.NewConfigurationError("at least one symbol must be configured")
	}
	seen := make(map[string]struct{}, len(c.Stream.Symbols))
	for _, s := range c.Stream.Symbols {
		if err := codec.ValidateSymbol(s); err != nil {
			return helpers.NewConfigurationError("invalid symbol %q: %v", s, err)
		}
		if _, dup := seen[s]; dup {
			return helpers.NewConfigurationError("symbol %q listed twice", s)
		}
		seen[s] = struct{}{}
	}
	if c.Stream.ConnectTimeout <= 0 || c.Stream.IdleTimeout <= 0 {
		return helpers.NewConfigurationError("connect and idle timeouts must be greater than 0")
	}
	if c.Stream.ClosedMarketIdleFactor < 1 {
		return helpers.NewConfigurationError("closed market idle factor must be at least 1")
	}
	if c.Stream.BackoffBase <= 0 || c.Stream.BackoffCap < c.Stream.BackoffBase {
		return helpers.NewConfigurationError("backoff base must be > 0 and not above the cap")
	}
	if c.Stream.BackoffJitter < 0 || c.Stream.BackoffJitter >= 1 {
		return helpers.NewConfigurationError("backoff jitter must be in [0, 1)")
	}
	for _, p := range c.Network.Proxies {
		if !helpers.ValidateProxy(p) {
			return helpers.NewConfigurationError("invalid proxy %q", p)
		}
	}

	// Analysis windows
	if len(c.Analysis.Windows) == 0 {
		return helpers.NewConfigurationError("at least one analysis window must be configured")
	}
	for i, window := range c.Analysis.Windows {
		d, err := time.ParseDuration(window)
		if err != nil || d < time.Second {
			return helpers.NewConfigurationError("analysis window %d (%q) must be a duration of at least 1s", i, window)
		}
	}
	if c.Analysis.CheckInterval <= 0 {
		return helpers.NewConfigurationError("analysis check interval must be greater than 0")
	}

	// Pipeline
	if c.Pipeline.QueueCapacity <= 0 {
		return helpers.NewConfigurationError("queue capacity must be greater than 0")
	}
	switch c.Pipeline.OverflowPolicy {
	case "drop_oldest", "block":
	default:
		return helpers.NewConfigurationError("unknown overflow policy %q", c.Pipeline.OverflowPolicy)
	}
	if c.Pipeline.ShutdownGrace <= 0 {
		return helpers.NewConfigurationError("shutdown grace must be greater than 0")
	}

	// Journal
	if c.Journal.Dir == "" {
		return helpers.NewConfigurationError("journal dir cannot be empty")
	}
	if c.Journal.MaxSegmentBytes < 1024 {
		return helpers.NewConfigurationError("journal max segment bytes must be at least 1024")
	}
	if c.Journal.RetryAttempts < 1 {
		return helpers.NewConfigurationError("journal retry attempts must be at least 1")
	}

	// Storage mirror
	switch c.Storage.DBType {
	case "none", "":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return helpers.NewConfigurationError("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return helpers.NewConfigurationError("connection string cannot be empty for postgres")
		}
	default:
		return helpers.NewConfigurationError("unknown database type %q", c.Storage.DBType)
	}

	// Publisher
	switch c.Publish.Kind {
	case "none", "":
	case "redis":
		if c.Publish.RedisAddr == "" {
			return helpers.NewConfigurationError("redis address cannot be empty")
		}
	case "kafka":
		if len(c.Publish.Brokers) == 0 || c.Publish.Topic == "" {
			return helpers.NewConfigurationError("kafka brokers and topic are required")
		}
	default:
		return helpers.NewConfigurationError("unknown publisher kind %q", c.Publish.Kind)
	}

	// Status servers
	if c.Server.Enabled && (c.Server.Port <= 1024 || c.Server.Port > 65535) {
		return helpers.NewConfigurationError("invalid server port number: %d (must be between 1025 and 65535)", c.Server.Port)
	}
	if c.Grpc.Enabled && (c.Grpc.Port <= 1024 || c.Grpc.Port > 65535) {
		return helpers.NewConfigurationError("invalid grpc port number: %d (must be between 1025 and 65535)", c.Grpc.Port)
	}

	return nil
}

// -----------------------------------------------------------------------------

// WindowDurations returns the parsed analysis windows keyed by their name.
func (c *Config) WindowDurations() map[string]time.Duration {
	windows := make(map[string]time.Duration, len(c.Analysis.Windows))
	for _, w := range c.Analysis.Windows {
		if d, err := time.ParseDuration(w); err == nil {
			windows[w] = d
		}
	}
	return windows
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
// The token is never written back.
func (c *Config) Save(configPath string) error {
	copied := *c.MConfig
	copied.Stream.Token = ""

	data, err := yaml.Marshal(&copied)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
