// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Retry     RetryPolicy     `mapstructure:"retry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DatabaseConfig holds all database configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeLevel      bool   `mapstructure:"include_level"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"` // Level at which to include stack trace
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`  // Reference images arrive inline, so this is larger than usual
}

// ProvidersConfig groups the hosted model providers.
type ProvidersConfig struct {
	Gemini     ProviderConfig `mapstructure:"gemini"`
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Perplexity ProviderConfig `mapstructure:"perplexity"`
	Flux       ProviderConfig `mapstructure:"flux"`
}

// ProviderConfig holds the endpoint and credentials of one provider.
type ProviderConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	ImageModel string        `mapstructure:"image_model"` // Only used by providers that also generate images
	Timeout    time.Duration `mapstructure:"timeout"`     // Per-call timeout
}

// RetryPolicy defines retry behavior for idempotent provider calls.
type RetryPolicy struct {
	InitialInterval    time.Duration `mapstructure:"initial_interval"`
	BackoffCoefficient float64       `mapstructure:"backoff_coefficient"`
	MaximumInterval    time.Duration `mapstructure:"maximum_interval"`
	MaximumAttempts    int32         `mapstructure:"maximum_attempts"`
}

// PipelineConfig holds tuning knobs for the generation pipelines.
type PipelineConfig struct {
	ImageConcurrency int    `mapstructure:"image_concurrency"` // Max in-flight image generations per batch
	SchemaAttempts   int    `mapstructure:"schema_attempts"`   // Generations tried before a shape mismatch is fatal
	RulesPath        string `mapstructure:"rules_path"`        // Optional YAML file overriding the embedded rules
	LandingSections  int    `mapstructure:"landing_sections"`
	VariationCount   int    `mapstructure:"variation_count"`
	DefaultModel     string `mapstructure:"default_model"` // OpenRouter model used when a request names none
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/launchpad/")
		v.AddConfigPath("$HOME/.launchpad")
	}

	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// API keys usually come from the environment only, so bind them explicitly:
	// AutomaticEnv alone does not see keys absent from the config file.
	for _, key := range []string{
		"providers.gemini.api_key",
		"providers.openrouter.api_key",
		"providers.perplexity.api_key",
		"providers.flux.api_key",
		"database.password",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the default configuration. Useful for tests and for the CLI
// when no config file is present.
func Default() *AppConfig {
	cfg := defaultConfig()
	return &cfg
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Database: "launchpad.db",
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "require",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "./logs/launchpad.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: false, // Disabled by default so the CLI progress view stays clean
				},
			},
			Levels: map[string]string{
				"pipeline": "INFO",
				"provider": "INFO",
				"database": "INFO",
				"document": "INFO",
				"api":      "INFO",
				"cli":      "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:     true,
				IncludeTimestamp:  true,
				IncludeLevel:      true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			MaxBodyBytes: 20 << 20,
		},
		Providers: ProvidersConfig{
			Gemini: ProviderConfig{
				BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
				Model:      "gemini-2.5-flash",
				ImageModel: "gemini-2.5-flash-image-preview",
				Timeout:    3 * time.Minute,
			},
			OpenRouter: ProviderConfig{
				BaseURL: "https://openrouter.ai/api/v1",
				Model:   "anthropic/claude-sonnet-4",
				Timeout: 5 * time.Minute,
			},
			Perplexity: ProviderConfig{
				BaseURL: "https://api.perplexity.ai",
				Model:   "sonar-pro",
				Timeout: 2 * time.Minute,
			},
			Flux: ProviderConfig{
				BaseURL: "https://api.bfl.ai/v1",
				Model:   "flux-pro-1.1",
				Timeout: 2 * time.Minute,
			},
		},
		Retry: RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
		Pipeline: PipelineConfig{
			ImageConcurrency: 4,
			SchemaAttempts:   2,
			LandingSections:  20,
			VariationCount:   3,
			DefaultModel:     "anthropic/claude-sonnet-4",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "launchpad",
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	if c.Pipeline.RulesPath != "" {
		c.Pipeline.RulesPath = expandPath(c.Pipeline.RulesPath)
	}
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	if c.Database.Driver == "" {
		return errors.New("database driver is required")
	}

	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	providers := map[string]ProviderConfig{
		"gemini":     c.Providers.Gemini,
		"openrouter": c.Providers.OpenRouter,
		"perplexity": c.Providers.Perplexity,
		"flux":       c.Providers.Flux,
	}
	for name, p := range providers {
		if p.BaseURL == "" {
			return fmt.Errorf("providers.%s.base_url is required", name)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("providers.%s.timeout must be positive, got: %s", name, p.Timeout)
		}
	}

	if c.Retry.MaximumAttempts < 1 {
		return fmt.Errorf("retry.maximum_attempts must be at least 1, got: %d", c.Retry.MaximumAttempts)
	}
	if c.Pipeline.ImageConcurrency < 1 {
		return fmt.Errorf("pipeline.image_concurrency must be at least 1, got: %d", c.Pipeline.ImageConcurrency)
	}
	if c.Pipeline.SchemaAttempts < 1 {
		return fmt.Errorf("pipeline.schema_attempts must be at least 1, got: %d", c.Pipeline.SchemaAttempts)
	}
	if c.Pipeline.LandingSections < 1 || c.Pipeline.VariationCount < 1 {
		return errors.New("pipeline.landing_sections and pipeline.variation_count must be positive")
	}

	return nil
}

// GetDSN returns the database connection string.
func (dc *DatabaseConfig) GetDSN() string {
	switch dc.Driver {
	case "sqlite":
		dsn := dc.Database
		if dsn == ":memory:" {
			dsn = "file::memory:?cache=shared"
		}
		return dsn
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, dc.SSLMode)
	default:
		return dc.Database
	}
}
