// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Pipeline.LandingSections)
	assert.Equal(t, 3, cfg.Pipeline.VariationCount)
	assert.Equal(t, int32(3), cfg.Retry.MaximumAttempts)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Providers.OpenRouter.BaseURL)
}

func TestNewConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  allowed_origins: "https://a.example,https://b.example"
providers:
  gemini:
    timeout: 45s
pipeline:
  image_concurrency: 2
database:
  driver: postgres
  host: db.supabase.co
  username: postgres
  database: postgres
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.Providers.Gemini.Timeout)
	assert.Equal(t, 2, cfg.Pipeline.ImageConcurrency)
	assert.Contains(t, cfg.Database.GetDSN(), "host=db.supabase.co")
	assert.Contains(t, cfg.Database.GetDSN(), "sslmode=require")
}

func TestNewConfig_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("LAUNCHPAD_PROVIDERS_OPENROUTER_API_KEY", "sk-or-test")

	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-or-test", cfg.Providers.OpenRouter.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"defaults are valid", func(c *AppConfig) {}, ""},
		{"missing driver", func(c *AppConfig) { c.Database.Driver = "" }, "database driver is required"},
		{"bad log level", func(c *AppConfig) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero timeout", func(c *AppConfig) { c.Providers.Flux.Timeout = 0 }, "providers.flux.timeout"},
		{"zero concurrency", func(c *AppConfig) { c.Pipeline.ImageConcurrency = 0 }, "image_concurrency"},
		{"zero schema attempts", func(c *AppConfig) { c.Pipeline.SchemaAttempts = 0 }, "schema_attempts"},
		{"zero retry attempts", func(c *AppConfig) { c.Retry.MaximumAttempts = 0 }, "maximum_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSN_SQLiteMemory(t *testing.T) {
	dc := DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	assert.Equal(t, "file::memory:?cache=shared", dc.GetDSN())
}
