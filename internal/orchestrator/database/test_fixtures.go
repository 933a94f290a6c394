// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"path/filepath"
	"testing"

	"github.com/noldarim/launchpad/internal/config"

	"github.com/stretchr/testify/require"
)

// DatabaseFixture represents a database setup with cleanup
type DatabaseFixture struct {
	DB      *GormDB
	Config  *config.DatabaseConfig
	Cleanup func()
}

// UseFreshDatabase creates a SQLite database in the test's temp dir with
// AutoMigrate applied. Each call gets its own file, so tests never share rows.
func UseFreshDatabase(t *testing.T) *DatabaseFixture {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "launchpad.db"),
	}

	db, err := NewGormDB(cfg)
	require.NoError(t, err, "Failed to create test database")

	err = db.AutoMigrate()
	require.NoError(t, err, "Failed to run migrations on test database")

	cleanup := func() {
		db.Close()
	}
	t.Cleanup(cleanup)

	return &DatabaseFixture{
		DB:      db,
		Config:  cfg,
		Cleanup: cleanup,
	}
}

// WithTestConfig returns an app config pointing at a fresh SQLite file.
func WithTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Database = config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "launchpad.db"),
	}
	return cfg
}
