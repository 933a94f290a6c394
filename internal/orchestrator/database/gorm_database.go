// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetDatabaseLogger().With().Str("component", "gorm").Logger()
		log = &l
	})
	return log
}

// ErrNotFound is returned by Delete operations when no row matched.
var ErrNotFound = errors.New("record not found")

// GormDB wraps the GORM database connection
type GormDB struct {
	db *gorm.DB
}

// NewGormDB creates a new GORM database connection
func NewGormDB(cfg *config.DatabaseConfig) (*GormDB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	getLog().Debug().Str("driver", cfg.Driver).Msg("Database connection opened")
	return &GormDB{db: db}, nil
}

// tables lists every model managed by AutoMigrate, with the columns
// ValidateSchema requires.
var tables = []struct {
	model   any
	name    string
	columns []string
}{
	{&models.LandingPage{}, "landing_pages", []string{"id", "title", "description", "model", "sections", "run_id", "created_at"}},
	{&models.OrderBumpRow{}, "order_bumps", []string{"id", "name", "description", "price", "category", "run_id", "created_at"}},
	{&models.ThemeRow{}, "themes", []string{"id", "name", "tokens", "run_id", "created_at"}},
	{&models.PipelineRun{}, "pipeline_runs", []string{
		"id", "variant", "status", "description", "model", "stage", "percentage",
		"output", "error_message", "created_at", "started_at", "completed_at",
	}},
}

// AutoMigrate runs database migrations
func (db *GormDB) AutoMigrate() error {
	for _, t := range tables {
		if err := db.db.AutoMigrate(t.model); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", t.name, err)
		}
	}
	return nil
}

// ValidateSchema checks if GORM models match the database schema
func (db *GormDB) ValidateSchema() error {
	var missingTables []string
	var missingColumns []string

	m := db.db.Migrator()
	for _, t := range tables {
		if !m.HasTable(t.model) {
			missingTables = append(missingTables, t.name)
			continue
		}
		for _, col := range t.columns {
			if !m.HasColumn(t.model, col) {
				missingColumns = append(missingColumns, fmt.Sprintf("%s.%s", t.name, col))
			}
		}
	}

	if len(missingTables) > 0 {
		return fmt.Errorf("missing tables: %v\n\n💡 Run 'go run ./cmd/migrate' to create the required tables", missingTables)
	}
	if len(missingColumns) > 0 {
		return fmt.Errorf("missing columns: %v\n\n💡 Run 'go run ./cmd/migrate' to add the required columns", missingColumns)
	}
	return nil
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// deleteByID removes the row of model with the given id.
func (db *GormDB) deleteByID(ctx context.Context, model any, id string) error {
	res := db.db.WithContext(ctx).Delete(model, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// first loads the row with the given id into dst. A missing row yields
// (false, nil).
func (db *GormDB) first(ctx context.Context, dst any, id string) (bool, error) {
	err := db.db.WithContext(ctx).First(dst, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ============================================================================
// Landing page Operations
// ============================================================================

// CreateLandingPage inserts a landing page
func (db *GormDB) CreateLandingPage(ctx context.Context, page *models.LandingPage) error {
	return db.db.WithContext(ctx).Create(page).Error
}

// GetLandingPage retrieves a landing page by ID, or nil when absent
func (db *GormDB) GetLandingPage(ctx context.Context, id string) (*models.LandingPage, error) {
	var page models.LandingPage
	ok, err := db.first(ctx, &page, id)
	if err != nil || !ok {
		return nil, err
	}
	return &page, nil
}

// ListLandingPages returns landing pages newest first
func (db *GormDB) ListLandingPages(ctx context.Context) ([]*models.LandingPage, error) {
	var pages []*models.LandingPage
	err := db.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&pages).Error
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// DeleteLandingPage deletes a landing page
func (db *GormDB) DeleteLandingPage(ctx context.Context, id string) error {
	return db.deleteByID(ctx, &models.LandingPage{}, id)
}

// ============================================================================
// Order bump Operations
// ============================================================================

// CreateOrderBumps inserts order bumps in one statement
func (db *GormDB) CreateOrderBumps(ctx context.Context, rows []*models.OrderBumpRow) error {
	if len(rows) == 0 {
		return nil
	}
	return db.db.WithContext(ctx).Create(&rows).Error
}

// GetOrderBump retrieves an order bump by ID, or nil when absent
func (db *GormDB) GetOrderBump(ctx context.Context, id string) (*models.OrderBumpRow, error) {
	var row models.OrderBumpRow
	ok, err := db.first(ctx, &row, id)
	if err != nil || !ok {
		return nil, err
	}
	return &row, nil
}

// ListOrderBumps returns order bumps newest first. An empty category
// returns every category.
func (db *GormDB) ListOrderBumps(ctx context.Context, category models.OrderBumpCategory) ([]*models.OrderBumpRow, error) {
	var rows []*models.OrderBumpRow
	query := db.db.WithContext(ctx).Order("created_at DESC")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteOrderBump deletes an order bump
func (db *GormDB) DeleteOrderBump(ctx context.Context, id string) error {
	return db.deleteByID(ctx, &models.OrderBumpRow{}, id)
}

// ============================================================================
// Theme Operations
// ============================================================================

// CreateTheme inserts a theme
func (db *GormDB) CreateTheme(ctx context.Context, theme *models.ThemeRow) error {
	return db.db.WithContext(ctx).Create(theme).Error
}

// GetTheme retrieves a theme by ID, or nil when absent
func (db *GormDB) GetTheme(ctx context.Context, id string) (*models.ThemeRow, error) {
	var row models.ThemeRow
	ok, err := db.first(ctx, &row, id)
	if err != nil || !ok {
		return nil, err
	}
	return &row, nil
}

// ListThemes returns themes newest first
func (db *GormDB) ListThemes(ctx context.Context) ([]*models.ThemeRow, error) {
	var rows []*models.ThemeRow
	err := db.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteTheme deletes a theme
func (db *GormDB) DeleteTheme(ctx context.Context, id string) error {
	return db.deleteByID(ctx, &models.ThemeRow{}, id)
}

// ============================================================================
// PipelineRun Operations
// ============================================================================

// SavePipelineRun inserts the run or overwrites every column of an
// existing row with the same ID.
func (db *GormDB) SavePipelineRun(ctx context.Context, run *models.PipelineRun) error {
	return db.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(run).Error
}

// GetPipelineRun retrieves a pipeline run by ID, or nil when absent
func (db *GormDB) GetPipelineRun(ctx context.Context, runID string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	ok, err := db.first(ctx, &run, runID)
	if err != nil || !ok {
		return nil, err
	}
	return &run, nil
}

// ListPipelineRuns returns runs newest first. If limit is 0, returns all runs.
func (db *GormDB) ListPipelineRuns(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	var runs []*models.PipelineRun
	query := db.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// UpdatePipelineRunProgress records the latest stage and percentage of a run
func (db *GormDB) UpdatePipelineRunProgress(ctx context.Context, runID, stage string, percentage int) error {
	return db.db.WithContext(ctx).
		Model(&models.PipelineRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"stage":      stage,
			"percentage": percentage,
		}).Error
}

// MarkInterruptedRuns fails every run left pending or running by a previous
// process. It returns the number of rows changed.
func (db *GormDB) MarkInterruptedRuns(ctx context.Context) (int64, error) {
	res := db.db.WithContext(ctx).
		Model(&models.PipelineRun{}).
		Where("status IN ?", []models.RunStatus{models.RunStatusPending, models.RunStatusRunning}).
		Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"error_message": "interrupted by restart",
		})
	return res.RowsAffected, res.Error
}
