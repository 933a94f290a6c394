// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/database"
	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	dataLog     *zerolog.Logger
	dataLogOnce sync.Once
)

func getDataLog() *zerolog.Logger {
	dataLogOnce.Do(func() {
		l := logger.GetDatabaseLogger().With().Str("component", "service").Logger()
		dataLog = &l
	})
	return dataLog
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DataService handles loading and saving generated artifacts and runs
type DataService struct {
	db *database.GormDB
}

// NewDataService creates a new data service
func NewDataService(cfg *config.AppConfig) (*DataService, error) {
	getDataLog().Debug().Msg("Initializing data service")

	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		getDataLog().Error().Err(err).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	// Validate schema to ensure models match database
	if err := db.ValidateSchema(); err != nil {
		db.Close()
		getDataLog().Error().Err(err).Msg("Database schema validation failed")
		return nil, fmt.Errorf("database schema validation failed: %w", err)
	}

	getDataLog().Info().Msg("Data service initialized successfully")
	return &DataService{db: db}, nil
}

// NewDataServiceWithDB wraps an already migrated database.
func NewDataServiceWithDB(db *database.GormDB) *DataService {
	return &DataService{db: db}
}

func newID() string {
	return uuid.NewString()
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// mapDelete translates the database's not-found error.
func mapDelete(kind, id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return notFound(kind, id)
	}
	return err
}

// ---------------------------------------------------------------------------
// Landing pages
// ---------------------------------------------------------------------------

// SaveLandingPage stores a landing page or variation set.
func (ds *DataService) SaveLandingPage(ctx context.Context, page *models.LandingPage) (*models.LandingPage, error) {
	if strings.TrimSpace(page.Title) == "" {
		return nil, fmt.Errorf("%w: landing page title cannot be empty", ErrInvalidRequest)
	}
	if page.ID == "" {
		page.ID = newID()
	}
	if err := ds.db.CreateLandingPage(ctx, page); err != nil {
		return nil, fmt.Errorf("failed to save landing page: %w", err)
	}
	getDataLog().Debug().Str("landing_page_id", page.ID).Int("sections", len(page.Sections)).Msg("Landing page saved")
	return page, nil
}

// GetLandingPage returns a landing page by ID.
func (ds *DataService) GetLandingPage(ctx context.Context, id string) (*models.LandingPage, error) {
	page, err := ds.db.GetLandingPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, notFound("landing page", id)
	}
	return page, nil
}

// ListLandingPages returns landing pages newest first.
func (ds *DataService) ListLandingPages(ctx context.Context) ([]*models.LandingPage, error) {
	return ds.db.ListLandingPages(ctx)
}

// DeleteLandingPage deletes a landing page.
func (ds *DataService) DeleteLandingPage(ctx context.Context, id string) error {
	return mapDelete("landing page", id, ds.db.DeleteLandingPage(ctx, id))
}

// ---------------------------------------------------------------------------
// Order bumps
// ---------------------------------------------------------------------------

// SaveOrderBumps validates and stores bumps, all or nothing.
func (ds *DataService) SaveOrderBumps(ctx context.Context, bumps []models.OrderBump, runID string) ([]*models.OrderBumpRow, error) {
	for _, b := range bumps {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	rows := lo.Map(bumps, func(b models.OrderBump, _ int) *models.OrderBumpRow {
		return &models.OrderBumpRow{
			ID:          newID(),
			Name:        b.Name,
			Description: b.Description,
			Price:       b.Price,
			Category:    b.Category,
			RunID:       runID,
		}
	})
	if err := ds.db.CreateOrderBumps(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to save order bumps: %w", err)
	}
	return rows, nil
}

// ListOrderBumps returns saved bumps, optionally filtered by category.
func (ds *DataService) ListOrderBumps(ctx context.Context, category models.OrderBumpCategory) ([]*models.OrderBumpRow, error) {
	return ds.db.ListOrderBumps(ctx, category)
}

// DeleteOrderBump deletes an order bump.
func (ds *DataService) DeleteOrderBump(ctx context.Context, id string) error {
	return mapDelete("order bump", id, ds.db.DeleteOrderBump(ctx, id))
}

// ---------------------------------------------------------------------------
// Themes
// ---------------------------------------------------------------------------

// SaveTheme validates and stores a theme. The preview image is not stored.
func (ds *DataService) SaveTheme(ctx context.Context, theme models.Theme, runID string) (*models.ThemeRow, error) {
	if strings.TrimSpace(theme.Name) == "" {
		return nil, fmt.Errorf("%w: theme name cannot be empty", ErrInvalidRequest)
	}
	for _, tok := range theme.Tokens {
		if err := tok.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	row := &models.ThemeRow{
		ID:     newID(),
		Name:   theme.Name,
		Tokens: models.TokenList(theme.Tokens),
		RunID:  runID,
	}
	if err := ds.db.CreateTheme(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save theme: %w", err)
	}
	return row, nil
}

// GetTheme returns a theme by ID.
func (ds *DataService) GetTheme(ctx context.Context, id string) (*models.ThemeRow, error) {
	row, err := ds.db.GetTheme(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound("theme", id)
	}
	return row, nil
}

// ListThemes returns themes newest first.
func (ds *DataService) ListThemes(ctx context.Context) ([]*models.ThemeRow, error) {
	return ds.db.ListThemes(ctx)
}

// DeleteTheme deletes a theme.
func (ds *DataService) DeleteTheme(ctx context.Context, id string) error {
	return mapDelete("theme", id, ds.db.DeleteTheme(ctx, id))
}

// ---------------------------------------------------------------------------
// Pipeline runs
// ---------------------------------------------------------------------------

// SaveRun inserts or overwrites a run.
func (ds *DataService) SaveRun(ctx context.Context, run *models.PipelineRun) error {
	return ds.db.SavePipelineRun(ctx, run)
}

// GetRun returns a run by ID.
func (ds *DataService) GetRun(ctx context.Context, runID string) (*models.PipelineRun, error) {
	run, err := ds.db.GetPipelineRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, notFound("run", runID)
	}
	return run, nil
}

// ListRuns returns runs newest first; limit 0 means all.
func (ds *DataService) ListRuns(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	return ds.db.ListPipelineRuns(ctx, limit)
}

// UpdateRunProgress records the last stage a run reached.
func (ds *DataService) UpdateRunProgress(ctx context.Context, runID, stage string, percentage int) error {
	return ds.db.UpdatePipelineRunProgress(ctx, runID, stage, percentage)
}

// RecoverInterruptedRuns fails runs a previous process left unfinished.
func (ds *DataService) RecoverInterruptedRuns(ctx context.Context) error {
	n, err := ds.db.MarkInterruptedRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted runs: %w", err)
	}
	if n > 0 {
		getDataLog().Warn().Int64("runs", n).Msg("Marked interrupted runs as failed")
	}
	return nil
}

// Close closes the data service and its database connection
func (ds *DataService) Close() error {
	if ds.db != nil {
		return ds.db.Close()
	}
	return nil
}
