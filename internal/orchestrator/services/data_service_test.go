// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/database"
	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDataServiceCRUD tests the artifact operations of the data service
func TestDataServiceCRUD(t *testing.T) {
	dsFixture := WithDataService(t)
	defer dsFixture.Cleanup()
	ds := dsFixture.Service

	t.Run("LandingPages", func(t *testing.T) {
		ctx := context.Background()

		_, err := ds.SaveLandingPage(ctx, &models.LandingPage{Title: "  "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "title cannot be empty")

		page, err := ds.SaveLandingPage(ctx, &models.LandingPage{
			Title:    "Curso de violão",
			Sections: models.SectionList{{ID: "hero", Title: "Hero"}},
			RunID:    "run-1",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, page.ID, "an ID is generated")

		got, err := ds.GetLandingPage(ctx, page.ID)
		require.NoError(t, err)
		assert.Equal(t, "run-1", got.RunID)

		list, err := ds.ListLandingPages(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, ds.DeleteLandingPage(ctx, page.ID))
		_, err = ds.GetLandingPage(ctx, page.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, ds.DeleteLandingPage(ctx, page.ID), ErrNotFound)
	})

	t.Run("OrderBumps", func(t *testing.T) {
		ctx := context.Background()

		_, err := ds.SaveOrderBumps(ctx, []models.OrderBump{
			{Name: "Checklist", Price: 19.9, Category: models.BumpTemplate},
			{Name: "", Price: 10, Category: models.BumpEbook},
		}, "run-2")
		require.ErrorIs(t, err, ErrInvalidRequest, "one invalid bump rejects the batch")

		rows, err := ds.SaveOrderBumps(ctx, []models.OrderBump{
			{Name: "Checklist", Price: 19.9, Category: models.BumpTemplate},
			{Name: "Mentoria em grupo", Price: 97, Category: models.BumpMentoring},
		}, "run-2")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.NotEqual(t, rows[0].ID, rows[1].ID)

		all, err := ds.ListOrderBumps(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mentoring, err := ds.ListOrderBumps(ctx, models.BumpMentoring)
		require.NoError(t, err)
		require.Len(t, mentoring, 1)
		assert.Equal(t, "run-2", mentoring[0].RunID)

		require.NoError(t, ds.DeleteOrderBump(ctx, rows[0].ID))
		assert.ErrorIs(t, ds.DeleteOrderBump(ctx, rows[0].ID), ErrNotFound)
	})

	t.Run("Themes", func(t *testing.T) {
		ctx := context.Background()

		_, err := ds.SaveTheme(ctx, models.Theme{
			Name:   "Broken",
			Tokens: []models.ThemeToken{{Name: "x", Value: "1", Category: "texture"}},
		}, "")
		require.ErrorIs(t, err, ErrInvalidRequest)

		row, err := ds.SaveTheme(ctx, models.Theme{
			Name:    "Oceano",
			Tokens:  []models.ThemeToken{{Name: "primary", Value: "#0a4d68", Category: models.TokenColor}},
			Preview: &models.InlineImage{MimeType: "image/png", Data: "aGk="},
		}, "run-3")
		require.NoError(t, err)

		got, err := ds.GetTheme(ctx, row.ID)
		require.NoError(t, err)
		assert.Equal(t, "Oceano", got.Name)
		require.Len(t, got.Tokens, 1)

		require.NoError(t, ds.DeleteTheme(ctx, row.ID))
		_, err = ds.GetTheme(ctx, row.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Runs", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, ds.SaveRun(ctx, &models.PipelineRun{ID: "r-1", Variant: models.VariantResearch, Status: models.RunStatusRunning}))
		require.NoError(t, ds.UpdateRunProgress(ctx, "r-1", "research", 30))
		require.NoError(t, ds.RecoverInterruptedRuns(ctx))

		run, err := ds.GetRun(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusFailed, run.Status)
		assert.Equal(t, "research", run.Stage)

		_, err = ds.GetRun(ctx, "r-404")
		assert.ErrorIs(t, err, ErrNotFound)

		runs, err := ds.ListRuns(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

// TestSchemaValidationInDataService tests that schema validation is working
func TestSchemaValidationInDataService(t *testing.T) {
	cfg := &config.AppConfig{
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			Database: filepath.Join(t.TempDir(), "wrong_schema.db"),
		},
	}

	// Create database connection without migrations
	db, err := database.NewGormDB(&cfg.Database)
	require.NoError(t, err, "Failed to create database")
	db.Close()

	// Try to create data service - should fail schema validation
	_, err = NewDataService(cfg)
	assert.Error(t, err, "Data service should fail with invalid schema")
	assert.Contains(t, err.Error(), "Run 'go run ./cmd/migrate'", "Error should contain migration message")
}
