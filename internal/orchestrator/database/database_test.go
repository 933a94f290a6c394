// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewGormDB_UnsupportedDriver(t *testing.T) {
	_, err := NewGormDB(&config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver: mysql")
}

func TestValidateSchema(t *testing.T) {
	t.Run("migrated database passes", func(t *testing.T) {
		fixture := UseFreshDatabase(t)
		assert.NoError(t, fixture.DB.ValidateSchema())
	})

	t.Run("empty database reports missing tables", func(t *testing.T) {
		db, err := NewGormDB(&config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "empty.db")})
		require.NoError(t, err)
		defer db.Close()

		err = db.ValidateSchema()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing tables")
		assert.Contains(t, err.Error(), "pipeline_runs")
	})
}

func TestLandingPages(t *testing.T) {
	fixture := UseFreshDatabase(t)
	db := fixture.DB
	ctx := context.Background()

	older := &models.LandingPage{
		ID:        "lp-1",
		Title:     "Mentoria Fitness",
		Sections:  models.SectionList{{ID: "hero", Title: "Hero", HTML: "<section>hero</section>"}},
		CreatedAt: baseTime,
	}
	newer := &models.LandingPage{ID: "lp-2", Title: "Ebook Receitas", CreatedAt: baseTime.Add(time.Hour)}
	require.NoError(t, db.CreateLandingPage(ctx, older))
	require.NoError(t, db.CreateLandingPage(ctx, newer))

	got, err := db.GetLandingPage(ctx, "lp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Mentoria Fitness", got.Title)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "<section>hero</section>", got.Sections[0].HTML)

	empty, err := db.GetLandingPage(ctx, "lp-2")
	require.NoError(t, err)
	assert.NotNil(t, empty.Sections, "nil sections are stored as an empty list")
	assert.Empty(t, empty.Sections)

	pages, err := db.ListLandingPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "lp-2", pages[0].ID)
	assert.Equal(t, "lp-1", pages[1].ID)

	require.NoError(t, db.DeleteLandingPage(ctx, "lp-1"))
	assert.ErrorIs(t, db.DeleteLandingPage(ctx, "lp-1"), ErrNotFound)

	missing, err := db.GetLandingPage(ctx, "lp-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderBumps(t *testing.T) {
	fixture := UseFreshDatabase(t)
	db := fixture.DB
	ctx := context.Background()

	rows := []*models.OrderBumpRow{
		{ID: "ob-1", Name: "Checklist", Price: 19.9, Category: models.BumpTemplate, CreatedAt: baseTime},
		{ID: "ob-2", Name: "Aula bônus", Price: 47, Category: models.BumpCourse, CreatedAt: baseTime.Add(time.Minute)},
		{ID: "ob-3", Name: "Planilha", Price: 9.9, Category: models.BumpTemplate, CreatedAt: baseTime.Add(2 * time.Minute)},
	}
	require.NoError(t, db.CreateOrderBumps(ctx, rows))
	require.NoError(t, db.CreateOrderBumps(ctx, nil))

	all, err := db.ListOrderBumps(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	templates, err := db.ListOrderBumps(ctx, models.BumpTemplate)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "ob-3", templates[0].ID)

	got, err := db.GetOrderBump(ctx, "ob-2")
	require.NoError(t, err)
	assert.Equal(t, 47.0, got.Price)
	assert.Equal(t, models.BumpCourse, got.OrderBump().Category)

	require.NoError(t, db.DeleteOrderBump(ctx, "ob-2"))
	assert.ErrorIs(t, db.DeleteOrderBump(ctx, "nope"), ErrNotFound)
}

func TestOrderBumps_RejectsInvalidRow(t *testing.T) {
	fixture := UseFreshDatabase(t)
	ctx := context.Background()

	err := fixture.DB.CreateOrderBumps(ctx, []*models.OrderBumpRow{
		{ID: "bad", Name: "Sem categoria", Price: 10, Category: "podcast"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	all, err := fixture.DB.ListOrderBumps(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestThemes(t *testing.T) {
	fixture := UseFreshDatabase(t)
	db := fixture.DB
	ctx := context.Background()

	theme := &models.ThemeRow{
		ID:   "th-1",
		Name: "Aurora",
		Tokens: models.TokenList{
			{Name: "primary", Value: "#123456", Category: models.TokenColor},
			{Name: "radius-md", Value: "8px", Category: models.TokenRadius},
		},
	}
	require.NoError(t, db.CreateTheme(ctx, theme))
	assert.False(t, theme.CreatedAt.IsZero())

	got, err := db.GetTheme(ctx, "th-1")
	require.NoError(t, err)
	require.Len(t, got.Tokens, 2)
	assert.Equal(t, "#123456", got.Tokens[0].Value)

	list, err := db.ListThemes(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, db.DeleteTheme(ctx, "th-1"))
	got, err = db.GetTheme(ctx, "th-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPipelineRuns(t *testing.T) {
	fixture := UseFreshDatabase(t)
	db := fixture.DB
	ctx := context.Background()

	run := &models.PipelineRun{
		ID:          "run-1",
		Variant:     models.VariantLanding,
		Description: "Mentoria fitness",
		CreatedAt:   baseTime,
	}
	require.NoError(t, db.SavePipelineRun(ctx, run))
	assert.Equal(t, models.RunStatusPending, run.Status)

	require.NoError(t, db.UpdatePipelineRunProgress(ctx, "run-1", "sections", 42))
	got, err := db.GetPipelineRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "sections", got.Stage)
	assert.Equal(t, 42, got.Percentage)
	assert.Nil(t, got.Output.PipelineOutput)

	// Saving again overwrites the row.
	out := models.NewOutput(models.VariantLanding, "anthropic/claude-sonnet-4")
	out.HTML = "<!DOCTYPE html><html></html>"
	out.Warn("review skipped")
	done := baseTime.Add(time.Minute)
	run.Status = models.RunStatusCompleted
	run.Stage = "done"
	run.Percentage = 100
	run.Output = models.OutputJSON{PipelineOutput: out.Freeze()}
	run.CompletedAt = &done
	require.NoError(t, db.SavePipelineRun(ctx, run))

	got, err = db.GetPipelineRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Percentage)
	require.NotNil(t, got.Output.PipelineOutput)
	assert.Equal(t, out.HTML, got.Output.HTML)
	assert.Equal(t, []string{"review skipped"}, got.Output.Meta.Warnings)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.True(t, baseTime.Equal(got.CreatedAt))

	require.NoError(t, db.SavePipelineRun(ctx, &models.PipelineRun{
		ID: "run-2", Variant: models.VariantCouncil, CreatedAt: baseTime.Add(time.Hour),
	}))
	runs, err := db.ListPipelineRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)

	limited, err := db.ListPipelineRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	missing, err := db.GetPipelineRun(ctx, "run-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarkInterruptedRuns(t *testing.T) {
	fixture := UseFreshDatabase(t)
	db := fixture.DB
	ctx := context.Background()

	for id, status := range map[string]models.RunStatus{
		"a": models.RunStatusPending,
		"b": models.RunStatusRunning,
		"c": models.RunStatusCompleted,
		"d": models.RunStatusCancelled,
	} {
		require.NoError(t, db.SavePipelineRun(ctx, &models.PipelineRun{ID: id, Variant: models.VariantPlan, Status: status}))
	}

	n, err := db.MarkInterruptedRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	b, err := db.GetPipelineRun(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, b.Status)
	assert.Equal(t, "interrupted by restart", b.ErrorMessage)

	c, err := db.GetPipelineRun(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, c.Status)
}
