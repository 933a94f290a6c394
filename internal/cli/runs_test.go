// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"github.com/stretchr/testify/assert"
)

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	printRuns(&buf, nil)
	assert.Contains(t, buf.String(), "No runs found.")

	buf.Reset()
	printRuns(&buf, []*models.PipelineRun{{
		ID:          "3f2a9c1e-0000-0000-0000-000000000000",
		Variant:     models.VariantCouncil,
		Status:      models.RunStatusCompleted,
		Percentage:  100,
		Description: "finanças pessoais",
		CreatedAt:   time.Now(),
	}})
	s := buf.String()
	assert.Contains(t, s, "3f2a9c1e-0000-0000-0000-000000000000")
	assert.Contains(t, s, "council")
	assert.Contains(t, s, "100%")
}

func TestPrintRun(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	completed := started.Add(42 * time.Second)
	var buf bytes.Buffer
	printRun(&buf, &models.PipelineRun{
		ID:           "r-1",
		Variant:      models.VariantProduction,
		Status:       models.RunStatusFailed,
		Stage:        "images",
		Percentage:   70,
		StartedAt:    &started,
		CompletedAt:  &completed,
		ErrorMessage: "Limite de requisições atingido",
	})

	s := buf.String()
	assert.Contains(t, s, "images (70%)")
	assert.Contains(t, s, "Duration:    42s")
	assert.Contains(t, s, "Limite de requisições atingido")
}
