// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseRunArgs(t *testing.T) {
	opts, err := parseRunArgs([]string{"landing", "--model", "claude-x", "--image", "a.png", "--image", "b.png", "Curso", "de", "violão"})
	require.NoError(t, err)
	assert.Equal(t, "landing", opts.variant)
	assert.Equal(t, "claude-x", opts.model)
	assert.Equal(t, stringList{"a.png", "b.png"}, opts.images)
	assert.Equal(t, "Curso de violão", opts.description)
	assert.Equal(t, "out", opts.outDir)

	opts, err = parseRunArgs([]string{"--request", "req.yaml"})
	require.NoError(t, err)
	assert.Empty(t, opts.variant)
	assert.Equal(t, "req.yaml", opts.requestFile)

	_, err = parseRunArgs(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant required")

	_, err = parseRunArgs([]string{"landing", "--image", ""})
	assert.Error(t, err)
}

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "ref.png", pngHeader)

	opts, err := parseRunArgs([]string{"variations", "--scope", "component", "--image", img, "--order-bump", "Botão"})
	require.NoError(t, err)

	v, req, err := buildRequest(opts)
	require.NoError(t, err)
	assert.Equal(t, models.VariantVariations, v)
	assert.Equal(t, "Botão", req.Description)
	assert.Equal(t, models.ScopeComponent, req.Scope)
	assert.True(t, req.HasOrderBump)
	require.Len(t, req.ReferenceImages, 1)
	assert.Equal(t, "image/png", req.ReferenceImages[0].MimeType)

	t.Run("flags override the request file", func(t *testing.T) {
		path := writeFile(t, dir, "req.yaml", []byte("variant: research\ntopic: pets\naudience: tutores\n"))
		opts, err := parseRunArgs([]string{"--request", path, "--topic", "aquarismo"})
		require.NoError(t, err)

		v, req, err := buildRequest(opts)
		require.NoError(t, err)
		assert.Equal(t, models.VariantResearch, v)
		assert.Equal(t, "aquarismo", req.Topic)
		assert.Equal(t, "tutores", req.Audience)
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, _, err := buildRequest(&runOptions{variant: "poster"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "landing")
	})

	t.Run("non image file", func(t *testing.T) {
		txt := writeFile(t, dir, "notes.txt", []byte("just text"))
		_, _, err := buildRequest(&runOptions{variant: "theme", images: stringList{txt}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type")
	})
}

func TestNeedsForm(t *testing.T) {
	assert.True(t, needsForm(models.VariantLanding, models.PipelineRequest{}))
	assert.False(t, needsForm(models.VariantLanding, models.PipelineRequest{Description: "x"}))
	assert.False(t, needsForm(models.VariantCouncil, models.PipelineRequest{Topic: "x"}))
	assert.False(t, needsForm(models.VariantTheme, models.PipelineRequest{}))
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer

	_, _, done := printEvent(&buf, protocol.ProgressEvent{RunID: "r", Stage: "sections", Percentage: 40, Message: "Seção 2"}, "r")
	assert.False(t, done)
	_, _, done = printEvent(&buf, protocol.ProgressEvent{RunID: "r", Stage: "sections", Percentage: 40, Message: "Tentando de novo", Retry: true}, "r")
	assert.False(t, done)
	_, _, done = printEvent(&buf, protocol.ProgressEvent{RunID: "other", Message: "ignored"}, "r")
	assert.False(t, done)

	assert.Contains(t, buf.String(), "▸  40% [sections] Seção 2")
	assert.Contains(t, buf.String(), "↻  40% [sections] Tentando de novo")
	assert.NotContains(t, buf.String(), "ignored")

	status, failure, done := printEvent(&buf, protocol.RunLifecycleEvent{RunID: "r", Type: protocol.RunFailed, Error: "Chave inválida"}, "r")
	assert.True(t, done)
	assert.Equal(t, models.RunStatusFailed, status)
	assert.Equal(t, "Chave inválida", failure)

	status, _, done = printEvent(&buf, protocol.RunLifecycleEvent{RunID: "r", Type: protocol.RunCompleted}, "r")
	assert.True(t, done)
	assert.Equal(t, models.RunStatusCompleted, status)
}

func TestWaitForStart(t *testing.T) {
	ctx := context.Background()

	events := make(chan protocol.Event, 2)
	events <- protocol.ProgressEvent{RunID: "r1"}
	events <- protocol.RunLifecycleEvent{RunID: "r1", Type: protocol.RunStarted}
	runID, err := waitForStart(ctx, events, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "r1", runID)

	events <- protocol.ErrorEvent{Message: "Failed to start landing run", Context: "description is required"}
	_, err = waitForStart(ctx, events, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")

	_, err = waitForStart(ctx, events, 10*time.Millisecond)
	assert.ErrorContains(t, err, "timeout")
}
