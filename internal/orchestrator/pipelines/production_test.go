// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const productionMarkdown = `# Paciência Bíblica

> "Esperai no Senhor" (Sl 27:14)

Um capítulo sobre **esperar** com *fé*.

[IMAGEM_1: um homem orando ao amanhecer]

- primeiro passo
- segundo passo

[IMAGEM_2: uma estrada no deserto]

1. Leia
2. Medite

[IMAGEM_3]
`

func installProduction(t *testing.T, f *fixture) {
	t.Helper()
	f.researcher.On("Research", mock.Anything, mock.Anything).
		Return(&models.Research{Text: "Público cristão busca devocionais curtos."}, nil)
	f.writer.
		reply(routeBrief, "Briefing: 3 capítulos, tom acolhedor.").
		reply(routeContent, productionMarkdown).
		reply(routeImages, `{"images":[{"index":1,"prompt":"man praying at dawn"},{"index":2,"prompt":"desert road"}]}`)
}

func TestRunProductionWorkflow(t *testing.T) {
	f := newFixture(t)
	installProduction(t, f)
	img := pngImage(t)
	f.illustrator.On("GenerateImage", mock.Anything, "desert road").
		Return(nil, &providers.EmptyResponseError{Provider: "flux", Reason: "no_data"})
	f.illustrator.On("GenerateImage", mock.Anything, mock.Anything).
		Return(&models.ImageBundle{Images: []models.InlineImage{img}}, nil)

	rec := &recorder{}
	out, doc, err := f.pipelines.RunProductionWorkflow(context.Background(), models.PipelineRequest{Topic: "paciência bíblica"}, rec.fn)
	require.NoError(t, err)

	wantStages := append([]Stage{StageValidate}, ProductionSteps...)
	wantStages = append(wantStages, StageDone)
	assert.Equal(t, wantStages, rec.stepStarts())
	assertMonotonic(t, rec.updates)
	assert.Equal(t, 100, rec.updates[len(rec.updates)-1].Percentage)

	// Placeholder 3 had no prompt from the model and falls back to the subject.
	require.Len(t, out.Images, 3)
	assert.Equal(t, "man praying at dawn", out.Images[0].Prompt)
	assert.True(t, out.Images[0].OK())
	assert.False(t, out.Images[1].OK())
	assert.Contains(t, out.Images[1].Error, "no_data")
	assert.Equal(t, "Illustration for: paciência bíblica", out.Images[2].Prompt)
	assert.True(t, out.Images[2].OK())

	require.Len(t, out.Sections, 1)
	assert.Equal(t, "Paciência Bíblica", out.Sections[0].Title)
	assert.Contains(t, out.Markdown, "data:image/png;base64,")
	assert.Contains(t, out.Markdown, "[Imagem 2 indisponível]")
	assert.Contains(t, out.Meta.Warnings, "1 de 3 imagens não foram geradas")
	assert.Equal(t, "Público cristão busca devocionais curtos.", out.Research.Text)

	require.NotNil(t, doc)
	assert.True(t, bytes.HasPrefix(doc.DOCX, []byte("PK")))
	assert.True(t, bytes.HasPrefix(doc.PDF, []byte("%PDF")))
	assert.Empty(t, doc.PDFError)
	require.Len(t, doc.ImageReport, 3)
	assert.False(t, doc.ImageReport[1].OK)
}

func TestRunProductionWorkflow_AbortDuringFirstStep(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.researcher.On("Research", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&models.Research{Text: "ok"}, nil)
	f.writer.reply(routeBrief, "brief").reply(routeContent, productionMarkdown)

	rec := &recorder{}
	out, doc, err := f.pipelines.RunProductionWorkflow(ctx, models.PipelineRequest{Description: "x"}, rec.fn)
	require.Error(t, err)
	assert.True(t, providers.IsAbort(err))
	var abort *providers.AbortError
	assert.True(t, errors.As(err, &abort))
	assert.Nil(t, out)
	assert.Nil(t, doc)

	for _, stage := range ProductionSteps[1:] {
		assert.False(t, rec.saw(stage), "stage %s must not start", stage)
	}
	assert.Equal(t, 0, f.writer.count(routeContent))
	f.illustrator.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
}

func TestRunProductionWorkflow_NoPlaceholders(t *testing.T) {
	f := newFixture(t)
	f.researcher.On("Research", mock.Anything, mock.Anything).Return(&models.Research{Text: "r"}, nil)
	f.writer.reply(routeBrief, "b").reply(routeContent, "```markdown\n# Só texto\n\nSem imagens.\n```")

	out, doc, err := f.pipelines.RunProductionWorkflow(context.Background(), models.PipelineRequest{Description: "x"}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Images)
	assert.Equal(t, "# Só texto\n\nSem imagens.", out.Markdown)
	assert.Equal(t, 0, f.writer.count(routeImages))
	assert.NotEmpty(t, doc.DOCX)
	f.illustrator.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
}

func TestGenerateImages_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	img := pngImage(t)
	f.illustrator.On("GenerateImage", mock.Anything, "p3").
		Return(nil, &providers.APIError{Provider: "flux", Status: 500, Message: "Erro na API: 500"})
	f.illustrator.On("GenerateImage", mock.Anything, "p5").
		Return(&models.ImageBundle{}, nil)
	f.illustrator.On("GenerateImage", mock.Anything, mock.Anything).
		Return(&models.ImageBundle{Images: []models.InlineImage{img}}, nil)

	var items []ImagePrompt
	for i := 1; i <= 7; i++ {
		items = append(items, ImagePrompt{Index: i * 10, Prompt: fmt.Sprintf("p%d", i)})
	}

	rec := &recorder{}
	progress := NewProgress(rec.fn)
	progress.Span(StageImages, 50, 80, "start")
	results := f.pipelines.GenerateImages(context.Background(), items, progress)

	require.Len(t, results, 7)
	for i, r := range results {
		assert.Equal(t, (i+1)*10, r.Index, "results keep prompt order")
		assert.Equal(t, fmt.Sprintf("p%d", i+1), r.Prompt)
	}
	assert.Equal(t, "Erro na API: 500", results[2].Error)
	assert.Nil(t, results[2].Image)
	assert.Equal(t, "no image returned", results[4].Error)
	for _, i := range []int{0, 1, 3, 5, 6} {
		assert.True(t, results[i].OK(), "image %d", i)
	}

	assertMonotonic(t, rec.updates)
	assert.Equal(t, 80, rec.updates[len(rec.updates)-1].Percentage)
	f.illustrator.AssertNumberOfCalls(t, "GenerateImage", 7)
}

func TestGenerateImages_CountsInOrder(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ImageConcurrency = 8
	f := newFixtureWith(t, cfg)
	img := pngImage(t)
	f.illustrator.On("GenerateImage", mock.Anything, mock.Anything).
		Return(&models.ImageBundle{Images: []models.InlineImage{img}}, nil)

	const total = 24
	var items []ImagePrompt
	for i := 1; i <= total; i++ {
		items = append(items, ImagePrompt{Index: i, Prompt: fmt.Sprintf("p%d", i)})
	}
	rec := &recorder{}
	progress := NewProgress(rec.fn)
	progress.Span(StageImages, 50, 80, "start")
	f.pipelines.GenerateImages(context.Background(), items, progress)

	var msgs []string
	for _, u := range rec.updates[1:] {
		msgs = append(msgs, u.Message)
	}
	require.Len(t, msgs, total)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("Imagem %d de %d gerada", i+1, total), m)
	}
	assertMonotonic(t, rec.updates)
}

func TestGenerateImages_CancelledBatchStillReturnsEveryEntry(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []ImagePrompt{{Index: 1, Prompt: "a"}, {Index: 2, Prompt: "b"}}
	results := f.pipelines.GenerateImages(ctx, items, nil)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK())
		assert.Equal(t, providers.ErrAborted.Error(), r.Error)
	}
	f.illustrator.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
}

func TestStripMarkdownFence(t *testing.T) {
	assert.Equal(t, "# T", stripMarkdownFence("```markdown\n# T\n```"))
	assert.Equal(t, "# T", stripMarkdownFence("  # T  "))
	body := "# T\n\n```go\ncode\n```\n\nfim"
	assert.Equal(t, body, stripMarkdownFence(body))
}
