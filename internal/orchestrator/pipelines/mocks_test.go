// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/parser"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// System prompt fragments used to route fake responses.
const (
	routeVariations = "diretor de arte"
	routeStructure  = "estrategista de conversão"
	routeSection    = "única seção"
	routeReview     = "revisor de front-end"
	routeBrief      = "briefings"
	routeContent    = "Você é um redator de infoprodutos"
	routeImages     = "marcações de ilustração"
	routeOrderBumps = "estrategista de ofertas"
	routePlan       = "produtor de lançamentos"
	routeStrategist = "estrategista de um conselho"
	routeCritic     = "crítico do conselho"
	routeViability  = "analista de viabilidade"
	routeScoring    = "juiz do conselho"
	routeTheme      = "design tokens"
)

// fakeWriter answers text and vision calls by matching the system prompt.
type fakeWriter struct {
	mu     sync.Mutex
	routes map[string]func(req providers.TextRequest) (string, error)
	calls  []string
	images [][]models.InlineImage
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{routes: make(map[string]func(providers.TextRequest) (string, error))}
}

func (f *fakeWriter) on(route string, fn func(req providers.TextRequest) (string, error)) *fakeWriter {
	f.routes[route] = fn
	return f
}

func (f *fakeWriter) reply(route, text string) *fakeWriter {
	return f.on(route, func(providers.TextRequest) (string, error) { return text, nil })
}

func (f *fakeWriter) GenerateText(ctx context.Context, req providers.TextRequest) (string, error) {
	return f.GenerateWithImages(ctx, req, nil)
}

func (f *fakeWriter) GenerateWithImages(ctx context.Context, req providers.TextRequest, images []models.InlineImage) (string, error) {
	if err := providers.CheckAbort(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for route, fn := range f.routes {
		if strings.Contains(req.System, route) {
			f.calls = append(f.calls, route)
			f.images = append(f.images, images)
			return fn(req)
		}
	}
	return "", fmt.Errorf("unexpected prompt: %s", parser.Snippet(req.System, 80))
}

func (f *fakeWriter) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == route {
			n++
		}
	}
	return n
}

type mockImager struct {
	mock.Mock
}

func (m *mockImager) GenerateImage(ctx context.Context, prompt string) (*models.ImageBundle, error) {
	args := m.Called(ctx, prompt)
	bundle, _ := args.Get(0).(*models.ImageBundle)
	return bundle, args.Error(1)
}

type mockResearcher struct {
	mock.Mock
}

func (m *mockResearcher) Research(ctx context.Context, req providers.TextRequest) (*models.Research, error) {
	args := m.Called(ctx, req)
	research, _ := args.Get(0).(*models.Research)
	return research, args.Error(1)
}

type fixture struct {
	writer      *fakeWriter
	analyst     *fakeWriter
	illustrator *mockImager
	previewer   *mockImager
	researcher  *mockResearcher
	pipelines   *Pipelines
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ImageConcurrency: 3,
		SchemaAttempts:   2,
		LandingSections:  3,
		VariationCount:   3,
		DefaultModel:     "anthropic/claude-sonnet-4",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testPipelineConfig())
}

func newFixtureWith(t *testing.T, cfg config.PipelineConfig) *fixture {
	t.Helper()
	f := &fixture{
		writer:      newFakeWriter(),
		analyst:     newFakeWriter(),
		illustrator: &mockImager{},
		previewer:   &mockImager{},
		researcher:  &mockResearcher{},
	}
	p, err := New(Clients{
		Copywriter:  f.writer,
		Analyst:     f.analyst,
		Illustrator: f.illustrator,
		Previewer:   f.previewer,
		Researcher:  f.researcher,
	}, nil, cfg)
	require.NoError(t, err)
	f.pipelines = p
	return f
}

// recorder collects progress updates.
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) fn(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) stepStarts() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stages []Stage
	for _, u := range r.updates {
		if u.StepStart {
			stages = append(stages, u.Stage)
		}
	}
	return stages
}

func (r *recorder) saw(stage Stage) bool {
	for _, s := range r.stepStarts() {
		if s == stage {
			return true
		}
	}
	return false
}

func pngImage(t *testing.T) models.InlineImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return models.NewInlineImage("image/png", buf.Bytes())
}

func fullHTML(body string) string {
	return "<!DOCTYPE html><html><head></head><body>" + body + "</body></html>"
}
