// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	rules, err := LoadRules("")
	require.NoError(t, err)
	return NewBuilder(rules)
}

func TestDefaultRules_AllGroupsPresent(t *testing.T) {
	for name, group := range DefaultRules().groups() {
		assert.NotEmpty(t, group, name)
	}
}

func TestDefaultRules_ScalarsKeepColonsAndHashes(t *testing.T) {
	r := DefaultRules()
	assert.Contains(t, r.Production, "Use títulos hierárquicos com #, ## e ###.")
	assert.Contains(t, r.Production, "Marque cada ilustração com [IMAGEM_n: descrição da cena], numeradas a partir de 1.")
}

func TestDefaultRules_ReturnsCopy(t *testing.T) {
	r := DefaultRules()
	r.Production[0] = "changed"
	assert.NotEqual(t, "changed", DefaultRules().Production[0])
}

func TestParseRules_UnquotedColonItem(t *testing.T) {
	_, err := parseRules([]byte("production:\n  - Marque com [IMAGEM_n: cena]\n"))
	require.Error(t, err)

	assert.Panics(t, func() { mustParseRules([]byte("production:\n  - a: b\n")) })
	assert.Panics(t, func() { mustParseRules([]byte("production:\n  - only one group\n")) })
}

func TestLoadRules_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("copywriting:\n  - Tom informal.\n"), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tom informal."}, r.Copywriting)
	assert.Equal(t, DefaultRules().HTML, r.HTML)
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read rules file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("copywriting: [unterminated"), 0o644))
	_, err = LoadRules(path)
	assert.ErrorContains(t, err, "failed to parse rules file")
}

func TestVariations_StatesShapeAndCount(t *testing.T) {
	b := newTestBuilder(t)
	req := models.PipelineRequest{
		Description:  "ebook sobre paciência bíblica",
		Scope:        models.ScopeSection,
		HasOrderBump: true,
		SourceURLs:   []string{"https://a.example", "https://b.example"},
	}

	p, err := b.Variations(req, 3)
	require.NoError(t, err)

	assert.Contains(t, p.System, `{"variations":[{"title":"...","description":"...","html":"<!DOCTYPE html>..."}]}`)
	assert.Contains(t, p.System, "exatamente 3 itens")
	assert.Contains(t, p.System, "- "+b.Rules().HTML[0])
	assert.Contains(t, p.User, "exatamente 3 variações de seção")
	assert.Contains(t, p.User, "ebook sobre paciência bíblica")
	assert.Contains(t, p.User, "order bump")
	assert.Contains(t, p.User, "https://a.example, https://b.example")
	assert.NotContains(t, p.User, "Refine")
}

func TestVariations_IsDeterministic(t *testing.T) {
	b := newTestBuilder(t)
	req := models.PipelineRequest{Description: "curso", Scope: models.ScopeBoth}
	first, err := b.Variations(req, 3)
	require.NoError(t, err)
	second, err := b.Variations(req, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first.User, "seção completa e componente")
}

func TestLandingPrompts(t *testing.T) {
	b := newTestBuilder(t)
	req := models.PipelineRequest{Description: "mentoria de finanças", ProductName: "Livre"}

	structure, err := b.LandingStructure(req, 20)
	require.NoError(t, err)
	assert.Contains(t, structure.System, "exatamente 20 itens")
	assert.Contains(t, structure.User, "Produto: Livre")

	section, err := b.LandingSection(req, models.Section{ID: "faq", Title: "Perguntas", Description: "tirar objeções"}, 4, 20)
	require.NoError(t, err)
	assert.Contains(t, section.User, "Seção 5 de 20: Perguntas")
	assert.Contains(t, section.System, `"faq-"`)

	review, err := b.ReviewHTML("<!DOCTYPE html><html></html>")
	require.NoError(t, err)
	assert.Contains(t, review.User, "<!DOCTYPE html><html></html>")
}

func TestThemePrompts(t *testing.T) {
	b := newTestBuilder(t)

	extraction, err := b.ThemeExtraction(models.PipelineRequest{
		ReferenceImages: []models.InlineImage{{MimeType: "image/png", Data: "eA=="}},
		RawHTML:         "<body style='color:#fff'></body>",
	})
	require.NoError(t, err)
	assert.Contains(t, extraction.User, "das 1 imagens anexadas e do HTML abaixo")
	assert.Contains(t, extraction.User, "<body style='color:#fff'></body>")

	preview, err := b.ThemePreview([]models.ThemeToken{{Name: "primary", Value: "#112233", Category: models.TokenColor}})
	require.NoError(t, err)
	assert.Contains(t, preview.User, "- color primary: #112233")
}

func TestProductionPrompts(t *testing.T) {
	b := newTestBuilder(t)
	req := models.PipelineRequest{Topic: "paciência", Description: "ignored when topic set"}

	brief, err := b.ProductionPrompt(req, "pesquisa X")
	require.NoError(t, err)
	assert.Contains(t, brief.User, "Tema do material: paciência")
	assert.Contains(t, brief.User, "pesquisa X")
	assert.Contains(t, brief.System, "[IMAGEM_n: descrição da cena]")

	content, err := b.ProductionContent("briefing completo")
	require.NoError(t, err)
	assert.Equal(t, "briefing completo", content.User)

	images, err := b.ImagePrompts("# Título", []ImageSlot{{Index: 1, Hint: "deserto"}, {Index: 2}})
	require.NoError(t, err)
	assert.Contains(t, images.User, "- [IMAGEM_1]: deserto\n- [IMAGEM_2]\n")
	assert.Contains(t, images.System, `{"images":[{"index":1,"prompt":"..."}]}`)
}

func TestCouncilPrompts(t *testing.T) {
	b := newTestBuilder(t)
	ideas := []models.CouncilIdea{{Name: "Devocional 30 dias", Proposal: "leitura diária", Critique: "saturado", Viability: "barato"}}

	strategist, err := b.CouncilStrategist(models.PipelineRequest{Topic: "fé"}, []string{"Curso A", "Ebook B"}, 5)
	require.NoError(t, err)
	assert.Contains(t, strategist.System, "exatamente 5 ideias")
	assert.Contains(t, strategist.User, "Curso A, Ebook B")

	critic, err := b.CouncilCritic(ideas)
	require.NoError(t, err)
	assert.Contains(t, critic.User, "- Devocional 30 dias: leitura diária")

	viability, err := b.CouncilViability(ideas)
	require.NoError(t, err)
	assert.Contains(t, viability.User, "Crítica: saturado")

	scoring, err := b.CouncilScoring(ideas)
	require.NoError(t, err)
	assert.Contains(t, scoring.User, "Viabilidade: barato")
	assert.Contains(t, scoring.System, `"score":7.5`)
}

func TestCommercePrompts(t *testing.T) {
	b := newTestBuilder(t)
	req := models.PipelineRequest{Description: "curso de violão", Audience: "iniciantes"}

	bumps, err := b.OrderBumps(req)
	require.NoError(t, err)
	assert.Contains(t, bumps.System, "exatamente 3 itens")
	assert.Contains(t, bumps.User, "Público: iniciantes")

	research, err := b.Research(req)
	require.NoError(t, err)
	assert.Contains(t, research.User, "curso de violão")

	plan, err := b.ProductionPlan(req)
	require.NoError(t, err)
	assert.Contains(t, plan.System, `"category":"copy"`)
}

func TestPrompt_Combined(t *testing.T) {
	assert.Equal(t, "u", Prompt{User: "u"}.Combined())
	assert.Equal(t, "s\n\nu", Prompt{System: "s", User: "u"}.Combined())
}
