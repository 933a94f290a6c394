// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompts renders the system/user prompt pairs sent to the models.
// Every builder is pure: the same inputs always produce the same prompt.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"bullets":    bullets,
	"join":       strings.Join,
	"inc":        func(i int) int { return i + 1 },
	"scopeLabel": scopeLabel,
}).ParseFS(templateFS, "templates/*.tmpl"))

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

// Combined joins both parts for providers that take a single text input.
func (p Prompt) Combined() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// ImageSlot is an illustration marker found in generated Markdown.
type ImageSlot struct {
	Index int
	Hint  string
}

// params is the data passed to every template. Each template reads only the
// fields it needs.
type params struct {
	Rules    Rules
	Req      models.PipelineRequest
	Count    int
	Index    int
	Total    int
	Outline  models.Section
	HTML     string
	Tokens   []models.ThemeToken
	Research string
	Brief    string
	Markdown string
	Slots    []ImageSlot
	Excluded []string
	Ideas    []models.CouncilIdea
}

// Builder renders prompts using a fixed rule set.
type Builder struct {
	rules Rules
}

// NewBuilder returns a builder over rules.
func NewBuilder(rules Rules) *Builder {
	return &Builder{rules: rules}
}

// Rules returns the rule set the builder was created with.
func (b *Builder) Rules() Rules {
	return b.rules
}

func (b *Builder) render(name string, p params) (Prompt, error) {
	p.Rules = b.rules

	system, err := execute(name+".system", p)
	if err != nil {
		return Prompt{}, err
	}
	user, err := execute(name+".user", p)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: system, User: user}, nil
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Variations asks for count alternative HTML designs.
func (b *Builder) Variations(req models.PipelineRequest, count int) (Prompt, error) {
	return b.render("variations", params{Req: req, Count: count})
}

// LandingStructure asks for the outline of a long landing page.
func (b *Builder) LandingStructure(req models.PipelineRequest, sections int) (Prompt, error) {
	return b.render("landing_structure", params{Req: req, Count: sections})
}

// LandingSection asks for the HTML of the section at index (zero based).
func (b *Builder) LandingSection(req models.PipelineRequest, outline models.Section, index, total int) (Prompt, error) {
	return b.render("landing_section", params{Req: req, Outline: outline, Index: index, Total: total})
}

// ReviewHTML asks the model to fix an assembled document.
func (b *Builder) ReviewHTML(html string) (Prompt, error) {
	return b.render("review_html", params{HTML: html})
}

// ThemeExtraction asks for design tokens. Reference images are attached by the
// caller; the prompt only mentions them.
func (b *Builder) ThemeExtraction(req models.PipelineRequest) (Prompt, error) {
	return b.render("theme_extraction", params{Req: req})
}

// ThemePreview describes a preview image for tokens.
func (b *Builder) ThemePreview(tokens []models.ThemeToken) (Prompt, error) {
	return b.render("theme_preview", params{Tokens: tokens})
}

func (b *Builder) OrderBumps(req models.PipelineRequest) (Prompt, error) {
	return b.render("order_bumps", params{Req: req})
}

func (b *Builder) Research(req models.PipelineRequest) (Prompt, error) {
	return b.render("research", params{Req: req})
}

// ProductionPrompt asks for the writing brief of a production run.
func (b *Builder) ProductionPrompt(req models.PipelineRequest, research string) (Prompt, error) {
	return b.render("production_prompt", params{Req: req, Research: research})
}

// ProductionContent turns a brief into the Markdown material.
func (b *Builder) ProductionContent(brief string) (Prompt, error) {
	return b.render("production_content", params{Brief: brief})
}

// ImagePrompts asks for one image-generation prompt per slot.
func (b *Builder) ImagePrompts(markdown string, slots []ImageSlot) (Prompt, error) {
	return b.render("image_prompts", params{Markdown: markdown, Slots: slots})
}

func (b *Builder) ProductionPlan(req models.PipelineRequest) (Prompt, error) {
	return b.render("production_plan", params{Req: req})
}

// CouncilStrategist asks for count new ideas, none named in excluded.
func (b *Builder) CouncilStrategist(req models.PipelineRequest, excluded []string, count int) (Prompt, error) {
	return b.render("council_strategist", params{Req: req, Excluded: excluded, Count: count})
}

func (b *Builder) CouncilCritic(ideas []models.CouncilIdea) (Prompt, error) {
	return b.render("council_critic", params{Ideas: ideas})
}

func (b *Builder) CouncilViability(ideas []models.CouncilIdea) (Prompt, error) {
	return b.render("council_viability", params{Ideas: ideas})
}

func (b *Builder) CouncilScoring(ideas []models.CouncilIdea) (Prompt, error) {
	return b.render("council_scoring", params{Ideas: ideas})
}

func bullets(lines []string) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(l)
	}
	return sb.String()
}

func scopeLabel(s models.Scope) string {
	switch s {
	case models.ScopeComponent:
		return "componente"
	case models.ScopeBoth:
		return "seção completa e componente"
	default:
		return "seção"
	}
}
