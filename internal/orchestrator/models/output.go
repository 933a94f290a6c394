// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StepKind tags the payload held by a StepResult.
type StepKind string

const (
	StepKindJSON     StepKind = "json"
	StepKindMarkdown StepKind = "markdown"
	StepKindImages   StepKind = "images"
)

// ImageBundle is what an image-capable model call returns: the images plus
// any text the model emitted alongside them.
type ImageBundle struct {
	Images      []InlineImage `json:"images"`
	Description string        `json:"description"`
}

// StepResult holds the output of one provider call before it is folded into
// the next step or the PipelineOutput. Exactly one payload field is set,
// matching Kind.
type StepResult struct {
	Kind StepKind `json:"kind"`
	// JSON is the decoded value: an object or an array.
	JSON     any          `json:"json,omitempty"`
	Markdown string       `json:"markdown,omitempty"`
	Images   *ImageBundle `json:"images,omitempty"`
}

func JSONResult(v any) StepResult {
	return StepResult{Kind: StepKindJSON, JSON: v}
}

func MarkdownResult(s string) StepResult {
	return StepResult{Kind: StepKindMarkdown, Markdown: s}
}

func ImagesResult(b *ImageBundle) StepResult {
	return StepResult{Kind: StepKindImages, Images: b}
}

// Text returns the Markdown payload.
func (r StepResult) Text() (string, error) {
	if r.Kind != StepKindMarkdown {
		return "", fmt.Errorf("step result is %s, not markdown", r.Kind)
	}
	if strings.TrimSpace(r.Markdown) == "" {
		return "", errors.New("empty markdown")
	}
	return r.Markdown, nil
}

// FirstImage returns the first image of an images payload.
func (r StepResult) FirstImage() (*InlineImage, error) {
	if r.Kind != StepKindImages {
		return nil, fmt.Errorf("step result is %s, not images", r.Kind)
	}
	if r.Images == nil || len(r.Images.Images) == 0 {
		return nil, errors.New("no image returned")
	}
	img := r.Images.Images[0]
	return &img, nil
}

// Section is one named section or variation of generated output.
type Section struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	HTML        string `json:"html,omitempty"`
	Markdown    string `json:"markdown,omitempty"`
}

// ImageResult is one entry of a batch image generation. A failed entry keeps
// its slot with Error set and Image nil.
type ImageResult struct {
	Index  int          `json:"index"`
	Prompt string       `json:"prompt"`
	Image  *InlineImage `json:"image,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// OK reports whether the image was generated.
func (r ImageResult) OK() bool {
	return r.Image != nil && r.Error == ""
}

// OutputMeta describes how an output was produced.
type OutputMeta struct {
	Model        string    `json:"model"`
	SectionCount int       `json:"section_count"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// PipelineOutput is the terminal artifact of a run. It is built up while the
// run progresses and frozen when it ends.
type PipelineOutput struct {
	Variant    Variant              `json:"variant"`
	Sections   []Section            `json:"sections,omitempty"`
	Images     []ImageResult        `json:"images,omitempty"`
	OrderBumps []OrderBump          `json:"order_bumps,omitempty"`
	Plan       []ProductionPlanItem `json:"plan,omitempty"`
	Theme      *Theme               `json:"theme,omitempty"`
	Council    *CouncilResult       `json:"council,omitempty"`
	Research   *Research            `json:"research,omitempty"`
	Markdown   string               `json:"markdown,omitempty"`
	HTML       string               `json:"html,omitempty"`
	Meta       OutputMeta           `json:"meta"`

	frozen bool
}

// NewOutput starts an output for variant v.
func NewOutput(v Variant, model string) *PipelineOutput {
	return &PipelineOutput{
		Variant: v,
		Meta:    OutputMeta{Model: model, StartedAt: time.Now().UTC()},
	}
}

// Warn records a degraded step. Ignored after Freeze.
func (o *PipelineOutput) Warn(msg string) {
	if o.frozen {
		return
	}
	o.Meta.Warnings = append(o.Meta.Warnings, msg)
}

// Freeze stamps the completion time and section count. Later calls are no-ops.
func (o *PipelineOutput) Freeze() *PipelineOutput {
	if o.frozen {
		return o
	}
	o.Meta.CompletedAt = time.Now().UTC()
	o.Meta.SectionCount = len(o.Sections)
	o.frozen = true
	return o
}

// Frozen reports whether Freeze has been called.
func (o *PipelineOutput) Frozen() bool {
	return o.frozen
}

// FailedImages returns the entries of Images that carry an error.
func (o *PipelineOutput) FailedImages() []ImageResult {
	var failed []ImageResult
	for _, r := range o.Images {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
