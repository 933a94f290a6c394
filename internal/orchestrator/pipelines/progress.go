// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"fmt"
	"sync"
)

// Stage names a step of a pipeline for progress reporting.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageVariations   Stage = "variations"
	StageStructure    Stage = "structure"
	StageSections     Stage = "sections"
	StageReview       Stage = "review"
	StageTheme        Stage = "theme"
	StagePreview      Stage = "preview"
	StageOrderBumps   Stage = "order_bumps"
	StageResearch     Stage = "research"
	StagePlan         Stage = "plan"
	StageStrategist   Stage = "strategist"
	StageCritic       Stage = "critic"
	StageViability    Stage = "viability"
	StageScoring      Stage = "scoring"
	StageBrief        Stage = "brief"
	StageContent      Stage = "content"
	StageImagePrompts Stage = "image_prompts"
	StageImages       Stage = "images"
	StageResolve      Stage = "resolve"
	StageDOCX         Stage = "docx"
	StagePDF          Stage = "pdf"
	StageDone         Stage = "done"
)

// Update is one progress report.
type Update struct {
	Stage      Stage
	Message    string
	Percentage int
	// StepStart marks the first update of a stage.
	StepStart bool
	// Retry marks an explicit retry. Its percentage may be lower than the
	// previous update's.
	Retry bool
}

// ProgressFunc receives updates. It is called synchronously from the
// pipeline and, during image batches, from several goroutines; calls are
// serialized.
type ProgressFunc func(Update)

// Progress maps stage-local progress onto the run's 0-100 scale and keeps it
// non-decreasing outside of explicit retries.
type Progress struct {
	mu    sync.Mutex
	fn    ProgressFunc
	stage Stage
	lo    int
	hi    int
	last  int
}

// NewProgress wraps fn. A nil fn discards updates.
func NewProgress(fn ProgressFunc) *Progress {
	return &Progress{fn: fn, hi: 100}
}

// Span starts stage, allotting it the [lo, hi] range, and reports lo.
func (p *Progress) Span(stage Stage, lo, hi int, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
	p.lo = clamp(lo)
	p.hi = clamp(hi)
	if p.hi < p.lo {
		p.hi = p.lo
	}
	p.emit(Update{Stage: stage, Message: msg, Percentage: p.lo, StepStart: true})
}

// Step reports that done of total items of the current stage finished.
func (p *Progress) Step(done, total int, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pct := p.hi
	if total > 0 {
		pct = p.lo + (p.hi-p.lo)*done/total
	}
	p.emit(Update{Stage: p.stage, Message: msg, Percentage: pct})
}

// Message reports msg without moving the bar.
func (p *Progress) Message(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(Update{Stage: p.stage, Message: msg, Percentage: p.last})
}

// Retry reports a retry of the current stage and resets the bar to the
// stage's start.
func (p *Progress) Retry(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = p.lo
	p.emit(Update{Stage: p.stage, Message: msg, Percentage: p.lo, Retry: true})
}

// Done reports 100%.
func (p *Progress) Done(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = StageDone
	p.lo, p.hi = 100, 100
	p.emit(Update{Stage: StageDone, Message: msg, Percentage: 100, StepStart: true})
}

// Percentage returns the last reported value.
func (p *Progress) Percentage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Progress) emit(u Update) {
	if !u.Retry && u.Percentage < p.last {
		u.Percentage = p.last
	}
	u.Percentage = clamp(u.Percentage)
	p.last = u.Percentage
	if p.fn != nil {
		p.fn(u)
	}
}

func clamp(pct int) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// attemptMessage formats the retry message shown to the user.
func attemptMessage(what string, attempt, limit int) string {
	return fmt.Sprintf("%s: nova tentativa (%d/%d)", what, attempt, limit)
}
