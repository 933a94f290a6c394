// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Events are what the orchestrator sends back. A run emits RunLifecycleEvent
// at its boundaries and ProgressEvent in between.
package protocol

import (
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

// GetIdempotencyKey extracts the idempotency key from any event
func GetIdempotencyKey(event Event) string {
	return event.GetMetadata().IdempotencyKey
}

// ProgressEvent reports where a run is. Percentage never decreases within a
// run except on events with Retry set, which may move back into the range
// being retried.
type ProgressEvent struct {
	Metadata
	RunID      string `json:"run_id"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Percentage int    `json:"percentage"`
	Retry      bool   `json:"retry,omitempty"`
}

func (e ProgressEvent) GetMetadata() Metadata {
	return e.Metadata
}

// RunLifecycleType defines the type of run lifecycle event
type RunLifecycleType string

const (
	RunStarted       RunLifecycleType = "started"
	RunStepStarted   RunLifecycleType = "step_started"
	RunStepCompleted RunLifecycleType = "step_completed"
	RunStepFailed    RunLifecycleType = "step_failed"
	RunCompleted     RunLifecycleType = "completed"
	RunFailed        RunLifecycleType = "failed"
	RunCancelled     RunLifecycleType = "cancelled"
)

// RunLifecycleEvent represents a state change of a run or one of its steps.
type RunLifecycleEvent struct {
	Metadata
	Type     RunLifecycleType `json:"type"`
	RunID    string           `json:"run_id"`
	Variant  models.Variant   `json:"variant"`
	StepName string           `json:"step_name,omitempty"`
	Error    string           `json:"error,omitempty"`

	// Run is set on started and terminal events.
	Run *models.PipelineRun `json:"run,omitempty"`
}

func (e RunLifecycleEvent) GetMetadata() Metadata {
	return e.Metadata
}

// RunsLoadedEvent answers LoadRunsCommand.
type RunsLoadedEvent struct {
	Metadata
	Runs []*models.PipelineRun `json:"runs"`
}

func (e RunsLoadedEvent) GetMetadata() Metadata {
	return e.Metadata
}

// ErrorEvent carries a user-visible failure. Cancellations never produce one.
type ErrorEvent struct {
	Metadata
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

func (e ErrorEvent) GetMetadata() Metadata {
	return e.Metadata
}
