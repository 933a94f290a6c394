// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Commands are what callers send to the orchestrator. They name the goal
// and carry the user's input; IDs and timestamps are assigned downstream.
package protocol

import (
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

// Command represents commands that can be sent to the orchestrator
type Command interface {
	GetBaseMessage() Metadata
}

// StartRunCommand starts a pipeline run of Variant for Request.
type StartRunCommand struct {
	Metadata
	Variant models.Variant
	Request models.PipelineRequest
}

func (c StartRunCommand) GetBaseMessage() Metadata {
	return c.Metadata
}

// CancelRunCommand aborts an in-flight run. Cancelling a finished run is a no-op.
type CancelRunCommand struct {
	Metadata
}

func (c CancelRunCommand) GetBaseMessage() Metadata {
	return c.Metadata
}

// LoadRunsCommand requests the run history, newest first.
type LoadRunsCommand struct {
	Metadata
	Limit int
}

func (c LoadRunsCommand) GetBaseMessage() Metadata {
	return c.Metadata
}
