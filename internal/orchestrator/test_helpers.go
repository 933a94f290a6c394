// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"testing"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/database"
	"github.com/noldarim/launchpad/internal/orchestrator/services"
	"github.com/noldarim/launchpad/internal/protocol"
)

// OrchestratorFixture represents an orchestrator setup with channels and cleanup
type OrchestratorFixture struct {
	Orchestrator *Orchestrator
	Config       *config.AppConfig
	CmdChan      chan protocol.Command
	EventChan    chan protocol.Event
	Cleanup      func()
}

// WithRunner sets up an orchestrator over a fresh database and the given runner
func WithRunner(t *testing.T, runner services.Runner) *OrchestratorFixture {
	t.Helper()
	cfg := database.WithTestConfig(t)
	dbFixture := database.UseFreshDatabase(t)
	cfg.Database = *dbFixture.Config

	cmdChan := make(chan protocol.Command, 10)
	eventChan := make(chan protocol.Event, 256)

	orch := NewWithRunner(cmdChan, eventChan, cfg, services.NewDataServiceWithDB(dbFixture.DB), runner)

	cleanup := func() {
		orch.Close()
	}
	t.Cleanup(cleanup)

	return &OrchestratorFixture{
		Orchestrator: orch,
		Config:       cfg,
		CmdChan:      cmdChan,
		EventChan:    eventChan,
		Cleanup:      cleanup,
	}
}
