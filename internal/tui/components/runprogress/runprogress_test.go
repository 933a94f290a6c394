// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package runprogress

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/protocol"
)

func apply(t *testing.T, m Model, events ...protocol.Event) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, e := range events {
		var next tea.Model
		next, cmd = m.Update(EventMsg{Event: e})
		m = next.(Model)
	}
	return m, cmd
}

func lifecycle(runID string, typ protocol.RunLifecycleType, step string) protocol.RunLifecycleEvent {
	return protocol.RunLifecycleEvent{RunID: runID, Type: typ, StepName: step}
}

func TestUpdate_TracksStagesAndProgress(t *testing.T) {
	m := New("run-1", models.VariantLanding)

	m, cmd := apply(t, m,
		lifecycle("run-1", protocol.RunStepStarted, "structure"),
		protocol.ProgressEvent{RunID: "run-1", Stage: "structure", Percentage: 20, Message: "Planejando seções"},
		lifecycle("run-1", protocol.RunStepCompleted, "structure"),
		lifecycle("run-1", protocol.RunStepStarted, "sections"),
		protocol.ProgressEvent{RunID: "run-1", Stage: "sections", Percentage: 55, Message: "Seção 2 de 4"},
	)
	assert.Nil(t, cmd)
	assert.False(t, m.Done())
	assert.Equal(t, 55, m.Percentage())
	require.Len(t, m.Stages(), 2)
	assert.Equal(t, StatusCompleted, m.Stages()[0].Status)
	assert.Equal(t, StatusRunning, m.Stages()[1].Status)

	view := m.View()
	assert.Contains(t, view, "landing")
	assert.Contains(t, view, "Seção 2 de 4")
	assert.Contains(t, view, "55%")
}

func TestUpdate_IgnoresOtherRuns(t *testing.T) {
	m := New("run-1", models.VariantResearch)
	m, _ = apply(t, m,
		protocol.ProgressEvent{RunID: "run-2", Percentage: 80},
		lifecycle("run-2", protocol.RunCompleted, ""),
	)
	assert.Equal(t, 0, m.Percentage())
	assert.False(t, m.Done())
}

func TestUpdate_TerminalEventsQuit(t *testing.T) {
	tests := []struct {
		name   string
		event  protocol.RunLifecycleEvent
		status models.RunStatus
		stage  StageStatus
	}{
		{"completed", lifecycle("r", protocol.RunCompleted, ""), models.RunStatusCompleted, StatusCompleted},
		{"failed", protocol.RunLifecycleEvent{RunID: "r", Type: protocol.RunFailed, Error: "Chave de API inválida"}, models.RunStatusFailed, StatusFailed},
		{"cancelled", lifecycle("r", protocol.RunCancelled, ""), models.RunStatusCancelled, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("r", models.VariantCouncil)
			m, _ = apply(t, m, lifecycle("r", protocol.RunStepStarted, "critic"))
			m, cmd := apply(t, m, tt.event)

			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.True(t, m.Done())
			assert.Equal(t, tt.status, m.Status())
			assert.Equal(t, tt.stage, m.Stages()[0].Status)
		})
	}
}

func TestUpdate_FailedViewShowsError(t *testing.T) {
	m := New("r", models.VariantProduction)
	m, _ = apply(t, m, protocol.RunLifecycleEvent{RunID: "r", Type: protocol.RunFailed, Error: "Limite de requisições"})
	assert.Equal(t, "Limite de requisições", m.Error())
	assert.Contains(t, m.View(), "Limite de requisições")
}

func TestUpdate_CtrlCCancelsThenQuits(t *testing.T) {
	cancels := 0
	m := New("r", models.VariantPlan).SetCancelRequest(func() { cancels++ })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, cancels)
	assert.Contains(t, m.View(), "Cancelling")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, cancels, "second press force quits")
}

func TestBar(t *testing.T) {
	m := New("r", models.VariantTheme).SetWidth(10)
	m.percentage = 50
	bar := m.bar()
	assert.Equal(t, 5, strings.Count(bar, "▓"))
	assert.Equal(t, 5, strings.Count(bar, "░"))

	m.percentage = 130
	assert.Equal(t, 10, strings.Count(m.bar(), "▓"))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "9s", formatElapsed(9*time.Second))
	assert.Equal(t, "2m 5s", formatElapsed(125*time.Second))
}
