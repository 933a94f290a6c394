// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runprogress renders a live view of one pipeline run: a spinner, a
// percentage bar, the stage list and the latest progress message.
package runprogress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/protocol"
)

// StageStatus represents the status of a stage
type StageStatus int

const (
	StatusRunning StageStatus = iota
	StatusCompleted
	StatusFailed
)

// Stage is one entry of the stage list.
type Stage struct {
	Name   string
	Status StageStatus
}

// EventMsg wraps an orchestrator event for the program.
type EventMsg struct {
	Event protocol.Event
}

// Model is the run progress component.
type Model struct {
	runID      string
	variant    models.Variant
	spinner    spinner.Model
	width      int
	percentage int
	message    string
	retrying   bool
	stages     []Stage
	status     models.RunStatus
	errMsg     string
	cancelling bool
	onCancel   func()
	startedAt  time.Time
	elapsed    time.Duration
}

// New creates a progress model for runID.
func New(runID string, variant models.Variant) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	return Model{
		runID:     runID,
		variant:   variant,
		spinner:   s,
		width:     30,
		status:    models.RunStatusRunning,
		startedAt: time.Now(),
	}
}

// SetWidth sets the progress bar width
func (m Model) SetWidth(w int) Model {
	m.width = w
	return m
}

// SetCancelRequest sets the callback invoked on the first Ctrl+C.
func (m Model) SetCancelRequest(fn func()) Model {
	m.onCancel = fn
	return m
}

// Status returns the run status seen so far.
func (m Model) Status() models.RunStatus { return m.status }

// Error returns the failure message of a failed run.
func (m Model) Error() string { return m.errMsg }

// Percentage returns the last reported percentage.
func (m Model) Percentage() int { return m.percentage }

// Stages returns the stages seen so far.
func (m Model) Stages() []Stage { return m.stages }

// Done reports whether the run reached a terminal state.
func (m Model) Done() bool {
	return m.status == models.RunStatusCompleted || m.status == models.RunStatusFailed || m.status == models.RunStatusCancelled
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() != "ctrl+c" {
			return m, nil
		}
		if m.cancelling || m.onCancel == nil {
			return m, tea.Quit
		}
		m.cancelling = true
		m.message = "Cancelling..."
		m.onCancel()
		return m, nil

	case tea.WindowSizeMsg:
		if w := msg.Width - 20; w > 10 && w < m.width {
			m.width = w
		}
		return m, nil

	case spinner.TickMsg:
		if m.Done() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.elapsed = time.Since(m.startedAt)
		return m, cmd

	case EventMsg:
		return m.applyEvent(msg.Event)
	}
	return m, nil
}

func (m Model) applyEvent(event protocol.Event) (tea.Model, tea.Cmd) {
	switch e := event.(type) {
	case protocol.ProgressEvent:
		if e.RunID != m.runID {
			return m, nil
		}
		m.percentage = e.Percentage
		m.retrying = e.Retry
		if e.Message != "" {
			m.message = e.Message
		}

	case protocol.RunLifecycleEvent:
		if e.RunID != m.runID {
			return m, nil
		}
		switch e.Type {
		case protocol.RunStepStarted:
			m.stages = append(m.stages, Stage{Name: e.StepName, Status: StatusRunning})
		case protocol.RunStepCompleted:
			m.setStage(e.StepName, StatusCompleted)
		case protocol.RunStepFailed:
			m.setStage(e.StepName, StatusFailed)
		case protocol.RunCompleted:
			m.status = models.RunStatusCompleted
			m.percentage = 100
			m.finishStages(StatusCompleted)
			return m.finish()
		case protocol.RunFailed:
			m.status = models.RunStatusFailed
			m.errMsg = e.Error
			m.finishStages(StatusFailed)
			return m.finish()
		case protocol.RunCancelled:
			m.status = models.RunStatusCancelled
			m.finishStages(StatusFailed)
			return m.finish()
		}
	}
	return m, nil
}

func (m *Model) setStage(name string, status StageStatus) {
	for i := len(m.stages) - 1; i >= 0; i-- {
		if m.stages[i].Name == name {
			m.stages[i].Status = status
			return
		}
	}
	m.stages = append(m.stages, Stage{Name: name, Status: status})
}

// finishStages settles stages still marked running.
func (m *Model) finishStages(status StageStatus) {
	for i := range m.stages {
		if m.stages[i].Status == StatusRunning {
			m.stages[i].Status = status
		}
	}
}

func (m Model) finish() (tea.Model, tea.Cmd) {
	m.elapsed = time.Since(m.startedAt)
	return m, tea.Quit
}

var (
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	accent  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	success = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	failure = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warn    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	title   = lipgloss.NewStyle().Bold(true)
)

// View renders:
//
//	⣾ landing 3f2a9c1e  [▓▓▓▓▓▓░░░░░░] 45%  12s
//	  ✓ validate  ✓ structure  ● sections
//	  Gerando seção 3 de 7
func (m Model) View() string {
	var b strings.Builder

	head := m.spinner.View()
	switch m.status {
	case models.RunStatusCompleted:
		head = success.Render("✓")
	case models.RunStatusFailed:
		head = failure.Render("✗")
	case models.RunStatusCancelled:
		head = warn.Render("■")
	}

	fmt.Fprintf(&b, "%s %s %s  [%s] %3d%%  %s\n",
		head,
		title.Render(string(m.variant)),
		dim.Render(shortID(m.runID)),
		m.bar(),
		m.percentage,
		dim.Render(formatElapsed(m.elapsed)),
	)

	if len(m.stages) > 0 {
		parts := make([]string, len(m.stages))
		for i, s := range m.stages {
			switch s.Status {
			case StatusCompleted:
				parts[i] = success.Render("✓ " + s.Name)
			case StatusFailed:
				parts[i] = failure.Render("✗ " + s.Name)
			default:
				parts[i] = accent.Render("● " + s.Name)
			}
		}
		b.WriteString("  " + strings.Join(parts, "  ") + "\n")
	}

	switch {
	case m.status == models.RunStatusFailed && m.errMsg != "":
		b.WriteString("  " + failure.Render(m.errMsg) + "\n")
	case m.retrying:
		b.WriteString("  " + warn.Render("↻ "+m.message) + "\n")
	case m.message != "":
		b.WriteString("  " + dim.Render(m.message) + "\n")
	}
	return b.String()
}

func (m Model) bar() string {
	filled := (m.percentage * m.width) / 100
	if filled > m.width {
		filled = m.width
	}
	style := success
	if m.status == models.RunStatusFailed {
		style = failure
	}
	return style.Render(strings.Repeat("▓", filled)) + dim.Render(strings.Repeat("░", m.width-filled))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
