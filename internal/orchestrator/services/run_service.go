// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/document"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/pipelines"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"github.com/noldarim/launchpad/internal/protocol"

	"github.com/rs/zerolog"
)

var (
	runLog     *zerolog.Logger
	runLogOnce sync.Once
)

func getRunLog() *zerolog.Logger {
	runLogOnce.Do(func() {
		l := logger.GetPipelineLogger().With().Str("component", "run_service").Logger()
		runLog = &l
	})
	return runLog
}

var (
	// ErrInvalidRequest wraps validation failures of run requests and artifacts.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRunNotActive is returned by Cancel for runs that already ended.
	ErrRunNotActive = errors.New("run is not active")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("run service closed")
)

// Runner executes one pipeline variant.
type Runner interface {
	Run(ctx context.Context, v models.Variant, req models.PipelineRequest, fn pipelines.ProgressFunc) (*pipelines.Outcome, error)
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// RunService starts pipeline runs in the background, streams their progress
// as protocol events and persists their results.
type RunService struct {
	runner Runner
	data   *DataService
	events chan<- protocol.Event

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]*activeRun
	// Outcomes keep the full output (images included) and the document
	// bundle, which are not stored in the database.
	outcomes map[string]*pipelines.Outcome
	closed   bool
}

// NewRunService creates a run service. Events are delivered on events with
// blocking sends; the consumer must keep draining it.
func NewRunService(runner Runner, data *DataService, events chan<- protocol.Event) *RunService {
	ctx, stop := context.WithCancel(context.Background())
	return &RunService{
		runner:   runner,
		data:     data,
		events:   events,
		ctx:      ctx,
		stop:     stop,
		active:   make(map[string]*activeRun),
		outcomes: make(map[string]*pipelines.Outcome),
	}
}

// Start validates req, records a new run and executes it in the background.
// The run is not bound to ctx; use Cancel to stop it.
func (s *RunService) Start(ctx context.Context, v models.Variant, req models.PipelineRequest) (*models.PipelineRun, error) {
	if _, err := models.ParseVariant(string(v)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := req.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := time.Now().UTC()
	run := &models.PipelineRun{
		ID:          newID(),
		Variant:     v,
		Status:      models.RunStatusRunning,
		Description: req.Subject(),
		Model:       req.Model,
		Stage:       string(pipelines.StageValidate),
		StartedAt:   &now,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := s.data.SaveRun(ctx, run); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	s.active[run.ID] = ar
	s.wg.Add(1)
	s.mu.Unlock()

	getRunLog().Info().Str("run_id", run.ID).Str("variant", string(v)).Msg("Run started")
	started := *run
	s.emit(protocol.RunLifecycleEvent{
		Metadata: protocol.NewMetadata(run.ID),
		Type:     protocol.RunStarted,
		RunID:    run.ID,
		Variant:  v,
		Run:      &started,
	})

	go s.execute(runCtx, ar, run, req)
	return &started, nil
}

// execute runs the pipeline and records its terminal state.
func (s *RunService) execute(ctx context.Context, ar *activeRun, run *models.PipelineRun, req models.PipelineRequest) {
	defer s.wg.Done()
	defer close(ar.done)
	defer ar.cancel()

	tracker := &stepTracker{svc: s, run: run}
	outcome, err := s.runner.Run(ctx, run.Variant, req, tracker.onUpdate)

	// Results are stored even when the run itself was cancelled.
	store := context.WithoutCancel(ctx)
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Stage = tracker.lastStage()
	run.Percentage = tracker.lastPercentage()

	switch {
	case err == nil:
		run.Status = models.RunStatusCompleted
		run.Output = models.OutputJSON{PipelineOutput: models.StripImages(outcome.Output)}
		s.mu.Lock()
		s.outcomes[run.ID] = outcome
		s.mu.Unlock()
		s.persistArtifacts(store, run, req, outcome.Output)
		s.saveTerminal(store, run)
		s.release(run.ID)
		getRunLog().Info().Str("run_id", run.ID).Int("warnings", len(outcome.Output.Meta.Warnings)).Msg("Run completed")
		s.emitTerminal(protocol.RunCompleted, run, "")

	case providers.IsAbort(err):
		run.Status = models.RunStatusCancelled
		s.saveTerminal(store, run)
		s.release(run.ID)
		getRunLog().Info().Str("run_id", run.ID).Str("stage", run.Stage).Msg("Run cancelled")
		s.emitTerminal(protocol.RunCancelled, run, "")

	default:
		msg := providers.UserMessage(err)
		run.Status = models.RunStatusFailed
		run.ErrorMessage = msg
		s.saveTerminal(store, run)
		s.release(run.ID)
		getRunLog().Error().Err(err).Str("run_id", run.ID).Str("stage", run.Stage).Msg("Run failed")
		s.emit(protocol.RunLifecycleEvent{
			Metadata: protocol.NewMetadata(run.ID),
			Type:     protocol.RunStepFailed,
			RunID:    run.ID,
			Variant:  run.Variant,
			StepName: run.Stage,
			Error:    msg,
		})
		s.emitTerminal(protocol.RunFailed, run, msg)
		s.emit(protocol.ErrorEvent{
			Metadata: protocol.NewMetadata(run.ID),
			RunID:    run.ID,
			Message:  msg,
			Context:  fmt.Sprintf("%s run failed at %s", run.Variant, run.Stage),
		})
	}
}

// release drops the run from the active set once its result is stored.
func (s *RunService) release(runID string) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
}

func (s *RunService) saveTerminal(ctx context.Context, run *models.PipelineRun) {
	if err := s.data.SaveRun(ctx, run); err != nil {
		getRunLog().Error().Err(err).Str("run_id", run.ID).Msg("Failed to save run result")
	}
}

func (s *RunService) emitTerminal(t protocol.RunLifecycleType, run *models.PipelineRun, msg string) {
	snapshot := *run
	s.emit(protocol.RunLifecycleEvent{
		Metadata: protocol.NewMetadata(run.ID),
		Type:     t,
		RunID:    run.ID,
		Variant:  run.Variant,
		Error:    msg,
		Run:      &snapshot,
	})
}

// persistArtifacts saves the records a completed run produced. Failures are
// logged; the run itself still counts as completed.
func (s *RunService) persistArtifacts(ctx context.Context, run *models.PipelineRun, req models.PipelineRequest, out *models.PipelineOutput) {
	var err error
	switch run.Variant {
	case models.VariantLanding, models.VariantVariations:
		_, err = s.data.SaveLandingPage(ctx, &models.LandingPage{
			Title:       runTitle(req),
			Description: req.Description,
			Model:       out.Meta.Model,
			Sections:    models.SectionList(out.Sections),
			RunID:       run.ID,
		})
	case models.VariantTheme:
		if out.Theme != nil {
			_, err = s.data.SaveTheme(ctx, *out.Theme, run.ID)
		}
	case models.VariantOrderBumps:
		_, err = s.data.SaveOrderBumps(ctx, out.OrderBumps, run.ID)
	}
	if err != nil {
		getRunLog().Error().Err(err).Str("run_id", run.ID).Str("variant", string(run.Variant)).Msg("Failed to save run artifacts")
	}
}

func runTitle(req models.PipelineRequest) string {
	if name := strings.TrimSpace(req.ProductName); name != "" {
		return name
	}
	title := strings.TrimSpace(req.Subject())
	if r := []rune(title); len(r) > 80 {
		title = string(r[:80])
	}
	return title
}

func (s *RunService) emit(e protocol.Event) {
	if s.events == nil {
		return
	}
	s.events <- e
}

// Cancel stops an active run. The run ends with status cancelled.
func (s *RunService) Cancel(ctx context.Context, runID string) error {
	s.mu.Lock()
	ar, ok := s.active[runID]
	s.mu.Unlock()
	if ok {
		getRunLog().Info().Str("run_id", runID).Msg("Cancelling run")
		ar.cancel()
		return nil
	}
	if _, err := s.data.GetRun(ctx, runID); err != nil {
		return err
	}
	return fmt.Errorf("run %s: %w", runID, ErrRunNotActive)
}

// Wait blocks until the run finishes or ctx is done. Runs that are not
// active return immediately.
func (s *RunService) Wait(ctx context.Context, runID string) error {
	s.mu.Lock()
	ar, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ar.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the stored run.
func (s *RunService) Get(ctx context.Context, runID string) (*models.PipelineRun, error) {
	return s.data.GetRun(ctx, runID)
}

// List returns stored runs newest first.
func (s *RunService) List(ctx context.Context, limit int) ([]*models.PipelineRun, error) {
	return s.data.ListRuns(ctx, limit)
}

// Outcome returns the in-memory result of a run completed by this process.
func (s *RunService) Outcome(runID string) (*pipelines.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[runID]
	return o, ok
}

// Document returns the document bundle of a completed production run.
func (s *RunService) Document(runID string) (*document.Bundle, bool) {
	o, ok := s.Outcome(runID)
	if !ok || o.Document == nil {
		return nil, false
	}
	return o.Document, true
}

// Active reports whether runID is still executing.
func (s *RunService) Active(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[runID]
	return ok
}

// Close cancels every active run and waits for them to finish.
func (s *RunService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}

// stepTracker turns pipeline updates into protocol events and step
// lifecycle events.
type stepTracker struct {
	svc *RunService
	run *models.PipelineRun

	mu    sync.Mutex
	stage pipelines.Stage
	pct   int
}

func (t *stepTracker) onUpdate(u pipelines.Update) {
	t.mu.Lock()
	prev := t.stage
	t.stage = u.Stage
	t.pct = u.Percentage
	t.mu.Unlock()

	s, runID := t.svc, t.run.ID
	if u.StepStart {
		if prev != "" && prev != u.Stage {
			s.emit(protocol.RunLifecycleEvent{
				Metadata: protocol.NewMetadata(runID),
				Type:     protocol.RunStepCompleted,
				RunID:    runID,
				Variant:  t.run.Variant,
				StepName: string(prev),
			})
		}
		if u.Stage != pipelines.StageDone {
			s.emit(protocol.RunLifecycleEvent{
				Metadata: protocol.NewMetadata(runID),
				Type:     protocol.RunStepStarted,
				RunID:    runID,
				Variant:  t.run.Variant,
				StepName: string(u.Stage),
			})
		}
		if err := s.data.UpdateRunProgress(s.ctx, runID, string(u.Stage), u.Percentage); err != nil {
			getRunLog().Warn().Err(err).Str("run_id", runID).Msg("Failed to record run progress")
		}
	}

	s.emit(protocol.ProgressEvent{
		Metadata:   protocol.NewMetadata(runID),
		RunID:      runID,
		Stage:      string(u.Stage),
		Message:    u.Message,
		Percentage: u.Percentage,
		Retry:      u.Retry,
	})
}

func (t *stepTracker) lastStage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.stage)
}

func (t *stepTracker) lastPercentage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pct
}
