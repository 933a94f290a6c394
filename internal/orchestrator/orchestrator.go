// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/pipelines"
	"github.com/noldarim/launchpad/internal/orchestrator/prompts"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"github.com/noldarim/launchpad/internal/orchestrator/services"
	"github.com/noldarim/launchpad/internal/protocol"

	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetPipelineLogger().With().Str("component", "orchestrator").Logger()
		log = &l
	})
	return log
}

// Orchestrator owns the services and answers commands from the CLI and the
// API server. Events for every run are written to eventChan.
type Orchestrator struct {
	cmdChan     <-chan protocol.Command
	eventChan   chan<- protocol.Event
	dataService *services.DataService
	runService  *services.RunService
	config      *config.AppConfig
}

// New creates a new orchestrator instance with real provider clients.
func New(cmdChan <-chan protocol.Command, eventChan chan<- protocol.Event, cfg *config.AppConfig) (*Orchestrator, error) {
	dataService, err := services.NewDataService(cfg)
	if err != nil {
		return nil, err
	}

	runner, err := NewPipelines(cfg, providers.NewHTTPClient())
	if err != nil {
		dataService.Close()
		return nil, err
	}

	return NewWithRunner(cmdChan, eventChan, cfg, dataService, runner), nil
}

// NewWithRunner creates an orchestrator around an existing data service and
// runner. Runs left unfinished by a previous process are marked failed.
func NewWithRunner(cmdChan <-chan protocol.Command, eventChan chan<- protocol.Event, cfg *config.AppConfig, data *services.DataService, runner services.Runner) *Orchestrator {
	if err := data.RecoverInterruptedRuns(context.Background()); err != nil {
		getLog().Warn().Err(err).Msg("Could not recover interrupted runs")
	}
	return &Orchestrator{
		cmdChan:     cmdChan,
		eventChan:   eventChan,
		dataService: data,
		runService:  services.NewRunService(runner, data, eventChan),
		config:      cfg,
	}
}

// NewClients builds the provider clients named in cfg.
func NewClients(cfg *config.AppConfig, httpClient *http.Client) pipelines.Clients {
	p := cfg.Providers
	gemini := providers.NewGeminiClient(p.Gemini, cfg.Retry, httpClient)
	return pipelines.Clients{
		Copywriter:  providers.NewOpenRouterClient(p.OpenRouter, cfg.Retry, httpClient),
		Analyst:     gemini,
		Illustrator: providers.NewFluxClient(p.Flux, httpClient),
		Previewer:   gemini,
		Researcher:  providers.NewPerplexityClient(p.Perplexity, cfg.Retry, httpClient),
	}
}

// NewPipelines builds the pipeline runner, loading prompt rules from
// pipeline.rules_path when set.
func NewPipelines(cfg *config.AppConfig, httpClient *http.Client) (*pipelines.Pipelines, error) {
	rules := prompts.DefaultRules()
	if path := cfg.Pipeline.RulesPath; path != "" {
		loaded, err := prompts.LoadRules(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt rules: %w", err)
		}
		rules = loaded
		getLog().Info().Str("path", path).Msg("Loaded prompt rules")
	}

	p, err := pipelines.New(NewClients(cfg, httpClient), prompts.NewBuilder(rules), cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipelines: %w", err)
	}
	return p, nil
}

// RunService returns the run service for direct access (e.g. by the API server).
func (o *Orchestrator) RunService() *services.RunService {
	return o.runService
}

// DataService returns the data service for direct read access (e.g. by the API server).
func (o *Orchestrator) DataService() *services.DataService {
	return o.dataService
}

// Run starts the orchestrator's main loop
func (o *Orchestrator) Run(ctx context.Context) {
	getLog().Info().Msg("Orchestrator started")
	for {
		select {
		case <-ctx.Done():
			getLog().Info().Err(ctx.Err()).Msg("Orchestrator shutting down")
			return
		case cmd, ok := <-o.cmdChan:
			if !ok {
				getLog().Info().Msg("Command channel closed")
				return
			}
			getLog().Debug().Str("command_type", fmt.Sprintf("%T", cmd)).Msg("Processing command")
			o.handleCommand(ctx, cmd)
		}
	}
}

// handleCommand processes one command. Failures are reported as ErrorEvents.
func (o *Orchestrator) handleCommand(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.StartRunCommand:
		o.handleStartRun(ctx, c)
	case protocol.CancelRunCommand:
		o.handleCancelRun(ctx, c)
	case protocol.LoadRunsCommand:
		o.handleLoadRuns(ctx, c)
	default:
		getLog().Warn().Str("command_type", fmt.Sprintf("%T", cmd)).Msg("Unknown command type")
	}
}

func (o *Orchestrator) handleStartRun(ctx context.Context, cmd protocol.StartRunCommand) {
	// The started lifecycle event is emitted by the run service.
	if _, err := o.runService.Start(ctx, cmd.Variant, cmd.Request); err != nil {
		o.eventChan <- protocol.ErrorEvent{
			Metadata: cmd.Metadata,
			Message:  fmt.Sprintf("Failed to start %s run", cmd.Variant),
			Context:  err.Error(),
		}
	}
}

func (o *Orchestrator) handleCancelRun(ctx context.Context, cmd protocol.CancelRunCommand) {
	err := o.runService.Cancel(ctx, cmd.RunID)
	if err == nil || errors.Is(err, services.ErrRunNotActive) {
		return
	}
	o.eventChan <- protocol.ErrorEvent{
		Metadata: cmd.Metadata,
		RunID:    cmd.RunID,
		Message:  "Failed to cancel run " + cmd.RunID,
		Context:  err.Error(),
	}
}

func (o *Orchestrator) handleLoadRuns(ctx context.Context, cmd protocol.LoadRunsCommand) {
	runs, err := o.runService.List(ctx, cmd.Limit)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to load runs")
		o.eventChan <- protocol.ErrorEvent{Metadata: cmd.Metadata, Message: "Failed to load runs", Context: err.Error()}
		return
	}
	o.eventChan <- protocol.RunsLoadedEvent{Metadata: cmd.Metadata, Runs: runs}
}

// Close stops active runs and closes the database.
func (o *Orchestrator) Close() error {
	getLog().Info().Msg("Shutting down orchestrator...")
	var errs []error

	o.runService.Close()

	if closeErr := o.dataService.Close(); closeErr != nil {
		getLog().Error().Err(closeErr).Msg("Error closing data service")
		errs = append(errs, closeErr)
	}

	getLog().Info().Msg("Orchestrator shutdown complete")
	return errors.Join(errs...)
}
