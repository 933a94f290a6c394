// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/protocol"
	"github.com/noldarim/launchpad/internal/telemetry"
	"github.com/noldarim/launchpad/internal/tui/components/runprogress"
)

type runOptions struct {
	variant     string
	description string
	configPath  string
	requestFile string // --request: YAML request file
	model       string
	scope       string
	topic       string
	productName string
	audience    string
	orderBump   bool
	skipReview  bool
	images      stringList // --image, can be repeated
	urls        stringList // --url, can be repeated
	priorFile   string
	htmlFile    string
	outDir      string
	plain       bool // --plain: line output instead of the TUI
}

func runCommand(args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	return executeRun(opts)
}

func parseRunArgs(args []string) (*runOptions, error) {
	opts := &runOptions{}
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.variant = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	fs.StringVar(&opts.requestFile, "request", "", "Path to a request YAML file")
	fs.StringVar(&opts.model, "model", "", "Copywriting model override")
	fs.StringVar(&opts.scope, "scope", "", "Variations scope: section, component or both")
	fs.StringVar(&opts.topic, "topic", "", "Niche or topic (council, research, plan)")
	fs.StringVar(&opts.productName, "product", "", "Product name")
	fs.StringVar(&opts.audience, "audience", "", "Target audience")
	fs.BoolVar(&opts.orderBump, "order-bump", false, "Include an order bump offer")
	fs.BoolVar(&opts.skipReview, "skip-review", false, "Skip the HTML review pass (landing)")
	fs.Var(&opts.images, "image", "Reference image file, can be repeated")
	fs.Var(&opts.urls, "url", "Source URL, can be repeated")
	fs.StringVar(&opts.priorFile, "prior", "", "File with a previous output to refine")
	fs.StringVar(&opts.htmlFile, "html", "", "HTML file to extract a theme from")
	fs.StringVar(&opts.outDir, "out", "out", "Directory for the run output")
	fs.BoolVar(&opts.plain, "plain", false, "Print progress lines instead of the interactive view")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.description = strings.TrimSpace(strings.Join(fs.Args(), " "))

	if opts.variant == "" && opts.requestFile == "" {
		return nil, fmt.Errorf("variant required\n\nUsage:\n  %s run <variant> [flags] [description]\n\nVariants: %s", appName, variantNames())
	}
	return opts, nil
}

// buildRequest merges the request file with flags. Flags win.
func buildRequest(opts *runOptions) (models.Variant, models.PipelineRequest, error) {
	var req models.PipelineRequest
	variantName := opts.variant

	if opts.requestFile != "" {
		rf, err := LoadRequestFile(opts.requestFile)
		if err != nil {
			return "", req, err
		}
		if req, err = rf.ToRequest(); err != nil {
			return "", req, err
		}
		if variantName == "" {
			variantName = rf.Variant
		}
	}

	v, err := models.ParseVariant(variantName)
	if err != nil {
		return "", req, fmt.Errorf("%w (variants: %s)", err, variantNames())
	}

	setIf(&req.Description, opts.description)
	setIf(&req.Model, opts.model)
	setIf(&req.Topic, opts.topic)
	setIf(&req.ProductName, opts.productName)
	setIf(&req.Audience, opts.audience)
	if opts.scope != "" {
		req.Scope = models.Scope(opts.scope)
	}
	req.HasOrderBump = req.HasOrderBump || opts.orderBump
	req.SkipReview = req.SkipReview || opts.skipReview
	req.SourceURLs = append(req.SourceURLs, opts.urls...)

	images, err := loadImages(opts.images)
	if err != nil {
		return "", req, err
	}
	req.ReferenceImages = append(req.ReferenceImages, images...)

	if opts.priorFile != "" {
		data, err := os.ReadFile(opts.priorFile)
		if err != nil {
			return "", req, fmt.Errorf("failed to read prior artifact: %w", err)
		}
		req.PriorArtifact = string(data)
	}
	if opts.htmlFile != "" {
		data, err := os.ReadFile(opts.htmlFile)
		if err != nil {
			return "", req, fmt.Errorf("failed to read html file: %w", err)
		}
		req.RawHTML = string(data)
	}
	return v, req, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// needsForm reports whether the request lacks the text the variant needs.
func needsForm(v models.Variant, req models.PipelineRequest) bool {
	if v == models.VariantTheme {
		return false
	}
	return strings.TrimSpace(req.Subject()) == ""
}

// askRequest fills the description (and scope for variations) interactively.
func askRequest(v models.Variant, req *models.PipelineRequest) error {
	title := "Describe the product"
	switch v {
	case models.VariantCouncil, models.VariantResearch:
		title = "Niche or topic"
	}

	var text string
	fields := []huh.Field{
		huh.NewText().
			Title(title).
			Value(&text).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("cannot be empty")
				}
				return nil
			}),
	}

	scope := string(models.ScopeBoth)
	if v == models.VariantVariations && req.Scope == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("Scope").
			Options(
				huh.NewOption("Sections and components", string(models.ScopeBoth)),
				huh.NewOption("Sections only", string(models.ScopeSection)),
				huh.NewOption("Components only", string(models.ScopeComponent)),
			).
			Value(&scope))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		return fmt.Errorf("request form: %w", err)
	}

	switch v {
	case models.VariantCouncil, models.VariantResearch:
		req.Topic = strings.TrimSpace(text)
	default:
		req.Description = strings.TrimSpace(text)
	}
	if v == models.VariantVariations && req.Scope == "" {
		req.Scope = models.Scope(scope)
	}
	return nil
}

func executeRun(opts *runOptions) error {
	v, req, err := buildRequest(opts)
	if err != nil {
		return err
	}
	if needsForm(v, req) {
		if opts.plain {
			return fmt.Errorf("a description is required for %s runs", v)
		}
		if err := askRequest(v, &req); err != nil {
			return err
		}
	}
	if err := req.Validate(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	cfg, err := config.NewConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to the configured outputs only, keeping the terminal clean
	if err := logger.Initialize(&cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.CloseGlobal()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	printRunBanner(v, req.Subject())

	cmdChan := make(chan protocol.Command, 10)
	eventChan := make(chan protocol.Event, 100)

	orch, err := orchestrator.New(cmdChan, eventChan, cfg)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	go orch.Run(ctx)

	cmdChan <- protocol.StartRunCommand{Metadata: protocol.NewMetadata(""), Variant: v, Request: req}
	runID, err := waitForStart(ctx, eventChan, 30*time.Second)
	if err != nil {
		orch.Close()
		return err
	}
	getLog().Info().Str("run_id", runID).Str("variant", string(v)).Msg("Run started")
	fmt.Printf("▸ Run started: %s\n\n", runID)

	requestCancel := func() {
		cmdChan <- protocol.CancelRunCommand{Metadata: protocol.NewMetadata(runID)}
	}

	var status models.RunStatus
	var failure string
	if opts.plain {
		status, failure = followPlain(ctx, os.Stdout, eventChan, runID, requestCancel)
	} else {
		status, failure, err = followTUI(eventChan, runID, v, requestCancel)
		if err != nil {
			closeDraining(orch, eventChan)
			return err
		}
	}

	outcome, ok := orch.RunService().Outcome(runID)
	closeDraining(orch, eventChan)

	switch status {
	case models.RunStatusCompleted:
		if !ok {
			return fmt.Errorf("run %s completed without output", runID)
		}
		written, err := writeOutputs(opts.outDir, runID, outcome)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, outcome.Output, written)
		return nil
	case models.RunStatusCancelled:
		fmt.Println("▸ Run cancelled")
		return nil
	case models.RunStatusFailed:
		return fmt.Errorf("run failed: %s", failure)
	default:
		return fmt.Errorf("run %s interrupted", runID)
	}
}

// closeDraining closes the orchestrator while discarding events, so runs
// cancelled by the close can still report.
func closeDraining(orch *orchestrator.Orchestrator, eventChan <-chan protocol.Event) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-eventChan:
			case <-done:
				return
			}
		}
	}()
	if err := orch.Close(); err != nil {
		getLog().Warn().Err(err).Msg("Orchestrator shutdown error")
	}
	close(done)
}

// waitForStart returns the ID of the run the orchestrator just started.
func waitForStart(ctx context.Context, eventChan <-chan protocol.Event, timeout time.Duration) (string, error) {
	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("timeout waiting for run to start")
		case event := <-eventChan:
			switch e := event.(type) {
			case protocol.RunLifecycleEvent:
				if e.Type == protocol.RunStarted {
					return e.RunID, nil
				}
			case protocol.ErrorEvent:
				return "", fmt.Errorf("error: %s - %s", e.Message, e.Context)
			}
		}
	}
}

// followTUI renders the run until it ends. Ctrl+C requests cancellation;
// a second Ctrl+C quits without waiting.
func followTUI(eventChan <-chan protocol.Event, runID string, v models.Variant, requestCancel func()) (models.RunStatus, string, error) {
	model := runprogress.New(runID, v).SetCancelRequest(requestCancel)
	p := tea.NewProgram(model)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case event := <-eventChan:
				p.Send(runprogress.EventMsg{Event: event})
			}
		}
	}()

	final, err := p.Run()
	if err != nil {
		return "", "", fmt.Errorf("TUI error: %w", err)
	}
	m, ok := final.(runprogress.Model)
	if !ok {
		return "", "", nil
	}
	return m.Status(), m.Error(), nil
}

// followPlain prints one line per event until the run ends. SIGINT requests
// cancellation.
func followPlain(ctx context.Context, w io.Writer, eventChan <-chan protocol.Event, runID string, requestCancel func()) (models.RunStatus, string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return "", ""
		case <-sigChan:
			fmt.Fprintf(w, "\n▸ Cancelling run %s...\n", truncateID(runID))
			requestCancel()
		case event := <-eventChan:
			if status, failure, done := printEvent(w, event, runID); done {
				return status, failure
			}
		}
	}
}

// printEvent writes one line for event and reports terminal states.
func printEvent(w io.Writer, event protocol.Event, runID string) (models.RunStatus, string, bool) {
	switch e := event.(type) {
	case protocol.ProgressEvent:
		if e.RunID != runID || e.Message == "" {
			return "", "", false
		}
		marker := "▸"
		if e.Retry {
			marker = "↻"
		}
		fmt.Fprintf(w, "%s %3d%% [%s] %s\n", marker, e.Percentage, e.Stage, e.Message)
	case protocol.RunLifecycleEvent:
		if e.RunID != runID {
			return "", "", false
		}
		switch e.Type {
		case protocol.RunStepFailed:
			fmt.Fprintf(w, "✗ %s: %s\n", e.StepName, e.Error)
		case protocol.RunCompleted:
			fmt.Fprintln(w, "✓ Run completed")
			return models.RunStatusCompleted, "", true
		case protocol.RunFailed:
			return models.RunStatusFailed, e.Error, true
		case protocol.RunCancelled:
			return models.RunStatusCancelled, "", true
		}
	case protocol.ErrorEvent:
		if e.RunID == runID {
			fmt.Fprintf(w, "✗ %s (%s)\n", e.Message, e.Context)
		}
	}
	return "", "", false
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func printRunBanner(v models.Variant, subject string) {
	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  %s run %s\n", appName, v)
	if subject != "" {
		fmt.Printf("  Subject: %s\n", truncateForDisplay(subject, 50))
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

func truncateForDisplay(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
