// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipelines runs the staged generation workflows. Each workflow
// validates its request, calls providers step by step, reports progress and
// returns a frozen output. Cancellation is checked before every step.
package pipelines

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/parser"
	"github.com/noldarim/launchpad/internal/orchestrator/prompts"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetPipelineLogger()
		log = &l
	})
	return log
}

const tracerName = "github.com/noldarim/launchpad/internal/orchestrator/pipelines"

// Clients are the providers a pipeline calls.
type Clients struct {
	// Copywriter writes copy, HTML and JSON plans (Claude via OpenRouter).
	Copywriter providers.VisionGenerator
	// Analyst reads reference images (Gemini).
	Analyst providers.VisionGenerator
	// Illustrator draws content images (FLUX).
	Illustrator providers.ImageGenerator
	// Previewer draws theme previews (Gemini image model).
	Previewer providers.ImageGenerator
	// Researcher answers market research questions (Perplexity).
	Researcher providers.Researcher
}

func (c Clients) validate() error {
	switch {
	case c.Copywriter == nil:
		return fmt.Errorf("copywriter client is required")
	case c.Analyst == nil:
		return fmt.Errorf("analyst client is required")
	case c.Illustrator == nil:
		return fmt.Errorf("illustrator client is required")
	case c.Previewer == nil:
		return fmt.Errorf("previewer client is required")
	case c.Researcher == nil:
		return fmt.Errorf("researcher client is required")
	}
	return nil
}

// Pipelines runs workflows against a fixed set of clients.
type Pipelines struct {
	clients Clients
	prompts *prompts.Builder
	cfg     config.PipelineConfig
}

// New creates a Pipelines.
func New(clients Clients, builder *prompts.Builder, cfg config.PipelineConfig) (*Pipelines, error) {
	if err := clients.validate(); err != nil {
		return nil, err
	}
	if builder == nil {
		builder = prompts.NewBuilder(prompts.DefaultRules())
	}
	if cfg.SchemaAttempts < 1 {
		cfg.SchemaAttempts = 1
	}
	if cfg.ImageConcurrency < 1 {
		cfg.ImageConcurrency = 1
	}
	if cfg.VariationCount < 1 {
		cfg.VariationCount = 3
	}
	if cfg.LandingSections < 1 {
		cfg.LandingSections = 20
	}
	return &Pipelines{clients: clients, prompts: builder, cfg: cfg}, nil
}

// model returns the model a request asked for, or the configured default.
func (p *Pipelines) model(req models.PipelineRequest) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return p.cfg.DefaultModel
}

// run carries the per-run state shared by every step of one workflow.
type run struct {
	ctx      context.Context
	variant  models.Variant
	req      models.PipelineRequest
	out      *models.PipelineOutput
	progress *Progress
	log      zerolog.Logger
}

func (p *Pipelines) begin(ctx context.Context, v models.Variant, req models.PipelineRequest, fn ProgressFunc) (*run, error) {
	r := &run{
		variant:  v,
		req:      req,
		out:      models.NewOutput(v, p.model(req)),
		progress: NewProgress(fn),
		log:      getLog().With().Str("variant", string(v)).Logger(),
	}
	// Provider retries surface as retry events of whatever stage is running.
	r.ctx = providers.WithRetryObserver(ctx, func(provider string, attempt int, err error, wait time.Duration) {
		r.progress.Retry(fmt.Sprintf("%s indisponível, tentando novamente em %s", provider, wait.Round(time.Millisecond)))
	})

	if err := providers.CheckAbort(ctx); err != nil {
		return nil, err
	}
	r.progress.Span(StageValidate, 0, 0, "Validando pedido")
	if err := req.Validate(v); err != nil {
		return nil, fmt.Errorf("invalid %s request: %w", v, err)
	}
	r.log.Info().Str("model", r.out.Meta.Model).Msg("Pipeline started")
	return r, nil
}

// step checks for cancellation, reports the stage and runs fn inside a span.
func (r *run) step(stage Stage, lo, hi int, msg string, fn func(ctx context.Context) error) error {
	if err := providers.CheckAbort(r.ctx); err != nil {
		return err
	}
	r.progress.Span(stage, lo, hi, msg)

	ctx, span := otel.Tracer(tracerName).Start(r.ctx, "pipeline."+string(stage),
		trace.WithAttributes(
			attribute.String("pipeline.variant", string(r.variant)),
			attribute.String("pipeline.stage", string(stage)),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	switch {
	case err == nil:
		r.log.Debug().Str("stage", string(stage)).Dur("took", time.Since(start)).Msg("Stage completed")
	case providers.IsAbort(err):
		span.SetAttributes(attribute.Bool("aborted", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Error().Err(err).Str("stage", string(stage)).Msg("Stage failed")
	}
	return err
}

// finish freezes the output.
func (r *run) finish() *models.PipelineOutput {
	r.progress.Done("Concluído")
	out := r.out.Freeze()
	r.log.Info().
		Int("sections", out.Meta.SectionCount).
		Int("warnings", len(out.Meta.Warnings)).
		Dur("took", out.Meta.CompletedAt.Sub(out.Meta.StartedAt)).
		Msg("Pipeline completed")
	return out
}

// warn records a degraded step in the output and the log.
func (r *run) warn(stage Stage, err error, msg string) {
	r.log.Warn().Err(err).Str("stage", string(stage)).Msg(msg)
	if text := providers.UserMessage(err); text != "" {
		msg = msg + ": " + text
	}
	r.out.Warn(msg)
}

func textRequest(pr prompts.Prompt, model string) providers.TextRequest {
	return providers.TextRequest{System: pr.System, User: pr.User, Model: model}
}

// generateJSON asks for JSON and decodes it into T, regenerating when the
// answer cannot be parsed or fails validate. Provider errors are returned
// as-is.
func generateJSON[T any](ctx context.Context, r *run, attempts int, what string, call func(ctx context.Context) (string, error), validate func(T) error) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if err := providers.CheckAbort(ctx); err != nil {
			return zero, err
		}
		raw, err := call(ctx)
		if err != nil {
			return zero, err
		}

		step, err := parser.Step(raw)
		if err == nil {
			var v T
			if v, err = parser.Fold(step, raw, validate); err == nil {
				return v, nil
			}
		}
		if !parser.IsParseError(err) && !parser.IsSchemaError(err) {
			return zero, err
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("%s: %w", what, err)
		}

		r.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("response", parser.Snippet(raw, 200)).
			Msg("Response did not match expected shape, regenerating")
		r.progress.Retry(attemptMessage(what, attempt+1, attempts))
	}
}

var htmlFencePattern = regexp.MustCompile("```(?:html)?\\s*([\\s\\S]*?)```")

// stripFence returns the body of the first fenced block in raw, or raw
// itself when there is none.
func stripFence(raw string) string {
	if m := htmlFencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

const doctype = "<!DOCTYPE html>"

// isFullDocument reports whether html is a complete document: it starts with
// the doctype and closes the html element.
func isFullDocument(html string) bool {
	html = strings.TrimSpace(html)
	if len(html) < len(doctype) || !strings.EqualFold(html[:len(doctype)], doctype) {
		return false
	}
	return strings.Contains(strings.ToLower(html), "</html>")
}

func nonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is empty", field)
	}
	return nil
}
