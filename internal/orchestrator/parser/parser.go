// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parser pulls JSON out of model responses that are supposed to be
// JSON but often arrive wrapped in Markdown fences or surrounded by prose.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetPipelineLogger().With().Str("component", "parser").Logger()
		log = &l
	})
	return log
}

// Existing prompts depend on these exact patterns; do not tighten them.
var (
	fencePattern = regexp.MustCompile("```(json)?\\s*([\\s\\S]*?)```")
	bracePattern = regexp.MustCompile(`\{[\s\S]*\}`)
)

// Tier identifies which extraction strategy produced a value.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierFenced
	TierBrace
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierFenced:
		return "fenced"
	case TierBrace:
		return "brace"
	default:
		return "unknown"
	}
}

// Result is a successfully extracted value.
type Result struct {
	Value any
	Tier  Tier
}

// ParseError is returned when no strategy yields valid JSON.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no JSON found in model response (%d bytes)", len(e.Raw))
}

// SchemaError is returned when extracted JSON does not have the expected shape.
type SchemaError struct {
	Reason string
	Raw    string
}

func (e *SchemaError) Error() string {
	return "unexpected response shape: " + e.Reason
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Extract tries, in order: the whole text, the first fenced code block, and
// the span from the first '{' to the last '}'. The same input always gives
// the same result.
func Extract(raw string) (Result, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return found(v, TierDirect), nil
	}

	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[2]), &v); err == nil {
			return found(v, TierFenced), nil
		}
	}

	if span := bracePattern.FindString(raw); span != "" {
		if err := json.Unmarshal([]byte(span), &v); err == nil {
			return found(v, TierBrace), nil
		}
	}

	getLog().Debug().Int("bytes", len(raw)).Msg("No JSON found in response")
	return Result{}, &ParseError{Raw: raw}
}

func found(v any, tier Tier) Result {
	ev := getLog().Debug()
	if tier != TierDirect {
		// Fallback tiers mean the prompt is not being followed exactly.
		ev = getLog().Info()
	}
	ev.Str("tier", tier.String()).Msg("Extracted JSON from response")
	return Result{Value: v, Tier: tier}
}

// Step extracts JSON from raw as a step result.
func Step(raw string) (models.StepResult, error) {
	res, err := Extract(raw)
	if err != nil {
		return models.StepResult{}, err
	}
	return models.JSONResult(res.Value), nil
}

// Fold decodes the JSON payload of step into T and runs validate on the
// result. raw is the response the step came from, kept on errors. validate
// may be nil.
func Fold[T any](step models.StepResult, raw string, validate func(T) error) (T, error) {
	var zero T
	if step.Kind != models.StepKindJSON {
		return zero, &SchemaError{Reason: fmt.Sprintf("expected a json step, got %s", step.Kind), Raw: raw}
	}

	b, err := json.Marshal(step.JSON)
	if err != nil {
		return zero, &SchemaError{Reason: err.Error(), Raw: raw}
	}

	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, &SchemaError{Reason: describe(err), Raw: raw}
	}

	if validate != nil {
		if err := validate(out); err != nil {
			return zero, &SchemaError{Reason: err.Error(), Raw: raw}
		}
	}
	return out, nil
}

// Decode is Step followed by Fold.
func Decode[T any](raw string, validate func(T) error) (T, error) {
	step, err := Step(raw)
	if err != nil {
		var zero T
		return zero, err
	}
	return Fold(step, raw, validate)
}

func describe(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		field := ute.Field
		if field == "" {
			field = "root"
		}
		return fmt.Sprintf("field %s: expected %s, got %s", field, ute.Type, ute.Value)
	}
	return err.Error()
}

// Snippet shortens raw model output to n runes for logs and error contexts.
func Snippet(raw string, n int) string {
	raw = strings.TrimSpace(raw)
	runes := []rune(raw)
	if len(runes) <= n {
		return raw
	}
	return string(runes[:n]) + "..."
}
