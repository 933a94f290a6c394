// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/noldarim/launchpad/internal/orchestrator/providers"

func startSpan(ctx context.Context, provider, operation, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
		),
	)
}

// endSpan records err on span and ends it. Aborts are not errors.
func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
	case IsAbort(err):
		span.SetAttributes(attribute.Bool("aborted", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
