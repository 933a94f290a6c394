// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"fmt"

	"github.com/noldarim/launchpad/internal/orchestrator/document"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

// Outcome is what one run produced. Document is only set by the production
// workflow.
type Outcome struct {
	Output   *models.PipelineOutput
	Document *document.Bundle
}

// Run dispatches to the workflow for variant v.
func (p *Pipelines) Run(ctx context.Context, v models.Variant, req models.PipelineRequest, fn ProgressFunc) (*Outcome, error) {
	var (
		out *models.PipelineOutput
		doc *document.Bundle
		err error
	)
	switch v {
	case models.VariantVariations:
		out, err = p.GenerateVariations(ctx, req, fn)
	case models.VariantLanding:
		out, err = p.GenerateFullLandingPage(ctx, req, fn)
	case models.VariantCouncil:
		out, err = p.RunAICouncil(ctx, req, fn)
	case models.VariantProduction:
		out, doc, err = p.RunProductionWorkflow(ctx, req, fn)
	case models.VariantTheme:
		out, err = p.ExtractTheme(ctx, req, fn)
	case models.VariantOrderBumps:
		out, err = p.GenerateOrderBumps(ctx, req, fn)
	case models.VariantResearch:
		out, err = p.RunResearch(ctx, req, fn)
	case models.VariantPlan:
		out, err = p.GenerateProductionPlan(ctx, req, fn)
	default:
		return nil, fmt.Errorf("unknown variant %q", v)
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Output: out, Document: doc}, nil
}
