// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
)

// markdownStep asks gen for free-form Markdown. A reply wrapped entirely in
// one fence is unwrapped.
func markdownStep(ctx context.Context, gen providers.TextGenerator, req providers.TextRequest) (models.StepResult, error) {
	raw, err := gen.GenerateText(ctx, req)
	if err != nil {
		return models.StepResult{}, err
	}
	return models.MarkdownResult(stripMarkdownFence(raw)), nil
}

// imageStep runs one image generation. Never retried.
func imageStep(ctx context.Context, gen providers.ImageGenerator, prompt string) (models.StepResult, error) {
	bundle, err := gen.GenerateImage(ctx, prompt)
	if err != nil {
		return models.StepResult{}, err
	}
	return models.ImagesResult(bundle), nil
}
