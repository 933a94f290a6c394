// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

// TextRequest is one prompt for a text model.
type TextRequest struct {
	System      string
	User        string
	Model       string // Overrides the client's configured model when set
	Temperature float64
	MaxTokens   int
}

// TextGenerator returns raw model text, usually handed to the parser.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// VisionGenerator is a TextGenerator that also looks at images.
type VisionGenerator interface {
	TextGenerator
	GenerateWithImages(ctx context.Context, req TextRequest, images []models.InlineImage) (string, error)
}

// ImageGenerator creates images from a prompt. Implementations never retry.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*models.ImageBundle, error)
}

// Researcher answers market-research queries with sources.
type Researcher interface {
	Research(ctx context.Context, req TextRequest) (*models.Research, error)
}
