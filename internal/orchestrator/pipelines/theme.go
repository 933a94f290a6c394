// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"errors"
	"fmt"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
)

type themeResponse struct {
	Name   string              `json:"name"`
	Tokens []models.ThemeToken `json:"tokens"`
}

func validateTheme(t themeResponse) error {
	if len(t.Tokens) == 0 {
		return errors.New("no tokens")
	}
	for i, tok := range t.Tokens {
		if err := tok.Validate(); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
	}
	return nil
}

// ExtractTheme reads design tokens from reference images or raw HTML, then
// tries to draw a preview. A failed preview is recorded as a warning.
func (p *Pipelines) ExtractTheme(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantTheme, req, fn)
	if err != nil {
		return nil, err
	}

	err = r.step(StageTheme, 5, 60, "Extraindo o tema visual", func(ctx context.Context) error {
		pr, err := p.prompts.ThemeExtraction(req)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "tema", func(ctx context.Context) (string, error) {
			return p.clients.Analyst.GenerateWithImages(ctx, textRequest(pr, ""), req.ReferenceImages)
		}, validateTheme)
		if err != nil {
			return err
		}
		name := resp.Name
		if name == "" {
			name = "Tema " + pageTitle(req)
		}
		r.out.Theme = &models.Theme{Name: name, Tokens: resp.Tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.step(StagePreview, 60, 95, "Gerando prévia do tema", func(ctx context.Context) error {
		preview, err := p.themePreview(ctx, r.out.Theme.Tokens)
		switch {
		case err == nil:
			r.out.Theme.Preview = preview
		case providers.IsAbort(err):
			return err
		default:
			r.warn(StagePreview, err, "Não foi possível gerar a prévia do tema")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}

func (p *Pipelines) themePreview(ctx context.Context, tokens []models.ThemeToken) (*models.InlineImage, error) {
	pr, err := p.prompts.ThemePreview(tokens)
	if err != nil {
		return nil, err
	}
	step, err := imageStep(ctx, p.clients.Previewer, pr.Combined())
	if err != nil {
		return nil, err
	}
	img, err := step.FirstImage()
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	return img, nil
}
