// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"fmt"
	"strings"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

type variationsResponse struct {
	Variations []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		HTML        string `json:"html"`
	} `json:"variations"`
}

func validateVariations(count int) func(variationsResponse) error {
	return func(v variationsResponse) error {
		if len(v.Variations) != count {
			return fmt.Errorf("expected exactly %d variations, got %d", count, len(v.Variations))
		}
		for i, vr := range v.Variations {
			if err := nonEmpty(fmt.Sprintf("variations[%d].title", i), vr.Title); err != nil {
				return err
			}
			if err := nonEmpty(fmt.Sprintf("variations[%d].description", i), vr.Description); err != nil {
				return err
			}
			if !isFullDocument(vr.HTML) {
				return fmt.Errorf("variations[%d].html is not a full html document", i)
			}
		}
		return nil
	}
}

// GenerateVariations produces VariationCount alternative HTML designs for a
// section, a component or both.
func (p *Pipelines) GenerateVariations(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantVariations, req, fn)
	if err != nil {
		return nil, err
	}
	if req.Scope == "" {
		req.Scope = models.ScopeSection
	}
	count := p.cfg.VariationCount

	err = r.step(StageVariations, 5, 95, fmt.Sprintf("Gerando %d variações", count), func(ctx context.Context) error {
		pr, err := p.prompts.Variations(req, count)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "variações", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateWithImages(ctx, textRequest(pr, r.out.Meta.Model), req.ReferenceImages)
		}, validateVariations(count))
		if err != nil {
			return err
		}

		for i, v := range resp.Variations {
			r.out.Sections = append(r.out.Sections, models.Section{
				ID:          fmt.Sprintf("variation-%d", i+1),
				Title:       strings.TrimSpace(v.Title),
				Description: strings.TrimSpace(v.Description),
				HTML:        strings.TrimSpace(v.HTML),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}
