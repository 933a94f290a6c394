// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/samber/lo"
)

type structureResponse struct {
	Sections []models.Section `json:"sections"`
}

func validateStructure(count int) func(structureResponse) error {
	return func(s structureResponse) error {
		if len(s.Sections) != count {
			return fmt.Errorf("expected exactly %d sections, got %d", count, len(s.Sections))
		}
		for i, sec := range s.Sections {
			if err := nonEmpty(fmt.Sprintf("sections[%d].id", i), sec.ID); err != nil {
				return err
			}
			if err := nonEmpty(fmt.Sprintf("sections[%d].title", i), sec.Title); err != nil {
				return err
			}
		}
		ids := lo.Map(s.Sections, func(sec models.Section, _ int) string { return sec.ID })
		if dup := lo.FindDuplicates(ids); len(dup) > 0 {
			return fmt.Errorf("duplicate section ids: %s", strings.Join(dup, ", "))
		}
		return nil
	}
}

var errNotASection = errors.New("response is not a <section> element")

// GenerateFullLandingPage plans LandingSections sections, writes each one,
// assembles the page and runs a review pass over it unless the request skips
// it.
func (p *Pipelines) GenerateFullLandingPage(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantLanding, req, fn)
	if err != nil {
		return nil, err
	}
	total := p.cfg.LandingSections
	model := r.out.Meta.Model

	var outline []models.Section
	err = r.step(StageStructure, 2, 10, "Planejando a estrutura da página", func(ctx context.Context) error {
		pr, err := p.prompts.LandingStructure(req, total)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "estrutura", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateWithImages(ctx, textRequest(pr, model), req.ReferenceImages)
		}, validateStructure(total))
		if err != nil {
			return err
		}
		outline = resp.Sections
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.step(StageSections, 10, 85, fmt.Sprintf("Escrevendo %d seções", total), func(ctx context.Context) error {
		for i, sec := range outline {
			fragment, err := p.landingSection(ctx, r, sec, i, total)
			if err != nil {
				return fmt.Errorf("section %d (%s): %w", i+1, sec.ID, err)
			}
			sec.HTML = fragment
			r.out.Sections = append(r.out.Sections, sec)
			r.progress.Step(i+1, total, fmt.Sprintf("Seção %d de %d concluída: %s", i+1, total, sec.Title))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.out.HTML = assemblePage(pageTitle(req), r.out.Sections)

	if !req.SkipReview {
		err = r.step(StageReview, 85, 98, "Revisando o HTML final", func(ctx context.Context) error {
			return p.reviewAndFixHTML(ctx, r)
		})
		if err != nil {
			return nil, err
		}
	}
	return r.finish(), nil
}

func (p *Pipelines) landingSection(ctx context.Context, r *run, sec models.Section, index, total int) (string, error) {
	pr, err := p.prompts.LandingSection(r.req, sec, index, total)
	if err != nil {
		return "", err
	}
	for attempt := 1; ; attempt++ {
		raw, err := p.clients.Copywriter.GenerateText(ctx, textRequest(pr, r.out.Meta.Model))
		if err != nil {
			return "", err
		}
		fragment := stripFence(raw)
		if strings.Contains(strings.ToLower(fragment), "<section") {
			return fragment, nil
		}
		if attempt >= p.cfg.SchemaAttempts {
			return "", errNotASection
		}
		r.progress.Retry(attemptMessage("seção "+sec.ID, attempt+1, p.cfg.SchemaAttempts))
	}
}

// reviewAndFixHTML asks for a corrected page and keeps it only if it is still
// a complete document. A rejected rewrite leaves the assembled page in place
// and records a warning.
func (p *Pipelines) reviewAndFixHTML(ctx context.Context, r *run) error {
	pr, err := p.prompts.ReviewHTML(r.out.HTML)
	if err != nil {
		return err
	}
	raw, err := p.clients.Copywriter.GenerateText(ctx, textRequest(pr, r.out.Meta.Model))
	if err != nil {
		return err
	}

	fixed := stripFence(raw)
	if !isFullDocument(fixed) {
		r.log.Warn().Int("bytes", len(fixed)).Msg("Review returned an incomplete document, keeping original")
		r.out.Warn("A revisão do HTML retornou um documento incompleto; o HTML original foi mantido")
		return nil
	}
	r.out.HTML = fixed
	return nil
}

func pageTitle(req models.PipelineRequest) string {
	if name := strings.TrimSpace(req.ProductName); name != "" {
		return name
	}
	title := strings.TrimSpace(req.Subject())
	if r := []rune(title); len(r) > 80 {
		title = string(r[:80])
	}
	return title
}

// assemblePage wraps section fragments into a full document.
func assemblePage(title string, sections []models.Section) string {
	var sb strings.Builder
	sb.WriteString(doctype)
	sb.WriteString("\n<html lang=\"pt-BR\">\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n</head>\n<body>\n")
	for _, sec := range sections {
		sb.WriteString(sec.HTML)
		sb.WriteString("\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}
