// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noldarim/launchpad/internal/orchestrator/document"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/prompts"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"golang.org/x/sync/errgroup"
)

// ProductionSteps are the stages of RunProductionWorkflow in order.
var ProductionSteps = []Stage{
	StageResearch,
	StageContent,
	StageImagePrompts,
	StageImages,
	StageResolve,
	StageDOCX,
	StagePDF,
}

// ImagePrompt is one image to generate for placeholder Index.
type ImagePrompt struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
}

type imagePromptsResponse struct {
	Images []ImagePrompt `json:"images"`
}

func validateImagePrompts(resp imagePromptsResponse) error {
	if len(resp.Images) == 0 {
		return errors.New("no image prompts")
	}
	for i, ip := range resp.Images {
		if err := nonEmpty(fmt.Sprintf("images[%d].prompt", i), ip.Prompt); err != nil {
			return err
		}
	}
	return nil
}

// RunProductionWorkflow writes a complete digital product:
//
//  1. market research and a writing brief
//  2. the Markdown content, with [IMAGEM_n] placeholders
//  3. one image prompt per placeholder
//  4. the images, generated concurrently
//  5. placeholder resolution
//  6. the DOCX document
//  7. the PDF document, best effort
func (p *Pipelines) RunProductionWorkflow(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, *document.Bundle, error) {
	r, err := p.begin(ctx, models.VariantProduction, req, fn)
	if err != nil {
		return nil, nil, err
	}
	model := r.out.Meta.Model

	var brief string
	err = r.step(StageResearch, 2, 15, "Pesquisando o mercado", func(ctx context.Context) error {
		research, err := p.research(ctx, req)
		if err != nil {
			return err
		}
		r.out.Research = research
		r.progress.Step(1, 2, "Escrevendo o briefing")

		pr, err := p.prompts.ProductionPrompt(req, research.Text)
		if err != nil {
			return err
		}
		step, err := markdownStep(ctx, p.clients.Copywriter, textRequest(pr, model))
		if err != nil {
			return err
		}
		if brief, err = step.Text(); err != nil {
			return fmt.Errorf("brief: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var markdown string
	err = r.step(StageContent, 15, 40, "Escrevendo o conteúdo", func(ctx context.Context) error {
		pr, err := p.prompts.ProductionContent(brief)
		if err != nil {
			return err
		}
		step, err := markdownStep(ctx, p.clients.Copywriter, textRequest(pr, model))
		if err != nil {
			return err
		}
		markdown, err = step.Text()
		if err != nil {
			return fmt.Errorf("content: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	placeholders := document.Placeholders(markdown)
	var imagePrompts []ImagePrompt
	err = r.step(StageImagePrompts, 40, 50, fmt.Sprintf("Preparando %d ilustrações", len(placeholders)), func(ctx context.Context) error {
		if len(placeholders) == 0 {
			r.log.Info().Msg("Content has no image placeholders")
			return nil
		}
		ips, err := p.imagePrompts(ctx, r, markdown, placeholders)
		imagePrompts = ips
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	err = r.step(StageImages, 50, 80, fmt.Sprintf("Gerando %d imagens", len(imagePrompts)), func(ctx context.Context) error {
		r.out.Images = p.GenerateImages(ctx, imagePrompts, r.progress)
		// The batch itself never fails; a cancelled run still stops here.
		return providers.CheckAbort(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	images, failures := document.ImagesFrom(r.out.Images)
	blocks := document.Parse(markdown)
	bundle := &document.Bundle{}

	err = r.step(StageResolve, 80, 85, "Inserindo as imagens no conteúdo", func(ctx context.Context) error {
		r.out.Markdown = document.Resolve(markdown, images)
		r.out.Sections = []models.Section{{
			ID:          "content",
			Title:       contentTitle(blocks, req),
			Description: req.Description,
			Markdown:    markdown,
		}}
		bundle.Markdown = r.out.Markdown
		bundle.ImageReport = document.Report(markdown, images, failures)
		if failed := len(r.out.FailedImages()); failed > 0 {
			r.out.Warn(fmt.Sprintf("%d de %d imagens não foram geradas", failed, len(r.out.Images)))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = r.step(StageDOCX, 85, 93, "Montando o DOCX", func(ctx context.Context) error {
		rendered, err := document.RenderDOCX(blocks, images)
		if err != nil {
			return err
		}
		bundle.DOCX = rendered.Data
		bundle.ImageReport = document.MarkEmbedded(bundle.ImageReport, rendered.Embedded)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = r.step(StagePDF, 93, 99, "Montando o PDF", func(ctx context.Context) error {
		pdf, err := document.SafePDF(blocks, images)
		if err != nil {
			bundle.PDFError = err.Error()
			r.warn(StagePDF, err, "Não foi possível gerar o PDF")
			return nil
		}
		bundle.PDF = pdf
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return r.finish(), bundle, nil
}

// imagePrompts turns placeholders into generator prompts, one per
// placeholder in placeholder order. Placeholders the model skipped fall back
// to their own description.
func (p *Pipelines) imagePrompts(ctx context.Context, r *run, markdown string, placeholders []document.Placeholder) ([]ImagePrompt, error) {
	slots := make([]prompts.ImageSlot, len(placeholders))
	for i, ph := range placeholders {
		slots[i] = prompts.ImageSlot{Index: ph.Index, Hint: ph.Prompt}
	}
	pr, err := p.prompts.ImagePrompts(markdown, slots)
	if err != nil {
		return nil, err
	}
	resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "prompts de imagem", func(ctx context.Context) (string, error) {
		return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, r.out.Meta.Model))
	}, validateImagePrompts)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]string, len(resp.Images))
	for _, ip := range resp.Images {
		byIndex[ip.Index] = strings.TrimSpace(ip.Prompt)
	}
	out := make([]ImagePrompt, len(placeholders))
	for i, ph := range placeholders {
		prompt := byIndex[ph.Index]
		if prompt == "" {
			prompt = ph.Prompt
		}
		if prompt == "" {
			prompt = "Illustration for: " + r.req.Subject()
		}
		out[i] = ImagePrompt{Index: ph.Index, Prompt: prompt}
	}
	return out, nil
}

// GenerateImages generates every prompt with at most ImageConcurrency calls
// in flight. It always returns one entry per prompt, in prompt order; failed
// entries carry Error instead of an image.
func (p *Pipelines) GenerateImages(ctx context.Context, items []ImagePrompt, progress *Progress) []models.ImageResult {
	results := make([]models.ImageResult, len(items))
	total := len(items)
	// mu orders the count with its progress message.
	var mu sync.Mutex
	done := 0

	var g errgroup.Group
	g.SetLimit(p.cfg.ImageConcurrency)
	for i, ip := range items {
		results[i] = models.ImageResult{Index: ip.Index, Prompt: ip.Prompt}
		g.Go(func() error {
			res := &results[i]
			if err := p.generateImage(ctx, ip.Prompt, res); err != nil {
				res.Error = imageErrorText(err)
				getLog().Warn().Err(err).Int("index", ip.Index).Msg("Image generation failed")
			}

			status := "gerada"
			if res.Error != "" {
				status = "falhou"
			}
			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress.Step(done, total, fmt.Sprintf("Imagem %d de %d %s", done, total, status))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipelines) generateImage(ctx context.Context, prompt string, res *models.ImageResult) error {
	if err := providers.CheckAbort(ctx); err != nil {
		return err
	}
	step, err := imageStep(ctx, p.clients.Illustrator, prompt)
	if err != nil {
		return err
	}
	img, err := step.FirstImage()
	if err != nil {
		return err
	}
	res.Image = img
	return nil
}

func imageErrorText(err error) string {
	if msg := providers.UserMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func contentTitle(blocks []document.Block, req models.PipelineRequest) string {
	for _, b := range blocks {
		if b.Kind == document.BlockHeading {
			return document.PlainText(b.Text)
		}
	}
	return pageTitle(req)
}

// stripMarkdownFence unwraps content that arrived entirely inside one fenced
// block. Fences inside the content are left alone.
func stripMarkdownFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") || !strings.HasSuffix(raw, "```") || len(raw) < 6 {
		return raw
	}
	body := strings.TrimSuffix(raw, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	return strings.TrimSpace(body)
}
