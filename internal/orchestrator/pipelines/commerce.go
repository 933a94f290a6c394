// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

type orderBumpsResponse struct {
	OrderBumps []models.OrderBump `json:"order_bumps"`
}

func validateOrderBumps(resp orderBumpsResponse) error {
	if len(resp.OrderBumps) == 0 {
		return errors.New("no order bumps")
	}
	for i, ob := range resp.OrderBumps {
		if err := ob.Validate(); err != nil {
			return fmt.Errorf("order_bumps[%d]: %w", i, err)
		}
	}
	return nil
}

type planResponse struct {
	Items []models.ProductionPlanItem `json:"items"`
}

func validatePlan(resp planResponse) error {
	if len(resp.Items) == 0 {
		return errors.New("no plan items")
	}
	for i, it := range resp.Items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	return nil
}

// GenerateOrderBumps proposes complementary offers for the product.
func (p *Pipelines) GenerateOrderBumps(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantOrderBumps, req, fn)
	if err != nil {
		return nil, err
	}

	err = r.step(StageOrderBumps, 5, 95, "Criando order bumps", func(ctx context.Context) error {
		pr, err := p.prompts.OrderBumps(req)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "order bumps", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, r.out.Meta.Model))
		}, validateOrderBumps)
		if err != nil {
			return err
		}
		r.out.OrderBumps = resp.OrderBumps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}

// RunResearch runs a market research query.
func (p *Pipelines) RunResearch(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantResearch, req, fn)
	if err != nil {
		return nil, err
	}

	err = r.step(StageResearch, 5, 95, "Pesquisando o mercado", func(ctx context.Context) error {
		research, err := p.research(ctx, req)
		if err != nil {
			return err
		}
		r.out.Research = research
		r.out.Markdown = research.Text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}

func (p *Pipelines) research(ctx context.Context, req models.PipelineRequest) (*models.Research, error) {
	pr, err := p.prompts.Research(req)
	if err != nil {
		return nil, err
	}
	research, err := p.clients.Researcher.Research(ctx, textRequest(pr, ""))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(research.Text) == "" {
		return nil, errors.New("research returned no text")
	}
	return research, nil
}

// GenerateProductionPlan lists the deliverables of a launch, most important
// first.
func (p *Pipelines) GenerateProductionPlan(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantPlan, req, fn)
	if err != nil {
		return nil, err
	}

	err = r.step(StagePlan, 5, 95, "Montando o plano de produção", func(ctx context.Context) error {
		pr, err := p.prompts.ProductionPlan(req)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "plano de produção", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, r.out.Meta.Model))
		}, validatePlan)
		if err != nil {
			return err
		}
		items := resp.Items
		sort.SliceStable(items, func(i, j int) bool { return items[i].Priority < items[j].Priority })
		r.out.Plan = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}
