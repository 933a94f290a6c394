// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/samber/lo"
)

// Council policy.
const (
	CouncilThreshold    = 7.0
	CouncilMinApproved  = 3
	CouncilMaxAttempts  = 4
	councilIdeasPerSlot = 5
)

type strategistResponse struct {
	Ideas []struct {
		Name     string `json:"name"`
		Proposal string `json:"proposal"`
	} `json:"ideas"`
}

func validateStrategist(resp strategistResponse) error {
	if len(resp.Ideas) == 0 {
		return errors.New("no ideas")
	}
	for i, idea := range resp.Ideas {
		if err := nonEmpty(fmt.Sprintf("ideas[%d].name", i), idea.Name); err != nil {
			return err
		}
		if err := nonEmpty(fmt.Sprintf("ideas[%d].proposal", i), idea.Proposal); err != nil {
			return err
		}
	}
	return nil
}

type critiqueResponse struct {
	Critiques []struct {
		Name     string `json:"name"`
		Critique string `json:"critique"`
	} `json:"critiques"`
}

type viabilityResponse struct {
	Analyses []struct {
		Name      string `json:"name"`
		Viability string `json:"viability"`
	} `json:"analyses"`
}

type scoringResponse struct {
	Scores []struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

func validateScores(resp scoringResponse) error {
	if len(resp.Scores) == 0 {
		return errors.New("no scores")
	}
	for i, s := range resp.Scores {
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 10 {
			return fmt.Errorf("scores[%d].score out of range: %v", i, s.Score)
		}
	}
	return nil
}

func ideaKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RunAICouncil runs strategist, critic, viability and scoring over batches of
// ideas. Ideas scoring at least CouncilThreshold are approved; the rest are
// rejected and excluded from later attempts. It stops once
// CouncilMinApproved ideas are approved or after CouncilMaxAttempts attempts.
func (p *Pipelines) RunAICouncil(ctx context.Context, req models.PipelineRequest, fn ProgressFunc) (*models.PipelineOutput, error) {
	r, err := p.begin(ctx, models.VariantCouncil, req, fn)
	if err != nil {
		return nil, err
	}

	result := &models.CouncilResult{
		Ideas: []models.CouncilIdea{},
		Meta: models.CouncilMeta{
			Threshold:   CouncilThreshold,
			MinApproved: CouncilMinApproved,
		},
	}
	r.out.Council = result

	slot := 100 / CouncilMaxAttempts
	for attempt := 1; attempt <= CouncilMaxAttempts; attempt++ {
		if len(result.Ideas) >= CouncilMinApproved {
			break
		}
		if attempt > 1 {
			r.progress.Message(attemptMessage("conselho", attempt, CouncilMaxAttempts))
		}
		result.Meta.Attempts = attempt

		ideas, err := p.councilAttempt(r, attempt, (attempt-1)*slot, attempt*slot, result)
		if err != nil {
			return nil, err
		}

		for _, idea := range ideas {
			if idea.Score >= CouncilThreshold {
				result.Ideas = append(result.Ideas, idea)
			} else {
				result.Meta.Rejected = append(result.Meta.Rejected, idea.Name)
			}
		}
		r.log.Info().
			Int("attempt", attempt).
			Int("approved", len(result.Ideas)).
			Int("rejected", len(result.Meta.Rejected)).
			Msg("Council attempt finished")
	}

	return r.finish(), nil
}

// councilAttempt runs the four council stages once within [from, to].
func (p *Pipelines) councilAttempt(r *run, attempt, from, to int, result *models.CouncilResult) ([]models.CouncilIdea, error) {
	model := r.out.Meta.Model
	quarter := (to - from) / 4
	excluded := append(lo.Map(result.Ideas, func(i models.CouncilIdea, _ int) string { return i.Name }), result.Meta.Rejected...)
	needed := councilIdeasPerSlot

	var ideas []models.CouncilIdea
	err := r.step(StageStrategist, from, from+quarter, fmt.Sprintf("Estrategista propondo ideias (tentativa %d)", attempt), func(ctx context.Context) error {
		pr, err := p.prompts.CouncilStrategist(r.req, excluded, needed)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "estrategista", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, model))
		}, validateStrategist)
		if err != nil {
			return err
		}
		seen := lo.SliceToMap(excluded, func(n string) (string, bool) { return ideaKey(n), true })
		for _, idea := range resp.Ideas {
			key := ideaKey(idea.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			ideas = append(ideas, models.CouncilIdea{
				Name:     strings.TrimSpace(idea.Name),
				Proposal: strings.TrimSpace(idea.Proposal),
				Attempt:  attempt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ideas) == 0 {
		r.log.Warn().Int("attempt", attempt).Msg("Strategist only proposed excluded ideas")
		return nil, nil
	}

	err = r.step(StageCritic, from+quarter, from+2*quarter, "Crítico avaliando as ideias", func(ctx context.Context) error {
		pr, err := p.prompts.CouncilCritic(ideas)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "crítico", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, model))
		}, func(critiqueResponse) error { return nil })
		if err != nil {
			return err
		}
		byName := make(map[string]string, len(resp.Critiques))
		for _, c := range resp.Critiques {
			byName[ideaKey(c.Name)] = strings.TrimSpace(c.Critique)
		}
		for i := range ideas {
			ideas[i].Critique = byName[ideaKey(ideas[i].Name)]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.step(StageViability, from+2*quarter, from+3*quarter, "Analisando viabilidade", func(ctx context.Context) error {
		pr, err := p.prompts.CouncilViability(ideas)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "viabilidade", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, model))
		}, func(viabilityResponse) error { return nil })
		if err != nil {
			return err
		}
		byName := make(map[string]string, len(resp.Analyses))
		for _, a := range resp.Analyses {
			byName[ideaKey(a.Name)] = strings.TrimSpace(a.Viability)
		}
		for i := range ideas {
			ideas[i].Viability = byName[ideaKey(ideas[i].Name)]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.step(StageScoring, from+3*quarter, to, "Atribuindo notas", func(ctx context.Context) error {
		pr, err := p.prompts.CouncilScoring(ideas)
		if err != nil {
			return err
		}
		resp, err := generateJSON(ctx, r, p.cfg.SchemaAttempts, "notas", func(ctx context.Context) (string, error) {
			return p.clients.Copywriter.GenerateText(ctx, textRequest(pr, model))
		}, validateScores)
		if err != nil {
			return err
		}
		// Ideas the judge did not score keep 0 and are rejected.
		byName := make(map[string]float64, len(resp.Scores))
		for _, s := range resp.Scores {
			byName[ideaKey(s.Name)] = s.Score
		}
		for i := range ideas {
			ideas[i].Score = byName[ideaKey(ideas[i].Name)]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ideas, nil
}
