// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/samber/lo"
)

const providerPerplexity = "perplexity"

// PerplexityClient runs research queries against Perplexity's chat API.
type PerplexityClient struct {
	cfg    config.ProviderConfig
	policy config.RetryPolicy
	doer   httpDoer
}

// NewPerplexityClient creates a client. A nil httpClient uses NewHTTPClient.
func NewPerplexityClient(cfg config.ProviderConfig, policy config.RetryPolicy, httpClient *http.Client) *PerplexityClient {
	return &PerplexityClient{
		cfg:    cfg,
		policy: policy,
		doer:   newDoer(providerPerplexity, httpClient, cfg.Timeout),
	}
}

// Research implements Researcher. Citations are deduplicated in order.
func (c *PerplexityClient) Research(ctx context.Context, req TextRequest) (*models.Research, error) {
	model := firstNonEmpty(req.Model, c.cfg.Model)
	ctx, span := startSpan(ctx, providerPerplexity, "research", model)

	body := chatRequest{
		Model:       model,
		Messages:    chatMessages(req, nil),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	research, err := withRetry(ctx, c.policy, providerPerplexity, func() (*models.Research, error) {
		text, resp, err := chatCompletion(ctx, c.doer, url, c.cfg.APIKey, body, nil)
		if err != nil {
			return nil, err
		}
		citations := lo.Uniq(lo.Filter(resp.Citations, func(s string, _ int) bool {
			return strings.TrimSpace(s) != ""
		}))
		return &models.Research{Text: text, Citations: citations}, nil
	})
	endSpan(span, err)
	return research, err
}
