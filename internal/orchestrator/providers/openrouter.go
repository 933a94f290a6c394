// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

const providerOpenRouter = "openrouter"

// OpenRouterClient reaches Claude (and any other routed model) through the
// OpenRouter chat completions API.
type OpenRouterClient struct {
	cfg    config.ProviderConfig
	policy config.RetryPolicy
	doer   httpDoer
}

// NewOpenRouterClient creates a client. A nil httpClient uses NewHTTPClient.
func NewOpenRouterClient(cfg config.ProviderConfig, policy config.RetryPolicy, httpClient *http.Client) *OpenRouterClient {
	return &OpenRouterClient{
		cfg:    cfg,
		policy: policy,
		doer:   newDoer(providerOpenRouter, httpClient, cfg.Timeout),
	}
}

// GenerateText implements TextGenerator.
func (c *OpenRouterClient) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	return c.GenerateWithImages(ctx, req, nil)
}

// GenerateWithImages implements VisionGenerator; images travel as data URIs.
func (c *OpenRouterClient) GenerateWithImages(ctx context.Context, req TextRequest, images []models.InlineImage) (string, error) {
	model := firstNonEmpty(req.Model, c.cfg.Model)
	ctx, span := startSpan(ctx, providerOpenRouter, "chat", model)

	body := chatRequest{
		Model:       model,
		Messages:    chatMessages(req, images),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"X-Title": "launchpad"}

	text, err := withRetry(ctx, c.policy, providerOpenRouter, func() (string, error) {
		text, _, err := chatCompletion(ctx, c.doer, url, c.cfg.APIKey, body, headers)
		return text, err
	})
	endSpan(span, err)
	return text, err
}
