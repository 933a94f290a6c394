// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

const (
	providerFlux     = "flux"
	defaultFluxSize  = "1024x1024"
	fluxGeneratePath = "/images/generations"
)

type fluxRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type fluxResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// FluxClient generates images with FLUX through an images/generations
// endpoint. The returned URL is downloaded so callers always get bytes.
type FluxClient struct {
	cfg  config.ProviderConfig
	size string
	doer httpDoer
}

// NewFluxClient creates a client. A nil httpClient uses NewHTTPClient.
func NewFluxClient(cfg config.ProviderConfig, httpClient *http.Client) *FluxClient {
	return &FluxClient{
		cfg:  cfg,
		size: defaultFluxSize,
		doer: newDoer(providerFlux, httpClient, cfg.Timeout),
	}
}

// GenerateImage implements ImageGenerator. It is called exactly once per
// prompt; failures are returned, not retried.
func (c *FluxClient) GenerateImage(ctx context.Context, prompt string) (*models.ImageBundle, error) {
	ctx, span := startSpan(ctx, providerFlux, "generate_image", c.cfg.Model)
	bundle, err := c.generate(ctx, prompt)
	endSpan(span, err)
	return bundle, err
}

func (c *FluxClient) generate(ctx context.Context, prompt string) (*models.ImageBundle, error) {
	body := fluxRequest{Model: c.cfg.Model, Prompt: prompt, N: 1, Size: c.size}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + fluxGeneratePath

	var resp fluxResponse
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := c.doer.postJSON(ctx, url, headers, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &EmptyResponseError{Provider: providerFlux, Reason: "no_data"}
	}

	first := resp.Data[0]
	switch {
	case first.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode flux image: %w", err)
		}
		return &models.ImageBundle{Images: []models.InlineImage{
			models.NewInlineImage(http.DetectContentType(raw), raw),
		}}, nil

	case first.URL != "":
		raw, contentType, err := c.doer.get(ctx, first.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to download flux image: %w", err)
		}
		if len(raw) == 0 {
			return nil, &EmptyResponseError{Provider: providerFlux, Reason: "empty_download"}
		}
		return &models.ImageBundle{Images: []models.InlineImage{
			models.NewInlineImage(imageMimeType(contentType, raw), raw),
		}}, nil

	default:
		return nil, &EmptyResponseError{Provider: providerFlux, Reason: "no_image"}
	}
}

// imageMimeType prefers the server's image/* content type and sniffs otherwise.
func imageMimeType(contentType string, raw []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	return http.DetectContentType(raw)
}
