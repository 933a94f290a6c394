// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

const providerGemini = "gemini"

// Finish reasons and block reasons Gemini uses for safety refusals.
var geminiSafetyReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"IMAGE_SAFETY":       true,
	"SPII":               true,
}

type geminiRequest struct {
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Contents          []geminiContent       `json:"contents"`
	GenerationConfig  *geminiGenConfig      `json:"generationConfig,omitempty"`
	SafetySettings    []geminiSafetySetting `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

var geminiSafety = []geminiSafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// GeminiClient talks to the Gemini generateContent REST API for text,
// vision and image generation.
type GeminiClient struct {
	cfg    config.ProviderConfig
	policy config.RetryPolicy
	doer   httpDoer
}

// NewGeminiClient creates a client. A nil httpClient uses NewHTTPClient.
func NewGeminiClient(cfg config.ProviderConfig, policy config.RetryPolicy, httpClient *http.Client) *GeminiClient {
	return &GeminiClient{
		cfg:    cfg,
		policy: policy,
		doer:   newDoer(providerGemini, httpClient, cfg.Timeout),
	}
}

// GenerateText implements TextGenerator.
func (c *GeminiClient) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	return c.GenerateWithImages(ctx, req, nil)
}

// GenerateWithImages implements VisionGenerator. Images are sent before the
// prompt text in a single user turn.
func (c *GeminiClient) GenerateWithImages(ctx context.Context, req TextRequest, images []models.InlineImage) (string, error) {
	model := firstNonEmpty(req.Model, c.cfg.Model)
	ctx, span := startSpan(ctx, providerGemini, "generate_text", model)

	parts := make([]geminiPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: img.MimeType, Data: img.Data}})
	}
	parts = append(parts, geminiPart{Text: req.User})

	body := geminiRequest{
		Contents:       []geminiContent{{Role: "user", Parts: parts}},
		SafetySettings: geminiSafety,
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	}

	text, err := withRetry(ctx, c.policy, providerGemini, func() (string, error) {
		resp, err := c.call(ctx, model, body)
		if err != nil {
			return "", err
		}
		return geminiText(resp)
	})
	endSpan(span, err)
	return text, err
}

// GenerateImage implements ImageGenerator with the configured image model.
// The response parts are split into description text and inline images.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) (*models.ImageBundle, error) {
	model := firstNonEmpty(c.cfg.ImageModel, c.cfg.Model)
	ctx, span := startSpan(ctx, providerGemini, "generate_image", model)

	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
		SafetySettings:   geminiSafety,
	}

	resp, err := c.call(ctx, model, body)
	var bundle *models.ImageBundle
	if err == nil {
		bundle, err = geminiImages(resp)
	}
	endSpan(span, err)
	return bundle, err
}

func (c *GeminiClient) call(ctx context.Context, model string, body geminiRequest) (*geminiResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), model)
	var resp geminiResponse
	if err := c.doer.postJSON(ctx, url, map[string]string{"x-goog-api-key": c.cfg.APIKey}, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// geminiBlocked returns a SafetyBlockedError when the prompt itself was
// blocked or the first candidate stopped for a safety reason.
func geminiBlocked(resp *geminiResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return &SafetyBlockedError{Provider: providerGemini, Reason: resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) > 0 && geminiSafetyReasons[resp.Candidates[0].FinishReason] {
		return &SafetyBlockedError{Provider: providerGemini, Reason: resp.Candidates[0].FinishReason}
	}
	return nil
}

func geminiFinishReason(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return "NO_CANDIDATES"
	}
	return resp.Candidates[0].FinishReason
}

func geminiText(resp *geminiResponse) (string, error) {
	var sb strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if text := sb.String(); strings.TrimSpace(text) != "" {
		return text, nil
	}
	if err := geminiBlocked(resp); err != nil {
		return "", err
	}
	return "", &EmptyResponseError{Provider: providerGemini, Reason: geminiFinishReason(resp)}
}

func geminiImages(resp *geminiResponse) (*models.ImageBundle, error) {
	bundle := &models.ImageBundle{}
	var desc strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			switch {
			case p.InlineData != nil && p.InlineData.Data != "":
				bundle.Images = append(bundle.Images, models.InlineImage{
					MimeType: p.InlineData.MimeType,
					Data:     p.InlineData.Data,
				})
			case p.Text != "":
				desc.WriteString(p.Text)
			}
		}
	}
	bundle.Description = strings.TrimSpace(desc.String())

	if len(bundle.Images) > 0 {
		return bundle, nil
	}
	if err := geminiBlocked(resp); err != nil {
		return nil, err
	}
	return nil, &EmptyResponseError{Provider: providerGemini, Reason: geminiFinishReason(resp)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
