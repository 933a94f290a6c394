// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"strings"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

// OpenAI-compatible chat completion shapes, used by OpenRouter and Perplexity.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage content is either a string or a list of chatPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Citations []string `json:"citations,omitempty"`
}

func chatMessages(req TextRequest, images []models.InlineImage) []chatMessage {
	var msgs []chatMessage
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	if len(images) == 0 {
		return append(msgs, chatMessage{Role: "user", Content: req.User})
	}

	parts := make([]chatPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, chatPart{Type: "image_url", ImageURL: &chatImageURL{URL: img.DataURI()}})
	}
	parts = append(parts, chatPart{Type: "text", Text: req.User})
	return append(msgs, chatMessage{Role: "user", Content: parts})
}

// chatCompletion posts one chat request and returns the first choice's text.
// finish_reason "content_filter" is a safety refusal.
func chatCompletion(ctx context.Context, d httpDoer, url, apiKey string, body chatRequest, headers map[string]string) (string, *chatResponse, error) {
	h := map[string]string{"Authorization": "Bearer " + apiKey}
	for k, v := range headers {
		h[k] = v
	}

	var resp chatResponse
	if err := d.postJSON(ctx, url, h, body, &resp); err != nil {
		return "", nil, err
	}

	if len(resp.Choices) == 0 {
		return "", &resp, &EmptyResponseError{Provider: d.provider, Reason: "no_choices"}
	}
	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) != "" {
		return choice.Message.Content, &resp, nil
	}
	if choice.FinishReason == "content_filter" {
		return "", &resp, &SafetyBlockedError{Provider: d.provider, Reason: choice.FinishReason}
	}
	return "", &resp, &EmptyResponseError{Provider: d.provider, Reason: choice.FinishReason}
}
