// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package providers holds one HTTP client per hosted model provider. Clients
// return typed errors and never swallow them; retrying and fallbacks are the
// caller's decision.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/noldarim/launchpad/internal/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetProviderLogger()
		log = &l
	})
	return log
}

// maxResponseBytes caps how much of a response body is read. Image payloads
// come back inline, so this is generous.
const maxResponseBytes = 64 << 20

// NewHTTPClient returns the client shared by all providers. Requests are
// traced through otelhttp; timeouts are applied per call, not here.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// httpDoer sends one request for a provider and classifies the outcome.
type httpDoer struct {
	provider string
	client   *http.Client
	timeout  time.Duration
}

func newDoer(provider string, client *http.Client, timeout time.Duration) httpDoer {
	if client == nil {
		client = NewHTTPClient()
	}
	return httpDoer{provider: provider, client: client, timeout: timeout}
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func (d httpDoer) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", d.provider, err)
	}

	raw, _, err := d.do(ctx, http.MethodPost, url, headers, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", d.provider, err)
	}
	return nil
}

// get fetches url and returns the body with its content type.
func (d httpDoer) get(ctx context.Context, url string) ([]byte, string, error) {
	return d.do(ctx, http.MethodGet, url, nil, nil)
}

func (d httpDoer) do(ctx context.Context, method, url string, headers map[string]string, payload []byte) ([]byte, string, error) {
	// Never send a request for a run that is already cancelled.
	if err := CheckAbort(ctx); err != nil {
		return nil, "", err
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s request: %w", d.provider, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", d.classify(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", d.classify(ctx, callCtx, err)
	}

	getLog().Debug().
		Str("provider", d.provider).
		Str("method", method).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("Provider call finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &APIError{
			Provider: d.provider,
			Status:   resp.StatusCode,
			Message:  errorMessage(raw, resp.StatusCode),
		}
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

// classify maps a transport failure to AbortError (caller cancelled),
// TimeoutError (per-call timeout) or TransportError.
func (d httpDoer) classify(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return &AbortError{Cause: parent.Err()}
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Provider: d.provider, After: d.timeout}
	}
	return &TransportError{Provider: d.provider, Err: err}
}

// errorMessage pulls the provider message out of an error body. Providers
// use {"error":{"message":...}}, {"error":"..."} or {"message":...}.
func errorMessage(body []byte, status int) string {
	fallback := fmt.Sprintf("Erro na API: %d", status)

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback
	}

	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(envelope.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	if msg := strings.TrimSpace(envelope.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(envelope.Detail); msg != "" {
		return msg
	}
	return fallback
}
