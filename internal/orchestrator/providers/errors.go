// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SafetyBlockedMessage is shown to users when a provider refuses content.
const SafetyBlockedMessage = "O conteúdo foi bloqueado pelos filtros de segurança"

// ErrAborted is matched by every *AbortError.
var ErrAborted = errors.New("operação cancelada")

// APIError is a non-2xx response. Message is the provider's own message when
// the error body could be read, otherwise "Erro na API: <status>".
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return e.Message
}

// SafetyBlockedError is a generation the provider refused on safety grounds.
type SafetyBlockedError struct {
	Provider string
	Reason   string
}

func (e *SafetyBlockedError) Error() string {
	return SafetyBlockedMessage
}

// EmptyResponseError is a 2xx response with nothing usable in it.
type EmptyResponseError struct {
	Provider string
	Reason   string
}

func (e *EmptyResponseError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unknown"
	}
	return fmt.Sprintf("%s returned an empty response (reason: %s)", e.Provider, reason)
}

// TimeoutError is a call that exceeded its per-call timeout.
type TimeoutError struct {
	Provider string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not answer within %s", e.Provider, e.After)
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AbortError is a call stopped because the caller cancelled the run.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return ErrAborted.Error()
}

func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// IsAbort reports whether err is a cancellation rather than a failure.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// CheckAbort returns an *AbortError if ctx is already done.
func CheckAbort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &AbortError{Cause: err}
	}
	return nil
}

// Retryable reports whether repeating the call may succeed: rate limits,
// server errors, timeouts and transport failures.
func Retryable(err error) bool {
	if err == nil || IsAbort(err) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}

	var timeout *TimeoutError
	var transport *TransportError
	return errors.As(err, &timeout) || errors.As(err, &transport)
}

// UserMessage returns the text to show for err. Aborts return "".
func UserMessage(err error) string {
	if err == nil || IsAbort(err) {
		return ""
	}

	var safety *SafetyBlockedError
	if errors.As(err, &safety) {
		return SafetyBlockedMessage
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
