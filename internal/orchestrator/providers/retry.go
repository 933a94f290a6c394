// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package providers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/noldarim/launchpad/internal/config"
)

// RetryObserver is told about every failed attempt that will be retried.
type RetryObserver func(provider string, attempt int, err error, wait time.Duration)

type retryObserverKey struct{}

// WithRetryObserver attaches fn to ctx so callers can surface retries.
func WithRetryObserver(ctx context.Context, fn RetryObserver) context.Context {
	return context.WithValue(ctx, retryObserverKey{}, fn)
}

func observerFrom(ctx context.Context) RetryObserver {
	fn, _ := ctx.Value(retryObserverKey{}).(RetryObserver)
	return fn
}

func newBackOff(p config.RetryPolicy) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.BackoffCoefficient >= 1 {
		b.Multiplier = p.BackoffCoefficient
	}
	if p.MaximumInterval > 0 {
		b.MaxInterval = p.MaximumInterval
	}
	return b
}

// withRetry repeats op with exponential backoff while it fails with a
// Retryable error. Only idempotent read-style calls go through here; image
// generation is billed per call and is never retried.
func withRetry[T any](ctx context.Context, p config.RetryPolicy, provider string, op func() (T, error)) (T, error) {
	attempts := p.MaximumAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	observe := observerFrom(ctx)
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(newBackOff(p)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			getLog().Warn().
				Err(err).
				Str("provider", provider).
				Int("attempt", attempt).
				Int32("max_attempts", attempts).
				Dur("wait", wait).
				Msg("Provider call failed, retrying")
			if observe != nil {
				observe(provider, attempt, err, wait)
			}
		}),
	)
	if err != nil && ctx.Err() != nil {
		// Cancelled while waiting between attempts.
		var abort *AbortError
		if !errors.As(err, &abort) {
			return res, &AbortError{Cause: ctx.Err()}
		}
	}
	return res, err
}
