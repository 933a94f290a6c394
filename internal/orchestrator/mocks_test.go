// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/pipelines"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of services.Runner. When the
// returned outcome is nil and no error is set, it blocks until ctx is done.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, v models.Variant, req models.PipelineRequest, fn pipelines.ProgressFunc) (*pipelines.Outcome, error) {
	args := m.Called(ctx, v, req, fn)
	if args.Get(0) == nil && args.Error(1) == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipelines.Outcome), args.Error(1)
}
