// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelines

import (
	"context"
	"errors"
	"testing"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMarkdownStep(t *testing.T) {
	w := newFakeWriter().reply(routeContent, "```markdown\n# Guia\n\nTexto.\n```")

	step, err := markdownStep(context.Background(), w, providers.TextRequest{System: routeContent})
	require.NoError(t, err)
	assert.Equal(t, models.StepKindMarkdown, step.Kind)
	text, err := step.Text()
	require.NoError(t, err)
	assert.Equal(t, "# Guia\n\nTexto.", text)

	_, err = markdownStep(context.Background(), w, providers.TextRequest{System: "outro"})
	assert.ErrorContains(t, err, "unexpected prompt")
}

func TestImageStep(t *testing.T) {
	img := pngImage(t)
	imager := &mockImager{}
	imager.On("GenerateImage", mock.Anything, "capa").Return(&models.ImageBundle{Images: []models.InlineImage{img}}, nil)
	imager.On("GenerateImage", mock.Anything, "vazio").Return(nil, nil)
	imager.On("GenerateImage", mock.Anything, "erro").Return(nil, errors.New("boom"))

	step, err := imageStep(context.Background(), imager, "capa")
	require.NoError(t, err)
	first, err := step.FirstImage()
	require.NoError(t, err)
	assert.Equal(t, img, *first)

	step, err = imageStep(context.Background(), imager, "vazio")
	require.NoError(t, err)
	_, err = step.FirstImage()
	assert.ErrorContains(t, err, "no image returned")

	_, err = imageStep(context.Background(), imager, "erro")
	assert.ErrorContains(t, err, "boom")
	imager.AssertExpectations(t)
}
