// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Variant names one kind of pipeline run.
type Variant string

const (
	VariantVariations Variant = "variations"
	VariantLanding    Variant = "landing"
	VariantCouncil    Variant = "council"
	VariantProduction Variant = "production"
	VariantTheme      Variant = "theme"
	VariantOrderBumps Variant = "order-bumps"
	VariantResearch   Variant = "research"
	VariantPlan       Variant = "plan"
)

// Variants lists every runnable variant in display order.
var Variants = []Variant{
	VariantVariations,
	VariantLanding,
	VariantCouncil,
	VariantProduction,
	VariantTheme,
	VariantOrderBumps,
	VariantResearch,
	VariantPlan,
}

// ParseVariant returns the variant named s.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// Scope selects what a variations run generates.
type Scope string

const (
	ScopeSection   Scope = "section"
	ScopeComponent Scope = "component"
	ScopeBoth      Scope = "both"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSection, ScopeComponent, ScopeBoth:
		return true
	}
	return false
}

// InlineImage is an image carried inline as base64.
type InlineImage struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// DataURI renders the image as a data: URI.
func (i InlineImage) DataURI() string {
	return "data:" + i.MimeType + ";base64," + i.Data
}

// Bytes decodes the base64 payload.
func (i InlineImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(i.Data)
}

// NewInlineImage encodes raw bytes.
func NewInlineImage(mimeType string, data []byte) InlineImage {
	return InlineImage{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}
}

// PipelineRequest is the input of one run. Pipelines receive it by value and
// never modify it.
type PipelineRequest struct {
	Description     string        `json:"description"`
	ReferenceImages []InlineImage `json:"reference_images,omitempty"`
	SourceURLs      []string      `json:"source_urls,omitempty"`
	Model           string        `json:"model,omitempty"`
	Scope           Scope         `json:"scope,omitempty"`
	HasOrderBump    bool          `json:"has_order_bump,omitempty"`
	Topic           string        `json:"topic,omitempty"`
	PriorArtifact   string        `json:"prior_artifact,omitempty"` // Previous output to refine
	RawHTML         string        `json:"raw_html,omitempty"`       // Page to analyze for theme extraction
	ProductName     string        `json:"product_name,omitempty"`
	Audience        string        `json:"audience,omitempty"`
	SkipReview      bool          `json:"skip_review,omitempty"` // Landing pages only: skip the HTML review pass
}

// Subject returns the topic if set, otherwise the description.
func (r PipelineRequest) Subject() string {
	if strings.TrimSpace(r.Topic) != "" {
		return r.Topic
	}
	return r.Description
}

// Validate checks the fields required by variant v.
func (r PipelineRequest) Validate(v Variant) error {
	switch v {
	case VariantTheme:
		if len(r.ReferenceImages) == 0 && strings.TrimSpace(r.RawHTML) == "" {
			return errors.New("theme extraction needs reference images or raw html")
		}
	default:
		if strings.TrimSpace(r.Subject()) == "" {
			return errors.New("description is required")
		}
	}

	if v == VariantVariations && r.Scope != "" && !r.Scope.Valid() {
		return fmt.Errorf("invalid scope %q", r.Scope)
	}

	for i, img := range r.ReferenceImages {
		if !strings.HasPrefix(img.MimeType, "image/") {
			return fmt.Errorf("reference image %d: unsupported mime type %q", i, img.MimeType)
		}
		if img.Data == "" {
			return fmt.Errorf("reference image %d: empty payload", i)
		}
	}
	return nil
}
