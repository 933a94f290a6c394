// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// OrderBumpCategory is the product type of an order bump.
type OrderBumpCategory string

const (
	BumpEbook     OrderBumpCategory = "ebook"
	BumpCourse    OrderBumpCategory = "course"
	BumpTemplate  OrderBumpCategory = "template"
	BumpMentoring OrderBumpCategory = "mentoring"
	BumpCommunity OrderBumpCategory = "community"
	BumpTool      OrderBumpCategory = "tool"
)

var orderBumpCategories = map[OrderBumpCategory]bool{
	BumpEbook: true, BumpCourse: true, BumpTemplate: true,
	BumpMentoring: true, BumpCommunity: true, BumpTool: true,
}

// OrderBump is a low-price complementary offer.
type OrderBump struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       float64           `json:"price"`
	Category    OrderBumpCategory `json:"category"`
}

func (b OrderBump) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("order bump name is empty")
	}
	if math.IsNaN(b.Price) || math.IsInf(b.Price, 0) || b.Price < 0 {
		return fmt.Errorf("order bump %q: invalid price %v", b.Name, b.Price)
	}
	if !orderBumpCategories[b.Category] {
		return fmt.Errorf("order bump %q: unknown category %q", b.Name, b.Category)
	}
	return nil
}

// PlanCategory is the asset type of a production plan item.
type PlanCategory string

const (
	PlanCopy     PlanCategory = "copy"
	PlanImage    PlanCategory = "image"
	PlanVideo    PlanCategory = "video"
	PlanDocument PlanCategory = "document"
	PlanEmail    PlanCategory = "email"
)

var planCategories = map[PlanCategory]bool{
	PlanCopy: true, PlanImage: true, PlanVideo: true, PlanDocument: true, PlanEmail: true,
}

// ProductionPlanItem is one deliverable of a production plan.
type ProductionPlanItem struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    PlanCategory `json:"category"`
	Priority    int          `json:"priority"`
}

func (p ProductionPlanItem) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("plan item name is empty")
	}
	if !planCategories[p.Category] {
		return fmt.Errorf("plan item %q: unknown category %q", p.Name, p.Category)
	}
	return nil
}

// TokenCategory groups design tokens.
type TokenCategory string

const (
	TokenColor      TokenCategory = "color"
	TokenTypography TokenCategory = "typography"
	TokenSpacing    TokenCategory = "spacing"
	TokenRadius     TokenCategory = "radius"
	TokenShadow     TokenCategory = "shadow"
)

var tokenCategories = map[TokenCategory]bool{
	TokenColor: true, TokenTypography: true, TokenSpacing: true, TokenRadius: true, TokenShadow: true,
}

// ThemeToken is one extracted design token.
type ThemeToken struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Category TokenCategory `json:"category"`
}

func (t ThemeToken) Validate() error {
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Value) == "" {
		return errors.New("theme token needs a name and a value")
	}
	if !tokenCategories[t.Category] {
		return fmt.Errorf("theme token %q: unknown category %q", t.Name, t.Category)
	}
	return nil
}

// Theme is the result of a theme extraction.
type Theme struct {
	Name    string       `json:"name"`
	Tokens  []ThemeToken `json:"tokens"`
	Preview *InlineImage `json:"preview,omitempty"`
}

// Research is free-text market research with its sources.
type Research struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
}

// CouncilIdea is one proposal that went through the council.
type CouncilIdea struct {
	Name      string  `json:"name"`
	Proposal  string  `json:"proposal"`
	Critique  string  `json:"critique,omitempty"`
	Viability string  `json:"viability,omitempty"`
	Score     float64 `json:"score"`
	Attempt   int     `json:"attempt"`
}

// CouncilMeta reports how the council reached its result.
type CouncilMeta struct {
	Attempts    int      `json:"attempts"`
	Rejected    []string `json:"rejected,omitempty"`
	Threshold   float64  `json:"threshold"`
	MinApproved int      `json:"min_approved"`
}

// CouncilResult holds the approved ideas accumulated across attempts.
type CouncilResult struct {
	Ideas []CouncilIdea `json:"ideas"`
	Meta  CouncilMeta   `json:"meta"`
}
