// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules holds the fixed rule text each prompt family interpolates.
type Rules struct {
	Copywriting []string `yaml:"copywriting"`
	Design      []string `yaml:"design"`
	HTML        []string `yaml:"html"`
	Council     []string `yaml:"council"`
	Production  []string `yaml:"production"`
	OrderBumps  []string `yaml:"order_bumps"`
	Theme       []string `yaml:"theme"`
}

// embedded is parsed once at package load so a broken rules.yaml fails the
// binary at start-up instead of the first run.
var embedded = mustParseRules(defaultRules)

func mustParseRules(data []byte) Rules {
	r, err := parseRules(data)
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml is invalid: %v", err))
	}
	for name, group := range r.groups() {
		if len(group) == 0 {
			panic(fmt.Sprintf("embedded rules.yaml is missing group %q", name))
		}
	}
	return r
}

func parseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r Rules) groups() map[string][]string {
	return map[string][]string{
		"copywriting": r.Copywriting,
		"design":      r.Design,
		"html":        r.HTML,
		"council":     r.Council,
		"production":  r.Production,
		"order_bumps": r.OrderBumps,
		"theme":       r.Theme,
	}
}

// DefaultRules returns a copy of the embedded rule set.
func DefaultRules() Rules {
	return Rules{
		Copywriting: slices.Clone(embedded.Copywriting),
		Design:      slices.Clone(embedded.Design),
		HTML:        slices.Clone(embedded.HTML),
		Council:     slices.Clone(embedded.Council),
		Production:  slices.Clone(embedded.Production),
		OrderBumps:  slices.Clone(embedded.OrderBumps),
		Theme:       slices.Clone(embedded.Theme),
	}
}

// LoadRules returns the embedded rules with every group present in the file
// at path replacing the default. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	override, err := parseRules(data)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	merge(&rules.Copywriting, override.Copywriting)
	merge(&rules.Design, override.Design)
	merge(&rules.HTML, override.HTML)
	merge(&rules.Council, override.Council)
	merge(&rules.Production, override.Production)
	merge(&rules.OrderBumps, override.OrderBumps)
	merge(&rules.Theme, override.Theme)
	return rules, nil
}

func merge(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}
