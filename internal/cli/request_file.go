// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/noldarim/launchpad/internal/orchestrator/models"

	"gopkg.in/yaml.v3"
)

// RequestFile is a run request stored as YAML. Paths are relative to the
// file itself.
type RequestFile struct {
	Variant      string   `yaml:"variant"`
	Description  string   `yaml:"description"`
	Topic        string   `yaml:"topic"`
	ProductName  string   `yaml:"product_name"`
	Audience     string   `yaml:"audience"`
	Model        string   `yaml:"model"`
	Scope        string   `yaml:"scope"`
	HasOrderBump bool     `yaml:"has_order_bump"`
	SkipReview   bool     `yaml:"skip_review"`
	Images       []string `yaml:"images"`
	SourceURLs   []string `yaml:"source_urls"`
	PriorFile    string   `yaml:"prior_artifact_file"`
	HTMLFile     string   `yaml:"html_file"`
}

// LoadRequestFile loads and validates a request YAML file
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var rf RequestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse request YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, img := range rf.Images {
		rf.Images[i] = resolvePath(base, img)
	}
	if rf.PriorFile != "" {
		rf.PriorFile = resolvePath(base, rf.PriorFile)
	}
	if rf.HTMLFile != "" {
		rf.HTMLFile = resolvePath(base, rf.HTMLFile)
	}

	if rf.Variant != "" {
		if _, err := models.ParseVariant(rf.Variant); err != nil {
			return nil, fmt.Errorf("invalid request file: %w", err)
		}
	}
	return &rf, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ToRequest reads referenced files and builds the pipeline request.
func (rf *RequestFile) ToRequest() (models.PipelineRequest, error) {
	req := models.PipelineRequest{
		Description:  rf.Description,
		Topic:        rf.Topic,
		ProductName:  rf.ProductName,
		Audience:     rf.Audience,
		Model:        rf.Model,
		Scope:        models.Scope(rf.Scope),
		HasOrderBump: rf.HasOrderBump,
		SkipReview:   rf.SkipReview,
		SourceURLs:   rf.SourceURLs,
	}

	images, err := loadImages(rf.Images)
	if err != nil {
		return req, err
	}
	req.ReferenceImages = images

	if rf.PriorFile != "" {
		data, err := os.ReadFile(rf.PriorFile)
		if err != nil {
			return req, fmt.Errorf("failed to read prior artifact: %w", err)
		}
		req.PriorArtifact = string(data)
	}
	if rf.HTMLFile != "" {
		data, err := os.ReadFile(rf.HTMLFile)
		if err != nil {
			return req, fmt.Errorf("failed to read html file: %w", err)
		}
		req.RawHTML = string(data)
	}
	return req, nil
}

// loadImages reads reference images and sniffs their type.
func loadImages(paths []string) ([]models.InlineImage, error) {
	images := make([]models.InlineImage, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image %s is empty", p)
		}
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			return nil, fmt.Errorf("image %s: unsupported type %s", p, mime)
		}
		images = append(images, models.NewInlineImage(mime, data))
	}
	return images, nil
}

// stringList is a repeatable flag value.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("value cannot be empty")
	}
	*s = append(*s, v)
	return nil
}
