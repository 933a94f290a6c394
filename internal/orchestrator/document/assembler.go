// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/noldarim/launchpad/internal/logger"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetDocumentLogger()
		log = &l
	})
	return log
}

// ImageStatus reports whether one placeholder was filled.
type ImageStatus struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Bundle is everything produced for one document.
type Bundle struct {
	DOCX        []byte        `json:"-"`
	PDF         []byte        `json:"-"`
	Markdown    string        `json:"markdown"`
	ImageReport []ImageStatus `json:"image_report"`
	// PDFError is set when the PDF could not be produced. The DOCX is still
	// valid in that case.
	PDFError string `json:"pdf_error,omitempty"`
}

// HasPDF reports whether the bundle carries a PDF.
func (b *Bundle) HasPDF() bool {
	return len(b.PDF) > 0
}

// Report builds the per-placeholder status for markdown given the images
// that were generated. failures holds the error text of failed images.
// Entries follow the image blocks Parse produces, so every reported index is
// one the renderers place.
func Report(markdown string, images Images, failures map[int]string) []ImageStatus {
	var report []ImageStatus
	seen := make(map[int]bool)
	for _, b := range Parse(markdown) {
		if b.Kind != BlockImage || seen[b.Index] {
			continue
		}
		seen[b.Index] = true
		st := ImageStatus{Index: b.Index, Prompt: b.Prompt}
		if _, ok := imageBytes(images[b.Index]); ok {
			st.OK = true
		} else if msg := failures[b.Index]; msg != "" {
			st.Error = msg
		} else {
			st.Error = "image not generated"
		}
		report = append(report, st)
	}
	return report
}

// MarkEmbedded downgrades report entries whose image the DOCX renderer could
// not embed.
func MarkEmbedded(report []ImageStatus, embedded map[int]bool) []ImageStatus {
	for i := range report {
		if report[i].OK && !embedded[report[i].Index] {
			report[i].OK = false
			report[i].Error = "image could not be embedded"
		}
	}
	return report
}

// Resolve rewrites placeholders that have an image into Markdown images with
// a data URI. Unresolved placeholders become the unavailable caption.
func Resolve(markdown string, images Images) string {
	return placeholderPattern.ReplaceAllStringFunc(markdown, func(m string) string {
		sub := placeholderPattern.FindStringSubmatch(m)
		idx, err := strconv.Atoi(sub[1])
		if err != nil {
			return m
		}
		img := images[idx]
		if _, ok := imageBytes(img); !ok {
			return UnavailableCaption(idx)
		}
		alt := sub[2]
		if alt == "" {
			alt = "Imagem " + sub[1]
		}
		return fmt.Sprintf("![%s](%s)", alt, img.DataURI())
	})
}

// ImagesFrom indexes generated image results by placeholder index.
func ImagesFrom(results []models.ImageResult) (Images, map[int]string) {
	images := make(Images, len(results))
	failures := make(map[int]string)
	for _, r := range results {
		if r.OK() {
			images[r.Index] = r.Image
			continue
		}
		failures[r.Index] = r.Error
	}
	return images, failures
}

// Assemble builds the DOCX and, best effort, the PDF for markdown. Only a
// DOCX failure is returned as an error.
func Assemble(ctx context.Context, markdown string, results []models.ImageResult) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	images, failures := ImagesFrom(results)
	blocks := Parse(markdown)

	bundle := &Bundle{
		Markdown:    Resolve(markdown, images),
		ImageReport: Report(markdown, images, failures),
	}

	rendered, err := RenderDOCX(blocks, images)
	if err != nil {
		return nil, err
	}
	bundle.DOCX = rendered.Data
	bundle.ImageReport = MarkEmbedded(bundle.ImageReport, rendered.Embedded)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf, err := SafePDF(blocks, images)
	if err != nil {
		getLog().Warn().Err(err).Msg("PDF generation failed, continuing with DOCX only")
		bundle.PDFError = err.Error()
	} else {
		bundle.PDF = pdf
	}

	getLog().Info().
		Int("blocks", len(blocks)).
		Int("images", len(images)).
		Int("docx_bytes", len(bundle.DOCX)).
		Int("pdf_bytes", len(bundle.PDF)).
		Dur("took", time.Since(start)).
		Msg("Document assembled")
	return bundle, nil
}

// SafePDF is PDF with panics from the renderer turned into errors.
func SafePDF(blocks []Block, images Images) (pdf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			pdf = nil
			err = fmt.Errorf("pdf renderer panicked: %v", r)
		}
	}()
	return PDF(blocks, images)
}
