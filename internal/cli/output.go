// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/pipelines"
)

// writeOutputs writes a completed run under dir/<runID> and returns the
// written paths:
//
//	output.json      full output, images inline
//	output.md        markdown, when present
//	output.html      html, when present
//	images/NN.<ext>  generated images
//	theme-preview.*  theme preview image
//	document.docx    production document
//	document.pdf     when the PDF could be produced
func writeOutputs(dir, runID string, outcome *pipelines.Outcome) ([]string, error) {
	root := filepath.Join(dir, runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	out := outcome.Output
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	if err := write("output.json", data); err != nil {
		return written, err
	}
	if out.Markdown != "" {
		if err := write("output.md", []byte(out.Markdown)); err != nil {
			return written, err
		}
	}
	if out.HTML != "" {
		if err := write("output.html", []byte(out.HTML)); err != nil {
			return written, err
		}
	}

	for _, r := range out.Images {
		if !r.OK() {
			continue
		}
		raw, err := r.Image.Bytes()
		if err != nil {
			return written, fmt.Errorf("image %d: %w", r.Index, err)
		}
		if err := write(fmt.Sprintf("images/%02d%s", r.Index, imageExt(r.Image.MimeType)), raw); err != nil {
			return written, err
		}
	}
	if out.Theme != nil && out.Theme.Preview != nil {
		raw, err := out.Theme.Preview.Bytes()
		if err != nil {
			return written, fmt.Errorf("theme preview: %w", err)
		}
		if err := write("theme-preview"+imageExt(out.Theme.Preview.MimeType), raw); err != nil {
			return written, err
		}
	}

	if doc := outcome.Document; doc != nil {
		if err := write("document.docx", doc.DOCX); err != nil {
			return written, err
		}
		if doc.HasPDF() {
			if err := write("document.pdf", doc.PDF); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func imageExt(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func printSummary(w io.Writer, out *models.PipelineOutput, written []string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────")
	fmt.Fprintf(w, "  Variant:  %s\n", out.Variant)
	fmt.Fprintf(w, "  Model:    %s\n", out.Meta.Model)
	if out.Meta.SectionCount > 0 {
		fmt.Fprintf(w, "  Sections: %d\n", out.Meta.SectionCount)
	}
	if !out.Meta.CompletedAt.IsZero() && !out.Meta.StartedAt.IsZero() {
		fmt.Fprintf(w, "  Duration: %s\n", out.Meta.CompletedAt.Sub(out.Meta.StartedAt).Round(time.Second))
	}
	if len(out.Meta.Warnings) > 0 {
		fmt.Fprintf(w, "  Warnings:\n    - %s\n", strings.Join(out.Meta.Warnings, "\n    - "))
	}
	fmt.Fprintln(w, "  Files:")
	for _, p := range written {
		fmt.Fprintf(w, "    %s\n", p)
	}
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────")
}
