// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/fumiama/go-docx"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

// Half-point font sizes, as go-docx expects them.
var headingSizes = map[int]string{1: "40", 2: "32", 3: "28", 4: "24"}

const (
	bodySize     = "22"
	captionSize  = "18"
	quoteColor   = "5B4636"
	quoteShade   = "F4EFE6"
	accentColor  = "8B6F47"
	captionColor = "808080"

	// Twips.
	quoteWidth  = 8640
	quoteIndent = 360
	// Eighths of a point.
	quoteBorderSize = 24
)

// Images maps placeholder index to its generated image. A nil entry, or a
// missing one, is an image that failed.
type Images map[int]*models.InlineImage

// UnavailableCaption is the text rendered in place of an image that could
// not be generated.
func UnavailableCaption(index int) string {
	return "[Imagem " + strconv.Itoa(index) + " indisponível]"
}

// Rendered is a Word document plus the placeholder indexes whose image was
// embedded in it.
type Rendered struct {
	Data     []byte
	Embedded map[int]bool
}

// DOCX renders blocks into a Word document.
func DOCX(blocks []Block, images Images) ([]byte, error) {
	r, err := RenderDOCX(blocks, images)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

// RenderDOCX is DOCX that also reports which images made it in.
func RenderDOCX(blocks []Block, images Images) (*Rendered, error) {
	w := docx.New().WithDefaultTheme()
	embedded := make(map[int]bool)

	for _, b := range blocks {
		switch b.Kind {
		case BlockHeading:
			p := w.AddParagraph()
			size := headingSizes[b.Level]
			for _, s := range b.Spans() {
				r := p.AddText(s.Text).Bold().Size(size)
				if s.Italic {
					r.Italic()
				}
			}

		case BlockQuote:
			addQuote(w, b)

		case BlockBullet:
			p := w.AddParagraph()
			p.AddText("•").Size(bodySize).AddTab()
			addSpans(p, b.Spans())

		case BlockNumbered:
			p := w.AddParagraph()
			p.AddText(strconv.Itoa(b.Number) + ".").Size(bodySize).AddTab()
			addSpans(p, b.Spans())

		case BlockRule:
			w.AddParagraph().Justification("center").
				AddText("— — —").Color(captionColor)

		case BlockImage:
			if addImage(w, b, images[b.Index]) {
				embedded[b.Index] = true
			}

		default:
			addSpans(w.AddParagraph(), b.Spans())
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write docx: %w", err)
	}
	return &Rendered{Data: buf.Bytes(), Embedded: embedded}, nil
}

// addQuote renders a quote as a one-cell shaded table with a thick left
// border, its paragraph indented and italic.
func addQuote(w *docx.Docx, b Block) {
	tbl := w.AddTableTwips([]int64{0}, []int64{quoteWidth}, 0, nil)
	none := &docx.WTableBorder{Val: "none"}
	tbl.TableProperties.TableBorders = &docx.WTableBorders{
		Top:     none,
		Left:    &docx.WTableBorder{Val: "single", Size: quoteBorderSize, Color: accentColor},
		Bottom:  none,
		Right:   none,
		InsideH: none,
		InsideV: none,
	}

	cell := tbl.TableRows[0].TableCells[0].Shade("clear", "auto", quoteShade)
	p := cell.AddParagraph()
	p.Properties = &docx.ParagraphProperties{Ind: &docx.Ind{Left: quoteIndent}}
	for _, s := range b.Spans() {
		r := p.AddText(s.Text).Italic().Color(quoteColor).Size(bodySize)
		if s.Bold {
			r.Bold()
		}
	}
}

func addSpans(p *docx.Paragraph, spans []Span) {
	for _, s := range spans {
		r := p.AddText(s.Text).Size(bodySize)
		if s.Bold {
			r.Bold()
		}
		if s.Italic {
			r.Italic()
		}
	}
}

// addImage embeds the image or, when it is missing or undecodable, writes
// the unavailable caption instead. It reports whether the image went in.
func addImage(w *docx.Docx, b Block, img *models.InlineImage) bool {
	if raw, ok := imageBytes(img); ok {
		_, err := w.AddParagraph().Justification("center").AddInlineDrawing(raw)
		if err == nil {
			if b.Prompt != "" {
				w.AddParagraph().Justification("center").
					AddText(b.Prompt).Italic().Size(captionSize).Color(captionColor)
			}
			return true
		}
		getLog().Warn().Err(err).Int("index", b.Index).Msg("Failed to embed image in docx")
	}

	w.AddParagraph().Justification("center").
		AddText(UnavailableCaption(b.Index)).Italic().Size(captionSize).Color(captionColor)
	return false
}

func imageBytes(img *models.InlineImage) ([]byte, bool) {
	if img == nil || img.Data == "" {
		return nil, false
	}
	raw, err := img.Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
