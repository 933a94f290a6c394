// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
)

const (
	pdfFont       = "Helvetica"
	pdfBodySize   = 11
	pdfLineHeight = 6
	pdfMargin     = 20
	pdfQuoteInset = 8
	pdfListInset  = 6
)

var pdfHeadingSizes = map[int]float64{1: 22, 2: 17, 3: 14, 4: 12}

// fpdf only embeds these formats.
var pdfImageTypes = map[string]string{
	"png":  "PNG",
	"jpeg": "JPG",
	"gif":  "GIF",
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	// content width between margins
	width float64
}

// PDF renders blocks into an A4 PDF using the core fonts.
func PDF(blocks []Block, images Images) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	w := &pdfWriter{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		width: pageW - 2*pdfMargin,
	}

	for i, b := range blocks {
		w.block(i, b, images)
		if pdf.Err() {
			return nil, fmt.Errorf("failed to render pdf block %d (%s): %w", i, b.Kind, pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) block(i int, b Block, images Images) {
	pdf := w.pdf
	switch b.Kind {
	case BlockHeading:
		size := pdfHeadingSizes[b.Level]
		pdf.Ln(2)
		pdf.SetFont(pdfFont, "B", size)
		pdf.MultiCell(0, size*0.5, w.tr(PlainText(b.Text)), "", "L", false)
		pdf.Ln(2)

	case BlockQuote:
		top := pdf.GetY()
		pdf.SetLeftMargin(pdfMargin + pdfQuoteInset)
		pdf.SetX(pdfMargin + pdfQuoteInset)
		pdf.SetTextColor(0x5B, 0x46, 0x36)
		w.spans(b.Spans(), "I")
		pdf.Ln(pdfLineHeight)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetLeftMargin(pdfMargin)

		pdf.SetDrawColor(0x8B, 0x6F, 0x47)
		pdf.SetLineWidth(0.8)
		// A quote split across pages only gets its border on the last page.
		if bottom := pdf.GetY() - 1; bottom > top {
			pdf.Line(pdfMargin+3, top, pdfMargin+3, bottom)
		}
		pdf.SetLineWidth(0.2)
		pdf.Ln(2)

	case BlockBullet, BlockNumbered:
		marker := "•"
		if b.Kind == BlockNumbered {
			marker = fmt.Sprintf("%d.", b.Number)
		}
		pdf.SetFont(pdfFont, "", pdfBodySize)
		pdf.SetX(pdfMargin)
		pdf.Write(pdfLineHeight, w.tr(marker))
		pdf.SetLeftMargin(pdfMargin + pdfListInset)
		pdf.SetX(pdfMargin + pdfListInset)
		w.spans(b.Spans(), "")
		pdf.SetLeftMargin(pdfMargin)
		pdf.Ln(pdfLineHeight)

	case BlockRule:
		y := pdf.GetY() + 3
		pdf.SetDrawColor(0xB0, 0xB0, 0xB0)
		pdf.Line(pdfMargin, y, pdfMargin+w.width, y)
		pdf.Ln(7)

	case BlockImage:
		w.image(i, b, images[b.Index])

	default:
		w.spans(b.Spans(), "")
		pdf.Ln(pdfLineHeight + 2)
	}
}

// spans writes flowing text, switching font style per span. base is merged
// into every span's style.
func (w *pdfWriter) spans(spans []Span, base string) {
	for _, s := range spans {
		style := base
		if s.Bold {
			style += "B"
		}
		if s.Italic && base != "I" {
			style += "I"
		}
		w.pdf.SetFont(pdfFont, style, pdfBodySize)
		w.pdf.Write(pdfLineHeight, w.tr(s.Text))
	}
}

func (w *pdfWriter) image(i int, b Block, img *models.InlineImage) {
	pdf := w.pdf
	if raw, ok := imageBytes(img); ok {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
		imageType, supported := pdfImageTypes[format]
		if err == nil && supported && cfg.Width > 0 {
			name := fmt.Sprintf("img-%d-%d", b.Index, i)
			opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))

			width := w.width * 0.8
			height := width * float64(cfg.Height) / float64(cfg.Width)
			pdf.ImageOptions(name, pdfMargin+(w.width-width)/2, pdf.GetY(), width, height, true, opts, 0, "")
			if b.Prompt != "" {
				w.caption(b.Prompt)
			}
			pdf.Ln(3)
			return
		}
		getLog().Warn().Err(err).Int("index", b.Index).Str("format", format).Msg("Image format cannot be embedded in pdf")
	}
	w.caption(UnavailableCaption(b.Index))
	pdf.Ln(3)
}

func (w *pdfWriter) caption(text string) {
	w.pdf.SetFont(pdfFont, "I", 9)
	w.pdf.SetTextColor(0x80, 0x80, 0x80)
	w.pdf.MultiCell(0, 5, w.tr(text), "", "C", false)
	w.pdf.SetTextColor(0, 0, 0)
}
