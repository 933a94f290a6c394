// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package document turns generated Markdown plus generated images into DOCX
// and PDF deliverables.
package document

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// BlockKind is the line-level construct a Block was recognized as.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockQuote
	BlockBullet
	BlockNumbered
	BlockRule
	BlockImage
)

func (k BlockKind) String() string {
	switch k {
	case BlockParagraph:
		return "paragraph"
	case BlockHeading:
		return "heading"
	case BlockQuote:
		return "quote"
	case BlockBullet:
		return "bullet"
	case BlockNumbered:
		return "numbered"
	case BlockRule:
		return "rule"
	case BlockImage:
		return "image"
	default:
		return "unknown"
	}
}

// Block is one rendered unit of a document.
type Block struct {
	Kind BlockKind
	// Level is the heading depth (1-4).
	Level int
	// Number is the item number of a numbered list entry.
	Number int
	// Index and Prompt describe an image placeholder.
	Index  int
	Prompt string
	Text   string
}

// Spans tokenizes the block text into bold/italic runs.
func (b Block) Spans() []Span {
	return ParseInline(b.Text)
}

// Placeholder is one [IMAGEM_n] marker found in a document.
type Placeholder struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt,omitempty"`
}

var (
	headingPattern     = regexp.MustCompile(`^(#{1,4})\s+(.+?)\s*#*$`)
	numberedPattern    = regexp.MustCompile(`^(\d+)[.)]\s+(.+)$`)
	rulePattern        = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
	placeholderPattern = regexp.MustCompile(`\[IMAGEM_(\d+)(?::\s*([^\]]*))?\]`)
)

// recognizer reports whether line is its construct and, if so, the block.
type recognizer func(line string) (Block, bool)

// Order matters: a rule ("***") must win over a bullet ("* ").
var recognizers = []recognizer{
	recognizeRule,
	recognizeHeading,
	recognizeQuote,
	recognizeImage,
	recognizeNumbered,
	recognizeBullet,
}

// Parse scans markdown line by line. Consecutive plain lines are joined into
// one paragraph; blank lines end paragraphs and quotes.
func Parse(markdown string) []Block {
	var blocks []Block
	var para []string
	var quote []string

	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: strings.Join(para, " ")})
			para = nil
		}
	}
	flushQuote := func() {
		if len(quote) > 0 {
			blocks = append(blocks, Block{Kind: BlockQuote, Text: strings.Join(quote, " ")})
			quote = nil
		}
	}

	handle := func(line string) {
		block, ok := recognize(line)
		if !ok {
			flushQuote()
			para = append(para, line)
			return
		}

		flushPara()
		if block.Kind == BlockQuote {
			quote = append(quote, block.Text)
			return
		}
		flushQuote()
		blocks = append(blocks, block)
	}

	sc := bufio.NewScanner(strings.NewReader(markdown))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flushPara()
			flushQuote()
			continue
		}

		for i, part := range splitPlaceholders(line) {
			// Text after an inline placeholder continues as a paragraph.
			if i > 0 && !placeholderPattern.MatchString(part) {
				flushQuote()
				para = append(para, part)
				continue
			}
			handle(part)
		}
	}
	flushPara()
	flushQuote()
	return blocks
}

// splitPlaceholders cuts line around every placeholder token so each token
// becomes its own image block. Blank text between tokens is dropped.
func splitPlaceholders(line string) []string {
	locs := placeholderPattern.FindAllStringIndex(line, -1)
	if locs == nil {
		return []string{line}
	}
	var parts []string
	pos := 0
	for _, loc := range locs {
		if text := strings.TrimSpace(line[pos:loc[0]]); text != "" {
			parts = append(parts, text)
		}
		parts = append(parts, line[loc[0]:loc[1]])
		pos = loc[1]
	}
	if text := strings.TrimSpace(line[pos:]); text != "" {
		parts = append(parts, text)
	}
	return parts
}

func recognize(line string) (Block, bool) {
	for _, r := range recognizers {
		if b, ok := r(line); ok {
			return b, true
		}
	}
	return Block{}, false
}

func recognizeRule(line string) (Block, bool) {
	if rulePattern.MatchString(line) {
		return Block{Kind: BlockRule}, true
	}
	return Block{}, false
}

func recognizeHeading(line string) (Block, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return Block{}, false
	}
	return Block{Kind: BlockHeading, Level: len(m[1]), Text: m[2]}, true
}

func recognizeQuote(line string) (Block, bool) {
	if !strings.HasPrefix(line, ">") {
		return Block{}, false
	}
	return Block{Kind: BlockQuote, Text: strings.TrimSpace(strings.TrimLeft(line, ">"))}, true
}

// recognizeImage only matches a placeholder that is the whole line.
func recognizeImage(line string) (Block, bool) {
	loc := placeholderPattern.FindStringSubmatchIndex(line)
	if loc == nil || loc[0] != 0 || loc[1] != len(line) {
		return Block{}, false
	}
	idx, _ := strconv.Atoi(line[loc[2]:loc[3]])
	var prompt string
	if loc[4] >= 0 {
		prompt = strings.TrimSpace(line[loc[4]:loc[5]])
	}
	return Block{Kind: BlockImage, Index: idx, Prompt: prompt}, true
}

func recognizeNumbered(line string) (Block, bool) {
	m := numberedPattern.FindStringSubmatch(line)
	if m == nil {
		return Block{}, false
	}
	n, _ := strconv.Atoi(m[1])
	return Block{Kind: BlockNumbered, Number: n, Text: m[2]}, true
}

func recognizeBullet(line string) (Block, bool) {
	for _, prefix := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return Block{Kind: BlockBullet, Text: strings.TrimSpace(line[len(prefix):])}, true
		}
	}
	return Block{}, false
}

// Placeholders lists every image placeholder in markdown in order of
// appearance, including ones embedded in a paragraph (Parse turns those into
// image blocks too). Repeated indexes are reported once.
func Placeholders(markdown string) []Placeholder {
	var out []Placeholder
	seen := make(map[int]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(markdown, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, Placeholder{Index: idx, Prompt: strings.TrimSpace(m[2])})
	}
	return out
}

// Span is a run of text with uniform emphasis.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
}

var inlinePattern = regexp.MustCompile(`\*\*\*(.+?)\*\*\*|\*\*(.+?)\*\*|__(.+?)__|\*([^*]+?)\*|_([^_]+?)_`)

// ParseInline splits text into spans at **bold**, *italic* and _italic_
// markers. Unterminated markers are kept as literal text.
func ParseInline(text string) []Span {
	var spans []Span
	pos := 0
	for _, m := range inlinePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > pos {
			spans = append(spans, Span{Text: text[pos:m[0]]})
		}
		switch {
		case m[2] >= 0:
			spans = append(spans, Span{Text: text[m[2]:m[3]], Bold: true, Italic: true})
		case m[4] >= 0:
			spans = append(spans, Span{Text: text[m[4]:m[5]], Bold: true})
		case m[6] >= 0:
			spans = append(spans, Span{Text: text[m[6]:m[7]], Bold: true})
		case m[8] >= 0:
			spans = append(spans, Span{Text: text[m[8]:m[9]], Italic: true})
		case m[10] >= 0:
			spans = append(spans, Span{Text: text[m[10]:m[11]], Italic: true})
		}
		pos = m[1]
	}
	if pos < len(text) {
		spans = append(spans, Span{Text: text[pos:]})
	}
	return spans
}

// PlainText strips inline emphasis markers.
func PlainText(text string) string {
	var sb strings.Builder
	for _, s := range ParseInline(text) {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
