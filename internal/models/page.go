package models

import (
	"strings"
	"unicode"
)

// Token is a word with its position on the page. Y grows downwards.
type Token struct {
	Text     string  `json:"text"`
	X0       float64 `json:"x0"`
	X1       float64 `json:"x1"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
}

// Center returns the horizontal midpoint of the token.
func (t Token) Center() float64 {
	return (t.X0 + t.X1) / 2
}

// Line is one visual line of tokens ordered left to right.
type Line struct {
	Index  int     `json:"index"`
	Y      float64 `json:"y"`
	Tokens []Token `json:"tokens"`
}

// Text joins the line's tokens with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Tokens))
	for i, t := range l.Tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Span is a horizontal range on the page.
type Span struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
}

// Overlap returns how much of [x0,x1] falls inside the span.
func (s Span) Overlap(x0, x1 float64) float64 {
	lo, hi := s.X0, s.X1
	if x0 > lo {
		lo = x0
	}
	if x1 < hi {
		hi = x1
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// Table is a run of lines whose tokens fall into stable columns.
type Table struct {
	Columns []Span     `json:"columns"`
	Lines   []int      `json:"lines"` // indices into Page.Lines
	Rows    [][]string `json:"rows"`
}

// Page is the text layer of a single PDF page.
type Page struct {
	Number    int     `json:"number"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Lines     []Line  `json:"lines"`
	Tables    []Table `json:"tables,omitempty"`
	IsScanned bool    `json:"is_scanned"`
	Source    string  `json:"source"` // back-end that produced the lines
}

// Text returns the reflowed page text, one visual line per row.
func (p Page) Text() string {
	var sb strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.Text())
	}
	return sb.String()
}

// TokenCount returns the number of tokens that contain a letter or digit.
func (p Page) TokenCount() int {
	n := 0
	for _, l := range p.Lines {
		for _, t := range l.Tokens {
			if hasAlnum(t.Text) {
				n++
			}
		}
	}
	return n
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// PageSet is the extracted text layer of a whole document.
type PageSet struct {
	Pages    []Page            `json:"pages"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Text returns all pages' reflowed text separated by form feeds.
func (ps PageSet) Text() string {
	parts := make([]string, len(ps.Pages))
	for i, p := range ps.Pages {
		parts[i] = p.Text()
	}
	return strings.Join(parts, "\f")
}

// Scanned reports whether any page had to come from OCR.
func (ps PageSet) Scanned() bool {
	for _, p := range ps.Pages {
		if p.IsScanned {
			return true
		}
	}
	return false
}
