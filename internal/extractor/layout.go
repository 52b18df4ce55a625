package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// glyph is a positioned run of text as a back-end reports it. y grows
// downwards; w is zero when the back-end does not know the advance.
type glyph struct {
	s    string
	x, y float64
	w    float64
	size float64
}

const (
	defaultFontSize = 10.0
	minLineTol      = 2.0
)

// lineUp groups glyphs into visual lines. Glyphs belong to the same line
// when their baselines differ by less than half the median font height.
// With merge set, neighbouring glyphs are joined into words; otherwise
// every glyph is already a word.
func lineUp(glyphs []glyph, merge bool) []models.Line {
	if len(glyphs) == 0 {
		return nil
	}
	if merge {
		glyphs = splitRuns(glyphs)
	}
	tol := math.Max(medianSize(glyphs)/2, minLineTol)

	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].y != sorted[j].y {
			return sorted[i].y < sorted[j].y
		}
		return sorted[i].x < sorted[j].x
	})

	var groups [][]glyph
	var lineY float64
	for _, g := range sorted {
		if len(groups) == 0 || math.Abs(g.y-lineY) >= tol {
			groups = append(groups, []glyph{g})
			lineY = g.y
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], g)
	}

	lines := make([]models.Line, 0, len(groups))
	for _, grp := range groups {
		sort.SliceStable(grp, func(i, j int) bool { return grp[i].x < grp[j].x })
		var tokens []models.Token
		if merge {
			tokens = words(grp)
		} else {
			for _, g := range grp {
				if strings.TrimSpace(g.s) == "" {
					continue
				}
				tokens = append(tokens, models.Token{Text: g.s, X0: g.x, X1: g.x + g.w, Y: g.y, FontSize: g.size})
			}
		}
		if len(tokens) == 0 {
			continue
		}
		lines = append(lines, models.Line{Index: len(lines), Y: grp[0].y, Tokens: tokens})
	}
	return lines
}

// splitRuns breaks multi-character glyph runs into one glyph per rune,
// spreading the run's width evenly.
func splitRuns(in []glyph) []glyph {
	out := make([]glyph, 0, len(in))
	for _, g := range in {
		n := utf8.RuneCountInString(g.s)
		if n <= 1 {
			out = append(out, g)
			continue
		}
		w := g.w / float64(n)
		i := 0
		for _, r := range g.s {
			out = append(out, glyph{s: string(r), x: g.x + float64(i)*w, y: g.y, w: w, size: g.size})
			i++
		}
	}
	return out
}

// words joins glyphs on one line into tokens, splitting on whitespace
// glyphs and on horizontal gaps wider than a quarter of the font size.
func words(line []glyph) []models.Token {
	var tokens []models.Token
	var cur strings.Builder
	var tok models.Token
	flush := func() {
		if cur.Len() > 0 {
			tok.Text = cur.String()
			tokens = append(tokens, tok)
		}
		cur.Reset()
	}
	prevEnd := math.Inf(-1)
	for _, g := range line {
		size := g.size
		if size <= 0 {
			size = defaultFontSize
		}
		w := g.w
		if w <= 0 {
			w = size * 0.5
		}
		if isBlank(g.s) {
			flush()
			prevEnd = g.x + w
			continue
		}
		if cur.Len() > 0 && g.x-prevEnd > math.Max(size*0.25, 1) {
			flush()
		}
		if cur.Len() == 0 {
			tok = models.Token{X0: g.x, Y: g.y, FontSize: size}
		}
		cur.WriteString(g.s)
		tok.X1 = g.x + w
		prevEnd = g.x + w
	}
	flush()
	return tokens
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

func medianSize(glyphs []glyph) float64 {
	sizes := make([]float64, 0, len(glyphs))
	for _, g := range glyphs {
		if g.size > 0 {
			sizes = append(sizes, g.size)
		}
	}
	if len(sizes) == 0 {
		return defaultFontSize
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// Synthetic geometry for back-ends that only return text.
const (
	charWidth  = 6.0
	lineHeight = 14.0
	textSize   = 12.0
)

// linesFromText turns plain text into lines with synthetic positions: a
// word's x comes from its character offset so runs of spaces keep
// columns apart.
func linesFromText(text string) []models.Line {
	var lines []models.Line
	for row, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		raw = strings.ReplaceAll(raw, "\t", "    ")
		var tokens []models.Token
		for _, field := range splitKeepOffsets(raw) {
			x0 := float64(field.offset) * charWidth
			tokens = append(tokens, models.Token{
				Text:     field.text,
				X0:       x0,
				X1:       x0 + float64(utf8.RuneCountInString(field.text))*charWidth,
				Y:        float64(row) * lineHeight,
				FontSize: textSize,
			})
		}
		if len(tokens) == 0 {
			continue
		}
		lines = append(lines, models.Line{Index: len(lines), Y: float64(row) * lineHeight, Tokens: tokens})
	}
	return lines
}

type field struct {
	text   string
	offset int // rune offset in the line
}

func splitKeepOffsets(s string) []field {
	var out []field
	start := -1
	i := 0
	var cur []rune
	for _, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, field{text: string(cur), offset: start})
				start, cur = -1, cur[:0]
			}
		} else {
			if start < 0 {
				start = i
			}
			cur = append(cur, r)
		}
		i++
	}
	if start >= 0 {
		out = append(out, field{text: string(cur), offset: start})
	}
	return out
}

// PageFromText builds a page from plain text with synthetic geometry and
// table candidates, the same way pages from text-only back-ends are built.
func PageFromText(num int, text string) models.Page {
	lines := linesFromText(text)
	return models.Page{
		Number: num,
		Width:  letterWidth,
		Height: letterHeight,
		Lines:  lines,
		Tables: DetectTables(lines),
		Source: SourceRaw,
	}
}
