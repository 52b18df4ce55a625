package extractor

import (
	"sort"
	"strings"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

const (
	minTableRows    = 3
	minTableColumns = 3
	maxTableColumns = 10
	maxThinGap      = 2   // narrow lines allowed inside a table run
	minWideShare    = 0.6 // share of rows that must fill three columns
	cellGapFactor   = 1.2 // gap, in font sizes, that separates two cells
)

type cell struct {
	text   string
	x0, x1 float64
}

// cells merges a line's tokens into cells: words closer than a little
// more than one font size belong to the same cell.
func cells(l models.Line) []cell {
	var out []cell
	for _, t := range l.Tokens {
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if n := len(out); n > 0 && t.X0-out[n-1].x1 < size*cellGapFactor {
			out[n-1].text += " " + t.Text
			out[n-1].x1 = t.X1
			continue
		}
		out = append(out, cell{text: t.Text, x0: t.X0, x1: t.X1})
	}
	return out
}

// DetectTables finds runs of lines whose cells line up in stable columns.
// Narrow lines (wrapped descriptions) inside a run are kept in the table.
func DetectTables(lines []models.Line) []models.Table {
	var tables []models.Table
	start, last, thin := -1, -1, 0
	closeRun := func() {
		if start >= 0 && last >= start {
			if t, ok := buildTable(lines[start : last+1]); ok {
				tables = append(tables, t)
			}
		}
		start, last, thin = -1, -1, 0
	}
	for i, l := range lines {
		wide := len(cells(l)) >= minTableColumns
		switch {
		case wide && start < 0:
			start, last, thin = i, i, 0
		case wide:
			last, thin = i, 0
		case start >= 0:
			thin++
			if thin > maxThinGap {
				closeRun()
			}
		}
	}
	closeRun()
	return tables
}

func buildTable(run []models.Line) (models.Table, bool) {
	var spans []models.Span
	wideRows := 0
	for _, l := range run {
		cs := cells(l)
		if len(cs) >= minTableColumns {
			wideRows++
		}
		for _, c := range cs {
			spans = append(spans, models.Span{X0: c.x0, X1: c.x1})
		}
	}
	if wideRows < minTableRows {
		return models.Table{}, false
	}
	cols := mergeSpans(spans)
	if len(cols) < minTableColumns || len(cols) > maxTableColumns {
		return models.Table{}, false
	}

	table := models.Table{Columns: cols}
	filled := 0
	for _, l := range run {
		row := make([]string, len(cols))
		used := map[int]bool{}
		for _, c := range cells(l) {
			idx := columnOf(cols, c.x0, c.x1)
			used[idx] = true
			if row[idx] != "" {
				row[idx] += " "
			}
			row[idx] += c.text
		}
		if len(used) >= minTableColumns {
			filled++
		}
		table.Lines = append(table.Lines, l.Index)
		table.Rows = append(table.Rows, row)
	}
	if float64(filled) < minWideShare*float64(wideRows) {
		return models.Table{}, false
	}
	return table, true
}

// mergeSpans projects spans onto the x axis and merges overlaps into columns.
func mergeSpans(spans []models.Span) []models.Span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].X0 < spans[j].X0 })
	out := []models.Span{spans[0]}
	for _, s := range spans[1:] {
		cur := &out[len(out)-1]
		if s.X0 <= cur.X1 {
			if s.X1 > cur.X1 {
				cur.X1 = s.X1
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// columnOf returns the column with the largest overlap, or the nearest one.
func columnOf(cols []models.Span, x0, x1 float64) int {
	best, bestOverlap := 0, -1.0
	for i, c := range cols {
		if o := c.Overlap(x0, x1); o > bestOverlap {
			best, bestOverlap = i, o
		}
	}
	if bestOverlap > 0 {
		return best
	}
	mid := (x0 + x1) / 2
	bestDist := -1.0
	for i, c := range cols {
		d := mid - (c.X0+c.X1)/2
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// RowText joins a table row's non-empty cells for logging and debugging.
func RowText(row []string) string {
	var parts []string
	for _, c := range row {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " | ")
}
