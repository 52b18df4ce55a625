package parser

import (
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/dates"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/normalize"
)

// Bias says which pass of the generic parser leads.
type Bias int

const (
	// BiasTable reads table candidates first and the remaining lines as
	// text.
	BiasTable Bias = iota
	// BiasText reads every line as text and adds rows only the table pass
	// found.
	BiasText
)

// Generic parses statements of any issuer.
type Generic struct {
	Bias Bias
}

// Tag implements Parser.
func (g Generic) Tag() models.IssuerTag { return models.IssuerGeneric }

// Strategy is the attempt name in diagnostics.
func (g Generic) Strategy() string {
	if g.Bias == BiasText {
		return "generic-text"
	}
	return "generic-table"
}

// ClassifyFit is the share of lines inside table candidates for the
// table-biased parser, and the share outside them for the text-biased one.
func (g Generic) ClassifyFit(doc Document) float64 {
	total, inTables := 0, 0
	for _, p := range doc.Pages {
		total += len(p.Lines)
		for _, t := range p.Tables {
			inTables += len(t.Lines)
		}
	}
	if total == 0 {
		return 0
	}
	share := float64(inTables) / float64(total)
	if g.Bias == BiasText {
		return 1 - share
	}
	return share
}

func (g Generic) config(doc Document) interpret.Config {
	cfg := interpret.DefaultConfig(doc.Lexer(), doc.Resolver(""))
	cfg.Opening = doc.Meta.OpeningBalance
	return cfg
}

// Parse implements Parser.
func (g Generic) Parse(doc Document) models.Attempt {
	tables := interpret.New(g.config(doc))
	covered := map[int]map[int]bool{}
	for _, page := range doc.Pages {
		covered[page.Number] = map[int]bool{}
		for _, t := range page.Tables {
			anchors, ok := TableAnchors(page, t, doc.Lexer())
			if !ok {
				continue
			}
			lines := tableLines(page, t)
			for _, l := range lines {
				covered[page.Number][l.Index] = true
			}
			tables.Lines(page.Number, lines, anchors)
		}
	}
	tableAttempt := tables.Attempt(g.Strategy())

	text := interpret.New(g.config(doc))
	for _, page := range doc.Pages {
		if g.Bias == BiasTable {
			page = withoutLines(page, covered[page.Number])
		}
		text.Page(page)
	}
	textAttempt := text.Attempt(g.Strategy())

	if g.Bias == BiasText {
		return union(g.Strategy(), textAttempt, tableAttempt)
	}
	return union(g.Strategy(), tableAttempt, textAttempt)
}

func tableLines(page models.Page, t models.Table) []models.Line {
	byIndex := make(map[int]models.Line, len(page.Lines))
	for _, l := range page.Lines {
		byIndex[l.Index] = l
	}
	out := make([]models.Line, 0, len(t.Lines))
	for _, idx := range t.Lines {
		if l, ok := byIndex[idx]; ok {
			out = append(out, l)
		}
	}
	return out
}

func withoutLines(page models.Page, skip map[int]bool) models.Page {
	if len(skip) == 0 {
		return page
	}
	out := page
	out.Lines = make([]models.Line, 0, len(page.Lines))
	for _, l := range page.Lines {
		if !skip[l.Index] {
			out.Lines = append(out.Lines, l)
		}
	}
	return out
}

// union keeps every row of primary and the rows of secondary that are
// neither printed on the same line nor the same transaction. Debug lines
// of secondary are added for lines primary never saw.
func union(strategy string, primary, secondary models.Attempt) models.Attempt {
	out := models.Attempt{Strategy: strategy}
	seenRow := map[string]bool{}
	seenKey := map[string]bool{}
	for _, r := range primary.Rows {
		out.Rows = append(out.Rows, r)
		seenRow[r.SourceRow] = true
		seenKey[normalize.Key(r.Transaction)] = true
	}
	for _, r := range secondary.Rows {
		k := normalize.Key(r.Transaction)
		if seenRow[r.SourceRow] || seenKey[k] {
			continue
		}
		out.Rows = append(out.Rows, r)
		seenRow[r.SourceRow] = true
		seenKey[k] = true
	}

	type lineKey struct{ page, line int }
	seenLine := map[lineKey]bool{}
	for _, d := range primary.Debug {
		seenLine[lineKey{d.Page, d.Line}] = true
		out.Debug = append(out.Debug, d)
	}
	for _, d := range secondary.Debug {
		if !seenLine[lineKey{d.Page, d.Line}] {
			out.Debug = append(out.Debug, d)
		}
	}
	sort.SliceStable(out.Debug, func(i, j int) bool {
		a, b := out.Debug[i], out.Debug[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Line < b.Line
	})
	for _, d := range out.Debug {
		switch {
		case d.Result != "rejected":
		case d.Reason == interpret.ReasonOutsidePeriod:
			out.AmbiguousDates++
		default:
			out.Rejected++
		}
	}
	return out
}

// TableAnchors returns the column roles of a table: from a header row at
// or just above its top, or else from what its cells contain.
func TableAnchors(page models.Page, t models.Table, lx amount.Lexer) (interpret.Anchors, bool) {
	if len(t.Lines) == 0 {
		return nil, false
	}
	first := t.Lines[0]
	for _, l := range page.Lines {
		if l.Index == first || l.Index == first-1 {
			if a, ok := interpret.LearnAnchors(l); ok {
				return a, true
			}
		}
	}
	return inferAnchors(t, lx)
}

// column is what the cells of one table column look like.
type column struct {
	span      models.Span
	dates     int
	money     int
	letters   int
	filled    map[int]bool
	magnitude decimal.Decimal // median of absolute amounts
}

// inferAnchors guesses roles from cell content. The column most often
// holding dates is the date, columns mostly holding amounts are money and
// the wordiest remaining column is the description. Among money columns
// the one with the largest amounts is the balance.
func inferAnchors(t models.Table, lx amount.Lexer) (interpret.Anchors, bool) {
	rows := len(t.Rows)
	if rows == 0 {
		return nil, false
	}
	cols := make([]column, len(t.Columns))
	for c := range cols {
		cols[c] = column{span: t.Columns[c], filled: map[int]bool{}}
		var values []decimal.Decimal
		for r, row := range t.Rows {
			if c >= len(row) || strings.TrimSpace(row[c]) == "" {
				continue
			}
			cell := strings.TrimSpace(row[c])
			if _, n, ok := dates.Match(cell); ok && n > 0 {
				cols[c].dates++
				continue
			}
			if v, ok := moneyCell(cell, lx); ok {
				cols[c].money++
				cols[c].filled[r] = true
				values = append(values, v.Abs())
				continue
			}
			if hasLetter(cell) {
				cols[c].letters++
			}
		}
		cols[c].magnitude = median(values)
	}

	minimum := max(1, rows/3)
	dateCol := -1
	for c, col := range cols {
		if col.dates >= minimum && (dateCol < 0 || col.dates > cols[dateCol].dates) {
			dateCol = c
		}
	}
	var moneyCols []int
	for c, col := range cols {
		if c != dateCol && col.money >= minimum && col.money > col.letters {
			moneyCols = append(moneyCols, c)
		}
	}
	if dateCol < 0 || len(moneyCols) == 0 {
		return nil, false
	}
	descCol := -1
	for c, col := range cols {
		if c == dateCol || contains(moneyCols, c) {
			continue
		}
		if col.letters > 0 && (descCol < 0 || col.letters > cols[descCol].letters) {
			descCol = c
		}
	}

	roles := map[int]interpret.Role{dateCol: interpret.RoleDate}
	if descCol >= 0 {
		roles[descCol] = interpret.RoleDescription
	}
	if len(moneyCols) > 3 {
		moneyCols = moneyCols[len(moneyCols)-3:]
	}
	switch len(moneyCols) {
	case 1:
		roles[moneyCols[0]] = interpret.RoleAmount
	case 2:
		a, b := moneyCols[0], moneyCols[1]
		switch {
		case disjoint(cols[a].filled, cols[b].filled):
			roles[a], roles[b] = interpret.RoleDebit, interpret.RoleCredit
		case cols[a].magnitude.GreaterThan(cols[b].magnitude):
			roles[a], roles[b] = interpret.RoleBalance, interpret.RoleAmount
		default:
			roles[a], roles[b] = interpret.RoleAmount, interpret.RoleBalance
		}
	case 3:
		bal := moneyCols[0]
		for _, c := range moneyCols[1:] {
			if cols[c].magnitude.GreaterThanOrEqual(cols[bal].magnitude) {
				bal = c
			}
		}
		rest := []interpret.Role{interpret.RoleDebit, interpret.RoleCredit}
		for _, c := range moneyCols {
			if c == bal {
				roles[c] = interpret.RoleBalance
				continue
			}
			roles[c], rest = rest[0], rest[1:]
		}
	}

	var out interpret.Anchors
	for c := range cols {
		if r, ok := roles[c]; ok {
			out = append(out, interpret.Anchor{Role: r, Span: cols[c].span})
		}
	}
	return out, true
}

// moneyCell lexes a cell whose last word is an amount, allowing a
// currency code or DR/CR marker around it.
func moneyCell(cell string, lx amount.Lexer) (decimal.Decimal, bool) {
	for _, f := range strings.Fields(cell) {
		if _, ok := amount.Currency(f); ok {
			continue
		}
		up := strings.ToUpper(f)
		if up == amount.MarkerDebit || up == amount.MarkerCredit {
			continue
		}
		l, ok := lx.Lex(f)
		if !ok {
			return decimal.Decimal{}, false
		}
		return l.Value, true
	}
	return decimal.Decimal{}, false
}

func disjoint(a, b map[int]bool) bool {
	for r := range a {
		if b[r] {
			return false
		}
	}
	return true
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return sorted[len(sorted)/2]
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
