// Package statement infers the facts about a statement that every parser
// needs before reading rows: period, date order, decimal convention,
// currency, layout, and the balances and totals printed in its summary.
package statement

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/dates"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Hints carry what is known before inspection.
type Hints struct {
	Issuer     models.IssuerTag
	Confidence float64
	// DateOrder is the issuer's fixed field order; empty means elect it.
	DateOrder models.DateOrder
	Locale    models.Locale
	// Currency is the issuer's home currency, used when no glyph votes.
	Currency string
}

// Inspect builds the statement meta for a page set.
func Inspect(ps models.PageSet, h Hints) models.StatementMeta {
	meta := models.StatementMeta{
		Issuer:           h.Issuer,
		IssuerConfidence: h.Confidence,
		IsScanned:        ps.Scanned(),
	}
	if meta.Issuer == "" {
		meta.Issuer = models.IssuerGeneric
	}

	var tokens []string
	var lines []string
	for _, p := range ps.Pages {
		for _, l := range p.Lines {
			lines = append(lines, l.Text())
			for _, t := range l.Tokens {
				tokens = append(tokens, t.Text)
			}
		}
	}

	conv := models.ConventionUS
	if h.Locale == models.LocaleEU {
		conv = models.ConventionEU
	}
	meta.Convention = amount.Vote(tokens, conv)

	found := dates.FindAll(strings.Join(lines, "\n"))
	meta.DateOrder = h.DateOrder
	if meta.DateOrder == "" {
		fallback := models.MonthFirst
		if h.Locale.DayFirst() {
			fallback = models.DayFirst
		}
		// Elect once without a period to read the period itself, then
		// again against the period, which is the stronger signal.
		order := dates.ElectOrder(found, models.Period{}, fallback)
		if period, ok := FindPeriod(lines, order); ok {
			order = dates.ElectOrder(found, period, order)
		}
		meta.DateOrder = order
	}
	if period, ok := FindPeriod(lines, meta.DateOrder); ok {
		meta.Period = period
	} else if period, ok := derivePeriod(found, meta.DateOrder); ok {
		meta.Period = period
		meta.PeriodDerived = true
	}

	meta.PrimaryCurrency = currency(tokens, h, meta.Convention)
	lx := amount.New(meta.Convention)
	meta.OpeningBalance, meta.ClosingBalance, meta.TotalCredits, meta.TotalDebits = summary(lines, lx)
	meta.Layout = layout(ps)
	return meta
}

var (
	periodCue  = regexp.MustCompile(`(?i)\b(period|from|through|thru|to|between|closing date|opening date|statement date|tot|t/m)\b`)
	periodWord = regexp.MustCompile(`(?i)\bperiod\b`)
	rangeDash  = regexp.MustCompile(`\s[-–]\s|\d[-–]\p{L}`)
)

// FindPeriod looks for a line that names the statement period and returns
// its first two dates. A yearless end borrows the other end's year.
func FindPeriod(lines []string, order models.DateOrder) (models.Period, bool) {
	lx := amount.New(models.ConventionUS)
	for _, line := range lines {
		if !periodCue.MatchString(line) && !rangeDash.MatchString(line) {
			continue
		}
		// Transaction rows carry two dates too; only a line that names the
		// period may also carry an amount.
		if _, money := lastAmount(line, lx); money && !periodWord.MatchString(line) {
			continue
		}
		found := dates.FindAll(line)
		if len(found) < 2 {
			continue
		}
		if p, ok := periodFrom(found[0], found[1], order); ok {
			return p, true
		}
	}
	return pairedPeriod(lines, order)
}

func periodFrom(a, b dates.Parsed, order models.DateOrder) (models.Period, bool) {
	var start, end time.Time
	var ok bool
	switch {
	case a.HasYear() && b.HasYear():
		start, ok = a.On(order, 0)
		if ok {
			end, ok = b.On(order, 0)
		}
	case b.HasYear():
		end, ok = b.On(order, 0)
		if ok {
			start, ok = a.On(order, end.Year())
			if ok && start.After(end) {
				start, ok = a.On(order, end.Year()-1)
			}
		}
	case a.HasYear():
		start, ok = a.On(order, 0)
		if ok {
			end, ok = b.On(order, start.Year())
			if ok && end.Before(start) {
				end, ok = b.On(order, start.Year()+1)
			}
		}
	}
	if !ok || end.Before(start) || end.Sub(start) > 400*24*time.Hour {
		return models.Period{}, false
	}
	return models.Period{Start: start, End: end}, true
}

var (
	startCue = regexp.MustCompile(`(?i)\b(opening date|start date|period start|beginning date)\b`)
	endCue   = regexp.MustCompile(`(?i)\b(closing date|end date|period end|ending date|statement date)\b`)
)

// pairedPeriod handles periods split over two labelled lines.
func pairedPeriod(lines []string, order models.DateOrder) (models.Period, bool) {
	var a, b *dates.Parsed
	for _, line := range lines {
		found := dates.FindAll(line)
		if len(found) == 0 {
			continue
		}
		switch {
		case a == nil && startCue.MatchString(line):
			a = &found[0]
		case b == nil && endCue.MatchString(line):
			b = &found[0]
		}
	}
	if a == nil || b == nil {
		return models.Period{}, false
	}
	return periodFrom(*a, *b, order)
}

// derivePeriod spans the year-bearing dates of the document.
func derivePeriod(found []dates.Parsed, order models.DateOrder) (models.Period, bool) {
	var all []time.Time
	for _, p := range found {
		if !p.HasYear() {
			continue
		}
		if t, ok := p.On(order, 0); ok {
			all = append(all, t)
		}
	}
	if len(all) == 0 {
		return models.Period{}, false
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
	return models.Period{Start: all[0], End: all[len(all)-1]}, true
}

// currency returns the code most tokens carry, then the issuer's, then
// the one the locale or convention implies.
func currency(tokens []string, h Hints, conv models.Convention) string {
	votes := map[string]int{}
	lx := amount.New(conv)
	for _, t := range tokens {
		if code, ok := amount.Currency(t); ok {
			votes[code]++
			continue
		}
		if l, ok := lx.Lex(t); ok && l.Currency != "" {
			votes[l.Currency]++
		}
	}
	best, n := "", 0
	for code, c := range votes {
		if c > n || c == n && code < best {
			best, n = code, c
		}
	}
	switch {
	case best != "":
		return best
	case h.Currency != "":
		return h.Currency
	case h.Locale == models.LocaleUK:
		return "GBP"
	case h.Locale == models.LocaleAU:
		return "AUD"
	case h.Locale == models.LocaleEU || conv == models.ConventionEU:
		return "EUR"
	}
	return "USD"
}

// summary reads the opening and closing balances and the credit and debit
// totals. The first occurrence of each wins; summary boxes come first.
func summary(lines []string, lx amount.Lexer) (open, closing, credits, debits decimal.NullDecimal) {
	for _, line := range lines {
		v, ok := lastAmount(line, lx)
		if !ok {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case !open.Valid && interpret.IsOpening(lower):
			open = decimal.NewNullDecimal(v)
		case !closing.Valid && interpret.IsClosing(lower):
			closing = decimal.NewNullDecimal(v)
		case !credits.Valid && hasPrefixAny(lower, interpret.CreditTotalPhrases):
			credits = decimal.NewNullDecimal(v.Abs())
		case !debits.Valid && hasPrefixAny(lower, interpret.DebitTotalPhrases):
			debits = decimal.NewNullDecimal(v.Abs())
		}
	}
	return open, closing, credits, debits
}

func lastAmount(line string, lx amount.Lexer) (decimal.Decimal, bool) {
	fields := strings.Fields(line)
	for i := len(fields) - 1; i >= 0; i-- {
		tok := fields[i]
		if strings.EqualFold(tok, amount.MarkerCredit) || strings.EqualFold(tok, amount.MarkerDebit) {
			if i > 0 {
				tok = fields[i-1] + tok
				i--
			}
		}
		if l, ok := lx.Lex(tok); ok {
			v := l.Value
			if l.Marker == amount.MarkerDebit {
				v = v.Abs().Neg()
			}
			return v, true
		}
	}
	return decimal.Zero, false
}

func hasPrefixAny(s string, phrases []string) bool {
	s = strings.TrimSpace(s)
	for _, p := range phrases {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// layout classifies how rows sit on the page from the first header row
// and the mix of dated and undated text lines.
func layout(ps models.PageSet) models.LayoutClass {
	dated, undated := 0, 0
	sectioned := false
	for _, p := range ps.Pages {
		for _, l := range p.Lines {
			text := l.Text()
			if a, ok := interpret.LearnAnchors(l); ok {
				if a.Has(interpret.RoleDebit) && a.Has(interpret.RoleCredit) {
					return models.LayoutSplit
				}
				continue
			}
			if _, _, ok := dates.Match(text); ok {
				dated++
				continue
			}
			if interpret.IsSectionHeading(text) {
				sectioned = true
				continue
			}
			if hasLetter(text) && !interpret.IsHeader(text) {
				undated++
			}
		}
	}
	switch {
	case sectioned:
		return models.LayoutSectioned
	case dated == 0:
		return models.LayoutUnknown
	case undated > dated:
		return models.LayoutNarrative
	}
	return models.LayoutColumnar
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
