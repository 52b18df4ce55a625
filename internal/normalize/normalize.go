// Package normalize puts the winning attempt's rows into their final
// shape: ordered, deduplicated, signed against the balance chain and
// rounded, with a verdict on how well the numbers hold together.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Tolerance is the slack allowed in balance and total checks.
var Tolerance = decimal.New(1, -2)

// Report is what normalization found out about the rows.
type Report struct {
	Integrity   models.Integrity
	ChainLength int
	Breaks      int
	Duplicates  int
	Flipped     int
	Notes       []string
}

func (r *Report) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Normalize returns rows sorted by date and source row, deduplicated,
// with weak signs fixed by the balance chain and money rounded half to
// even at two places. Running it on its own output changes nothing.
func Normalize(rows []models.Row, meta models.StatementMeta) ([]models.Row, Report) {
	out := make([]models.Row, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].Amount = out[i].Amount.RoundBank(2)
		if out[i].Balance.Valid {
			out[i].Balance.Decimal = out[i].Balance.Decimal.RoundBank(2)
		}
		out[i].Description = strings.Join(strings.Fields(out[i].Description), " ")
	}
	Sort(out)

	var rep Report
	out, rep.Duplicates = Dedup(out)
	rep.Flipped = fixSigns(out, meta.OpeningBalance)
	rep.ChainLength, rep.Breaks = Chain(out, meta.OpeningBalance)

	totalsChecked, totalsOK := checkTotals(out, meta, &rep)
	closingOK := checkClosing(out, meta, &rep)
	switch {
	case rep.Breaks > 0 || !totalsOK || !closingOK:
		rep.Integrity = models.IntegritySuspect
	case rep.ChainLength > 0 || totalsChecked:
		rep.Integrity = models.IntegrityOK
	default:
		rep.Integrity = models.IntegrityUnverified
	}
	if rep.Breaks > 0 {
		rep.note("balance chain broken %d time(s) over %d links", rep.Breaks, rep.ChainLength)
	}
	return out, rep
}

// Sort orders rows by date, then by where they were printed.
func Sort(rows []models.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.SourceRow < b.SourceRow
	})
}

var (
	spaces       = regexp.MustCompile(`\s+`)
	trailingRefs = regexp.MustCompile(`(\s+(?:REF|NO|#)?[.:#]?\s*[A-Z0-9/-]*\d[A-Z0-9/-]*)+$`)
)

// Description returns the form descriptions are compared in: upper case,
// single spaces, trailing reference numbers removed.
func Description(desc string) string {
	d := spaces.ReplaceAllString(strings.ToUpper(strings.TrimSpace(desc)), " ")
	if stripped := strings.TrimSpace(trailingRefs.ReplaceAllString(d, "")); stripped != "" {
		d = stripped
	}
	return d
}

// Key is the identity two printings of the same transaction share.
func Key(t models.Transaction) string {
	return t.Date.Format(models.DateLayout) + "|" + Description(t.Description) + "|" + t.Amount.StringFixed(2)
}

// Dedup drops rows whose key repeats an earlier row, unless both carry a
// balance and the balances differ: two identical coffees on one day are
// two transactions when the running balance moved twice.
func Dedup(rows []models.Row) ([]models.Row, int) {
	seen := map[string][]int{}
	out := make([]models.Row, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		k := Key(r.Transaction)
		dup := false
		for _, i := range seen[k] {
			prev := out[i]
			if prev.Balance.Valid && r.Balance.Valid && !prev.Balance.Decimal.Equal(r.Balance.Decimal) {
				continue
			}
			dup = true
			break
		}
		if dup {
			dropped++
			continue
		}
		seen[k] = append(seen[k], len(out))
		out = append(out, r)
	}
	return out, dropped
}

// fixSigns flips weakly signed amounts when the opposite sign is the one
// the balance moved by.
func fixSigns(rows []models.Row, opening decimal.NullDecimal) int {
	flipped := 0
	prev := opening
	for i := range rows {
		r := &rows[i]
		if prev.Valid && r.Balance.Valid && r.SignSource.Weak() {
			delta := r.Balance.Decimal.Sub(prev.Decimal)
			if delta.Sub(r.Amount).Abs().GreaterThan(Tolerance) && delta.Add(r.Amount).Abs().LessThanOrEqual(Tolerance) {
				r.Amount = r.Amount.Neg()
				r.SignSource = models.SignBalance
				flipped++
			}
		}
		prev = next(prev, *r)
	}
	return flipped
}

// Chain walks the running balance and returns how many rows could be
// checked against it and how many of those broke it.
func Chain(rows []models.Row, opening decimal.NullDecimal) (length, breaks int) {
	prev := opening
	for _, r := range rows {
		if prev.Valid && r.Balance.Valid {
			length++
			if prev.Decimal.Add(r.Amount).Sub(r.Balance.Decimal).Abs().GreaterThan(Tolerance) {
				breaks++
			}
		}
		prev = next(prev, r)
	}
	return length, breaks
}

func next(prev decimal.NullDecimal, r models.Row) decimal.NullDecimal {
	switch {
	case r.Balance.Valid:
		return r.Balance
	case prev.Valid:
		return decimal.NewNullDecimal(prev.Decimal.Add(r.Amount))
	}
	return prev
}

// Sums returns the total of inflows and the total of outflows, the latter
// as a negative number.
func Sums(rows []models.Row) (credits, debits decimal.Decimal) {
	for _, r := range rows {
		if r.Amount.IsNegative() {
			debits = debits.Add(r.Amount)
		} else {
			credits = credits.Add(r.Amount)
		}
	}
	return credits, debits
}

// checkTotals compares the rows with the statement's own credit and debit
// totals when it prints them.
func checkTotals(rows []models.Row, meta models.StatementMeta, rep *Report) (checked, ok bool) {
	credits, debits := Sums(rows)
	ok = true
	if meta.TotalCredits.Valid {
		checked = true
		if credits.Sub(meta.TotalCredits.Decimal.Abs()).Abs().GreaterThan(Tolerance) {
			ok = false
			rep.note("credits sum to %s, statement says %s", credits.StringFixed(2), meta.TotalCredits.Decimal.Abs().StringFixed(2))
		}
	}
	if meta.TotalDebits.Valid {
		checked = true
		if debits.Abs().Sub(meta.TotalDebits.Decimal.Abs()).Abs().GreaterThan(Tolerance) {
			ok = false
			rep.note("debits sum to %s, statement says %s", debits.Abs().StringFixed(2), meta.TotalDebits.Decimal.Abs().StringFixed(2))
		}
	}
	return checked, ok
}

// checkClosing verifies opening plus every amount lands on the closing
// balance when both are printed.
func checkClosing(rows []models.Row, meta models.StatementMeta, rep *Report) bool {
	if !meta.OpeningBalance.Valid || !meta.ClosingBalance.Valid || len(rows) == 0 {
		return true
	}
	end := meta.OpeningBalance.Decimal
	for _, r := range rows {
		end = end.Add(r.Amount)
	}
	if end.Sub(meta.ClosingBalance.Decimal).Abs().GreaterThan(Tolerance) {
		rep.note("opening %s plus rows gives %s, closing balance is %s",
			meta.OpeningBalance.Decimal.StringFixed(2), end.StringFixed(2), meta.ClosingBalance.Decimal.StringFixed(2))
		return false
	}
	return true
}

// Transactions strips the scoring fields.
func Transactions(rows []models.Row) []models.Transaction {
	out := make([]models.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.Transaction
	}
	return out
}
