package dates

import (
	"time"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Resolver turns parsed shapes into calendar dates. It is built once per
// document after the field order has been elected and is not mutated
// afterwards.
type Resolver struct {
	Period models.Period
	Order  models.DateOrder
	Now    func() time.Time
}

// NewResolver returns a resolver anchored on period.
func NewResolver(period models.Period, order models.DateOrder) *Resolver {
	if order == "" {
		order = models.MonthFirst
	}
	return &Resolver{Period: period, Order: order, Now: time.Now}
}

// Resolve returns the calendar date for p. neighbor, when non-zero, is the
// date of the closest already-resolved row and breaks ties for yearless
// shapes that fit both years of a period spanning New Year.
func (r *Resolver) Resolve(p Parsed, neighbor time.Time) (time.Time, bool) {
	m, d := p.parts(r.Order)
	if p.HasYear() {
		t, ok := date(p.Year, m, d)
		if !ok {
			return time.Time{}, false
		}
		if !r.Period.IsZero() && !r.Period.Contains(t, Slack) {
			return time.Time{}, false
		}
		return t, true
	}
	if r.Period.IsZero() {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		return date(now().Year(), m, d)
	}
	var fits []time.Time
	for _, y := range r.years() {
		if t, ok := date(y, m, d); ok && r.Period.Contains(t, Slack) {
			fits = append(fits, t)
		}
	}
	switch len(fits) {
	case 0:
		return time.Time{}, false
	case 1:
		return fits[0], true
	}
	if !neighbor.IsZero() {
		for _, t := range fits {
			if t.Year() == neighbor.Year() && t.Month() == neighbor.Month() {
				return t, true
			}
		}
	}
	return fits[0], true
}

// ResolveString matches raw as a whole and resolves it.
func (r *Resolver) ResolveString(raw string) (time.Time, bool) {
	p, n, ok := Match(raw)
	if !ok || n == 0 {
		return time.Time{}, false
	}
	return r.Resolve(p, time.Time{})
}

// years lists candidate years for yearless shapes, earliest first. The
// slack can reach into the year before the start or after the end.
func (r *Resolver) years() []int {
	start, end := r.Period.Start.Add(-Slack).Year(), r.Period.End.Add(Slack).Year()
	if start == end {
		return []int{start}
	}
	out := make([]int, 0, end-start+1)
	for y := start; y <= end; y++ {
		out = append(out, y)
	}
	return out
}

// ElectOrder decides between DD/MM and MM/DD for a whole document. Each
// ordering is scored by how many numeric shapes become valid dates
// (inside the period when one is known). A tie keeps fallback.
func ElectOrder(found []Parsed, period models.Period, fallback models.DateOrder) models.DateOrder {
	dayFirst, monthFirst := 0, 0
	for _, p := range found {
		if !p.Numeric {
			continue
		}
		if valid(p, models.DayFirst, period) {
			dayFirst++
		}
		if valid(p, models.MonthFirst, period) {
			monthFirst++
		}
	}
	switch {
	case dayFirst > monthFirst:
		return models.DayFirst
	case monthFirst > dayFirst:
		return models.MonthFirst
	case fallback == "":
		return models.MonthFirst
	default:
		return fallback
	}
}

func valid(p Parsed, order models.DateOrder, period models.Period) bool {
	m, d := p.parts(order)
	if p.HasYear() {
		t, ok := date(p.Year, m, d)
		if !ok {
			return false
		}
		return period.IsZero() || period.Contains(t, Slack)
	}
	if period.IsZero() {
		// 2024 is a leap year, so 29 Feb counts as a real day.
		_, ok := date(2024, m, d)
		return ok
	}
	r := Resolver{Period: period, Order: order}
	_, ok := r.Resolve(p, time.Time{})
	return ok
}
