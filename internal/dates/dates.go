// Package dates recognises the date shapes printed on statements and
// resolves them to calendar dates against the statement period.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Slack widens the statement period when checking a resolved date.
const Slack = 7 * 24 * time.Hour

const monthAlt = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|mrt|apr(?:il)?|may|mei|june?|july?|aug(?:ustus|ust)?|sept?(?:ember)?|oct(?:ober)?|okt(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`

// Shapes, longest first. Every pattern is anchored at the start of input.
var (
	shapeISO          = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	shapeNumericYear  = regexp.MustCompile(`^(\d{1,2})([/.-])(\d{1,2})([/.-])(\d{4}|\d{2})\b`)
	shapeNumericShort = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\b`)
	shapeDayMonYear   = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?[\s-]+` + monthAlt + `,?[\s-]+(\d{4}|\d{2})\b`)
	shapeMonDayYear   = regexp.MustCompile(`(?i)^` + monthAlt + `\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	shapeMonDay       = regexp.MustCompile(`(?i)^` + monthAlt + `\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	shapeDayMon       = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?[\s-]+` + monthAlt + `(?:\W|$)`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "mrt": time.March,
	"apr": time.April, "may": time.May, "mei": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September, "oct": time.October,
	"okt": time.October, "nov": time.November, "dec": time.December,
}

// Parsed is a date shape found in text, before year and field order are known.
type Parsed struct {
	Raw     string
	Numeric bool // day and month are both numbers and their order is unknown
	A, B    int  // numeric fields in printed order
	Month   time.Month
	Day     int
	Year    int // zero when the shape carries no year
}

// HasYear reports whether the shape printed a year.
func (p Parsed) HasYear() bool { return p.Year != 0 }

// Ambiguous reports whether both field orders give a real calendar day.
func (p Parsed) Ambiguous() bool {
	return p.Numeric && p.A != p.B && p.A <= 12 && p.B <= 12
}

// parts returns month and day under the given field order.
func (p Parsed) parts(order models.DateOrder) (time.Month, int) {
	if !p.Numeric {
		return p.Month, p.Day
	}
	if order == models.DayFirst {
		return time.Month(p.B), p.A
	}
	return time.Month(p.A), p.B
}

// On returns the calendar date of p under order. year is used when the
// shape prints none.
func (p Parsed) On(order models.DateOrder, year int) (time.Time, bool) {
	m, d := p.parts(order)
	if p.HasYear() {
		year = p.Year
	}
	return date(year, m, d)
}

// Match recognises a date shape at the start of s and reports how many
// bytes it used.
func Match(s string) (Parsed, int, bool) {
	if m := shapeISO.FindStringSubmatch(s); m != nil {
		p := Parsed{Raw: m[0], Year: atoi(m[1]), Month: time.Month(atoi(m[2])), Day: atoi(m[3])}
		return p, len(m[0]), true
	}
	if m := shapeNumericYear.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		p := Parsed{Raw: m[0], Numeric: true, A: atoi(m[1]), B: atoi(m[3]), Year: year(m[5])}
		return p, len(m[0]), plausibleNumeric(p)
	}
	if m := shapeDayMonYear.FindStringSubmatch(s); m != nil {
		p := Parsed{Raw: m[0], Day: atoi(m[1]), Month: month(m[2]), Year: year(m[3])}
		return p, len(m[0]), true
	}
	if m := shapeMonDayYear.FindStringSubmatch(s); m != nil {
		p := Parsed{Raw: m[0], Month: month(m[1]), Day: atoi(m[2]), Year: year(m[3])}
		return p, len(m[0]), true
	}
	if m := shapeNumericShort.FindStringSubmatch(s); m != nil {
		p := Parsed{Raw: m[0], Numeric: true, A: atoi(m[1]), B: atoi(m[2])}
		return p, len(m[0]), plausibleNumeric(p)
	}
	if m := shapeMonDay.FindStringSubmatch(s); m != nil {
		p := Parsed{Raw: m[0], Month: month(m[1]), Day: atoi(m[2])}
		return p, len(m[0]), true
	}
	if m := shapeDayMon.FindStringSubmatch(s); m != nil {
		raw := strings.TrimRightFunc(m[0], func(r rune) bool { return !isWord(r) && r != '.' })
		p := Parsed{Raw: raw, Day: atoi(m[1]), Month: month(m[2])}
		return p, len(raw), true
	}
	return Parsed{}, 0, false
}

// FindAll returns every date shape that starts at a word boundary in text.
func FindAll(text string) []Parsed {
	var out []Parsed
	for i := 0; i < len(text); {
		if !isWord(rune(text[i])) || i > 0 && isWord(rune(text[i-1])) {
			i++
			continue
		}
		if p, n, ok := Match(text[i:]); ok {
			out = append(out, p)
			i += n
			continue
		}
		i++
	}
	return out
}

// HasDate reports whether text contains at least one date shape.
func HasDate(text string) bool {
	for i := 0; i < len(text); i++ {
		if !isWord(rune(text[i])) || i > 0 && isWord(rune(text[i-1])) {
			continue
		}
		if _, _, ok := Match(text[i:]); ok {
			return true
		}
	}
	return false
}

func plausibleNumeric(p Parsed) bool {
	if p.A < 1 || p.B < 1 || p.A > 31 || p.B > 31 {
		return false
	}
	return p.A <= 12 || p.B <= 12
}

func isWord(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func year(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func month(s string) time.Month {
	s = strings.ToLower(strings.TrimSuffix(s, "."))
	if len(s) > 3 {
		s = s[:3]
	}
	return monthIndex[s]
}

// date builds a calendar date and reports false for overflow like 31 Feb.
func date(y int, m time.Month, d int) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t, t.Month() == m && t.Day() == d
}
