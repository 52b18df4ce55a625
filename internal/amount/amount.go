// Package amount recognises money tokens on statement lines.
//
// A statement uses exactly one decimal convention. Callers vote on the
// convention once per document with Vote and then lex every candidate
// token with a Lexer bound to it, so "1.234,56" is a valid amount in an
// EU statement and noise in a US one.
package amount

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// ErrNotAmount is returned by Parse for text that is not a money token.
var ErrNotAmount = errors.New("not a money token")

// Markers for debit/credit suffixes.
const (
	MarkerDebit  = "DR"
	MarkerCredit = "CR"
)

// maxDigits rejects account and card numbers that happen to look numeric.
const maxDigits = 13

var (
	usBody = regexp.MustCompile(`^(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{2}))?$`)
	euBody = regexp.MustCompile(`^(\d{1,3}(?:\.\d{3})+|\d+)(?:,(\d{2}))?$`)

	usVote = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}$`)
	euVote = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2}$`)
)

// Lexeme is a recognised money token.
type Lexeme struct {
	Value    decimal.Decimal // signed by what the token itself shows
	Raw      string
	Negative bool   // leading/trailing minus or parentheses
	Signed   bool   // any explicit sign, including a leading plus
	Marker   string // MarkerDebit or MarkerCredit when glued to the token
	Currency string // ISO code of an attached glyph or code
}

// Lexer parses money tokens under one decimal convention.
type Lexer struct {
	Convention models.Convention
}

// New returns a lexer for the given convention; the zero value means US.
func New(conv models.Convention) Lexer {
	if conv == "" {
		conv = models.ConventionUS
	}
	return Lexer{Convention: conv}
}

// Lex recognises raw as an amount. Pure integers are rejected unless the
// token carries a currency glyph.
func (l Lexer) Lex(raw string) (Lexeme, bool) {
	return l.lex(raw, false)
}

// LexWithHint is Lex for a token that sits next to a standalone currency
// glyph or code, which lets pure integers through.
func (l Lexer) LexWithHint(raw string, currencyHint bool) (Lexeme, bool) {
	return l.lex(raw, currencyHint)
}

func (l Lexer) lex(raw string, hint bool) (Lexeme, bool) {
	p := strip(raw)
	if p.body == "" {
		return Lexeme{}, false
	}
	body := usBody
	group, point := ",", "."
	if l.Convention == models.ConventionEU {
		body = euBody
		group, point = ".", ","
	}
	m := body.FindStringSubmatch(p.body)
	if m == nil {
		return Lexeme{}, false
	}
	if m[2] == "" && p.currency == "" && !hint {
		return Lexeme{}, false
	}
	digits := strings.ReplaceAll(p.body, group, "")
	if len(digits) > maxDigits+1 {
		return Lexeme{}, false
	}
	digits = strings.Replace(digits, point, ".", 1)
	v, err := decimal.NewFromString(digits)
	if err != nil {
		return Lexeme{}, false
	}
	if p.negative {
		v = v.Neg()
	}
	return Lexeme{
		Value:    v.RoundBank(2),
		Raw:      strings.TrimSpace(raw),
		Negative: p.negative,
		Signed:   p.signed,
		Marker:   p.marker,
		Currency: p.currency,
	}, true
}

// Parse lexes s and returns its value, for callers that only need the number.
func (l Lexer) Parse(s string) (decimal.Decimal, error) {
	lx, ok := l.lex(s, true)
	if !ok {
		return decimal.Zero, fmt.Errorf("%q: %w", s, ErrNotAmount)
	}
	return lx.Value, nil
}

// Vote picks the convention most tokens agree on. Tokens that fit both or
// neither convention do not vote; a tie keeps fallback.
func Vote(tokens []string, fallback models.Convention) models.Convention {
	us, eu := 0, 0
	for _, t := range tokens {
		body := strip(t).body
		switch {
		case usVote.MatchString(body):
			us++
		case euVote.MatchString(body):
			eu++
		}
	}
	switch {
	case eu > us:
		return models.ConventionEU
	case us > eu:
		return models.ConventionUS
	case fallback == "":
		return models.ConventionUS
	default:
		return fallback
	}
}

type parts struct {
	body     string
	negative bool
	signed   bool
	marker   string
	currency string
}

// strip peels signs, parentheses, DR/CR markers and currency glyphs off a
// token in any order they appear, leaving the numeric body.
func strip(raw string) parts {
	var p parts
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "−", "-")
	for i := 0; i < 4 && s != ""; i++ {
		before := s
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			s = s[1 : len(s)-1]
			p.negative, p.signed = true, true
		}
		if len(s) > 2 {
			switch tail := s[len(s)-2:]; {
			case strings.EqualFold(tail, MarkerDebit):
				p.marker, s = MarkerDebit, s[:len(s)-2]
			case strings.EqualFold(tail, MarkerCredit):
				p.marker, s = MarkerCredit, s[:len(s)-2]
			}
		}
		if strings.HasPrefix(s, "-") {
			s = s[1:]
			p.negative, p.signed = true, true
		} else if strings.HasPrefix(s, "+") {
			s = s[1:]
			p.signed = true
		}
		if strings.HasSuffix(s, "-") {
			s = s[:len(s)-1]
			p.negative, p.signed = true, true
		}
		if code, rest, ok := trimCurrency(s); ok {
			p.currency, s = code, rest
		}
		if s == before {
			break
		}
	}
	p.body = s
	return p
}

// glyphs maps currency symbols and codes to ISO codes. The first code
// listed wins a shared symbol, so "$" means USD.
var glyphs = func() map[string]string {
	out := map[string]string{}
	for _, code := range []string{money.USD, money.EUR, money.GBP, money.AUD, money.CAD, money.NZD, money.JPY, money.INR, money.CHF} {
		c := money.GetCurrency(code)
		if c == nil {
			continue
		}
		out[code] = code
		if _, taken := out[c.Grapheme]; !taken && c.Grapheme != "" {
			out[c.Grapheme] = code
		}
	}
	out["A$"] = money.AUD
	out["AU$"] = money.AUD
	out["C$"] = money.CAD
	out["US$"] = money.USD
	out["NZ$"] = money.NZD
	return out
}()

// glyphOrder lists longer glyphs first so "US$" is tried before "$".
var glyphOrder = func() []string {
	keys := make([]string, 0, len(glyphs))
	for k := range glyphs {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && longer(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}()

func longer(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

func trimCurrency(s string) (code, rest string, ok bool) {
	for _, g := range glyphOrder {
		if strings.HasPrefix(s, g) {
			return glyphs[g], strings.TrimSpace(s[len(g):]), true
		}
		if strings.HasSuffix(s, g) && len(s) > len(g) {
			return glyphs[g], strings.TrimSpace(s[:len(s)-len(g)]), true
		}
	}
	return "", s, false
}

// Currency reports whether tok is a standalone currency glyph or code.
func Currency(tok string) (string, bool) {
	code, ok := glyphs[strings.ToUpper(strings.TrimSpace(tok))]
	if !ok {
		code, ok = glyphs[strings.TrimSpace(tok)]
	}
	return code, ok
}

// Format renders a value the way the CLI shows it, e.g. "£1,234.56".
func Format(v decimal.Decimal, currency string) string {
	if currency == "" {
		currency = money.USD
	}
	return money.New(v.Shift(2).Round(0).IntPart(), currency).Display()
}

var (
	ocrSemicolon   = regexp.MustCompile(`(\d);(\s*)(\d)`)
	ocrColon       = regexp.MustCompile(`(\d):(\d{2})\b`)
	ocrTrailColon  = regexp.MustCompile(`(\d):(\s|$)`)
	ocrNA          = regexp.MustCompile(`\s+NA\b`)
	ocrSpacedPoint = regexp.MustCompile(`(\d) ([.,]\d{2})\b`)
)

// Sanitize repairs separators that OCR engines commonly misread inside
// amounts: "1,234;56" and "12:50" become "1,234.56" and "12.50".
func Sanitize(line string) string {
	line = ocrSemicolon.ReplaceAllString(line, "$1.$3")
	line = ocrColon.ReplaceAllString(line, "$1.$2")
	line = ocrTrailColon.ReplaceAllString(line, "$1$2")
	line = ocrSpacedPoint.ReplaceAllString(line, "$1$2")
	return ocrNA.ReplaceAllString(line, "")
}
