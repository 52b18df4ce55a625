package interpret

import (
	"strings"
	"unicode"
)

// Keywords infer a sign from the description when nothing stronger does.
type Keywords struct {
	Debit  []string
	Credit []string
}

// DefaultKeywords apply to every issuer.
var DefaultKeywords = Keywords{
	Debit:  []string{"WITHDRAWAL", "PURCHASE", "PAYMENT", "FEE", "CHARGE", "ATM", "POS", "DEBIT"},
	Credit: []string{"DEPOSIT", "CREDIT", "INTEREST", "REFUND", "TRANSFER IN", "SALARY"},
}

// With returns k extended by extra; extra keywords are tried first.
func (k Keywords) With(extra Keywords) Keywords {
	return Keywords{
		Debit:  append(append([]string{}, extra.Debit...), k.Debit...),
		Credit: append(append([]string{}, extra.Credit...), k.Credit...),
	}
}

// Sign returns -1 or +1 when a keyword matches a whole word or phrase of
// desc, and 0 otherwise. A debit keyword wins over a credit keyword
// ("INTEREST CHARGE" is a charge).
func (k Keywords) Sign(desc string) int {
	padded := " " + strings.Join(strings.FieldsFunc(strings.ToUpper(desc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ") + " "
	has := func(list []string) bool {
		for _, kw := range list {
			if strings.Contains(padded, " "+kw+" ") {
				return true
			}
		}
		return false
	}
	switch {
	case has(k.Debit):
		return -1
	case has(k.Credit):
		return 1
	}
	return 0
}

// Section is a heading that signs the rows listed under it.
type Section struct {
	Phrase string
	Sign   int
}

// DefaultSections are the headings US statements group rows under.
var DefaultSections = []Section{
	{"deposits and other credits", 1},
	{"deposits and additions", 1},
	{"electronic deposits", 1},
	{"other credits", 1},
	{"deposits", 1},
	{"credits", 1},
	{"withdrawals and other debits", -1},
	{"electronic withdrawals", -1},
	{"other withdrawals", -1},
	{"atm withdrawals", -1},
	{"card purchases", -1},
	{"checks paid", -1},
	{"service fees", -1},
	{"other debits", -1},
	{"withdrawals", -1},
	{"debits", -1},
	{"fees", -1},
}

// sectionSign recognises a heading line. The heading may be followed by
// at most two more words, such as "(continued)".
func sectionSign(text string, sections []Section) (int, bool) {
	ws := words(text)
	if len(ws) == 0 {
		return 0, false
	}
	line := strings.Join(ws, " ")
	for _, s := range sections {
		n := len(strings.Fields(s.Phrase))
		if len(ws) <= n+2 && (line == s.Phrase || strings.HasPrefix(line, s.Phrase+" ")) {
			return s.Sign, true
		}
	}
	return 0, false
}

// zeroSignals are the descriptions under which a 0.00 row is kept.
var zeroSignals = []string{"INTEREST", "ACCRUAL", "ACCRUED", "NIL"}

func zeroAllowed(desc string) bool {
	return Keywords{Credit: zeroSignals}.Sign(desc) != 0
}

// IsSectionHeading reports whether text is one of the default section
// headings.
func IsSectionHeading(text string) bool {
	_, ok := sectionSign(text, DefaultSections)
	return ok
}
