package interpret

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Role is the meaning of a column learned from a header row.
type Role string

const (
	RoleNone        Role = ""
	RoleDate        Role = "date"
	RoleDescription Role = "description"
	RoleDebit       Role = "debit"
	RoleCredit      Role = "credit"
	RoleAmount      Role = "amount"
	RoleBalance     Role = "balance"
	// RoleIgnore marks money columns that are not the row amount, such as
	// PayPal's gross and fee columns.
	RoleIgnore Role = "ignore"
)

// Money reports whether cells under the role hold amounts.
func (r Role) Money() bool {
	switch r {
	case RoleDebit, RoleCredit, RoleAmount, RoleBalance, RoleIgnore:
		return true
	}
	return false
}

// Anchor is a header cell: its role and horizontal extent.
type Anchor struct {
	Role Role
	Span models.Span
}

// Anchors are a header row's cells ordered left to right.
type Anchors []Anchor

// RoleAt returns the role of the column a token falls under. Column
// boundaries sit halfway between neighbouring header cells, which copes
// with right-aligned amounts under left-aligned headings.
func (a Anchors) RoleAt(x0, x1 float64) Role {
	if len(a) == 0 {
		return RoleNone
	}
	c := (x0 + x1) / 2
	for i, anc := range a {
		hi := 1e9
		if i+1 < len(a) {
			hi = (center(anc.Span) + center(a[i+1].Span)) / 2
			// A cell may be wider than the midpoint; its own extent wins.
			if anc.Span.X1 > hi && a[i+1].Span.X0 > anc.Span.X1 {
				hi = anc.Span.X1
			}
		}
		if c < hi {
			return anc.Role
		}
	}
	return a[len(a)-1].Role
}

// Has reports whether any anchor has the role.
func (a Anchors) Has(r Role) bool {
	for _, anc := range a {
		if anc.Role == r {
			return true
		}
	}
	return false
}

func center(s models.Span) float64 { return (s.X0 + s.X1) / 2 }

// headerPhrases are multi-word header cells, matched before single words.
var headerPhrases = []struct {
	words []string
	role  Role
}{
	{[]string{"payment", "type", "and", "details"}, RoleDescription},
	{[]string{"transaction", "details"}, RoleDescription},
	{[]string{"transaction", "description"}, RoleDescription},
	{[]string{"money", "in"}, RoleCredit},
	{[]string{"money", "out"}, RoleDebit},
	{[]string{"paid", "in"}, RoleCredit},
	{[]string{"paid", "out"}, RoleDebit},
	{[]string{"transaction", "date"}, RoleDate},
	{[]string{"trans", "date"}, RoleDate},
	{[]string{"posting", "date"}, RoleDate},
	{[]string{"post", "date"}, RoleDate},
	{[]string{"value", "date"}, RoleDate},
	{[]string{"effective", "date"}, RoleDate},
	{[]string{"balance", "activity"}, RoleBalance},
	{[]string{"running", "balance"}, RoleBalance},
}

// headerWords maps single header cells to roles, English and Dutch.
var headerWords = map[string]Role{
	"date":         RoleDate, "datum": RoleDate, "posted": RoleDate,
	"description":  RoleDescription, "details": RoleDescription, "transaction": RoleDescription,
	"transactions": RoleDescription, "particulars": RoleDescription, "narrative": RoleDescription,
	"omschrijving": RoleDescription, "payee": RoleDescription, "memo": RoleDescription,
	"debit":        RoleDebit, "debits": RoleDebit, "withdrawals": RoleDebit, "withdrawal": RoleDebit,
	"payments":     RoleDebit, "af": RoleDebit, "charges": RoleDebit,
	"credit":       RoleCredit, "credits": RoleCredit, "deposits": RoleCredit, "receipts": RoleCredit,
	"bij":          RoleCredit,
	"amount":       RoleAmount, "bedrag": RoleAmount, "net": RoleAmount,
	"balance":      RoleBalance, "saldo": RoleBalance,
	"gross":        RoleIgnore, "fee": RoleIgnore, "fees": RoleIgnore, "currency": RoleIgnore,
}

// headerNoise may appear in a header row without carrying a role.
var headerNoise = map[string]bool{
	"and": true, "other": true, "of": true, "type": true, "plus": true, "minus": true,
	"no": true, "ref": true, "reference": true, "check": true, "number": true, "en": true,
	"in": true, "out": true, "code": true, "s": true,
}

// headerVocab is the blocklist: a line made only of these words is a
// header, footer or section title and never a transaction.
var headerVocab = func() map[string]bool {
	out := map[string]bool{
		"page": true, "statement": true, "period": true, "opening": true, "closing": true,
		"total": true, "totals": true, "money": true, "paid": true, "continued": true,
		"account": true, "summary": true, "activity": true, "pagina": true, "van": true,
		"rekening": true, "afschrift": true, "totaal": true,
	}
	for w := range headerWords {
		out[w] = true
	}
	for w := range headerNoise {
		out[w] = true
	}
	for _, p := range headerPhrases {
		for _, w := range p.words {
			out[w] = true
		}
	}
	return out
}()

// words lower-cases text and splits it into letter runs. Slashes and
// punctuation separate words, so "Deposits/Credits" is two words.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// vocabWord matches exactly, or within one edit for longer words so OCR
// slips like "Descriptlon" still count.
func vocabWord(w string) bool {
	if headerVocab[w] {
		return true
	}
	if len(w) < 6 {
		return false
	}
	for v := range headerVocab {
		if len(v) >= 6 && fuzzy.LevenshteinDistance(w, v) <= 1 {
			return true
		}
	}
	return false
}

// IsHeader reports whether a line without dates or amounts consists only
// of blocklisted header words. Digits ("Page 1 of 3") are ignored. A lone
// word must match exactly: "DEPOSIT" on its own is a description.
func IsHeader(text string) bool {
	ws := words(text)
	switch len(ws) {
	case 0:
		return false
	case 1:
		return headerVocab[ws[0]]
	}
	for _, w := range ws {
		if !vocabWord(w) {
			return false
		}
	}
	return true
}

// LearnAnchors reads a header row. It needs at least two distinct roles,
// one of them a date or money role, and few unrecognised words.
func LearnAnchors(line models.Line) (Anchors, bool) {
	type cell struct {
		word string
		tok  models.Token
	}
	var cells []cell
	for _, t := range line.Tokens {
		for _, w := range words(t.Text) {
			cells = append(cells, cell{w, t})
		}
	}
	var out Anchors
	roles := map[Role]bool{}
	unknown := 0
	for i := 0; i < len(cells); {
		matched := false
		for _, p := range headerPhrases {
			n := len(p.words)
			if i+n > len(cells) {
				continue
			}
			ok := true
			for j, w := range p.words {
				if cells[i+j].word != w {
					ok = false
					break
				}
			}
			if ok {
				out = appendAnchor(out, p.role, cells[i].tok.X0, cells[i+n-1].tok.X1)
				roles[p.role] = true
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		c := cells[i]
		switch role, ok := headerWords[c.word]; {
		case ok:
			// "Deposits/Credits" is one token and one column.
			if len(out) > 0 && out[len(out)-1].Span.X0 == c.tok.X0 {
				break
			}
			out = appendAnchor(out, role, c.tok.X0, c.tok.X1)
			roles[role] = true
		case headerNoise[c.word]:
		default:
			unknown++
		}
		i++
	}
	hasKey := roles[RoleDate]
	for r := range roles {
		if r.Money() && r != RoleIgnore {
			hasKey = true
		}
	}
	if len(roles) < 2 || !hasKey || unknown*2 > len(out) {
		return nil, false
	}
	return out, true
}

func appendAnchor(a Anchors, role Role, x0, x1 float64) Anchors {
	return append(a, Anchor{Role: role, Span: models.Span{X0: x0, X1: x1}})
}

// Balance phrases that seed or close the balance chain.
var (
	OpeningPhrases = []string{
		"opening balance", "balance brought forward", "brought forward", "start balance",
		"starting balance", "previous balance", "beginning balance", "balance forward",
		"beginsaldo", "vorig saldo",
	}
	ClosingPhrases = []string{
		"closing balance", "ending balance", "new balance", "balance carried forward",
		"carried forward", "end balance", "eindsaldo", "nieuw saldo",
	}
)

// Summary total phrases, matched at the start of a line.
var (
	CreditTotalPhrases = []string{
		"total credits", "total deposits", "deposits and other credits", "deposits and additions",
		"total paid in", "total money in", "deposits/credits", "payments and credits",
		"total additions", "totaal bij",
	}
	DebitTotalPhrases = []string{
		"total debits", "total withdrawals", "withdrawals and other debits", "withdrawals and subtractions",
		"total paid out", "total money out", "withdrawals/debits", "total subtractions", "totaal af",
	}
)

// summaryPhrases open lines that describe the statement rather than a
// transaction.
var summaryPhrases = []string{
	"statement period", "page ", "continued", "balance on", "account summary",
	"average daily balance", "daily balance", "interest rate", "annual percentage",
	"minimum payment", "payment due", "credit limit", "available credit",
}

var totalWords = map[string]bool{"total": true, "totals": true, "subtotal": true, "totaal": true}

// summaryVocab may follow "Total" on a summary line.
var summaryVocab = map[string]bool{
	"for": true, "this": true, "period": true, "of": true, "credits": true, "debits": true,
	"deposits": true, "withdrawals": true, "fees": true, "checks": true, "paid": true,
	"in": true, "out": true, "money": true, "amount": true, "and": true, "other": true,
	"payments": true, "purchases": true, "interest": true, "charged": true, "additions": true,
	"subtractions": true, "balance": true, "transactions": true, "card": true, "electronic": true,
	"year": true, "to": true, "date": true, "the": true, "month": true, "atm": true, "bij": true, "af": true,
}

// IsSummary reports whether a description is a balance, total or footer
// line. extra holds issuer-specific phrases.
func IsSummary(desc string, extra []string) bool {
	lower := strings.ToLower(strings.TrimSpace(desc))
	if lower == "" {
		return false
	}
	for _, set := range [][]string{OpeningPhrases, ClosingPhrases, CreditTotalPhrases, DebitTotalPhrases, summaryPhrases, extra} {
		for _, p := range set {
			if strings.HasPrefix(lower, strings.ToLower(p)) {
				return true
			}
		}
	}
	ws := words(lower)
	if len(ws) == 0 || !totalWords[ws[0]] {
		return false
	}
	for _, w := range ws[1:] {
		if !summaryVocab[w] {
			return false
		}
	}
	return true
}

// IsOpening reports whether a description names the opening balance.
func IsOpening(desc string) bool {
	return hasPhrase(desc, OpeningPhrases)
}

// IsClosing reports whether a description names the closing balance.
func IsClosing(desc string) bool {
	return hasPhrase(desc, ClosingPhrases)
}

func hasPhrase(desc string, phrases []string) bool {
	lower := strings.ToLower(desc)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// headerOnly reports whether a description of two or more words is made
// of header vocabulary alone, matched exactly.
func headerOnly(desc string) bool {
	ws := words(desc)
	if len(ws) < 2 {
		return false
	}
	for _, w := range ws {
		if !headerVocab[w] {
			return false
		}
	}
	return true
}
