// Package interpret turns visual lines of positioned tokens into scored
// candidate transactions. Issuer parsers and the generic parser share it;
// they differ only in the Config they pass and in which lines they feed.
package interpret

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/dates"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// MoneyLayout says how the money tokens of a row map onto fields.
type MoneyLayout int

const (
	// MoneyPositional reads one, two or three money tokens as amount,
	// amount+balance, or debit+credit+balance.
	MoneyPositional MoneyLayout = iota
	// MoneySignedLast takes the last money token as a signed in/out amount
	// and ignores the others. The row carries no balance.
	MoneySignedLast
)

// Config tunes interpretation for one issuer or for the generic parser.
type Config struct {
	Lexer    amount.Lexer
	Dates    *dates.Resolver
	Keywords Keywords
	Sections []Section
	// Summary holds extra phrases that open non-transaction lines.
	Summary []string
	// Skip holds lower-case phrases of boilerplate lines, such as footers,
	// that are ignored wherever they appear.
	Skip []string
	// Detail holds lower-case phrases of lines that only add detail to a
	// row, such as foreign exchange notes. They are read as description
	// even when they carry amounts or dates.
	Detail []string
	// InheritDate lets an undated line with money and a description take
	// the previous row's date. Pages with a learned header always allow it.
	InheritDate bool
	// UnsignedCredit treats amounts without a sign as inflows.
	UnsignedCredit bool
	Money          MoneyLayout
	// Markers are extra words printed after an amount that sign it, keyed
	// in upper case and mapped to amount.MarkerDebit or MarkerCredit.
	Markers map[string]string
	// Opening seeds the balance chain.
	Opening decimal.NullDecimal
	// MaxPreceding caps how many lines above a row without its own
	// description are taken as that description.
	MaxPreceding int
}

// DefaultConfig returns the generic settings for a lexer and resolver.
func DefaultConfig(lx amount.Lexer, res *dates.Resolver) Config {
	return Config{
		Lexer:        lx,
		Dates:        res,
		Keywords:     DefaultKeywords,
		Sections:     DefaultSections,
		MaxPreceding: 3,
	}
}

// ReasonOutsidePeriod is the debug reason of rows dropped for a date
// that cannot be placed in the statement period.
const ReasonOutsidePeriod = "date outside statement period"

// tolerance is the balance chain slack.
var tolerance = decimal.New(1, -2)

// Interpreter walks the lines of a document in reading order. It keeps
// the state that spans lines: learned anchors, the section sign, the
// running balance and undecided description lines.
type Interpreter struct {
	cfg      Config
	anchors  Anchors
	section  int
	balance  decimal.NullDecimal
	lastDate time.Time

	rows    []models.Row
	spans   []rowSpan
	pending []pendingLine

	rejected  int
	ambiguous int
	debug     []models.DebugLine
}

// rowSpan remembers where a row sits so continuation lines can be checked.
type rowSpan struct {
	page, lastLine int
	lastY          float64
	moneyX0        float64
}

type pendingLine struct {
	page, line int
	x0, y      float64
	size       float64
	text       string
	debug      int
}

// adjacent reports whether two lines are no further apart than two font
// heights; a blank line between them breaks a description.
func adjacent(y0, y1, size float64) bool {
	if size <= 0 {
		size = 10
	}
	d := y1 - y0
	if d < 0 {
		d = -d
	}
	return d <= 2*size
}

// New returns an interpreter for one document.
func New(cfg Config) *Interpreter {
	if cfg.Dates == nil {
		cfg.Dates = dates.NewResolver(models.Period{}, models.MonthFirst)
	}
	if cfg.Lexer.Convention == "" {
		cfg.Lexer = amount.New(models.ConventionUS)
	}
	if cfg.MaxPreceding <= 0 {
		cfg.MaxPreceding = 3
	}
	return &Interpreter{cfg: cfg, balance: cfg.Opening}
}

// Page interprets every line of a page, learning column anchors from
// header rows as they appear.
func (in *Interpreter) Page(p models.Page) {
	in.walk(p.Number, p.Lines, true)
	in.endPage()
}

// Lines interprets selected lines of a page under fixed anchors, as the
// table pass does with column roles it inferred itself.
func (in *Interpreter) Lines(page int, lines []models.Line, anchors Anchors) {
	saved := in.anchors
	in.anchors = anchors
	in.walk(page, lines, false)
	in.endPage()
	in.anchors = saved
}

// Attempt finishes interpretation and returns the scored rows.
func (in *Interpreter) Attempt(strategy string) models.Attempt {
	in.endPage()
	rows := append([]models.Row(nil), in.rows...)
	FinalizeScores(rows)
	return models.Attempt{
		Strategy:       strategy,
		Rows:           rows,
		Rejected:       in.rejected,
		AmbiguousDates: in.ambiguous,
		Debug:          append([]models.DebugLine(nil), in.debug...),
	}
}

func (in *Interpreter) walk(page int, lines []models.Line, learn bool) {
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		text := strings.TrimSpace(line.Text())
		if text == "" {
			continue
		}
		dl := len(in.debug)
		in.debug = append(in.debug, models.DebugLine{Page: page, Line: line.Index, Text: clip(text)})
		if hasPhrase(text, in.cfg.Skip) {
			in.flushPending()
			in.mark(dl, "skipped", "boilerplate")
			continue
		}
		if hasPhrase(text, in.cfg.Detail) {
			in.addPending(page, line, text, dl)
			in.mark(dl, "skipped", "detail")
			continue
		}

		toks := line.Tokens
		hit, dated := findDate(toks)
		from := 0
		if dated {
			from = hit.end
			// A second date straight after the first is the posting date.
			if next, ok := dateAt(toks, from); ok {
				from = next.end
			}
		}
		money, used := in.scanMoney(toks, from)

		if dated && len(money) == 0 && i+1 < len(lines) {
			// Amounts wrapped onto the next physical line.
			next := lines[i+1]
			if _, nd := findDate(next.Tokens); !nd {
				joined := append(append([]models.Token{}, toks...), next.Tokens...)
				if m, u := in.scanMoney(joined, from); len(m) > 0 {
					toks, money, used = joined, m, u
					line = models.Line{Index: next.Index, Y: next.Y, Tokens: joined}
					in.debug[dl].Reason = "joined with next line"
					i++
				}
			}
		}

		desc := description(toks, from, used, hit, dated)
		switch {
		case !dated && len(money) == 0:
			in.plainLine(page, line, text, dl, learn)
		case IsSummary(desc, in.cfg.Summary) || IsSummary(text, in.cfg.Summary):
			in.summaryLine(desc+" "+text, money, dl)
		case !dated:
			if !in.cfg.InheritDate && len(in.anchors) == 0 || in.lastDate.IsZero() || !hasLetter(desc) {
				in.mark(dl, "skipped", "amount without date")
				continue
			}
			in.row(page, line, dateHit{}, false, money, desc, dl)
		case len(money) == 0:
			in.flushPending()
			if t, ok := in.cfg.Dates.Resolve(hit.parsed, in.lastDate); ok {
				in.lastDate = t
			}
			in.mark(dl, "skipped", "dated line without amount")
		default:
			in.row(page, line, hit, true, money, desc, dl)
		}
	}
}

func (in *Interpreter) plainLine(page int, line models.Line, text string, dl int, learn bool) {
	if learn {
		if a, ok := LearnAnchors(line); ok {
			in.flushPending()
			in.anchors = a
			in.mark(dl, "header", "column anchors")
			return
		}
	}
	if sign, ok := sectionSign(text, in.cfg.Sections); ok {
		in.flushPending()
		in.section = sign
		in.mark(dl, "header", "section")
		return
	}
	if IsHeader(text) || IsSummary(text, in.cfg.Summary) {
		in.flushPending()
		in.mark(dl, "header", "")
		return
	}
	if !hasLetter(text) {
		in.mark(dl, "skipped", "no description")
		return
	}
	in.addPending(page, line, text, dl)
	in.mark(dl, "skipped", "pending")
}

func (in *Interpreter) addPending(page int, line models.Line, text string, dl int) {
	first := line.Tokens[0]
	in.pending = append(in.pending, pendingLine{
		page: page, line: line.Index, x0: first.X0, y: line.Y, size: first.FontSize, text: text, debug: dl,
	})
}

func (in *Interpreter) summaryLine(text string, money []moneyTok, dl int) {
	in.flushPending()
	if len(money) > 0 && IsOpening(text) {
		last := money[len(money)-1]
		in.balance = decimal.NewNullDecimal(balanceValue(last))
		in.mark(dl, "skipped", "opening balance")
		return
	}
	in.mark(dl, "skipped", "summary")
}

// row builds a candidate from a line that has money and, unless the date
// is inherited, a date.
func (in *Interpreter) row(page int, line models.Line, hit dateHit, dated bool, money []moneyTok, desc string, dl int) {
	date := in.lastDate
	inherited := !dated
	if dated {
		t, ok := in.cfg.Dates.Resolve(hit.parsed, in.lastDate)
		if !ok {
			in.flushPending()
			in.ambiguous++
			in.mark(dl, "rejected", ReasonOutsidePeriod)
			return
		}
		date = t
	}

	f, ok := in.fields(money)
	if !ok {
		in.flushPending()
		in.rejected++
		in.mark(dl, "rejected", f.reason)
		return
	}
	if f.extra != "" {
		desc = strings.TrimSpace(desc + " " + f.extra)
	}

	if desc == "" {
		desc = in.takePreceding(page, line)
	} else {
		in.flushPending()
	}
	desc = collapse(desc)
	if !hasLetter(desc) {
		in.rejected++
		in.mark(dl, "rejected", "no description")
		return
	}
	if headerOnly(desc) {
		in.mark(dl, "header", "header words only")
		return
	}
	if f.amount.IsZero() && !zeroAllowed(desc) {
		in.rejected++
		in.mark(dl, "rejected", "zero amount")
		return
	}

	amt, src := in.sign(f, desc)
	breaks := 0
	if in.balance.Valid && f.balance.Valid {
		if src.Weak() {
			// The running balance overrules keywords and the default.
			delta := f.balance.Decimal.Sub(in.balance.Decimal)
			if delta.Neg().Sub(amt).Abs().LessThanOrEqual(tolerance) {
				amt, src = amt.Neg(), models.SignBalance
			}
		}
		if in.balance.Decimal.Add(amt).Sub(f.balance.Decimal).Abs().GreaterThan(tolerance) {
			breaks = 1
		}
	}
	switch {
	case f.balance.Valid:
		in.balance = f.balance
	case in.balance.Valid:
		in.balance = decimal.NewNullDecimal(in.balance.Decimal.Add(amt))
	}

	r := models.Row{
		Transaction: models.Transaction{
			Date:        date,
			DateRaw:     hit.parsed.Raw,
			Description: desc,
			Amount:      amt,
			AmountRaw:   f.raw,
			Balance:     f.balance,
			Page:        page,
			SourceRow:   models.SourceRow(page, line.Index),
		},
		SignSource:    src,
		DateInherited: inherited,
	}
	r.Score = Score(r, f.anchored, breaks)
	in.rows = append(in.rows, r)
	in.spans = append(in.spans, rowSpan{page: page, lastLine: line.Index, lastY: line.Y, moneyX0: money[0].tok.X0})
	in.lastDate = date
	in.mark(dl, "parsed", string(src))
}

// fields is what the money tokens of a row say.
type fields struct {
	amount   decimal.Decimal // magnitude
	raw      string
	lexeme   amount.Lexeme
	marker   string
	balance  decimal.NullDecimal
	fixed    int // sign fixed by column: -1, +1 or 0
	anchored bool
	extra    string // money tokens demoted into the description
	reason   string
}

func (in *Interpreter) fields(money []moneyTok) (fields, bool) {
	if len(in.anchors) > 0 && in.cfg.Money != MoneySignedLast {
		if f, ok, decided := in.anchoredFields(money); decided {
			return f, ok
		}
	}
	var f fields
	take := func(m moneyTok) {
		f.amount, f.raw, f.lexeme, f.marker = m.lx.Value.Abs(), m.lx.Raw, m.lx, m.marker
	}
	if in.cfg.Money == MoneySignedLast {
		take(money[len(money)-1])
		return f, true
	}
	switch n := len(money); {
	case n == 1:
		take(money[0])
	case n == 2:
		take(money[0])
		f.balance = decimal.NewNullDecimal(balanceValue(money[1]))
	case n == 3:
		debit, credit := money[0].lx.Value, money[1].lx.Value
		if !debit.IsZero() && !credit.IsZero() {
			f.reason = "debit and credit both set"
			return f, false
		}
		if credit.IsZero() {
			take(money[0])
			f.fixed = -1
		} else {
			take(money[1])
			f.fixed = 1
		}
		if debit.IsZero() && credit.IsZero() {
			f.fixed = 0
		}
		f.balance = decimal.NewNullDecimal(balanceValue(money[2]))
	default:
		var extra []string
		for _, m := range money[:n-2] {
			extra = append(extra, m.tok.Text)
		}
		f.extra = strings.Join(extra, " ")
		take(money[n-2])
		f.balance = decimal.NewNullDecimal(balanceValue(money[n-1]))
	}
	return f, true
}

// anchoredFields maps money tokens through the header's columns. decided
// is false when a token sits outside every money column, in which case
// the positional rules apply instead.
func (in *Interpreter) anchoredFields(money []moneyTok) (f fields, ok, decided bool) {
	byRole := map[Role]moneyTok{}
	for _, m := range money {
		role := in.anchors.RoleAt(m.tok.X0, m.tok.X1)
		if !role.Money() {
			return fields{}, false, false
		}
		if role == RoleIgnore {
			continue
		}
		if _, dup := byRole[role]; dup {
			return fields{}, false, false
		}
		byRole[role] = m
	}
	debit, hasDebit := byRole[RoleDebit]
	credit, hasCredit := byRole[RoleCredit]
	amt, hasAmount := byRole[RoleAmount]
	if hasDebit && hasCredit {
		switch {
		case !debit.lx.Value.IsZero() && !credit.lx.Value.IsZero():
			return fields{reason: "debit and credit both set"}, false, true
		case debit.lx.Value.IsZero():
			hasDebit = false
		default:
			hasCredit = false
		}
	}
	take := func(m moneyTok, sign int) {
		f.amount, f.raw, f.lexeme, f.marker, f.fixed = m.lx.Value.Abs(), m.lx.Raw, m.lx, m.marker, sign
	}
	switch {
	case hasDebit:
		take(debit, -1)
	case hasCredit:
		take(credit, 1)
	case hasAmount:
		take(amt, 0)
	default:
		return fields{}, false, false
	}
	if b, ok := byRole[RoleBalance]; ok {
		f.balance = decimal.NewNullDecimal(balanceValue(b))
	}
	f.anchored = true
	return f, true, true
}

// sign applies the attribution order: column, explicit sign, DR/CR
// marker, section heading, keyword, running balance, default outflow.
func (in *Interpreter) sign(f fields, desc string) (decimal.Decimal, models.SignSource) {
	a := f.amount
	switch {
	case f.fixed < 0 && f.anchored:
		return a.Neg(), models.SignAnchor
	case f.fixed > 0 && f.anchored:
		return a, models.SignAnchor
	case f.fixed < 0:
		return a.Neg(), models.SignExplicit
	case f.fixed > 0:
		return a, models.SignExplicit
	case f.lexeme.Negative:
		return a.Neg(), models.SignExplicit
	case f.lexeme.Signed:
		return a, models.SignExplicit
	case f.marker == amount.MarkerDebit:
		return a.Neg(), models.SignMarker
	case f.marker == amount.MarkerCredit:
		return a, models.SignMarker
	case in.cfg.UnsignedCredit:
		return a, models.SignExplicit
	case in.section < 0:
		return a.Neg(), models.SignSection
	case in.section > 0:
		return a, models.SignSection
	}
	switch in.cfg.Keywords.Sign(desc) {
	case -1:
		return a.Neg(), models.SignKeyword
	case 1:
		return a, models.SignKeyword
	}
	if in.balance.Valid && f.balance.Valid {
		delta := f.balance.Decimal.Sub(in.balance.Decimal)
		switch {
		case delta.Sub(a).Abs().LessThanOrEqual(tolerance):
			return a, models.SignBalance
		case delta.Add(a).Abs().LessThanOrEqual(tolerance):
			return a.Neg(), models.SignBalance
		}
	}
	return a.Neg(), models.SignDefault
}

// takePreceding uses the pending lines right above a row as its
// description. Older pending lines continue the previous row.
func (in *Interpreter) takePreceding(page int, line models.Line) string {
	end := len(in.pending)
	start := end
	next, y := line.Index, line.Y
	for start > 0 && end-start < in.cfg.MaxPreceding {
		p := in.pending[start-1]
		if p.page != page || p.line != next-1 || !adjacent(p.y, y, p.size) {
			break
		}
		start--
		next, y = p.line, p.y
	}
	taken := in.pending[start:end]
	in.pending = in.pending[:start]
	in.flushPending()
	parts := make([]string, len(taken))
	for i, p := range taken {
		parts[i] = p.text
		in.mark(p.debug, "continuation", "description above row")
	}
	return strings.Join(parts, " ")
}

// flushPending appends pending lines that directly follow the last row to
// its description and drops the rest.
func (in *Interpreter) flushPending() {
	if len(in.pending) == 0 {
		return
	}
	if n := len(in.rows); n > 0 {
		last := &in.rows[n-1]
		span := &in.spans[n-1]
		for _, p := range in.pending {
			if p.page != span.page || p.line != span.lastLine+1 || !adjacent(span.lastY, p.y, p.size) ||
				p.x0 >= span.moneyX0 && span.moneyX0 > 0 {
				break
			}
			last.Description = collapse(last.Description + " " + p.text)
			span.lastLine, span.lastY = p.line, p.y
			in.mark(p.debug, "continuation", "")
		}
	}
	for _, p := range in.pending {
		if in.debug[p.debug].Result != "continuation" {
			in.mark(p.debug, "skipped", "text outside rows")
		}
	}
	in.pending = in.pending[:0]
}

func (in *Interpreter) endPage() {
	in.flushPending()
}

func (in *Interpreter) mark(i int, result, reason string) {
	if i < 0 || i >= len(in.debug) {
		return
	}
	in.debug[i].Result = result
	if reason != "" {
		in.debug[i].Reason = reason
	}
}

type dateHit struct {
	start, end int // token range
	parsed     dates.Parsed
}

// maxDateStart lets a stray glyph precede the date, as in "A 30 Dec 25".
const maxDateStart = 1

func findDate(toks []models.Token) (dateHit, bool) {
	for i := 0; i < len(toks) && i <= maxDateStart; i++ {
		if h, ok := dateAt(toks, i); ok {
			return h, true
		}
	}
	return dateHit{}, false
}

// dateAt matches a date made of up to three whole tokens starting at i.
func dateAt(toks []models.Token, i int) (dateHit, bool) {
	for k := 3; k >= 1; k-- {
		if i+k > len(toks) {
			continue
		}
		parts := make([]string, k)
		for j := range parts {
			parts[j] = toks[i+j].Text
		}
		s := strings.Join(parts, " ")
		p, n, ok := dates.Match(s)
		if ok && n == len(strings.TrimRight(s, ",.;:")) {
			return dateHit{start: i, end: i + k, parsed: p}, true
		}
	}
	return dateHit{}, false
}

type moneyTok struct {
	idx    int
	tok    models.Token
	lx     amount.Lexeme
	marker string
}

// scanMoney lexes tokens from index from onwards. Standalone currency
// tokens and DR/CR markers are consumed and never reach the description.
func (in *Interpreter) scanMoney(toks []models.Token, from int) ([]moneyTok, map[int]bool) {
	used := map[int]bool{}
	currency := func(j int) bool {
		if j < 0 || j >= len(toks) {
			return false
		}
		_, ok := amount.Currency(toks[j].Text)
		return ok
	}
	var out []moneyTok
	for i := from; i < len(toks); i++ {
		text := toks[i].Text
		if currency(i) {
			used[i] = true
			continue
		}
		if len(out) > 0 && out[len(out)-1].idx == i-1 && out[len(out)-1].marker == "" {
			if m, ok := in.marker(text); ok {
				out[len(out)-1].marker = m
				used[i] = true
				continue
			}
		}
		lx, ok := in.cfg.Lexer.LexWithHint(text, currency(i-1) || currency(i+1))
		if !ok {
			continue
		}
		out = append(out, moneyTok{idx: i, tok: toks[i], lx: lx, marker: lx.Marker})
		used[i] = true
	}
	return out, used
}

// marker maps a token after an amount to MarkerDebit or MarkerCredit.
func (in *Interpreter) marker(text string) (string, bool) {
	up := strings.ToUpper(text)
	if up == amount.MarkerDebit || up == amount.MarkerCredit {
		return up, true
	}
	m, ok := in.cfg.Markers[up]
	return m, ok
}

// balanceValue signs a balance by its own minus or DR marker.
func balanceValue(m moneyTok) decimal.Decimal {
	v := m.lx.Value.Abs()
	if m.lx.Negative || m.marker == amount.MarkerDebit {
		return v.Neg()
	}
	return v
}

// description joins the tokens that are neither date, money nor marker.
// A one-character token before the date is a stray glyph and is dropped.
func description(toks []models.Token, from int, used map[int]bool, hit dateHit, dated bool) string {
	var parts []string
	for i, t := range toks {
		if dated && i < hit.start {
			if len([]rune(t.Text)) > 1 {
				parts = append(parts, t.Text)
			}
			continue
		}
		if i < from || used[i] {
			continue
		}
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string) string {
	if r := []rune(s); len(r) > 120 {
		return string(r[:120]) + "..."
	}
	return s
}
