package parser

import (
	"strings"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/statement"
)

// Spec is everything that sets one issuer's statements apart from the
// generic case.
type Spec struct {
	Tag     models.IssuerTag
	Name    string
	Aliases []string

	Locale    models.Locale
	DateOrder models.DateOrder
	Currency  string

	Money          interpret.MoneyLayout
	UnsignedCredit bool
	InheritDate    bool
	Keywords       interpret.Keywords
	Markers        map[string]string
	// Sections are tried before the default headings.
	Sections []interpret.Section
	Summary  []string
	Skip     []string
	Detail   []string
	// Separators are glyphs printed between columns that carry no value.
	Separators []string
}

// Hints turn the issuer settings into inspection hints.
func (s Spec) Hints(confidence float64) statement.Hints {
	return statement.Hints{
		Issuer:     s.Tag,
		Confidence: confidence,
		DateOrder:  s.DateOrder,
		Locale:     s.Locale,
		Currency:   s.Currency,
	}
}

// Issuer parses one issuer's statements by running the line interpreter
// with the issuer's settings.
type Issuer struct {
	spec Spec
}

// NewIssuer returns the parser for s.
func NewIssuer(s Spec) *Issuer {
	return &Issuer{spec: s}
}

// Tag implements Parser.
func (p *Issuer) Tag() models.IssuerTag { return p.spec.Tag }

// Name is the issuer's display name.
func (p *Issuer) Name() string { return p.spec.Name }

// Spec returns the issuer's settings.
func (p *Issuer) Spec() Spec { return p.spec }

// Strategy is the attempt name in diagnostics.
func (p *Issuer) Strategy() string { return "issuer/" + strings.ToLower(string(p.spec.Tag)) }

// ClassifyFit is the classifier's confidence when it named this issuer.
func (p *Issuer) ClassifyFit(doc Document) float64 {
	if doc.Meta.Issuer != p.spec.Tag {
		return 0
	}
	return doc.Meta.IssuerConfidence
}

// Config returns the interpreter settings for doc.
func (p *Issuer) Config(doc Document) interpret.Config {
	s := p.spec
	cfg := interpret.DefaultConfig(doc.Lexer(), doc.Resolver(s.DateOrder))
	cfg.Keywords = interpret.DefaultKeywords.With(s.Keywords)
	cfg.Markers = s.Markers
	if len(s.Sections) > 0 {
		cfg.Sections = append(append([]interpret.Section{}, s.Sections...), interpret.DefaultSections...)
	}
	cfg.Summary = s.Summary
	cfg.Skip = s.Skip
	cfg.Detail = s.Detail
	cfg.InheritDate = s.InheritDate
	cfg.UnsignedCredit = s.UnsignedCredit
	cfg.Money = s.Money
	cfg.Opening = doc.Meta.OpeningBalance
	return cfg
}

// Parse implements Parser.
func (p *Issuer) Parse(doc Document) models.Attempt {
	in := interpret.New(p.Config(doc))
	for _, page := range doc.Pages {
		in.Page(stripSeparators(page, p.spec.Separators))
	}
	return in.Attempt(p.Strategy())
}

// stripSeparators drops separator glyphs standing alone or stuck to the
// front of a token, as in "→400.00".
func stripSeparators(page models.Page, seps []string) models.Page {
	if len(seps) == 0 {
		return page
	}
	out := page
	out.Lines = make([]models.Line, 0, len(page.Lines))
	for _, l := range page.Lines {
		toks := make([]models.Token, 0, len(l.Tokens))
		for _, t := range l.Tokens {
			for _, s := range seps {
				t.Text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(t.Text, s), s))
			}
			if t.Text != "" {
				toks = append(toks, t)
			}
		}
		l.Tokens = toks
		out.Lines = append(out.Lines, l)
	}
	return out
}
