package parser

import (
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/dates"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Parser turns the text layer of a statement into candidate rows.
type Parser interface {
	// Tag is the issuer the parser is registered under.
	Tag() models.IssuerTag
	// ClassifyFit rates from 0 to 1 how well the parser suits doc.
	ClassifyFit(doc Document) float64
	// Parse returns the scored rows it found. Unrecognised content gives
	// an attempt without rows, never an error.
	Parse(doc Document) models.Attempt
}

// Document is what a parser works from: the pages and what is already
// known about the statement.
type Document struct {
	Pages []models.Page        `json:"pages"`
	Meta  models.StatementMeta `json:"meta"`
}

// Lexer returns the money lexer for the document's convention.
func (d Document) Lexer() amount.Lexer {
	conv := d.Meta.Convention
	if conv == "" {
		conv = models.ConventionUS
	}
	return amount.New(conv)
}

// Resolver returns a date resolver over the statement period. An empty
// order means the document's own.
func (d Document) Resolver(order models.DateOrder) *dates.Resolver {
	if order == "" {
		order = d.Meta.DateOrder
	}
	return dates.NewResolver(d.Meta.Period, order)
}

// Strategy names the attempt a parser produces.
func Strategy(p Parser) string {
	if s, ok := p.(interface{ Strategy() string }); ok {
		return s.Strategy()
	}
	return "issuer/" + string(p.Tag())
}

// Run calls p.Parse and turns a panic into an error, so one parser's bug
// costs one strategy and not the extraction.
func Run(p Parser, doc Document) (a models.Attempt, err error) {
	defer func() {
		if r := recover(); r != nil {
			a = models.Attempt{Strategy: Strategy(p)}
			err = fmt.Errorf("parser %s panicked: %v\n%s", Strategy(p), r, debug.Stack())
		}
	}()
	return p.Parse(doc), nil
}

// Registry holds the issuer parsers keyed by tag. It is built once and
// only read afterwards.
type Registry struct {
	parsers map[models.IssuerTag]Parser
}

// NewRegistry indexes parsers by tag. A later parser replaces an earlier
// one with the same tag.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[models.IssuerTag]Parser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.Tag()] = p
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	parsers := make([]Parser, len(Specs))
	for i, s := range Specs {
		parsers[i] = NewIssuer(s)
	}
	return NewRegistry(parsers...)
})

// Default returns the registry of built-in issuers.
func Default() *Registry {
	return defaultRegistry()
}

// Get returns the parser registered for tag.
func (r *Registry) Get(tag models.IssuerTag) (Parser, bool) {
	p, ok := r.parsers[tag]
	return p, ok
}

// Tags lists the registered issuers in name order.
func (r *Registry) Tags() []models.IssuerTag {
	out := make([]models.IssuerTag, 0, len(r.parsers))
	for t := range r.parsers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Best returns the registered parser that fits doc best, if any fits at
// least floor.
func (r *Registry) Best(doc Document, floor float64) (Parser, float64, bool) {
	var best Parser
	score := 0.0
	for _, tag := range r.Tags() {
		p := r.parsers[tag]
		if fit := p.ClassifyFit(doc); fit > score {
			best, score = p, fit
		}
	}
	if best == nil || score < floor {
		return nil, score, false
	}
	return best, score, true
}

// New returns the built-in parser for a bank name or issuer tag, as the
// -bank flag spells it.
func New(bank string) (Parser, error) {
	tag, ok := LookupTag(bank)
	if !ok {
		return nil, fmt.Errorf("unsupported bank type: %q", bank)
	}
	p, _ := Default().Get(tag)
	return p, nil
}

// LookupTag resolves a tag or one of its aliases, ignoring case and
// spaces.
func LookupTag(bank string) (models.IssuerTag, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(bank), ""))
	for _, s := range Specs {
		if string(s.Tag) == key {
			return s.Tag, true
		}
		for _, a := range s.Aliases {
			if strings.ToUpper(a) == key {
				return s.Tag, true
			}
		}
	}
	return "", false
}
