package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/extractor"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/statement"
)

// document builds a parser input from page texts the way the engine
// does, with the issuer's hints when tag is registered.
func document(tag models.IssuerTag, texts ...string) Document {
	var ps models.PageSet
	for i, s := range texts {
		ps.Pages = append(ps.Pages, extractor.PageFromText(i+1, s))
	}
	var hints statement.Hints
	for _, s := range Specs {
		if s.Tag == tag {
			hints = s.Hints(1)
		}
	}
	return Document{Pages: ps.Pages, Meta: statement.Inspect(ps, hints)}
}

// columns lays cells out at fixed character offsets so synthetic
// geometry puts them under their headings.
func columns(rows ...[]string) string {
	widths := []int{12, 25, 13, 13}
	var lines []string
	for _, cells := range rows {
		var sb strings.Builder
		for i, c := range cells {
			if i < len(widths) && i < len(cells)-1 {
				fmt.Fprintf(&sb, "%-*s", widths[i], c)
				continue
			}
			sb.WriteString(c)
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return strings.Join(lines, "\n")
}

func TestNew(t *testing.T) {
	tests := []struct {
		bank     string
		wantName string
		wantErr  bool
	}{
		{"metro", "Metro Bank", false},
		{"Metro Bank", "Metro Bank", false},
		{"hsbc", "HSBC", false},
		{"BARCLAYS", "Barclays", false},
		{"westpac", "Westpac", false},
		{"commbank", "Commonwealth Bank", false},
		{"walmart", "Walmart MoneyCard", false},
		{"unknown", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.bank, func(t *testing.T) {
			p, err := New(tt.bank)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.(*Issuer).Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if got := len(r.Tags()); got != 16 {
		t.Fatalf("registered issuers: got %d, want 16", got)
	}
	if r != Default() {
		t.Error("Default() built a second registry")
	}
	for _, tag := range r.Tags() {
		p, ok := r.Get(tag)
		if !ok || p.Tag() != tag {
			t.Errorf("Get(%s) returned %v, %v", tag, p, ok)
		}
	}
	if _, ok := r.Get(models.IssuerGeneric); ok {
		t.Error("GENERIC must not be an issuer parser")
	}
}

func TestRegistryBest(t *testing.T) {
	doc := document(models.IssuerHuntington, "The Huntington National Bank\n03/15 DEPOSIT 1,200.00")

	p, fit, ok := Default().Best(doc, 0.5)
	if !ok {
		t.Fatalf("no parser fits, best fit %.2f", fit)
	}
	if p.Tag() != models.IssuerHuntington {
		t.Errorf("Best() = %s, want HUNTINGTON", p.Tag())
	}

	doc.Meta.IssuerConfidence = 0.4
	if _, _, ok := Default().Best(doc, 0.5); ok {
		t.Error("a fit below the floor was accepted")
	}
}

type panicking struct{ Generic }

func (panicking) Parse(Document) models.Attempt { panic("index out of range") }

func TestRunRecoversPanics(t *testing.T) {
	a, err := Run(panicking{}, Document{})
	if err == nil {
		t.Fatal("expected an error from a panicking parser")
	}
	if !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("error does not carry the panic value: %v", err)
	}
	if a.Strategy != "generic-table" || len(a.Rows) != 0 {
		t.Errorf("attempt = %+v, want an empty generic-table attempt", a)
	}
}

func TestStrategyNames(t *testing.T) {
	p, _ := New("discover")
	if got := Strategy(p); got != "issuer/discover" {
		t.Errorf("Strategy() = %q", got)
	}
	if got := Strategy(Generic{Bias: BiasText}); got != "generic-text" {
		t.Errorf("Strategy() = %q", got)
	}
}
