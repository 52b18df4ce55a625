package amount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

func TestLexUS(t *testing.T) {
	lx := New(models.ConventionUS)
	tests := []struct {
		input    string
		want     string
		negative bool
		marker   string
		currency string
	}{
		{"25.99", "25.99", false, "", ""},
		{"1,234.56", "1234.56", false, "", ""},
		{"£25.99", "25.99", false, "", "GBP"},
		{"-25.99", "-25.99", true, "", ""},
		{"(25.99)", "-25.99", true, "", ""},
		{"25.99-", "-25.99", true, "", ""},
		{"$1,234,567.89", "1234567.89", false, "", "USD"},
		{"-$80.00", "-80", true, "", "USD"},
		{"1,136.00CR", "1136", false, MarkerCredit, ""},
		{"42.10DR", "42.1", false, MarkerDebit, ""},
		{"0.00", "0", false, "", ""},
		{"$120", "120", false, "", "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := lx.Lex(tt.input)
			require.True(t, ok, "expected %q to lex", tt.input)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Value), "got %s, want %s", got.Value, tt.want)
			assert.Equal(t, tt.negative, got.Negative)
			assert.Equal(t, tt.marker, got.Marker)
			assert.Equal(t, tt.currency, got.Currency)
		})
	}
}

func TestLexRejects(t *testing.T) {
	lx := New(models.ConventionUS)
	for _, input := range []string{"", "2022", "2/11/2022", "03/15", "1.234,56", "1.5", "12.345", "ABC", "123456789012345.00", "DR", "-"} {
		t.Run(input, func(t *testing.T) {
			_, ok := lx.Lex(input)
			assert.False(t, ok, "%q should not lex as an amount", input)
		})
	}
}

func TestLexWithHintAcceptsIntegers(t *testing.T) {
	lx := New(models.ConventionUS)
	got, ok := lx.LexWithHint("120", true)
	require.True(t, ok)
	assert.Equal(t, "120.00", got.Value.StringFixed(2))
}

func TestLexEU(t *testing.T) {
	eu := New(models.ConventionEU)
	got, ok := eu.Lex("1.234,56")
	require.True(t, ok)
	assert.Equal(t, "1234.56", got.Value.StringFixed(2))

	got, ok = eu.Lex("-12,50")
	require.True(t, ok)
	assert.Equal(t, "-12.50", got.Value.StringFixed(2))

	_, ok = eu.Lex("1,234.56")
	assert.False(t, ok)

	_, ok = New(models.ConventionUS).Lex("1.234,56")
	assert.False(t, ok, "EU amount must not lex under the US convention")
}

func TestLexRoundsHalfEven(t *testing.T) {
	// Two fractional digits is already exact; rounding must not move it.
	got, ok := New(models.ConventionUS).Lex("2.45")
	require.True(t, ok)
	assert.Equal(t, "2.45", got.Value.StringFixed(2))
}

func TestVote(t *testing.T) {
	tests := []struct {
		name     string
		tokens   []string
		fallback models.Convention
		want     models.Convention
	}{
		{"us majority", []string{"1,234.56", "12.00", "1.234,56"}, models.ConventionEU, models.ConventionUS},
		{"eu majority", []string{"1.234,56", "12,00", "99,99", "5.00"}, models.ConventionUS, models.ConventionEU},
		{"tie keeps fallback", []string{"1,234.56", "1.234,56"}, models.ConventionEU, models.ConventionEU},
		{"no votes", []string{"hello", "2022"}, "", models.ConventionUS},
		{"signs and glyphs ignored", []string{"-€1.234,56", "(12,00)"}, models.ConventionUS, models.ConventionEU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Vote(tt.tokens, tt.fallback))
		})
	}
}

func TestCurrency(t *testing.T) {
	code, ok := Currency("USD")
	assert.True(t, ok)
	assert.Equal(t, "USD", code)

	code, ok = Currency("£")
	assert.True(t, ok)
	assert.Equal(t, "GBP", code)

	_, ok = Currency("DEPOSIT")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	v, err := New(models.ConventionUS).Parse("£1,234.50")
	require.NoError(t, err)
	assert.Equal(t, "1234.50", v.StringFixed(2))

	_, err = New(models.ConventionUS).Parse("balance")
	assert.ErrorIs(t, err, ErrNotAmount)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"19,720;15", "19,720.15"},
		{"1,234:56 ", "1,234.56 "},
		{"TOTAL 12.50: ", "TOTAL 12.50 "},
		{"PAYMENT 12.50 NA", "PAYMENT 12.50"},
		{"CARD 1,234 .56", "CARD 1,234.56"},
		{"1.00", "1.00"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}
