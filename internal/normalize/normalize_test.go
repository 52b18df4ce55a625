package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

func row(day int, line int, desc, amount, balance string, src models.SignSource) models.Row {
	r := models.Row{
		Transaction: models.Transaction{
			Date:        time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
			Description: desc,
			Amount:      decimal.RequireFromString(amount),
			Page:        1,
			SourceRow:   models.SourceRow(1, line),
		},
		SignSource: src,
	}
	if balance != "" {
		r.Balance = decimal.NewNullDecimal(decimal.RequireFromString(balance))
	}
	return r
}

func opening(v string) models.StatementMeta {
	return models.StatementMeta{OpeningBalance: decimal.NewNullDecimal(decimal.RequireFromString(v))}
}

func amounts(rows []models.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Amount.StringFixed(2)
	}
	return out
}

func TestNormalizeSortsAndRounds(t *testing.T) {
	rows := []models.Row{
		row(16, 5, "GROCER", "-20.005", "", models.SignExplicit),
		row(15, 9, "CAFE", "-3.50", "", models.SignExplicit),
		row(15, 2, "PAYROLL", "1000", "", models.SignKeyword),
	}
	got, rep := Normalize(rows, models.StatementMeta{})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"1000.00", "-3.50", "-20.00"}, amounts(got))
	assert.Equal(t, "PAYROLL", got[0].Description)
	assert.Equal(t, models.IntegrityUnverified, rep.Integrity)
	assert.Equal(t, "-20.005", rows[0].Amount.String(), "input is not modified")
}

func TestNormalizeFixesWeakSigns(t *testing.T) {
	rows := []models.Row{
		row(1, 1, "REFUND FEE", "-10.00", "110.00", models.SignKeyword),
		row(2, 2, "GROCER", "-5.00", "105.00", models.SignDefault),
		row(3, 3, "TRANSFER", "-7.00", "112.00", models.SignExplicit),
	}
	got, rep := Normalize(rows, opening("100.00"))

	assert.Equal(t, []string{"10.00", "-5.00", "-7.00"}, amounts(got))
	assert.Equal(t, models.SignBalance, got[0].SignSource)
	assert.Equal(t, 1, rep.Flipped)
	assert.Equal(t, 3, rep.ChainLength)
	assert.Equal(t, 1, rep.Breaks, "explicit signs are never flipped")
	assert.Equal(t, models.IntegritySuspect, rep.Integrity)
	assert.NotEmpty(t, rep.Notes)
}

func TestNormalizeIntegrityOK(t *testing.T) {
	rows := []models.Row{
		row(1, 1, "PAYROLL", "500.00", "600.00", models.SignExplicit),
		row(2, 2, "RENT", "-450.00", "150.00", models.SignExplicit),
	}
	meta := opening("100.00")
	meta.ClosingBalance = decimal.NewNullDecimal(decimal.RequireFromString("150.00"))
	meta.TotalCredits = decimal.NewNullDecimal(decimal.RequireFromString("500.00"))
	meta.TotalDebits = decimal.NewNullDecimal(decimal.RequireFromString("450.00"))

	_, rep := Normalize(rows, meta)
	assert.Equal(t, models.IntegrityOK, rep.Integrity)
	assert.Empty(t, rep.Notes)
}

func TestNormalizeTotalsMismatch(t *testing.T) {
	rows := []models.Row{row(1, 1, "PAYROLL", "500.00", "", models.SignExplicit)}
	meta := models.StatementMeta{TotalCredits: decimal.NewNullDecimal(decimal.RequireFromString("600.00"))}

	_, rep := Normalize(rows, meta)
	assert.Equal(t, models.IntegritySuspect, rep.Integrity)
	require.Len(t, rep.Notes, 1)
	assert.Contains(t, rep.Notes[0], "credits sum to 500.00")
}

func TestNormalizeIsIdempotent(t *testing.T) {
	rows := []models.Row{
		row(3, 7, "COFFEE  SHOP", "-4.255", "95.745", models.SignDefault),
		row(1, 1, "REFUND", "-10.00", "110.00", models.SignKeyword),
		row(1, 1, "REFUND", "-10.00", "110.00", models.SignKeyword),
		row(2, 4, "GROCER", "-10.00", "100.00", models.SignDefault),
	}
	once, rep1 := Normalize(rows, opening("100.00"))
	twice, rep2 := Normalize(once, opening("100.00"))

	assert.Equal(t, once, twice)
	assert.Equal(t, rep1.Integrity, rep2.Integrity)
	assert.Equal(t, 1, rep1.Duplicates)
	assert.Zero(t, rep2.Duplicates)
	assert.Zero(t, rep2.Flipped)
}

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		rows []models.Row
		want int
	}{
		{
			name: "same row printed twice",
			rows: []models.Row{row(1, 1, "CHECK 1001", "-50.00", "", ""), row(1, 9, "Check   1001", "-50.00", "", "")},
			want: 1,
		},
		{
			name: "same purchase twice with the balance moving",
			rows: []models.Row{row(1, 1, "COFFEE", "-3.00", "97.00", ""), row(1, 2, "COFFEE", "-3.00", "94.00", "")},
			want: 2,
		},
		{
			name: "different amounts",
			rows: []models.Row{row(1, 1, "COFFEE", "-3.00", "", ""), row(1, 2, "COFFEE", "-3.50", "", "")},
			want: 2,
		},
		{
			name: "one side without balance",
			rows: []models.Row{row(1, 1, "COFFEE", "-3.00", "97.00", ""), row(1, 2, "COFFEE", "-3.00", "", "")},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Dedup(tt.rows)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Card payment  Tesco", "CARD PAYMENT TESCO"},
		{"CHECK #1234", "CHECK"},
		{"ACH DEBIT PAYROLL REF 9981723", "ACH DEBIT PAYROLL"},
		{"1234", "1234"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Description(tt.in))
		})
	}
}

func TestChainWithoutOpening(t *testing.T) {
	rows := []models.Row{
		row(1, 1, "A", "-5.00", "95.00", ""),
		row(2, 2, "B", "-5.00", "", ""),
		row(3, 3, "C", "-5.00", "85.00", ""),
	}
	length, breaks := Chain(rows, decimal.NullDecimal{})
	assert.Equal(t, 1, length)
	assert.Zero(t, breaks)
}
