package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/normalize"
)

const sunTrustJanuary = `SunTrust Bank
Account Statement
Statement Period 01/01/2023 - 01/31/2023
Beginning Balance $1,000.00
Total Deposits/Credits $4,625.50
Total Withdrawals/Debits $726.93
Ending Balance $4,898.57
Deposits/Credits
01/03 PAYROLL ACME CORP 2,150.00
01/17 PAYROLL ACME CORP 2,150.00
01/20 MOBILE DEPOSIT 325.50
Withdrawals/Debits
01/05 ELECTRIC COMPANY 142.37
01/09 CHECK 1045 250.00
01/12 GROCERY OUTLET 87.56
01/18 ATM WITHDRAWAL 100.00
01/24 CABLE SERVICE 79.99
01/27 GAS STATION 67.01`

func TestSunTrustNineTransactions(t *testing.T) {
	suntrust, _ := New("suntrust")
	parsers := []Parser{suntrust, Generic{Bias: BiasTable}, Generic{Bias: BiasText}}
	for _, p := range parsers {
		t.Run(Strategy(p), func(t *testing.T) {
			tag := models.IssuerGeneric
			if p.Tag() != models.IssuerGeneric {
				tag = p.Tag()
			}
			doc := document(tag, sunTrustJanuary)
			a := p.Parse(doc)

			require.Len(t, a.Rows, 9)
			sum := decimal.Zero
			for _, r := range a.Rows {
				sum = sum.Add(r.Amount)
			}
			assert.Equal(t, "3898.57", sum.StringFixed(2))

			rows, rep := normalize.Normalize(a.Rows, doc.Meta)
			assert.Equal(t, models.IntegrityOK, rep.Integrity, rep.Notes)
			assert.Equal(t, "PAYROLL ACME CORP", rows[0].Description)
			assert.Equal(t, "2023-01-27", rows[8].Date.Format(models.DateLayout))
		})
	}
}

func TestGenericConvention(t *testing.T) {
	text := `Rabobank
Rekeningafschrift periode 01-03-2024 t/m 31-03-2024
04-03-2024 Albert Heijn 1.234,56 Af`

	doc := document(models.IssuerRabobank, text)
	a := Generic{Bias: BiasText}.Parse(doc)
	require.Len(t, a.Rows, 1)
	assert.Equal(t, "1234.56", a.Rows[0].Amount.Abs().StringFixed(2))

	doc.Meta.Convention = models.ConventionUS
	a = Generic{Bias: BiasText}.Parse(doc)
	assert.Empty(t, a.Rows, "1.234,56 is not money in a US document")
}

func TestTableAnchorsFromContent(t *testing.T) {
	text := "Statement period 03/01/2024 - 03/31/2024\n" + columns(
		[]string{"03/01", "GROCER", "-45.10", "954.90"},
		[]string{"03/02", "PAYROLL ACME", "1,500.00", "2,454.90"},
		[]string{"03/03", "RENT", "-900.00", "1,554.90"},
	)
	doc := document(models.IssuerGeneric, text)
	page := doc.Pages[0]
	require.Len(t, page.Tables, 1)

	anchors, ok := TableAnchors(page, page.Tables[0], doc.Lexer())
	require.True(t, ok)
	roles := make([]interpret.Role, len(anchors))
	for i, a := range anchors {
		roles[i] = a.Role
	}
	assert.Equal(t, []interpret.Role{interpret.RoleDate, interpret.RoleDescription, interpret.RoleAmount, interpret.RoleBalance}, roles)

	a := Generic{Bias: BiasTable}.Parse(doc)
	require.Len(t, a.Rows, 3)
	assert.Equal(t, float64(interpret.MaxScore), a.Rows[1].Score)
	assert.Equal(t, "1500.00", a.Rows[1].Amount.StringFixed(2))
	assert.Equal(t, "-900.00", a.Rows[2].Amount.StringFixed(2))
}

func TestTableAnchorsSplitColumns(t *testing.T) {
	tbl := models.Table{
		Columns: []models.Span{{X0: 0, X1: 60}, {X0: 72, X1: 200}, {X0: 222, X1: 270}, {X0: 300, X1: 348}},
		Lines:   []int{0, 1, 2},
		Rows: [][]string{
			{"03/01", "GROCER", "45.10", ""},
			{"03/02", "PAYROLL", "", "1,500.00"},
			{"03/03", "RENT", "900.00", ""},
		},
	}
	anchors, ok := inferAnchors(tbl, Document{}.Lexer())
	require.True(t, ok)
	assert.True(t, anchors.Has(interpret.RoleDebit))
	assert.True(t, anchors.Has(interpret.RoleCredit))
	assert.False(t, anchors.Has(interpret.RoleBalance))
}

func TestUnion(t *testing.T) {
	row := func(line int, desc, amt string) models.Row {
		return models.Row{Transaction: models.Transaction{
			Description: desc,
			Amount:      decimal.RequireFromString(amt),
			SourceRow:   models.SourceRow(1, line),
		}}
	}
	primary := models.Attempt{
		Rows: []models.Row{row(1, "COFFEE", "-3.00")},
		Debug: []models.DebugLine{
			{Page: 1, Line: 1, Result: "parsed"},
			{Page: 1, Line: 2, Result: "rejected", Reason: "zero amount"},
		},
	}
	secondary := models.Attempt{
		Rows: []models.Row{
			row(1, "COFFEE SHOP", "-3.00"), // same printed line
			row(5, "Coffee", "-3.00"),      // same transaction
			row(7, "BAKERY", "-2.00"),
		},
		Debug: []models.DebugLine{
			{Page: 1, Line: 2, Result: "parsed"},
			{Page: 1, Line: 9, Result: "rejected", Reason: interpret.ReasonOutsidePeriod},
		},
	}

	got := union("generic-text", primary, secondary)

	require.Len(t, got.Rows, 2)
	assert.Equal(t, "BAKERY", got.Rows[1].Description)
	assert.Len(t, got.Debug, 3)
	assert.Equal(t, 1, got.Rejected)
	assert.Equal(t, 1, got.AmbiguousDates)
}
