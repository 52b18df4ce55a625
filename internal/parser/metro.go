package parser

import (
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Metro Bank statements have this layout:
//
//	Date | Transaction | Money out | Money in | Balance
//
// Dates are DD/MM/YYYY and one row sits on one line, with long payee
// names wrapping onto the next.
var metroSpec = Spec{
	Tag:       models.IssuerMetro,
	Name:      "Metro Bank",
	Aliases:   []string{"metro", "metrobank"},
	Locale:    models.LocaleUK,
	DateOrder: models.DayFirst,
	Currency:  "GBP",
	Keywords: interpret.Keywords{
		Debit:  []string{"CARD PAYMENT", "DIRECT DEBIT", "STANDING ORDER", "TRANSFER OUT"},
		Credit: []string{"BANK CREDIT", "FASTER PAYMENT RECEIVED", "INWARD PAYMENT"},
	},
	Summary: []string{"total paid in", "total paid out", "total payments", "total receipts"},
	Skip:    ukRegulatory,
}
