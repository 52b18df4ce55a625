package parser

import (
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// HSBC statements have this layout:
//
//	Date | Payment type and details | Paid out | Paid in | Balance
//
// The date is DD Mon YY and is printed once per day; later rows that day
// leave it blank. A short payment type code opens each description and
// contactless payments carry a ")))" glyph.
var hsbcSpec = Spec{
	Tag:         models.IssuerHSBC,
	Name:        "HSBC",
	Aliases:     []string{"hsbc", "hsbcuk"},
	Locale:      models.LocaleUK,
	DateOrder:   models.DayFirst,
	Currency:    "GBP",
	InheritDate: true,
	Keywords: interpret.Keywords{
		Debit:  []string{"DD", "SO", "VIS", "BP", "ATM", "CHQ", "OBP"},
		Credit: []string{"CR"},
	},
	Summary:    []string{"balance carried forward", "balance brought forward"},
	Skip:       ukRegulatory,
	Separators: []string{")))"},
}
