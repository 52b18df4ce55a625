package parser

import (
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Barclays prints two layouts. The standard one is
//
//	Date | Description | Money out | Money in | Balance
//
// with DD/MM/YYYY or DD Mon YYYY dates. The business layout uses short
// "8 Dec" dates and arrows between columns:
//
//	8 Dec  Card Payment to Amazon  → 19.49 → 9,456.68
//
// Card payments abroad are followed by foreign exchange lines that carry
// amounts of their own but only describe the payment above them.
var barclaysSpec = Spec{
	Tag:         models.IssuerBarclays,
	Name:        "Barclays",
	Aliases:     []string{"barclays", "barclaysuk"},
	Locale:      models.LocaleUK,
	DateOrder:   models.DayFirst,
	Currency:    "GBP",
	InheritDate: true,
	Keywords: interpret.Keywords{
		Credit: []string{"DIRECT CREDIT", "CREDIT FROM", "BGC", "BACS", "INTEREST PAID", "TRANSFER FROM", "FASTER PAYMENT RECEIVED"},
		Debit:  []string{"CARD PAYMENT TO", "DIRECT DEBIT TO", "TRANSFER TO"},
	},
	Summary: []string{"start balance", "end balance", "balance carried forward"},
	Skip: append([]string{
		"at a glance", "your deposit is eligible", "compensation scheme", "your business current account",
		"issued on", "swiftbic", "iban gb", "anything wrong", "barclays bank uk plc. authorised",
	}, ukRegulatory...),
	Detail:     []string{"exchange rate", "non-sterling transaction fee", "final gbp amount"},
	Separators: []string{"→"},
}
