package parser

import (
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/amount"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Specs are the built-in issuers.
var Specs = []Spec{
	westpacSpec,
	{
		Tag:         models.IssuerCommonwealth,
		Name:        "Commonwealth Bank",
		Aliases:     []string{"commbank", "cba", "commonwealth"},
		Locale:      models.LocaleAU,
		DateOrder:   models.DayFirst,
		Currency:    "AUD",
		InheritDate: true,
		Summary:     []string{"closing balance", "opening balance"},
	},
	{
		Tag:       models.IssuerBendigo,
		Name:      "Bendigo Bank",
		Aliases:   []string{"bendigo"},
		Locale:    models.LocaleAU,
		DateOrder: models.DayFirst,
		Currency:  "AUD",
	},
	{
		Tag:         models.IssuerLloyds,
		Name:        "Lloyds Bank",
		Aliases:     []string{"lloyds"},
		Locale:      models.LocaleUK,
		DateOrder:   models.DayFirst,
		Currency:    "GBP",
		InheritDate: true,
		Keywords:    ukTypeCodes,
		Skip:        ukRegulatory,
	},
	metroSpec,
	hsbcSpec,
	barclaysSpec,
	discoverSpec,
	{
		Tag:       models.IssuerSunTrust,
		Name:      "SunTrust",
		Aliases:   []string{"suntrust", "truist"},
		Locale:    models.LocaleUS,
		DateOrder: models.MonthFirst,
		Currency:  "USD",
		Sections:  usSections,
	},
	{
		Tag:       models.IssuerHuntington,
		Name:      "Huntington",
		Aliases:   []string{"huntington"},
		Locale:    models.LocaleUS,
		DateOrder: models.MonthFirst,
		Currency:  "USD",
		Sections:  usSections,
	},
	{
		// Gross and fee columns are ignored; net is the amount.
		Tag:            models.IssuerPayPal,
		Name:           "PayPal",
		Aliases:        []string{"paypal"},
		Locale:         models.LocaleUS,
		DateOrder:      models.MonthFirst,
		Currency:       "USD",
		UnsignedCredit: true,
	},
	{
		Tag:       models.IssuerBECU,
		Name:      "BECU",
		Aliases:   []string{"becu", "boeing"},
		Locale:    models.LocaleUS,
		DateOrder: models.MonthFirst,
		Currency:  "USD",
		Sections:  usSections,
	},
	{
		Tag:       models.IssuerRabobank,
		Name:      "Rabobank",
		Aliases:   []string{"rabobank", "rabo"},
		Locale:    models.LocaleEU,
		DateOrder: models.DayFirst,
		Currency:  "EUR",
		Keywords:  interpret.Keywords{Debit: []string{"AF"}, Credit: []string{"BIJ"}},
		Markers:   map[string]string{"AF": amount.MarkerDebit, "BIJ": amount.MarkerCredit},
		Summary:   []string{"beginsaldo", "eindsaldo", "totaal"},
	},
	stub(models.IssuerGreenDot, "Green Dot", "greendot"),
	stub(models.IssuerWoodforest, "Woodforest", "woodforest"),
	stub(models.IssuerWalmart, "Walmart MoneyCard", "walmart", "moneycard"),
}

// Westpac prints a row as date, foreign amount, currency and the signed
// amount in AUD. The description usually sits on the line above the row.
var westpacSpec = Spec{
	Tag:            models.IssuerWestpac,
	Name:           "Westpac",
	Aliases:        []string{"westpac"},
	Locale:         models.LocaleAU,
	DateOrder:      models.MonthFirst,
	Currency:       "AUD",
	Money:          interpret.MoneySignedLast,
	UnsignedCredit: true,
}

// Discover card statements print the transaction and posting dates side
// by side. Purchases are unsigned and payments carry a minus.
var discoverSpec = Spec{
	Tag:       models.IssuerDiscover,
	Name:      "Discover",
	Aliases:   []string{"discover"},
	Locale:    models.LocaleUS,
	DateOrder: models.MonthFirst,
	Currency:  "USD",
	Sections: []interpret.Section{
		{Phrase: "payments and credits", Sign: 1},
		{Phrase: "purchases", Sign: -1},
	},
	Summary: []string{"previous balance", "new balance", "cashback bonus"},
}

// stub registers an issuer that is only told apart by its markers; its
// rows parse like the generic text pass.
func stub(tag models.IssuerTag, name string, aliases ...string) Spec {
	return Spec{
		Tag:       tag,
		Name:      name,
		Aliases:   aliases,
		Locale:    models.LocaleUS,
		DateOrder: models.MonthFirst,
		Currency:  "USD",
		Sections:  usSections,
	}
}
