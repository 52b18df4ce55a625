package parser

import (
	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/interpret"
)

// ukRegulatory are footer phrases UK banks print on every page.
var ukRegulatory = []string{
	"registered in england", "authorised by the prudential regulation",
	"regulated by the financial conduct", "financial services compensation",
	"if you find", "please check this statement",
}

// ukTypeCodes are the transaction type codes UK statements print next to
// the description.
var ukTypeCodes = interpret.Keywords{
	Debit:  []string{"DD", "SO", "FPO", "DEB", "CPT", "CHQ", "TFR", "DR", "BP"},
	Credit: []string{"FPI", "BGC", "DEP", "CR"},
}

// usSections are headings US banks use besides the defaults. Phrases
// are compared as words, so "Deposits (Plus)" is "deposits plus".
var usSections = []interpret.Section{
	{Phrase: "deposits and other additions", Sign: 1},
	{Phrase: "deposits plus", Sign: 1},
	{Phrase: "withdrawals minus", Sign: -1},
	{Phrase: "other subtractions", Sign: -1},
	{Phrase: "checks", Sign: -1},
}
