package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssuerTag identifies a statement issuer known to the parser registry.
type IssuerTag string

const (
	IssuerGeneric      IssuerTag = "GENERIC"
	IssuerWestpac      IssuerTag = "WESTPAC"
	IssuerCommonwealth IssuerTag = "COMMONWEALTH"
	IssuerBendigo      IssuerTag = "BENDIGO"
	IssuerLloyds       IssuerTag = "LLOYDS"
	IssuerMetro        IssuerTag = "METRO"
	IssuerHSBC         IssuerTag = "HSBC"
	IssuerBarclays     IssuerTag = "BARCLAYS"
	IssuerDiscover     IssuerTag = "DISCOVER"
	IssuerSunTrust     IssuerTag = "SUNTRUST"
	IssuerHuntington   IssuerTag = "HUNTINGTON"
	IssuerPayPal       IssuerTag = "PAYPAL"
	IssuerBECU         IssuerTag = "BECU"
	IssuerRabobank     IssuerTag = "RABOBANK"
	IssuerGreenDot     IssuerTag = "GREENDOT"
	IssuerWoodforest   IssuerTag = "WOODFOREST"
	IssuerWalmart      IssuerTag = "WALMART"
)

// LayoutClass describes how rows are arranged on the page.
type LayoutClass string

const (
	LayoutUnknown   LayoutClass = ""
	LayoutColumnar  LayoutClass = "columnar"  // one row per line, amount columns
	LayoutSplit     LayoutClass = "split"     // separate debit and credit columns
	LayoutSectioned LayoutClass = "sectioned" // rows grouped under deposits/withdrawals headings
	LayoutNarrative LayoutClass = "narrative" // multi-line descriptions
)

// DateOrder is the field order used for ambiguous numeric dates.
type DateOrder string

const (
	DayFirst   DateOrder = "DD/MM"
	MonthFirst DateOrder = "MM/DD"
)

// Convention is the decimal/grouping separator convention of a document.
type Convention string

const (
	ConventionUS Convention = "US" // 1,234.56
	ConventionEU Convention = "EU" // 1.234,56
)

// Locale is a caller hint about where a statement comes from.
type Locale string

const (
	LocaleNone Locale = ""
	LocaleUS   Locale = "US"
	LocaleEU   Locale = "EU"
	LocaleUK   Locale = "UK"
	LocaleAU   Locale = "AU"
)

// DayFirst reports whether numeric dates in this locale are usually DD/MM.
func (l Locale) DayFirst() bool {
	return l == LocaleEU || l == LocaleUK || l == LocaleAU
}

// Period is an inclusive statement date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// Contains reports whether t lies in the period widened by slack on both ends.
func (p Period) Contains(t time.Time, slack time.Duration) bool {
	if p.IsZero() {
		return false
	}
	return !t.Before(p.Start.Add(-slack)) && !t.After(p.End.Add(slack))
}

// StatementMeta is everything inferred about a statement before rows are parsed.
type StatementMeta struct {
	Issuer           IssuerTag           `json:"issuer"`
	IssuerConfidence float64             `json:"issuer_confidence"`
	Period           Period              `json:"period"`
	PeriodDerived    bool                `json:"period_derived,omitempty"`
	PrimaryCurrency  string              `json:"primary_currency,omitempty"`
	Layout           LayoutClass         `json:"layout_class,omitempty"`
	IsScanned        bool                `json:"is_scanned"`
	DateOrder        DateOrder           `json:"date_order"`
	Convention       Convention          `json:"convention"`
	OpeningBalance   decimal.NullDecimal `json:"opening_balance"`
	ClosingBalance   decimal.NullDecimal `json:"closing_balance"`
	TotalCredits     decimal.NullDecimal `json:"total_credits"`
	TotalDebits      decimal.NullDecimal `json:"total_debits"`
}
