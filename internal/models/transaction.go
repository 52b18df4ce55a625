package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO 8601 calendar date layout used on every output surface.
const DateLayout = "2006-01-02"

// Transaction represents a single bank statement transaction.
// Amount is signed from the account holder's view: inflows positive,
// outflows negative.
type Transaction struct {
	Date        time.Time
	DateRaw     string
	Description string
	Amount      decimal.Decimal
	AmountRaw   string
	Balance     decimal.NullDecimal
	Page        int
	SourceRow   string
}

type transactionJSON struct {
	Date        string       `json:"date"`
	DateRaw     string       `json:"date_raw"`
	Description string       `json:"description"`
	Amount      json.Number  `json:"amount"`
	AmountRaw   string       `json:"amount_raw"`
	Balance     *json.Number `json:"balance"`
	Page        int          `json:"page"`
	SourceRow   string       `json:"source_row"`
}

// MarshalJSON writes the date as YYYY-MM-DD and money with two fractional digits.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := transactionJSON{
		Date:        t.Date.Format(DateLayout),
		DateRaw:     t.DateRaw,
		Description: t.Description,
		Amount:      json.Number(t.Amount.StringFixed(2)),
		AmountRaw:   t.AmountRaw,
		Page:        t.Page,
		SourceRow:   t.SourceRow,
	}
	if t.Balance.Valid {
		b := json.Number(t.Balance.Decimal.StringFixed(2))
		out.Balance = &b
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var in transactionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	date, err := time.Parse(DateLayout, in.Date)
	if err != nil {
		return fmt.Errorf("transaction date %q: %w", in.Date, err)
	}
	amount, err := decimal.NewFromString(in.Amount.String())
	if err != nil {
		return fmt.Errorf("transaction amount %q: %w", in.Amount, err)
	}
	*t = Transaction{
		Date:        date,
		DateRaw:     in.DateRaw,
		Description: in.Description,
		Amount:      amount,
		AmountRaw:   in.AmountRaw,
		Page:        in.Page,
		SourceRow:   in.SourceRow,
	}
	if in.Balance != nil {
		bal, err := decimal.NewFromString(in.Balance.String())
		if err != nil {
			return fmt.Errorf("transaction balance %q: %w", *in.Balance, err)
		}
		t.Balance = decimal.NewNullDecimal(bal)
	}
	return nil
}

// SignSource records which rule decided the sign of a row's amount.
type SignSource string

const (
	SignAnchor   SignSource = "anchor"   // column position under a debit/credit header
	SignExplicit SignSource = "explicit" // leading/trailing minus, parentheses, signed column
	SignMarker   SignSource = "marker"   // DR / CR
	SignSection  SignSource = "section"  // "Deposits" / "Withdrawals" heading above the row
	SignKeyword  SignSource = "keyword"
	SignBalance  SignSource = "balance"
	SignDefault  SignSource = "default"
)

// Weak reports whether a later balance-chain check may overrule the sign.
func (s SignSource) Weak() bool {
	return s == SignKeyword || s == SignDefault
}

// Row is a candidate transaction together with the interpreter's confidence.
type Row struct {
	Transaction
	Score         float64    `json:"score"`
	SignSource    SignSource `json:"sign_source"`
	DateInherited bool       `json:"date_inherited,omitempty"`
}

type rowJSON struct {
	Score         float64    `json:"score"`
	SignSource    SignSource `json:"sign_source"`
	DateInherited bool       `json:"date_inherited,omitempty"`
}

// MarshalJSON flattens the embedded transaction next to the scoring fields.
func (r Row) MarshalJSON() ([]byte, error) {
	txn, err := r.Transaction.MarshalJSON()
	if err != nil {
		return nil, err
	}
	extra, err := json.Marshal(rowJSON{Score: r.Score, SignSource: r.SignSource, DateInherited: r.DateInherited})
	if err != nil {
		return nil, err
	}
	// {"date":...} + {"score":...} -> {"date":...,"score":...}
	return append(append(txn[:len(txn)-1], ','), extra[1:]...), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Row) UnmarshalJSON(data []byte) error {
	if err := r.Transaction.UnmarshalJSON(data); err != nil {
		return err
	}
	var extra rowJSON
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	r.Score = extra.Score
	r.SignSource = extra.SignSource
	r.DateInherited = extra.DateInherited
	return nil
}

// DebugLine captures what a parser did with each input line.
type DebugLine struct {
	Page   int    `json:"page"`
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Result string `json:"result"` // "parsed", "skipped", "continuation", "header", "rejected"
	Reason string `json:"reason,omitempty"`
}

// Attempt is the output of one strategy in the dispatcher chain.
type Attempt struct {
	Strategy       string      `json:"strategy"`
	Rows           []Row       `json:"rows"`
	Rejected       int         `json:"rejected"`
	AmbiguousDates int         `json:"ambiguous_dates"`
	Debug          []DebugLine `json:"debug,omitempty"`
}

// Transactions returns the attempt's rows without scoring fields.
func (a Attempt) Transactions() []Transaction {
	out := make([]Transaction, len(a.Rows))
	for i, r := range a.Rows {
		out[i] = r.Transaction
	}
	return out
}

// SourceRow formats the stable source reference for a page/line pair.
// Zero padding keeps lexical order equal to reading order.
func SourceRow(page, line int) string {
	return fmt.Sprintf("p%03d:l%04d", page, line)
}
