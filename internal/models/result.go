package models

import "time"

// DefaultBudget bounds one extraction end to end.
const DefaultBudget = 45 * time.Second

// Options tune a single extraction.
type Options struct {
	Budget         time.Duration `json:"budget"`
	ForceOCR       bool          `json:"force_ocr"`
	ExpectedLocale Locale        `json:"expected_locale,omitempty"`
	Issuer         IssuerTag     `json:"issuer,omitempty"` // forces strategy (i) when set
	Debug          bool          `json:"debug,omitempty"`
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Budget <= 0 {
		o.Budget = DefaultBudget
	}
	return o
}

// Status summarises the outcome of an extraction.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusEmpty   Status = "empty"
)

// Integrity is the verdict of the balance chain check.
type Integrity string

const (
	IntegrityOK         Integrity = "ok"
	IntegritySuspect    Integrity = "suspect"
	IntegrityUnverified Integrity = "unverified" // no balances to check against
)

// Diagnostics explain how a result was produced.
type Diagnostics struct {
	RunID              string    `json:"run_id"`
	StrategyTried      []string  `json:"strategy_tried"`
	Strategy           string    `json:"strategy,omitempty"`
	Score              int       `json:"score"`
	BalanceChainBreaks int       `json:"balance_chain_breaks"`
	RejectedRows       int       `json:"rejected_rows"`
	AmbiguousDates     int       `json:"ambiguous_dates"`
	Integrity          Integrity `json:"integrity"`
	Notes              []string  `json:"notes,omitempty"`
	Elapsed            string    `json:"elapsed"`
}

// Note appends a free-form diagnostic message.
func (d *Diagnostics) Note(msg string) {
	d.Notes = append(d.Notes, msg)
}

// Result is the engine's answer for one PDF.
type Result struct {
	Status       Status        `json:"status"`
	Meta         StatementMeta `json:"meta"`
	Transactions []Transaction `json:"transactions"`
	Diagnostics  Diagnostics   `json:"diagnostics"`
	Debug        []DebugLine   `json:"debug,omitempty"`
}

// ExitCode maps a status to the CLI process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusOK:
		return 0
	case StatusPartial:
		return 2
	case StatusEmpty:
		return 3
	default:
		return 1
	}
}
