package interpret

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/models"
)

// Line score weights.
const (
	scoreDate        = 3
	scoreAmount      = 3
	scoreBalance     = 2
	scoreAnchor      = 2
	scoreDescription = 1
	penaltyDefault   = 1
	penaltyBreak     = 1

	// implausibleFactor marks amounts this many times the statement median.
	implausibleFactor = 100
)

// MaxScore is the best score a single row can reach.
const MaxScore = scoreDate + scoreAmount + scoreBalance + scoreAnchor + scoreDescription

// Score rates one candidate row. breaks is the number of balance chain
// breaks the row caused.
func Score(r models.Row, anchored bool, breaks int) float64 {
	s := scoreAmount
	if !r.Date.IsZero() && !r.DateInherited {
		s += scoreDate
	}
	if r.Balance.Valid {
		s += scoreBalance
	}
	if anchored {
		s += scoreAnchor
	}
	if len([]rune(r.Description)) >= 3 {
		s += scoreDescription
	}
	if r.SignSource == models.SignDefault {
		s -= penaltyDefault
	}
	s -= penaltyBreak * breaks
	return float64(s)
}

// FinalizeScores halves the score of rows whose amount is out of
// proportion with the rest of the statement.
func FinalizeScores(rows []models.Row) {
	med := medianAbs(rows)
	if med.IsZero() {
		return
	}
	limit := med.Mul(decimal.NewFromInt(implausibleFactor))
	for i := range rows {
		if rows[i].Amount.Abs().GreaterThan(limit) {
			rows[i].Score *= 0.5
		}
	}
}

func medianAbs(rows []models.Row) decimal.Decimal {
	vals := make([]decimal.Decimal, 0, len(rows))
	for _, r := range rows {
		if !r.Amount.IsZero() {
			vals = append(vals, r.Amount.Abs())
		}
	}
	if len(vals) == 0 {
		return decimal.Zero
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].LessThan(vals[j]) })
	return vals[len(vals)/2]
}

// Median returns the median line score of rows, or 0 when there are none.
func Median(rows []models.Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	s := make([]float64, len(rows))
	for i, r := range rows {
		s[i] = r.Score
	}
	sort.Float64s(s)
	if n := len(s); n%2 == 0 {
		return (s[n/2-1] + s[n/2]) / 2
	}
	return s[len(s)/2]
}
