// backend/src/services/scoring.go
package services

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/contaflow/src/models"
)

// Composite confidence weights. They sum to 1.0: amount closeness dominates,
// text similarity carries more signal than date proximity because bank
// descriptions frequently embed invoice numbers and vendor names.
const (
	weightAmount = 0.5
	weightDate   = 0.2
	weightText   = 0.3
)

// ScoringConfig carries the reconciliation tuning knobs. Defaults mirror the
// config package defaults so tests can construct the engine directly.
type ScoringConfig struct {
	AmountTolerancePercent float64 // e.g. 1.0 = 1%
	AmountToleranceAbs     decimal.Decimal
	DateWindowDays         int
	ConfidenceFloor        float64
	SuggestionLimit        int
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		AmountTolerancePercent: 1.0,
		AmountToleranceAbs:     decimal.NewFromInt(5),
		DateWindowDays:         14,
		ConfidenceFloor:        0.35,
		SuggestionLimit:        5,
	}
}

// amountTolerance is the smaller of the relative and absolute tolerances for
// a given transaction amount.
func (c ScoringConfig) amountTolerance(absAmount decimal.Decimal) decimal.Decimal {
	relative := absAmount.Mul(decimal.NewFromFloat(c.AmountTolerancePercent)).Div(decimal.NewFromInt(100))
	if relative.LessThan(c.AmountToleranceAbs) {
		return relative
	}
	return c.AmountToleranceAbs
}

// scoreCandidates filters and scores open entities against one transaction
// and returns ranked suggestions. Pure in-memory computation: same inputs,
// same ordered output.
func scoreCandidates(txn models.BankTransaction, entities []models.OpenEntity, cfg ScoringConfig) []models.ReconciliationMatch {
	absAmount := txn.AbsAmount()
	tolerance := nonNegative(cfg.amountTolerance(absAmount))

	var out []models.ReconciliationMatch
	for _, e := range entities {
		// Direction filter: credits settle invoices, debits settle expenses.
		if txn.IsDebit() && e.Type != models.EntityTypeExpense {
			continue
		}
		if !txn.IsDebit() && e.Type != models.EntityTypeInvoice {
			continue
		}

		amountDelta := e.Outstanding.Sub(absAmount).Abs()
		if amountDelta.GreaterThan(tolerance) {
			continue
		}

		dateDelta := absDays(txn.Date.Sub(e.RelevantDate).Hours() / 24)
		if dateDelta > cfg.DateWindowDays {
			// Outside the window the candidate is excluded, not down-scored.
			continue
		}

		textScore := textSimilarity(txn.Description, e.ReferenceText)

		amountScore := 1.0
		if tolerance.IsPositive() {
			ratio, _ := amountDelta.Div(tolerance).Float64()
			amountScore = clamp01(1.0 - ratio)
		} else if amountDelta.IsPositive() {
			amountScore = 0
		}
		dateScore := clamp01(1.0 - float64(dateDelta)/float64(cfg.DateWindowDays))

		confidence := weightAmount*amountScore + weightDate*dateScore + weightText*textScore
		if confidence < cfg.ConfidenceFloor {
			continue
		}

		out = append(out, models.ReconciliationMatch{
			TransactionID: txn.ID,
			EntityType:    e.Type,
			EntityID:      e.ID,
			Status:        models.MatchStatusSuggested,
			Confidence:    confidence,
			EntityRef:     e.ReferenceText,
			Basis: models.MatchBasis{
				AmountDelta:   amountDelta,
				DateDeltaDays: dateDelta,
				TextScore:     textScore,
			},
		})
	}

	// Confidence descending, ties broken by nearer date then entity id. The
	// entity list arrives in creation order, so id order is creation order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Basis.DateDeltaDays != out[j].Basis.DateDeltaDays {
			return out[i].Basis.DateDeltaDays < out[j].Basis.DateDeltaDays
		}
		return out[i].EntityID < out[j].EntityID
	})

	if cfg.SuggestionLimit > 0 && len(out) > cfg.SuggestionLimit {
		out = out[:cfg.SuggestionLimit]
	}
	return out
}

// textSimilarity scores a bank description against an entity reference in
// [0,1]. Token containment catches "Customer Payment - INV001" vs "INV001";
// normalized Levenshtein catches near-miss spellings of vendor names. The
// better of the two wins.
func textSimilarity(description, reference string) float64 {
	descTokens := tokenize(description)
	refTokens := tokenize(reference)
	if len(refTokens) == 0 || len(descTokens) == 0 {
		return 0
	}

	descSet := make(map[string]bool, len(descTokens))
	for _, t := range descTokens {
		descSet[t] = true
	}
	hits := 0
	for _, t := range refTokens {
		if descSet[t] {
			hits++
		}
	}
	containment := float64(hits) / float64(len(refTokens))

	editSim := levenshteinSimilarity(
		strings.ToLower(strings.Join(descTokens, " ")),
		strings.ToLower(strings.Join(refTokens, " ")),
	)

	if containment > editSim {
		return containment
	}
	return editSim
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 { // single characters are separator noise
			out = append(out, f)
		}
	}
	return out
}

// levenshteinSimilarity is 1 - editDistance/maxLen, in [0,1].
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	dist := prev[len(rb)]

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absDays(d float64) int {
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}

// nonNegative guards against a negative tolerance from misconfiguration.
func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
