// backend/src/services/scoring_test.go
package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/contaflow/src/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func creditTxn(id int64, amount string, date time.Time, description string) models.BankTransaction {
	return models.BankTransaction{
		ID:          id,
		BusinessID:  1,
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
	}
}

func invoice(id int64, outstanding string, date time.Time, ref string) models.OpenEntity {
	return models.OpenEntity{
		ID:            id,
		BusinessID:    1,
		Type:          models.EntityTypeInvoice,
		Outstanding:   decimal.RequireFromString(outstanding),
		RelevantDate:  date,
		ReferenceText: ref,
	}
}

func expense(id int64, outstanding string, date time.Time, ref string) models.OpenEntity {
	e := invoice(id, outstanding, date, ref)
	e.Type = models.EntityTypeExpense
	return e
}

func TestScoreCandidates_ExactInvoiceMatch(t *testing.T) {
	txn := creditTxn(10, "5000.00", day(2025, 3, 15), "Customer Payment - INV001")
	entities := []models.OpenEntity{
		invoice(1, "5000.00", day(2025, 3, 13), "INV001"),
		invoice(2, "5000.00", day(2025, 2, 8), "INV002"), // 35 days away: excluded
	}

	out := scoreCandidates(txn, entities, DefaultScoringConfig())

	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].EntityID)
	assert.Equal(t, models.MatchStatusSuggested, out[0].Status)
	// Exact amount, 2-day delta, reference token present in the description.
	assert.InDelta(t, 0.97, out[0].Confidence, 0.01)
	assert.Equal(t, 2, out[0].Basis.DateDeltaDays)
	assert.True(t, out[0].Basis.AmountDelta.IsZero())
	assert.Equal(t, 1.0, out[0].Basis.TextScore)
}

func TestScoreCandidates_DirectionFilter(t *testing.T) {
	entities := []models.OpenEntity{
		invoice(1, "100.00", day(2025, 3, 15), "INV100"),
		expense(2, "100.00", day(2025, 3, 15), "INV100"),
	}
	cfg := DefaultScoringConfig()

	credit := creditTxn(10, "100.00", day(2025, 3, 15), "payment INV100")
	out := scoreCandidates(credit, entities, cfg)
	require.Len(t, out, 1)
	assert.Equal(t, models.EntityTypeInvoice, out[0].EntityType)

	debit := creditTxn(11, "-100.00", day(2025, 3, 15), "payment INV100")
	out = scoreCandidates(debit, entities, cfg)
	require.Len(t, out, 1)
	assert.Equal(t, models.EntityTypeExpense, out[0].EntityType)
}

func TestScoreCandidates_AmountToleranceIsMinOfRelativeAndAbsolute(t *testing.T) {
	cfg := DefaultScoringConfig()

	// 1% of 10000 is 100, but the absolute cap is 5: a 20-unit delta is out.
	txn := creditTxn(10, "10000.00", day(2025, 3, 15), "payment INV777")
	out := scoreCandidates(txn, []models.OpenEntity{
		invoice(1, "10020.00", day(2025, 3, 15), "INV777"),
	}, cfg)
	assert.Empty(t, out)

	// A 4-unit delta sits inside the 5-unit cap.
	out = scoreCandidates(txn, []models.OpenEntity{
		invoice(1, "10004.00", day(2025, 3, 15), "INV777"),
	}, cfg)
	require.Len(t, out, 1)

	// For a small amount the 1% relative bound is the binding one:
	// 1% of 100 is 1, so a 2-unit delta is out even though it is under 5.
	small := creditTxn(11, "100.00", day(2025, 3, 15), "payment INV778")
	out = scoreCandidates(small, []models.OpenEntity{
		invoice(2, "102.00", day(2025, 3, 15), "INV778"),
	}, cfg)
	assert.Empty(t, out)
}

func TestScoreCandidates_DateWindowExcludes(t *testing.T) {
	cfg := DefaultScoringConfig()
	txn := creditTxn(10, "500.00", day(2025, 3, 15), "payment INV005")

	inside := invoice(1, "500.00", day(2025, 3, 1), "INV005")  // 14 days: boundary is in
	outside := invoice(2, "500.00", day(2025, 2, 28), "INV005") // 15 days: out

	out := scoreCandidates(txn, []models.OpenEntity{inside, outside}, cfg)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].EntityID)
}

func TestScoreCandidates_ConfidenceFloor(t *testing.T) {
	cfg := DefaultScoringConfig()
	// Amount at the edge of tolerance (score ~0.2), date at the edge of the
	// window (score ~0.07), no text overlap: composite sits under the floor.
	txn := creditTxn(10, "500.00", day(2025, 3, 15), "zzzz qqqq")
	out := scoreCandidates(txn, []models.OpenEntity{
		invoice(1, "504.00", day(2025, 3, 2), "INV009"),
	}, cfg)
	assert.Empty(t, out)
}

func TestScoreCandidates_DeterministicOrdering(t *testing.T) {
	cfg := DefaultScoringConfig()
	txn := creditTxn(10, "250.00", day(2025, 3, 15), "payment received")

	// Identical scores except the date delta, plus an exact tie broken by id.
	entities := []models.OpenEntity{
		invoice(3, "250.00", day(2025, 3, 10), "payment received"),
		invoice(1, "250.00", day(2025, 3, 14), "payment received"),
		invoice(2, "250.00", day(2025, 3, 14), "payment received"),
	}

	first := scoreCandidates(txn, entities, cfg)
	require.Len(t, first, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{first[0].EntityID, first[1].EntityID, first[2].EntityID})

	for i := 0; i < 5; i++ {
		again := scoreCandidates(txn, entities, cfg)
		assert.Equal(t, first, again)
	}
}

func TestScoreCandidates_SuggestionLimit(t *testing.T) {
	cfg := DefaultScoringConfig()
	txn := creditTxn(10, "100.00", day(2025, 3, 15), "payment received")

	var entities []models.OpenEntity
	for i := int64(1); i <= 8; i++ {
		entities = append(entities, invoice(i, "100.00", day(2025, 3, 15), "payment received"))
	}

	out := scoreCandidates(txn, entities, cfg)
	assert.Len(t, out, cfg.SuggestionLimit)
	// Best candidates survive the cut: ids ascend on a full tie.
	assert.Equal(t, int64(1), out[0].EntityID)
}

func TestTextSimilarity(t *testing.T) {
	// Reference token embedded in the description.
	assert.Equal(t, 1.0, textSimilarity("Customer Payment - INV001", "INV001"))

	// Multi-token reference partially covered.
	score := textSimilarity("transfer ACME monthly", "ACME Consulting")
	assert.Greater(t, score, 0.4)
	assert.Less(t, score, 1.0)

	// Near-miss spelling still scores via the edit-distance path.
	assert.Greater(t, textSimilarity("ACMEE", "ACME"), 0.7)

	assert.Equal(t, 0.0, textSimilarity("", "INV001"))
	assert.Equal(t, 0.0, textSimilarity("payment", ""))
}

func TestLevenshteinSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, levenshteinSimilarity("abc", "abc"))
	assert.Equal(t, 0.0, levenshteinSimilarity("", "abc"))
	assert.InDelta(t, 0.75, levenshteinSimilarity("acme", "acmi"), 0.001)
}
