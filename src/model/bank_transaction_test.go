// backend/src/model/bank_transaction_test.go
package model

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

func normalizedRow(rowNum int, date, description, amount string) models.NormalizedRow {
	d, _ := time.Parse("2006-01-02", date)
	return models.NormalizedRow{
		RowNum:      rowNum,
		Date:        d,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Fingerprint: fmt.Sprintf("fp-%s-%s-%s-%d", date, description, amount, rowNum),
	}
}

func TestInsertTransactionsBatch_SkipsDuplicatesWithinImport(t *testing.T) {
	db := newTestDB(t)
	businessID := newTestBusiness(t, db, "Acme Lda")
	imp := newTestImport(t, db, businessID)

	batch := []models.NormalizedRow{
		normalizedRow(1, "2025-03-15", "Rent", "-850"),
		normalizedRow(2, "2025-03-16", "Customer Payment - INV001", "5000"),
	}

	inserted, skipped, err := InsertTransactionsBatch(db, businessID, imp.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, skipped)

	// Re-running the same batch is idempotent.
	inserted, skipped, err = InsertTransactionsBatch(db, businessID, imp.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, skipped)

	n, err := CountTransactionsForImport(db, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertTransactionsBatch_CrossImportDuplicatesAllowed(t *testing.T) {
	db := newTestDB(t)
	businessID := newTestBusiness(t, db, "Acme Lda")
	impA := newTestImport(t, db, businessID)
	impB := newTestImport(t, db, businessID)

	batch := []models.NormalizedRow{normalizedRow(1, "2025-03-15", "Rent", "-850")}

	inserted, _, err := InsertTransactionsBatch(db, businessID, impA.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	// The same fingerprint in a different import is a legitimate new row; a
	// genuinely recurring payment looks identical month to month.
	inserted, skipped, err := InsertTransactionsBatch(db, businessID, impB.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, skipped)
}

func TestGetTransactionByID_BusinessScoped(t *testing.T) {
	db := newTestDB(t)
	owner := newTestBusiness(t, db, "Owner")
	other := newTestBusiness(t, db, "Other")
	imp := newTestImport(t, db, owner)

	_, _, err := InsertTransactionsBatch(db, owner, imp.ID, []models.NormalizedRow{
		normalizedRow(1, "2025-03-15", "Rent", "-850"),
	})
	require.NoError(t, err)
	id := lastTransactionID(t, db)

	got, err := GetTransactionByID(db, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "-850", got.Amount.String())
	assert.True(t, got.IsDebit())

	_, err = GetTransactionByID(db, other, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListUnmatchedTransactions_OrderingAndFilters(t *testing.T) {
	db := newTestDB(t)
	businessID := newTestBusiness(t, db, "Acme Lda")
	imp := newTestImport(t, db, businessID)

	_, _, err := InsertTransactionsBatch(db, businessID, imp.ID, []models.NormalizedRow{
		normalizedRow(1, "2025-03-20", "Later", "10"),
		normalizedRow(2, "2025-03-10", "Earlier", "20"),
		normalizedRow(3, "2025-03-10", "Earlier same day", "30"),
	})
	require.NoError(t, err)

	txns, err := ListUnmatchedTransactions(db, businessID, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	// Date ascending, id ascending within the same day.
	assert.Equal(t, "Earlier", txns[0].Description)
	assert.Equal(t, "Earlier same day", txns[1].Description)
	assert.Equal(t, "Later", txns[2].Description)

	from, _ := time.Parse("2006-01-02", "2025-03-15")
	txns, err = ListUnmatchedTransactions(db, businessID, TransactionFilter{From: from})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Later", txns[0].Description)

	txns, err = ListUnmatchedTransactions(db, businessID, TransactionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, txns, 2)

	txns, err = ListUnmatchedTransactions(db, businessID, TransactionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestListUnmatchedTransactions_ExcludesMatchedAndIgnored(t *testing.T) {
	db := newTestDB(t)
	businessID := newTestBusiness(t, db, "Acme Lda")
	imp := newTestImport(t, db, businessID)

	_, _, err := InsertTransactionsBatch(db, businessID, imp.ID, []models.NormalizedRow{
		normalizedRow(1, "2025-03-10", "Will be matched", "10"),
		normalizedRow(2, "2025-03-11", "Will be ignored", "20"),
		normalizedRow(3, "2025-03-12", "Stays unmatched", "30"),
	})
	require.NoError(t, err)

	txns, err := ListUnmatchedTransactions(db, businessID, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	matchedID, ignoredID := txns[0].ID, txns[1].ID

	require.NoError(t, ReplaceSuggestions(db, matchedID, []models.ReconciliationMatch{
		suggestion(matchedID, models.EntityTypeInvoice, 1, 0.9),
	}))
	matches, err := ListMatchesForTransaction(db, matchedID)
	require.NoError(t, err)
	require.NoError(t, PromoteMatch(db, matchedID, matches[0].ID))

	require.NoError(t, ReplaceSuggestions(db, ignoredID, []models.ReconciliationMatch{
		suggestion(ignoredID, models.EntityTypeInvoice, 2, 0.5),
	}))
	require.NoError(t, IgnoreSuggestions(db, ignoredID))

	txns, err = ListUnmatchedTransactions(db, businessID, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Stays unmatched", txns[0].Description)

	// include_ignored brings back the ignored transaction but never the matched one.
	txns, err = ListUnmatchedTransactions(db, businessID, TransactionFilter{IncludeIgnored: true})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Will be ignored", txns[0].Description)

	// A fresh suggestion reactivates the ignored transaction in the default listing.
	require.NoError(t, ReplaceSuggestions(db, ignoredID, []models.ReconciliationMatch{
		suggestion(ignoredID, models.EntityTypeInvoice, 3, 0.6),
	}))
	txns, err = ListUnmatchedTransactions(db, businessID, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func lastTransactionID(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRow(`SELECT MAX(id) FROM bank_transactions`).Scan(&id))
	return id
}
