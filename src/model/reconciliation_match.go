// backend/src/model/reconciliation_match.go
package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// ReplaceSuggestions atomically swaps the current suggested set for a
// transaction: previous suggested rows are deleted, the new ranked candidates
// inserted. Matched and ignored rows are untouched, so suggestion history
// never disturbs a confirmed match.
func ReplaceSuggestions(db DBTX, transactionID int64, matches []models.ReconciliationMatch) error {
	_, err := db.Exec(`
		DELETE FROM reconciliation_matches WHERE transaction_id = ? AND status = 'suggested'`, transactionID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	now := time.Now().UTC()
	for i := range matches {
		m := &matches[i]
		m.TransactionID = transactionID
		m.Status = models.MatchStatusSuggested
		m.CreatedAt = now
		res, err := db.Exec(`
			INSERT INTO reconciliation_matches
			(transaction_id, entity_type, entity_id, status, confidence, amount_delta, date_delta_days, text_score, entity_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.TransactionID, string(m.EntityType), m.EntityID, string(m.Status), m.Confidence,
			m.Basis.AmountDelta.String(), m.Basis.DateDeltaDays, m.Basis.TextScore, m.EntityRef, now,
		)
		if err != nil {
			return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
		}
		m.ID, _ = res.LastInsertId()
	}
	return nil
}

// GetMatchByID fetches one match record.
func GetMatchByID(db DBTX, id int64) (*models.ReconciliationMatch, error) {
	row := db.QueryRow(`
		SELECT id, transaction_id, entity_type, entity_id, status, confidence, amount_delta, date_delta_days, text_score, entity_ref, created_at, confirmed_at
		FROM reconciliation_matches WHERE id = ?`, id)
	return scanMatch(row)
}

// ListMatchesForTransaction returns all match records for a transaction,
// suggestions first by descending confidence.
func ListMatchesForTransaction(db DBTX, transactionID int64) ([]models.ReconciliationMatch, error) {
	rows, err := db.Query(`
		SELECT id, transaction_id, entity_type, entity_id, status, confidence, amount_delta, date_delta_days, text_score, entity_ref, created_at, confirmed_at
		FROM reconciliation_matches WHERE transaction_id = ?
		ORDER BY confidence DESC, date_delta_days ASC, entity_id ASC`, transactionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	defer rows.Close()

	var matches []models.ReconciliationMatch
	for rows.Next() {
		m, err := scanMatchRows(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return matches, nil
}

// HasMatchedRecord reports whether a transaction already has an active match.
func HasMatchedRecord(db DBTX, transactionID int64) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM reconciliation_matches WHERE transaction_id = ? AND status = 'matched'`,
		transactionID).Scan(&n)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return n > 0, nil
}

// PromoteMatch flips one suggested candidate to matched. The guard requires
// the row to still be suggested AND the transaction to have no matched row,
// which is what makes two concurrent confirms resolve to exactly one winner
// when run inside the ledger's transaction.
func PromoteMatch(db DBTX, transactionID, matchID int64) error {
	now := time.Now().UTC()
	res, err := db.Exec(`
		UPDATE reconciliation_matches SET status = 'matched', confirmed_at = ?
		WHERE id = ? AND transaction_id = ? AND status = 'suggested'
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliation_matches m2
			WHERE m2.transaction_id = ? AND m2.status = 'matched')`,
		now, matchID, transactionID, transactionID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperrors.ErrAlreadyMatched
	}
	return nil
}

// DiscardSiblingSuggestions marks every other suggestion for the transaction
// ignored once one candidate is confirmed.
func DiscardSiblingSuggestions(db DBTX, transactionID, keepMatchID int64) error {
	_, err := db.Exec(`
		UPDATE reconciliation_matches SET status = 'ignored'
		WHERE transaction_id = ? AND id != ? AND status = 'suggested'`, transactionID, keepMatchID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

// DeleteMatchedRecord reverts a confirmed match: the matched row is removed
// entirely so the transaction carries no match record. Old suggestions are not
// resurrected.
func DeleteMatchedRecord(db DBTX, transactionID int64) (bool, error) {
	res, err := db.Exec(`
		DELETE FROM reconciliation_matches WHERE transaction_id = ? AND status = 'matched'`, transactionID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// IgnoreSuggestions marks all current suggestions for a transaction ignored.
func IgnoreSuggestions(db DBTX, transactionID int64) error {
	_, err := db.Exec(`
		UPDATE reconciliation_matches SET status = 'ignored'
		WHERE transaction_id = ? AND status = 'suggested'`, transactionID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

func scanMatch(row *sql.Row) (*models.ReconciliationMatch, error) {
	var m models.ReconciliationMatch
	var entityType, status, amountDelta string
	var confirmedAt sql.NullTime
	err := row.Scan(&m.ID, &m.TransactionID, &entityType, &m.EntityID, &status, &m.Confidence,
		&amountDelta, &m.Basis.DateDeltaDays, &m.Basis.TextScore, &m.EntityRef, &m.CreatedAt, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	if err := fillMatch(&m, entityType, status, amountDelta, confirmedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMatchRows(rows *sql.Rows) (models.ReconciliationMatch, error) {
	var m models.ReconciliationMatch
	var entityType, status, amountDelta string
	var confirmedAt sql.NullTime
	err := rows.Scan(&m.ID, &m.TransactionID, &entityType, &m.EntityID, &status, &m.Confidence,
		&amountDelta, &m.Basis.DateDeltaDays, &m.Basis.TextScore, &m.EntityRef, &m.CreatedAt, &confirmedAt)
	if err != nil {
		return m, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	if err := fillMatch(&m, entityType, status, amountDelta, confirmedAt); err != nil {
		return m, err
	}
	return m, nil
}

func fillMatch(m *models.ReconciliationMatch, entityType, status, amountDelta string, confirmedAt sql.NullTime) error {
	m.EntityType = models.EntityType(entityType)
	m.Status = models.MatchStatus(status)
	delta, err := decimal.NewFromString(amountDelta)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	m.Basis.AmountDelta = delta
	if confirmedAt.Valid {
		t := confirmedAt.Time
		m.ConfirmedAt = &t
	}
	return nil
}
