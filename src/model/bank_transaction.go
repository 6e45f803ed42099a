// backend/src/model/bank_transaction.go
package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/models"
)

// InsertTransactionsBatch stores normalized rows for an import. Duplicate
// fingerprints within the same (business, import) are skipped, not errors:
// re-running the importing phase over the same rows is idempotent.
// Cross-import duplicates are intentionally allowed.
func InsertTransactionsBatch(db DBTX, businessID, importID int64, rows []models.NormalizedRow) (inserted, skippedDuplicate int, err error) {
	now := time.Now().UTC()
	for _, r := range rows {
		var balance any
		if r.Balance != nil {
			balance = r.Balance.String()
		}
		_, execErr := db.Exec(`
			INSERT INTO bank_transactions (business_id, import_id, txn_date, description, amount, balance, fingerprint, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			businessID, importID, r.Date.Format("2006-01-02"), r.Description, r.Amount.String(), balance, r.Fingerprint, now,
		)
		if execErr != nil {
			if strings.Contains(strings.ToLower(execErr.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on import", "importID", importID, "fingerprint", r.Fingerprint)
				skippedDuplicate++
				continue
			}
			return inserted, skippedDuplicate,
				apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, execErr)
		}
		inserted++
	}
	return inserted, skippedDuplicate, nil
}

// TransactionFilter narrows ListUnmatchedTransactions. Zero values mean "no
// constraint"; Limit defaults to 50.
type TransactionFilter struct {
	From           time.Time
	To             time.Time
	IncludeIgnored bool
	Limit          int
	Offset         int
}

// ListUnmatchedTransactions returns transactions with no active match for a
// business, ordered by transaction date ascending then id. Ignored
// transactions (all current suggestions marked ignored, none re-suggested)
// are excluded unless explicitly requested.
func ListUnmatchedTransactions(db DBTX, businessID int64, f TransactionFilter) ([]models.BankTransaction, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := `
		SELECT t.id, t.business_id, t.import_id, t.txn_date, t.description, t.amount, t.balance, t.fingerprint, t.created_at
		FROM bank_transactions t
		WHERE t.business_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM reconciliation_matches m
			WHERE m.transaction_id = t.id AND m.status = 'matched')`
	args := []any{businessID}

	if !f.IncludeIgnored {
		query += `
		  AND NOT (
			EXISTS (SELECT 1 FROM reconciliation_matches m WHERE m.transaction_id = t.id AND m.status = 'ignored')
			AND NOT EXISTS (SELECT 1 FROM reconciliation_matches m WHERE m.transaction_id = t.id AND m.status = 'suggested'))`
	}
	if !f.From.IsZero() {
		query += ` AND t.txn_date >= ?`
		args = append(args, f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		query += ` AND t.txn_date <= ?`
		args = append(args, f.To.Format("2006-01-02"))
	}
	query += ` ORDER BY t.txn_date ASC, t.id ASC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	defer rows.Close()

	var txns []models.BankTransaction
	for rows.Next() {
		txn, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return txns, nil
}

// GetTransactionByID fetches a transaction scoped to its owning business.
func GetTransactionByID(db DBTX, businessID, id int64) (*models.BankTransaction, error) {
	row := db.QueryRow(`
		SELECT id, business_id, import_id, txn_date, description, amount, balance, fingerprint, created_at
		FROM bank_transactions WHERE id = ? AND business_id = ?`, id, businessID)

	var txn models.BankTransaction
	var dateStr, amountStr string
	var balanceStr sql.NullString
	err := row.Scan(&txn.ID, &txn.BusinessID, &txn.ImportID, &dateStr, &txn.Description, &amountStr, &balanceStr, &txn.Fingerprint, &txn.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	if err := fillTransaction(&txn, dateStr, amountStr, balanceStr); err != nil {
		return nil, err
	}
	return &txn, nil
}

// CountTransactionsForImport reports how many rows an import produced.
func CountTransactionsForImport(db DBTX, importID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM bank_transactions WHERE import_id = ?`, importID).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return n, nil
}

func scanTransactionRows(rows *sql.Rows) (models.BankTransaction, error) {
	var txn models.BankTransaction
	var dateStr, amountStr string
	var balanceStr sql.NullString
	if err := rows.Scan(&txn.ID, &txn.BusinessID, &txn.ImportID, &dateStr, &txn.Description, &amountStr, &balanceStr, &txn.Fingerprint, &txn.CreatedAt); err != nil {
		return txn, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	if err := fillTransaction(&txn, dateStr, amountStr, balanceStr); err != nil {
		return txn, err
	}
	return txn, nil
}

func fillTransaction(txn *models.BankTransaction, dateStr, amountStr string, balanceStr sql.NullString) error {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	txn.Date = date
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	txn.Amount = amount
	if balanceStr.Valid {
		b, err := decimal.NewFromString(balanceStr.String)
		if err != nil {
			return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
		}
		txn.Balance = &b
	}
	return nil
}
