// backend/src/model/bank_import.go
package model

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// CreateBankImport inserts a new import in pending state and fills in the
// generated ID and timestamps.
func CreateBankImport(db DBTX, imp *models.BankImport) error {
	now := time.Now().UTC()
	imp.Status = models.ImportStatusPending
	imp.CreatedAt = now
	imp.UpdatedAt = now

	res, err := db.Exec(`
		INSERT INTO bank_imports (public_id, business_id, file_name, file_size, file_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.PublicID, imp.BusinessID, imp.FileName, imp.FileSize, string(imp.FileType), string(imp.Status), now, now,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	imp.ID, err = res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

// GetBankImportByID fetches an import scoped to its owning business.
func GetBankImportByID(db DBTX, businessID, id int64) (*models.BankImport, error) {
	return scanImport(db.QueryRow(`
		SELECT id, public_id, business_id, file_name, file_size, file_type, status,
		       mapping_json, rows_seen, rows_imported, rows_failed, fail_reason, created_at, updated_at
		FROM bank_imports WHERE id = ? AND business_id = ?`, id, businessID))
}

// GetBankImportByPublicID fetches an import by its external UUID.
func GetBankImportByPublicID(db DBTX, businessID int64, publicID string) (*models.BankImport, error) {
	return scanImport(db.QueryRow(`
		SELECT id, public_id, business_id, file_name, file_size, file_type, status,
		       mapping_json, rows_seen, rows_imported, rows_failed, fail_reason, created_at, updated_at
		FROM bank_imports WHERE public_id = ? AND business_id = ?`, publicID, businessID))
}

func scanImport(row *sql.Row) (*models.BankImport, error) {
	var imp models.BankImport
	var fileType, status string
	var mappingJSON, failReason sql.NullString
	err := row.Scan(&imp.ID, &imp.PublicID, &imp.BusinessID, &imp.FileName, &imp.FileSize, &fileType, &status,
		&mappingJSON, &imp.RowsSeen, &imp.RowsImported, &imp.RowsFailed, &failReason, &imp.CreatedAt, &imp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	imp.FileType = models.FileType(fileType)
	imp.Status = models.ImportStatus(status)
	imp.FailReason = failReason.String
	if mappingJSON.Valid && mappingJSON.String != "" {
		var m models.ColumnMapping
		if err := json.Unmarshal([]byte(mappingJSON.String), &m); err != nil {
			return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
		}
		imp.Mapping = &m
	}
	return &imp, nil
}

// TransitionImportStatus moves an import from one status to the next with a
// guarded UPDATE, so a stale caller cannot rewind or re-fire a transition.
// Transitions are validated against the forward-only lifecycle first.
func TransitionImportStatus(db DBTX, importID int64, from, to models.ImportStatus) error {
	if !from.CanTransitionTo(to) {
		return apperrors.Wrap(apperrors.KindConflict, apperrors.ReasonInvalidTransition,
			fmt.Errorf("cannot move import from %s to %s", from, to))
	}
	res, err := db.Exec(`
		UPDATE bank_imports SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), importID, string(from))
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperrors.Wrap(apperrors.KindConflict, apperrors.ReasonInvalidTransition,
			fmt.Errorf("import %d was not in status %s", importID, from))
	}
	return nil
}

// CommitImportMapping stores the resolved column mapping. The guard on
// mapping_json IS NULL makes the committed mapping immutable for the import.
func CommitImportMapping(db DBTX, importID int64, m models.ColumnMapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	res, err := db.Exec(`
		UPDATE bank_imports SET mapping_json = ?, updated_at = ?
		WHERE id = ? AND mapping_json IS NULL`,
		string(raw), time.Now().UTC(), importID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperrors.Wrap(apperrors.KindConflict, apperrors.ReasonInvalidTransition,
			fmt.Errorf("mapping already committed for import %d", importID))
	}
	return nil
}

// UpdateImportCounts records the row counters from the importing phase.
func UpdateImportCounts(db DBTX, importID int64, seen, imported, failed int) error {
	_, err := db.Exec(`
		UPDATE bank_imports SET rows_seen = ?, rows_imported = ?, rows_failed = ?, updated_at = ?
		WHERE id = ?`, seen, imported, failed, time.Now().UTC(), importID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

// FailImport marks an import failed with a structured reason code. Failure is
// terminal and reachable from any non-terminal state, so the guard only
// excludes already-terminal rows.
func FailImport(db DBTX, importID int64, reason string) error {
	_, err := db.Exec(`
		UPDATE bank_imports SET status = ?, fail_reason = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(models.ImportStatusFailed), reason, time.Now().UTC(), importID,
		string(models.ImportStatusCompleted), string(models.ImportStatusFailed))
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

// InsertRowFailures stores row-level failures in original row order.
func InsertRowFailures(db DBTX, importID int64, failures []models.RowFailure) error {
	for _, f := range failures {
		_, err := db.Exec(`
			INSERT INTO import_row_failures (import_id, row_num, reason, raw_row)
			VALUES (?, ?, ?, ?)`, importID, f.RowNum, f.Reason, f.RawRow)
		if err != nil {
			return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
		}
	}
	return nil
}

// ListRowFailures returns the recorded failures for an import, ordered by the
// original row position.
func ListRowFailures(db DBTX, importID int64) ([]models.RowFailure, error) {
	rows, err := db.Query(`
		SELECT import_id, row_num, reason, raw_row FROM import_row_failures
		WHERE import_id = ? ORDER BY row_num ASC`, importID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	defer rows.Close()

	var failures []models.RowFailure
	for rows.Next() {
		var f models.RowFailure
		if err := rows.Scan(&f.ImportID, &f.RowNum, &f.Reason, &f.RawRow); err != nil {
			return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return failures, nil
}
