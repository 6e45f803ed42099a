// backend/src/model/entity.go
package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// Business is the ownership boundary: every import, transaction, match and
// financial record resolves to exactly one business.
type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func CreateBusiness(db DBTX, b *Business) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	res, err := db.Exec(`INSERT INTO businesses (name, created_at) VALUES (?, ?)`, b.Name, now)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

func GetBusinessByID(db DBTX, id int64) (*Business, error) {
	var b Business
	err := db.QueryRow(`SELECT id, name, created_at FROM businesses WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return &b, nil
}

// CreateOpenEntity inserts an unsettled invoice or expense record.
func CreateOpenEntity(db DBTX, e *models.OpenEntity) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	res, err := db.Exec(`
		INSERT INTO financial_entities (business_id, entity_type, outstanding_amount, relevant_date, reference_text, settled, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		e.BusinessID, string(e.Type), e.Outstanding.String(), e.RelevantDate.Format("2006-01-02"), e.ReferenceText, e.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

// ListOpenEntities returns the business's unsettled invoices and expenses
// ordered by creation, the tie-break order the reconciliation engine relies on.
func ListOpenEntities(db DBTX, businessID int64) ([]models.OpenEntity, error) {
	rows, err := db.Query(`
		SELECT id, business_id, entity_type, outstanding_amount, relevant_date, reference_text, created_at
		FROM financial_entities WHERE business_id = ? AND settled = 0
		ORDER BY id ASC`, businessID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	defer rows.Close()

	var entities []models.OpenEntity
	for rows.Next() {
		e, err := scanEntityRows(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return entities, nil
}

// GetOpenEntity fetches one financial record regardless of settled state.
func GetOpenEntity(db DBTX, entityType models.EntityType, id int64) (*models.OpenEntity, error) {
	rows, err := db.Query(`
		SELECT id, business_id, entity_type, outstanding_amount, relevant_date, reference_text, created_at
		FROM financial_entities WHERE id = ? AND entity_type = ?`, id, string(entityType))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, apperrors.ErrNotFound
	}
	e, err := scanEntityRows(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkEntitySettled records a settlement against a financial entity: the
// settled amount is deducted from outstanding and the record closed when
// nothing remains.
func MarkEntitySettled(db DBTX, s models.Settlement) error {
	e, err := GetOpenEntity(db, s.EntityType, s.EntityID)
	if err != nil {
		return err
	}
	remaining := e.Outstanding.Sub(s.Amount.Abs())
	settled := 0
	if remaining.LessThanOrEqual(decimal.Zero) {
		remaining = decimal.Zero
		settled = 1
	}
	_, err = db.Exec(`
		UPDATE financial_entities SET outstanding_amount = ?, settled = ?, settled_at = ?
		WHERE id = ?`, remaining.String(), settled, s.Date.Format("2006-01-02"), s.EntityID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

// ReopenEntity restores outstanding amount after an unmatch.
func ReopenEntity(db DBTX, entityType models.EntityType, id int64, amount decimal.Decimal) error {
	e, err := GetOpenEntity(db, entityType, id)
	if err != nil {
		return err
	}
	restored := e.Outstanding.Add(amount.Abs())
	_, err = db.Exec(`
		UPDATE financial_entities SET outstanding_amount = ?, settled = 0, settled_at = NULL
		WHERE id = ?`, restored.String(), id)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	return nil
}

func scanEntityRows(rows *sql.Rows) (models.OpenEntity, error) {
	var e models.OpenEntity
	var entityType, amountStr, dateStr string
	if err := rows.Scan(&e.ID, &e.BusinessID, &entityType, &amountStr, &dateStr, &e.ReferenceText, &e.CreatedAt); err != nil {
		return e, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	e.Type = models.EntityType(entityType)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return e, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	e.Outstanding = amount
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return e, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonStorageFailure, err)
	}
	e.RelevantDate = date
	return e, nil
}
