// backend/src/services/main_test.go
package services

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/model"
	"github.com/username/contaflow/src/models"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(on)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../db/migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func newTestBusiness(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	b := &model.Business{Name: "Acme Lda"}
	require.NoError(t, model.CreateBusiness(db, b))
	return b.ID
}

func seedEntity(t *testing.T, db *sql.DB, businessID int64, entityType models.EntityType, outstanding, date, ref string) *models.OpenEntity {
	t.Helper()
	e := &models.OpenEntity{
		BusinessID:    businessID,
		Type:          entityType,
		Outstanding:   decimal.RequireFromString(outstanding),
		RelevantDate:  mustDate(t, date),
		ReferenceText: ref,
	}
	require.NoError(t, model.CreateOpenEntity(db, e))
	return e
}

func seedTransaction(t *testing.T, db *sql.DB, businessID int64, amount, date, description string) int64 {
	t.Helper()
	imp := &models.BankImport{
		PublicID:   uuid.NewString(),
		BusinessID: businessID,
		FileName:   "seed.csv",
		FileType:   models.FileTypeCSV,
	}
	require.NoError(t, model.CreateBankImport(db, imp))

	row := models.NormalizedRow{
		RowNum:      1,
		Date:        mustDate(t, date),
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Fingerprint: uuid.NewString(),
	}
	_, _, err := model.InsertTransactionsBatch(db, businessID, imp.ID, []models.NormalizedRow{row})
	require.NoError(t, err)

	var id int64
	require.NoError(t, db.QueryRow(`SELECT MAX(id) FROM bank_transactions`).Scan(&id))
	return id
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return parsed
}
