// backend/src/model/main_test.go
package model

import (
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/username/contaflow/src/logger"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// newTestDB opens an in-memory database with the production schema applied.
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

// newTestBusiness creates a business row and returns its id.
func newTestBusiness(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	b := &Business{Name: name}
	require.NoError(t, CreateBusiness(db, b))
	return b.ID
}
