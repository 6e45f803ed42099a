// backend/src/model/db.go
package model

import "database/sql"

// DBTX is satisfied by both *sql.DB and *sql.Tx so store functions can run
// inside or outside an explicit transaction. The handle is always passed in;
// there is no package-level connection.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
