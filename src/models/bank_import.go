// backend/src/models/bank_import.go
package models

import "time"

// FileType identifies the declared format of an uploaded statement.
type FileType string

const (
	FileTypeCSV FileType = "csv"
	FileTypePDF FileType = "pdf"
)

// ValidFileType reports whether s is a known statement format.
func ValidFileType(s string) bool {
	return s == string(FileTypeCSV) || s == string(FileTypePDF)
}

// ImportStatus is the lifecycle state of a BankImport. Transitions are strictly
// forward; failed is terminal and reachable from any non-terminal state.
type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusParsing   ImportStatus = "parsing"
	ImportStatusMapping   ImportStatus = "mapping"
	ImportStatusImporting ImportStatus = "importing"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward step.
func (s ImportStatus) CanTransitionTo(next ImportStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ImportStatusFailed {
		return true
	}
	switch s {
	case ImportStatusPending:
		return next == ImportStatusParsing
	case ImportStatusParsing:
		return next == ImportStatusMapping
	case ImportStatusMapping:
		return next == ImportStatusImporting
	case ImportStatusImporting:
		return next == ImportStatusCompleted
	}
	return false
}

// BankImport tracks one statement upload through the import pipeline.
// Retries never reset an existing import; they create a new one.
type BankImport struct {
	ID           int64         `json:"id,omitempty"`
	PublicID     string        `json:"public_id"` // UUID exposed to API callers
	BusinessID   int64         `json:"business_id"`
	FileName     string        `json:"file_name"`
	FileSize     int64         `json:"file_size"`
	FileType     FileType      `json:"file_type"`
	Status       ImportStatus  `json:"status"`
	Mapping      *ColumnMapping `json:"mapping,omitempty"` // nil until resolved
	RowsSeen     int           `json:"rows_seen"`
	RowsImported int           `json:"rows_imported"`
	RowsFailed   int           `json:"rows_failed"`
	FailReason   string        `json:"fail_reason,omitempty"` // structured reason code, never raw error text
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// RowFailure records a single row that could not be normalized. Failures are
// accumulated in original row order and reported in the import summary.
type RowFailure struct {
	ImportID int64  `json:"import_id"`
	RowNum   int    `json:"row_num"` // 1-based position in the source file
	Reason   string `json:"reason"`
	RawRow   string `json:"raw_row"`
}
