// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/contaflow/src/model"
	"github.com/username/contaflow/src/models"
)

// Define common service errors
var (
	ErrDecodingFailed = errors.New("statement decoding failed")
	ErrMappingNeeded  = errors.New("column mapping could not be resolved automatically")
)

// ImportSummary reports the outcome of an import to the caller. Row-level
// failure detail is available on demand via RowFailures.
type ImportSummary struct {
	Import      models.BankImport  `json:"import"`
	RowFailures []models.RowFailure `json:"row_failures,omitempty"`
	// ProposedMapping is set when the pipeline paused in mapping state and
	// needs a caller-supplied or corrected mapping to continue.
	ProposedMapping *models.ColumnMapping `json:"proposed_mapping,omitempty"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
}

// ImportService drives a statement upload through the import pipeline:
// pending -> parsing -> mapping -> importing -> completed/failed.
type ImportService interface {
	// ProcessUpload creates a new BankImport and runs the pipeline. If the
	// proposed column mapping validates, the import runs to a terminal state;
	// otherwise it stops in mapping state and the summary carries the
	// proposal for the caller to correct via SupplyMapping.
	ProcessUpload(ctx context.Context, businessID int64, fileName string, fileType models.FileType, fileSize int64, r io.Reader) (*ImportSummary, error)

	// SupplyMapping commits a caller-approved mapping for an import waiting
	// in mapping state and resumes the pipeline to a terminal state.
	SupplyMapping(ctx context.Context, businessID int64, importPublicID string, mapping models.ColumnMapping) (*ImportSummary, error)

	// GetImportSummary returns the current state of an import, with row-level
	// failures when withFailures is set.
	GetImportSummary(ctx context.Context, businessID int64, importPublicID string, withFailures bool) (*ImportSummary, error)
}

// ReconciliationService matches imported bank transactions against open
// invoices and expenses.
type ReconciliationService interface {
	// Suggest computes ranked candidates for an unmatched transaction,
	// replacing any previous suggested rows. Calling it twice without
	// intervening state changes yields the same ordered result.
	Suggest(ctx context.Context, businessID, transactionID int64) ([]models.ReconciliationMatch, error)

	// Confirm promotes one suggested candidate to matched, discards its
	// siblings and notifies the entity provider of the settlement.
	Confirm(ctx context.Context, businessID, transactionID, matchID int64) (*models.ReconciliationMatch, error)

	// Unmatch reverts a confirmed match; the transaction ends with no match
	// record. Previous suggestions are not resurrected.
	Unmatch(ctx context.Context, businessID, transactionID int64) error

	// Ignore marks all current suggestions ignored; the transaction drops out
	// of unmatched listings unless explicitly requested.
	Ignore(ctx context.Context, businessID, transactionID int64) error

	// ListUnmatched returns unmatched transactions ordered by date ascending.
	ListUnmatched(ctx context.Context, businessID int64, filter model.TransactionFilter) ([]models.BankTransaction, error)
}

// EntityProvider is the collaborator contract for the invoice/expense side of
// reconciliation. The reconciliation engine only ever sees open entities and
// signals settlements; how paid/settled status is updated is the provider's
// concern.
type EntityProvider interface {
	OpenEntities(businessID int64) ([]models.OpenEntity, error)
	Entity(entityType models.EntityType, id int64) (*models.OpenEntity, error)
	NotifySettlement(s models.Settlement) error
	// NotifyUnsettlement reverses a previously signalled settlement after an
	// unmatch.
	NotifyUnsettlement(entityType models.EntityType, id int64, s models.Settlement) error
}
