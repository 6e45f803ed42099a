// backend/src/services/import_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/logger"
	"github.com/username/contaflow/src/model"
	"github.com/username/contaflow/src/models"
	"github.com/username/contaflow/src/parsers"
	"github.com/username/contaflow/src/processors"
)

const (
	// Decoded rows for imports paused in mapping state are held in-process.
	// An abandoned import is failed when the caller returns after expiry;
	// the retry path is always a new import.
	pendingRowsExpiration = 30 * time.Minute
	pendingRowsCleanup    = 10 * time.Minute
)

type pendingImport struct {
	header []string
	rows   []map[string]string
}

type importServiceImpl struct {
	db          *sql.DB
	mapper      *processors.ColumnMapper
	normalizer  *processors.RowNormalizer
	pendingRows *cache.Cache
}

func NewImportService(db *sql.DB, mapper *processors.ColumnMapper, normalizer *processors.RowNormalizer) ImportService {
	return &importServiceImpl{
		db:          db,
		mapper:      mapper,
		normalizer:  normalizer,
		pendingRows: cache.New(pendingRowsExpiration, pendingRowsCleanup),
	}
}

func (s *importServiceImpl) ProcessUpload(ctx context.Context, businessID int64, fileName string, fileType models.FileType, fileSize int64, r io.Reader) (*ImportSummary, error) {
	startTime := time.Now()
	logger.L.Info("ProcessUpload START", "businessID", businessID, "fileName", fileName, "fileType", fileType)

	if _, err := model.GetBusinessByID(s.db, businessID); err != nil {
		return nil, err
	}

	imp := &models.BankImport{
		PublicID:   uuid.NewString(),
		BusinessID: businessID,
		FileName:   fileName,
		FileSize:   fileSize,
		FileType:   fileType,
	}
	if err := model.CreateBankImport(s.db, imp); err != nil {
		return nil, err
	}

	// pending -> parsing: raw bytes are in hand.
	if err := model.TransitionImportStatus(s.db, imp.ID, models.ImportStatusPending, models.ImportStatusParsing); err != nil {
		return nil, err
	}
	imp.Status = models.ImportStatusParsing

	decoder, err := parsers.GetDecoder(fileType)
	if err != nil {
		return s.failImport(imp, apperrors.ReasonUnparsableFile, err)
	}
	header, rows, err := decoder.Decode(r)
	if err != nil {
		reason := apperrors.ReasonOf(err)
		if reason == "" {
			reason = apperrors.ReasonUnparsableFile
		}
		return s.failImport(imp, reason, err)
	}
	if len(rows) == 0 {
		return s.failImport(imp, apperrors.ReasonEmptyFile, fmt.Errorf("%w: no data rows", ErrDecodingFailed))
	}

	// parsing -> mapping: header and sample rows extracted.
	if err := model.TransitionImportStatus(s.db, imp.ID, models.ImportStatusParsing, models.ImportStatusMapping); err != nil {
		return nil, err
	}
	imp.Status = models.ImportStatusMapping

	proposal := s.mapper.Propose(header, rows)
	if err := s.mapper.Validate(proposal); err != nil {
		// Pipeline pauses in mapping state; caller corrects via SupplyMapping.
		s.pendingRows.Set(imp.PublicID, &pendingImport{header: header, rows: rows}, cache.DefaultExpiration)
		logger.L.Info("Mapping needs caller input", "importID", imp.ID, "error", err)
		return &ImportSummary{Import: *imp, ProposedMapping: &proposal}, nil
	}

	return s.runImportPhase(imp, proposal, rows, startTime)
}

func (s *importServiceImpl) SupplyMapping(ctx context.Context, businessID int64, importPublicID string, mapping models.ColumnMapping) (*ImportSummary, error) {
	imp, err := model.GetBankImportByPublicID(s.db, businessID, importPublicID)
	if err != nil {
		return nil, err
	}
	if imp.Status != models.ImportStatusMapping {
		return nil, apperrors.Wrap(apperrors.KindConflict, apperrors.ReasonInvalidTransition,
			fmt.Errorf("import %s is in status %s, not mapping", importPublicID, imp.Status))
	}
	if err := s.mapper.Validate(mapping); err != nil {
		return nil, err
	}
	if mapping.Confidence == nil {
		// Caller-approved mappings are authoritative.
		mapping.Confidence = map[models.CanonicalField]float64{
			models.FieldDate: 1.0, models.FieldDescription: 1.0, models.FieldDebit: 1.0, models.FieldCredit: 1.0,
		}
	}

	cached, found := s.pendingRows.Get(imp.PublicID)
	if !found {
		// Decoded rows expired while the import sat in mapping state. The
		// import still reaches a terminal state; the caller retries with a
		// fresh upload.
		return s.failImport(imp, apperrors.ReasonUnparsableFile,
			fmt.Errorf("decoded rows for import %s no longer available", importPublicID))
	}
	pending := cached.(*pendingImport)
	return s.runImportPhase(imp, mapping, pending.rows, time.Now())
}

func (s *importServiceImpl) GetImportSummary(ctx context.Context, businessID int64, importPublicID string, withFailures bool) (*ImportSummary, error) {
	imp, err := model.GetBankImportByPublicID(s.db, businessID, importPublicID)
	if err != nil {
		return nil, err
	}
	summary := &ImportSummary{Import: *imp}
	if withFailures {
		failures, err := model.ListRowFailures(s.db, imp.ID)
		if err != nil {
			return nil, err
		}
		summary.RowFailures = failures
	}
	return summary, nil
}

// runImportPhase commits the mapping, normalizes every row in original order
// and stores the batch. Row-level failures are recorded, never fatal; the
// import fails only when nothing at all could be imported.
func (s *importServiceImpl) runImportPhase(imp *models.BankImport, mapping models.ColumnMapping, rows []map[string]string, startTime time.Time) (*ImportSummary, error) {
	if err := model.CommitImportMapping(s.db, imp.ID, mapping); err != nil {
		return nil, err
	}
	if err := model.TransitionImportStatus(s.db, imp.ID, models.ImportStatusMapping, models.ImportStatusImporting); err != nil {
		return nil, err
	}
	imp.Status = models.ImportStatusImporting
	imp.Mapping = &mapping
	s.pendingRows.Delete(imp.PublicID)

	var normalized []models.NormalizedRow
	var failures []models.RowFailure
	for i, row := range rows {
		rowNum := i + 1
		nr, skip, err := s.normalizer.Normalize(rowNum, row, mapping)
		if err != nil {
			failures = append(failures, models.RowFailure{
				ImportID: imp.ID,
				RowNum:   rowNum,
				Reason:   apperrors.ReasonOf(err),
				RawRow:   rawRowString(row),
			})
			continue
		}
		if skip {
			continue
		}
		normalized = append(normalized, nr)
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return s.failImport(imp, apperrors.ReasonStorageFailure, err)
	}
	defer dbTx.Rollback()

	inserted, skippedDup, err := model.InsertTransactionsBatch(dbTx, imp.BusinessID, imp.ID, normalized)
	if err != nil {
		return s.failImport(imp, apperrors.ReasonStorageFailure, err)
	}
	if err := model.InsertRowFailures(dbTx, imp.ID, failures); err != nil {
		return s.failImport(imp, apperrors.ReasonStorageFailure, err)
	}
	if err := dbTx.Commit(); err != nil {
		return s.failImport(imp, apperrors.ReasonStorageFailure, err)
	}

	imp.RowsSeen = len(rows)
	imp.RowsImported = inserted + skippedDup
	imp.RowsFailed = len(failures)
	if err := model.UpdateImportCounts(s.db, imp.ID, imp.RowsSeen, imp.RowsImported, imp.RowsFailed); err != nil {
		return nil, err
	}

	if imp.RowsImported == 0 {
		// Completed-with-zero-rows is indistinguishable from a broken mapping
		// to the caller, so it is a failure with its own reason code.
		return s.failImport(imp, apperrors.ReasonNoTransactionsImported,
			fmt.Errorf("all %d rows failed or were skipped", imp.RowsSeen))
	}

	if err := model.TransitionImportStatus(s.db, imp.ID, models.ImportStatusImporting, models.ImportStatusCompleted); err != nil {
		return nil, err
	}
	imp.Status = models.ImportStatusCompleted

	logger.L.Info("ProcessUpload END", "importID", imp.ID,
		"rowsSeen", imp.RowsSeen, "rowsImported", imp.RowsImported, "rowsFailed", imp.RowsFailed,
		"duplicatesSkipped", skippedDup, "duration", time.Since(startTime))
	return &ImportSummary{Import: *imp, RowFailures: failures, DuplicatesSkipped: skippedDup}, nil
}

// failImport drives the import to terminal failed state with a structured
// reason code. The underlying error is logged, never surfaced.
func (s *importServiceImpl) failImport(imp *models.BankImport, reason string, cause error) (*ImportSummary, error) {
	logger.L.Error("Import failed", "importID", imp.ID, "reason", reason, "error", cause)
	s.pendingRows.Delete(imp.PublicID)
	if err := model.FailImport(s.db, imp.ID, reason); err != nil {
		return nil, err
	}
	imp.Status = models.ImportStatusFailed
	imp.FailReason = reason
	return &ImportSummary{Import: *imp}, nil
}

func rawRowString(row map[string]string) string {
	parts := make([]string, 0, len(row))
	for k, v := range row {
		parts = append(parts, k+"="+v)
	}
	// Deterministic order for stable test assertions and diffable logs.
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
