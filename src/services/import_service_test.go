// backend/src/services/import_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
	"github.com/username/contaflow/src/processors"
)

const statementCSV = "Date,Description,Debit,Credit\n" +
	"15-03-2025,Office rent,850.00,\n" +
	"16-03-2025,Customer Payment - INV001,,5000.00\n" +
	"17-03-2025,Bank fee,4.00,\n" +
	"not-a-date,Mystery line,10.00,\n" +
	"18-03-2025,Refund,,20.00\n"

func newTestImportService(t *testing.T) (ImportService, *testImportEnv) {
	t.Helper()
	db := newTestDB(t)
	businessID := newTestBusiness(t, db)
	svc := NewImportService(db, processors.NewColumnMapper(), processors.NewRowNormalizer())
	return svc, &testImportEnv{businessID: businessID}
}

type testImportEnv struct {
	businessID int64
}

func TestProcessUpload_CompletesWithRowFailures(t *testing.T) {
	svc, env := newTestImportService(t)

	summary, err := svc.ProcessUpload(context.Background(), env.businessID, "march.csv", models.FileTypeCSV, int64(len(statementCSV)), strings.NewReader(statementCSV))
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusCompleted, summary.Import.Status)
	assert.Equal(t, 5, summary.Import.RowsSeen)
	assert.Equal(t, 4, summary.Import.RowsImported)
	assert.Equal(t, 1, summary.Import.RowsFailed)
	assert.Equal(t, 0, summary.DuplicatesSkipped)
	require.Len(t, summary.RowFailures, 1)
	assert.Equal(t, 4, summary.RowFailures[0].RowNum)
	assert.Equal(t, apperrors.ReasonInvalidDate, summary.RowFailures[0].Reason)

	// The persisted record agrees with the returned summary.
	persisted, err := svc.GetImportSummary(context.Background(), env.businessID, summary.Import.PublicID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, persisted.Import.Status)
	assert.Equal(t, 4, persisted.Import.RowsImported)
	require.Len(t, persisted.RowFailures, 1)
	require.NotNil(t, persisted.Import.Mapping)
	assert.Equal(t, "Date", persisted.Import.Mapping.Date)
}

func TestProcessUpload_AllRowsFailIsTerminalFailure(t *testing.T) {
	svc, env := newTestImportService(t)

	input := "Date,Description,Debit,Credit\n" +
		"garbage,Row one,10.00,\n" +
		"also-garbage,Row two,,20.00\n"

	summary, err := svc.ProcessUpload(context.Background(), env.businessID, "bad.csv", models.FileTypeCSV, int64(len(input)), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusFailed, summary.Import.Status)
	assert.Equal(t, apperrors.ReasonNoTransactionsImported, summary.Import.FailReason)
}

func TestProcessUpload_EmptyFile(t *testing.T) {
	svc, env := newTestImportService(t)

	summary, err := svc.ProcessUpload(context.Background(), env.businessID, "empty.csv", models.FileTypeCSV, 30, strings.NewReader("Date,Description,Debit,Credit\n"))
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusFailed, summary.Import.Status)
	assert.Equal(t, apperrors.ReasonEmptyFile, summary.Import.FailReason)
}

func TestProcessUpload_UnknownBusiness(t *testing.T) {
	svc, _ := newTestImportService(t)

	_, err := svc.ProcessUpload(context.Background(), 999, "march.csv", models.FileTypeCSV, 10, strings.NewReader(statementCSV))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProcessUpload_PausesForMappingThenResumes(t *testing.T) {
	svc, env := newTestImportService(t)

	// Headers carry no recognizable signal, so the proposal cannot validate
	// and the pipeline stops in mapping state.
	input := "A,B,C\n" +
		"15-03-2025,Office rent,-850.00\n" +
		"16-03-2025,Customer Payment - INV001,5000.00\n"

	summary, err := svc.ProcessUpload(context.Background(), env.businessID, "odd.csv", models.FileTypeCSV, int64(len(input)), strings.NewReader(input))
	require.NoError(t, err)
	require.NotNil(t, summary.ProposedMapping)
	assert.Equal(t, models.ImportStatusMapping, summary.Import.Status)

	mapping := models.ColumnMapping{Date: "A", Description: "B", Credit: "C"}
	resumed, err := svc.SupplyMapping(context.Background(), env.businessID, summary.Import.PublicID, mapping)
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusCompleted, resumed.Import.Status)
	assert.Equal(t, 2, resumed.Import.RowsSeen)
	assert.Equal(t, 2, resumed.Import.RowsImported)
}

func TestSupplyMapping_RejectsWrongStatus(t *testing.T) {
	svc, env := newTestImportService(t)

	summary, err := svc.ProcessUpload(context.Background(), env.businessID, "march.csv", models.FileTypeCSV, int64(len(statementCSV)), strings.NewReader(statementCSV))
	require.NoError(t, err)
	require.Equal(t, models.ImportStatusCompleted, summary.Import.Status)

	_, err = svc.SupplyMapping(context.Background(), env.businessID, summary.Import.PublicID,
		models.ColumnMapping{Date: "Date", Description: "Description", Credit: "Credit"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonInvalidTransition, apperrors.ReasonOf(err))
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestSupplyMapping_InvalidMappingRejected(t *testing.T) {
	svc, env := newTestImportService(t)

	input := "A,B,C\n15-03-2025,Office rent,-850.00\n"
	summary, err := svc.ProcessUpload(context.Background(), env.businessID, "odd.csv", models.FileTypeCSV, int64(len(input)), strings.NewReader(input))
	require.NoError(t, err)
	require.NotNil(t, summary.ProposedMapping)

	// No amount column: the import stays paused rather than failing.
	_, err = svc.SupplyMapping(context.Background(), env.businessID, summary.Import.PublicID,
		models.ColumnMapping{Date: "A", Description: "B"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonMissingRequiredColumn, apperrors.ReasonOf(err))

	persisted, err := svc.GetImportSummary(context.Background(), env.businessID, summary.Import.PublicID, false)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusMapping, persisted.Import.Status)
}

func TestProcessUpload_RepeatUploadIsNewImport(t *testing.T) {
	svc, env := newTestImportService(t)

	first, err := svc.ProcessUpload(context.Background(), env.businessID, "march.csv", models.FileTypeCSV, int64(len(statementCSV)), strings.NewReader(statementCSV))
	require.NoError(t, err)
	require.Equal(t, models.ImportStatusCompleted, first.Import.Status)

	// Dedup is scoped per import: the same file imported again produces a new
	// import whose rows all land.
	second, err := svc.ProcessUpload(context.Background(), env.businessID, "march.csv", models.FileTypeCSV, int64(len(statementCSV)), strings.NewReader(statementCSV))
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, second.Import.Status)
	assert.NotEqual(t, first.Import.PublicID, second.Import.PublicID)
	assert.Equal(t, 4, second.Import.RowsImported)
	assert.Equal(t, 0, second.DuplicatesSkipped)
}
