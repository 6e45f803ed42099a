// backend/src/parsers/parsers_test.go
package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

func TestGetDecoder(t *testing.T) {
	d, err := GetDecoder(models.FileTypeCSV)
	require.NoError(t, err)
	assert.Equal(t, models.FileTypeCSV, d.FileType())

	d, err = GetDecoder(models.FileTypePDF)
	require.NoError(t, err)
	assert.Equal(t, models.FileTypePDF, d.FileType())

	_, err = GetDecoder(models.FileType("xlsx"))
	assert.Error(t, err)
}

func TestCSVDecoder_CommaSeparated(t *testing.T) {
	input := "Date,Description,Debit,Credit\n" +
		"15-03-2025,Office rent,850.00,\n" +
		"16-03-2025,Customer Payment - INV001,,5000.00\n"

	d := &CSVDecoder{}
	header, rows, err := d.Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Description", "Debit", "Credit"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "Office rent", rows[0]["Description"])
	assert.Equal(t, "850.00", rows[0]["Debit"])
	assert.Equal(t, "5000.00", rows[1]["Credit"])
}

func TestCSVDecoder_SemicolonSniffed(t *testing.T) {
	input := "Data;Descricao;Debito;Credito\n" +
		"15-03-2025;Renda do escritorio;1.234,56;\n"

	d := &CSVDecoder{}
	header, rows, err := d.Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Data", "Descricao", "Debito", "Credito"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "1.234,56", rows[0]["Debito"])
}

func TestCSVDecoder_ShortRowsPadded(t *testing.T) {
	input := "Date,Description,Amount\n15-03-2025,Fee\n"

	d := &CSVDecoder{}
	_, rows, err := d.Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["Amount"])
}

func TestCSVDecoder_EmptyInput(t *testing.T) {
	d := &CSVDecoder{}
	_, _, err := d.Decode(strings.NewReader("   \n  "))
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonEmptyFile, apperrors.ReasonOf(err))
}

func TestTextTableDecoder_SyntheticHeaders(t *testing.T) {
	input := "15-03-2025   Customer Payment - INV001    5000.00   12500.00\n" +
		"\n" +
		"16-03-2025   Monthly account fee\t4.00   12496.00\n"

	d := &TextTableDecoder{}
	header, rows, err := d.Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"col0", "col1", "col2", "col3"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "15-03-2025", rows[0]["col0"])
	assert.Equal(t, "Customer Payment - INV001", rows[0]["col1"])
	assert.Equal(t, "5000.00", rows[0]["col2"])
	assert.Equal(t, "4.00", rows[1]["col2"])
}

func TestTextTableDecoder_SingleColumnRejected(t *testing.T) {
	d := &TextTableDecoder{}
	_, _, err := d.Decode(strings.NewReader("just one column of prose\n"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonUnparsableFile, apperrors.ReasonOf(err))
}

func TestTextTableDecoder_Empty(t *testing.T) {
	d := &TextTableDecoder{}
	_, _, err := d.Decode(strings.NewReader("\n\n"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonEmptyFile, apperrors.ReasonOf(err))
}
