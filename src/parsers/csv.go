// backend/src/parsers/csv.go
package parsers

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// CSVDecoder decodes comma or semicolon separated statement exports.
// Banks disagree on separators; we sniff the header line.
type CSVDecoder struct{}

func (d *CSVDecoder) FileType() models.FileType { return models.FileTypeCSV }

// Decode reads the header row and all data rows. Rows shorter than the header
// are padded with empty strings so every row exposes every header key.
func (d *CSVDecoder) Decode(r io.Reader) ([]string, []map[string]string, error) {
	buffered, sep, err := sniffSeparator(r)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(buffered)
	reader.Comma = sep
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonUnparsableFile, err)
	}
	if len(records) == 0 {
		return nil, nil, apperrors.New(apperrors.KindUpstream, apperrors.ReasonEmptyFile)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// sniffSeparator peeks at the first line to choose between ',' and ';'.
// Returns a reader positioned at the start of the data.
func sniffSeparator(r io.Reader) (io.Reader, rune, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonUnparsableFile, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, 0, apperrors.New(apperrors.KindUpstream, apperrors.ReasonEmptyFile)
	}

	firstLine := string(raw)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	sep := ','
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		sep = ';'
	}
	return strings.NewReader(string(raw)), sep, nil
}
