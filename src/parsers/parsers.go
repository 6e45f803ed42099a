// backend/src/parsers/parsers.go
package parsers

import (
	"io"

	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// Decoder turns raw statement bytes into a header row plus ordered raw rows.
// Each row maps the original column header to its raw string value. Byte-level
// format handling stops here; everything downstream works on raw rows.
type Decoder interface {
	// Decode returns the header and rows, or an UnparsableFile error.
	Decode(r io.Reader) (header []string, rows []map[string]string, err error)
	// FileType reports which declared format this decoder handles.
	FileType() models.FileType
}

var registry = map[models.FileType]Decoder{
	models.FileTypeCSV: &CSVDecoder{},
	models.FileTypePDF: &TextTableDecoder{},
}

// GetDecoder returns the decoder for the declared file type.
func GetDecoder(ft models.FileType) (Decoder, error) {
	d, ok := registry[ft]
	if !ok {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.ReasonUnparsableFile)
	}
	return d, nil
}
