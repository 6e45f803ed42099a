// backend/src/parsers/texttable.go
package parsers

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// TextTableDecoder decodes statements that arrive as pre-extracted PDF text:
// one transaction per line, columns separated by runs of two or more spaces or
// by tabs. Such tables are headerless, so synthetic col0..colN headers are
// produced and the column mapper works from sample rows instead.
type TextTableDecoder struct{}

var columnSplitRe = regexp.MustCompile(`\t+| {2,}`)

func (d *TextTableDecoder) FileType() models.FileType { return models.FileTypePDF }

func (d *TextTableDecoder) Decode(r io.Reader) ([]string, []map[string]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines [][]string
	maxCols := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := columnSplitRe.Split(strings.TrimLeft(line, " \t"), -1)
		lines = append(lines, cols)
		if len(cols) > maxCols {
			maxCols = len(cols)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindUpstream, apperrors.ReasonUnparsableFile, err)
	}
	if len(lines) == 0 {
		return nil, nil, apperrors.New(apperrors.KindUpstream, apperrors.ReasonEmptyFile)
	}
	if maxCols < 2 {
		// A table needs at least a date and an amount column.
		return nil, nil, apperrors.New(apperrors.KindUpstream, apperrors.ReasonUnparsableFile)
	}

	header := make([]string, maxCols)
	for i := range header {
		header[i] = fmt.Sprintf("col%d", i)
	}

	rows := make([]map[string]string, 0, len(lines))
	for _, cols := range lines {
		row := make(map[string]string, maxCols)
		for i, h := range header {
			if i < len(cols) {
				row[h] = cols[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
