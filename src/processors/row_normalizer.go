// backend/src/processors/row_normalizer.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
	"github.com/username/contaflow/src/security/validation"
)

// RowNormalizer converts one raw statement row into the canonical normalized
// tuple. It is a pure function of its inputs: normalizing the same row twice
// yields the same output, including the fingerprint.
type RowNormalizer struct{}

func NewRowNormalizer() *RowNormalizer { return &RowNormalizer{} }

// Day-first formats are tried before ISO; bank exports in our market are
// predominantly DD-MM-YYYY.
var statementDateFormats = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"2 Jan 2006",
	"02 Jan 2006",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize maps a raw row through the resolved column mapping.
// Returns skip=true for non-transaction lines (both debit and credit empty),
// and a classified error for rows that cannot be normalized. Failed rows do
// not abort the batch; the caller records them and continues.
func (rn *RowNormalizer) Normalize(rowNum int, row map[string]string, m models.ColumnMapping) (models.NormalizedRow, bool, error) {
	debitRaw := strings.TrimSpace(row[m.Debit])
	creditRaw := strings.TrimSpace(row[m.Credit])
	if m.Debit == "" {
		debitRaw = ""
	}
	if m.Credit == "" {
		creditRaw = ""
	}

	// Blank trailer rows and section headings carry no amount at all.
	if debitRaw == "" && creditRaw == "" {
		return models.NormalizedRow{}, true, nil
	}
	if debitRaw != "" && creditRaw != "" {
		return models.NormalizedRow{}, false,
			apperrors.New(apperrors.KindValidation, apperrors.ReasonAmbiguousAmount)
	}

	date, err := parseStatementDate(strings.TrimSpace(row[m.Date]))
	if err != nil {
		return models.NormalizedRow{}, false,
			apperrors.Wrap(apperrors.KindValidation, apperrors.ReasonInvalidDate, err)
	}

	var amount decimal.Decimal
	if debitRaw != "" {
		v, err := parseStatementAmount(debitRaw)
		if err != nil {
			return models.NormalizedRow{}, false,
				apperrors.Wrap(apperrors.KindValidation, apperrors.ReasonInvalidAmount, err)
		}
		amount = v.Abs().Neg()
	} else {
		v, err := parseStatementAmount(creditRaw)
		if err != nil {
			return models.NormalizedRow{}, false,
				apperrors.Wrap(apperrors.KindValidation, apperrors.ReasonInvalidAmount, err)
		}
		amount = v
	}

	var balance *decimal.Decimal
	if m.Balance != "" {
		if raw := strings.TrimSpace(row[m.Balance]); raw != "" {
			if v, err := parseStatementAmount(raw); err == nil {
				balance = &v
			}
		}
	}

	description := sanitizeDescription(row[m.Description])

	normalized := models.NormalizedRow{
		RowNum:      rowNum,
		Date:        date,
		Description: description,
		Amount:      amount,
		Balance:     balance,
	}
	normalized.Fingerprint = fingerprint(normalized)
	return normalized, false, nil
}

// sanitizeDescription strips tags and control characters and collapses
// whitespace. The text is never truncated.
func sanitizeDescription(s string) string {
	clean := validation.SanitizeText(s)
	clean = validation.StripUnprintable(clean)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(clean, " "))
}

// fingerprint hashes the normalized date, description, amount and row position.
// Uniqueness is enforced per (business, import) at the storage layer, so
// re-importing the same file into an import cannot duplicate rows.
func fingerprint(r models.NormalizedRow) string {
	input := fmt.Sprintf("%s|%s|%s|%d",
		r.Date.Format("2006-01-02"), r.Description, r.Amount.String(), r.RowNum)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

func parseStatementDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	for _, layout := range statementDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// parseStatementAmount handles the locale mess around decimal and thousand
// separators: "1.234,56", "1,234.56", "1234.56" and "1234,56" all parse.
func parseStatementAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.TrimPrefix(cleaned, "€")
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimPrefix(cleaned, "£")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount value")
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The rightmost separator is the decimal point; the other groups thousands.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// A lone comma is a decimal point when at most two digits follow it.
		if len(cleaned)-lastComma-1 <= 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable amount %q: %w", s, err)
	}
	return v, nil
}
