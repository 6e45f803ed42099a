// backend/src/processors/column_mapper.go
package processors

import (
	"fmt"
	"strings"

	"github.com/username/contaflow/src/apperrors"
	"github.com/username/contaflow/src/models"
)

// ColumnMapper proposes a mapping from statement column headers to canonical
// fields using case-insensitive keyword heuristics, and validates mappings
// before they are committed to an import.
type ColumnMapper struct{}

func NewColumnMapper() *ColumnMapper { return &ColumnMapper{} }

// Keyword tables per canonical field. Order matters: exact matches are tried
// before substring matches, and earlier fields claim headers first so that
// e.g. "transaction date" is not also offered as a description column.
var fieldKeywords = []struct {
	field    models.CanonicalField
	keywords []string
}{
	{models.FieldDate, []string{"date", "data", "posted", "booking", "value date", "dt"}},
	{models.FieldDebit, []string{"debit", "dr", "withdrawal", "money out", "paid out", "debito", "saida"}},
	{models.FieldCredit, []string{"credit", "cr", "deposit", "money in", "paid in", "credito", "entrada", "amount", "valor"}},
	{models.FieldBalance, []string{"balance", "saldo", "running"}},
	{models.FieldDescription, []string{"description", "descricao", "narrative", "details", "memo", "particulars", "transaction", "reference"}},
}

// Propose infers a mapping from the header row. For synthetic headers
// (headerless PDF tables expose col0..colN) the headers carry no signal, so
// the proposal falls back to content inspection of the sample rows.
func (cm *ColumnMapper) Propose(headers []string, sampleRows []map[string]string) models.ColumnMapping {
	mapping := models.ColumnMapping{Confidence: make(map[models.CanonicalField]float64)}

	if headersAreSynthetic(headers) {
		cm.proposeFromSamples(&mapping, headers, sampleRows)
		return mapping
	}

	claimed := make(map[string]bool)
	for _, fk := range fieldKeywords {
		header, conf := bestHeaderFor(headers, fk.keywords, claimed)
		if header == "" {
			continue
		}
		claimed[header] = true
		setField(&mapping, fk.field, header, conf)
	}
	return mapping
}

// Validate checks that a mapping covers the required canonical fields:
// date, description, and at least one of debit/credit.
func (cm *ColumnMapper) Validate(m models.ColumnMapping) error {
	if m.Date == "" {
		return missingColumn(models.FieldDate)
	}
	if m.Description == "" {
		return missingColumn(models.FieldDescription)
	}
	if !m.HasAmountColumn() {
		return missingColumn(models.FieldDebit)
	}
	return nil
}

func missingColumn(field models.CanonicalField) error {
	return apperrors.Wrap(apperrors.KindValidation, apperrors.ReasonMissingRequiredColumn,
		fmt.Errorf("no column mapped for required field %q", field))
}

// bestHeaderFor returns the unclaimed header that best matches the keyword
// list: exact (case-insensitive) match wins over substring match.
func bestHeaderFor(headers []string, keywords []string, claimed map[string]bool) (string, float64) {
	for _, kw := range keywords {
		for _, h := range headers {
			if claimed[h] {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(h), kw) {
				return h, 0.95
			}
		}
	}
	for _, kw := range keywords {
		for _, h := range headers {
			if claimed[h] {
				continue
			}
			if strings.Contains(strings.ToLower(h), kw) {
				return h, 0.8
			}
		}
	}
	return "", 0
}

// proposeFromSamples inspects up to sampleLimit rows and classifies each
// column by content: date-like, numeric, or free text. Numeric columns are
// assigned debit, credit, balance in order of appearance; with a single
// numeric column the signed amount is treated as a credit column.
func (cm *ColumnMapper) proposeFromSamples(mapping *models.ColumnMapping, headers []string, sampleRows []map[string]string) {
	const sampleLimit = 10
	if len(sampleRows) > sampleLimit {
		sampleRows = sampleRows[:sampleLimit]
	}
	if len(sampleRows) == 0 {
		return
	}

	bestDateHits := 0
	var dateHeader string
	var numericHeaders []string
	var textHeader string
	bestTextLen := 0

	for _, h := range headers {
		dateHits, numericHits, textLen := 0, 0, 0
		nonEmpty := 0
		for _, row := range sampleRows {
			v := strings.TrimSpace(row[h])
			if v == "" {
				continue
			}
			nonEmpty++
			if _, err := parseStatementDate(v); err == nil {
				dateHits++
			} else if _, err := parseStatementAmount(v); err == nil {
				numericHits++
			} else {
				textLen += len(v)
			}
		}
		if nonEmpty == 0 {
			continue
		}
		if dateHits*2 > nonEmpty && dateHits > bestDateHits {
			bestDateHits = dateHits
			dateHeader = h
			continue
		}
		if numericHits*2 > nonEmpty {
			numericHeaders = append(numericHeaders, h)
			continue
		}
		if textLen > bestTextLen {
			bestTextLen = textLen
			textHeader = h
		}
	}

	if dateHeader != "" {
		setField(mapping, models.FieldDate, dateHeader, 0.6)
	}
	if textHeader != "" {
		setField(mapping, models.FieldDescription, textHeader, 0.6)
	}
	switch len(numericHeaders) {
	case 0:
	case 1:
		setField(mapping, models.FieldCredit, numericHeaders[0], 0.6)
	case 2:
		setField(mapping, models.FieldDebit, numericHeaders[0], 0.6)
		setField(mapping, models.FieldCredit, numericHeaders[1], 0.6)
	default:
		setField(mapping, models.FieldDebit, numericHeaders[0], 0.6)
		setField(mapping, models.FieldCredit, numericHeaders[1], 0.6)
		setField(mapping, models.FieldBalance, numericHeaders[len(numericHeaders)-1], 0.5)
	}
}

func headersAreSynthetic(headers []string) bool {
	for i, h := range headers {
		if h != fmt.Sprintf("col%d", i) {
			return false
		}
	}
	return len(headers) > 0
}

func setField(m *models.ColumnMapping, field models.CanonicalField, header string, conf float64) {
	switch field {
	case models.FieldDate:
		m.Date = header
	case models.FieldDescription:
		m.Description = header
	case models.FieldDebit:
		m.Debit = header
	case models.FieldCredit:
		m.Credit = header
	case models.FieldBalance:
		m.Balance = header
	}
	m.Confidence[field] = conf
}
