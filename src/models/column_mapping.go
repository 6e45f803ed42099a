// backend/src/models/column_mapping.go
package models

// CanonicalField names a field of the normalized transaction model that a
// statement column can map to.
type CanonicalField string

const (
	FieldDate        CanonicalField = "date"
	FieldDescription CanonicalField = "description"
	FieldDebit       CanonicalField = "debit"
	FieldCredit      CanonicalField = "credit"
	FieldBalance     CanonicalField = "balance"
)

// ColumnMapping maps canonical fields to source column headers. Empty string
// means the field is unmapped. Once committed to an import it is immutable
// for that import.
type ColumnMapping struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance,omitempty"`

	// Confidence holds the per-field heuristic confidence of a proposed
	// mapping in [0,1]. Caller-supplied overrides carry confidence 1.0.
	Confidence map[CanonicalField]float64 `json:"confidence,omitempty"`
}

// HasAmountColumn reports whether at least one of debit/credit is mapped.
func (m ColumnMapping) HasAmountColumn() bool {
	return m.Debit != "" || m.Credit != ""
}
