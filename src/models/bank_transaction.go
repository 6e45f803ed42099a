// backend/src/models/bank_transaction.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedRow is the output of row normalization: one statement row reduced
// to the canonical tuple before storage. Amount is signed (debit negative,
// credit positive).
type NormalizedRow struct {
	RowNum      int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Balance     *decimal.Decimal // nil when the statement has no balance column
	Fingerprint string           // sha256 of normalized date+description+amount+row position
}

// BankTransaction is an imported statement line. Immutable after creation
// except for its reconciliation state, which lives in ReconciliationMatch rows.
type BankTransaction struct {
	ID          int64            `json:"id,omitempty"`
	BusinessID  int64            `json:"business_id"`
	ImportID    int64            `json:"import_id"`
	Date        time.Time        `json:"date"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Fingerprint string           `json:"-"` // unique per (business, import)
	CreatedAt   time.Time        `json:"created_at"`
}

// AbsAmount returns the unsigned transaction amount.
func (t BankTransaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// IsDebit reports whether the transaction took money out of the account.
func (t BankTransaction) IsDebit() bool {
	return t.Amount.IsNegative()
}
