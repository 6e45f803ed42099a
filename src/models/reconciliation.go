// backend/src/models/reconciliation.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType is the kind of financial record a bank transaction can settle.
type EntityType string

const (
	EntityTypeInvoice EntityType = "invoice"
	EntityTypeExpense EntityType = "expense"
)

// MatchStatus is the state of one candidate match for a transaction.
// A transaction has at most one row with status matched at any time.
type MatchStatus string

const (
	MatchStatusSuggested MatchStatus = "suggested"
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusIgnored   MatchStatus = "ignored"
)

// MatchBasis breaks down how a candidate scored. Kept alongside the composite
// confidence so a reviewer can see why a suggestion ranked where it did.
type MatchBasis struct {
	AmountDelta   decimal.Decimal `json:"amount_delta"`    // |txn amount| - outstanding, absolute
	DateDeltaDays int             `json:"date_delta_days"` // |txn date - entity date| in days
	TextScore     float64         `json:"text_score"`      // token overlap / edit distance blend in [0,1]
}

// ReconciliationMatch records one candidate or confirmed pairing between a
// bank transaction and an invoice or expense.
type ReconciliationMatch struct {
	ID            int64           `json:"id,omitempty"`
	TransactionID int64           `json:"transaction_id"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      int64           `json:"entity_id"`
	Status        MatchStatus     `json:"status"`
	Confidence    float64         `json:"confidence"` // composite score in [0,1]
	Basis         MatchBasis      `json:"basis"`
	EntityRef     string          `json:"entity_ref,omitempty"` // reference text at suggestion time
	CreatedAt     time.Time       `json:"created_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// OpenEntity is the reconciliation engine's view of an unsettled invoice or
// expense, as returned by the entity provider.
type OpenEntity struct {
	ID            int64           `json:"id"`
	BusinessID    int64           `json:"business_id"`
	Type          EntityType      `json:"type"`
	Outstanding   decimal.Decimal `json:"outstanding_amount"`
	RelevantDate  time.Time       `json:"relevant_date"` // invoice due date or expense date
	ReferenceText string          `json:"reference_text"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Settlement is the notification sent to the entity provider when a match is
// confirmed: which entity was settled, for how much, and on what date.
type Settlement struct {
	EntityType EntityType      `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
}
