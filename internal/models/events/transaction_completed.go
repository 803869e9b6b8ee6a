package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCompleted is emitted for every transaction record the engine
// finalizes, completed and rejected alike, so downstream consumers can
// mirror the full audit trail.
type TransactionCompleted struct {
	TransactionID   string          `json:"transaction_id"`
	Kind            string          `json:"type"`
	Status          string          `json:"status"`
	AccountID       string          `json:"account_id,omitempty"`
	CreditAccountID string          `json:"credit_account_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
