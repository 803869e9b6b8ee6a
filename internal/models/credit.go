package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditStatus string

const (
	CreditInactive   CreditStatus = "inactive"
	CreditActive     CreditStatus = "active"
	CreditBlocked    CreditStatus = "blocked"
	CreditPaidOff    CreditStatus = "paid_off"
	CreditWrittenOff CreditStatus = "written_off"
)

// ScheduleEntry is one row of a fixed-payment amortization schedule.
type ScheduleEntry struct {
	Month     int             `json:"month"`
	Payment   decimal.Decimal `json:"payment"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Remaining decimal.Decimal `json:"remaining"`
}

// CreditAccount is the per-customer receivable. It is created inert
// alongside the deposit account and only carries a balance between
// issuance and paid_off/written_off. While blocked, the balance includes
// accrued penalty interest; PenaltyAccrued tracks that portion so the
// ledger can keep the principal receivable separate from unrealized
// penalties.
type CreditAccount struct {
	AccountID         string          `json:"account_id"`
	CustomerID        string          `json:"customer_id"`
	Balance           decimal.Decimal `json:"balance"`
	Status            CreditStatus    `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	StartDate         *time.Time      `json:"credit_start_date,omitempty"`
	EndDate           *time.Time      `json:"credit_end_date,omitempty"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	MonthlyPayment    decimal.Decimal `json:"monthly_payment"`
	MonthlyRate       decimal.Decimal `json:"monthly_rate"`
	RemainingPayments int             `json:"remaining_payments"`
	Schedule          []ScheduleEntry `json:"amortization_schedule"`
	MissedPayments    int             `json:"missed_payments_count"`
	PenaltyAccrued    decimal.Decimal `json:"penalty_accrued"`
	// Idempotency markers for periodic processing.
	LastCollectionPeriod string        `json:"last_collection_period,omitempty"` // YYYY-MM
	LastPenaltyDate      string        `json:"last_penalty_date,omitempty"`      // YYYY-MM-DD
	WriteOffDate         *time.Time    `json:"write_off_date,omitempty"`
	Transactions         []Transaction `json:"transactions"`
}

// PrincipalOutstanding is the balance net of unrealized penalty interest.
// This is the portion carried on the ledger as credit_assets.
func (c *CreditAccount) PrincipalOutstanding() decimal.Decimal {
	return c.Balance.Sub(c.PenaltyAccrued)
}

// NextScheduleEntry returns the schedule row for the next due installment,
// or false when the schedule is exhausted.
func (c *CreditAccount) NextScheduleEntry() (ScheduleEntry, bool) {
	idx := len(c.Schedule) - c.RemainingPayments
	if idx < 0 || idx >= len(c.Schedule) {
		return ScheduleEntry{}, false
	}
	return c.Schedule[idx], true
}

// Append records a transaction against the credit history.
func (c *CreditAccount) Append(tx Transaction) {
	c.Transactions = append(c.Transactions, tx)
}
