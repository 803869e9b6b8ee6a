package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
	AccountClosed  AccountStatus = "closed"
)

// DepositAccount is the customer's sole transactable account. The balance
// never goes negative through transfers; only mandatory fees may overdraw
// it. Transactions is append-only and includes rejected attempts.
type DepositAccount struct {
	AccountID    string          `json:"account_id"`
	CustomerID   string          `json:"customer_id"`
	Balance      decimal.Decimal `json:"balance"`
	Status       AccountStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	LastFeeDate  time.Time       `json:"last_fee_date"`
	Transactions []Transaction   `json:"transactions"`
}

// Append records a transaction against the account history. Records are
// immutable once appended.
func (a *DepositAccount) Append(tx Transaction) {
	a.Transactions = append(a.Transactions, tx)
}
