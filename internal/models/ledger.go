package models

import "github.com/shopspring/decimal"

// BookName identifies one of the bank's own balance accounts. The set is
// fixed; the ledger refuses postings against anything else.
type BookName string

const (
	CustomerLiabilities BookName = "customer_liabilities"
	CentralBankAssets   BookName = "central_bank_assets"
	CreditAssets        BookName = "credit_assets"
	Income              BookName = "income"
)

// BookNames lists every ledger book, in snapshot order.
var BookNames = []BookName{CustomerLiabilities, CentralBankAssets, CreditAssets, Income}

// Posting is one signed delta against a ledger book. Postings are only
// ever applied in balanced sets.
type Posting struct {
	Book  BookName        `json:"book"`
	Delta decimal.Decimal `json:"delta"`
}

// LedgerSnapshot is the persisted shape of the bank's books.
type LedgerSnapshot map[BookName]decimal.Decimal

// StateChange groups the records one operation mutates. A store persists
// every non-nil field of a change together: either all of them become
// durable or none does.
type StateChange struct {
	Account *DepositAccount
	Credit  *CreditAccount
	Ledger  LedgerSnapshot
}
