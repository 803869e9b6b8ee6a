package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind tags a transaction record. Each kind carries only the
// fields its constructor sets; records are never mutated after they are
// finalized with Complete or Reject.
type TransactionKind string

const (
	TxTransferOut        TransactionKind = "transfer_out"
	TxTransferIn         TransactionKind = "transfer_in"
	TxCreditDisbursement TransactionKind = "credit_disbursement"
	TxCreditFee          TransactionKind = "credit_fee"
	TxCreditRepayment    TransactionKind = "credit_repayment"
	// TxCreditPenalty records a missed scheduled collection (always
	// rejected) or a collected catch-up payment on a blocked credit.
	TxCreditPenalty   TransactionKind = "credit_penalty"
	TxInterestAccrual TransactionKind = "interest_accrual"
	TxQuarterlyFee    TransactionKind = "quarterly_fee"
	TxTimeEvent       TransactionKind = "time_event"
	TxAccountClosure  TransactionKind = "account_closure"
)

type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxRejected  TransactionStatus = "rejected"
)

// Transaction is an immutable record of one attempted balance mutation.
// Rejected attempts are recorded too, with before == after.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	Kind          TransactionKind   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Amount        decimal.Decimal   `json:"amount"`
	// AccountID is the deposit account the money moved on (or would have).
	AccountID       string `json:"account_id,omitempty"`
	CreditAccountID string `json:"credit_account_id,omitempty"`
	// CounterpartyIBAN identifies the external party of a transfer.
	CounterpartyIBAN string `json:"counterparty_iban,omitempty"`

	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`

	CreditBalanceBefore *decimal.Decimal `json:"credit_balance_before,omitempty"`
	CreditBalanceAfter  *decimal.Decimal `json:"credit_balance_after,omitempty"`

	PrincipalAmount *decimal.Decimal `json:"principal_amount,omitempty"`
	InterestAmount  *decimal.Decimal `json:"interest_amount,omitempty"`
	PenaltyAmount   *decimal.Decimal `json:"penalty_amount,omitempty"`

	Reason string `json:"reason,omitempty"`
	Note   string `json:"note,omitempty"`
}

func NewTransferOut(id, accountID, toIBAN string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID:    id,
		Kind:             TxTransferOut,
		AccountID:        accountID,
		CounterpartyIBAN: toIBAN,
		Amount:           amount,
		Timestamp:        ts,
	}
}

func NewTransferIn(id, accountID, fromIBAN string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID:    id,
		Kind:             TxTransferIn,
		AccountID:        accountID,
		CounterpartyIBAN: fromIBAN,
		Amount:           amount,
		Timestamp:        ts,
	}
}

func NewCreditDisbursement(id, accountID, creditAccountID string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID:   id,
		Kind:            TxCreditDisbursement,
		AccountID:       accountID,
		CreditAccountID: creditAccountID,
		Amount:          amount,
		Timestamp:       ts,
	}
}

func NewCreditFee(id, accountID, creditAccountID string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID:   id,
		Kind:            TxCreditFee,
		AccountID:       accountID,
		CreditAccountID: creditAccountID,
		Amount:          amount,
		Timestamp:       ts,
	}
}

// NewCreditRepayment covers scheduled, catch-up, and manual repayments.
// The principal/interest/penalty split is attached on completion via
// WithSplit.
func NewCreditRepayment(id, accountID, creditAccountID string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID:   id,
		Kind:            TxCreditRepayment,
		AccountID:       accountID,
		CreditAccountID: creditAccountID,
		Amount:          amount,
		Timestamp:       ts,
	}
}

func NewCreditPenalty(id, accountID, creditAccountID string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID:   id,
		Kind:            TxCreditPenalty,
		AccountID:       accountID,
		CreditAccountID: creditAccountID,
		Amount:          amount,
		Timestamp:       ts,
	}
}

func NewInterestAccrual(id, creditAccountID string, amount decimal.Decimal, ts time.Time, note string) Transaction {
	return Transaction{
		TransactionID:   id,
		Kind:            TxInterestAccrual,
		CreditAccountID: creditAccountID,
		Amount:          amount,
		Timestamp:       ts,
		Note:            note,
	}
}

func NewQuarterlyFee(id, accountID string, amount decimal.Decimal, ts time.Time) Transaction {
	return Transaction{
		TransactionID: id,
		Kind:          TxQuarterlyFee,
		AccountID:     accountID,
		Amount:        amount,
		Timestamp:     ts,
	}
}

// NewTimeEvent records an advance of the system clock. Amount carries
// the number of days crossed.
func NewTimeEvent(id string, days int64, ts time.Time) Transaction {
	return Transaction{
		TransactionID: id,
		Kind:          TxTimeEvent,
		Amount:        decimal.NewFromInt(days),
		Timestamp:     ts,
	}
}

func NewAccountClosure(id, accountID string, ts time.Time) Transaction {
	return Transaction{
		TransactionID: id,
		Kind:          TxAccountClosure,
		AccountID:     accountID,
		Timestamp:     ts,
	}
}

// Complete finalizes the record with the deposit-account balances around
// the mutation.
func (t Transaction) Complete(before, after decimal.Decimal) Transaction {
	t.Status = TxCompleted
	t.BalanceBefore = before
	t.BalanceAfter = after
	return t
}

// Reject finalizes the record without a balance change.
func (t Transaction) Reject(balance decimal.Decimal, reason string) Transaction {
	t.Status = TxRejected
	t.BalanceBefore = balance
	t.BalanceAfter = balance
	t.Reason = reason
	return t
}

// WithCreditBalances attaches the credit-account balances around the
// mutation.
func (t Transaction) WithCreditBalances(before, after decimal.Decimal) Transaction {
	t.CreditBalanceBefore = &before
	t.CreditBalanceAfter = &after
	return t
}

// WithSplit attaches the principal/interest/penalty decomposition of a
// repayment amount.
func (t Transaction) WithSplit(principal, interest, penalty decimal.Decimal) Transaction {
	t.PrincipalAmount = &principal
	t.InterestAmount = &interest
	if penalty.Sign() > 0 {
		t.PenaltyAmount = &penalty
	}
	return t
}
