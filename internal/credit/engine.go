// Package credit owns the credit-account lifecycle: issuance, scheduled
// monthly collection, blocking with daily penalty accrual, catch-up
// collection, write-off, and manual repayment.
//
// State machine: inactive -> active -> {blocked <-> active} ->
// {paid_off | written_off}. inactive, paid_off, and written_off are
// terminal for collection.
package credit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/amortization"
	"github.com/haifischbank/backoffice/internal/config"
	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/ledger"
	"github.com/haifischbank/backoffice/internal/models"
	"github.com/haifischbank/backoffice/internal/money"
)

var (
	ErrAccountNotFound   = errors.New("credit: account not found")
	ErrAccountNotActive  = errors.New("credit: deposit account not active")
	ErrCreditNotIssuable = errors.New("credit: credit account cannot take a new credit")
	ErrAmountOutOfRange  = errors.New("credit: amount outside credit limits")
	ErrBadAmount         = errors.New("credit: amount must be positive")
	ErrCreditNotOpen     = errors.New("credit: credit is not active or blocked")
)

// periodLayout keys monthly idempotence, dayLayout daily idempotence.
const (
	periodLayout = "2006-01"
	dayLayout    = "2006-01-02"
)

type Engine struct {
	store interfaces.Store
	books *ledger.Ledger
	ids   interfaces.IDGenerator
	cfg   config.Config
	log   *zap.Logger
}

func NewEngine(store interfaces.Store, books *ledger.Ledger, ids interfaces.IDGenerator,
	cfg config.Config, log *zap.Logger) *Engine {
	return &Engine{store: store, books: books, ids: ids, cfg: cfg, log: log}
}

// Issue activates the customer's inert credit account: validates the
// amount against the configured limits, computes the amortization
// schedule, disburses the principal into the deposit account, and then
// debits the flat credit fee. The fee is mandatory and completes even if
// it overdraws the deposit balance; the disbursement strictly precedes it.
func (e *Engine) Issue(ctx context.Context, accountID string, amount decimal.Decimal, ts time.Time) (models.Transaction, models.Transaction, error) {
	var none models.Transaction
	amount = money.Round2(amount)
	if !money.IsPositive(amount) {
		return none, none, ErrBadAmount
	}
	if amount.LessThan(e.cfg.MinCredit) || amount.GreaterThan(e.cfg.MaxCredit) {
		return none, none, fmt.Errorf("%w: %s not in [%s, %s]",
			ErrAmountOutOfRange, amount, e.cfg.MinCredit, e.cfg.MaxCredit)
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return none, none, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if account.Status != models.AccountActive {
		return none, none, fmt.Errorf("%w: %s", ErrAccountNotActive, accountID)
	}
	cr, err := e.store.GetCredit(ctx, "CR"+accountID)
	if err != nil {
		return none, none, fmt.Errorf("%w: CR%s", ErrAccountNotFound, accountID)
	}
	if cr.Status != models.CreditInactive && cr.Status != models.CreditPaidOff {
		return none, none, fmt.Errorf("%w: status %s", ErrCreditNotIssuable, cr.Status)
	}

	payment, schedule, err := amortization.Schedule(amount, e.cfg.CreditRatePA, e.cfg.CreditTermMonths)
	if err != nil {
		return none, none, err
	}

	// Disbursement.
	before := account.Balance
	account.Balance = account.Balance.Add(amount)
	disburse := models.NewCreditDisbursement(e.ids.NewID(idgen.PrefixCreditDisbursement),
		accountID, cr.AccountID, amount, ts).
		Complete(before, account.Balance).
		WithCreditBalances(cr.Balance, amount)

	end := ts.AddDate(0, e.cfg.CreditTermMonths, 0)
	start := ts
	cr.Balance = amount
	cr.OriginalAmount = amount
	cr.Status = models.CreditActive
	cr.StartDate = &start
	cr.EndDate = &end
	cr.MonthlyPayment = payment
	cr.MonthlyRate = e.cfg.MonthlyRate()
	cr.RemainingPayments = e.cfg.CreditTermMonths
	cr.Schedule = schedule
	cr.MissedPayments = 0
	cr.PenaltyAccrued = decimal.Zero
	// Markers from a previous, paid-off credit must not carry over.
	cr.LastPenaltyDate = ""
	cr.WriteOffDate = nil
	// The issuance month itself is never collected.
	cr.LastCollectionPeriod = ts.Format(periodLayout)

	// Fee: mandatory, may overdraw.
	fee := e.cfg.CreditFee
	feeBefore := account.Balance
	account.Balance = account.Balance.Sub(fee)
	feeTx := models.NewCreditFee(e.ids.NewID(idgen.PrefixFee), accountID, cr.AccountID, fee, ts).
		Complete(feeBefore, account.Balance)

	account.Append(disburse)
	account.Append(feeTx)
	cr.Append(disburse)
	cr.Append(feeTx)
	if err := e.books.PostWith(ctx, []models.Posting{
		{Book: models.CreditAssets, Delta: amount},
		{Book: models.CustomerLiabilities, Delta: amount},
		{Book: models.CustomerLiabilities, Delta: fee.Neg()},
		{Book: models.Income, Delta: fee},
	}, models.StateChange{Account: account, Credit: cr}); err != nil {
		return none, none, err
	}

	e.log.Info("credit issued",
		zap.String("credit_account_id", cr.AccountID),
		zap.String("amount", amount.String()),
		zap.String("monthly_payment", payment.String()))
	return disburse, feeTx, nil
}

// CollectMonthly runs one credit through its monthly cycle: the scheduled
// installment for an active credit, or the full catch-up (missed
// installments plus accrued penalty) for a blocked one. Idempotent per
// calendar month.
func (e *Engine) CollectMonthly(ctx context.Context, creditID string, date time.Time) (models.Transaction, bool, error) {
	var none models.Transaction
	cr, err := e.store.GetCredit(ctx, creditID)
	if err != nil {
		return none, false, fmt.Errorf("%w: %s", ErrAccountNotFound, creditID)
	}
	if cr.Status != models.CreditActive && cr.Status != models.CreditBlocked {
		return none, false, nil
	}
	period := date.Format(periodLayout)
	if cr.LastCollectionPeriod == period {
		return none, false, nil
	}
	account, err := e.store.GetAccount(ctx, mainAccountID(cr))
	if err != nil {
		return none, false, fmt.Errorf("%w: %s", ErrAccountNotFound, mainAccountID(cr))
	}

	cr.LastCollectionPeriod = period
	if cr.Status == models.CreditBlocked {
		tx, err := e.collectCatchUp(ctx, account, cr, date)
		return tx, err == nil && tx.Status == models.TxCompleted, err
	}

	entry, ok := cr.NextScheduleEntry()
	if !ok {
		// Schedule exhausted with a zero balance: settle the status.
		if cr.Balance.IsZero() {
			cr.Status = models.CreditPaidOff
		}
		return none, false, e.store.SaveCredit(ctx, cr)
	}

	if account.Balance.LessThan(entry.Payment) || account.Status == models.AccountBlocked {
		return e.recordMissedPayment(ctx, account, cr, entry.Payment, date, "insufficient funds for scheduled payment")
	}

	before := account.Balance
	account.Balance = account.Balance.Sub(entry.Payment)
	creditBefore := cr.Balance
	cr.Balance = cr.Balance.Sub(entry.Principal)
	cr.RemainingPayments--
	cr.MissedPayments = 0
	if cr.RemainingPayments == 0 {
		cr.Balance = decimal.Zero
		cr.Status = models.CreditPaidOff
	}

	tx := models.NewCreditRepayment(e.ids.NewID(idgen.PrefixRepayment),
		account.AccountID, cr.AccountID, entry.Payment, date).
		Complete(before, account.Balance).
		WithCreditBalances(creditBefore, cr.Balance).
		WithSplit(entry.Principal, entry.Interest, decimal.Zero)
	if err := e.saveBoth(ctx, account, cr, tx, []models.Posting{
		{Book: models.CustomerLiabilities, Delta: entry.Payment.Neg()},
		{Book: models.CreditAssets, Delta: entry.Principal.Neg()},
		{Book: models.Income, Delta: entry.Interest},
	}); err != nil {
		return none, false, err
	}
	e.log.Info("monthly payment collected",
		zap.String("credit_account_id", cr.AccountID),
		zap.String("payment", entry.Payment.String()),
		zap.String("principal", entry.Principal.String()),
		zap.String("interest", entry.Interest.String()))
	return tx, true, nil
}

// AccruePenalty adds one day of penalty interest to a blocked credit's
// balance. The accrual is unrealized: it touches no ledger book until it
// is actually collected. Compounds daily on the growing balance.
// Idempotent per calendar day.
func (e *Engine) AccruePenalty(ctx context.Context, creditID string, date time.Time) (models.Transaction, bool, error) {
	var none models.Transaction
	cr, err := e.store.GetCredit(ctx, creditID)
	if err != nil {
		return none, false, fmt.Errorf("%w: %s", ErrAccountNotFound, creditID)
	}
	if cr.Status != models.CreditBlocked || !money.IsPositive(cr.Balance) {
		return none, false, nil
	}
	day := date.Format(dayLayout)
	if cr.LastPenaltyDate == day {
		return none, false, nil
	}

	penalty := money.Round2(cr.Balance.Mul(e.cfg.DailyPenaltyRate()))
	cr.LastPenaltyDate = day
	if !money.IsPositive(penalty) {
		return none, false, e.store.SaveCredit(ctx, cr)
	}
	before := cr.Balance
	cr.Balance = cr.Balance.Add(penalty)
	cr.PenaltyAccrued = cr.PenaltyAccrued.Add(penalty)

	tx := models.NewInterestAccrual(e.ids.NewID(idgen.PrefixPenalty), cr.AccountID,
		penalty, date, "unrealized penalty interest").
		Complete(decimal.Zero, decimal.Zero).
		WithCreditBalances(before, cr.Balance)
	cr.Append(tx)
	if err := e.store.SaveCredit(ctx, cr); err != nil {
		return none, false, fmt.Errorf("save credit: %w", err)
	}
	return tx, true, nil
}

// WriteOff removes a blocked credit from the books once it has missed the
// configured number of consecutive monthly cycles. The principal
// outstanding leaves credit_assets against income; accrued penalty
// interest was never realized and is simply dropped.
func (e *Engine) WriteOff(ctx context.Context, creditID string, date time.Time) (bool, error) {
	cr, err := e.store.GetCredit(ctx, creditID)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrAccountNotFound, creditID)
	}
	if cr.Status != models.CreditBlocked || cr.MissedPayments < e.cfg.WriteOffMissedPayments {
		return false, nil
	}

	principal := cr.PrincipalOutstanding()
	cr.Status = models.CreditWrittenOff
	d := date
	cr.WriteOffDate = &d
	cr.Balance = decimal.Zero
	cr.PenaltyAccrued = decimal.Zero
	if err := e.books.PostWith(ctx, []models.Posting{
		{Book: models.CreditAssets, Delta: principal.Neg()},
		{Book: models.Income, Delta: principal.Neg()},
	}, models.StateChange{Credit: cr}); err != nil {
		return false, err
	}
	e.log.Warn("credit written off",
		zap.String("credit_account_id", cr.AccountID),
		zap.String("loss", principal.String()),
		zap.Int("missed_payments", cr.MissedPayments))
	return true, nil
}

// Repay processes a customer-initiated repayment. Against an active
// credit the amount splits into interest (per-period rate on the current
// outstanding balance) and principal, capped at the outstanding balance;
// reducing the balance to exactly zero pays the credit off. Against a
// blocked credit only a full catch-up is accepted; partial catch-up is
// rejected and does not unblock.
func (e *Engine) Repay(ctx context.Context, accountID string, amount decimal.Decimal, ts time.Time) (models.Transaction, error) {
	var none models.Transaction
	amount = money.Round2(amount)
	if !money.IsPositive(amount) {
		return none, ErrBadAmount
	}
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return none, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	cr, err := e.store.GetCredit(ctx, "CR"+accountID)
	if err != nil {
		return none, fmt.Errorf("%w: CR%s", ErrAccountNotFound, accountID)
	}
	if cr.Status != models.CreditActive && cr.Status != models.CreditBlocked {
		return none, fmt.Errorf("%w: status %s", ErrCreditNotOpen, cr.Status)
	}

	tx := models.NewCreditRepayment(e.ids.NewID(idgen.PrefixManualRepayment),
		accountID, cr.AccountID, amount, ts)

	if cr.Status == models.CreditBlocked {
		total, _, _, _, _ := e.catchUpAmounts(cr)
		if amount.LessThan(total) {
			tx = tx.Reject(account.Balance,
				fmt.Sprintf("partial catch-up not accepted (%s due)", total)).
				WithCreditBalances(cr.Balance, cr.Balance)
			return tx, e.saveBoth(ctx, account, cr, tx, nil)
		}
		if account.Balance.LessThan(total) {
			tx = tx.Reject(account.Balance, "insufficient funds").
				WithCreditBalances(cr.Balance, cr.Balance)
			return tx, e.saveBoth(ctx, account, cr, tx, nil)
		}
		return e.collectCatchUp(ctx, account, cr, ts)
	}

	// Split against the current outstanding balance, not the schedule.
	interest := money.Round2(cr.Balance.Mul(cr.MonthlyRate))
	if interest.GreaterThan(amount) {
		interest = amount
	}
	principal := amount.Sub(interest)
	if principal.GreaterThan(cr.Balance) {
		// Cap at the outstanding balance; the surplus is never taken.
		principal = cr.Balance
		amount = principal.Add(interest)
		tx.Amount = amount
	}
	if account.Balance.LessThan(amount) {
		tx = tx.Reject(account.Balance, "insufficient funds").
			WithCreditBalances(cr.Balance, cr.Balance)
		return tx, e.saveBoth(ctx, account, cr, tx, nil)
	}

	before := account.Balance
	account.Balance = account.Balance.Sub(amount)
	creditBefore := cr.Balance
	cr.Balance = cr.Balance.Sub(principal)
	if cr.Balance.IsZero() {
		cr.Status = models.CreditPaidOff
		cr.RemainingPayments = 0
	}
	tx = tx.Complete(before, account.Balance).
		WithCreditBalances(creditBefore, cr.Balance).
		WithSplit(principal, interest, decimal.Zero)
	if err := e.saveBoth(ctx, account, cr, tx, []models.Posting{
		{Book: models.CustomerLiabilities, Delta: amount.Neg()},
		{Book: models.CreditAssets, Delta: principal.Neg()},
		{Book: models.Income, Delta: interest},
	}); err != nil {
		return none, err
	}
	e.log.Info("manual repayment",
		zap.String("credit_account_id", cr.AccountID),
		zap.String("amount", amount.String()),
		zap.String("credit_balance", cr.Balance.String()))
	return tx, nil
}

// Get returns the credit account by id.
func (e *Engine) Get(ctx context.Context, creditID string) (*models.CreditAccount, error) {
	cr, err := e.store.GetCredit(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, creditID)
	}
	return cr, nil
}

// catchUpAmounts sizes the payment that clears a blocked credit: the
// missed schedule installments plus the accrued penalty.
func (e *Engine) catchUpAmounts(cr *models.CreditAccount) (total, principal, interest, penalty decimal.Decimal, entries int) {
	entries = cr.MissedPayments
	if entries > cr.RemainingPayments {
		entries = cr.RemainingPayments
	}
	start := len(cr.Schedule) - cr.RemainingPayments
	total, principal, interest = decimal.Zero, decimal.Zero, decimal.Zero
	for i := 0; i < entries; i++ {
		row := cr.Schedule[start+i]
		total = total.Add(row.Payment)
		principal = principal.Add(row.Principal)
		interest = interest.Add(row.Interest)
	}
	penalty = cr.PenaltyAccrued
	total = total.Add(penalty)
	return total, principal, interest, penalty, entries
}

// collectCatchUp attempts the full catch-up debit against the deposit
// account. Success restores both the credit and the deposit account to
// active and realizes the penalty as income.
func (e *Engine) collectCatchUp(ctx context.Context, account *models.DepositAccount, cr *models.CreditAccount, ts time.Time) (models.Transaction, error) {
	total, principal, interest, penalty, entries := e.catchUpAmounts(cr)
	if account.Balance.LessThan(total) {
		tx, _, err := e.recordMissedPayment(ctx, account, cr, total, ts, "insufficient funds for catch-up payment")
		return tx, err
	}

	before := account.Balance
	account.Balance = account.Balance.Sub(total)
	creditBefore := cr.Balance
	cr.Balance = cr.Balance.Sub(principal).Sub(penalty)
	cr.PenaltyAccrued = decimal.Zero
	cr.RemainingPayments -= entries
	cr.MissedPayments = 0
	cr.Status = models.CreditActive
	account.Status = models.AccountActive
	if cr.RemainingPayments == 0 {
		cr.Balance = decimal.Zero
		cr.Status = models.CreditPaidOff
	}

	tx := models.NewCreditRepayment(e.ids.NewID(idgen.PrefixRepayment),
		account.AccountID, cr.AccountID, total, ts).
		Complete(before, account.Balance).
		WithCreditBalances(creditBefore, cr.Balance).
		WithSplit(principal, interest, penalty)
	tx.Note = "catch-up payment"
	if err := e.saveBoth(ctx, account, cr, tx, []models.Posting{
		{Book: models.CustomerLiabilities, Delta: total.Neg()},
		{Book: models.CreditAssets, Delta: principal.Neg()},
		{Book: models.Income, Delta: interest.Add(penalty)},
	}); err != nil {
		return models.Transaction{}, err
	}
	e.log.Info("catch-up collected, credit unblocked",
		zap.String("credit_account_id", cr.AccountID),
		zap.String("total", total.String()),
		zap.String("penalty_realized", penalty.String()))
	return tx, nil
}

// recordMissedPayment blocks both accounts, bumps the missed counter, and
// appends the rejected attempt. No ledger postings happen for a failed
// collection.
func (e *Engine) recordMissedPayment(ctx context.Context, account *models.DepositAccount, cr *models.CreditAccount, amount decimal.Decimal, ts time.Time, reason string) (models.Transaction, bool, error) {
	cr.MissedPayments++
	cr.Status = models.CreditBlocked
	if account.Status == models.AccountActive {
		account.Status = models.AccountBlocked
	}
	tx := models.NewCreditPenalty(e.ids.NewID(idgen.PrefixPenalty),
		account.AccountID, cr.AccountID, amount, ts).
		Reject(account.Balance, reason).
		WithCreditBalances(cr.Balance, cr.Balance)
	if err := e.saveBoth(ctx, account, cr, tx, nil); err != nil {
		return models.Transaction{}, false, err
	}
	e.log.Info("payment missed, accounts blocked",
		zap.String("credit_account_id", cr.AccountID),
		zap.Int("missed_payments", cr.MissedPayments))
	return tx, false, nil
}

// saveBoth appends the record to both histories and persists the
// account, the credit, and any ledger postings as one atomic change.
func (e *Engine) saveBoth(ctx context.Context, account *models.DepositAccount, cr *models.CreditAccount, tx models.Transaction, postings []models.Posting) error {
	account.Append(tx)
	cr.Append(tx)
	change := models.StateChange{Account: account, Credit: cr}
	if len(postings) == 0 {
		if err := e.store.Apply(ctx, change); err != nil {
			return fmt.Errorf("save account and credit: %w", err)
		}
		return nil
	}
	return e.books.PostWith(ctx, postings, change)
}

func mainAccountID(cr *models.CreditAccount) string {
	return strings.TrimPrefix(cr.AccountID, "CR")
}
