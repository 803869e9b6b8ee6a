// Package accounts is the account/transaction recorder: it owns every
// balance mutation of deposit accounts, appends the immutable transaction
// history (rejected attempts included), and posts the matching ledger
// entries.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/config"
	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/ledger"
	"github.com/haifischbank/backoffice/internal/models"
	"github.com/haifischbank/backoffice/internal/money"
)

var (
	ErrAccountNotFound   = errors.New("accounts: account not found")
	ErrCustomerNotFound  = errors.New("accounts: customer not found")
	ErrCustomerInactive  = errors.New("accounts: customer is not active")
	ErrDuplicateAccount  = errors.New("accounts: customer already has an account")
	ErrBadAmount         = errors.New("accounts: amount must be positive")
	ErrNonZeroBalance    = errors.New("accounts: balance must be zero to close")
	ErrCreditOutstanding = errors.New("accounts: credit account is still outstanding")
)

type Service struct {
	store     interfaces.Store
	books     *ledger.Ledger
	ids       interfaces.IDGenerator
	directory interfaces.CustomerDirectory
	cfg       config.Config
	log       *zap.Logger
}

func NewService(store interfaces.Store, books *ledger.Ledger, ids interfaces.IDGenerator,
	directory interfaces.CustomerDirectory, cfg config.Config, log *zap.Logger) *Service {
	return &Service{store: store, books: books, ids: ids, directory: directory, cfg: cfg, log: log}
}

// Open creates the customer's deposit account together with its inert
// credit account. Exactly one account pair may exist per customer.
func (s *Service) Open(ctx context.Context, customerID string) (*models.DepositAccount, *models.CreditAccount, error) {
	customer, err := s.directory.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}
	if customer.Status != models.CustomerActive {
		return nil, nil, fmt.Errorf("%w: %s", ErrCustomerInactive, customerID)
	}
	if _, err := s.store.AccountByCustomer(ctx, customerID); err == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateAccount, customerID)
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, nil, fmt.Errorf("lookup account: %w", err)
	}

	now, err := s.store.GetSystemDate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read system date: %w", err)
	}

	account := &models.DepositAccount{
		AccountID:   s.ids.NewID(idgen.PrefixAccount),
		CustomerID:  customerID,
		Balance:     decimal.Zero,
		Status:      models.AccountActive,
		CreatedAt:   now,
		LastFeeDate: now,
	}
	credit := &models.CreditAccount{
		AccountID:   "CR" + account.AccountID,
		CustomerID:  customerID,
		Balance:     decimal.Zero,
		Status:      models.CreditInactive,
		CreatedAt:   now,
		MonthlyRate: s.cfg.MonthlyRate(),
	}
	if err := s.store.Apply(ctx, models.StateChange{Account: account, Credit: credit}); err != nil {
		return nil, nil, fmt.Errorf("save account pair: %w", err)
	}
	s.log.Info("account pair opened",
		zap.String("account_id", account.AccountID),
		zap.String("credit_account_id", credit.AccountID),
		zap.String("customer_id", customerID))
	return account, credit, nil
}

// TransferOut debits the account. Transfers may never overdraw; an
// insufficient balance or a non-active account yields a rejected record
// with no ledger effect.
func (s *Service) TransferOut(ctx context.Context, accountID, toIBAN string, amount decimal.Decimal, ts time.Time) (models.Transaction, error) {
	if !money.IsPositive(amount) {
		return models.Transaction{}, ErrBadAmount
	}
	amount = money.Round2(amount)
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	tx := models.NewTransferOut(s.ids.NewID(idgen.PrefixTransfer), accountID, toIBAN, amount, ts)
	if account.Status != models.AccountActive {
		tx = tx.Reject(account.Balance, fmt.Sprintf("account not active (%s)", account.Status))
		return tx, s.appendAndSave(ctx, account, tx)
	}
	if account.Balance.LessThan(amount) {
		tx = tx.Reject(account.Balance, "insufficient funds")
		s.log.Info("transfer rejected",
			zap.String("account_id", accountID), zap.String("amount", amount.String()))
		return tx, s.appendAndSave(ctx, account, tx)
	}

	before := account.Balance
	account.Balance = account.Balance.Sub(amount)
	tx = tx.Complete(before, account.Balance)
	account.Append(tx)
	err = s.books.PostWith(ctx, []models.Posting{
		{Book: models.CustomerLiabilities, Delta: amount.Neg()},
		{Book: models.CentralBankAssets, Delta: amount.Neg()},
	}, models.StateChange{Account: account})
	return tx, err
}

// Deposit credits the account with an incoming payment. The sending
// system is trusted, so the payment always succeeds unless the account is
// closed or unknown.
func (s *Service) Deposit(ctx context.Context, accountID, fromIBAN string, amount decimal.Decimal, ts time.Time) (models.Transaction, error) {
	if !money.IsPositive(amount) {
		return models.Transaction{}, ErrBadAmount
	}
	amount = money.Round2(amount)
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	tx := models.NewTransferIn(s.ids.NewID(idgen.PrefixTransfer), accountID, fromIBAN, amount, ts)
	if account.Status == models.AccountClosed {
		tx = tx.Reject(account.Balance, "account closed")
		return tx, s.appendAndSave(ctx, account, tx)
	}

	before := account.Balance
	account.Balance = account.Balance.Add(amount)
	tx = tx.Complete(before, account.Balance)
	account.Append(tx)
	err = s.books.PostWith(ctx, []models.Posting{
		{Book: models.CustomerLiabilities, Delta: amount},
		{Book: models.CentralBankAssets, Delta: amount},
	}, models.StateChange{Account: account})
	return tx, err
}

// ChargeQuarterlyFee charges the account fee when at least one quarter
// has passed since the account's last fee date. The fee is mandatory and
// completes even when it overdraws the balance.
func (s *Service) ChargeQuarterlyFee(ctx context.Context, accountID string, date time.Time) (models.Transaction, bool, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if account.Status != models.AccountActive && account.Status != models.AccountBlocked {
		return models.Transaction{}, false, nil
	}
	if date.Before(account.LastFeeDate.AddDate(0, 3, 0)) {
		return models.Transaction{}, false, nil
	}

	fee := s.cfg.QuarterlyFee
	before := account.Balance
	account.Balance = account.Balance.Sub(fee)
	account.LastFeeDate = date
	tx := models.NewQuarterlyFee(s.ids.NewID(idgen.PrefixQuarterlyFee), accountID, fee, date).
		Complete(before, account.Balance)
	account.Append(tx)
	if err := s.books.PostWith(ctx, []models.Posting{
		{Book: models.CustomerLiabilities, Delta: fee.Neg()},
		{Book: models.Income, Delta: fee},
	}, models.StateChange{Account: account}); err != nil {
		return tx, false, err
	}
	s.log.Info("quarterly fee charged",
		zap.String("account_id", accountID),
		zap.String("balance", account.Balance.String()))
	return tx, true, nil
}

// Close closes a zero-balance account with no outstanding credit.
func (s *Service) Close(ctx context.Context, accountID string, ts time.Time) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if account.Status == models.AccountClosed {
		return nil
	}
	if !account.Balance.IsZero() {
		return fmt.Errorf("%w: balance %s", ErrNonZeroBalance, account.Balance)
	}
	credit, err := s.store.GetCredit(ctx, "CR"+accountID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Errorf("lookup credit account: %w", err)
	}
	if credit != nil && (credit.Status == models.CreditActive || credit.Status == models.CreditBlocked) {
		return ErrCreditOutstanding
	}

	account.Status = models.AccountClosed
	tx := models.NewAccountClosure(s.ids.NewID(idgen.PrefixClosure), accountID, ts).
		Complete(account.Balance, account.Balance)
	if err := s.appendAndSave(ctx, account, tx); err != nil {
		return err
	}
	s.log.Info("account closed", zap.String("account_id", accountID))
	return nil
}

// Get returns the account by id.
func (s *Service) Get(ctx context.Context, accountID string) (*models.DepositAccount, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return account, nil
}

func (s *Service) appendAndSave(ctx context.Context, account *models.DepositAccount, tx models.Transaction) error {
	account.Append(tx)
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}
