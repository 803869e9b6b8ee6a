// Package ledger keeps the bank's own books. Every mutation is a balanced
// set of postings that preserves the accounting identity
//
//	central_bank_assets + credit_assets == customer_liabilities + income
//
// Credit losses are folded into income. Validate recomputes the identity
// independently from account and credit balances and reports divergence;
// it never repairs.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
)

var (
	ErrUnknownBook       = errors.New("ledger: unknown book")
	ErrUnbalancedPosting = errors.New("ledger: postings break the accounting identity")
	ErrEmptyPosting      = errors.New("ledger: empty posting set")
)

// Ledger holds the in-memory books and persists them through the store
// after every posting. Processing is strictly sequential, so no locking
// is needed here.
type Ledger struct {
	store    interfaces.Store
	log      *zap.Logger
	balances models.LedgerSnapshot
}

// New loads the books from the store, initializing zero balances on first
// start.
func New(ctx context.Context, store interfaces.Store, log *zap.Logger) (*Ledger, error) {
	balances, err := store.GetLedger(ctx)
	if errors.Is(err, interfaces.ErrNotFound) {
		balances = models.LedgerSnapshot{}
		for _, name := range models.BookNames {
			balances[name] = decimal.Zero
		}
		if err := store.SaveLedger(ctx, balances); err != nil {
			return nil, fmt.Errorf("initialize ledger: %w", err)
		}
		log.Info("initialized new bank ledger")
	} else if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return &Ledger{store: store, log: log, balances: balances}, nil
}

// Post applies a set of signed deltas atomically: either all apply and
// persist, or none do. The set must reference known books and must keep
// the accounting identity intact.
func (l *Ledger) Post(ctx context.Context, postings []models.Posting) error {
	return l.PostWith(ctx, postings, models.StateChange{})
}

// PostWith applies the postings and persists them together with the
// other records of the change, so an operation's account, credit, and
// book updates are durable all together or not at all.
func (l *Ledger) PostWith(ctx context.Context, postings []models.Posting, change models.StateChange) error {
	if len(postings) == 0 {
		return ErrEmptyPosting
	}
	identityDelta := decimal.Zero
	for _, p := range postings {
		switch p.Book {
		case models.CentralBankAssets, models.CreditAssets:
			identityDelta = identityDelta.Add(p.Delta)
		case models.CustomerLiabilities, models.Income:
			identityDelta = identityDelta.Sub(p.Delta)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownBook, p.Book)
		}
	}
	if !identityDelta.IsZero() {
		return fmt.Errorf("%w: identity delta %s", ErrUnbalancedPosting, identityDelta)
	}

	next := l.snapshot()
	for _, p := range postings {
		next[p.Book] = next[p.Book].Add(p.Delta)
	}
	change.Ledger = next
	if err := l.store.Apply(ctx, change); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	l.balances = next
	for _, p := range postings {
		l.log.Debug("ledger posting",
			zap.String("book", string(p.Book)),
			zap.String("delta", p.Delta.String()),
			zap.String("balance", next[p.Book].String()))
	}
	return nil
}

// Balance returns the current balance of one book.
func (l *Ledger) Balance(book models.BookName) decimal.Decimal {
	return l.balances[book]
}

// Snapshot returns a copy of all books.
func (l *Ledger) Snapshot() models.LedgerSnapshot {
	return l.snapshot()
}

func (l *Ledger) snapshot() models.LedgerSnapshot {
	cp := make(models.LedgerSnapshot, len(l.balances))
	for k, v := range l.balances {
		cp[k] = v
	}
	return cp
}

// ValidationReport is the result of an independent consistency check.
type ValidationReport struct {
	LiabilitiesLedger     decimal.Decimal `json:"customer_liabilities_ledger"`
	LiabilitiesComputed   decimal.Decimal `json:"customer_liabilities_computed"`
	CreditAssetsLedger    decimal.Decimal `json:"credit_assets_ledger"`
	CreditAssetsComputed  decimal.Decimal `json:"credit_assets_computed"`
	Assets                decimal.Decimal `json:"assets"`
	LiabilitiesPlusIncome decimal.Decimal `json:"liabilities_plus_income"`
	ActiveAccounts        int             `json:"active_accounts"`
	OpenCredits           int             `json:"open_credits"`
	Balanced              bool            `json:"balanced"`
}

// Validate recomputes the books from the full set of account and credit
// balances. Open (active or blocked) deposit accounts back
// customer_liabilities; the principal portion of open credits backs
// credit_assets (accrued penalty interest is unrealized and stays off the
// books until collected).
func (l *Ledger) Validate(ctx context.Context) (ValidationReport, error) {
	report := ValidationReport{
		LiabilitiesLedger:     l.balances[models.CustomerLiabilities],
		CreditAssetsLedger:    l.balances[models.CreditAssets],
		Assets:                l.balances[models.CentralBankAssets].Add(l.balances[models.CreditAssets]),
		LiabilitiesPlusIncome: l.balances[models.CustomerLiabilities].Add(l.balances[models.Income]),
	}

	accounts, err := l.store.ListAccounts(ctx)
	if err != nil {
		return report, fmt.Errorf("list accounts: %w", err)
	}
	liabilities := decimal.Zero
	for _, a := range accounts {
		if a.Status == models.AccountActive || a.Status == models.AccountBlocked {
			liabilities = liabilities.Add(a.Balance)
			if a.Status == models.AccountActive {
				report.ActiveAccounts++
			}
		}
	}
	report.LiabilitiesComputed = liabilities

	credits, err := l.store.ListCredits(ctx)
	if err != nil {
		return report, fmt.Errorf("list credits: %w", err)
	}
	creditAssets := decimal.Zero
	for _, c := range credits {
		if c.Status == models.CreditActive || c.Status == models.CreditBlocked {
			creditAssets = creditAssets.Add(c.PrincipalOutstanding())
			report.OpenCredits++
		}
	}
	report.CreditAssetsComputed = creditAssets

	report.Balanced = report.LiabilitiesLedger.Equal(report.LiabilitiesComputed) &&
		report.CreditAssetsLedger.Equal(report.CreditAssetsComputed) &&
		report.Assets.Equal(report.LiabilitiesPlusIncome)
	if !report.Balanced {
		l.log.Warn("ledger validation found divergence",
			zap.String("liabilities_ledger", report.LiabilitiesLedger.String()),
			zap.String("liabilities_computed", report.LiabilitiesComputed.String()),
			zap.String("credit_assets_ledger", report.CreditAssetsLedger.String()),
			zap.String("credit_assets_computed", report.CreditAssetsComputed.String()),
			zap.String("assets", report.Assets.String()),
			zap.String("liabilities_plus_income", report.LiabilitiesPlusIncome.String()))
	}
	return report, nil
}
