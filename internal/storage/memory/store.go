// Package memory is the in-memory implementation of interfaces.Store.
// It backs tests and single-process simulation runs; the postgres store
// is the durable alternative.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
)

// Store keeps accounts, credits, the ledger snapshot, and the system date
// in maps. Get and Save exchange deep copies so a caller's half-mutated
// state never leaks in before an explicit Save.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*models.DepositAccount
	credits  map[string]*models.CreditAccount
	ledger   models.LedgerSnapshot
	date     *time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.DepositAccount),
		credits:  make(map[string]*models.CreditAccount),
	}
}

func (s *Store) SaveAccount(ctx context.Context, account *models.DepositAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.AccountID] = account.Clone()
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.DepositAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) AccountByCustomer(ctx context.Context, customerID string) (*models.DepositAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.CustomerID == customerID {
			return a.Clone(), nil
		}
	}
	return nil, interfaces.ErrNotFound
}

// ListAccounts returns all deposit accounts ordered by account id, so
// periodic sweeps process them deterministically.
func (s *Store) ListAccounts(ctx context.Context) ([]*models.DepositAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.DepositAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *Store) SaveCredit(ctx context.Context, credit *models.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[credit.AccountID] = credit.Clone()
	return nil
}

func (s *Store) GetCredit(ctx context.Context, accountID string) (*models.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[accountID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) ListCredits(ctx context.Context) ([]*models.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.CreditAccount, 0, len(s.credits))
	for _, c := range s.credits {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// Apply writes every record of the change under one lock. The map writes
// cannot fail halfway, so the change is atomic by construction.
func (s *Store) Apply(ctx context.Context, change models.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.Account != nil {
		s.accounts[change.Account.AccountID] = change.Account.Clone()
	}
	if change.Credit != nil {
		s.credits[change.Credit.AccountID] = change.Credit.Clone()
	}
	if change.Ledger != nil {
		cp := make(models.LedgerSnapshot, len(change.Ledger))
		for k, v := range change.Ledger {
			cp[k] = v
		}
		s.ledger = cp
	}
	return nil
}

func (s *Store) SaveLedger(ctx context.Context, snapshot models.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(models.LedgerSnapshot, len(snapshot))
	for k, v := range snapshot {
		cp[k] = v
	}
	s.ledger = cp
	return nil
}

func (s *Store) GetLedger(ctx context.Context) (models.LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, interfaces.ErrNotFound
	}
	cp := make(models.LedgerSnapshot, len(s.ledger))
	for k, v := range s.ledger {
		cp[k] = v
	}
	return cp, nil
}

func (s *Store) GetSystemDate(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.date == nil {
		return time.Time{}, interfaces.ErrNotFound
	}
	return *s.date, nil
}

func (s *Store) SetSystemDate(ctx context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := date
	s.date = &d
	return nil
}

// Compile-time check: Store implements interfaces.Store.
var _ interfaces.Store = (*Store)(nil)
