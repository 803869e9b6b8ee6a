package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/haifischbank/backoffice/internal/models"
)

// ErrNotFound is returned by Store lookups for unknown identifiers.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for account, credit, ledger, and
// clock state. The engine calls it synchronously and treats any error as
// fatal to the current operation. Implementations must return listings in
// a stable order so sequential processing stays deterministic.
type Store interface {
	SaveAccount(ctx context.Context, account *models.DepositAccount) error
	GetAccount(ctx context.Context, accountID string) (*models.DepositAccount, error)
	AccountByCustomer(ctx context.Context, customerID string) (*models.DepositAccount, error)
	ListAccounts(ctx context.Context) ([]*models.DepositAccount, error)

	SaveCredit(ctx context.Context, credit *models.CreditAccount) error
	GetCredit(ctx context.Context, accountID string) (*models.CreditAccount, error)
	ListCredits(ctx context.Context) ([]*models.CreditAccount, error)

	// Apply persists every non-nil record of the change atomically:
	// either all of them become durable or none does. Operations that
	// touch more than one record must write through Apply so a storage
	// failure can never leave partial state behind.
	Apply(ctx context.Context, change models.StateChange) error

	SaveLedger(ctx context.Context, snapshot models.LedgerSnapshot) error
	// GetLedger returns ErrNotFound when the books have never been
	// initialized.
	GetLedger(ctx context.Context) (models.LedgerSnapshot, error)

	// GetSystemDate returns ErrNotFound before the clock is first set.
	GetSystemDate(ctx context.Context) (time.Time, error)
	SetSystemDate(ctx context.Context, date time.Time) error
}
