// Package postgres is the durable implementation of interfaces.Store.
// Accounts and credits are stored as JSON documents keyed by id; the
// schedule and transaction history travel inside the document, so a save
// is always one atomic upsert.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
)

type Store struct {
	db *sql.DB
}

// Open connects to postgres and creates the schema if needed.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		account_id  TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		data        JSONB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS credit_accounts (
		account_id TEXT PRIMARY KEY,
		data       JSONB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ledger_books (
		book    TEXT PRIMARY KEY,
		balance NUMERIC(18,2) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS system_state (
		id          INT PRIMARY KEY,
		system_date TIMESTAMPTZ NOT NULL
	);`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveAccount(ctx context.Context, account *models.DepositAccount) error {
	return upsertAccount(ctx, s.db, account)
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.DepositAccount, error) {
	const query = `SELECT data FROM accounts WHERE account_id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, accountID))
}

func (s *Store) AccountByCustomer(ctx context.Context, customerID string) (*models.DepositAccount, error) {
	const query = `SELECT data FROM accounts WHERE customer_id = $1 LIMIT 1`
	return scanAccount(s.db.QueryRowContext(ctx, query, customerID))
}

func (s *Store) ListAccounts(ctx context.Context) ([]*models.DepositAccount, error) {
	const query = `SELECT data FROM accounts ORDER BY account_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DepositAccount
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a models.DepositAccount
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal account: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) SaveCredit(ctx context.Context, credit *models.CreditAccount) error {
	return upsertCredit(ctx, s.db, credit)
}

// Apply writes every record of the change inside one database
// transaction, so a failed write rolls the whole change back.
func (s *Store) Apply(ctx context.Context, change models.StateChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if change.Account != nil {
		if err := upsertAccount(ctx, tx, change.Account); err != nil {
			return err
		}
	}
	if change.Credit != nil {
		if err := upsertCredit(ctx, tx, change.Credit); err != nil {
			return err
		}
	}
	if change.Ledger != nil {
		if err := upsertLedger(ctx, tx, change.Ledger); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetCredit(ctx context.Context, accountID string) (*models.CreditAccount, error) {
	const query = `SELECT data FROM credit_accounts WHERE account_id = $1`
	var data []byte
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c models.CreditAccount
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal credit account: %w", err)
	}
	return &c, nil
}

func (s *Store) ListCredits(ctx context.Context) ([]*models.CreditAccount, error) {
	const query = `SELECT data FROM credit_accounts ORDER BY account_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CreditAccount
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c models.CreditAccount
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal credit account: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SaveLedger replaces all book balances in one transaction.
func (s *Store) SaveLedger(ctx context.Context, snapshot models.LedgerSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertLedger(ctx, tx, snapshot); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetLedger(ctx context.Context) (models.LedgerSnapshot, error) {
	const query = `SELECT book, balance FROM ledger_books`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := models.LedgerSnapshot{}
	for rows.Next() {
		var book, balance string
		if err := rows.Scan(&book, &balance); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance of %s: %w", book, err)
		}
		snapshot[models.BookName(book)] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return snapshot, nil
}

func (s *Store) GetSystemDate(ctx context.Context) (time.Time, error) {
	const query = `SELECT system_date FROM system_state WHERE id = 1`
	var date time.Time
	err := s.db.QueryRowContext(ctx, query).Scan(&date)
	if err == sql.ErrNoRows {
		return time.Time{}, interfaces.ErrNotFound
	}
	return date.UTC(), err
}

func (s *Store) SetSystemDate(ctx context.Context, date time.Time) error {
	const query = `INSERT INTO system_state (id, system_date) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET system_date = $1`
	_, err := s.db.ExecContext(ctx, query, date)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx, so the upsert helpers
// serve single writes and Apply transactions alike.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertAccount(ctx context.Context, ex execer, account *models.DepositAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	const query = `INSERT INTO accounts (account_id, customer_id, data) VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET customer_id = $2, data = $3`
	_, err = ex.ExecContext(ctx, query, account.AccountID, account.CustomerID, data)
	return err
}

func upsertCredit(ctx context.Context, ex execer, credit *models.CreditAccount) error {
	data, err := json.Marshal(credit)
	if err != nil {
		return fmt.Errorf("marshal credit account: %w", err)
	}
	const query = `INSERT INTO credit_accounts (account_id, data) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET data = $2`
	_, err = ex.ExecContext(ctx, query, credit.AccountID, data)
	return err
}

func upsertLedger(ctx context.Context, ex execer, snapshot models.LedgerSnapshot) error {
	const query = `INSERT INTO ledger_books (book, balance) VALUES ($1, $2)
		ON CONFLICT (book) DO UPDATE SET balance = $2`
	for book, balance := range snapshot {
		if _, err := ex.ExecContext(ctx, query, string(book), balance.String()); err != nil {
			return err
		}
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.DepositAccount, error) {
	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var a models.DepositAccount
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

var _ interfaces.Store = (*Store)(nil)
