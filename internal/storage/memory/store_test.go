package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
	"github.com/haifischbank/backoffice/internal/money"
)

func TestGetAccountReturnsACopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	account := &models.DepositAccount{
		AccountID:  "CH-1",
		CustomerID: "C-1",
		Balance:    money.MustParse("100.00"),
		Status:     models.AccountActive,
	}
	if err := s.SaveAccount(ctx, account); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy after saving must not leak in.
	account.Balance = money.MustParse("999.99")
	got, err := s.GetAccount(ctx, "CH-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balance.Equal(money.MustParse("100.00")) {
		t.Errorf("stored balance = %s, want 100.00", got.Balance)
	}

	// Mutating a fetched copy must not change the store either.
	got.Balance = money.MustParse("0.01")
	got.Transactions = append(got.Transactions, models.Transaction{TransactionID: "TR-x"})
	again, err := s.GetAccount(ctx, "CH-1")
	if err != nil {
		t.Fatal(err)
	}
	if !again.Balance.Equal(money.MustParse("100.00")) || len(again.Transactions) != 0 {
		t.Errorf("fetched copy leaked back: balance %s, %d txs", again.Balance, len(again.Transactions))
	}
}

func TestLookupsReportNotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if _, err := s.GetAccount(ctx, "CH-missing"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetAccount: err = %v", err)
	}
	if _, err := s.GetCredit(ctx, "CR-missing"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetCredit: err = %v", err)
	}
	if _, err := s.AccountByCustomer(ctx, "C-missing"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("AccountByCustomer: err = %v", err)
	}
	if _, err := s.GetLedger(ctx); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetLedger: err = %v", err)
	}
	if _, err := s.GetSystemDate(ctx); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("GetSystemDate: err = %v", err)
	}
}

func TestListAccountsIsSortedByID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, id := range []string{"CH-c", "CH-a", "CH-b"} {
		if err := s.SaveAccount(ctx, &models.DepositAccount{AccountID: id}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].AccountID >= list[i].AccountID {
			t.Fatalf("list not sorted: %s before %s", list[i-1].AccountID, list[i].AccountID)
		}
	}
}

func TestSystemDateRoundTrips(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	want := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SetSystemDate(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSystemDate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("system date = %s, want %s", got, want)
	}
}

func TestApplyWritesAllRecordsAndSkipsNilFields(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.SaveLedger(ctx, models.LedgerSnapshot{
		models.Income: money.MustParse("1.00"),
	}); err != nil {
		t.Fatal(err)
	}

	change := models.StateChange{
		Account: &models.DepositAccount{AccountID: "CH-1", Balance: money.MustParse("50.00")},
		Credit:  &models.CreditAccount{AccountID: "CRCH-1", Balance: money.MustParse("500.00")},
	}
	if err := s.Apply(ctx, change); err != nil {
		t.Fatal(err)
	}
	if a, err := s.GetAccount(ctx, "CH-1"); err != nil || !a.Balance.Equal(money.MustParse("50.00")) {
		t.Errorf("account after Apply: %v, %v", a, err)
	}
	if c, err := s.GetCredit(ctx, "CRCH-1"); err != nil || !c.Balance.Equal(money.MustParse("500.00")) {
		t.Errorf("credit after Apply: %v, %v", c, err)
	}
	// A nil ledger in the change leaves the stored snapshot alone.
	snapshot, err := s.GetLedger(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !snapshot[models.Income].Equal(money.MustParse("1.00")) {
		t.Errorf("ledger overwritten by Apply with nil snapshot: %v", snapshot)
	}
}

func TestCreditScheduleIsDeepCopied(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cr := &models.CreditAccount{
		AccountID: "CRCH-1",
		Schedule: []models.ScheduleEntry{
			{Month: 1, Payment: money.MustParse("902.58")},
		},
	}
	if err := s.SaveCredit(ctx, cr); err != nil {
		t.Fatal(err)
	}
	cr.Schedule[0].Payment = money.MustParse("0.01")
	got, err := s.GetCredit(ctx, "CRCH-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Schedule[0].Payment.Equal(money.MustParse("902.58")) {
		t.Errorf("schedule leaked: payment = %s", got.Schedule[0].Payment)
	}
}
