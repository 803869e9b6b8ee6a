package processing

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/accounts"
	"github.com/haifischbank/backoffice/internal/config"
	"github.com/haifischbank/backoffice/internal/credit"
	"github.com/haifischbank/backoffice/internal/directory"
	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/ledger"
	"github.com/haifischbank/backoffice/internal/models/events"
	"github.com/haifischbank/backoffice/internal/money"
	"github.com/haifischbank/backoffice/internal/storage/memory"
	"github.com/haifischbank/backoffice/internal/timedriver"
)

type capturingPublisher struct {
	published []events.TransactionCompleted
}

func (c *capturingPublisher) Publish(topic string, event any) error {
	if e, ok := event.(events.TransactionCompleted); ok {
		c.published = append(c.published, e)
	}
	return nil
}

func newProcessor(t *testing.T) (*Processor, *capturingPublisher) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	log := zap.NewNop()
	books, err := ledger.New(ctx, store, log)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Load()
	ids := idgen.New()
	dir := directory.New(ids)
	svc := accounts.NewService(store, books, ids, dir, cfg, log)
	engine := credit.NewEngine(store, books, ids, cfg, log)
	driver := timedriver.New(store, svc, engine, ids, log)
	if err := driver.EnsureClock(ctx, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	pub := &capturingPublisher{}
	return New(store, svc, engine, driver, dir, pub, "transaction_completed", log), pub
}

func TestBatchIsolatesItemsAndCounts(t *testing.T) {
	p, pub := newProcessor(t)
	ctx := context.Background()

	out := p.Process(ctx, Request{Type: ReqCreateCustomer, Name: "Erika Mustermann", Address: "Bahnhofstr. 1", BirthDate: "1985-04-12"})
	if out.Status != OutcomeCompleted {
		t.Fatalf("create_customer: %+v", out)
	}
	customerID := out.Customer.CustomerID
	out = p.Process(ctx, Request{Type: ReqCreateAccount, CustomerID: customerID})
	if out.Status != OutcomeCompleted {
		t.Fatalf("create_account: %+v", out)
	}
	accountID := out.Account.AccountID

	res := p.ProcessBatch(ctx, []Request{
		{Type: ReqTransferIn, AccountID: accountID, CounterpartyIBAN: "DE89370400440532013000", Amount: money.MustParse("500.00")},
		// Overdraws: processed but rejected.
		{Type: ReqTransferOut, AccountID: accountID, CounterpartyIBAN: "DE02120300000000202051", Amount: money.MustParse("600.00")},
		// Unknown type: failed, but the batch keeps going.
		{Type: "mystery"},
		{Type: ReqTransferOut, AccountID: accountID, CounterpartyIBAN: "DE02120300000000202051", Amount: money.MustParse("100.00")},
	})
	if res.Processed != 4 || res.Completed != 2 || res.Rejected != 1 || res.Failed != 1 {
		t.Errorf("counts = %+v", res)
	}
	if res.Items[1].Status != OutcomeRejected {
		t.Errorf("item 1 = %+v, want rejected", res.Items[1])
	}
	if res.Items[3].Status != OutcomeCompleted {
		t.Errorf("item 3 = %+v, want completed after earlier failures", res.Items[3])
	}

	// Every recorded transaction was published, rejected ones included.
	if len(pub.published) != 3 {
		t.Errorf("published %d events, want 3", len(pub.published))
	}
}

func TestTimeEventRequest(t *testing.T) {
	p, _ := newProcessor(t)
	ctx := context.Background()

	out := p.Process(ctx, Request{Type: ReqTimeEvent, Date: "2025-02-01"})
	if out.Status != OutcomeCompleted {
		t.Fatalf("time_event: %+v", out)
	}
	if out.TimeEvent == nil || out.TimeEvent.DaysAdvanced != 17 {
		t.Errorf("time event result = %+v", out.TimeEvent)
	}

	// Reversal fails without touching state.
	out = p.Process(ctx, Request{Type: ReqTimeEvent, Date: "2025-01-01"})
	if out.Status != OutcomeFailed {
		t.Errorf("reversal outcome = %+v", out)
	}
	out = p.Process(ctx, Request{Type: ReqTimeEvent, Date: "not-a-date"})
	if out.Status != OutcomeFailed {
		t.Errorf("bad date outcome = %+v", out)
	}
}

func TestCreditRoundTripThroughProcessor(t *testing.T) {
	p, _ := newProcessor(t)
	ctx := context.Background()

	out := p.Process(ctx, Request{Type: ReqCreateCustomer, Name: "Max Mustermann"})
	out = p.Process(ctx, Request{Type: ReqCreateAccount, CustomerID: out.Customer.CustomerID})
	accountID := out.Account.AccountID

	out = p.Process(ctx, Request{Type: ReqCreditRequest, AccountID: accountID, Amount: money.MustParse("1000.00")})
	if out.Status != OutcomeCompleted {
		t.Fatalf("credit_request: %+v", out)
	}
	out = p.Process(ctx, Request{Type: ReqCreditRepayment, AccountID: accountID, Amount: money.MustParse("750.00")})
	if out.Status != OutcomeCompleted {
		t.Fatalf("credit_repayment: %+v", out)
	}
	if out.Transaction == nil || out.Transaction.PrincipalAmount == nil {
		t.Fatal("repayment record missing split")
	}
}
