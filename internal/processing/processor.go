// Package processing is the engine's single entry point for operational
// requests. It serializes all mutations behind one mutex, isolates batch
// items from each other, and publishes a TransactionCompleted event for
// every finalized record.
package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/accounts"
	"github.com/haifischbank/backoffice/internal/credit"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
	"github.com/haifischbank/backoffice/internal/models/events"
	"github.com/haifischbank/backoffice/internal/timedriver"
)

// Request kinds accepted by Process.
const (
	ReqTimeEvent       = "time_event"
	ReqCreateCustomer  = "create_customer"
	ReqUpdateCustomer  = "update_customer"
	ReqCreateAccount   = "create_account"
	ReqTransferOut     = "transfer_out"
	ReqTransferIn      = "transfer_in"
	ReqCreditRequest   = "credit_request"
	ReqCreditRepayment = "credit_repayment"
	ReqCloseAccount    = "close_account"
)

var ErrUnknownRequest = errors.New("processing: unknown request type")

// Request is the union of all operation payloads. Type selects the
// operation; the other fields are read as that operation needs them.
type Request struct {
	Type string `json:"type"`

	// time_event
	Date string `json:"date,omitempty"`

	// create_customer / update_customer
	Name      string            `json:"name,omitempty"`
	Address   string            `json:"address,omitempty"`
	BirthDate string            `json:"birth_date,omitempty"`
	Updates   map[string]string `json:"updates,omitempty"`

	CustomerID string `json:"customer_id,omitempty"`
	AccountID  string `json:"account_id,omitempty"`

	// transfer_out / transfer_in
	CounterpartyIBAN string `json:"counterparty_iban,omitempty"`

	Amount decimal.Decimal `json:"amount,omitempty"`
}

// Outcome statuses. Completed and rejected both mean the request was
// processed and recorded; failed means it could not be processed at all.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Outcome is the per-request result.
type Outcome struct {
	Status      string                 `json:"status"`
	Transaction *models.Transaction    `json:"transaction,omitempty"`
	Customer    *models.Customer       `json:"customer,omitempty"`
	Account     *models.DepositAccount `json:"account,omitempty"`
	Credit      *models.CreditAccount  `json:"credit_account,omitempty"`
	TimeEvent   *timedriver.Result     `json:"time_event,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// BatchResult aggregates a processed batch. Items are reported in input
// order.
type BatchResult struct {
	Processed int       `json:"processed"`
	Completed int       `json:"completed"`
	Rejected  int       `json:"rejected"`
	Failed    int       `json:"failed"`
	Items     []Outcome `json:"items"`
}

// Processor serializes every operation. The financial core assumes
// strictly sequential execution, so the mutex here is the only
// concurrency control above the stores.
type Processor struct {
	mu        sync.Mutex
	store     interfaces.Store
	accounts  *accounts.Service
	credits   *credit.Engine
	driver    *timedriver.Driver
	directory interfaces.CustomerDirectory
	publisher interfaces.EventPublisher
	topic     string
	log       *zap.Logger
}

func New(store interfaces.Store, accountsSvc *accounts.Service, credits *credit.Engine,
	driver *timedriver.Driver, directory interfaces.CustomerDirectory,
	publisher interfaces.EventPublisher, topic string, log *zap.Logger) *Processor {
	return &Processor{
		store:     store,
		accounts:  accountsSvc,
		credits:   credits,
		driver:    driver,
		directory: directory,
		publisher: publisher,
		topic:     topic,
		log:       log,
	}
}

// Process executes one request under the engine lock.
func (p *Processor) Process(ctx context.Context, req Request) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.process(ctx, req)
}

// ProcessBatch executes the requests in order. Items are isolated: a
// failed or rejected item never stops the rest of the batch.
func (p *Processor) ProcessBatch(ctx context.Context, reqs []Request) BatchResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := BatchResult{Items: make([]Outcome, 0, len(reqs))}
	for _, req := range reqs {
		out := p.process(ctx, req)
		res.Items = append(res.Items, out)
		res.Processed++
		switch out.Status {
		case OutcomeCompleted:
			res.Completed++
		case OutcomeRejected:
			res.Rejected++
		default:
			res.Failed++
		}
	}
	return res
}

func (p *Processor) process(ctx context.Context, req Request) Outcome {
	switch req.Type {
	case ReqTimeEvent:
		return p.processTimeEvent(ctx, req)
	case ReqCreateCustomer:
		c, err := p.directory.CreateCustomer(ctx, req.Name, req.Address, req.BirthDate)
		if err != nil {
			return failed(err)
		}
		return Outcome{Status: OutcomeCompleted, Customer: c}
	case ReqUpdateCustomer:
		c, err := p.directory.UpdateCustomer(ctx, req.CustomerID, req.Updates)
		if err != nil {
			return failed(err)
		}
		return Outcome{Status: OutcomeCompleted, Customer: c}
	case ReqCreateAccount:
		account, cr, err := p.accounts.Open(ctx, req.CustomerID)
		if err != nil {
			return failed(err)
		}
		return Outcome{Status: OutcomeCompleted, Account: account, Credit: cr}
	case ReqTransferOut:
		ts, err := p.now(ctx)
		if err != nil {
			return failed(err)
		}
		tx, err := p.accounts.TransferOut(ctx, req.AccountID, req.CounterpartyIBAN, req.Amount, ts)
		return p.finalize(tx, err)
	case ReqTransferIn:
		ts, err := p.now(ctx)
		if err != nil {
			return failed(err)
		}
		tx, err := p.accounts.Deposit(ctx, req.AccountID, req.CounterpartyIBAN, req.Amount, ts)
		return p.finalize(tx, err)
	case ReqCreditRequest:
		return p.processCreditRequest(ctx, req)
	case ReqCreditRepayment:
		ts, err := p.now(ctx)
		if err != nil {
			return failed(err)
		}
		tx, err := p.credits.Repay(ctx, req.AccountID, req.Amount, ts)
		return p.finalize(tx, err)
	case ReqCloseAccount:
		ts, err := p.now(ctx)
		if err != nil {
			return failed(err)
		}
		if err := p.accounts.Close(ctx, req.AccountID, ts); err != nil {
			return failed(err)
		}
		return Outcome{Status: OutcomeCompleted}
	default:
		return failed(fmt.Errorf("%w: %q", ErrUnknownRequest, req.Type))
	}
}

func (p *Processor) processTimeEvent(ctx context.Context, req Request) Outcome {
	target, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return failed(fmt.Errorf("parse date %q: %w", req.Date, err))
	}
	res, err := p.driver.ProcessTimeEvent(ctx, target)
	if err != nil {
		return failed(err)
	}
	p.publish(res.Event)
	return Outcome{Status: OutcomeCompleted, TimeEvent: &res, Transaction: &res.Event}
}

func (p *Processor) processCreditRequest(ctx context.Context, req Request) Outcome {
	ts, err := p.now(ctx)
	if err != nil {
		return failed(err)
	}
	disburse, fee, err := p.credits.Issue(ctx, req.AccountID, req.Amount, ts)
	if err != nil {
		return failed(err)
	}
	p.publish(disburse)
	p.publish(fee)
	return Outcome{Status: OutcomeCompleted, Transaction: &disburse}
}

// finalize maps a (transaction, error) pair onto an outcome and publishes
// any recorded transaction. A recorded rejection is a processed request,
// not a failure.
func (p *Processor) finalize(tx models.Transaction, err error) Outcome {
	if err != nil {
		return failed(err)
	}
	p.publish(tx)
	if tx.Status == models.TxRejected {
		return Outcome{Status: OutcomeRejected, Transaction: &tx, Error: tx.Reason}
	}
	return Outcome{Status: OutcomeCompleted, Transaction: &tx}
}

func (p *Processor) publish(tx models.Transaction) {
	if p.publisher == nil || tx.TransactionID == "" {
		return
	}
	event := events.TransactionCompleted{
		TransactionID:   tx.TransactionID,
		Kind:            string(tx.Kind),
		Status:          string(tx.Status),
		AccountID:       tx.AccountID,
		CreditAccountID: tx.CreditAccountID,
		Amount:          tx.Amount,
		OccurredAt:      tx.Timestamp,
	}
	if err := p.publisher.Publish(p.topic, event); err != nil {
		p.log.Warn("event publish failed",
			zap.String("transaction_id", tx.TransactionID), zap.Error(err))
	}
}

func (p *Processor) now(ctx context.Context) (time.Time, error) {
	ts, err := p.store.GetSystemDate(ctx)
	if errors.Is(err, interfaces.ErrNotFound) {
		return time.Time{}, errors.New("processing: system clock not initialized, send a time_event first")
	}
	return ts, err
}

func failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Error: err.Error()}
}
