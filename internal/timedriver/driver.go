// Package timedriver advances the system clock and runs everything the
// passage of time triggers: daily penalty accrual, monthly credit
// collection and write-off checks, and quarterly account fees.
//
// The clock only moves forward and always steps one day at a time, so a
// single event that jumps several months still runs every month-start
// cycle in between.
package timedriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/haifischbank/backoffice/internal/accounts"
	"github.com/haifischbank/backoffice/internal/credit"
	"github.com/haifischbank/backoffice/internal/idgen"
	"github.com/haifischbank/backoffice/internal/interfaces"
	"github.com/haifischbank/backoffice/internal/models"
)

var ErrTimeReversal = errors.New("timedriver: target date is before the current system date")

type Driver struct {
	store    interfaces.Store
	accounts *accounts.Service
	credits  *credit.Engine
	ids      interfaces.IDGenerator
	log      *zap.Logger
}

func New(store interfaces.Store, accountsSvc *accounts.Service, credits *credit.Engine,
	ids interfaces.IDGenerator, log *zap.Logger) *Driver {
	return &Driver{store: store, accounts: accountsSvc, credits: credits, ids: ids, log: log}
}

// Result summarizes one processed time event.
type Result struct {
	Event             models.Transaction `json:"event"`
	From              time.Time          `json:"from"`
	To                time.Time          `json:"to"`
	DaysAdvanced      int                `json:"days_advanced"`
	PenaltiesAccrued  int                `json:"penalties_accrued"`
	PaymentsCollected int                `json:"payments_collected"`
	PaymentsMissed    int                `json:"payments_missed"`
	WriteOffs         int                `json:"write_offs"`
	FeesCharged       int                `json:"fees_charged"`
}

// EnsureClock sets the system date if no clock exists yet. An existing
// clock is never moved.
func (d *Driver) EnsureClock(ctx context.Context, start time.Time) error {
	_, err := d.store.GetSystemDate(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Errorf("read system date: %w", err)
	}
	return d.store.SetSystemDate(ctx, midnight(start))
}

// Current returns the system date.
func (d *Driver) Current(ctx context.Context) (time.Time, error) {
	return d.store.GetSystemDate(ctx)
}

// ProcessTimeEvent moves the clock to the target date. The target must
// not lie before the current date; processing the current date again is a
// no-op because every periodic action is idempotent for its period.
func (d *Driver) ProcessTimeEvent(ctx context.Context, target time.Time) (Result, error) {
	target = midnight(target)
	var res Result
	current, err := d.store.GetSystemDate(ctx)
	if errors.Is(err, interfaces.ErrNotFound) {
		// First event establishes the epoch without running any cycles.
		if err := d.store.SetSystemDate(ctx, target); err != nil {
			return res, err
		}
		res.From, res.To = target, target
		res.Event = models.NewTimeEvent(d.ids.NewID(idgen.PrefixTimeEvent), 0, target).
			Complete(decimal.Zero, decimal.Zero)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read system date: %w", err)
	}
	if target.Before(current) {
		return res, fmt.Errorf("%w: %s < %s",
			ErrTimeReversal, target.Format("2006-01-02"), current.Format("2006-01-02"))
	}

	res.From = current
	res.To = target
	for day := current.AddDate(0, 0, 1); !day.After(target); day = day.AddDate(0, 0, 1) {
		if err := d.runDay(ctx, day, &res); err != nil {
			return res, err
		}
		if err := d.store.SetSystemDate(ctx, day); err != nil {
			return res, err
		}
		res.DaysAdvanced++
	}

	res.Event = models.NewTimeEvent(d.ids.NewID(idgen.PrefixTimeEvent),
		int64(res.DaysAdvanced), target).Complete(decimal.Zero, decimal.Zero)
	d.log.Info("time event processed",
		zap.Time("from", res.From), zap.Time("to", res.To),
		zap.Int("days", res.DaysAdvanced),
		zap.Int("collected", res.PaymentsCollected),
		zap.Int("missed", res.PaymentsMissed),
		zap.Int("write_offs", res.WriteOffs),
		zap.Int("fees", res.FeesCharged))
	return res, nil
}

// runDay executes one calendar day: penalty accrual for every blocked
// credit, and on the first of the month the collection, write-off, and
// fee sweeps.
func (d *Driver) runDay(ctx context.Context, day time.Time, res *Result) error {
	credits, err := d.store.ListCredits(ctx)
	if err != nil {
		return fmt.Errorf("list credits: %w", err)
	}
	for _, cr := range credits {
		if _, accrued, err := d.credits.AccruePenalty(ctx, cr.AccountID, day); err != nil {
			return err
		} else if accrued {
			res.PenaltiesAccrued++
		}
	}

	if day.Day() != 1 {
		return nil
	}

	for _, cr := range credits {
		tx, collected, err := d.credits.CollectMonthly(ctx, cr.AccountID, day)
		if err != nil {
			return err
		}
		switch {
		case collected:
			res.PaymentsCollected++
		case tx.Status == models.TxRejected:
			res.PaymentsMissed++
		}
		written, err := d.credits.WriteOff(ctx, cr.AccountID, day)
		if err != nil {
			return err
		}
		if written {
			res.WriteOffs++
		}
	}

	accountList, err := d.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accountList {
		_, charged, err := d.accounts.ChargeQuarterlyFee(ctx, a.AccountID, day)
		if err != nil {
			return err
		}
		if charged {
			res.FeesCharged++
		}
	}
	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
