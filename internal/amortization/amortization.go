// Package amortization computes fixed-payment loan schedules. Pure
// functions, exact decimal arithmetic, deterministic for given inputs.
package amortization

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/haifischbank/backoffice/internal/models"
	"github.com/haifischbank/backoffice/internal/money"
)

var (
	ErrNonPositivePrincipal = errors.New("amortization: principal must be positive")
	ErrNonPositiveTerm      = errors.New("amortization: term must be positive")
	ErrNegativeRate         = errors.New("amortization: rate must not be negative")
)

// Schedule returns the fixed monthly payment and the full payment plan for
// a principal at an annual rate over termMonths.
//
// The payment is PMT = P*r*(1+r)^n / ((1+r)^n - 1) with r the monthly
// rate, rounded half-up to the minor unit. Each entry's interest is the
// rounded per-period interest on the running balance; the final entry's
// principal portion absorbs cumulative rounding so the schedule ends at
// exactly zero and the principal portions sum to exactly P.
func Schedule(principal, annualRate decimal.Decimal, termMonths int) (decimal.Decimal, []models.ScheduleEntry, error) {
	if !money.IsPositive(principal) {
		return decimal.Zero, nil, ErrNonPositivePrincipal
	}
	if termMonths <= 0 {
		return decimal.Zero, nil, ErrNonPositiveTerm
	}
	if money.IsNegative(annualRate) {
		return decimal.Zero, nil, ErrNegativeRate
	}

	monthlyRate := annualRate.Div(decimal.NewFromInt(12))
	n := decimal.NewFromInt(int64(termMonths))

	var payment decimal.Decimal
	if monthlyRate.IsZero() {
		payment = money.Round2(principal.Div(n))
	} else {
		compound := decimal.NewFromInt(1).Add(monthlyRate).Pow(n)
		payment = money.Round2(principal.Mul(monthlyRate).Mul(compound).Div(compound.Sub(decimal.NewFromInt(1))))
	}

	schedule := make([]models.ScheduleEntry, 0, termMonths)
	remaining := principal
	for month := 1; month <= termMonths; month++ {
		interest := money.Round2(remaining.Mul(monthlyRate))
		principalPart := payment.Sub(interest)
		rowPayment := payment
		if month == termMonths || principalPart.GreaterThan(remaining) {
			// Force the last row to clear the residual exactly.
			principalPart = remaining
			rowPayment = principalPart.Add(interest)
		}
		remaining = remaining.Sub(principalPart)
		schedule = append(schedule, models.ScheduleEntry{
			Month:     month,
			Payment:   rowPayment,
			Principal: principalPart,
			Interest:  interest,
			Remaining: remaining,
		})
	}

	return payment, schedule, nil
}
