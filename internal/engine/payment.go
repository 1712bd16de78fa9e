package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stackbudget-ledger/internal/domain/shared"
)

// ErrNoPaymentPlan indicates a payment quote was requested for a stack
// without both a target amount and a due date
var ErrNoPaymentPlan = errors.New("stack has no target amount and due date")

// PaymentQuote is the per-period contribution plan toward a stack's goal.
// AmountPerPayment always rounds up to the next cent, so following the plan
// exactly never undershoots the goal; the final payment may be smaller.
type PaymentQuote struct {
	AmountPerPayment  int64 `json:"amount_per_payment"` // cents per period
	PaymentsRemaining int   `json:"payments_remaining"`
	DaysUntilDue      int   `json:"days_until_due"`
	IsOverdue         bool  `json:"is_overdue"`
}

// CalculatePayment computes the contribution needed each period to close the
// gap between currentAmount and targetAmount by dueDate. Payments start at
// firstPaymentDate when supplied, otherwise today. Pure: the caller provides
// the clock.
func CalculatePayment(targetAmount, currentAmount int64, dueDate time.Time, freq shared.Frequency, firstPaymentDate *time.Time, now time.Time) PaymentQuote {
	days := shared.DaysBetween(now, dueDate)
	quote := PaymentQuote{
		DaysUntilDue: days,
		IsOverdue:    days < 0,
	}

	needed := targetAmount - currentAmount
	if needed <= 0 || quote.IsOverdue {
		return quote
	}

	start := now
	if firstPaymentDate != nil {
		start = *firstPaymentDate
	}
	span := shared.DaysBetween(start, dueDate)

	periodDays := decimal.NewFromFloat(freq.PeriodLengthDays())
	payments := decimal.NewFromInt(int64(span)).Div(periodDays).Ceil().IntPart()
	if payments < 1 {
		payments = 1
	}

	quote.PaymentsRemaining = int(payments)
	quote.AmountPerPayment = decimal.NewFromInt(needed).
		Div(decimal.NewFromInt(payments)).
		Ceil().
		IntPart()
	return quote
}

// CalculatePaymentForStack quotes the contribution plan for a stored stack.
// An empty freq falls back to the stack's auto-allocate frequency, then to
// monthly.
func (s *Service) CalculatePaymentForStack(ctx context.Context, stackID uuid.UUID, freq shared.Frequency) (*PaymentQuote, error) {
	stk, err := s.stacks.GetByID(ctx, stackID)
	if err != nil {
		return nil, err
	}
	if !stk.HasTarget() || stk.TargetDueDate == nil {
		return nil, ErrNoPaymentPlan
	}

	if freq == "" {
		freq = stk.AutoAllocateFrequency
	}
	if freq == "" {
		freq = shared.FrequencyMonthly
	}
	if !freq.IsValid() {
		return nil, errors.New("invalid payment frequency: " + string(freq))
	}

	quote := CalculatePayment(*stk.TargetAmount, stk.CurrentAmount, *stk.TargetDueDate, freq, stk.AutoAllocateNextDate, s.now())
	return &quote, nil
}
