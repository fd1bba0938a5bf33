package domain

import (
	"time"

	"github.com/smallbiznis/tenor/internal/money"
)

// ScheduleParams is the input to the amortization generator. AnchorDate is
// the date the down payment cleared; the down payment itself is sequence 0
// and never scheduled.
type ScheduleParams struct {
	TotalAmountCents int64
	DownPaymentCents int64
	Cadence          money.Cadence
	TermCount        int
	AnchorDate       time.Time
}

func (p ScheduleParams) validate() error {
	if p.TotalAmountCents < 0 || p.DownPaymentCents < 0 {
		return ErrInvalidPlanParameters
	}
	if p.DownPaymentCents > p.TotalAmountCents {
		return ErrInvalidPlanParameters
	}
	if p.TermCount < 1 {
		return ErrInvalidPlanParameters
	}
	if p.AnchorDate.IsZero() {
		return ErrInvalidPlanParameters
	}
	if !p.Cadence.Schedulable() {
		return ErrUnsupportedCadence
	}
	return nil
}

// BuildSchedule generates the immutable installment schedule for a new plan.
// Installment n is due at AdvanceDate(anchor, cadence, n) for n in
// 1..termCount, amounts split evenly with the remainder cent on the first
// installment. A fully-down-paid plan gets an empty schedule and is
// immediately eligible for PAID_OFF. One-shot call, no retry semantics.
func BuildSchedule(params ScheduleParams) ([]Installment, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	financedCents := params.TotalAmountCents - params.DownPaymentCents
	if financedCents == 0 {
		return []Installment{}, nil
	}

	amounts, err := money.SplitEvenly(financedCents, params.TermCount)
	if err != nil {
		return nil, ErrInvalidPlanParameters
	}

	installments := make([]Installment, 0, params.TermCount)
	for i, amount := range amounts {
		sequence := i + 1
		dueDate, err := money.AdvanceDate(params.AnchorDate, params.Cadence, sequence)
		if err != nil {
			return nil, ErrUnsupportedCadence
		}
		installments = append(installments, Installment{
			Sequence:    sequence,
			DueDate:     dueDate,
			AmountCents: amount,
			Status:      InstallmentStatusPending,
		})
	}
	return installments, nil
}

// FirstDueDate returns the due date of the earliest PENDING installment, or
// nil when none remain.
func FirstDueDate(installments []Installment) *time.Time {
	for _, installment := range installments {
		if installment.Status == InstallmentStatusPending {
			due := installment.DueDate
			return &due
		}
	}
	return nil
}
