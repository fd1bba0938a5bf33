package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/tenor/internal/money"
)

func TestBuildScheduleSplitsWithoutDrift(t *testing.T) {
	anchor := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
	installments, err := BuildSchedule(ScheduleParams{
		TotalAmountCents: 100000,
		DownPaymentCents: 0,
		Cadence:          money.CadenceMonthly,
		TermCount:        3,
		AnchorDate:       anchor,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(installments) != 3 {
		t.Fatalf("installments = %d, want 3", len(installments))
	}

	wantAmounts := []int64{33334, 33333, 33333}
	var sum int64
	for i, installment := range installments {
		if installment.Sequence != i+1 {
			t.Fatalf("sequence[%d] = %d, want %d", i, installment.Sequence, i+1)
		}
		if installment.AmountCents != wantAmounts[i] {
			t.Fatalf("amount[%d] = %d, want %d", i, installment.AmountCents, wantAmounts[i])
		}
		if installment.Status != InstallmentStatusPending {
			t.Fatalf("status[%d] = %s, want PENDING", i, installment.Status)
		}
		wantDue := anchor.AddDate(0, i+1, 0)
		if !installment.DueDate.Equal(wantDue) {
			t.Fatalf("due[%d] = %v, want %v", i, installment.DueDate, wantDue)
		}
		sum += installment.AmountCents
	}
	if sum != 100000 {
		t.Fatalf("sum = %d, want 100000", sum)
	}
}

func TestBuildScheduleClampsMonthEnd(t *testing.T) {
	anchor := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	installments, err := BuildSchedule(ScheduleParams{
		TotalAmountCents: 40000,
		DownPaymentCents: 0,
		Cadence:          money.CadenceMonthly,
		TermCount:        4,
		AnchorDate:       anchor,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	wantDays := []time.Time{
		time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, installment := range installments {
		if !installment.DueDate.Equal(wantDays[i]) {
			t.Fatalf("due[%d] = %v, want %v", i, installment.DueDate, wantDays[i])
		}
	}
}

func TestBuildScheduleWeekly(t *testing.T) {
	anchor := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	installments, err := BuildSchedule(ScheduleParams{
		TotalAmountCents: 10000,
		DownPaymentCents: 2000,
		Cadence:          money.CadenceWeekly,
		TermCount:        4,
		AnchorDate:       anchor,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i, installment := range installments {
		wantDue := anchor.AddDate(0, 0, 7*(i+1))
		if !installment.DueDate.Equal(wantDue) {
			t.Fatalf("due[%d] = %v, want %v", i, installment.DueDate, wantDue)
		}
		if installment.AmountCents != 2000 {
			t.Fatalf("amount[%d] = %d, want 2000", i, installment.AmountCents)
		}
	}
}

func TestBuildScheduleFullyDownPaid(t *testing.T) {
	installments, err := BuildSchedule(ScheduleParams{
		TotalAmountCents: 50000,
		DownPaymentCents: 50000,
		Cadence:          money.CadenceMonthly,
		TermCount:        4,
		AnchorDate:       time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(installments) != 0 {
		t.Fatalf("installments = %d, want empty schedule", len(installments))
	}
	if FirstDueDate(installments) != nil {
		t.Fatalf("first due date should be nil for empty schedule")
	}
}

func TestBuildScheduleRejectsInvalidParams(t *testing.T) {
	anchor := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		params  ScheduleParams
		wantErr error
	}{
		{
			name: "negative total",
			params: ScheduleParams{
				TotalAmountCents: -1, Cadence: money.CadenceMonthly, TermCount: 3, AnchorDate: anchor,
			},
			wantErr: ErrInvalidPlanParameters,
		},
		{
			name: "down payment exceeds total",
			params: ScheduleParams{
				TotalAmountCents: 1000, DownPaymentCents: 2000, Cadence: money.CadenceMonthly, TermCount: 3, AnchorDate: anchor,
			},
			wantErr: ErrInvalidPlanParameters,
		},
		{
			name: "zero terms",
			params: ScheduleParams{
				TotalAmountCents: 1000, Cadence: money.CadenceMonthly, TermCount: 0, AnchorDate: anchor,
			},
			wantErr: ErrInvalidPlanParameters,
		},
		{
			name: "missing anchor",
			params: ScheduleParams{
				TotalAmountCents: 1000, Cadence: money.CadenceMonthly, TermCount: 3,
			},
			wantErr: ErrInvalidPlanParameters,
		},
		{
			name: "display-only cadence",
			params: ScheduleParams{
				TotalAmountCents: 1000, Cadence: money.CadenceQuarterly, TermCount: 3, AnchorDate: anchor,
			},
			wantErr: ErrUnsupportedCadence,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildSchedule(tc.params); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
