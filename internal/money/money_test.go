package money

import (
	"errors"
	"testing"
	"time"
)

func TestSplitEvenlyNoDrift(t *testing.T) {
	totals := []int64{0, 1, 2, 999, 1000, 100000, 123457, 999999999}
	for _, total := range totals {
		for n := 1; n <= 60; n++ {
			amounts, err := SplitEvenly(total, n)
			if err != nil {
				t.Fatalf("split %d into %d: %v", total, n, err)
			}
			if len(amounts) != n {
				t.Fatalf("split %d into %d: got %d amounts", total, n, len(amounts))
			}
			var sum int64
			for i, amount := range amounts {
				if amount < 0 {
					t.Fatalf("split %d into %d: negative amount at %d", total, n, i)
				}
				if i > 0 && amount != total/int64(n) {
					t.Fatalf("split %d into %d: amount %d at %d, want base %d", total, n, amount, i, total/int64(n))
				}
				sum += amount
			}
			if sum != total {
				t.Fatalf("split %d into %d: sum %d", total, n, sum)
			}
		}
	}
}

func TestSplitEvenlyRemainderGoesFirst(t *testing.T) {
	amounts, err := SplitEvenly(1000, 3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if amounts[0] != 334 || amounts[1] != 333 || amounts[2] != 333 {
		t.Fatalf("got %v, want [334 333 333]", amounts)
	}
}

func TestSplitEvenlyRejectsBadInput(t *testing.T) {
	if _, err := SplitEvenly(100, 0); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("n=0: got %v", err)
	}
	if _, err := SplitEvenly(100, -1); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("n=-1: got %v", err)
	}
	if _, err := SplitEvenly(-1, 3); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("total=-1: got %v", err)
	}
}

func TestAdvanceDateWeekly(t *testing.T) {
	anchor := time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)
	got, err := AdvanceDate(anchor, CadenceWeekly, 3)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	want := time.Date(2024, time.February, 5, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAdvanceDateMonthlyClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name   string
		anchor time.Time
		step   int
		want   time.Time
	}{
		{
			name:   "jan31 leap year",
			anchor: time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			step:   1,
			want:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "jan31 non-leap",
			anchor: time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC),
			step:   1,
			want:   time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "jan31 to april",
			anchor: time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			step:   3,
			want:   time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "mid-month unaffected",
			anchor: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
			step:   2,
			want:   time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "year rollover",
			anchor: time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC),
			step:   3,
			want:   time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AdvanceDate(tc.anchor, CadenceMonthly, tc.step)
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAdvanceDateTwelveMonthsLandsOneYearLater(t *testing.T) {
	anchor := time.Date(2023, time.June, 14, 18, 45, 12, 500, time.UTC)
	got, err := AdvanceDate(anchor, CadenceMonthly, 12)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	want := anchor.AddDate(1, 0, 0)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAdvanceDatePreservesTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	anchor := time.Date(2024, time.January, 31, 23, 59, 58, 123, loc)
	got, err := AdvanceDate(anchor, CadenceMonthly, 1)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.Hour() != 23 || got.Minute() != 59 || got.Second() != 58 || got.Nanosecond() != 123 {
		t.Fatalf("time-of-day not preserved: %v", got)
	}
	if got.Location() != loc {
		t.Fatalf("location not preserved: %v", got.Location())
	}
}

func TestAdvanceDateDisplayCadences(t *testing.T) {
	anchor := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	got, err := AdvanceDate(anchor, CadenceQuarterly, 1)
	if err != nil {
		t.Fatalf("advance quarterly: %v", err)
	}
	want := time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("quarterly: got %v, want %v", got, want)
	}

	got, err = AdvanceDate(anchor, CadenceAnnual, 1)
	if err != nil {
		t.Fatalf("advance annual: %v", err)
	}
	want = time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("annual: got %v, want %v", got, want)
	}
}

func TestAdvanceDateRejectsUnknownCadence(t *testing.T) {
	if _, err := AdvanceDate(time.Now(), Cadence("DAILY"), 1); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("got %v", err)
	}
	if _, err := AdvanceDate(time.Now(), CadenceMonthly, -1); !errors.Is(err, ErrInvalidCadence) {
		t.Fatalf("negative step: got %v", err)
	}
}
