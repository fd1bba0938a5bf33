package money

import (
	"errors"
	"time"
)

// Cadence is the interval between scheduled installments. Only WEEKLY and
// MONTHLY plans are charged by the engine; the longer intervals exist for
// display-only schedules on the account surface.
type Cadence string

const (
	CadenceWeekly     Cadence = "WEEKLY"
	CadenceMonthly    Cadence = "MONTHLY"
	CadenceQuarterly  Cadence = "QUARTERLY"
	CadenceSemiAnnual Cadence = "SEMI_ANNUAL"
	CadenceAnnual     Cadence = "ANNUAL"
)

var (
	ErrInvalidSplit   = errors.New("invalid_split")
	ErrInvalidCadence = errors.New("invalid_cadence")
)

// Valid reports whether the cadence is a known interval.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceWeekly, CadenceMonthly, CadenceQuarterly, CadenceSemiAnnual, CadenceAnnual:
		return true
	}
	return false
}

// Schedulable reports whether the engine may charge plans on this cadence.
func (c Cadence) Schedulable() bool {
	return c == CadenceWeekly || c == CadenceMonthly
}

func (c Cadence) months() int {
	switch c {
	case CadenceMonthly:
		return 1
	case CadenceQuarterly:
		return 3
	case CadenceSemiAnnual:
		return 6
	case CadenceAnnual:
		return 12
	}
	return 0
}

// SplitEvenly divides totalCents into n non-negative amounts that sum exactly
// to totalCents. Every amount is floor(totalCents/n); the first amount absorbs
// the remainder. The remainder is assigned once and never redistributed.
func SplitEvenly(totalCents int64, n int) ([]int64, error) {
	if n <= 0 || totalCents < 0 {
		return nil, ErrInvalidSplit
	}
	base := totalCents / int64(n)
	amounts := make([]int64, n)
	for i := range amounts {
		amounts[i] = base
	}
	amounts[0] = totalCents - base*int64(n-1)
	return amounts, nil
}

// AdvanceDate moves date forward by step cadence intervals. WEEKLY adds
// 7*step days. The monthly family adds calendar months preserving the
// day-of-month, clamped to the last valid day of the target month
// (Jan 31 + 1 month lands on Feb 28 or 29). Time-of-day and location are
// preserved exactly. This is the only place calendar math happens.
func AdvanceDate(date time.Time, cadence Cadence, step int) (time.Time, error) {
	if step < 0 {
		return time.Time{}, ErrInvalidCadence
	}
	if cadence == CadenceWeekly {
		return date.AddDate(0, 0, 7*step), nil
	}
	months := cadence.months()
	if months == 0 {
		return time.Time{}, ErrInvalidCadence
	}
	return addMonthsClamped(date, months*step), nil
}

// addMonthsClamped avoids time.AddDate's overflow behavior (Jan 31 + 1 month
// rolling into March) by clamping the day to the target month's length.
func addMonthsClamped(date time.Time, months int) time.Time {
	year, month, day := date.Date()
	total := int(month) - 1 + months
	targetYear := year + total/12
	targetMonth := total % 12
	if targetMonth < 0 {
		targetMonth += 12
		targetYear--
	}
	m := time.Month(targetMonth + 1)
	if last := lastDayOfMonth(targetYear, m); day > last {
		day = last
	}
	return time.Date(targetYear, m, day,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
