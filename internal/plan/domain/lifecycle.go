package domain

import "time"

// Policy carries the lifecycle constants. MaxFailedAttempts is the number of
// consecutive failed charges on the current due installment that moves an
// ACTIVE plan to DEFAULTED.
type Policy struct {
	MaxFailedAttempts int
}

// DefaultPolicy returns the production lifecycle policy.
func DefaultPolicy() Policy {
	return Policy{MaxFailedAttempts: 3}
}

func (p Policy) withDefaults() Policy {
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = DefaultPolicy().MaxFailedAttempts
	}
	return p
}

// EvaluatePaidOff transitions an ACTIVE plan whose balance reached zero to
// PAID_OFF. Called after every ledger mutation; a no-op while the balance is
// positive.
func EvaluatePaidOff(plan *FinancingPlan) bool {
	if plan.Status == PlanStatusActive && plan.RemainingBalanceCents == 0 {
		plan.Status = PlanStatusPaidOff
		plan.NextChargeDate = nil
		return true
	}
	return false
}

// RecordChargeFailure increments the failure counter on an ACTIVE plan and
// transitions it to DEFAULTED when the policy threshold is reached. Remaining
// PENDING installments of a defaulted plan are marked SKIPPED. Returns true
// when the plan defaulted on this failure.
func RecordChargeFailure(plan *FinancingPlan, installments []Installment, policy Policy, now time.Time) (bool, error) {
	if plan.Status != PlanStatusActive {
		return false, ErrInvalidTransition
	}
	policy = policy.withDefaults()

	plan.FailedPaymentAttempts++
	failedAt := now
	plan.LastFailedChargeAt = &failedAt
	if plan.FailedPaymentAttempts < policy.MaxFailedAttempts {
		return false, nil
	}

	plan.Status = PlanStatusDefaulted
	plan.NextChargeDate = nil
	skipPending(installments)
	return true, nil
}

// Pause places an ACTIVE plan on administrative hold. A paused plan is never
// due and accrues no failures.
func Pause(plan *FinancingPlan) error {
	if plan.Status != PlanStatusActive {
		return ErrInvalidTransition
	}
	plan.Status = PlanStatusPaused
	return nil
}

// Resume returns a PAUSED plan to ACTIVE. The next charge date is preserved
// even when it already passed, so the plan catches up with a single charge on
// the next scheduler pass instead of silently skipping the missed period.
func Resume(plan *FinancingPlan) error {
	if plan.Status != PlanStatusPaused {
		return ErrInvalidTransition
	}
	plan.Status = PlanStatusActive
	return nil
}

// Cancel terminates an ACTIVE or PAUSED plan. Already-succeeded payments are
// untouched; remaining PENDING installments are marked SKIPPED.
func Cancel(plan *FinancingPlan, installments []Installment) error {
	if plan.Status != PlanStatusActive && plan.Status != PlanStatusPaused {
		return ErrInvalidTransition
	}
	plan.Status = PlanStatusCanceled
	plan.NextChargeDate = nil
	skipPending(installments)
	return nil
}

func skipPending(installments []Installment) {
	for i := range installments {
		if installments[i].Status == InstallmentStatusPending {
			installments[i].Status = InstallmentStatusSkipped
		}
	}
}
