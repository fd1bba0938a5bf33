package domain

// Plan ledger application. These functions mutate the in-memory plan and its
// installments; callers persist the result inside the same transaction that
// holds the plan's row lock.

// ApplyScheduledPayment applies a SUCCEEDED scheduled charge to the
// installment due at the plan's next charge date. The installment is matched
// by position (earliest PENDING), never by a caller-chosen sequence, so due
// installments cannot be skipped. Installments must be ordered by sequence.
func ApplyScheduledPayment(plan *FinancingPlan, installments []Installment, payment *PlanPayment) error {
	if payment.Status != PaymentStatusSucceeded {
		return ErrPaymentNotSucceeded
	}
	if plan.Status != PlanStatusActive {
		return ErrInvalidTransition
	}

	idx := firstPendingIndex(installments)
	if idx < 0 {
		return ErrNoPendingInstallment
	}
	installment := &installments[idx]
	if payment.AmountCents != installment.AmountCents {
		return ErrAmountMismatch
	}

	paidAt := payment.CreatedAt
	installment.Status = InstallmentStatusPaid
	installment.PaidAt = &paidAt
	sequence := installment.Sequence
	payment.AppliedInstallmentSequence = &sequence

	plan.RemainingBalanceCents -= payment.AmountCents
	plan.FailedPaymentAttempts = 0
	plan.NextChargeDate = FirstDueDate(installments)
	return nil
}

// ApplyPrincipalPayment applies a SUCCEEDED manual principal payment against
// the remaining balance without satisfying a specific installment. When the
// remaining pending schedule overshoots the new balance, earliest PENDING
// installments are retired until the rest of the schedule exactly covers what
// is still owed: extra payments shorten the tail rather than skip the front.
func ApplyPrincipalPayment(plan *FinancingPlan, installments []Installment, payment *PlanPayment) error {
	if payment.Status != PaymentStatusSucceeded {
		return ErrPaymentNotSucceeded
	}
	if plan.Status != PlanStatusActive {
		return ErrInvalidTransition
	}
	if payment.AmountCents <= 0 {
		return ErrInvalidPlanParameters
	}
	if payment.AmountCents > plan.RemainingBalanceCents {
		return ErrAmountExceedsBalance
	}

	plan.RemainingBalanceCents -= payment.AmountCents
	plan.FailedPaymentAttempts = 0

	var pendingTotal int64
	for _, installment := range installments {
		if installment.Status == InstallmentStatusPending {
			pendingTotal += installment.AmountCents
		}
	}

	paidAt := payment.CreatedAt
	for i := range installments {
		installment := &installments[i]
		if installment.Status != InstallmentStatusPending {
			continue
		}
		if pendingTotal-installment.AmountCents < plan.RemainingBalanceCents {
			break
		}
		installment.Status = InstallmentStatusPaid
		installment.PaidAt = &paidAt
		pendingTotal -= installment.AmountCents
	}

	plan.NextChargeDate = FirstDueDate(installments)
	return nil
}

// RecomputeBalance derives the remaining balance from the payment ledger.
// Only SUCCEEDED payments count; the cached column is never trusted.
func RecomputeBalance(plan *FinancingPlan, payments []PlanPayment) int64 {
	balance := plan.TotalAmountCents - plan.DownPaymentCents
	for _, payment := range payments {
		if payment.Status == PaymentStatusSucceeded {
			balance -= payment.AmountCents
		}
	}
	return balance
}

// VerifyBalance compares the cached balance against the ledger-derived value.
// A mismatch means a drift bug and aborts the mutation.
func VerifyBalance(plan *FinancingPlan, payments []PlanPayment) error {
	recomputed := RecomputeBalance(plan, payments)
	if recomputed < 0 || recomputed != plan.RemainingBalanceCents {
		return ErrBalanceMismatch
	}
	return nil
}

func firstPendingIndex(installments []Installment) int {
	for i, installment := range installments {
		if installment.Status == InstallmentStatusPending {
			return i
		}
	}
	return -1
}
