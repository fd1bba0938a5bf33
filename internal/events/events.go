package events

// Billing event types emitted by the financing engine.
const (
	EventPlanActivated  = "plan.activated"
	EventPlanPaidOff    = "plan.paid_off"
	EventPlanPaused     = "plan.paused"
	EventPlanResumed    = "plan.resumed"
	EventPlanCanceled   = "plan.canceled"
	EventPlanDefaulted  = "plan.defaulted"
	EventPaymentSettled = "payment.settled"
	EventChargeFailed   = "charge.failed"
)

// PlanPayload captures the minimal data needed to fan a plan transition out
// to downstream consumers.
type PlanPayload struct {
	PlanID  string `json:"plan_id"`
	OwnerID string `json:"owner_id"`
	Status  string `json:"status"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PlanPayload) ToMap() map[string]any {
	return map[string]any{
		"plan_id":  p.PlanID,
		"owner_id": p.OwnerID,
		"status":   p.Status,
	}
}

// PaymentPayload captures the minimal data needed to roll up a settled or
// failed payment.
type PaymentPayload struct {
	PlanID              string `json:"plan_id"`
	PaymentID           string `json:"payment_id,omitempty"`
	Type                string `json:"type,omitempty"`
	AmountCents         int64  `json:"amount_cents,omitempty"`
	ProcessorReference  string `json:"processor_reference,omitempty"`
	InstallmentSequence *int   `json:"installment_sequence,omitempty"`
	FailureReason       string `json:"failure_reason,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	payload := map[string]any{
		"plan_id": p.PlanID,
	}
	if p.PaymentID != "" {
		payload["payment_id"] = p.PaymentID
	}
	if p.Type != "" {
		payload["type"] = p.Type
	}
	if p.AmountCents != 0 {
		payload["amount_cents"] = p.AmountCents
	}
	if p.ProcessorReference != "" {
		payload["processor_reference"] = p.ProcessorReference
	}
	if p.InstallmentSequence != nil {
		payload["installment_sequence"] = *p.InstallmentSequence
	}
	if p.FailureReason != "" {
		payload["failure_reason"] = p.FailureReason
	}
	return payload
}
