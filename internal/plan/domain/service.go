package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenor/internal/money"
	"gorm.io/gorm"
)

// CreateRequest creates a plan at checkout confirmation, after the down
// payment succeeded.
type CreateRequest struct {
	OwnerID               string        `json:"owner_id"`
	OrderID               string        `json:"order_id"`
	Currency              string        `json:"currency"`
	TotalAmountCents      int64         `json:"total_amount_cents"`
	DownPaymentCents      int64         `json:"down_payment_cents"`
	Cadence               money.Cadence `json:"cadence"`
	TermCount             int           `json:"term_count"`
	AnchorDate            time.Time     `json:"anchor_date"`
	SavedPaymentMethodRef string        `json:"saved_payment_method_ref"`
}

// InstallmentResponse is one schedule row on the plan surface.
type InstallmentResponse struct {
	Sequence    int        `json:"sequence"`
	DueDate     time.Time  `json:"due_date"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// PaymentResponse is one ledger row on the plan surface.
type PaymentResponse struct {
	ID                         string     `json:"id"`
	Type                       string     `json:"type"`
	Status                     string     `json:"status"`
	AmountCents                int64      `json:"amount_cents"`
	ProcessorReference         string     `json:"processor_reference"`
	AppliedInstallmentSequence *int       `json:"applied_installment_sequence,omitempty"`
	FailureReason              *string    `json:"failure_reason,omitempty"`
	CreatedAt                  time.Time  `json:"created_at"`
}

// Response is the plan with its schedule and payment history.
type Response struct {
	ID                    string                `json:"id"`
	OwnerID               string                `json:"owner_id"`
	OrderID               string                `json:"order_id"`
	Status                string                `json:"status"`
	Currency              string                `json:"currency"`
	TotalAmountCents      int64                 `json:"total_amount_cents"`
	DownPaymentCents      int64                 `json:"down_payment_cents"`
	RemainingBalanceCents int64                 `json:"remaining_balance_cents"`
	Cadence               string                `json:"cadence"`
	TermCount             int                   `json:"term_count"`
	NextChargeDate        *time.Time            `json:"next_charge_date,omitempty"`
	FailedPaymentAttempts int                   `json:"failed_payment_attempts"`
	LastFailedChargeAt    *time.Time            `json:"last_failed_charge_at,omitempty"`
	Schedule              []InstallmentResponse `json:"schedule"`
	Payments              []PaymentResponse     `json:"payments"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// PrincipalIntentResponse is handed to the storefront so the shopper can
// confirm an ad-hoc principal payment with the processor.
type PrincipalIntentResponse struct {
	PlanID             string `json:"plan_id"`
	AmountCents        int64  `json:"amount_cents"`
	ClientSecret       string `json:"client_secret"`
	ProcessorReference string `json:"processor_reference"`
}

// ChargeOutcome reports what a recorded scheduler result did to the plan.
type ChargeOutcome struct {
	PlanID    snowflake.ID
	Duplicate bool
	PaidOff   bool
	Defaulted bool
}

// Service is the plan command surface. The Tx-suffixed methods run inside a
// caller transaction that already holds the plan's row lock; the charge
// scheduler feeds its per-plan results through them.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	CreatePrincipalIntent(ctx context.Context, id string, amountCents int64) (*PrincipalIntentResponse, error)
	ConfirmPrincipalPayment(ctx context.Context, id string, processorReference string) (*Response, error)
	Pause(ctx context.Context, id string) (*Response, error)
	Resume(ctx context.Context, id string) (*Response, error)
	Cancel(ctx context.Context, id string) (*Response, error)

	RecordPaymentTx(ctx context.Context, tx *gorm.DB, plan *FinancingPlan, payment *PlanPayment) (*ChargeOutcome, error)
	RecordChargeFailureTx(ctx context.Context, tx *gorm.DB, plan *FinancingPlan, payment *PlanPayment, now time.Time) (*ChargeOutcome, error)
}

// ParseID parses a plan id from its string form.
func ParseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidPlanID
	}
	return id, nil
}

var (
	ErrInvalidPlanParameters = errors.New("invalid_plan_parameters")
	ErrUnsupportedCadence    = errors.New("unsupported_cadence")
	ErrInvalidPlanID         = errors.New("invalid_plan_id")
	ErrPlanNotFound          = errors.New("plan_not_found")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrPaymentNotSucceeded   = errors.New("payment_not_succeeded")
	ErrDuplicatePayment      = errors.New("duplicate_payment")
	ErrNoPendingInstallment  = errors.New("no_pending_installment")
	ErrAmountMismatch        = errors.New("amount_mismatch")
	ErrAmountExceedsBalance  = errors.New("amount_exceeds_balance")
	ErrBalanceMismatch       = errors.New("balance_mismatch")
	ErrMissingPaymentMethod  = errors.New("missing_payment_method")
)
