package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenor/internal/money"
	"gorm.io/datatypes"
)

// PlanStatus tracks the financing plan lifecycle.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusPaidOff   PlanStatus = "PAID_OFF"
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusCanceled  PlanStatus = "CANCELED"
	PlanStatusDefaulted PlanStatus = "DEFAULTED"
)

// Terminal reports whether the status permits no further transitions.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanStatusPaidOff, PlanStatusCanceled, PlanStatusDefaulted:
		return true
	}
	return false
}

// InstallmentStatus tracks a single scheduled installment.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusSkipped InstallmentStatus = "SKIPPED"
)

// PaymentType distinguishes scheduler-driven charges from manual prepayments.
type PaymentType string

const (
	PaymentTypeScheduled PaymentType = "SCHEDULED"
	PaymentTypePrincipal PaymentType = "PRINCIPAL"
)

// PaymentStatus mirrors the processor-side outcome of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// FinancingPlan turns a one-time checkout into a multi-period installment
// plan. The schedule is generated once at creation and never regenerated;
// remaining_balance_cents is a cache that must always equal the amount
// recomputed from succeeded payments.
type FinancingPlan struct {
	ID                    snowflake.ID      `gorm:"primaryKey"`
	OwnerID               snowflake.ID      `gorm:"not null;index"`
	OrderID               snowflake.ID      `gorm:"not null;index"`
	Status                PlanStatus        `gorm:"type:text;not null;default:'ACTIVE';index"`
	Currency              string            `gorm:"type:text;not null;default:'USD'"`
	TotalAmountCents      int64             `gorm:"not null"`
	DownPaymentCents      int64             `gorm:"not null"`
	RemainingBalanceCents int64             `gorm:"not null"`
	Cadence               money.Cadence     `gorm:"type:text;not null"`
	TermCount             int               `gorm:"not null"`
	NextChargeDate        *time.Time        `gorm:"index"`
	FailedPaymentAttempts int               `gorm:"not null;default:0"`
	LastFailedChargeAt    *time.Time        `gorm:"column:last_failed_charge_at"`
	SavedPaymentMethodRef *string           `gorm:"type:text"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (FinancingPlan) TableName() string { return "financing_plans" }

// Installment is one period of a plan's schedule. Amount and due date are
// immutable once created; only the status changes.
type Installment struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	PlanID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_plan_installments_seq,priority:1"`
	Sequence    int               `gorm:"not null;uniqueIndex:ux_plan_installments_seq,priority:2"`
	DueDate     time.Time         `gorm:"not null"`
	AmountCents int64             `gorm:"not null"`
	Status      InstallmentStatus `gorm:"type:text;not null;default:'PENDING'"`
	PaidAt      *time.Time        `gorm:"column:paid_at"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Installment) TableName() string { return "plan_installments" }

// PlanPayment is an append-only ledger row. The processor reference is unique
// so at-least-once delivery from the charge job or a double-submitted manual
// payment dedupes at insert time. A SUCCEEDED payment is never mutated.
type PlanPayment struct {
	ID                         snowflake.ID  `gorm:"primaryKey"`
	PlanID                     snowflake.ID  `gorm:"not null;index"`
	Type                       PaymentType   `gorm:"type:text;not null"`
	Status                     PaymentStatus `gorm:"type:text;not null"`
	AmountCents                int64         `gorm:"not null"`
	Currency                   string        `gorm:"type:text;not null"`
	ProcessorReference         string        `gorm:"type:text;not null;uniqueIndex:ux_plan_payments_processor_ref"`
	AppliedInstallmentSequence *int          `gorm:"column:applied_installment_sequence"`
	FailureReason              *string       `gorm:"type:text"`
	CreatedAt                  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlanPayment) TableName() string { return "plan_payments" }
