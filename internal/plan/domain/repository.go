package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DuePlan is a scheduler work item: an ACTIVE plan whose next charge date has
// passed.
type DuePlan struct {
	ID             snowflake.ID
	NextChargeDate time.Time
}

// Repository persists plans, their schedules and their payment ledger. All
// methods take the db handle explicitly so callers control transaction scope;
// FindForUpdate must run inside a transaction and acquires the plan's row
// lock, serializing scheduled charges against manual principal payments.
type Repository interface {
	InsertPlan(ctx context.Context, db *gorm.DB, plan *FinancingPlan, installments []Installment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FinancingPlan, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*FinancingPlan, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]DuePlan, error)
	ListInstallments(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]Installment, error)
	ListPayments(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]PlanPayment, error)
	InsertPayment(ctx context.Context, db *gorm.DB, payment *PlanPayment) (bool, error)
	UpdatePlan(ctx context.Context, db *gorm.DB, plan *FinancingPlan) error
	UpdateInstallments(ctx context.Context, db *gorm.DB, planID snowflake.ID, installments []Installment) error
}
