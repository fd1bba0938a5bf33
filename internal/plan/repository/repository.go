package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

// Provide constructs the gorm-backed plan repository.
func Provide() plandomain.Repository {
	return &repository{}
}

func (r *repository) InsertPlan(ctx context.Context, db *gorm.DB, plan *plandomain.FinancingPlan, installments []plandomain.Installment) error {
	if err := db.WithContext(ctx).Create(plan).Error; err != nil {
		return err
	}
	if len(installments) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&installments).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.FinancingPlan, error) {
	var plan plandomain.FinancingPlan
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, plandomain.ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*plandomain.FinancingPlan, error) {
	var plan plandomain.FinancingPlan
	query := tx.WithContext(ctx).Where("id = ?", id)
	if supportsRowLocks(tx) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Take(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, plandomain.ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]plandomain.DuePlan, error) {
	var due []plandomain.DuePlan
	err := db.WithContext(ctx).
		Table("financing_plans").
		Select("id, next_charge_date").
		Where("status = ? AND next_charge_date IS NOT NULL AND next_charge_date <= ?", plandomain.PlanStatusActive, now).
		Order("next_charge_date ASC, id ASC").
		Limit(limit).
		Scan(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (r *repository) ListInstallments(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]plandomain.Installment, error) {
	var installments []plandomain.Installment
	err := db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("sequence ASC").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repository) ListPayments(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]plandomain.PlanPayment, error) {
	var payments []plandomain.PlanPayment
	err := db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// InsertPayment appends a ledger row. Returns false without error when a
// payment with the same processor reference already exists, which makes
// recordPayment idempotent under at-least-once delivery.
func (r *repository) InsertPayment(ctx context.Context, db *gorm.DB, payment *plandomain.PlanPayment) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "processor_reference"}},
			DoNothing: true,
		}).
		Create(payment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdatePlan(ctx context.Context, db *gorm.DB, plan *plandomain.FinancingPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&plandomain.FinancingPlan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]any{
			"status":                  plan.Status,
			"remaining_balance_cents": plan.RemainingBalanceCents,
			"next_charge_date":        plan.NextChargeDate,
			"failed_payment_attempts": plan.FailedPaymentAttempts,
			"last_failed_charge_at":   plan.LastFailedChargeAt,
			"updated_at":              plan.UpdatedAt,
		}).Error
}

// UpdateInstallments persists status changes only; due dates and amounts are
// immutable once created.
func (r *repository) UpdateInstallments(ctx context.Context, db *gorm.DB, planID snowflake.ID, installments []plandomain.Installment) error {
	for _, installment := range installments {
		err := db.WithContext(ctx).
			Model(&plandomain.Installment{}).
			Where("plan_id = ? AND sequence = ?", planID, installment.Sequence).
			Updates(map[string]any{
				"status":  installment.Status,
				"paid_at": installment.PaidAt,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// sqlite has no FOR UPDATE; tests run on it, production runs on postgres.
func supportsRowLocks(db *gorm.DB) bool {
	return db.Dialector.Name() != "sqlite"
}
