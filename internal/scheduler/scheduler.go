package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenor/internal/jobrun"
	"github.com/smallbiznis/tenor/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/tenor/internal/payment/domain"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobTypeChargeFinancingPlans names the job in the job-run store.
const JobTypeChargeFinancingPlans = "chargeFinancingPlans"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    plandomain.Repository
	PlanSvc plandomain.Service
	Adapter paymentdomain.ProcessorAdapter
	JobRuns *jobrun.Store
	Config  Config `optional:"true"`
}

// Scheduler is the charge job runner: one Run is a single batch pass over all
// due plans.
type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    plandomain.Repository
	planSvc plandomain.Service
	adapter paymentdomain.ProcessorAdapter
	jobRuns *jobrun.Store
	cfg     Config
}

func NewScheduler(p Params) *Scheduler {
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler.charge"),
		genID:   p.GenID,
		repo:    p.Repo,
		planSvc: p.PlanSvc,
		adapter: p.Adapter,
		jobRuns: p.JobRuns,
		cfg:     p.Config.withDefaults(),
	}
}

// PlanError is one plan's failure inside a pass.
type PlanError struct {
	PlanID string `json:"plan_id"`
	Error  string `json:"error"`
}

// Summary is the result of one batch pass.
type Summary struct {
	Charged   int         `json:"charged"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Defaulted int         `json:"defaulted"`
	Processed int         `json:"processed"`
	Total     int         `json:"total"`
	Errors    []PlanError `json:"errors,omitempty"`
}

func (s *Summary) toMap() map[string]any {
	return map[string]any{
		"charged":   s.Charged,
		"failed":    s.Failed,
		"skipped":   s.Skipped,
		"defaulted": s.Defaulted,
		"errors":    s.Errors,
	}
}

type planResult struct {
	charged   bool
	failed    bool
	skipped   bool
	defaulted bool
	err       error
}

// Run executes one batch pass at the given time. Plans are processed
// concurrently by a bounded worker pool; each plan mutates under its own row
// lock and transaction, so one plan's failure never blocks the others.
// "now" is a parameter so passes are deterministic under test.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (*Summary, error) {
	due, err := s.repo.ListDue(ctx, s.db, now, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	run, err := s.jobRuns.Start(ctx, JobTypeChargeFinancingPlans, len(due), now)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(due)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan plandomain.DuePlan)

	workers := s.cfg.Workers
	if workers > len(due) && len(due) > 0 {
		workers = len(due)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				result := s.processPlan(ctx, item.ID, now)

				mu.Lock()
				summary.Processed++
				switch {
				case result.charged:
					summary.Charged++
				case result.skipped:
					summary.Skipped++
				case result.failed:
					summary.Failed++
				}
				if result.defaulted {
					summary.Defaulted++
				}
				if result.err != nil {
					summary.Errors = append(summary.Errors, PlanError{
						PlanID: item.ID.String(),
						Error:  result.err.Error(),
					})
				}
				processed := summary.Processed
				mu.Unlock()

				if processed%50 == 0 {
					if err := s.jobRuns.UpdateProgress(ctx, run.ID, processed); err != nil {
						s.log.Warn("failed to update job progress", zap.Error(err))
					}
				}
			}
		}()
	}

feed:
	for _, item := range due {
		select {
		case <-ctx.Done():
			// Already-processed plans keep their committed results;
			// unclaimed plans stay due for the next run.
			break feed
		case jobs <- item:
		}
	}
	close(jobs)
	wg.Wait()

	if err := s.jobRuns.Complete(ctx, run.ID, summary.Processed, summary.toMap(), ""); err != nil {
		s.log.Warn("failed to complete job run", zap.Error(err))
	}

	s.log.Info("charge pass finished",
		zap.Int("total", summary.Total),
		zap.Int("charged", summary.Charged),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("defaulted", summary.Defaulted),
	)
	return summary, nil
}

// processPlan handles a single due plan under its row lock. The charge call
// has a bounded timeout; a timed-out charge counts as a failed attempt and is
// retried on the next pass, never inline.
func (s *Scheduler) processPlan(ctx context.Context, planID snowflake.ID, now time.Time) planResult {
	var result planResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindForUpdate(ctx, tx, planID)
		if err != nil {
			return err
		}
		if plan.Status != plandomain.PlanStatusActive ||
			plan.NextChargeDate == nil || plan.NextChargeDate.After(now) {
			result.skipped = true
			return nil
		}
		if plan.SavedPaymentMethodRef == nil || *plan.SavedPaymentMethodRef == "" {
			result.skipped = true
			return nil
		}

		installments, err := s.repo.ListInstallments(ctx, tx, plan.ID)
		if err != nil {
			return err
		}
		installment := duePending(installments)
		if installment == nil {
			result.skipped = true
			return nil
		}

		idempotencyKey := chargeIdempotencyKey(plan.ID, installment.Sequence)
		chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.ChargeTimeout)
		defer cancel()

		charge, err := s.adapter.ChargeSavedMethod(
			chargeCtx,
			*plan.SavedPaymentMethodRef,
			installment.AmountCents,
			plan.Currency,
			idempotencyKey,
		)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return s.recordFailure(ctx, tx, plan, &result, idempotencyKey, "charge_timeout", installment.AmountCents, now)
			}
			if errors.Is(err, paymentdomain.ErrProcessorUnavailable) {
				// The processor never saw the request: the plan stays
				// due and its failure counter is untouched.
				result.failed = true
				result.err = err
				return nil
			}
			return err
		}

		if !charge.Succeeded {
			s.log.Warn("charge declined",
				zap.String("plan_id", plan.ID.String()),
				zap.String("payment_method", logger.MaskPaymentMethodRef(*plan.SavedPaymentMethodRef)),
				zap.String("reason", charge.FailureReason),
			)
			reference := charge.ProcessorReference
			if reference == "" {
				reference = idempotencyKey
			}
			return s.recordDecline(ctx, tx, plan, &result, reference, charge.FailureReason, installment.AmountCents, now)
		}

		payment := &plandomain.PlanPayment{
			ID:                 s.genID.Generate(),
			PlanID:             plan.ID,
			Type:               plandomain.PaymentTypeScheduled,
			Status:             plandomain.PaymentStatusSucceeded,
			AmountCents:        installment.AmountCents,
			Currency:           plan.Currency,
			ProcessorReference: charge.ProcessorReference,
			CreatedAt:          time.Now().UTC(),
		}
		outcome, err := s.planSvc.RecordPaymentTx(ctx, tx, plan, payment)
		if err != nil {
			return err
		}
		result.charged = true
		if outcome.Duplicate {
			s.log.Info("duplicate charge result ignored",
				zap.String("plan_id", plan.ID.String()),
				zap.String("processor_reference", charge.ProcessorReference),
			)
		}
		return nil
	})
	if err != nil {
		result.failed = true
		result.err = err
	}
	return result
}

func (s *Scheduler) recordDecline(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, result *planResult, reference string, reason string, amountCents int64, now time.Time) error {
	// The attempt counter is folded into the reference so the same decline
	// replayed within a pass dedupes, while tomorrow's retry records anew.
	return s.recordFailedAttempt(ctx, tx, plan, result,
		fmt.Sprintf("%s:attempt:%d", reference, plan.FailedPaymentAttempts+1), reason, amountCents, now)
}

func (s *Scheduler) recordFailure(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, result *planResult, idempotencyKey string, reason string, amountCents int64, now time.Time) error {
	return s.recordFailedAttempt(ctx, tx, plan, result,
		fmt.Sprintf("%s:attempt:%d", idempotencyKey, plan.FailedPaymentAttempts+1), reason, amountCents, now)
}

func (s *Scheduler) recordFailedAttempt(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, result *planResult, reference string, reason string, amountCents int64, now time.Time) error {
	payment := &plandomain.PlanPayment{
		ID:                 s.genID.Generate(),
		PlanID:             plan.ID,
		Type:               plandomain.PaymentTypeScheduled,
		Status:             plandomain.PaymentStatusFailed,
		AmountCents:        amountCents,
		Currency:           plan.Currency,
		ProcessorReference: reference,
		FailureReason:      &reason,
		CreatedAt:          time.Now().UTC(),
	}
	outcome, err := s.planSvc.RecordChargeFailureTx(ctx, tx, plan, payment, now)
	if err != nil {
		return err
	}
	result.failed = true
	result.defaulted = outcome.Defaulted
	return nil
}

func chargeIdempotencyKey(planID snowflake.ID, sequence int) string {
	return fmt.Sprintf("plan:%s:seq:%d", planID.String(), sequence)
}

func duePending(installments []plandomain.Installment) *plandomain.Installment {
	for i := range installments {
		if installments[i].Status == plandomain.InstallmentStatusPending {
			return &installments[i]
		}
	}
	return nil
}
