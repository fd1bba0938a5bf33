package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tenor/internal/audit/domain"
	"github.com/smallbiznis/tenor/internal/config"
	"github.com/smallbiznis/tenor/internal/events"
	ledgerdomain "github.com/smallbiznis/tenor/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/tenor/internal/payment/domain"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      plandomain.Repository
	LedgerSvc ledgerdomain.Service
	AuditSvc  auditdomain.Service
	Outbox    *events.Outbox
	Adapter   paymentdomain.ProcessorAdapter
	Cfg       config.Config
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      plandomain.Repository
	ledgerSvc ledgerdomain.Service
	auditSvc  auditdomain.Service
	outbox    *events.Outbox
	adapter   paymentdomain.ProcessorAdapter
	policy    plandomain.Policy
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("plan.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		ledgerSvc: p.LedgerSvc,
		auditSvc:  p.AuditSvc,
		outbox:    p.Outbox,
		adapter:   p.Adapter,
		policy:    plandomain.Policy{MaxFailedAttempts: p.Cfg.ChargeJob.MaxFailedAttempts},
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreateRequest) (*plandomain.Response, error) {
	ownerID, err := snowflake.ParseString(strings.TrimSpace(req.OwnerID))
	if err != nil {
		return nil, plandomain.ErrInvalidPlanParameters
	}
	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil {
		return nil, plandomain.ErrInvalidPlanParameters
	}

	installments, err := plandomain.BuildSchedule(plandomain.ScheduleParams{
		TotalAmountCents: req.TotalAmountCents,
		DownPaymentCents: req.DownPaymentCents,
		Cadence:          req.Cadence,
		TermCount:        req.TermCount,
		AnchorDate:       req.AnchorDate,
	})
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	plan := &plandomain.FinancingPlan{
		ID:                    s.genID.Generate(),
		OwnerID:               ownerID,
		OrderID:               orderID,
		Status:                plandomain.PlanStatusActive,
		Currency:              currency,
		TotalAmountCents:      req.TotalAmountCents,
		DownPaymentCents:      req.DownPaymentCents,
		RemainingBalanceCents: req.TotalAmountCents - req.DownPaymentCents,
		Cadence:               req.Cadence,
		TermCount:             req.TermCount,
		NextChargeDate:        plandomain.FirstDueDate(installments),
		Metadata:              datatypes.JSONMap{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if ref := strings.TrimSpace(req.SavedPaymentMethodRef); ref != "" {
		plan.SavedPaymentMethodRef = &ref
	}
	plandomain.EvaluatePaidOff(plan)

	for i := range installments {
		installments[i].ID = s.genID.Generate()
		installments[i].PlanID = plan.ID
		installments[i].CreatedAt = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertPlan(ctx, tx, plan, installments); err != nil {
			return err
		}
		if financed := plan.TotalAmountCents - plan.DownPaymentCents; financed > 0 {
			if err := s.postActivationEntry(ctx, tx, plan, financed); err != nil {
				return err
			}
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventPlanActivated,
			Payload:   planPayload(plan),
			DedupeKey: "plan.activated:" + plan.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	planID := plan.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "plan.created", "financing_plan", &planID, map[string]any{
		"owner_id":           plan.OwnerID.String(),
		"order_id":           plan.OrderID.String(),
		"total_amount_cents": plan.TotalAmountCents,
		"down_payment_cents": plan.DownPaymentCents,
		"cadence":            string(plan.Cadence),
		"term_count":         plan.TermCount,
		"status":             string(plan.Status),
	})

	return s.respond(ctx, plan.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*plandomain.Response, error) {
	planID, err := plandomain.ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, planID)
}

func (s *Service) CreatePrincipalIntent(ctx context.Context, id string, amountCents int64) (*plandomain.PrincipalIntentResponse, error) {
	planID, err := plandomain.ParseID(id)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != plandomain.PlanStatusActive {
		return nil, plandomain.ErrInvalidTransition
	}
	if amountCents <= 0 {
		return nil, plandomain.ErrInvalidPlanParameters
	}
	if amountCents > plan.RemainingBalanceCents {
		return nil, plandomain.ErrAmountExceedsBalance
	}

	intent, err := s.adapter.CreatePrincipalIntent(ctx, plan.ID.String(), amountCents, plan.Currency)
	if err != nil {
		return nil, err
	}
	return &plandomain.PrincipalIntentResponse{
		PlanID:             plan.ID.String(),
		AmountCents:        amountCents,
		ClientSecret:       intent.ClientSecret,
		ProcessorReference: intent.ProcessorReference,
	}, nil
}

// ConfirmPrincipalPayment verifies the intent with the processor and records
// the principal payment under the plan's row lock, so it cannot interleave
// with an in-flight scheduled charge for the same plan.
func (s *Service) ConfirmPrincipalPayment(ctx context.Context, id string, processorReference string) (*plandomain.Response, error) {
	planID, err := plandomain.ParseID(id)
	if err != nil {
		return nil, err
	}
	processorReference = strings.TrimSpace(processorReference)
	if processorReference == "" {
		return nil, paymentdomain.ErrIntentNotFound
	}

	result, err := s.adapter.ConfirmPrincipalIntent(ctx, processorReference)
	if err != nil {
		return nil, err
	}
	if !result.Succeeded {
		return nil, plandomain.ErrPaymentNotSucceeded
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindForUpdate(ctx, tx, planID)
		if err != nil {
			return err
		}
		if result.AmountCents <= 0 {
			return plandomain.ErrInvalidPlanParameters
		}
		payment := &plandomain.PlanPayment{
			ID:                 s.genID.Generate(),
			PlanID:             plan.ID,
			Type:               plandomain.PaymentTypePrincipal,
			Status:             plandomain.PaymentStatusSucceeded,
			AmountCents:        result.AmountCents,
			Currency:           plan.Currency,
			ProcessorReference: result.ProcessorReference,
			CreatedAt:          time.Now().UTC(),
		}
		_, err = s.RecordPaymentTx(ctx, tx, plan, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, planID)
}

func (s *Service) Pause(ctx context.Context, id string) (*plandomain.Response, error) {
	return s.transition(ctx, id, "plan.paused", events.EventPlanPaused, func(plan *plandomain.FinancingPlan, _ []plandomain.Installment) error {
		return plandomain.Pause(plan)
	})
}

func (s *Service) Resume(ctx context.Context, id string) (*plandomain.Response, error) {
	return s.transition(ctx, id, "plan.resumed", events.EventPlanResumed, func(plan *plandomain.FinancingPlan, _ []plandomain.Installment) error {
		return plandomain.Resume(plan)
	})
}

func (s *Service) Cancel(ctx context.Context, id string) (*plandomain.Response, error) {
	return s.transition(ctx, id, "plan.canceled", events.EventPlanCanceled, plandomain.Cancel)
}

// RecordPaymentTx appends a succeeded payment to the plan ledger and applies
// it. A payment whose processor reference was already recorded is a silent
// no-op. Must run inside the transaction holding the plan's row lock.
func (s *Service) RecordPaymentTx(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, payment *plandomain.PlanPayment) (*plandomain.ChargeOutcome, error) {
	outcome := &plandomain.ChargeOutcome{PlanID: plan.ID}

	inserted, err := s.repo.InsertPayment(ctx, tx, payment)
	if err != nil {
		return nil, err
	}
	if !inserted {
		outcome.Duplicate = true
		return outcome, nil
	}

	installments, err := s.repo.ListInstallments(ctx, tx, plan.ID)
	if err != nil {
		return nil, err
	}

	switch payment.Type {
	case plandomain.PaymentTypeScheduled:
		err = plandomain.ApplyScheduledPayment(plan, installments, payment)
	case plandomain.PaymentTypePrincipal:
		err = plandomain.ApplyPrincipalPayment(plan, installments, payment)
	default:
		err = plandomain.ErrInvalidPlanParameters
	}
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, tx, plan.ID)
	if err != nil {
		return nil, err
	}
	if err := plandomain.VerifyBalance(plan, payments); err != nil {
		return nil, err
	}

	outcome.PaidOff = plandomain.EvaluatePaidOff(plan)

	if payment.AppliedInstallmentSequence != nil {
		if err := tx.WithContext(ctx).
			Model(&plandomain.PlanPayment{}).
			Where("id = ?", payment.ID).
			Update("applied_installment_sequence", payment.AppliedInstallmentSequence).Error; err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateInstallments(ctx, tx, plan.ID, installments); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePlan(ctx, tx, plan); err != nil {
		return nil, err
	}
	if err := s.postSettlementEntry(ctx, tx, plan, payment); err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventPaymentSettled,
		Payload:   paymentPayload(plan, payment),
		DedupeKey: "payment.settled:" + payment.ProcessorReference,
	}); err != nil {
		return nil, err
	}
	if outcome.PaidOff {
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventPlanPaidOff,
			Payload:   planPayload(plan),
			DedupeKey: "plan.paid_off:" + plan.ID.String(),
		}); err != nil {
			return nil, err
		}
	}

	planID := plan.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "payment.recorded", "financing_plan", &planID, map[string]any{
		"payment_id":              payment.ID.String(),
		"type":                    string(payment.Type),
		"amount_cents":            payment.AmountCents,
		"processor_reference":     payment.ProcessorReference,
		"remaining_balance_cents": plan.RemainingBalanceCents,
		"status":                  string(plan.Status),
	})
	return outcome, nil
}

// RecordChargeFailureTx appends a failed payment attempt, bumps the failure
// counter and transitions the plan to DEFAULTED at the policy threshold.
func (s *Service) RecordChargeFailureTx(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, payment *plandomain.PlanPayment, now time.Time) (*plandomain.ChargeOutcome, error) {
	outcome := &plandomain.ChargeOutcome{PlanID: plan.ID}

	if payment.ProcessorReference != "" {
		inserted, err := s.repo.InsertPayment(ctx, tx, payment)
		if err != nil {
			return nil, err
		}
		if !inserted {
			outcome.Duplicate = true
			return outcome, nil
		}
	}

	installments, err := s.repo.ListInstallments(ctx, tx, plan.ID)
	if err != nil {
		return nil, err
	}

	defaulted, err := plandomain.RecordChargeFailure(plan, installments, s.policy, now)
	if err != nil {
		return nil, err
	}
	outcome.Defaulted = defaulted

	if defaulted {
		if err := s.repo.UpdateInstallments(ctx, tx, plan.ID, installments); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdatePlan(ctx, tx, plan); err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventChargeFailed,
		Payload: events.PaymentPayload{
			PlanID:             plan.ID.String(),
			ProcessorReference: payment.ProcessorReference,
			FailureReason:      failureReason(payment),
		}.ToMap(),
		DedupeKey: "",
	}); err != nil {
		return nil, err
	}
	if defaulted {
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventPlanDefaulted,
			Payload:   planPayload(plan),
			DedupeKey: "plan.defaulted:" + plan.ID.String(),
		}); err != nil {
			return nil, err
		}
	}

	planID := plan.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "charge.failed", "financing_plan", &planID, map[string]any{
		"failed_payment_attempts": plan.FailedPaymentAttempts,
		"defaulted":               defaulted,
		"failure_reason":          failureReason(payment),
	})
	return outcome, nil
}

type transitionFunc func(plan *plandomain.FinancingPlan, installments []plandomain.Installment) error

func (s *Service) transition(ctx context.Context, id string, action string, eventType string, apply transitionFunc) (*plandomain.Response, error) {
	planID, err := plandomain.ParseID(id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := s.repo.FindForUpdate(ctx, tx, planID)
		if err != nil {
			return err
		}
		installments, err := s.repo.ListInstallments(ctx, tx, plan.ID)
		if err != nil {
			return err
		}
		if err := apply(plan, installments); err != nil {
			return err
		}
		if err := s.repo.UpdateInstallments(ctx, tx, plan.ID, installments); err != nil {
			return err
		}
		if err := s.repo.UpdatePlan(ctx, tx, plan); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      eventType,
			Payload:   planPayload(plan),
			DedupeKey: "",
		})
	})
	if err != nil {
		return nil, err
	}

	target := planID.String()
	_ = s.auditSvc.AuditLog(ctx, action, "financing_plan", &target, nil)
	return s.respond(ctx, planID)
}

// postActivationEntry books the financed amount as receivable vs revenue when
// the plan is created.
func (s *Service) postActivationEntry(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, financedCents int64) error {
	receivableID, err := s.ledgerSvc.EnsureAccount(ctx, tx, ledgerdomain.AccountCodeInstallmentReceivable, "Installment Receivable")
	if err != nil {
		return err
	}
	revenueID, err := s.ledgerSvc.EnsureAccount(ctx, tx, ledgerdomain.AccountCodeFinancingRevenue, "Financing Revenue")
	if err != nil {
		return err
	}
	lines := []ledgerdomain.LedgerEntryLine{
		{AccountID: receivableID, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: financedCents},
		{AccountID: revenueID, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: financedCents},
	}
	return s.ledgerSvc.CreateEntryTx(ctx, tx, ledgerdomain.SourceTypePlanActivation, plan.ID, plan.Currency, plan.CreatedAt, lines)
}

// postSettlementEntry books a settled payment as cash vs receivable.
func (s *Service) postSettlementEntry(ctx context.Context, tx *gorm.DB, plan *plandomain.FinancingPlan, payment *plandomain.PlanPayment) error {
	cashID, err := s.ledgerSvc.EnsureAccount(ctx, tx, ledgerdomain.AccountCodeCashClearing, "Cash / Clearing")
	if err != nil {
		return err
	}
	receivableID, err := s.ledgerSvc.EnsureAccount(ctx, tx, ledgerdomain.AccountCodeInstallmentReceivable, "Installment Receivable")
	if err != nil {
		return err
	}

	sourceType := ledgerdomain.SourceTypeInstallmentCharge
	if payment.Type == plandomain.PaymentTypePrincipal {
		sourceType = ledgerdomain.SourceTypePrincipalPayment
	}
	lines := []ledgerdomain.LedgerEntryLine{
		{AccountID: cashID, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: payment.AmountCents},
		{AccountID: receivableID, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: payment.AmountCents},
	}
	return s.ledgerSvc.CreateEntryTx(ctx, tx, sourceType, payment.ID, payment.Currency, payment.CreatedAt, lines)
}

func (s *Service) respond(ctx context.Context, planID snowflake.ID) (*plandomain.Response, error) {
	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	installments, err := s.repo.ListInstallments(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}

	response := &plandomain.Response{
		ID:                    plan.ID.String(),
		OwnerID:               plan.OwnerID.String(),
		OrderID:               plan.OrderID.String(),
		Status:                string(plan.Status),
		Currency:              plan.Currency,
		TotalAmountCents:      plan.TotalAmountCents,
		DownPaymentCents:      plan.DownPaymentCents,
		RemainingBalanceCents: plan.RemainingBalanceCents,
		Cadence:               string(plan.Cadence),
		TermCount:             plan.TermCount,
		NextChargeDate:        plan.NextChargeDate,
		FailedPaymentAttempts: plan.FailedPaymentAttempts,
		LastFailedChargeAt:    plan.LastFailedChargeAt,
		Schedule:              make([]plandomain.InstallmentResponse, 0, len(installments)),
		Payments:              make([]plandomain.PaymentResponse, 0, len(payments)),
		CreatedAt:             plan.CreatedAt,
		UpdatedAt:             plan.UpdatedAt,
	}
	for _, installment := range installments {
		response.Schedule = append(response.Schedule, plandomain.InstallmentResponse{
			Sequence:    installment.Sequence,
			DueDate:     installment.DueDate,
			AmountCents: installment.AmountCents,
			Status:      string(installment.Status),
			PaidAt:      installment.PaidAt,
		})
	}
	for _, payment := range payments {
		response.Payments = append(response.Payments, plandomain.PaymentResponse{
			ID:                         payment.ID.String(),
			Type:                       string(payment.Type),
			Status:                     string(payment.Status),
			AmountCents:                payment.AmountCents,
			ProcessorReference:         payment.ProcessorReference,
			AppliedInstallmentSequence: payment.AppliedInstallmentSequence,
			FailureReason:              payment.FailureReason,
			CreatedAt:                  payment.CreatedAt,
		})
	}
	return response, nil
}

func planPayload(plan *plandomain.FinancingPlan) map[string]any {
	return events.PlanPayload{
		PlanID:  plan.ID.String(),
		OwnerID: plan.OwnerID.String(),
		Status:  string(plan.Status),
	}.ToMap()
}

func paymentPayload(plan *plandomain.FinancingPlan, payment *plandomain.PlanPayment) map[string]any {
	return events.PaymentPayload{
		PlanID:              plan.ID.String(),
		PaymentID:           payment.ID.String(),
		Type:                string(payment.Type),
		AmountCents:         payment.AmountCents,
		ProcessorReference:  payment.ProcessorReference,
		InstallmentSequence: payment.AppliedInstallmentSequence,
	}.ToMap()
}

func failureReason(payment *plandomain.PlanPayment) string {
	if payment.FailureReason == nil {
		return ""
	}
	return *payment.FailureReason
}
