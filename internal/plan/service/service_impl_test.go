package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditservice "github.com/smallbiznis/tenor/internal/audit/service"
	"github.com/smallbiznis/tenor/internal/config"
	"github.com/smallbiznis/tenor/internal/events"
	ledgerdomain "github.com/smallbiznis/tenor/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/tenor/internal/ledger/service"
	"github.com/smallbiznis/tenor/internal/money"
	paymentdomain "github.com/smallbiznis/tenor/internal/payment/domain"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
	planrepo "github.com/smallbiznis/tenor/internal/plan/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubAdapter struct {
	confirmResult *paymentdomain.ChargeResult
	confirmErr    error
}

func (a *stubAdapter) ChargeSavedMethod(context.Context, string, int64, string, string) (*paymentdomain.ChargeResult, error) {
	return nil, paymentdomain.ErrProcessorUnavailable
}

func (a *stubAdapter) CreatePrincipalIntent(_ context.Context, planID string, amountCents int64, _ string) (*paymentdomain.IntentResult, error) {
	return &paymentdomain.IntentResult{
		ClientSecret:       "cs_test",
		ProcessorReference: fmt.Sprintf("pi_%s_%d", planID, amountCents),
	}, nil
}

func (a *stubAdapter) ConfirmPrincipalIntent(context.Context, string) (*paymentdomain.ChargeResult, error) {
	return a.confirmResult, a.confirmErr
}

type testEnv struct {
	db    *gorm.DB
	genID *snowflake.Node
	repo  plandomain.Repository
	svc   plandomain.Service
}

func newTestEnv(t *testing.T, adapter paymentdomain.ProcessorAdapter) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&plandomain.FinancingPlan{},
		&plandomain.Installment{},
		&plandomain.PlanPayment{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(`CREATE TABLE billing_events (
		id INTEGER PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		dedupe_key TEXT,
		published BOOLEAN NOT NULL DEFAULT false,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_billing_events_dedupe_key ON billing_events(dedupe_key)`).Error; err != nil {
		t.Fatalf("create dedupe index: %v", err)
	}

	genID, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()
	repo := planrepo.Provide()

	svc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     genID,
		Repo:      repo,
		LedgerSvc: ledgerservice.NewService(ledgerservice.Params{Log: log, GenID: genID}),
		AuditSvc:  auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: genID}),
		Outbox:    events.NewOutbox(db, genID),
		Adapter:   adapter,
		Cfg:       config.Config{ChargeJob: config.ChargeJobConfig{MaxFailedAttempts: 3}},
	})

	return &testEnv{db: db, genID: genID, repo: repo, svc: svc}
}

func (env *testEnv) createPlan(t *testing.T, totalCents, downCents int64, termCount int) *plandomain.Response {
	t.Helper()
	resp, err := env.svc.Create(context.Background(), plandomain.CreateRequest{
		OwnerID:               env.genID.Generate().String(),
		OrderID:               env.genID.Generate().String(),
		Currency:              "usd",
		TotalAmountCents:      totalCents,
		DownPaymentCents:      downCents,
		Cadence:               money.CadenceMonthly,
		TermCount:             termCount,
		AnchorDate:            time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		SavedPaymentMethodRef: "pm_saved_card",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return resp
}

func (env *testEnv) countRows(t *testing.T, table, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := env.db.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func TestCreatePlan(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{})
	resp := env.createPlan(t, 120000, 20000, 4)

	if resp.Status != string(plandomain.PlanStatusActive) {
		t.Fatalf("status = %s, want ACTIVE", resp.Status)
	}
	if resp.Currency != "USD" {
		t.Fatalf("currency = %s, want USD", resp.Currency)
	}
	if resp.RemainingBalanceCents != 100000 {
		t.Fatalf("balance = %d, want 100000", resp.RemainingBalanceCents)
	}
	if len(resp.Schedule) != 4 {
		t.Fatalf("schedule = %d rows, want 4", len(resp.Schedule))
	}
	var sum int64
	for _, row := range resp.Schedule {
		sum += row.AmountCents
	}
	if sum != 100000 {
		t.Fatalf("schedule sum = %d, want 100000", sum)
	}
	if resp.NextChargeDate == nil || !resp.NextChargeDate.Equal(resp.Schedule[0].DueDate) {
		t.Fatalf("next charge date = %v, want %v", resp.NextChargeDate, resp.Schedule[0].DueDate)
	}

	// Activation books receivable vs revenue and lands one outbox event.
	if got := env.countRows(t, "ledger_entries", "source_type = ?", ledgerdomain.SourceTypePlanActivation); got != 1 {
		t.Fatalf("activation entries = %d, want 1", got)
	}
	if got := env.countRows(t, "ledger_entry_lines", "1 = 1"); got != 2 {
		t.Fatalf("entry lines = %d, want 2", got)
	}
	if got := env.countRows(t, "billing_events", "event_type = ?", events.EventPlanActivated); got != 1 {
		t.Fatalf("activation events = %d, want 1", got)
	}
}

func TestCreateFullyDownPaidPlan(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{})
	resp := env.createPlan(t, 50000, 50000, 4)

	if resp.Status != string(plandomain.PlanStatusPaidOff) {
		t.Fatalf("status = %s, want PAID_OFF", resp.Status)
	}
	if len(resp.Schedule) != 0 {
		t.Fatalf("schedule = %d rows, want 0", len(resp.Schedule))
	}
	if resp.NextChargeDate != nil {
		t.Fatalf("next charge date = %v, want nil", resp.NextChargeDate)
	}
	if got := env.countRows(t, "ledger_entries", "1 = 1"); got != 0 {
		t.Fatalf("ledger entries = %d, want 0 for zero financed", got)
	}
}

func TestCreatePlanRejectsUnschedulableCadence(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{})
	_, err := env.svc.Create(context.Background(), plandomain.CreateRequest{
		OwnerID:          env.genID.Generate().String(),
		OrderID:          env.genID.Generate().String(),
		TotalAmountCents: 10000,
		Cadence:          money.CadenceAnnual,
		TermCount:        2,
		AnchorDate:       time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, plandomain.ErrUnsupportedCadence) {
		t.Fatalf("err = %v, want unsupported cadence", err)
	}
}

func TestConfirmPrincipalPaymentRetiresTail(t *testing.T) {
	adapter := &stubAdapter{
		confirmResult: &paymentdomain.ChargeResult{
			ProcessorReference: "pi_principal",
			AmountCents:        50000,
			Succeeded:          true,
		},
	}
	env := newTestEnv(t, adapter)
	created := env.createPlan(t, 100000, 0, 4)

	resp, err := env.svc.ConfirmPrincipalPayment(context.Background(), created.ID, "pi_principal")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if resp.RemainingBalanceCents != 50000 {
		t.Fatalf("balance = %d, want 50000", resp.RemainingBalanceCents)
	}
	wantStatus := []string{"PAID", "PAID", "PENDING", "PENDING"}
	for i, row := range resp.Schedule {
		if row.Status != wantStatus[i] {
			t.Fatalf("schedule[%d] = %s, want %s", i, row.Status, wantStatus[i])
		}
	}
	if resp.NextChargeDate == nil || !resp.NextChargeDate.Equal(resp.Schedule[2].DueDate) {
		t.Fatalf("next charge date = %v, want %v", resp.NextChargeDate, resp.Schedule[2].DueDate)
	}

	// A double-submitted confirmation dedupes on the processor reference.
	again, err := env.svc.ConfirmPrincipalPayment(context.Background(), created.ID, "pi_principal")
	if err != nil {
		t.Fatalf("confirm again: %v", err)
	}
	if again.RemainingBalanceCents != 50000 {
		t.Fatalf("balance after replay = %d, want 50000", again.RemainingBalanceCents)
	}
	if len(again.Payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(again.Payments))
	}
}

func TestConfirmPrincipalPaymentRejectsUnsettledIntent(t *testing.T) {
	adapter := &stubAdapter{
		confirmResult: &paymentdomain.ChargeResult{
			ProcessorReference: "pi_pending",
			AmountCents:        50000,
			Succeeded:          false,
			FailureReason:      "requires_payment_method",
		},
	}
	env := newTestEnv(t, adapter)
	created := env.createPlan(t, 100000, 0, 4)

	_, err := env.svc.ConfirmPrincipalPayment(context.Background(), created.ID, "pi_pending")
	if !errors.Is(err, plandomain.ErrPaymentNotSucceeded) {
		t.Fatalf("err = %v, want payment not succeeded", err)
	}
	if got := env.countRows(t, "plan_payments", "1 = 1"); got != 0 {
		t.Fatalf("payments = %d, want 0", got)
	}
}

func TestCreatePrincipalIntentValidations(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{})
	created := env.createPlan(t, 100000, 0, 4)

	if _, err := env.svc.CreatePrincipalIntent(context.Background(), created.ID, 100001); !errors.Is(err, plandomain.ErrAmountExceedsBalance) {
		t.Fatalf("err = %v, want amount exceeds balance", err)
	}
	if _, err := env.svc.CreatePrincipalIntent(context.Background(), created.ID, 0); !errors.Is(err, plandomain.ErrInvalidPlanParameters) {
		t.Fatalf("err = %v, want invalid parameters", err)
	}

	if _, err := env.svc.Pause(context.Background(), created.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.svc.CreatePrincipalIntent(context.Background(), created.ID, 10000); !errors.Is(err, plandomain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{})
	created := env.createPlan(t, 100000, 0, 4)

	paused, err := env.svc.Pause(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != string(plandomain.PlanStatusPaused) {
		t.Fatalf("status = %s, want PAUSED", paused.Status)
	}

	resumed, err := env.svc.Resume(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != string(plandomain.PlanStatusActive) {
		t.Fatalf("status = %s, want ACTIVE", resumed.Status)
	}
	if resumed.NextChargeDate == nil || !resumed.NextChargeDate.Equal(*created.NextChargeDate) {
		t.Fatalf("next charge date = %v, want %v", resumed.NextChargeDate, created.NextChargeDate)
	}

	canceled, err := env.svc.Cancel(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != string(plandomain.PlanStatusCanceled) {
		t.Fatalf("status = %s, want CANCELED", canceled.Status)
	}
	for _, row := range canceled.Schedule {
		if row.Status != string(plandomain.InstallmentStatusSkipped) {
			t.Fatalf("installment %d = %s, want SKIPPED", row.Sequence, row.Status)
		}
	}

	if _, err := env.svc.Resume(context.Background(), created.ID); !errors.Is(err, plandomain.ErrInvalidTransition) {
		t.Fatalf("resume canceled err = %v, want invalid transition", err)
	}
}

func TestGetUnknownPlan(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{})

	if _, err := env.svc.Get(context.Background(), "not-a-snowflake"); !errors.Is(err, plandomain.ErrInvalidPlanID) {
		t.Fatalf("err = %v, want invalid plan id", err)
	}
	if _, err := env.svc.Get(context.Background(), env.genID.Generate().String()); !errors.Is(err, plandomain.ErrPlanNotFound) {
		t.Fatalf("err = %v, want plan not found", err)
	}
}
