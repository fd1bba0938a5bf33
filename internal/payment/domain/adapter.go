package domain

import (
	"context"
	"errors"
)

// ChargeResult is the outcome contract the engine consumes. Succeeded=false
// with a failure reason is a decline recorded against the plan;
// ErrProcessorUnavailable is returned instead when the processor never saw
// the request, so the plan's own payment method is not blamed for an outage.
type ChargeResult struct {
	ProcessorReference string
	AmountCents        int64
	Succeeded          bool
	FailureReason      string
}

// IntentResult is returned when opening a manual principal payment for
// client-side confirmation.
type IntentResult struct {
	ClientSecret       string
	ProcessorReference string
}

// ProcessorAdapter is the narrow contract the engine requires from a payment
// processor integration. The engine never calls a raw processor API directly
// and never branches on processor identity.
type ProcessorAdapter interface {
	// ChargeSavedMethod charges the exact amount against a saved payment
	// method. The idempotency key is forwarded to the processor so a
	// re-run of the charge job never double-charges.
	ChargeSavedMethod(ctx context.Context, methodRef string, amountCents int64, currency string, idempotencyKey string) (*ChargeResult, error)
	CreatePrincipalIntent(ctx context.Context, planID string, amountCents int64, currency string) (*IntentResult, error)
	ConfirmPrincipalIntent(ctx context.Context, processorReference string) (*ChargeResult, error)
}

// AdapterConfig carries the processor credentials for one adapter instance.
type AdapterConfig struct {
	Provider string
	APIKey   string
}

// AdapterFactory builds a configured adapter for its provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (ProcessorAdapter, error)
}

var (
	ErrProviderNotFound     = errors.New("provider_not_found")
	ErrInvalidConfig        = errors.New("invalid_config")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrProcessorUnavailable = errors.New("processor_unavailable")
	ErrIntentNotFound       = errors.New("intent_not_found")
)
