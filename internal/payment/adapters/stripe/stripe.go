package stripe

import (
	"context"
	"errors"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	paymentdomain "github.com/smallbiznis/tenor/internal/payment/domain"
)

type factory struct{}

// NewFactory registers Stripe with the adapter registry.
func NewFactory() paymentdomain.AdapterFactory {
	return factory{}
}

func (factory) Provider() string { return "stripe" }

func (factory) NewAdapter(config paymentdomain.AdapterConfig) (paymentdomain.ProcessorAdapter, error) {
	key := strings.TrimSpace(config.APIKey)
	if key == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	stripeapi.Key = key
	return &adapter{}, nil
}

type adapter struct{}

func (a *adapter) ChargeSavedMethod(ctx context.Context, methodRef string, amountCents int64, currency string, idempotencyKey string) (*paymentdomain.ChargeResult, error) {
	if amountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	methodRef = strings.TrimSpace(methodRef)
	if methodRef == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	params := &stripeapi.PaymentIntentParams{
		Amount:        stripeapi.Int64(amountCents),
		Currency:      stripeapi.String(strings.ToLower(currency)),
		PaymentMethod: stripeapi.String(methodRef),
		Confirm:       stripeapi.Bool(true),
		OffSession:    stripeapi.Bool(true),
	}
	params.Context = ctx
	params.IdempotencyKey = stripeapi.String(idempotencyKey)

	intent, err := paymentintent.New(params)
	if err != nil {
		return chargeResultFromError(err)
	}
	return &paymentdomain.ChargeResult{
		ProcessorReference: intent.ID,
		AmountCents:        intent.Amount,
		Succeeded:          intent.Status == stripeapi.PaymentIntentStatusSucceeded,
		FailureReason:      failureReason(intent),
	}, nil
}

func (a *adapter) CreatePrincipalIntent(ctx context.Context, planID string, amountCents int64, currency string) (*paymentdomain.IntentResult, error) {
	if amountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(amountCents),
		Currency: stripeapi.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	params.AddMetadata("plan_id", planID)
	params.AddMetadata("payment_type", "principal")

	intent, err := paymentintent.New(params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, paymentdomain.ErrProcessorUnavailable
	}
	return &paymentdomain.IntentResult{
		ClientSecret:       intent.ClientSecret,
		ProcessorReference: intent.ID,
	}, nil
}

func (a *adapter) ConfirmPrincipalIntent(ctx context.Context, processorReference string) (*paymentdomain.ChargeResult, error) {
	processorReference = strings.TrimSpace(processorReference)
	if processorReference == "" {
		return nil, paymentdomain.ErrIntentNotFound
	}

	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx
	intent, err := paymentintent.Get(processorReference, params)
	if err != nil {
		return chargeResultFromError(err)
	}
	return &paymentdomain.ChargeResult{
		ProcessorReference: intent.ID,
		AmountCents:        intent.Amount,
		Succeeded:          intent.Status == stripeapi.PaymentIntentStatusSucceeded,
		FailureReason:      failureReason(intent),
	}, nil
}

// chargeResultFromError maps a card decline to a failed ChargeResult and
// everything else (auth, network, rate limits) to ErrProcessorUnavailable.
// Context timeouts pass through untouched: the caller treats a timed-out
// charge as a failed attempt, not an outage.
func chargeResultFromError(err error) (*paymentdomain.ChargeResult, error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	if result, mapped := declineFromError(err); mapped == nil {
		return result, nil
	}
	return nil, paymentdomain.ErrProcessorUnavailable
}

func declineFromError(err error) (*paymentdomain.ChargeResult, error) {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripeapi.ErrorTypeCard {
		reference := ""
		if stripeErr.PaymentIntent != nil {
			reference = stripeErr.PaymentIntent.ID
		}
		reason := string(stripeErr.Code)
		if stripeErr.DeclineCode != "" {
			reason = string(stripeErr.DeclineCode)
		}
		return &paymentdomain.ChargeResult{
			ProcessorReference: reference,
			Succeeded:          false,
			FailureReason:      reason,
		}, nil
	}
	return nil, err
}

func failureReason(intent *stripeapi.PaymentIntent) string {
	if intent == nil || intent.Status == stripeapi.PaymentIntentStatusSucceeded {
		return ""
	}
	if intent.LastPaymentError != nil {
		return string(intent.LastPaymentError.Code)
	}
	return string(intent.Status)
}
