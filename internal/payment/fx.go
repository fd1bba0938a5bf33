package payment

import (
	"github.com/smallbiznis/tenor/internal/config"
	"github.com/smallbiznis/tenor/internal/payment/adapters"
	"github.com/smallbiznis/tenor/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/tenor/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.adapter",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(func(registry *adapters.Registry, cfg config.Config) (paymentdomain.ProcessorAdapter, error) {
		return registry.NewAdapter(cfg.PaymentProvider, paymentdomain.AdapterConfig{
			Provider: cfg.PaymentProvider,
			APIKey:   cfg.StripeAPIKey,
		})
	}),
)
