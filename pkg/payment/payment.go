// Package payment builds the payment service for a provider
package payment

import (
	"fmt"

	"spark/pkg/daraja"
	"spark/pkg/payment/mpesa"
	"spark/pkg/payment/types"
)

// Options carries the provider independent collaborators
type Options struct {
	Repository types.Repository
	Limiter    mpesa.Limiter
	// Notifier may be nil
	Notifier types.Notifier
}

// NewPaymentService creates the service for provider. cfg must be the
// provider's own config type.
func NewPaymentService(provider types.Provider, cfg interface{}, opts Options) (types.Service, error) {
	if opts.Repository == nil || opts.Limiter == nil {
		return nil, fmt.Errorf("payment service needs a repository and a limiter")
	}

	switch provider {
	case types.ProviderMpesa:
		dcfg, ok := cfg.(daraja.Config)
		if !ok {
			return nil, fmt.Errorf("invalid mpesa config type %T", cfg)
		}
		return mpesa.NewService(daraja.NewClient(dcfg), opts.Repository, opts.Limiter, opts.Notifier), nil

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}
