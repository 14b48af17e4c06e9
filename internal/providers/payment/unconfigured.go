package payment

import (
	"context"

	paymentdomain "github.com/rraasi/coin-service/internal/providers/payment/domain"
)

// unconfiguredGateway answers every call with ErrProviderNotConfigured so the
// rest of the API can run without payment credentials.
type unconfiguredGateway struct{}

func (unconfiguredGateway) Name() string { return "none" }

func (unconfiguredGateway) CreateOrder(context.Context, paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	return nil, paymentdomain.ErrProviderNotConfigured
}

func (unconfiguredGateway) VerifyPayment(string, string, string) error {
	return paymentdomain.ErrProviderNotConfigured
}
