package domain

import (
	"context"
	"errors"
)

// Gateway creates checkout orders and validates the callback signature the
// client returns after payment.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyPayment(orderID, paymentID, signature string) error
}

type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

var (
	ErrProviderNotConfigured = errors.New("payment_provider_not_configured")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidOrderRequest   = errors.New("invalid_order_request")
	ErrProviderUnavailable   = errors.New("payment_provider_unavailable")
)
