package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Plans() []Plan
	Plan(planID string) (Plan, bool)
	// ActiveForUser returns nil when the user has no subscription active now.
	ActiveForUser(ctx context.Context, userID string) (*Subscription, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	ExpireDue(ctx context.Context, limit int) (int64, error)
}

type CreateOrderRequest struct {
	UserID    string
	UserEmail string
	PlanID    string
}

type CreateOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	PlanID   string `json:"planId"`
	PlanName string `json:"planName"`
	Coins    int64  `json:"coins"`
}

type VerifyRequest struct {
	UserID    string
	UserEmail string
	OrderID   string
	PaymentID string
	Signature string
	PlanID    string
}

type SubscriptionSummary struct {
	PlanID    string    `json:"planId"`
	PlanName  string    `json:"planName"`
	Coins     int64     `json:"coins"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type VerifyResponse struct {
	Subscription SubscriptionSummary `json:"subscription"`
	CoinsAdded   int64               `json:"coinsAdded"`
	// Replayed is set when the order had already been verified.
	Replayed bool `json:"-"`
}

var (
	ErrInvalidUserID        = errors.New("invalid_user_id")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrMissingPaymentFields = errors.New("missing_payment_fields")
	ErrInvalidSignature     = errors.New("invalid_payment_signature")
	ErrOrderOwnerMismatch   = errors.New("order_owner_mismatch")
)
