package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Get(ctx context.Context, id string) (*Profile, error)
	// EmailFor returns "" when the profile is unknown.
	EmailFor(ctx context.Context, id string) (string, error)
	Touch(ctx context.Context, id, email string) error
	RecordSubscription(ctx context.Context, req RecordSubscriptionRequest) error
}

type RecordSubscriptionRequest struct {
	UserID  string
	Email   string
	PlanID  string
	EndDate time.Time
}

var (
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrUserNotFound  = errors.New("user_not_found")
)
