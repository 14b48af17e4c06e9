package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	// Get returns the stored balance, creating a zeroed one on first use.
	Get(ctx context.Context, userID string) (*Balance, error)
	// RefreshEarnedCoins syncs EarnedCoins with the user's active subscription.
	RefreshEarnedCoins(ctx context.Context, userID string) (*Balance, error)
	Mutate(ctx context.Context, req MutateRequest) (*MutateResult, error)
	ListUpdatedSince(ctx context.Context, req ListUpdatedSinceRequest) ([]Balance, error)
}

// CommitHook runs inside the mutation's database transaction after the
// balance row has been written. Returning an error rolls both back.
type CommitHook func(ctx context.Context, tx *gorm.DB, before, after Balance) error

type MutateRequest struct {
	UserID     string
	SpentDelta int64
	BonusDelta int64
	// RequireFunds rejects the mutation with ErrInsufficientBalance unless the
	// freshly read balance has at least SpentDelta available.
	RequireFunds bool
	OnCommit     CommitHook
}

type MutateResult struct {
	Before Balance
	After  Balance
}

type ListUpdatedSinceRequest struct {
	Since       time.Time
	AfterUserID string
	Limit       int
}

var (
	ErrInvalidUserID          = errors.New("invalid_user_id")
	ErrInvalidDelta           = errors.New("invalid_balance_delta")
	ErrInsufficientBalance    = errors.New("insufficient_coins")
	ErrConcurrentModification = errors.New("balance_concurrent_modification")
)
