package domain

import (
	"context"
	"errors"

	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
)

type AccessReason string

const (
	ReasonFreeTier              AccessReason = "free_tier"
	ReasonSubscriptionUnlimited AccessReason = "subscription_unlimited"
	ReasonSufficientCoins       AccessReason = "sufficient_coins"
	ReasonInsufficientCoins     AccessReason = "insufficient_coins"
)

// AccessDecision answers whether a user may use a feature right now.
// AvailableCoins and RequiredCoins are only set for balance-based decisions.
type AccessDecision struct {
	FeatureID      string       `json:"featureId"`
	HasAccess      bool         `json:"hasAccess"`
	Reason         AccessReason `json:"reason"`
	Cost           int64        `json:"cost"`
	AvailableCoins *int64       `json:"availableCoins,omitempty"`
	RequiredCoins  *int64       `json:"requiredCoins,omitempty"`
}

type ChargeRequest struct {
	UserID    string
	FeatureID string
	Metadata  map[string]any
}

type DurationChargeRequest struct {
	UserID          string
	DurationMinutes float64
	Metadata        map[string]any
}

// ChargeResult reports a committed or refused charge. A refusal is a value,
// not an error: Success is false and the shortfall fields are set.
type ChargeResult struct {
	Success        bool         `json:"success"`
	HasAccess      bool         `json:"hasAccess"`
	Reason         AccessReason `json:"reason,omitempty"`
	CoinsDeducted  int64        `json:"coinsDeducted"`
	NewBalance     int64        `json:"newBalance"`
	RequiredCoins  *int64       `json:"requiredCoins,omitempty"`
	AvailableCoins *int64       `json:"availableCoins,omitempty"`
	TransactionID  string       `json:"transactionId,omitempty"`

	DurationMinutes int64 `json:"durationMinutes,omitempty"`
	PerMinuteRate   int64 `json:"perMinuteRate,omitempty"`
}

type BonusRequest struct {
	UserID    string
	Amount    int64
	Reason    string
	GrantedBy string
}

type BonusResult struct {
	BonusAdded    int64  `json:"bonusAdded"`
	NewBalance    int64  `json:"newBalance"`
	TransactionID string `json:"transactionId"`
}

type Service interface {
	CheckAccess(ctx context.Context, userID, featureID string) (*AccessDecision, error)
	CommitCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	DeductForDuration(ctx context.Context, req DurationChargeRequest) (*ChargeResult, error)
	AddBonus(ctx context.Context, req BonusRequest) (*BonusResult, error)
	// Balance refreshes earned coins from the subscription and returns the result.
	Balance(ctx context.Context, userID string) (*balancedomain.Balance, error)
}

// ChargeLocker serializes commits for one user across instances. The
// returned release func must be called once the commit finishes.
type ChargeLocker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// MaxBonusAmount caps a single bonus grant.
const MaxBonusAmount int64 = 1_000_000_000

var (
	ErrInvalidUserID      = errors.New("invalid_user_id")
	ErrUnknownFeature     = errors.New("unknown_feature")
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrInvalidBonusAmount = errors.New("invalid_bonus_amount")
	ErrChargeInProgress   = errors.New("charge_in_progress")
)
