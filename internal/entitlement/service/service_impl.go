package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	"github.com/rraasi/coin-service/internal/config"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	"github.com/rraasi/coin-service/internal/feature"
	featuredomain "github.com/rraasi/coin-service/internal/feature/domain"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const satsangFeatureName = "Satsang Session"

type Params struct {
	fx.In

	Log           *zap.Logger
	Catalog       featuredomain.Catalog
	Balances      balancedomain.Service
	Ledger        ledgerdomain.Service
	Subscriptions subscriptiondomain.Service
	Config        *config.LedgerConfigHolder
	Locker        entitlementdomain.ChargeLocker `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics            `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	catalog       featuredomain.Catalog
	balances      balancedomain.Service
	ledger        ledgerdomain.Service
	subscriptions subscriptiondomain.Service
	cfg           *config.LedgerConfigHolder
	locker        entitlementdomain.ChargeLocker
	obsMetrics    *obsmetrics.Metrics
}

func New(p Params) entitlementdomain.Service {
	return &Service{
		log:           p.Log.Named("entitlement.service"),
		catalog:       p.Catalog,
		balances:      p.Balances,
		ledger:        p.Ledger,
		subscriptions: p.Subscriptions,
		cfg:           p.Config,
		locker:        p.Locker,
		obsMetrics:    p.ObsMetrics,
	}
}

// CheckAccess is read-only apart from syncing earned coins. Errors from the
// subscription or balance lookups are returned, never turned into access.
func (s *Service) CheckAccess(ctx context.Context, userID, featureID string) (*entitlementdomain.AccessDecision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUserID
	}
	cost, ok := s.catalog.Get(strings.TrimSpace(featureID))
	if !ok {
		return nil, entitlementdomain.ErrUnknownFeature
	}

	decision, err := s.decide(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordAccessCheck(ctx, cost.ID, string(decision.Reason), decision.HasAccess)
	return decision, nil
}

func (s *Service) decide(ctx context.Context, userID string, cost featuredomain.FeatureCost) (*entitlementdomain.AccessDecision, error) {
	if cost.FreeTierAvailable {
		return &entitlementdomain.AccessDecision{
			FeatureID: cost.ID,
			HasAccess: true,
			Reason:    entitlementdomain.ReasonFreeTier,
		}, nil
	}

	if cost.SubscriptionUnlimited {
		active, err := s.subscriptions.ActiveForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("check subscription: %w", err)
		}
		if active != nil {
			return &entitlementdomain.AccessDecision{
				FeatureID: cost.ID,
				HasAccess: true,
				Reason:    entitlementdomain.ReasonSubscriptionUnlimited,
			}, nil
		}
	}

	balance, err := s.balances.RefreshEarnedCoins(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	available := balance.Available()
	required := cost.Cost
	decision := &entitlementdomain.AccessDecision{
		FeatureID:      cost.ID,
		HasAccess:      available >= required,
		Reason:         entitlementdomain.ReasonInsufficientCoins,
		Cost:           required,
		AvailableCoins: &available,
		RequiredCoins:  &required,
	}
	if decision.HasAccess {
		decision.Reason = entitlementdomain.ReasonSufficientCoins
	}
	return decision, nil
}

// CommitCharge re-runs the access decision, then either logs a free use or
// spends the feature's cost.
func (s *Service) CommitCharge(ctx context.Context, req entitlementdomain.ChargeRequest) (*entitlementdomain.ChargeResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUserID
	}
	cost, ok := s.catalog.Get(strings.TrimSpace(req.FeatureID))
	if !ok {
		return nil, entitlementdomain.ErrUnknownFeature
	}

	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	decision, err := s.decide(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordAccessCheck(ctx, cost.ID, string(decision.Reason), decision.HasAccess)

	if !decision.HasAccess {
		return refused(decision.Reason, *decision.RequiredCoins, *decision.AvailableCoins), nil
	}

	if decision.Cost == 0 {
		return s.logFreeUsage(ctx, userID, cost, decision.Reason, req.Metadata)
	}

	return s.spend(ctx, spendRequest{
		userID:      userID,
		featureID:   cost.ID,
		featureName: cost.Name,
		amount:      decision.Cost,
		metadata:    req.Metadata,
	})
}

func (s *Service) logFreeUsage(
	ctx context.Context,
	userID string,
	cost featuredomain.FeatureCost,
	reason entitlementdomain.AccessReason,
	metadata map[string]any,
) (*entitlementdomain.ChargeResult, error) {
	meta := mergeMetadata(metadata, map[string]any{"reason": string(reason)})
	txn, err := s.ledger.Append(ctx, ledgerdomain.Entry{
		UserID:      userID,
		Type:        ledgerdomain.TransactionTypeFreeUsage,
		FeatureID:   cost.ID,
		FeatureName: cost.Name,
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("log free usage: %w", err)
	}

	balance, err := s.balances.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	return &entitlementdomain.ChargeResult{
		Success:       true,
		HasAccess:     true,
		Reason:        reason,
		NewBalance:    balance.TotalCoins,
		TransactionID: txn.TransactionID,
	}, nil
}

type spendRequest struct {
	userID      string
	featureID   string
	featureName string
	amount      int64
	metadata    map[string]any
}

// spend deducts amount under the balance guard and writes the spend entry in
// the same transaction.
func (s *Service) spend(ctx context.Context, req spendRequest) (*entitlementdomain.ChargeResult, error) {
	var txnID string
	res, err := s.balances.Mutate(ctx, balancedomain.MutateRequest{
		UserID:       req.userID,
		SpentDelta:   req.amount,
		RequireFunds: true,
		OnCommit: func(ctx context.Context, tx *gorm.DB, before, after balancedomain.Balance) error {
			txn, err := s.ledger.AppendTx(ctx, tx, ledgerdomain.Entry{
				UserID:      req.userID,
				Type:        ledgerdomain.TransactionTypeSpend,
				Amount:      req.amount,
				FeatureID:   req.featureID,
				FeatureName: req.featureName,
				Metadata: mergeMetadata(req.metadata, map[string]any{
					"balanceBefore": before.TotalCoins,
					"balanceAfter":  after.TotalCoins,
				}),
			})
			if err != nil {
				return err
			}
			txnID = txn.TransactionID
			return nil
		},
	})
	if errors.Is(err, balancedomain.ErrInsufficientBalance) {
		s.log.Info("charge refused, balance changed since check",
			zap.String("user_id", req.userID),
			zap.String("feature_id", req.featureID),
			zap.Int64("required", req.amount),
			zap.Int64("available", res.Before.Available()),
		)
		return refused(entitlementdomain.ReasonInsufficientCoins, req.amount, res.Before.Available()), nil
	}
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordCoinsSpent(ctx, req.featureID, req.amount)
	s.log.Info("coins deducted",
		zap.String("user_id", req.userID),
		zap.String("feature_id", req.featureID),
		zap.Int64("amount", req.amount),
		zap.Int64("balance_after", res.After.TotalCoins),
	)

	return &entitlementdomain.ChargeResult{
		Success:       true,
		HasAccess:     true,
		Reason:        entitlementdomain.ReasonSufficientCoins,
		CoinsDeducted: req.amount,
		NewBalance:    res.After.TotalCoins,
		TransactionID: txnID,
	}, nil
}

// DeductForDuration bills a finished satsang session: whole minutes rounded
// up, at the configured rate, never below the minimum charge.
func (s *Service) DeductForDuration(ctx context.Context, req entitlementdomain.DurationChargeRequest) (*entitlementdomain.ChargeResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUserID
	}
	if req.DurationMinutes <= 0 || math.IsNaN(req.DurationMinutes) || math.IsInf(req.DurationMinutes, 0) {
		return nil, entitlementdomain.ErrInvalidDuration
	}

	satsang := config.DefaultLedgerConfig().Satsang
	if s.cfg != nil {
		satsang = s.cfg.Get().Satsang
	}
	minutes, cost, err := DurationCost(req.DurationMinutes, satsang.RatePerMinute, satsang.MinimumCharge)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.balances.RefreshEarnedCoins(ctx, userID); err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	result, err := s.spend(ctx, spendRequest{
		userID:      userID,
		featureID:   feature.SatsangSessionID,
		featureName: satsangFeatureName,
		amount:      cost,
		metadata: mergeMetadata(req.Metadata, map[string]any{
			"durationMinutes": minutes,
			"coinsPerMinute":  satsang.RatePerMinute,
		}),
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		s.log.Warn("satsang session not billed",
			zap.String("user_id", userID),
			zap.Int64("duration_minutes", minutes),
			zap.Int64("cost", cost),
		)
		return result, nil
	}
	result.DurationMinutes = minutes
	result.PerMinuteRate = satsang.RatePerMinute
	return result, nil
}

// DurationCost returns the billed minutes and coin cost for a session length.
// Lengths whose cost does not fit in an int64 are ErrInvalidDuration.
func DurationCost(durationMinutes float64, ratePerMinute, minimumCharge int64) (int64, int64, error) {
	if durationMinutes <= 0 || math.IsNaN(durationMinutes) || math.IsInf(durationMinutes, 0) {
		return 0, 0, entitlementdomain.ErrInvalidDuration
	}
	limit := int64(math.MaxInt64)
	if ratePerMinute > 0 {
		limit = math.MaxInt64 / ratePerMinute
	}
	rounded := math.Ceil(durationMinutes)
	if rounded >= float64(limit) {
		return 0, 0, entitlementdomain.ErrInvalidDuration
	}

	minutes := int64(rounded)
	cost := minutes * ratePerMinute
	if cost < minimumCharge {
		cost = minimumCharge
	}
	return minutes, cost, nil
}

// AddBonus credits promotional coins. Callers are expected to have checked the
// grant capability.
func (s *Service) AddBonus(ctx context.Context, req entitlementdomain.BonusRequest) (*entitlementdomain.BonusResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUserID
	}
	if req.Amount <= 0 || req.Amount > entitlementdomain.MaxBonusAmount {
		return nil, entitlementdomain.ErrInvalidBonusAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Bonus"
	}

	var txnID string
	res, err := s.balances.Mutate(ctx, balancedomain.MutateRequest{
		UserID:     userID,
		BonusDelta: req.Amount,
		OnCommit: func(ctx context.Context, tx *gorm.DB, before, after balancedomain.Balance) error {
			meta := map[string]any{
				"reason":        reason,
				"balanceBefore": before.TotalCoins,
				"balanceAfter":  after.TotalCoins,
			}
			if req.GrantedBy != "" {
				meta["grantedBy"] = req.GrantedBy
			}
			txn, err := s.ledger.AppendTx(ctx, tx, ledgerdomain.Entry{
				UserID:   userID,
				Type:     ledgerdomain.TransactionTypeBonus,
				Amount:   req.Amount,
				Metadata: meta,
			})
			if err != nil {
				return err
			}
			txnID = txn.TransactionID
			return nil
		},
	})
	if errors.Is(err, balancedomain.ErrInvalidDelta) {
		// the grant would push the balance past what the counters can hold
		return nil, entitlementdomain.ErrInvalidBonusAmount
	}
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordBonusGranted(ctx, req.Amount)
	s.log.Info("bonus coins granted",
		zap.String("user_id", userID),
		zap.String("granted_by", req.GrantedBy),
		zap.Int64("amount", req.Amount),
		zap.String("reason", reason),
	)

	return &entitlementdomain.BonusResult{
		BonusAdded:    req.Amount,
		NewBalance:    res.After.TotalCoins,
		TransactionID: txnID,
	}, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (*balancedomain.Balance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, entitlementdomain.ErrInvalidUserID
	}
	return s.balances.RefreshEarnedCoins(ctx, userID)
}

func (s *Service) lock(ctx context.Context, userID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, userID)
}

func refused(reason entitlementdomain.AccessReason, required, available int64) *entitlementdomain.ChargeResult {
	return &entitlementdomain.ChargeResult{
		Success:        false,
		HasAccess:      false,
		Reason:         reason,
		NewBalance:     available,
		RequiredCoins:  &required,
		AvailableCoins: &available,
	}
}

// mergeMetadata copies the caller's metadata and lays the system keys on top.
func mergeMetadata(caller map[string]any, system map[string]any) map[string]any {
	out := make(map[string]any, len(caller)+len(system))
	for k, v := range caller {
		out[k] = v
	}
	for k, v := range system {
		out[k] = v
	}
	return out
}
