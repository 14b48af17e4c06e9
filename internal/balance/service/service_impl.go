package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	"github.com/rraasi/coin-service/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errVersionConflict = errors.New("balance_version_conflict")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Repo          balancedomain.Repository
	Subscriptions subscriptiondomain.Service
	Config        *config.LedgerConfigHolder
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	repo          balancedomain.Repository
	subscriptions subscriptiondomain.Service
	cfg           *config.LedgerConfigHolder
	obsMetrics    *obsmetrics.Metrics
}

func New(p Params) balancedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("balance.service"),
		clock:         p.Clock,
		repo:          p.Repo,
		subscriptions: p.Subscriptions,
		cfg:           p.Config,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) ledgerConfig() config.LedgerConfig {
	if s.cfg == nil {
		return config.DefaultLedgerConfig()
	}
	return s.cfg.Get()
}

func (s *Service) Get(ctx context.Context, userID string) (*balancedomain.Balance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, balancedomain.ErrInvalidUserID
	}
	balance, err := s.loadOrCreate(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	return balance, nil
}

// loadOrCreate reads the row and, when absent, conditionally inserts a zeroed
// one before reading again so a concurrent initializer is never overwritten.
func (s *Service) loadOrCreate(ctx context.Context, tx *gorm.DB, userID string) (*balancedomain.Balance, error) {
	balance, err := s.repo.FindByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		return balance, nil
	}

	now := s.clock.Now()
	if err := s.repo.CreateIfAbsent(ctx, tx, &balancedomain.Balance{
		UserID:      userID,
		LastUpdated: now,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	balance, err = s.repo.FindByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, fmt.Errorf("balance for %s missing after create", userID)
	}
	return balance, nil
}

func (s *Service) RefreshEarnedCoins(ctx context.Context, userID string) (*balancedomain.Balance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, balancedomain.ErrInvalidUserID
	}

	current, err := s.loadOrCreate(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	interval := s.ledgerConfig().Balance.RefreshInterval
	now := s.clock.Now()
	if interval > 0 && current.EarnedRefreshedAt != nil && now.Sub(*current.EarnedRefreshedAt) < interval {
		return current, nil
	}

	active, err := s.subscriptions.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup subscription: %w", err)
	}
	var granted int64
	if active != nil {
		granted = active.RraasiCoins
	}

	if granted == current.EarnedCoins {
		if interval > 0 {
			if err := s.repo.TouchRefreshedAt(ctx, s.db, userID, now); err != nil {
				return nil, fmt.Errorf("touch balance: %w", err)
			}
			current.EarnedRefreshedAt = &now
		}
		return current, nil
	}

	res, err := s.mutate(ctx, userID, func(b balancedomain.Balance) (balancedomain.Balance, error) {
		return b.Apply(0, 0, &granted, s.clock.Now()), nil
	}, nil)
	if err != nil {
		return nil, err
	}
	s.log.Info("earned coins refreshed",
		zap.String("user_id", userID),
		zap.Int64("earned_before", res.Before.EarnedCoins),
		zap.Int64("earned_after", res.After.EarnedCoins),
	)
	return &res.After, nil
}

func (s *Service) Mutate(ctx context.Context, req balancedomain.MutateRequest) (*balancedomain.MutateResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, balancedomain.ErrInvalidUserID
	}
	if req.SpentDelta < 0 || req.BonusDelta < 0 {
		return nil, balancedomain.ErrInvalidDelta
	}

	return s.mutate(ctx, userID, func(b balancedomain.Balance) (balancedomain.Balance, error) {
		if req.RequireFunds && b.Available() < req.SpentDelta {
			return b, balancedomain.ErrInsufficientBalance
		}
		if !b.Fits(req.SpentDelta, req.BonusDelta) {
			return b, balancedomain.ErrInvalidDelta
		}
		return b.Apply(req.SpentDelta, req.BonusDelta, nil, s.clock.Now()), nil
	}, req.OnCommit)
}

// mutate runs a compare-and-swap on the balance version inside a transaction,
// retrying with jittered backoff when another writer got there first.
func (s *Service) mutate(
	ctx context.Context,
	userID string,
	apply func(balancedomain.Balance) (balancedomain.Balance, error),
	hook balancedomain.CommitHook,
) (*balancedomain.MutateResult, error) {
	maxAttempts := s.ledgerConfig().Balance.MaxCASAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultLedgerConfig().Balance.MaxCASAttempts
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	policy.RandomizationFactor = 0.5

	var before balancedomain.Balance
	operation := func() (*balancedomain.MutateResult, error) {
		var result balancedomain.MutateResult
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.loadOrCreate(ctx, tx, userID)
			if err != nil {
				return err
			}
			before = *current

			next, err := apply(*current)
			if err != nil {
				return err
			}
			rows, err := s.repo.UpdateIfVersion(ctx, tx, &next, current.Version)
			if err != nil {
				return err
			}
			if rows == 0 {
				return errVersionConflict
			}
			if hook != nil {
				if err := hook(ctx, tx, *current, next); err != nil {
					return err
				}
			}
			result = balancedomain.MutateResult{Before: *current, After: next}
			return nil
		})
		switch {
		case err == nil:
			return &result, nil
		case errors.Is(err, errVersionConflict), db.IsSerializationFailure(err):
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.obsMetrics.RecordCASRetry(ctx)
			s.log.Debug("balance write conflict, retrying",
				zap.String("user_id", userID),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if errors.Is(err, balancedomain.ErrInsufficientBalance) {
			return &balancedomain.MutateResult{Before: before, After: before}, err
		}
		if errors.Is(err, errVersionConflict) || db.IsSerializationFailure(err) {
			s.log.Warn("balance write abandoned after retries",
				zap.String("user_id", userID),
				zap.Int("attempts", maxAttempts),
			)
			return nil, balancedomain.ErrConcurrentModification
		}
		return nil, fmt.Errorf("mutate balance: %w", err)
	}
	return result, nil
}

func (s *Service) ListUpdatedSince(ctx context.Context, req balancedomain.ListUpdatedSinceRequest) ([]balancedomain.Balance, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.repo.ListUpdatedSince(ctx, s.db, req.Since, req.AfterUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return rows, nil
}
