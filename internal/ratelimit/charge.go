package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rraasi/coin-service/internal/config"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyChargeRate = "coins:charge:rate:%s"
	keyChargeLock = "coins:charge:lock:%s"

	lockPollInterval = 25 * time.Millisecond
)

var (
	ErrRateLimited = errors.New("rate_limited")
	// ErrUnavailable wraps redis failures so callers can answer 503.
	ErrUnavailable = errors.New("rate_limiter_unavailable")
)

// ChargeLimiter throttles charge requests per user and serializes commits for
// the same user across instances.
type ChargeLimiter struct {
	bucket *TokenBucket
	locks  *chargeLocks
	log    *zap.Logger

	rate     float64
	burst    int
	lockWait time.Duration

	obsMetrics *obsmetrics.Metrics
}

type ChargeLimiterParams struct {
	fx.In

	Config     config.Config
	Client     *redis.Client `optional:"true"`
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required when redis is enabled")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			log.Info("redis connected", zap.String("addr", addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func NewChargeLimiter(p ChargeLimiterParams) (*ChargeLimiter, error) {
	if p.Client == nil {
		return nil, nil
	}
	cfg := p.Config.Redis
	if cfg.ChargeRatePerSecond <= 0 || cfg.ChargeBurst <= 0 {
		return nil, errors.New("charge rate limit must be positive")
	}
	ttl := cfg.ChargeLockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &ChargeLimiter{
		bucket:     NewTokenBucket(p.Client),
		locks:      newChargeLocks(p.Client, ttl),
		log:        p.Log.Named("ratelimit.charge"),
		rate:       cfg.ChargeRatePerSecond,
		burst:      int(cfg.ChargeBurst),
		lockWait:   ttl,
		obsMetrics: p.ObsMetrics,
	}, nil
}

func (l *ChargeLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow spends one token from the user's bucket for endpoint.
func (l *ChargeLimiter) Allow(ctx context.Context, endpoint, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyChargeRate, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !res.Allowed {
		l.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "token_bucket")
	}
	return res, nil
}

// Acquire waits up to the lock TTL for the user's charge lock.
func (l *ChargeLimiter) Acquire(ctx context.Context, userID string) (func(), error) {
	if !l.Enabled() {
		return func() {}, nil
	}
	deadline := time.Now().Add(l.lockWait)

	for {
		held, err := l.locks.tryAcquire(ctx, userID)
		if errors.Is(err, errInvalidLease) {
			return nil, entitlementdomain.ErrInvalidUserID
		}
		if err != nil {
			return nil, fmt.Errorf("%w: acquire charge lock: %w", ErrUnavailable, err)
		}
		if held != nil {
			return func() {
				// The request context may already be cancelled by the time we release.
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := l.locks.releaseLease(releaseCtx, held); err != nil {
					l.log.Warn("failed to release charge lock", zap.String("user_id", userID), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			l.obsMetrics.RecordRateLimitDenied(ctx, "charge", "lock_contention")
			return nil, entitlementdomain.ErrChargeInProgress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// NewChargeLocker exposes the limiter to the entitlement engine, or nothing
// when redis is off.
func NewChargeLocker(l *ChargeLimiter) entitlementdomain.ChargeLocker {
	if !l.Enabled() {
		return nil
	}
	return l
}
