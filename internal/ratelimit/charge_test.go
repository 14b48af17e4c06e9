package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rraasi/coin-service/internal/config"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, burst int64) *ChargeLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{Redis: config.RedisConfig{
		Enabled:             true,
		ChargeRatePerSecond: 0.01,
		ChargeBurst:         burst,
		ChargeLockTTL:       time.Second,
	}}
	limiter, err := NewChargeLimiter(ChargeLimiterParams{Config: cfg, Client: client, Log: zap.NewNop()})
	require.NoError(t, err)
	limiter.lockWait = 50 * time.Millisecond
	return limiter
}

func TestAllowSpendsBurstThenDenies(t *testing.T) {
	limiter := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "deduct", "u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Allow(ctx, "deduct", "u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	other, err := limiter.Allow(ctx, "deduct", "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestAcquireSerializesSameUser(t *testing.T) {
	limiter := newTestLimiter(t, 5)
	ctx := context.Background()

	release, err := limiter.Acquire(ctx, "u1")
	require.NoError(t, err)

	_, err = limiter.Acquire(ctx, "u1")
	assert.ErrorIs(t, err, entitlementdomain.ErrChargeInProgress)

	otherRelease, err := limiter.Acquire(ctx, "u2")
	require.NoError(t, err)
	otherRelease()

	release()
	again, err := limiter.Acquire(ctx, "u1")
	require.NoError(t, err)
	again()
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewChargeLimiter(ChargeLimiterParams{Config: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.Nil(t, NewChargeLocker(limiter))

	res, err := limiter.Allow(context.Background(), "deduct", "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
