package service

import (
	"context"
	"math"
	"sync"
	"testing"

	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	"github.com/rraasi/coin-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// conflictingRepo reports a lost version race for the first n conditional
// updates, as if another instance had written the row in between.
type conflictingRepo struct {
	balancedomain.Repository

	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (r *conflictingRepo) UpdateIfVersion(ctx context.Context, db *gorm.DB, balance *balancedomain.Balance, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	r.attempts++
	lose := r.conflicts > 0
	if lose {
		r.conflicts--
	}
	r.mu.Unlock()

	if lose {
		return 0, nil
	}
	return r.Repository.UpdateIfVersion(ctx, db, balance, expectedVersion)
}

func withConflicts(svc *Service, n int) *conflictingRepo {
	repo := &conflictingRepo{Repository: svc.repo, conflicts: n}
	svc.repo = repo
	return repo
}

func TestMutateRetriesLostVersionRace(t *testing.T) {
	svc, _, _, _ := newTestService(t, config.DefaultLedgerConfig())
	ctx := context.Background()

	seeded, err := svc.Mutate(ctx, balancedomain.MutateRequest{UserID: "u1", BonusDelta: 15})
	require.NoError(t, err)
	repo := withConflicts(svc, 2)

	hookCalls := 0
	res, err := svc.Mutate(ctx, balancedomain.MutateRequest{
		UserID:       "u1",
		SpentDelta:   5,
		RequireFunds: true,
		OnCommit: func(context.Context, *gorm.DB, balancedomain.Balance, balancedomain.Balance) error {
			hookCalls++
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.attempts)
	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, int64(10), res.After.TotalCoins)

	stored, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.SpentCoins)
	assert.Equal(t, int64(10), stored.TotalCoins)
	assert.Equal(t, seeded.After.Version+1, stored.Version)
	assertInvariant(t, *stored)
}

func TestMutateGivesUpAfterMaxAttempts(t *testing.T) {
	svc, _, _, _ := newTestService(t, config.DefaultLedgerConfig())
	ctx := context.Background()

	_, err := svc.Mutate(ctx, balancedomain.MutateRequest{UserID: "u1", BonusDelta: 15})
	require.NoError(t, err)
	repo := withConflicts(svc, 10)

	hookCalls := 0
	_, err = svc.Mutate(ctx, balancedomain.MutateRequest{
		UserID:     "u1",
		SpentDelta: 5,
		OnCommit: func(context.Context, *gorm.DB, balancedomain.Balance, balancedomain.Balance) error {
			hookCalls++
			return nil
		},
	})
	require.ErrorIs(t, err, balancedomain.ErrConcurrentModification)
	assert.Equal(t, config.DefaultLedgerConfig().Balance.MaxCASAttempts, repo.attempts)
	assert.Zero(t, hookCalls)

	stored, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.SpentCoins)
	assert.Equal(t, int64(15), stored.TotalCoins)
}

func TestMutateHonoursConfiguredAttempts(t *testing.T) {
	cfg := config.DefaultLedgerConfig()
	cfg.Balance.MaxCASAttempts = 2
	svc, _, _, _ := newTestService(t, cfg)
	ctx := context.Background()

	repo := withConflicts(svc, 2)
	_, err := svc.Mutate(ctx, balancedomain.MutateRequest{UserID: "u1", BonusDelta: 1})
	require.ErrorIs(t, err, balancedomain.ErrConcurrentModification)
	assert.Equal(t, 2, repo.attempts)
}

func TestMutateRejectsCounterOverflow(t *testing.T) {
	svc, _, _, _ := newTestService(t, config.DefaultLedgerConfig())
	ctx := context.Background()

	_, err := svc.Mutate(ctx, balancedomain.MutateRequest{UserID: "u1", BonusDelta: 10})
	require.NoError(t, err)

	_, err = svc.Mutate(ctx, balancedomain.MutateRequest{UserID: "u1", BonusDelta: math.MaxInt64 - 5})
	require.ErrorIs(t, err, balancedomain.ErrInvalidDelta)

	stored, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.BonusCoins)
	assert.Equal(t, int64(10), stored.TotalCoins)
}

func TestBalanceFits(t *testing.T) {
	b := balancedomain.Balance{EarnedCoins: 100, BonusCoins: 50, SpentCoins: 20}

	assert.True(t, b.Fits(20, 1000))
	assert.False(t, b.Fits(-1, 0))
	assert.False(t, b.Fits(0, math.MaxInt64-49))
	assert.True(t, b.Fits(0, math.MaxInt64-150))
	assert.False(t, b.Fits(0, math.MaxInt64-149))
	assert.False(t, b.Fits(math.MaxInt64, 0))
}
