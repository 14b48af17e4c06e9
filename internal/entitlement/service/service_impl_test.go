package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	balancerepo "github.com/rraasi/coin-service/internal/balance/repository"
	balanceservice "github.com/rraasi/coin-service/internal/balance/service"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	"github.com/rraasi/coin-service/internal/feature"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	ledgerrepo "github.com/rraasi/coin-service/internal/ledger/repository"
	ledgerservice "github.com/rraasi/coin-service/internal/ledger/service"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	subscriptionrepo "github.com/rraasi/coin-service/internal/subscription/repository"
	subscriptionservice "github.com/rraasi/coin-service/internal/subscription/service"
	userdomain "github.com/rraasi/coin-service/internal/user/domain"
	userrepo "github.com/rraasi/coin-service/internal/user/repository"
	userservice "github.com/rraasi/coin-service/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	clock    *clock.FakeClock
	balances balancedomain.Service
	ledger   ledgerdomain.Service
	node     *snowflake.Node
}

type countingLocker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (l *countingLocker) Acquire(context.Context, string) (func(), error) {
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func newFixture(t *testing.T, locker entitlementdomain.ChargeLocker) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&balancedomain.Balance{},
		&ledgerdomain.Transaction{},
		&subscriptiondomain.Subscription{},
		&userdomain.Profile{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.NewStaticLedgerConfigHolder(config.DefaultLedgerConfig())

	ledger := ledgerservice.New(ledgerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: ledgerrepo.Provide(), Config: cfg,
	})
	users := userservice.New(userservice.Params{DB: db, Log: log, Clock: clk, Repo: userrepo.Provide()})
	subs := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: subscriptionrepo.Provide(), Ledger: ledger, Users: users,
	})
	balances := balanceservice.New(balanceservice.Params{
		DB: db, Log: log, Clock: clk, Repo: balancerepo.Provide(), Subscriptions: subs, Config: cfg,
	})

	svc := New(Params{
		Log:           log,
		Catalog:       feature.New(),
		Balances:      balances,
		Ledger:        ledger,
		Subscriptions: subs,
		Config:        cfg,
		Locker:        locker,
	}).(*Service)

	return &fixture{db: db, svc: svc, clock: clk, balances: balances, ledger: ledger, node: node}
}

func (f *fixture) grant(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.svc.AddBonus(context.Background(), entitlementdomain.BonusRequest{UserID: userID, Amount: amount, Reason: "test"})
	require.NoError(t, err)
}

func (f *fixture) subscribe(t *testing.T, userID string, coins int64, end time.Time) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.db.Create(&subscriptiondomain.Subscription{
		ID:              f.node.Generate(),
		UserID:          userID,
		PlanID:          "seeker_7",
		PlanName:        "Seeker - 7 Days",
		Status:          subscriptiondomain.SubscriptionStatusActive,
		RraasiCoins:     coins,
		StartDate:       now,
		EndDate:         end,
		ProviderOrderID: "order_" + userID,
		Currency:        "INR",
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error)
}

func (f *fixture) history(t *testing.T, userID string) []*ledgerdomain.Transaction {
	t.Helper()
	resp, err := f.ledger.History(context.Background(), ledgerdomain.HistoryRequest{UserID: userID})
	require.NoError(t, err)
	return resp.Transactions
}

func TestFreshUserFreeTierFeature(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	decision, err := f.svc.CheckAccess(ctx, "fresh", "basic_chat")
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
	assert.Equal(t, entitlementdomain.ReasonFreeTier, decision.Reason)
	assert.Zero(t, decision.Cost)

	b, err := f.balances.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Zero(t, b.EarnedCoins)
	assert.Zero(t, b.BonusCoins)
	assert.Zero(t, b.SpentCoins)
	assert.Zero(t, b.TotalCoins)
}

func TestBonusThenPaidFeature(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 100)

	decision, err := f.svc.CheckAccess(ctx, "u1", "compatibility_check")
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
	assert.Equal(t, entitlementdomain.ReasonSufficientCoins, decision.Reason)
	assert.Equal(t, int64(15), decision.Cost)
	require.NotNil(t, decision.AvailableCoins)
	assert.Equal(t, int64(100), *decision.AvailableCoins)

	result, err := f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{
		UserID:    "u1",
		FeatureID: "compatibility_check",
		Metadata:  map[string]any{"partner": "p1"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(15), result.CoinsDeducted)
	assert.Equal(t, int64(85), result.NewBalance)

	b, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), b.SpentCoins)
	assert.Equal(t, int64(85), b.TotalCoins)

	txns := f.history(t, "u1")
	require.Len(t, txns, 2)
	spend := txns[0]
	assert.Equal(t, ledgerdomain.TransactionTypeSpend, spend.Type)
	assert.Equal(t, result.TransactionID, spend.TransactionID)
	assert.EqualValues(t, 100, spend.Metadata["balanceBefore"])
	assert.EqualValues(t, 85, spend.Metadata["balanceAfter"])
	assert.Equal(t, "p1", spend.Metadata["partner"])
	assert.Equal(t, ledgerdomain.TransactionTypeBonus, txns[1].Type)
}

func TestSubscriptionUnlimitedLogsFreeUsage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.subscribe(t, "u1", 300, f.clock.Now().AddDate(0, 0, 7))

	before, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)

	result, err := f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{UserID: "u1", FeatureID: "birth_chart"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.CoinsDeducted)
	assert.Equal(t, entitlementdomain.ReasonSubscriptionUnlimited, result.Reason)

	after, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before.SpentCoins, after.SpentCoins)
	assert.Equal(t, before.Version, after.Version)

	txns := f.history(t, "u1")
	require.Len(t, txns, 1)
	assert.Equal(t, ledgerdomain.TransactionTypeFreeUsage, txns[0].Type)
	assert.Equal(t, "subscription_unlimited", txns[0].Metadata["reason"])
}

func TestInsufficientCoinsReportsShortfall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 10)

	decision, err := f.svc.CheckAccess(ctx, "u1", "birth_chart")
	require.NoError(t, err)
	assert.False(t, decision.HasAccess)
	assert.Equal(t, entitlementdomain.ReasonInsufficientCoins, decision.Reason)
	assert.Equal(t, int64(25), *decision.RequiredCoins)
	assert.Equal(t, int64(10), *decision.AvailableCoins)

	result, err := f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{UserID: "u1", FeatureID: "birth_chart"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.HasAccess)
	assert.Equal(t, int64(25), *result.RequiredCoins)
	assert.Equal(t, int64(10), *result.AvailableCoins)

	b, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, b.SpentCoins)
	assert.Equal(t, int64(10), b.TotalCoins)
	assert.Len(t, f.history(t, "u1"), 1)
}

func TestFreeTierIgnoresEmptyBalance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, id := range []string{"basic_chat", "daily_horoscope", "guru_chat_basic", "daily_tarot"} {
		decision, err := f.svc.CheckAccess(ctx, "broke", id)
		require.NoError(t, err)
		assert.True(t, decision.HasAccess, id)
		assert.Zero(t, decision.Cost, id)
	}
}

func TestUnknownFeature(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CheckAccess(ctx, "u1", "time_travel")
	assert.ErrorIs(t, err, entitlementdomain.ErrUnknownFeature)

	_, err = f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{UserID: "u1", FeatureID: "time_travel"})
	assert.ErrorIs(t, err, entitlementdomain.ErrUnknownFeature)
}

func TestCheckAccessDoesNotMutate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 50)

	before, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := f.svc.CheckAccess(ctx, "u1", "advanced_analysis")
		require.NoError(t, err)
	}
	after, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.TotalCoins, after.TotalCoins)
}

func TestRepeatedChargesAreMonotonic(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 100)

	for i := 0; i < 4; i++ {
		result, err := f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{UserID: "u1", FeatureID: "compatibility_check"})
		require.NoError(t, err)
		require.True(t, result.Success)
	}

	b, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), b.SpentCoins)
	assert.Equal(t, int64(40), b.TotalCoins)
}

func TestSubscriptionExpiryFlipsToBalance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	end := f.clock.Now().Add(time.Hour)
	f.subscribe(t, "u1", 300, end)

	f.clock.Set(end)
	decision, err := f.svc.CheckAccess(ctx, "u1", "birth_chart")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.ReasonSubscriptionUnlimited, decision.Reason)
	assert.Zero(t, decision.Cost)

	f.clock.Set(end.Add(time.Second))
	decision, err = f.svc.CheckAccess(ctx, "u1", "birth_chart")
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.ReasonInsufficientCoins, decision.Reason)
	assert.Equal(t, int64(25), decision.Cost)
	assert.Equal(t, int64(0), *decision.AvailableCoins)
}

func TestBalanceIncludesSubscriptionGrant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.subscribe(t, "u1", 300, f.clock.Now().AddDate(0, 0, 7))
	f.grant(t, "u1", 20)

	b, err := f.svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), b.EarnedCoins)
	assert.Equal(t, int64(320), b.TotalCoins)
}

func TestDurationCost(t *testing.T) {
	cases := []struct {
		minutes     float64
		wantMinutes int64
		wantCost    int64
	}{
		{0.2, 1, 2},
		{1.4, 2, 4},
		{1, 1, 2},
		{30, 30, 60},
	}
	for _, tc := range cases {
		minutes, cost, err := DurationCost(tc.minutes, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, tc.wantMinutes, minutes, "minutes for %v", tc.minutes)
		assert.Equal(t, tc.wantCost, cost, "cost for %v", tc.minutes)
	}

	_, cost, err := DurationCost(0.2, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cost)

	// cost would not fit in an int64
	for _, minutes := range []float64{5e18, 1e19, math.MaxFloat64} {
		_, _, err := DurationCost(minutes, 2, 2)
		assert.ErrorIs(t, err, entitlementdomain.ErrInvalidDuration, "minutes %v", minutes)
	}
	_, _, err = DurationCost(1e19, 1, 2)
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidDuration)
}

func TestDeductForDuration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 10)

	result, err := f.svc.DeductForDuration(ctx, entitlementdomain.DurationChargeRequest{
		UserID:          "u1",
		DurationMinutes: 1.4,
		Metadata:        map[string]any{"roomId": "r1"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(4), result.CoinsDeducted)
	assert.Equal(t, int64(2), result.DurationMinutes)
	assert.Equal(t, int64(2), result.PerMinuteRate)
	assert.Equal(t, int64(6), result.NewBalance)

	txn := f.history(t, "u1")[0]
	require.NotNil(t, txn.FeatureID)
	assert.Equal(t, feature.SatsangSessionID, *txn.FeatureID)
	assert.EqualValues(t, 2, txn.Metadata["durationMinutes"])
	assert.EqualValues(t, 2, txn.Metadata["coinsPerMinute"])
	assert.Equal(t, "r1", txn.Metadata["roomId"])

	result, err = f.svc.DeductForDuration(ctx, entitlementdomain.DurationChargeRequest{UserID: "u1", DurationMinutes: 10})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int64(20), *result.RequiredCoins)
	assert.Equal(t, int64(6), *result.AvailableCoins)

	_, err = f.svc.DeductForDuration(ctx, entitlementdomain.DurationChargeRequest{UserID: "u1", DurationMinutes: 0})
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidDuration)

	for _, minutes := range []float64{5e18, 1e19} {
		_, err = f.svc.DeductForDuration(ctx, entitlementdomain.DurationChargeRequest{UserID: "u1", DurationMinutes: minutes})
		assert.ErrorIs(t, err, entitlementdomain.ErrInvalidDuration, "minutes %v", minutes)
	}
	bal, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), bal.TotalCoins)
	assert.Len(t, f.history(t, "u1"), 2)
}

func TestConcurrentChargesAllowExactlyOne(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 15)

	var wg sync.WaitGroup
	results := make([]*entitlementdomain.ChargeResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{UserID: "u1", FeatureID: "compatibility_check"})
		}(i)
	}
	wg.Wait()

	var ok, refused int
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Success {
			ok++
		} else {
			refused++
			assert.Equal(t, entitlementdomain.ReasonInsufficientCoins, results[i].Reason)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, refused)

	b, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), b.SpentCoins)
	assert.Zero(t, b.TotalCoins)
}

func TestAddBonus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.svc.AddBonus(ctx, entitlementdomain.BonusRequest{UserID: "u1", Amount: 25, GrantedBy: "admin1"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), result.BonusAdded)
	assert.Equal(t, int64(25), result.NewBalance)

	txn := f.history(t, "u1")[0]
	assert.Equal(t, "Received 25 bonus coins", txn.Description)
	assert.Equal(t, "Bonus", txn.Metadata["reason"])
	assert.Equal(t, "admin1", txn.Metadata["grantedBy"])

	_, err = f.svc.AddBonus(ctx, entitlementdomain.BonusRequest{UserID: "u1", Amount: 0})
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidBonusAmount)
}

func TestAddBonusRejectsOversizedGrants(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AddBonus(ctx, entitlementdomain.BonusRequest{UserID: "u1", Amount: entitlementdomain.MaxBonusAmount + 1})
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidBonusAmount)
	_, err = f.svc.AddBonus(ctx, entitlementdomain.BonusRequest{UserID: "u1", Amount: math.MaxInt64})
	assert.ErrorIs(t, err, entitlementdomain.ErrInvalidBonusAmount)

	result, err := f.svc.AddBonus(ctx, entitlementdomain.BonusRequest{UserID: "u1", Amount: entitlementdomain.MaxBonusAmount})
	require.NoError(t, err)
	assert.Equal(t, entitlementdomain.MaxBonusAmount, result.NewBalance)
	assert.Len(t, f.history(t, "u1"), 1)
}

func TestAddBonusRejectsCounterOverflow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.grant(t, "u1", 10)

	near := int64(math.MaxInt64 - 5)
	require.NoError(t, f.db.Model(&balancedomain.Balance{}).
		Where("user_id = ?", "u1").
		Updates(map[string]any{"bonus_coins": near, "total_coins": near}).Error)

	_, err := f.svc.AddBonus(ctx, entitlementdomain.BonusRequest{UserID: "u1", Amount: 10})
	require.ErrorIs(t, err, entitlementdomain.ErrInvalidBonusAmount)

	bal, err := f.balances.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, near, bal.BonusCoins)
	assert.Equal(t, near, bal.TotalCoins)
	assert.Len(t, f.history(t, "u1"), 1)
}

func TestCommitTakesChargeLock(t *testing.T) {
	locker := &countingLocker{}
	f := newFixture(t, locker)
	ctx := context.Background()
	f.grant(t, "u1", 50)

	_, err := f.svc.CommitCharge(ctx, entitlementdomain.ChargeRequest{UserID: "u1", FeatureID: "compatibility_check"})
	require.NoError(t, err)
	_, err = f.svc.DeductForDuration(ctx, entitlementdomain.DurationChargeRequest{UserID: "u1", DurationMinutes: 3})
	require.NoError(t, err)

	assert.Equal(t, 2, locker.acquired)
	assert.Equal(t, 2, locker.released)
}
