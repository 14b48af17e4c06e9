package scheduler

import (
	"context"
	"testing"
	"time"

	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartStopsRunLoop(t *testing.T) {
	subs := &stubSubscriptions{}
	s, _, _ := newTestScheduler(t, Config{RunInterval: time.Hour}, subs, nil, nil)

	lc := fxtest.NewLifecycle(t)
	Start(lc, s)
	lc.RequireStart()

	require.Eventually(t, func() bool { return subs.callCount() > 0 }, time.Second, 5*time.Millisecond)
	lc.RequireStop()
}

func TestFinishLogCountsDrift(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	balances := &stubBalances{rows: []balancedomain.Balance{
		{UserID: "user-c", TotalCoins: 7, LastUpdated: now},
	}}
	s, _, _ := newTestScheduler(t, Config{}, nil, balances, &stubLedger{})
	core, logs := observer.New(zapcore.InfoLevel)
	s.log = zap.New(core)

	_, err := s.ReconcileBalancesJob(context.Background())
	require.NoError(t, err)

	finished := logs.FilterMessage("scheduler.job.finish").All()
	require.Len(t, finished, 1)
	assert.Equal(t, zapcore.WarnLevel, finished[0].Level)
	fields := finished[0].ContextMap()
	assert.Equal(t, JobReconcileBalances, fields["job"])
	assert.EqualValues(t, 1, fields["drifts"])
	assert.EqualValues(t, 1, fields["rows"])

	assert.Equal(t, 1, logs.FilterMessage("balance drift detected").Len())
}
