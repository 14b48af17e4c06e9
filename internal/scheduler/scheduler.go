package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	"github.com/rraasi/coin-service/internal/clock"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Subscriptions subscriptiondomain.Service
	Balances      balancedomain.Service
	Ledger        ledgerdomain.Service
	Config        Config              `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	subscriptions subscriptiondomain.Service
	balances      balancedomain.Service
	ledger        ledgerdomain.Service
	obsMetrics    *obsmetrics.Metrics

	mu sync.Mutex
	// reconciledThrough is the start of the last reconcile pass that finished.
	reconciledThrough time.Time
}

// Drift describes one balance counter that disagrees with the ledger.
type Drift struct {
	UserID  string
	Field   string
	Balance int64
	Ledger  int64
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Subscriptions == nil || p.Balances == nil || p.Ledger == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		subscriptions: p.Subscriptions,
		balances:      p.Balances,
		ledger:        p.Ledger,
		obsMetrics:    p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.beginPass(ctx, name)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.id),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.failures == 0 {
			run.failed()
		}
		s.finishPass(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobExpireSubscriptions, s.isJobEnabled(JobExpireSubscriptions), s.ExpireSubscriptionsJob},
		{JobReconcileBalances, s.isJobEnabled(JobReconcileBalances), func(ctx context.Context) error {
			_, err := s.ReconcileBalancesJob(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		if jobErr := s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run); jobErr != nil {
			err = errors.Join(err, jobErr)
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireSubscriptionsJob flips lapsed active subscriptions to expired. Reads
// already treat them as inactive, so this only keeps the stored status honest.
func (s *Scheduler) ExpireSubscriptionsJob(ctx context.Context) error {
	ctx, run, owner := s.beginPass(ctx, JobExpireSubscriptions)
	if owner {
		defer s.finishPass(ctx, run)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := s.subscriptions.ExpireDue(ctx, s.cfg.BatchSize)
		if err != nil {
			s.logFailure(ctx, run, "expire_subscriptions_failed", err)
			return err
		}
		run.processed(int(expired))
		obsmetrics.Scheduler().AddBatchProcessed(JobExpireSubscriptions, "subscription", int(expired))
		if expired < int64(s.cfg.BatchSize) {
			return nil
		}
	}
}

// ReconcileBalancesJob compares balances touched since the last pass against
// ledger totals. Drift is logged and counted; balances are never rewritten.
func (s *Scheduler) ReconcileBalancesJob(ctx context.Context) ([]Drift, error) {
	ctx, run, owner := s.beginPass(ctx, JobReconcileBalances)
	if owner {
		defer s.finishPass(ctx, run)
	}

	passStart := s.clock.Now()
	s.mu.Lock()
	since := s.reconciledThrough
	s.mu.Unlock()

	var drifts []Drift
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return drifts, err
		}
		page, err := s.balances.ListUpdatedSince(ctx, balancedomain.ListUpdatedSinceRequest{
			Since:       since,
			AfterUserID: after,
			Limit:       s.cfg.BatchSize,
		})
		if err != nil {
			s.logFailure(ctx, run, "reconcile_list_failed", err)
			return drifts, err
		}
		for _, b := range page {
			found, err := s.reconcileBalance(ctx, b)
			if err != nil {
				s.logFailure(ctx, run, "reconcile_balance_failed", err, zap.String("user_id", b.UserID))
				continue
			}
			run.drifted(len(found))
			drifts = append(drifts, found...)
		}
		run.processed(len(page))
		obsmetrics.Scheduler().AddBatchProcessed(JobReconcileBalances, "balance", len(page))
		if len(page) < s.cfg.BatchSize {
			break
		}
		after = page[len(page)-1].UserID
	}

	s.mu.Lock()
	s.reconciledThrough = passStart
	s.mu.Unlock()
	return drifts, nil
}

func (s *Scheduler) reconcileBalance(ctx context.Context, b balancedomain.Balance) ([]Drift, error) {
	totals, err := s.ledger.Totals(ctx, b.UserID)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	check := func(field string, balanceValue, ledgerValue int64) {
		if balanceValue == ledgerValue {
			return
		}
		drifts = append(drifts, Drift{UserID: b.UserID, Field: field, Balance: balanceValue, Ledger: ledgerValue})
	}
	check("bonus_coins", b.BonusCoins, totals[ledgerdomain.TransactionTypeBonus])
	check("spent_coins", b.SpentCoins, totals[ledgerdomain.TransactionTypeSpend])
	check("total_coins", b.TotalCoins, b.EarnedCoins+b.BonusCoins-b.SpentCoins)

	for _, d := range drifts {
		s.logger(ctx).Warn("balance drift detected",
			zap.String("user_id", d.UserID),
			zap.String("field", d.Field),
			zap.Int64("balance_value", d.Balance),
			zap.Int64("ledger_value", d.Ledger),
		)
		s.obsMetrics.RecordBalanceDrift(ctx, d.Field)
	}
	return drifts, nil
}
