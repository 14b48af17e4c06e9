package scheduler

import (
	"time"

	"github.com/rraasi/coin-service/internal/config"
)

const (
	JobExpireSubscriptions = "expire_subscriptions"
	JobReconcileBalances   = "reconcile_balances"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// EnabledJobs limits the run to the named jobs; empty runs every job.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   200,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	jobs := make([]string, 0, 2)
	if sc.ExpireEnabled {
		jobs = append(jobs, JobExpireSubscriptions)
	}
	if sc.ReconcileOn {
		jobs = append(jobs, JobReconcileBalances)
	}
	if len(jobs) == 0 {
		// Both switched off; keep the loop idle rather than running everything.
		jobs = append(jobs, "none")
	}
	return Config{
		RunInterval: sc.Interval,
		BatchSize:   sc.BatchSize,
		JobTimeout:  sc.JobTimeout,
		EnabledJobs: jobs,
	}.withDefaults()
}
