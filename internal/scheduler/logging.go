package scheduler

import (
	"context"
	"time"

	obscontext "github.com/rraasi/coin-service/internal/observability/context"
	obslogger "github.com/rraasi/coin-service/internal/observability/logger"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	"go.uber.org/zap"
)

// pass tracks one execution of a job for its start and finish log lines.
type pass struct {
	job     string
	id      string
	started time.Time

	rows     int
	drifts   int
	failures int
}

type passKey struct{}

func (p *pass) processed(n int) {
	if p != nil && n > 0 {
		p.rows += n
	}
}

func (p *pass) drifted(n int) {
	if p != nil && n > 0 {
		p.drifts += n
	}
}

func (p *pass) failed() {
	if p != nil {
		p.failures++
	}
}

// beginPass attaches a pass to ctx unless one is already running. The bool
// reports whether the caller owns the pass and must finish it.
func (s *Scheduler) beginPass(ctx context.Context, job string) (context.Context, *pass, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if current, ok := ctx.Value(passKey{}).(*pass); ok && current != nil {
		return ctx, current, false
	}

	p := &pass{
		job:     job,
		id:      s.genID.Generate().String(),
		started: time.Now(),
	}
	ctx = context.WithValue(ctx, passKey{}, p)
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeSystem, "scheduler")

	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", job),
		zap.String("run_id", p.id),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	return ctx, p, true
}

func (s *Scheduler) finishPass(ctx context.Context, p *pass) {
	if p == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", p.job),
		zap.String("run_id", p.id),
		zap.Int64("duration_ms", time.Since(p.started).Milliseconds()),
		zap.Int("rows", p.rows),
		zap.Int("failures", p.failures),
	}
	if p.job == JobReconcileBalances {
		fields = append(fields, zap.Int("drifts", p.drifts))
	}

	log := s.logger(ctx)
	if p.failures > 0 || p.drifts > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logFailure(ctx context.Context, p *pass, msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	p.failed()
	job := ""
	if p != nil {
		job = p.job
	}
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", job),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	}, fields...)...)
}
