package scheduler

import (
	"context"

	"github.com/rraasi/coin-service/internal/config"
	"go.uber.org/fx"
)

// Module runs the scheduler inside the API process when SCHEDULER_ENABLED is set.
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(startIfEnabled),
)

func startIfEnabled(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}
	Start(lc, sched)
}

// Start ties the run loop to the fx lifecycle. Stop waits for the pass in
// flight to return or for the stop deadline, whichever comes first.
func Start(lc fx.Lifecycle, sched *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
