package ratelimit

import "go.uber.org/fx"

// Module wires redis, the per-user charge throttle and the charge lock.
// With REDIS_ENABLED unset every piece degrades to a no-op.
var Module = fx.Module("ratelimit",
	fx.Provide(
		NewRedisClient,
		NewChargeLimiter,
		NewChargeLocker,
	),
)
