package feature

import "go.uber.org/fx"

var Module = fx.Module("feature.catalog",
	fx.Provide(New),
)
