package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rraasi/coin-service/internal/balance"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	"github.com/rraasi/coin-service/internal/ledger"
	"github.com/rraasi/coin-service/internal/migration"
	"github.com/rraasi/coin-service/internal/observability"
	"github.com/rraasi/coin-service/internal/providers"
	"github.com/rraasi/coin-service/internal/scheduler"
	"github.com/rraasi/coin-service/internal/subscription"
	"github.com/rraasi/coin-service/internal/user"
	"github.com/rraasi/coin-service/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by scheduler
		user.Module,
		ledger.Module,
		balance.Module,
		subscription.Module,
		providers.Module,

		// No server module; the dedicated node ignores SCHEDULER_ENABLED.
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),
		fx.Invoke(scheduler.Start),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
