package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rraasi/coin-service/internal/auth"
	"github.com/rraasi/coin-service/internal/authorization"
	"github.com/rraasi/coin-service/internal/balance"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	"github.com/rraasi/coin-service/internal/entitlement"
	"github.com/rraasi/coin-service/internal/feature"
	"github.com/rraasi/coin-service/internal/ledger"
	"github.com/rraasi/coin-service/internal/observability"
	"github.com/rraasi/coin-service/internal/providers"
	"github.com/rraasi/coin-service/internal/ratelimit"
	"github.com/rraasi/coin-service/internal/server"
	"github.com/rraasi/coin-service/internal/subscription"
	"github.com/rraasi/coin-service/internal/user"
	"github.com/rraasi/coin-service/pkg/db"
	"go.uber.org/fx"
)

// The API node serves HTTP only; schema migration and background jobs run
// from the monolith or the scheduler node.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		feature.Module,
		user.Module,
		ledger.Module,
		balance.Module,
		subscription.Module,
		entitlement.Module,
		providers.Module,
		authorization.Module,
		auth.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
