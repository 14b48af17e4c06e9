package balance

import (
	"github.com/rraasi/coin-service/internal/balance/repository"
	"github.com/rraasi/coin-service/internal/balance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
