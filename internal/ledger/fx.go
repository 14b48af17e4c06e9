package ledger

import (
	"github.com/rraasi/coin-service/internal/ledger/repository"
	"github.com/rraasi/coin-service/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
