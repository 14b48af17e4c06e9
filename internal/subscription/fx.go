package subscription

import (
	"github.com/rraasi/coin-service/internal/subscription/repository"
	"github.com/rraasi/coin-service/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
