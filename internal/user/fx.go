package user

import (
	"github.com/rraasi/coin-service/internal/user/repository"
	"github.com/rraasi/coin-service/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
