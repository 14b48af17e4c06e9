package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	authdomain "github.com/rraasi/coin-service/internal/auth/domain"
	"github.com/rraasi/coin-service/internal/auth/service"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("auth",
	fx.Provide(NewVerifier),
)

func NewVerifier(cfg config.Config, clk clock.Clock, log *zap.Logger) authdomain.Verifier {
	if cfg.Auth.Disabled && !cfg.IsProduction() {
		log.Warn("token verification disabled; trusting X-User-Id")
		return service.NewHeaderVerifier(cfg.Auth.AdminUIDs)
	}
	keySet := oidc.NewRemoteKeySet(context.Background(), service.FirebaseJWKSURL)
	return service.NewOIDCVerifier(cfg.Auth.Issuer, cfg.Auth.Audience, keySet, cfg.Auth.AdminUIDs, clk, log)
}
