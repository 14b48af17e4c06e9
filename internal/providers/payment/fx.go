package payment

import (
	"github.com/rraasi/coin-service/internal/config"
	paymentdomain "github.com/rraasi/coin-service/internal/providers/payment/domain"
	"github.com/rraasi/coin-service/internal/providers/payment/razorpay"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(NewGateway),
)

func NewGateway(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
	if !cfg.Razorpay.Enabled() {
		log.Warn("razorpay credentials not configured; subscription purchase disabled")
		return unconfiguredGateway{}
	}
	return razorpay.New(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, log)
}
