package providers

import (
	"github.com/rraasi/coin-service/internal/providers/payment"
	"github.com/rraasi/coin-service/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	payment.Module,
	pdf.Module,
)
