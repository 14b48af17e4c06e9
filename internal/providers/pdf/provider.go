package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders coin documents as PDF.
type Provider interface {
	GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

var Module = fx.Module("pdf",
	fx.Provide(New),
)
