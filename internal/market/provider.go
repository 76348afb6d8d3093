package market

import (
	"context"
)

// Provider supplies candle history and derivative metrics for symbols.
// Implementations wrap exchange REST/WebSocket clients; the pipeline
// treats them as a synchronous dependency returning data-or-failure.
type Provider interface {
	GetCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
	GetDerivatives(ctx context.Context, symbol string) (DerivativesSnapshot, error)
}
