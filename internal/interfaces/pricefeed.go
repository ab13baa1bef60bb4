package interfaces

import (
	"context"

	"kalshi-llm-bot/internal/types"
)

// PriceFeed supplies reference-asset candles and spot. A nil slice or
// nil price with a nil error means "unavailable this cycle", not a
// failure.
type PriceFeed interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	SpotPrice(ctx context.Context, symbol string) (*float64, error)
}
