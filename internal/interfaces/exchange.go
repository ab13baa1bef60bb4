package interfaces

import (
	"context"

	"kalshi-llm-bot/internal/types"
)

// Exchange is the prediction-market venue. The action verb (buy|sell)
// rides along with the order because entries buy and the exit flow
// sells through the same port.
type Exchange interface {
	GetMarket(ctx context.Context, ticker string) (types.MarketState, error)
	GetOrderBook(ctx context.Context, ticker string) (types.OrderBook, error)
	GetBalance(ctx context.Context) (int64, error)
	PlaceOrder(ctx context.Context, action, side string, shares, maxPriceCents int) (types.OrderResult, error)
}
