package decision

import "kalshi-llm-bot/internal/types"

// BuildContext assembles the immutable snapshot handed to the brain.
// Structural assembly only: missing optional inputs (no BTC snapshot,
// empty book) stay representable as-is rather than being errors. Slices
// are copied so later ledger reads cannot mutate the context.
func BuildContext(promptMD string, s types.Stats, lastN []types.LedgerRow, market types.MarketState, book types.OrderBook, btc *types.PriceSnapshot) *types.DecisionContext {
	return &types.DecisionContext{
		PromptMD:    promptMD,
		Stats:       s,
		LastNTrades: append([]types.LedgerRow(nil), lastN...),
		Market:      market,
		OrderBook: types.OrderBook{
			Yes: append([]types.OrderBookLevel(nil), book.Yes...),
			No:  append([]types.OrderBookLevel(nil), book.No...),
		},
		BTCPrice: btc,
	}
}
