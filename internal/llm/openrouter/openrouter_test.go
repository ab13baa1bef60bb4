package openrouter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"kalshi-llm-bot/internal/types"
)

func intp(v int) *int { return &v }

func TestFormatStats(t *testing.T) {
	s := types.Stats{
		TotalTrades: 10, Wins: 6, Losses: 4, WinRate: 0.6,
		TotalPnlCents: 420, TodayPnlCents: -80, CurrentStreak: 2, MaxDrawdownCents: 300,
	}

	got := formatStats(s)

	assert.Equal(t, "Trades: 10 | W/L: 6/4 | Win rate: 60.0% | P&L: 420¢ | Today: -80¢ | Streak: 2 | Drawdown: 300¢", got)
}

func TestFormatLedgerEmpty(t *testing.T) {
	assert.Equal(t, "No trades yet.", formatLedger(nil))
}

func TestFormatMarketMissingQuotes(t *testing.T) {
	m := types.MarketState{Ticker: "KXBTCD-TEST", Title: "BTC above 60k?", YesBid: intp(42), MinutesToExpiry: 12.34}

	got := formatMarket(m)

	assert.Contains(t, got, "Yes bid/ask: 42/-")
	assert.Contains(t, got, "(12.3min)")
}

func TestFormatBookSideTruncatesToFive(t *testing.T) {
	levels := []types.OrderBookLevel{
		{PriceCents: 48, Quantity: 100}, {PriceCents: 47, Quantity: 90}, {PriceCents: 46, Quantity: 80},
		{PriceCents: 45, Quantity: 70}, {PriceCents: 44, Quantity: 60}, {PriceCents: 43, Quantity: 50},
	}

	got := formatBookSide(levels)

	assert.Equal(t, "48¢ x100, 47¢ x90, 46¢ x80, 45¢ x70, 44¢ x60", got)
	assert.Equal(t, "empty", formatBookSide(nil))
}

func TestBTCSectionUnavailable(t *testing.T) {
	assert.Contains(t, btcSection(nil, true), "Unavailable this cycle.")
	assert.Contains(t, btcSection(nil, false), "Unavailable.")
}

func TestFormatIndicatorsIncludesCandles(t *testing.T) {
	ind := types.PriceIndicators{
		SpotPrice: 60_123.45, PctChange15m: 0.123, PctChange1h: -0.5,
		Momentum: types.MomentumUp, SMA15m: 60_000, PriceVsSMA: "above +0.206%",
		Volatility1m: 0.0421,
		Last3Candles: []types.Candle{{Open: 60_000, High: 60_200, Low: 59_900, Close: 60_100, Vol: 12.3}},
	}

	got := formatIndicators(ind)

	assert.True(t, strings.HasPrefix(got, "Spot: $60123.45 | 15m change: +0.123% | 1h change: -0.500% | Momentum: UP"))
	assert.Contains(t, got, "Last 3 candles (1m): O:60000 H:60200 L:59900 C:60100 V:12.3")
}
