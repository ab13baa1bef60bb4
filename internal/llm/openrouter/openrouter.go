package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"kalshi-llm-bot/internal/store"
	"kalshi-llm-bot/internal/trace"
	"kalshi-llm-bot/internal/types"
)

const endpoint = "https://openrouter.ai/api/v1/chat/completions"

// Brain asks an OpenRouter-hosted model for a trade decision. It only
// moves text: prompt out, raw completion back. Structure recovery is
// the decision parser's job.
type Brain struct {
	cfg    *store.Config
	apiKey string
	http   *http.Client
}

func NewBrain(cfg *store.Config, apiKey string) *Brain {
	return &Brain{cfg: cfg, apiKey: apiKey, http: &http.Client{Timeout: 90 * time.Second}}
}

func (b *Brain) Decide(ctx context.Context, dc *types.DecisionContext) (string, error) {
	prompt := fmt.Sprintf(
		"%s\n\n---\n## STATS\n%s\n\n---\n## LAST %d TRADES\n%s\n\n---\n## MARKET\n%s\n\n---\n## ORDERBOOK\nYes bids: %s\nNo bids: %s%s",
		dc.PromptMD,
		formatStats(dc.Stats),
		len(dc.LastNTrades),
		formatLedger(dc.LastNTrades),
		formatMarket(dc.Market),
		formatBookSide(dc.OrderBook.Yes),
		formatBookSide(dc.OrderBook.No),
		btcSection(dc.BTCPrice, true),
	)
	return b.call(ctx, prompt, b.cfg.LLM.MaxTokens)
}

func (b *Brain) DecideExit(ctx context.Context, dc *types.DecisionContext, entrySide string, entryPriceCents, shares int) (string, error) {
	side := strings.ToUpper(entrySide)
	prompt := fmt.Sprintf(
		"You hold %dx %s @ %d¢ on %s.\n"+
			"The contract expires in %.1f minutes.\n\n"+
			"## CURRENT MARKET\n%s\n\n"+
			"## ORDERBOOK\nYes bids: %s\nNo bids: %s%s\n\n"+
			"## DECISION\n"+
			"Should you SELL your %s contracts to lock in profit/cut loss, or HOLD to expiry?\n"+
			"If SELL, set max_price_cents to the price you'd sell your %s at (look at the %s bid side of the orderbook).\n"+
			"Respond with JSON: {\"action\": \"SELL\" or \"PASS\", \"side\": %q, \"shares\": %d, \"max_price_cents\": <sell price for your %s contracts>, \"reasoning\": \"...\"}\n"+
			"SELL = close now. PASS = hold to expiry.",
		shares, side, entryPriceCents, dc.Market.Ticker,
		dc.Market.MinutesToExpiry,
		formatMarket(dc.Market),
		formatBookSide(dc.OrderBook.Yes),
		formatBookSide(dc.OrderBook.No),
		btcSection(dc.BTCPrice, false),
		side, side, side,
		strings.ToLower(entrySide), shares, side,
	)
	return b.call(ctx, prompt, b.cfg.LLM.ExitMaxTokens)
}

func (b *Brain) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openrouter.call")
	defer span.End()

	reqBody, err := json.Marshal(map[string]any{
		"model":       b.cfg.LLM.Model,
		"max_tokens":  maxTokens,
		"temperature": b.cfg.LLM.Temperature,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openrouter read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, body)
	}

	// Some models put everything in the reasoning field and leave
	// content empty; accept either.
	msg := gjson.GetBytes(body, "choices.0.message")
	content := msg.Get("content").String()
	if content == "" {
		content = msg.Get("reasoning").String()
	}
	if content == "" {
		return "", errors.New("no content in openrouter response")
	}
	return content, nil
}

func formatStats(s types.Stats) string {
	return fmt.Sprintf(
		"Trades: %d | W/L: %d/%d | Win rate: %.1f%% | P&L: %d¢ | Today: %d¢ | Streak: %d | Drawdown: %d¢",
		s.TotalTrades, s.Wins, s.Losses, s.WinRate*100,
		s.TotalPnlCents, s.TodayPnlCents, s.CurrentStreak, s.MaxDrawdownCents,
	)
}

func formatLedger(trades []types.LedgerRow) string {
	if len(trades) == 0 {
		return "No trades yet."
	}
	lines := make([]string, 0, len(trades))
	for _, t := range trades {
		lines = append(lines, fmt.Sprintf("%s | %s | %s | %dx @ %d¢ | %s | %d¢",
			t.Timestamp, t.Ticker, t.Side, t.Shares, t.PriceCents, t.Result, t.PnlCents))
	}
	return strings.Join(lines, "\n")
}

func formatMarket(m types.MarketState) string {
	return fmt.Sprintf(
		"Ticker: %s | Title: %s | Yes bid/ask: %s/%s | No bid/ask: %s/%s | Last: %s | Vol: %d | 24h Vol: %d | OI: %d | Expiry: %s (%.1fmin)",
		m.Ticker, m.Title, cents(m.YesBid), cents(m.YesAsk), cents(m.NoBid), cents(m.NoAsk),
		cents(m.LastPrice), m.Volume, m.Volume24h, m.OpenInterest,
		m.ExpirationTime, m.MinutesToExpiry,
	)
}

func formatBookSide(levels []types.OrderBookLevel) string {
	if len(levels) == 0 {
		return "empty"
	}
	if len(levels) > 5 {
		levels = levels[:5]
	}
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		parts = append(parts, fmt.Sprintf("%d¢ x%d", l.PriceCents, l.Quantity))
	}
	return strings.Join(parts, ", ")
}

func btcSection(snap *types.PriceSnapshot, full bool) string {
	if snap == nil {
		if full {
			return "\n\n---\n## BTC PRICE\nUnavailable this cycle."
		}
		return "\n\n## BTC PRICE\nUnavailable."
	}
	if full {
		return fmt.Sprintf("\n\n---\n## BTC PRICE (Binance %s)\n%s", snap.Symbol, formatIndicators(snap.Indicators))
	}
	return fmt.Sprintf("\n\n## BTC PRICE\n%s", formatIndicators(snap.Indicators))
}

func formatIndicators(ind types.PriceIndicators) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Spot: $%.2f | 15m change: %+.3f%% | 1h change: %+.3f%% | Momentum: %s\nSMA(15x1m): $%.2f | Price vs SMA: %s | 1m volatility: %.4f%%",
		ind.SpotPrice, ind.PctChange15m, ind.PctChange1h, ind.Momentum,
		ind.SMA15m, ind.PriceVsSMA, ind.Volatility1m,
	)
	if len(ind.Last3Candles) > 0 {
		sb.WriteString("\nLast 3 candles (1m): ")
		parts := make([]string, 0, len(ind.Last3Candles))
		for _, c := range ind.Last3Candles {
			parts = append(parts, fmt.Sprintf("O:%.0f H:%.0f L:%.0f C:%.0f V:%.1f", c.Open, c.High, c.Low, c.Close, c.Vol))
		}
		sb.WriteString(strings.Join(parts, " | "))
	}
	return sb.String()
}

func cents(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
