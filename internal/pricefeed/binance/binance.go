package binance

import (
	"context"
	"fmt"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"kalshi-llm-bot/internal/types"
)

// Feed pulls reference-asset candles and spot prices from Binance's
// public market-data endpoints. No credentials needed.
type Feed struct {
	client *gobinance.Client
}

func NewFeed(baseURL string) *Feed {
	client := gobinance.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = baseURL
	}
	return &Feed{client: client}
}

func (f *Feed) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	kls, err := f.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	if len(kls) == 0 {
		return nil, nil
	}

	out := make([]types.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		c := types.Candle{
			Ts:    kl.OpenTime,
			Open:  parsePrice(kl.Open),
			High:  parsePrice(kl.High),
			Low:   parsePrice(kl.Low),
			Close: parsePrice(kl.Close),
			Vol:   parsePrice(kl.Volume),
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *Feed) SpotPrice(ctx context.Context, symbol string) (*float64, error) {
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance spot %s: %w", symbol, err)
	}
	if len(prices) == 0 || prices[0] == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return nil, fmt.Errorf("binance spot %s: bad price %q: %w", symbol, prices[0].Price, err)
	}
	v := d.InexactFloat64()
	return &v, nil
}

// parsePrice goes through decimal to avoid locale/format surprises in
// Binance's string-encoded numbers; malformed fields become 0 rather
// than poisoning the whole window.
func parsePrice(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
