package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/types"
)

const defaultBaseURL = "https://api.elections.kalshi.com"

// Client talks to the Kalshi trade API. Every request carries the
// Auth signer's header set.
type Client struct {
	baseURL string
	ticker  string
	auth    *Auth
	http    *http.Client
}

type Params struct {
	BaseURL string
	Ticker  string // the one market this bot trades
	KeyID   string
	KeyPEM  string
}

func NewClient(p Params) (*Client, error) {
	auth, err := NewAuth(p.KeyID, p.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("kalshi auth: %w", err)
	}
	base := p.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		baseURL: base,
		ticker:  p.Ticker,
		auth:    auth,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type marketJSON struct {
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	YesBid         int    `json:"yes_bid"`
	YesAsk         int    `json:"yes_ask"`
	NoBid          int    `json:"no_bid"`
	NoAsk          int    `json:"no_ask"`
	LastPrice      int    `json:"last_price"`
	Volume         int64  `json:"volume"`
	Volume24h      int64  `json:"volume_24h"`
	OpenInterest   int64  `json:"open_interest"`
	ExpirationTime string `json:"expiration_time"`
	Result         string `json:"result"`
}

func (c *Client) GetMarket(ctx context.Context, ticker string) (types.MarketState, error) {
	var resp struct {
		Market marketJSON `json:"market"`
	}
	if err := c.do(ctx, http.MethodGet, "/trade-api/v2/markets/"+ticker, nil, &resp); err != nil {
		return types.MarketState{}, err
	}

	m := resp.Market
	state := types.MarketState{
		Ticker:         m.Ticker,
		Title:          m.Title,
		YesBid:         centsPtr(m.YesBid),
		YesAsk:         centsPtr(m.YesAsk),
		NoBid:          centsPtr(m.NoBid),
		NoAsk:          centsPtr(m.NoAsk),
		LastPrice:      centsPtr(m.LastPrice),
		Volume:         m.Volume,
		Volume24h:      m.Volume24h,
		OpenInterest:   m.OpenInterest,
		ExpirationTime: m.ExpirationTime,
		Result:         m.Result,
	}
	if exp, err := time.Parse(time.RFC3339, m.ExpirationTime); err == nil {
		state.MinutesToExpiry = time.Until(exp).Minutes()
	}
	return state, nil
}

func (c *Client) GetOrderBook(ctx context.Context, ticker string) (types.OrderBook, error) {
	var resp struct {
		OrderBook struct {
			Yes [][2]int `json:"yes"`
			No  [][2]int `json:"no"`
		} `json:"orderbook"`
	}
	if err := c.do(ctx, http.MethodGet, "/trade-api/v2/markets/"+ticker+"/orderbook", nil, &resp); err != nil {
		return types.OrderBook{}, err
	}
	return types.OrderBook{
		Yes: bookSide(resp.OrderBook.Yes),
		No:  bookSide(resp.OrderBook.No),
	}, nil
}

func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/trade-api/v2/portfolio/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *Client) PlaceOrder(ctx context.Context, action, side string, shares, maxPriceCents int) (types.OrderResult, error) {
	body := map[string]any{
		"ticker":          c.ticker,
		"client_order_id": uuid.NewString(),
		"action":          action, // buy | sell
		"side":            side,
		"count":           shares,
		"type":            "limit",
	}
	if side == types.SideYes {
		body["yes_price"] = maxPriceCents
	} else {
		body["no_price"] = maxPriceCents
	}

	var resp struct {
		Order struct {
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
		} `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/trade-api/v2/portfolio/orders", body, &resp); err != nil {
		return types.OrderResult{}, err
	}
	logger.Trade(ctx, c.ticker, side, shares, float64(maxPriceCents), resp.Order.OrderID, "action", action)
	return types.OrderResult{OrderID: resp.Order.OrderID, Status: resp.Order.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	for k, v := range c.auth.Headers(method, path) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kalshi %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kalshi %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("kalshi %s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("kalshi %s %s: decode: %w", method, path, err)
	}
	return nil
}

// centsPtr maps the API's zero-value prices to "no resting quote".
func centsPtr(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

// bookSide converts [price, quantity] pairs. Kalshi returns levels in
// ascending price order; best price goes first.
func bookSide(levels [][2]int) []types.OrderBookLevel {
	out := make([]types.OrderBookLevel, 0, len(levels))
	for i := len(levels) - 1; i >= 0; i-- {
		out = append(out, types.OrderBookLevel{PriceCents: levels[i][0], Quantity: levels[i][1]})
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
