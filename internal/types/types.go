package types

// Momentum is the direction of the short-window price move.
type Momentum string

const (
	MomentumUp   Momentum = "UP"
	MomentumDown Momentum = "DOWN"
	MomentumFlat Momentum = "FLAT"
)

type Candle struct {
	Ts                          int64 // open time, ms since epoch
	Open, High, Low, Close, Vol float64
}

// PriceIndicators is derived from candle history plus the current spot
// price. Recomputed every cycle, never persisted.
type PriceIndicators struct {
	SpotPrice    float64
	PctChange15m float64
	PctChange1h  float64
	Momentum     Momentum
	SMA15m       float64
	PriceVsSMA   string
	Volatility1m float64
	Last3Candles []Candle
}

// PriceSnapshot ties indicators to the reference symbol they were
// computed for (e.g. BTCUSDT).
type PriceSnapshot struct {
	Symbol     string
	Indicators PriceIndicators
}

// MarketState is the exchange's view of one binary market. Bid/ask and
// last-price pointers are nil when no resting quotes exist.
type MarketState struct {
	Ticker          string
	Title           string
	YesBid          *int
	YesAsk          *int
	NoBid           *int
	NoAsk           *int
	LastPrice       *int
	Volume          int64
	Volume24h       int64
	OpenInterest    int64
	ExpirationTime  string
	MinutesToExpiry float64 // fractional, negative after expiry
	Result          string  // "yes"/"no" once finalized, else empty
}

// Finalized reports whether the market has settled to an outcome.
func (m MarketState) Finalized() bool {
	return m.Result == SideYes || m.Result == SideNo
}

type OrderBookLevel struct {
	PriceCents int
	Quantity   int
}

// OrderBook holds both sides, best price first.
type OrderBook struct {
	Yes []OrderBookLevel
	No  []OrderBookLevel
}

const (
	SideYes = "yes"
	SideNo  = "no"
)

const (
	ResultPending = "pending"
	ResultWin     = "win"
	ResultLoss    = "loss"
)

// LedgerRow is one trade in the append-only ledger. Result transitions
// from pending to win/loss exactly once, at settlement.
type LedgerRow struct {
	ID         int64
	Timestamp  string // "2006-01-02 15:04:05" UTC
	Ticker     string
	Side       string // yes | no
	Shares     int
	PriceCents int
	Result     string // pending | win | loss
	PnlCents   int64
}

// Settled reports whether the row has a terminal result.
func (r LedgerRow) Settled() bool {
	return r.Result == ResultWin || r.Result == ResultLoss
}

// Stats is derived entirely from settled ledger rows.
type Stats struct {
	TotalTrades      int
	Wins             int
	Losses           int
	WinRate          float64
	TotalPnlCents    int64
	TodayPnlCents    int64
	CurrentStreak    int // positive = consecutive wins, negative = losses
	MaxDrawdownCents int64
	AvgWinCents      float64
	AvgLossCents     float64
}

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionPass = "PASS"
)

// TradeDecision is the structured outcome recovered from the brain's
// free-form response. Side/Shares/MaxPriceCents are required whenever
// Action is not PASS; the parser does not enforce that, callers must
// check Actionable before placing an order.
type TradeDecision struct {
	Action        string  `json:"action"`
	Side          *string `json:"side,omitempty"`
	Shares        *int    `json:"shares,omitempty"`
	MaxPriceCents *int    `json:"max_price_cents,omitempty"`
	Reasoning     string  `json:"reasoning"`
}

// Actionable reports whether the decision carries everything needed to
// place an order.
func (d TradeDecision) Actionable() bool {
	if d.Action == ActionPass {
		return false
	}
	return d.Side != nil && d.Shares != nil && *d.Shares > 0 && d.MaxPriceCents != nil
}

type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CycleResult summarizes one full observe-decide-act pass.
type CycleResult struct {
	Ticker      string
	Halted      bool
	HaltReason  string
	SettledRows int
	Decision    *TradeDecision
	Order       *OrderResult
}

// DecisionContext is the immutable snapshot handed to the brain each
// cycle. BTCPrice is nil when the reference feed is unavailable.
type DecisionContext struct {
	PromptMD    string
	Stats       Stats
	LastNTrades []LedgerRow
	Market      MarketState
	OrderBook   OrderBook
	BTCPrice    *PriceSnapshot
}
