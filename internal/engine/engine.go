package engine

import (
	"context"
	"fmt"

	"kalshi-llm-bot/internal/decision"
	"kalshi-llm-bot/internal/indicators"
	"kalshi-llm-bot/internal/interfaces"
	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/risk"
	"kalshi-llm-bot/internal/stats"
	"kalshi-llm-bot/internal/store"
	"kalshi-llm-bot/internal/trace"
	"kalshi-llm-bot/internal/types"
)

// Engine runs one observe-decide-act cycle per invocation. It owns no
// background goroutines; the process is expected to exit after RunCycle
// returns.
type Engine struct {
	cfg      *store.Config
	exchange interfaces.Exchange
	brain    interfaces.Brain
	feed     interfaces.PriceFeed
	notifier interfaces.Notifier
	ledger   interfaces.Ledger
	promptMD string
}

func New(cfg *store.Config, ex interfaces.Exchange, brain interfaces.Brain, feed interfaces.PriceFeed, n interfaces.Notifier, l interfaces.Ledger, promptMD string) *Engine {
	return &Engine{cfg: cfg, exchange: ex, brain: brain, feed: feed, notifier: n, ledger: l, promptMD: promptMD}
}

// RunCycle executes the full pipeline: observe market and reference
// feed, settle expired positions, compute stats, gate on risk, consult
// the brain, act, record. An error from the exchange, the brain or the
// ledger aborts the cycle with no ledger mutation beyond settlements
// already applied; the reference feed is best-effort and never aborts.
func (e *Engine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunCycle")
	defer span.End()

	ticker := e.cfg.Market.Ticker
	res := &types.CycleResult{Ticker: ticker}
	logger.Info(ctx, "Cycle started", "ticker", ticker, "mode", e.cfg.Mode)

	// Observe the market
	market, err := e.exchange.GetMarket(ctx, ticker)
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to fetch market", err)
	}
	book, err := e.exchange.GetOrderBook(ctx, ticker)
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to fetch order book", err)
	}
	balance, err := e.exchange.GetBalance(ctx)
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to fetch balance", err)
	}
	logger.Debug(ctx, "Market observed",
		"ticker", market.Ticker,
		"yes_bid", deref(market.YesBid),
		"yes_ask", deref(market.YesAsk),
		"minutes_to_expiry", market.MinutesToExpiry,
		"balance_cents", balance,
	)

	// Settle finalized positions before anything reads the ledger
	settled, err := e.settlePending(ctx, market)
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to settle positions", err)
	}
	res.SettledRows = settled

	if market.Finalized() {
		logger.Info(ctx, "Market finalized, nothing to trade", "ticker", ticker, "result", market.Result)
		e.alert(ctx, fmt.Sprintf("🏁 %s settled %s, %d position(s) closed", ticker, market.Result, settled))
		return res, nil
	}

	btc := e.observeReference(ctx)

	rows, err := e.ledger.All(ctx)
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to read ledger", err)
	}
	s := stats.Compute(rows)
	logger.Debug(ctx, "Stats computed",
		"total_trades", s.TotalTrades,
		"win_rate", s.WinRate,
		"total_pnl_cents", s.TotalPnlCents,
		"today_pnl_cents", s.TodayPnlCents,
		"streak", s.CurrentStreak,
	)

	// Risk gate: a halt skips the brain entirely
	if reason, halted := risk.Check(s, balance, e.cfg.Risk); halted {
		res.Halted = true
		res.HaltReason = reason
		logger.Risk(ctx, ticker, "TRADING_HALTED", "reason", reason)
		e.alert(ctx, "🛑 Trading halted: "+reason)
		return res, nil
	}

	lastN, err := e.ledger.LastN(ctx, e.cfg.Market.LedgerTail)
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to read ledger tail", err)
	}
	dc := decision.BuildContext(e.promptMD, s, lastN, market, book, btc)

	if pos := pendingPosition(rows, ticker); pos != nil && market.MinutesToExpiry <= e.cfg.Exit.TriggerMinutes {
		return e.exitCycle(ctx, res, dc, market, pos)
	}

	raw, err := e.brain.Decide(ctx, dc)
	if err != nil {
		return nil, e.abort(ctx, res, "Brain decision failed", err)
	}
	d := decision.Parse(ctx, raw)
	res.Decision = &d
	logger.Decision(ctx, ticker, d.Action, d.Reasoning)

	if d.Action != types.ActionBuy || !d.Actionable() {
		logger.Info(ctx, "No trade this cycle", "ticker", ticker, "action", d.Action)
		e.alert(ctx, fmt.Sprintf("🤔 %s: %s — %s", ticker, d.Action, d.Reasoning))
		return res, nil
	}

	if e.cfg.Mode != store.ModeLive {
		logger.Info(ctx, "Dry run, order suppressed",
			"ticker", ticker, "side", *d.Side, "shares", *d.Shares, "max_price_cents", *d.MaxPriceCents)
		e.alert(ctx, fmt.Sprintf("🧪 DRY_RUN %s: would BUY %d× %s @ ≤%d¢\n%s",
			ticker, *d.Shares, *d.Side, *d.MaxPriceCents, d.Reasoning))
		return res, nil
	}

	order, err := e.exchange.PlaceOrder(ctx, "buy", *d.Side, *d.Shares, *d.MaxPriceCents)
	if err != nil {
		return nil, e.abort(ctx, res, "Order placement failed", err)
	}
	res.Order = &order

	id, err := e.ledger.Append(ctx, types.LedgerRow{
		Ticker:     ticker,
		Side:       *d.Side,
		Shares:     *d.Shares,
		PriceCents: *d.MaxPriceCents,
		Result:     types.ResultPending,
	})
	if err != nil {
		return nil, e.abort(ctx, res, "Failed to record trade", err)
	}
	logger.Info(ctx, "Trade recorded", "ledger_id", id, "order_id", order.OrderID, "status", order.Status)
	e.alert(ctx, fmt.Sprintf("✅ %s: BUY %d× %s @ ≤%d¢ (order %s)\n%s",
		ticker, *d.Shares, *d.Side, *d.MaxPriceCents, order.OrderID, d.Reasoning))
	return res, nil
}

// exitCycle handles a pending position whose market expires within the
// configured trigger window. The brain may only sell or hold here; a
// BUY in this flow is treated as hold.
func (e *Engine) exitCycle(ctx context.Context, res *types.CycleResult, dc *types.DecisionContext, market types.MarketState, pos *types.LedgerRow) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.exitCycle")
	defer span.End()

	logger.Info(ctx, "Position nearing expiry, consulting exit flow",
		"ticker", pos.Ticker,
		"side", pos.Side,
		"entry_price_cents", pos.PriceCents,
		"minutes_to_expiry", market.MinutesToExpiry,
	)

	raw, err := e.brain.DecideExit(ctx, dc, pos.Side, pos.PriceCents, pos.Shares)
	if err != nil {
		return nil, e.abort(ctx, res, "Brain exit decision failed", err)
	}
	d := decision.Parse(ctx, raw)
	res.Decision = &d
	logger.Decision(ctx, pos.Ticker, d.Action, d.Reasoning, "flow", "exit")

	if d.Action != types.ActionSell {
		logger.Info(ctx, "Holding position to expiry", "ticker", pos.Ticker, "action", d.Action)
		e.alert(ctx, fmt.Sprintf("⏳ %s: holding %d× %s to expiry — %s",
			pos.Ticker, pos.Shares, pos.Side, d.Reasoning))
		return res, nil
	}

	price, ok := exitPrice(d, market, pos.Side)
	if !ok {
		logger.Warn(ctx, "No executable exit price, holding position", "ticker", pos.Ticker)
		e.alert(ctx, fmt.Sprintf("⏳ %s: exit wanted but no bid, holding %d× %s to expiry",
			pos.Ticker, pos.Shares, pos.Side))
		return res, nil
	}

	if e.cfg.Mode != store.ModeLive {
		logger.Info(ctx, "Dry run, exit order suppressed",
			"ticker", pos.Ticker, "side", pos.Side, "shares", pos.Shares, "price_cents", price)
		e.alert(ctx, fmt.Sprintf("🧪 DRY_RUN %s: would SELL %d× %s @ %d¢\n%s",
			pos.Ticker, pos.Shares, pos.Side, price, d.Reasoning))
		return res, nil
	}

	order, err := e.exchange.PlaceOrder(ctx, "sell", pos.Side, pos.Shares, price)
	if err != nil {
		return nil, e.abort(ctx, res, "Exit order failed", err)
	}
	res.Order = &order

	pnl := int64(pos.Shares) * int64(price-pos.PriceCents)
	result := types.ResultWin
	if pnl < 0 {
		result = types.ResultLoss
	}
	if err := e.ledger.Settle(ctx, pos.ID, result, pnl); err != nil {
		return nil, e.abort(ctx, res, "Failed to settle exited position", err)
	}
	logger.Info(ctx, "Position exited",
		"ledger_id", pos.ID, "order_id", order.OrderID, "pnl_cents", pnl, "result", result)
	e.alert(ctx, fmt.Sprintf("🚪 %s: SOLD %d× %s @ %d¢, P&L %+d¢\n%s",
		pos.Ticker, pos.Shares, pos.Side, price, pnl, d.Reasoning))
	return res, nil
}

// settlePending closes every pending row on a finalized market against
// its resolved outcome. Binary payout: winners collect 100¢ per share,
// losers forfeit the entry price.
func (e *Engine) settlePending(ctx context.Context, market types.MarketState) (int, error) {
	if !market.Finalized() {
		return 0, nil
	}
	rows, err := e.ledger.All(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if row.Result != types.ResultPending || row.Ticker != market.Ticker {
			continue
		}
		var result string
		var pnl int64
		if row.Side == market.Result {
			result = types.ResultWin
			pnl = int64(row.Shares) * int64(100-row.PriceCents)
		} else {
			result = types.ResultLoss
			pnl = -int64(row.Shares) * int64(row.PriceCents)
		}
		if err := e.ledger.Settle(ctx, row.ID, result, pnl); err != nil {
			return n, err
		}
		logger.Info(ctx, "Position settled",
			"ledger_id", row.ID, "side", row.Side, "market_result", market.Result, "result", result, "pnl_cents", pnl)
		n++
	}
	return n, nil
}

// observeReference fetches BTC spot and candles. Any failure downgrades
// to a nil snapshot so the brain still gets a context.
func (e *Engine) observeReference(ctx context.Context) *types.PriceSnapshot {
	pf := e.cfg.PriceFeed
	spot, err := e.feed.SpotPrice(ctx, pf.Symbol)
	if err != nil {
		logger.Warn(ctx, "Reference spot price unavailable", "symbol", pf.Symbol, "error", err.Error())
		return nil
	}
	if spot == nil {
		logger.Warn(ctx, "Reference spot price missing", "symbol", pf.Symbol)
		return nil
	}
	c1, err := e.feed.Candles(ctx, pf.Symbol, "1m", pf.Limit1m)
	if err != nil {
		logger.Warn(ctx, "1m candles unavailable", "symbol", pf.Symbol, "error", err.Error())
		c1 = nil
	}
	c5, err := e.feed.Candles(ctx, pf.Symbol, "5m", pf.Limit5m)
	if err != nil {
		logger.Warn(ctx, "5m candles unavailable", "symbol", pf.Symbol, "error", err.Error())
		c5 = nil
	}
	inds := indicators.Compute(c1, c5, *spot)
	return &types.PriceSnapshot{Symbol: pf.Symbol, Indicators: inds}
}

// pendingPosition returns the most recent open row for the ticker, or
// nil. Rows arrive in insertion order.
func pendingPosition(rows []types.LedgerRow, ticker string) *types.LedgerRow {
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Ticker == ticker && rows[i].Result == types.ResultPending {
			row := rows[i]
			return &row
		}
	}
	return nil
}

// exitPrice picks the limit price for a sell: the brain's cap when it
// gave one, otherwise the current bid on the held side.
func exitPrice(d types.TradeDecision, market types.MarketState, side string) (int, bool) {
	if d.MaxPriceCents != nil && *d.MaxPriceCents > 0 {
		return *d.MaxPriceCents, true
	}
	bid := market.YesBid
	if side == types.SideNo {
		bid = market.NoBid
	}
	if bid == nil {
		return 0, false
	}
	return *bid, true
}

func (e *Engine) abort(ctx context.Context, res *types.CycleResult, msg string, err error) error {
	logger.ErrorWithErr(ctx, msg, err, "ticker", res.Ticker)
	e.alert(ctx, fmt.Sprintf("⚠️ %s: %s: %v", res.Ticker, msg, err))
	return fmt.Errorf("%s: %w", msg, err)
}

// alert delivers a notification; delivery failures are logged, never
// propagated.
func (e *Engine) alert(ctx context.Context, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Alert(ctx, message); err != nil {
		logger.Warn(ctx, "Notifier delivery failed", "error", err.Error())
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
