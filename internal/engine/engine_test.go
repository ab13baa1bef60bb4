package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalshi-llm-bot/internal/risk"
	"kalshi-llm-bot/internal/store"
	"kalshi-llm-bot/internal/types"
)

const testTicker = "KXBTCD-25AUG29-T110000"

type placedOrder struct {
	action string
	side   string
	shares int
	price  int
}

type fakeExchange struct {
	market    types.MarketState
	book      types.OrderBook
	balance   int64
	marketErr error
	orderErr  error
	placed    []placedOrder
}

func (f *fakeExchange) GetMarket(ctx context.Context, ticker string) (types.MarketState, error) {
	return f.market, f.marketErr
}

func (f *fakeExchange) GetOrderBook(ctx context.Context, ticker string) (types.OrderBook, error) {
	return f.book, nil
}

func (f *fakeExchange) GetBalance(ctx context.Context) (int64, error) {
	return f.balance, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, action, side string, shares, maxPriceCents int) (types.OrderResult, error) {
	if f.orderErr != nil {
		return types.OrderResult{}, f.orderErr
	}
	f.placed = append(f.placed, placedOrder{action: action, side: side, shares: shares, price: maxPriceCents})
	return types.OrderResult{OrderID: fmt.Sprintf("ord-%d", len(f.placed)), Status: "resting"}, nil
}

type fakeBrain struct {
	response  string
	err       error
	calls     int
	exitCalls int
	lastCtx   *types.DecisionContext
}

func (f *fakeBrain) Decide(ctx context.Context, dc *types.DecisionContext) (string, error) {
	f.calls++
	f.lastCtx = dc
	return f.response, f.err
}

func (f *fakeBrain) DecideExit(ctx context.Context, dc *types.DecisionContext, entrySide string, entryPriceCents, shares int) (string, error) {
	f.exitCalls++
	f.lastCtx = dc
	return f.response, f.err
}

type fakeFeed struct {
	spot    float64
	spotErr error
}

func (f *fakeFeed) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	return []types.Candle{{Ts: 1, Close: f.spot}, {Ts: 2, Close: f.spot}}, nil
}

func (f *fakeFeed) SpotPrice(ctx context.Context, symbol string) (*float64, error) {
	if f.spotErr != nil {
		return nil, f.spotErr
	}
	s := f.spot
	return &s, nil
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Alert(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return f.err
}

type fakeLedger struct {
	rows   []types.LedgerRow
	nextID int64
}

func (f *fakeLedger) Append(ctx context.Context, row types.LedgerRow) (int64, error) {
	f.nextID++
	row.ID = f.nextID
	if row.Result == "" {
		row.Result = types.ResultPending
	}
	f.rows = append(f.rows, row)
	return row.ID, nil
}

func (f *fakeLedger) Settle(ctx context.Context, id int64, result string, pnlCents int64) error {
	for i := range f.rows {
		if f.rows[i].ID == id {
			if f.rows[i].Result != types.ResultPending {
				return errors.New("row already settled")
			}
			f.rows[i].Result = result
			f.rows[i].PnlCents = pnlCents
			return nil
		}
	}
	return errors.New("row not found")
}

func (f *fakeLedger) All(ctx context.Context) ([]types.LedgerRow, error) {
	out := make([]types.LedgerRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeLedger) LastN(ctx context.Context, n int) ([]types.LedgerRow, error) {
	if len(f.rows) <= n {
		return f.All(ctx)
	}
	out := make([]types.LedgerRow, n)
	copy(out, f.rows[len(f.rows)-n:])
	return out, nil
}

func centsP(v int) *int { return &v }

func testConfig() *store.Config {
	cfg := &store.Config{Mode: store.ModeLive}
	cfg.Market.Ticker = testTicker
	cfg.Market.LedgerTail = 10
	cfg.PriceFeed.Symbol = "BTCUSDT"
	cfg.PriceFeed.Limit1m = 15
	cfg.PriceFeed.Limit5m = 12
	cfg.Risk = risk.Limits{
		MinBalanceCents:      500,
		StopLossPct:          0.2,
		MaxDailyLossCents:    1000,
		MaxConsecutiveLosses: 3,
	}
	cfg.Exit.TriggerMinutes = 10
	return cfg
}

func openMarket() types.MarketState {
	return types.MarketState{
		Ticker:          testTicker,
		Title:           "BTC above 110k at 5pm EDT?",
		YesBid:          centsP(44),
		YesAsk:          centsP(46),
		NoBid:           centsP(54),
		NoAsk:           centsP(56),
		LastPrice:       centsP(45),
		MinutesToExpiry: 120,
	}
}

func newTestEngine(cfg *store.Config, ex *fakeExchange, brain *fakeBrain, led *fakeLedger, not *fakeNotifier) *Engine {
	return New(cfg, ex, brain, &fakeFeed{spot: 110500}, not, led, "You are a trader.")
}

const buyResponse = `{"action":"BUY","side":"yes","shares":10,"max_price_cents":45,"reasoning":"momentum favors yes"}`

func TestRunCycleBuyFlow(t *testing.T) {
	ex := &fakeExchange{market: openMarket(), balance: 10_000}
	brain := &fakeBrain{response: buyResponse}
	led := &fakeLedger{}
	not := &fakeNotifier{}
	e := newTestEngine(testConfig(), ex, brain, led, not)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	require.Len(t, ex.placed, 1)
	assert.Equal(t, placedOrder{action: "buy", side: "yes", shares: 10, price: 45}, ex.placed[0])

	require.Len(t, led.rows, 1)
	assert.Equal(t, types.ResultPending, led.rows[0].Result)
	assert.Equal(t, testTicker, led.rows[0].Ticker)
	assert.Equal(t, 45, led.rows[0].PriceCents)

	require.NotEmpty(t, not.messages)
	assert.Contains(t, not.messages[len(not.messages)-1], "BUY 10× yes")
}

func TestRunCycleRiskHaltSkipsBrain(t *testing.T) {
	ex := &fakeExchange{market: openMarket(), balance: 100}
	brain := &fakeBrain{response: buyResponse}
	led := &fakeLedger{}
	not := &fakeNotifier{}
	e := newTestEngine(testConfig(), ex, brain, led, not)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Halted)
	assert.Contains(t, res.HaltReason, "minimum")
	assert.Zero(t, brain.calls, "halt must not consult the brain")
	assert.Empty(t, ex.placed)
	require.NotEmpty(t, not.messages)
	assert.Contains(t, not.messages[0], "Trading halted")
}

func TestRunCycleDryRunSuppressesOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = store.ModeDryRun
	ex := &fakeExchange{market: openMarket(), balance: 10_000}
	brain := &fakeBrain{response: buyResponse}
	led := &fakeLedger{}
	e := newTestEngine(cfg, ex, brain, led, &fakeNotifier{})

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Decision)
	assert.Equal(t, types.ActionBuy, res.Decision.Action)
	assert.Empty(t, ex.placed)
	assert.Empty(t, led.rows)
}

func TestRunCycleGarbageResponseBecomesPass(t *testing.T) {
	ex := &fakeExchange{market: openMarket(), balance: 10_000}
	brain := &fakeBrain{response: "I cannot decide right now, sorry."}
	led := &fakeLedger{}
	e := newTestEngine(testConfig(), ex, brain, led, &fakeNotifier{})

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Decision)
	assert.Equal(t, types.ActionPass, res.Decision.Action)
	assert.Empty(t, ex.placed)
	assert.Empty(t, led.rows)
}

func TestRunCycleBrainErrorAborts(t *testing.T) {
	ex := &fakeExchange{market: openMarket(), balance: 10_000}
	brain := &fakeBrain{err: errors.New("upstream 503")}
	led := &fakeLedger{}
	not := &fakeNotifier{}
	e := newTestEngine(testConfig(), ex, brain, led, not)

	_, err := e.RunCycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, ex.placed)
	assert.Empty(t, led.rows)
	require.NotEmpty(t, not.messages)
	assert.Contains(t, not.messages[0], "Brain decision failed")
}

func TestRunCycleExchangeErrorAborts(t *testing.T) {
	ex := &fakeExchange{marketErr: errors.New("connection refused")}
	brain := &fakeBrain{response: buyResponse}
	e := newTestEngine(testConfig(), ex, brain, &fakeLedger{}, &fakeNotifier{})

	_, err := e.RunCycle(context.Background())
	require.Error(t, err)
	assert.Zero(t, brain.calls)
}

func TestRunCycleExitFlowSells(t *testing.T) {
	market := openMarket()
	market.MinutesToExpiry = 6
	ex := &fakeExchange{market: market, balance: 10_000}
	brain := &fakeBrain{response: `{"action":"SELL","side":"yes","shares":10,"max_price_cents":60,"reasoning":"lock in profit"}`}
	led := &fakeLedger{}
	_, err := led.Append(context.Background(), types.LedgerRow{
		Ticker: testTicker, Side: types.SideYes, Shares: 10, PriceCents: 45,
	})
	require.NoError(t, err)
	e := newTestEngine(testConfig(), ex, brain, led, &fakeNotifier{})

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, brain.exitCalls)
	assert.Zero(t, brain.calls, "exit flow must use the exit prompt")

	require.Len(t, ex.placed, 1)
	assert.Equal(t, placedOrder{action: "sell", side: "yes", shares: 10, price: 60}, ex.placed[0])

	require.Len(t, led.rows, 1)
	assert.Equal(t, types.ResultWin, led.rows[0].Result)
	assert.Equal(t, int64(150), led.rows[0].PnlCents) // 10 × (60−45)
	require.NotNil(t, res.Order)
}

func TestRunCycleExitHoldOnPass(t *testing.T) {
	market := openMarket()
	market.MinutesToExpiry = 6
	ex := &fakeExchange{market: market, balance: 10_000}
	brain := &fakeBrain{response: `{"action":"PASS","reasoning":"still in range"}`}
	led := &fakeLedger{}
	_, err := led.Append(context.Background(), types.LedgerRow{
		Ticker: testTicker, Side: types.SideYes, Shares: 10, PriceCents: 45,
	})
	require.NoError(t, err)
	e := newTestEngine(testConfig(), ex, brain, led, &fakeNotifier{})

	_, err = e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, brain.exitCalls)
	assert.Empty(t, ex.placed)
	assert.Equal(t, types.ResultPending, led.rows[0].Result)
}

func TestRunCycleSettlesFinalizedMarket(t *testing.T) {
	market := openMarket()
	market.Result = types.SideYes
	market.MinutesToExpiry = -30
	ex := &fakeExchange{market: market, balance: 10_000}
	brain := &fakeBrain{response: buyResponse}
	led := &fakeLedger{}
	_, err := led.Append(context.Background(), types.LedgerRow{
		Ticker: testTicker, Side: types.SideYes, Shares: 10, PriceCents: 40,
	})
	require.NoError(t, err)
	e := newTestEngine(testConfig(), ex, brain, led, &fakeNotifier{})

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.SettledRows)
	assert.Zero(t, brain.calls, "finalized market must not trade")
	assert.Empty(t, ex.placed)

	assert.Equal(t, types.ResultWin, led.rows[0].Result)
	assert.Equal(t, int64(600), led.rows[0].PnlCents) // 10 × (100−40)
}

func TestRunCycleSettlesLosingSide(t *testing.T) {
	market := openMarket()
	market.Result = types.SideNo
	ex := &fakeExchange{market: market, balance: 10_000}
	led := &fakeLedger{}
	_, err := led.Append(context.Background(), types.LedgerRow{
		Ticker: testTicker, Side: types.SideYes, Shares: 5, PriceCents: 70,
	})
	require.NoError(t, err)
	e := newTestEngine(testConfig(), ex, &fakeBrain{}, led, &fakeNotifier{})

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.SettledRows)
	assert.Equal(t, types.ResultLoss, led.rows[0].Result)
	assert.Equal(t, int64(-350), led.rows[0].PnlCents) // 5 × 70¢ forfeited
}

func TestRunCycleFeedFailureStillTrades(t *testing.T) {
	ex := &fakeExchange{market: openMarket(), balance: 10_000}
	brain := &fakeBrain{response: buyResponse}
	led := &fakeLedger{}
	cfg := testConfig()
	e := New(cfg, ex, brain, &fakeFeed{spotErr: errors.New("dns failure")}, &fakeNotifier{}, led, "prompt")

	_, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, brain.lastCtx)
	assert.Nil(t, brain.lastCtx.BTCPrice, "feed failure must degrade to a nil snapshot")
	require.Len(t, ex.placed, 1)
}

func TestRunCycleNotifierFailureIgnored(t *testing.T) {
	ex := &fakeExchange{market: openMarket(), balance: 10_000}
	brain := &fakeBrain{response: buyResponse}
	led := &fakeLedger{}
	not := &fakeNotifier{err: errors.New("telegram down")}
	e := newTestEngine(testConfig(), ex, brain, led, not)

	_, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, ex.placed, 1)
	require.Len(t, led.rows, 1)
}

func TestPendingPosition(t *testing.T) {
	rows := []types.LedgerRow{
		{ID: 1, Ticker: testTicker, Result: types.ResultWin},
		{ID: 2, Ticker: "OTHER", Result: types.ResultPending},
		{ID: 3, Ticker: testTicker, Result: types.ResultPending},
		{ID: 4, Ticker: testTicker, Result: types.ResultLoss},
	}
	pos := pendingPosition(rows, testTicker)
	require.NotNil(t, pos)
	assert.Equal(t, int64(3), pos.ID)

	assert.Nil(t, pendingPosition(rows, "UNSEEN"))
	assert.Nil(t, pendingPosition(nil, testTicker))
}

func TestExitPrice(t *testing.T) {
	market := openMarket()

	d := types.TradeDecision{Action: types.ActionSell, MaxPriceCents: centsP(61)}
	price, ok := exitPrice(d, market, types.SideYes)
	require.True(t, ok)
	assert.Equal(t, 61, price)

	price, ok = exitPrice(types.TradeDecision{Action: types.ActionSell}, market, types.SideYes)
	require.True(t, ok)
	assert.Equal(t, 44, price)

	price, ok = exitPrice(types.TradeDecision{Action: types.ActionSell}, market, types.SideNo)
	require.True(t, ok)
	assert.Equal(t, 54, price)

	empty := types.MarketState{Ticker: testTicker}
	_, ok = exitPrice(types.TradeDecision{Action: types.ActionSell}, empty, types.SideYes)
	assert.False(t, ok)
}
