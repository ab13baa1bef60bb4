package indicators

import (
	"fmt"
	"math"

	"kalshi-llm-bot/internal/types"
)

// momentumDeadband is the pct-change band treated as FLAT, in
// percentage points.
const momentumDeadband = 0.05

// Compute derives momentum indicators from the 1m and 5m candle windows
// and the current spot price. Pure function: empty windows degrade to
// zero values, never errors.
func Compute(candles1m, candles5m []types.Candle, spot float64) types.PriceIndicators {
	pct15m := 0.0
	if len(candles1m) > 0 {
		firstOpen := candles1m[0].Open
		pct15m = (spot - firstOpen) / firstOpen * 100.0
	}

	pct1h := 0.0
	if len(candles5m) > 0 {
		firstOpen := candles5m[0].Open
		pct1h = (spot - firstOpen) / firstOpen * 100.0
	}

	momentum := types.MomentumFlat
	switch {
	case pct15m > momentumDeadband:
		momentum = types.MomentumUp
	case pct15m < -momentumDeadband:
		momentum = types.MomentumDown
	}

	// Spot stands in for the SMA when there are no candles, which keeps
	// the vs-SMA label meaningful and the division below safe.
	sma := spot
	if len(candles1m) > 0 {
		sum := 0.0
		for _, c := range candles1m {
			sum += c.Close
		}
		sma = sum / float64(len(candles1m))
	}

	last3 := candles1m
	if len(last3) > 3 {
		last3 = last3[len(last3)-3:]
	}

	return types.PriceIndicators{
		SpotPrice:    spot,
		PctChange15m: pct15m,
		PctChange1h:  pct1h,
		Momentum:     momentum,
		SMA15m:       sma,
		PriceVsSMA:   vsSMALabel(spot, sma),
		Volatility1m: returnVolatility(candles1m),
		Last3Candles: append([]types.Candle(nil), last3...),
	}
}

func vsSMALabel(spot, sma float64) string {
	diffPct := (spot - sma) / sma * 100.0
	switch {
	case math.Abs(diffPct) < 0.01:
		return "at SMA"
	case diffPct > 0:
		return fmt.Sprintf("above +%.3f%%", diffPct)
	default:
		return fmt.Sprintf("below %.3f%%", diffPct)
	}
}

// returnVolatility is the population standard deviation of consecutive
// close-to-close percentage returns. Fewer than two returns yields 0.
func returnVolatility(candles []types.Candle) float64 {
	if len(candles) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		returns = append(returns, (candles[i].Close-candles[i-1].Close)/candles[i-1].Close*100.0)
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}
