package stats

import (
	"strings"
	"time"

	"kalshi-llm-bot/internal/types"
)

// Compute derives rolling performance statistics from the full ledger,
// ordered oldest to newest. Pure function, recomputed from scratch each
// cycle; pending rows are excluded from every aggregate.
func Compute(ledger []types.LedgerRow) types.Stats {
	return computeAt(ledger, time.Now().UTC().Format("2006-01-02"))
}

func computeAt(ledger []types.LedgerRow, today string) types.Stats {
	settled := make([]types.LedgerRow, 0, len(ledger))
	for _, r := range ledger {
		if r.Settled() {
			settled = append(settled, r)
		}
	}

	var wins, losses int
	var totalPnl, todayPnl, winSum, lossSum int64
	for _, r := range settled {
		if r.Result == types.ResultWin {
			wins++
			winSum += r.PnlCents
		} else {
			losses++
			lossSum += r.PnlCents
		}
		totalPnl += r.PnlCents
		// Lexical date-prefix match; ledger timestamps are written as
		// UTC "2006-01-02 15:04:05" strings so this is sound.
		if strings.HasPrefix(r.Timestamp, today) {
			todayPnl += r.PnlCents
		}
	}

	total := wins + losses
	winRate := 0.0
	if total > 0 {
		winRate = float64(wins) / float64(total)
	}
	avgWin := 0.0
	if wins > 0 {
		avgWin = float64(winSum) / float64(wins)
	}
	avgLoss := 0.0
	if losses > 0 {
		avgLoss = float64(lossSum) / float64(losses)
	}

	return types.Stats{
		TotalTrades:      total,
		Wins:             wins,
		Losses:           losses,
		WinRate:          winRate,
		TotalPnlCents:    totalPnl,
		TodayPnlCents:    todayPnl,
		CurrentStreak:    streak(settled),
		MaxDrawdownCents: maxDrawdown(settled),
		AvgWinCents:      avgWin,
		AvgLossCents:     avgLoss,
	}
}

// streak scans settled rows from most recent backward, accumulating
// +1 per consecutive win or -1 per consecutive loss until the run
// breaks.
func streak(settled []types.LedgerRow) int {
	s := 0
	for i := len(settled) - 1; i >= 0; i-- {
		isWin := settled[i].Result == types.ResultWin
		switch {
		case s == 0 && isWin:
			s = 1
		case s == 0:
			s = -1
		case (s > 0) == isWin:
			if isWin {
				s++
			} else {
				s--
			}
		default:
			return s
		}
	}
	return s
}

// maxDrawdown is the worst peak-to-trough decline of the cumulative
// settled P&L curve, in chronological order.
func maxDrawdown(settled []types.LedgerRow) int64 {
	var peak, running, worst int64
	for _, r := range settled {
		running += r.PnlCents
		if running > peak {
			peak = running
		}
		if dd := peak - running; dd > worst {
			worst = dd
		}
	}
	return worst
}
