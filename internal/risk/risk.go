package risk

import (
	"fmt"

	"kalshi-llm-bot/internal/types"
)

// Limits are the configured halt thresholds. StopLossPct is a fraction
// of the implied starting balance (0.2 = 20%).
type Limits struct {
	MinBalanceCents      int64   `yaml:"min_balance_cents" default:"500" validate:"gte=0"`
	StopLossPct          float64 `yaml:"stop_loss_pct" default:"0.2" validate:"gt=0,lte=1"`
	MaxDailyLossCents    int64   `yaml:"max_daily_loss_cents" default:"1000" validate:"gt=0"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses" default:"3" validate:"gt=0"`
}

// Check decides whether trading must halt this cycle. Pure function;
// checks run in fixed priority order and the first breach wins. An
// empty reason means proceed.
func Check(s types.Stats, balanceCents int64, lim Limits) (string, bool) {
	if balanceCents < lim.MinBalanceCents {
		return fmt.Sprintf("Balance %d¢ < %d¢ minimum", balanceCents, lim.MinBalanceCents), true
	}

	// Stop loss measured against the implied starting balance. When the
	// implied start is non-positive (huge gains on a small balance, or a
	// stats/balance mismatch) the check is skipped, not failed -- known
	// edge case carried over from the original policy.
	startingBalance := balanceCents - s.TotalPnlCents
	if startingBalance > 0 {
		maxLoss := int64(float64(startingBalance) * lim.StopLossPct)
		if s.TotalPnlCents <= -maxLoss {
			return fmt.Sprintf("Stop loss: P&L %d¢ exceeds %.0f%% of starting balance (%d¢)",
				s.TotalPnlCents, lim.StopLossPct*100, startingBalance), true
		}
	}

	if s.TodayPnlCents <= -lim.MaxDailyLossCents {
		return fmt.Sprintf("Daily loss: %d¢", s.TodayPnlCents), true
	}

	if s.CurrentStreak <= -lim.MaxConsecutiveLosses {
		return fmt.Sprintf("%d× consecutive losses", -s.CurrentStreak), true
	}

	return "", false
}
