package brainobs

import (
	"context"

	"kalshi-llm-bot/internal/interfaces"
	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/trace"
	"kalshi-llm-bot/internal/types"
)

// observableBrain wraps a Brain with logging and tracing.
type observableBrain struct {
	brain interfaces.Brain
}

var _ interfaces.Brain = (*observableBrain)(nil)

// Wrap wraps a brain with observability middleware.
func Wrap(brain interfaces.Brain) interfaces.Brain {
	return &observableBrain{brain: brain}
}

func (ob *observableBrain) Decide(ctx context.Context, dc *types.DecisionContext) (string, error) {
	ctx, span := trace.StartSpan(ctx, "brain.Decide")
	defer span.End()

	logger.Debug(ctx, "Requesting trade decision",
		"ticker", dc.Market.Ticker,
		"minutes_to_expiry", dc.Market.MinutesToExpiry,
		"ledger_rows", len(dc.LastNTrades),
	)

	raw, err := ob.brain.Decide(ctx, dc)
	if err != nil {
		logger.ErrorWithErr(ctx, "Brain decision failed", err, "ticker", dc.Market.Ticker)
		return "", err
	}

	logger.Info(ctx, "Brain responded", "ticker", dc.Market.Ticker, "response_len", len(raw))
	return raw, nil
}

func (ob *observableBrain) DecideExit(ctx context.Context, dc *types.DecisionContext, entrySide string, entryPriceCents, shares int) (string, error) {
	ctx, span := trace.StartSpan(ctx, "brain.DecideExit")
	defer span.End()

	logger.Debug(ctx, "Requesting exit decision",
		"ticker", dc.Market.Ticker,
		"entry_side", entrySide,
		"entry_price_cents", entryPriceCents,
		"shares", shares,
	)

	raw, err := ob.brain.DecideExit(ctx, dc, entrySide, entryPriceCents, shares)
	if err != nil {
		logger.ErrorWithErr(ctx, "Brain exit decision failed", err, "ticker", dc.Market.Ticker)
		return "", err
	}

	logger.Info(ctx, "Brain exit responded", "ticker", dc.Market.Ticker, "response_len", len(raw))
	return raw, nil
}
