package noop

import (
	"context"

	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/types"
)

// Brain is the fallback used when no LLM provider is configured. It
// answers with a well-formed PASS so the rest of the pipeline runs
// unchanged.
type Brain struct{}

func NewBrain() *Brain {
	return &Brain{}
}

const passResponse = `{"action": "PASS", "reasoning": "noop brain, no LLM provider configured"}`

func (b *Brain) Decide(ctx context.Context, dc *types.DecisionContext) (string, error) {
	logger.Debug(ctx, "Noop brain called - always returns PASS", "ticker", dc.Market.Ticker)
	return passResponse, nil
}

func (b *Brain) DecideExit(ctx context.Context, dc *types.DecisionContext, entrySide string, entryPriceCents, shares int) (string, error) {
	logger.Debug(ctx, "Noop brain exit called - always returns PASS", "ticker", dc.Market.Ticker)
	return passResponse, nil
}
