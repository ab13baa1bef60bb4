package interfaces

import (
	"context"

	"kalshi-llm-bot/internal/types"
)

// Brain is the external decision oracle consulted once per cycle. Both
// methods return the model's raw text; recovering structure from it is
// the decision parser's job, not the transport's.
type Brain interface {
	Decide(ctx context.Context, dc *types.DecisionContext) (string, error)
	DecideExit(ctx context.Context, dc *types.DecisionContext, entrySide string, entryPriceCents, shares int) (string, error)
}
