package interfaces

import (
	"context"

	"kalshi-llm-bot/internal/types"
)

// Ledger is the durable trade history. Append-mostly: rows are inserted
// as pending and settled exactly once.
type Ledger interface {
	Append(ctx context.Context, row types.LedgerRow) (int64, error)
	Settle(ctx context.Context, id int64, result string, pnlCents int64) error
	All(ctx context.Context) ([]types.LedgerRow, error)
	LastN(ctx context.Context, n int) ([]types.LedgerRow, error)
}
