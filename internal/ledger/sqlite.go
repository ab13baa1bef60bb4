package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"kalshi-llm-bot/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   TEXT NOT NULL,
	ticker      TEXT NOT NULL,
	side        TEXT NOT NULL,
	shares      INTEGER NOT NULL,
	price_cents INTEGER NOT NULL,
	result      TEXT NOT NULL DEFAULT 'pending',
	pnl_cents   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ledger_timestamp ON ledger(timestamp);`

// Store is the durable trade ledger backed by SQLite. Rows are
// appended as pending and settled exactly once; settled rows never
// change again.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts a new row and returns its id. An empty timestamp is
// filled with the current UTC time in the ledger's canonical format,
// which keeps the stats engine's date-prefix matching sound.
func (s *Store) Append(ctx context.Context, row types.LedgerRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row.Timestamp == "" {
		row.Timestamp = time.Now().UTC().Format("2006-01-02 15:04:05")
	}
	if row.Result == "" {
		row.Result = types.ResultPending
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger (timestamp, ticker, side, shares, price_cents, result, pnl_cents) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp, row.Ticker, row.Side, row.Shares, row.PriceCents, row.Result, row.PnlCents)
	if err != nil {
		return 0, fmt.Errorf("append ledger row: %w", err)
	}
	return res.LastInsertId()
}

// Settle moves a pending row to its terminal result. Guarded by the
// result='pending' predicate so a second settle of the same row fails
// instead of overwriting.
func (s *Store) Settle(ctx context.Context, id int64, result string, pnlCents int64) error {
	if result != types.ResultWin && result != types.ResultLoss {
		return fmt.Errorf("settle row %d: invalid result %q", id, result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ledger SET result = ?, pnl_cents = ? WHERE id = ? AND result = ?`,
		result, pnlCents, id, types.ResultPending)
	if err != nil {
		return fmt.Errorf("settle ledger row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("settle ledger row %d: not found or already settled", id)
	}
	return nil
}

// All returns the full history, oldest first.
func (s *Store) All(ctx context.Context) ([]types.LedgerRow, error) {
	return s.query(ctx, `SELECT id, timestamp, ticker, side, shares, price_cents, result, pnl_cents FROM ledger ORDER BY timestamp ASC, id ASC`)
}

// LastN returns the n most recent rows in chronological order.
func (s *Store) LastN(ctx context.Context, n int) ([]types.LedgerRow, error) {
	rows, err := s.query(ctx,
		`SELECT id, timestamp, ticker, side, shares, price_cents, result, pnl_cents FROM ledger ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]types.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []types.LedgerRow
	for rows.Next() {
		var r types.LedgerRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Ticker, &r.Side, &r.Shares, &r.PriceCents, &r.Result, &r.PnlCents); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
