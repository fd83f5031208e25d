package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"github.com/Jetpackjules/Kalshi-Trader/internal/domain"
)

// TradeLog is the append-only record of every applied fill and every
// reconciliation action, in SQLite. External reporting reads it; the
// engine only appends.
type TradeLog struct {
	db *sql.DB
}

// NewTradeLog opens (or creates) the trade log with WAL mode enabled.
func NewTradeLog(dbPath string) (*TradeLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			action TEXT NOT NULL,
			price INTEGER NOT NULL,
			qty INTEGER NOT NULL,
			order_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_ticker_ts ON trades(ticker, ts);

		CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			price INTEGER NOT NULL,
			qty INTEGER NOT NULL,
			order_id TEXT NOT NULL,
			status TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_ticker_ts ON actions(ticker, ts);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &TradeLog{db: db}, nil
}

// AppendFill records one applied fill.
func (l *TradeLog) AppendFill(ctx context.Context, f domain.Fill) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO trades (ts, ticker, side, action, price, qty, order_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
		f.Time.UnixMicro(), f.Ticker, string(f.Side), string(f.Action), f.Price, f.Qty, f.OrderID,
	)
	if err != nil {
		return fmt.Errorf("failed to append fill: %w", err)
	}
	return nil
}

// AppendAction records one reconciliation action and its outcome.
func (l *TradeLog) AppendAction(ctx context.Context, a domain.OrderAction, status domain.ActionStatus) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO actions (ts, type, ticker, side, price, qty, order_id, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.Time.UnixMicro(), string(a.Type), a.Ticker, string(a.Side), a.Price, a.Qty, a.OrderID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to append action: %w", err)
	}
	return nil
}

// FillCount returns the number of recorded fills for one ticker.
func (l *TradeLog) FillCount(ctx context.Context, ticker string) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trades WHERE ticker = ?", ticker).Scan(&n)
	return n, err
}

// TotalFills returns the number of recorded fills across all tickers.
func (l *TradeLog) TotalFills(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trades").Scan(&n)
	return n, err
}

// LoggedAction is one row of the actions table, in insertion order.
type LoggedAction struct {
	Ts      int64
	Type    string
	Ticker  string
	Side    string
	Price   int64
	Qty     int64
	OrderID string
	Status  string
}

// Actions returns every logged action in insertion order.
func (l *TradeLog) Actions(ctx context.Context) ([]LoggedAction, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT ts, type, ticker, side, price, qty, order_id, status FROM actions ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoggedAction
	for rows.Next() {
		var a LoggedAction
		if err := rows.Scan(&a.Ts, &a.Type, &a.Ticker, &a.Side, &a.Price, &a.Qty, &a.OrderID, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *TradeLog) Close() error {
	return l.db.Close()
}
