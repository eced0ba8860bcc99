// Package journal persists runs, closed trades and equity snapshots to a
// local SQLite database. It is an additive sink: the trading core never
// reads journal state to make decisions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/portfolio"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL,
    strategy        TEXT NOT NULL,
    symbols         TEXT NOT NULL,
    initial_balance REAL NOT NULL,
    final_equity    REAL NOT NULL DEFAULT 0,
    started_at      TEXT NOT NULL,
    ended_at        TEXT
);

CREATE TABLE IF NOT EXISTS trades (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    position_id TEXT NOT NULL,
    symbol      TEXT NOT NULL,
    side        TEXT NOT NULL,
    quantity    REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price  REAL NOT NULL,
    pnl         REAL NOT NULL,
    pnl_percent REAL NOT NULL,
    fees        REAL NOT NULL,
    reason      TEXT NOT NULL,
    opened_at   TEXT NOT NULL,
    closed_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    at     TEXT NOT NULL,
    equity REAL NOT NULL,
    cash   REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run  ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run  ON equity(run_id, at);
CREATE INDEX IF NOT EXISTS idx_runs_start  ON runs(started_at DESC);
`

// Run is one journaled trading session or backtest.
type Run struct {
	ID             string
	Kind           string // live or backtest
	Strategy       string
	Symbols        []string
	InitialBalance float64
	FinalEquity    float64
	StartedAt      time.Time
	EndedAt        time.Time // zero while the run is still going
}

// EquitySnapshot is one journaled equity observation.
type EquitySnapshot struct {
	Time   time.Time
	Equity float64
	Cash   float64
}

// Journal wraps the SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at the given path and
// applies the schema. Use ":memory:" for an ephemeral journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal.Open: apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun inserts a new run row and returns its generated id.
func (j *Journal) StartRun(ctx context.Context, kind, strategy string, symbols []string, initialBalance float64) (string, error) {
	id := uuid.NewString()
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, strategy, symbols, initial_balance, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, strategy, strings.Join(symbols, ","), initialBalance, formatTime(time.Now()),
	); err != nil {
		return "", fmt.Errorf("journal.StartRun: insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's end time and final equity.
func (j *Journal) FinishRun(ctx context.Context, runID string, finalEquity float64) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET final_equity = ?, ended_at = ? WHERE id = ?`,
		finalEquity, formatTime(time.Now()), runID,
	)
	if err != nil {
		return fmt.Errorf("journal.FinishRun: update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("journal.FinishRun: unknown run %s", runID)
	}
	return nil
}

// RecordTrade appends one closed trade to the run.
func (j *Journal) RecordTrade(ctx context.Context, runID string, trade portfolio.Trade) error {
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO trades
			(run_id, position_id, symbol, side, quantity, entry_price,
			 exit_price, pnl, pnl_percent, fees, reason, opened_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, trade.ID, trade.Symbol, string(trade.Side), trade.Quantity,
		trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.PnLPercent,
		trade.Fees, string(trade.Reason), formatTime(trade.OpenedAt), formatTime(trade.ClosedAt),
	); err != nil {
		return fmt.Errorf("journal.RecordTrade: insert trade: %w", err)
	}
	return nil
}

// RecordTrades appends a batch of closed trades in one transaction.
func (j *Journal) RecordTrades(ctx context.Context, runID string, trades []portfolio.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal.RecordTrades: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
			(run_id, position_id, symbol, side, quantity, entry_price,
			 exit_price, pnl, pnl_percent, fees, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("journal.RecordTrades: prepare: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		if _, err := stmt.ExecContext(ctx,
			runID, trade.ID, trade.Symbol, string(trade.Side), trade.Quantity,
			trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.PnLPercent,
			trade.Fees, string(trade.Reason), formatTime(trade.OpenedAt), formatTime(trade.ClosedAt),
		); err != nil {
			return fmt.Errorf("journal.RecordTrades: insert %s: %w", trade.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal.RecordTrades: commit: %w", err)
	}
	return nil
}

// RecordEquity appends one equity snapshot to the run.
func (j *Journal) RecordEquity(ctx context.Context, runID string, at time.Time, equity, cash float64) error {
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO equity (run_id, at, equity, cash) VALUES (?, ?, ?, ?)`,
		runID, formatTime(at), equity, cash,
	); err != nil {
		return fmt.Errorf("journal.RecordEquity: insert snapshot: %w", err)
	}
	return nil
}

// Runs returns all journaled runs, most recent first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, strategy, symbols, initial_balance, final_equity, started_at, ended_at
		FROM runs
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("journal.Runs: query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var symbols, startedAt string
		var endedAt sql.NullString

		if err := rows.Scan(&run.ID, &run.Kind, &run.Strategy, &symbols,
			&run.InitialBalance, &run.FinalEquity, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("journal.Runs: scan row: %w", err)
		}

		if symbols != "" {
			run.Symbols = strings.Split(symbols, ",")
		}
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("journal.Runs: started_at: %w", err)
		}
		if endedAt.Valid {
			if run.EndedAt, err = parseTime(endedAt.String); err != nil {
				return nil, fmt.Errorf("journal.Runs: ended_at: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Trades returns the run's journaled trades in insertion order.
func (j *Journal) Trades(ctx context.Context, runID string) ([]portfolio.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT position_id, symbol, side, quantity, entry_price,
		       exit_price, pnl, pnl_percent, fees, reason, opened_at, closed_at
		FROM trades
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal.Trades: query: %w", err)
	}
	defer rows.Close()

	var trades []portfolio.Trade
	for rows.Next() {
		var trade portfolio.Trade
		var side, reason, openedAt, closedAt string

		if err := rows.Scan(&trade.ID, &trade.Symbol, &side, &trade.Quantity,
			&trade.EntryPrice, &trade.ExitPrice, &trade.PnL, &trade.PnLPercent,
			&trade.Fees, &reason, &openedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("journal.Trades: scan row: %w", err)
		}

		trade.Side = core.Side(side)
		trade.Reason = portfolio.CloseReason(reason)
		if trade.OpenedAt, err = parseTime(openedAt); err != nil {
			return nil, fmt.Errorf("journal.Trades: opened_at: %w", err)
		}
		if trade.ClosedAt, err = parseTime(closedAt); err != nil {
			return nil, fmt.Errorf("journal.Trades: closed_at: %w", err)
		}
		trade.Duration = trade.ClosedAt.Sub(trade.OpenedAt)
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// EquityCurve returns the run's equity snapshots in time order.
func (j *Journal) EquityCurve(ctx context.Context, runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT at, equity, cash
		FROM equity
		WHERE run_id = ?
		ORDER BY at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal.EquityCurve: query: %w", err)
	}
	defer rows.Close()

	var curve []EquitySnapshot
	for rows.Next() {
		var snap EquitySnapshot
		var at string

		if err := rows.Scan(&at, &snap.Equity, &snap.Cash); err != nil {
			return nil, fmt.Errorf("journal.EquityCurve: scan row: %w", err)
		}
		if snap.Time, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("journal.EquityCurve: at: %w", err)
		}
		curve = append(curve, snap)
	}
	return curve, rows.Err()
}

// Times are stored as fixed-width UTC strings so they sort lexically and
// round-trip exactly. RFC3339Nano would trim trailing zeros and misorder
// sub-second stamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
