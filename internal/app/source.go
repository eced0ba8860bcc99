package app

import (
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/northbeck/papertrade/internal/risk"
)

// snapshot is the portfolio state published after each cycle. API
// request goroutines read it under the session lock so they never touch
// the live ledger.
type snapshot struct {
	stats     portfolio.Stats
	positions []portfolio.Position
	trades    []portfolio.Trade
}

// publishSnapshot copies the portfolio state for concurrent readers.
// Called only from the goroutine that owns the portfolio.
func (a *App) publishSnapshot() {
	snap := snapshot{
		stats:     a.pf.Stats(),
		positions: a.positionsCopy(),
		trades:    a.pf.Trades(),
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()
}

// Stats returns the latest published portfolio statistics.
func (a *App) Stats() portfolio.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.stats
}

// Positions returns the open positions as of the last completed cycle.
func (a *App) Positions() []portfolio.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.positions
}

// Trades returns the closed trades as of the last completed cycle.
func (a *App) Trades() []portfolio.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.trades
}

// RiskReport prices the portfolio against the configured risk limits.
// It reads the live ledger; call it only while the loop is stopped.
func (a *App) RiskReport() risk.Report {
	return a.riskMgr.Snapshot(a.pf)
}

// RunStats reports the session state for operators.
type RunStats struct {
	Running   bool
	Cycles    int
	Portfolio portfolio.Stats
}

// GetStats returns a point-in-time view of the session.
func (a *App) GetStats() RunStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return RunStats{
		Running:   a.running,
		Cycles:    a.cycles,
		Portfolio: a.snapshot.stats,
	}
}
