// Package risk provides position sizing and trade validation against
// account risk limits. The manager is purely advisory: it never mutates the
// portfolio it inspects.
package risk

import (
	"fmt"
	"math"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/portfolio"
)

// Config defines the risk limits applied to every trade.
type Config struct {
	// RiskPerTrade is the fraction of cash put at risk on a single trade.
	RiskPerTrade float64
	// MaxDrawdown is the equity drawdown fraction at which new trades are
	// rejected.
	MaxDrawdown float64
}

// DefaultConfig returns the standard limits: 2% risk per trade, 20% max
// drawdown.
func DefaultConfig() Config {
	return Config{
		RiskPerTrade: 0.02,
		MaxDrawdown:  0.20,
	}
}

// TradePlan describes a proposed trade for validation.
type TradePlan struct {
	EntryPrice float64
	StopLoss   float64
	Quantity   float64
}

// Assessment is the outcome of ValidateTrade. Reasons lists every violated
// constraint, not just the first, so callers see the complete picture.
type Assessment struct {
	Valid      bool
	Reasons    []string
	Cost       float64
	RiskAmount float64
	Drawdown   float64 // projected drawdown fraction if the trade loses to its stop
}

// Manager validates trades and sizes positions against the configured
// limits. It tracks peak equity for drawdown accounting; callers feed it
// equity via UpdatePeak once per step or price update.
type Manager struct {
	cfg  Config
	peak float64
}

// NewManager creates a Manager with the given limits. Zero fields fall back
// to defaults.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = def.RiskPerTrade
	}
	if cfg.MaxDrawdown <= 0 {
		cfg.MaxDrawdown = def.MaxDrawdown
	}
	return &Manager{cfg: cfg}
}

// Config returns the manager's limits.
func (m *Manager) Config() Config { return m.cfg }

// UpdatePeak raises the tracked equity peak if the given equity exceeds it.
func (m *Manager) UpdatePeak(equity float64) {
	if equity > m.peak {
		m.peak = equity
	}
}

// PeakEquity returns the highest equity seen so far.
func (m *Manager) PeakEquity() float64 { return m.peak }

// CurrentDrawdown returns the drawdown fraction of equity from the peak.
func (m *Manager) CurrentDrawdown(equity float64) float64 {
	peak := m.effectivePeak(equity)
	if peak == 0 {
		return 0
	}
	dd := (peak - equity) / peak
	if dd < 0 {
		return 0
	}
	return dd
}

func (m *Manager) effectivePeak(equity float64) float64 {
	if equity > m.peak {
		return equity
	}
	return m.peak
}

// CalculatePositionSize returns the quantity that puts RiskPerTrade of the
// given cash at risk between entry and stop. Zero distance between entry and
// stop is INVALID_STOP_LOSS.
func (m *Manager) CalculatePositionSize(cash, entryPrice, stopLoss float64) (float64, error) {
	perUnitRisk := math.Abs(entryPrice - stopLoss)
	if perUnitRisk == 0 {
		return 0, core.WrapError(core.ErrInvalidStopLoss,
			fmt.Errorf("stop %.4f equals entry %.4f", stopLoss, entryPrice))
	}

	size := cash * m.cfg.RiskPerTrade / perUnitRisk
	if size < 0 {
		size = 0
	}
	return size, nil
}

// ValidateTrade checks a proposed trade against available cash, the
// per-trade risk limit and the drawdown limit. All violations are collected.
func (m *Manager) ValidateTrade(pf *portfolio.Portfolio, plan TradePlan) Assessment {
	equity := pf.Equity()
	cost := plan.Quantity * plan.EntryPrice
	lossAtStop := plan.Quantity * math.Abs(plan.EntryPrice-plan.StopLoss)

	a := Assessment{
		Cost:       cost,
		RiskAmount: lossAtStop,
	}

	if cost > pf.Cash() {
		a.Reasons = append(a.Reasons,
			fmt.Sprintf("insufficient capital: need %.2f, have %.2f", cost, pf.Cash()))
	}

	if plan.StopLoss == plan.EntryPrice {
		a.Reasons = append(a.Reasons, "stop loss equals entry price")
	}

	maxRisk := equity * m.cfg.RiskPerTrade
	if lossAtStop > maxRisk {
		a.Reasons = append(a.Reasons,
			fmt.Sprintf("risk %.2f exceeds %.1f%% of equity (%.2f)",
				lossAtStop, m.cfg.RiskPerTrade*100, maxRisk))
	}

	peak := m.effectivePeak(equity)
	if peak > 0 {
		a.Drawdown = (peak - equity + lossAtStop) / peak
		if a.Drawdown >= m.cfg.MaxDrawdown {
			a.Reasons = append(a.Reasons,
				fmt.Sprintf("projected drawdown %.1f%% breaches limit %.1f%%",
					a.Drawdown*100, m.cfg.MaxDrawdown*100))
		}
	}

	a.Valid = len(a.Reasons) == 0
	return a
}

// KellyFraction returns the Kelly bet fraction for the given win rate and
// average win/loss, clamped to [0, 1]. Degenerate inputs return 0.
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if winRate <= 0 || winRate > 1 || avgWin <= 0 || avgLoss == 0 {
		return 0
	}

	payoff := avgWin / math.Abs(avgLoss)
	kelly := winRate - (1-winRate)/payoff

	if kelly < 0 {
		return 0
	}
	if kelly > 1 {
		return 1
	}
	return kelly
}

// Report is a point-in-time view of account risk used by the risk report.
type Report struct {
	Equity           float64
	PeakEquity       float64
	CurrentDrawdown  float64
	MaxDrawdownLimit float64
	RiskPerTrade     float64
	CapitalAtRisk    float64
	WinRate          float64
	AvgWin           float64
	AvgLoss          float64
	Kelly            float64
	OpenPositions    int
}

// Snapshot assembles a risk report from portfolio state.
func (m *Manager) Snapshot(pf *portfolio.Portfolio) Report {
	stats := pf.Stats()
	equity := stats.Equity
	return Report{
		Equity:           equity,
		PeakEquity:       m.effectivePeak(equity),
		CurrentDrawdown:  m.CurrentDrawdown(equity),
		MaxDrawdownLimit: m.cfg.MaxDrawdown,
		RiskPerTrade:     m.cfg.RiskPerTrade,
		CapitalAtRisk:    equity * m.cfg.RiskPerTrade,
		WinRate:          stats.WinRate,
		AvgWin:           stats.AvgWin,
		AvgLoss:          stats.AvgLoss,
		Kelly:            KellyFraction(stats.WinRate, stats.AvgWin, stats.AvgLoss),
		OpenPositions:    stats.OpenPositions,
	}
}
