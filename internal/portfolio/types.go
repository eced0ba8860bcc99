// Package portfolio implements the cash and position ledger for simulated
// trading. A Portfolio assumes a single logical thread of control: callers
// serialize mutations themselves, which keeps replay deterministic and the
// ledger free of internal locking.
package portfolio

import (
	"time"

	"github.com/northbeck/papertrade/internal/core"
)

// Position is an open holding. It is owned by the Portfolio that created it
// and is mutated only through OpenPosition/ClosePosition.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       core.Side `json:"side"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryFee   float64   `json:"entry_fee"`
	StopLoss   float64   `json:"stop_loss,omitempty"`   // 0 means not set
	TakeProfit float64   `json:"take_profit,omitempty"` // 0 means not set
	OpenedAt   time.Time `json:"opened_at"`
}

// UnrealizedPnL returns the mark-to-market P&L of the position at the given
// price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity * p.Side.Sign()
}

// Notional returns the entry value of the position.
func (p *Position) Notional() float64 {
	return p.Quantity * p.EntryPrice
}

// CloseReason records what triggered a close.
type CloseReason string

const (
	CloseManual     CloseReason = "manual"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseTakeProfit CloseReason = "take_profit"
)

// Trade is the immutable record appended when a position is closed. ID is the
// closed position's id.
type Trade struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       core.Side     `json:"side"`
	Quantity   float64       `json:"quantity"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	PnL        float64       `json:"pnl"`
	PnLPercent float64       `json:"pnl_percent"`
	Fees       float64       `json:"fees"` // entry fee + exit fee
	OpenedAt   time.Time     `json:"opened_at"`
	ClosedAt   time.Time     `json:"closed_at"`
	Duration   time.Duration `json:"duration"`
	Reason     CloseReason   `json:"reason"`
}

// OpenRequest carries the parameters for opening a position. Price is the
// execution price (slippage already applied by the engine); Fee is the cash
// amount debited on top of the position cost.
type OpenRequest struct {
	Symbol     string
	Side       core.Side
	Quantity   float64
	Price      float64
	Fee        float64
	StopLoss   float64
	TakeProfit float64
	Time       time.Time
}

// Stats is the summary snapshot returned by Portfolio.Stats.
type Stats struct {
	InitialBalance float64 `json:"initial_balance"`
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	TotalPnL       float64 `json:"total_pnl"`
	PnLPercent     float64 `json:"pnl_percent"`
	RealizedPnL    float64 `json:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	OpenPositions  int     `json:"open_positions"`
	ClosedTrades   int     `json:"closed_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"` // fraction of closed trades with positive P&L
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
}
