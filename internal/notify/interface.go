// Package notify fans trade lifecycle events out to configured sinks:
// console, webhook, telegram.
package notify

import (
	"time"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/portfolio"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// EventType identifies what happened to a position.
type EventType string

const (
	EventPositionOpened EventType = "position_opened"
	EventTradeClosed    EventType = "trade_closed"
)

// Event is one trade lifecycle notification.
type Event struct {
	Type       EventType
	Time       time.Time
	Symbol     string
	Side       core.Side
	Quantity   float64
	Price      float64 // entry price for opens, exit price for closes
	PnL        float64
	PnLPercent float64
	Reason     string // close reason: manual, stop_loss, take_profit
	Strategy   string
}

// PositionOpened builds an event from a freshly opened position.
func PositionOpened(pos portfolio.Position) Event {
	return Event{
		Type:     EventPositionOpened,
		Time:     pos.OpenedAt,
		Symbol:   pos.Symbol,
		Side:     pos.Side,
		Quantity: pos.Quantity,
		Price:    pos.EntryPrice,
	}
}

// TradeClosed builds an event from a closed trade record.
func TradeClosed(trade portfolio.Trade) Event {
	return Event{
		Type:       EventTradeClosed,
		Time:       trade.ClosedAt,
		Symbol:     trade.Symbol,
		Side:       trade.Side,
		Quantity:   trade.Quantity,
		Price:      trade.ExitPrice,
		PnL:        trade.PnL,
		PnLPercent: trade.PnLPercent,
		Reason:     string(trade.Reason),
	}
}

// Notifier defines the interface for trade event notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send sends a single event notification
	Send(event Event) error

	// SendBatch sends multiple event notifications
	SendBatch(events []Event) error
}
