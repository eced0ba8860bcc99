package core

import "time"

// Side represents the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short, the multiplier used in
// P&L arithmetic.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// IsValid checks that the side is one of the two known values.
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// Action represents a trading signal action produced by a strategy.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Candle represents one OHLCV bar for a fixed time interval.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IsValid checks if the candle carries usable price data.
func (c Candle) IsValid() bool {
	return !c.Time.IsZero() && c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0
}

// Ticker represents a real-time market quote for a symbol.
type Ticker struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
	High   float64
	Low    float64
	Volume float64
	Time   time.Time
}

// IsValid checks if the ticker has required fields.
func (t Ticker) IsValid() bool {
	return t.Symbol != "" && t.Last > 0
}

// PriceLevel is one level of an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook represents a depth snapshot for a symbol.
type OrderBook struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Time   time.Time
}

// IntentType classifies a strategy intent.
type IntentType string

const (
	IntentBuy   IntentType = "buy"
	IntentSell  IntentType = "sell"
	IntentClose IntentType = "close"
)

// Intent is a trade request produced by a strategy step. The engine turns
// intents into simulated fills; strategies never mutate the ledger directly.
type Intent struct {
	Type       IntentType
	Symbol     string
	Quantity   float64
	Price      float64 // 0 means fill at the current market price
	StopLoss   float64
	TakeProfit float64
	PositionID string // required for IntentClose
}

// Validate checks the intent for structural problems before execution.
func (i Intent) Validate() error {
	switch i.Type {
	case IntentBuy, IntentSell:
		if i.Symbol == "" {
			return WrapError(ErrInvalidOrder, errMissingField("symbol"))
		}
		if i.Quantity <= 0 {
			return WrapError(ErrInvalidOrder, errMissingField("quantity"))
		}
	case IntentClose:
		if i.PositionID == "" {
			return WrapError(ErrInvalidOrder, errMissingField("position id"))
		}
	default:
		return WrapError(ErrInvalidOrder, errMissingField("type"))
	}
	return nil
}
