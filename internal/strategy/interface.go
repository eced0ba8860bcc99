// Package strategy defines signal generators and the step adapter that
// turns their actions into order intents. Strategies are pure: they read a
// price series and return an action, and never touch the ledger directly.
package strategy

import (
	"time"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/portfolio"
)

// Strategy is a signal generator over a closing price series. Analyze sees
// prices up to and including the current candle and returns the action for
// that candle.
type Strategy interface {
	Name() string
	Description() string
	// MinCandles is the shortest series Analyze can work with; shorter
	// input always yields hold.
	MinCandles() int
	Analyze(closes []float64) core.Action
}

// View is what one step of a run can see: the replayed series so far and
// the current portfolio state. Positions are copies; steps express changes
// as intents rather than mutating anything.
type View struct {
	Step      int
	Time      time.Time
	Symbols   []string
	Prices    map[string]float64       // close per symbol at this step
	Series    map[string][]core.Candle // candles up to and including this step
	Cash      float64
	Equity    float64
	Positions []portfolio.Position
}

// StepFunc produces the intents for one step of a run.
type StepFunc func(v View) ([]core.Intent, error)

// Closes returns the closing prices for the symbol up to the current step.
func (v View) Closes(symbol string) []float64 {
	candles := v.Series[symbol]
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Position returns the open position for the symbol, if any.
func (v View) Position(symbol string) (portfolio.Position, bool) {
	for _, p := range v.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return portfolio.Position{}, false
}
