package rsi

import (
	"fmt"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/indicator"
)

// RSI implements a relative strength index mean-reversion strategy: buy
// oversold, sell overbought.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
}

// New creates a new RSI strategy. Non-positive parameters fall back to the
// 14-period 30/70 defaults.
func New(period int, oversold, overbought float64) *RSI {
	if period <= 0 {
		period = 14
	}
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 {
		overbought = 70
	}
	return &RSI{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
	}
}

func (r *RSI) Name() string {
	return "rsi"
}

func (r *RSI) Description() string {
	return fmt.Sprintf("RSI (%d, %.0f/%.0f)", r.period, r.oversold, r.overbought)
}

// MinCandles needs one price beyond the period to seed the first value.
func (r *RSI) MinCandles() int {
	return r.period + 1
}

func (r *RSI) Analyze(closes []float64) core.Action {
	if len(closes) < r.MinCandles() {
		return core.ActionHold
	}

	values := indicator.RSI(closes, r.period)
	if len(values) == 0 {
		return core.ActionHold
	}

	current := values[len(values)-1]
	switch {
	case current < r.oversold:
		return core.ActionBuy
	case current > r.overbought:
		return core.ActionSell
	}
	return core.ActionHold
}
