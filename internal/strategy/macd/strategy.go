package macd

import (
	"fmt"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/indicator"
)

// MACD implements a momentum strategy on the MACD histogram: buy when the
// histogram crosses above zero, sell when it crosses below.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// New creates a new MACD strategy. Non-positive periods fall back to the
// 12/26/9 defaults.
func New(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	if fastPeriod <= 0 {
		fastPeriod = 12
	}
	if slowPeriod <= 0 {
		slowPeriod = 26
	}
	if signalPeriod <= 0 {
		signalPeriod = 9
	}
	return &MACD{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
	}
}

func (m *MACD) Name() string {
	return "macd"
}

func (m *MACD) Description() string {
	return fmt.Sprintf("MACD (%d/%d/%d)", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

// MinCandles needs one candle beyond the first histogram value so both the
// previous and current values exist.
func (m *MACD) MinCandles() int {
	return m.slowPeriod + m.signalPeriod
}

func (m *MACD) Analyze(closes []float64) core.Action {
	if len(closes) < m.MinCandles() {
		return core.ActionHold
	}

	result := indicator.MACD(closes, m.fastPeriod, m.slowPeriod, m.signalPeriod)
	hist := result.Histogram
	if len(hist) < 2 {
		return core.ActionHold
	}

	curr := hist[len(hist)-1]
	prev := hist[len(hist)-2]

	if prev <= 0 && curr > 0 {
		return core.ActionBuy
	}
	if prev >= 0 && curr < 0 {
		return core.ActionSell
	}
	return core.ActionHold
}
