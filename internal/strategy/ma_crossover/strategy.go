package ma_crossover

import (
	"fmt"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/indicator"
)

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy. Non-positive periods fall back
// to the 10/20 defaults.
func New(fastPeriod, slowPeriod int) *MACrossover {
	if fastPeriod <= 0 {
		fastPeriod = 10
	}
	if slowPeriod <= 0 {
		slowPeriod = 20
	}
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

// MinCandles needs one candle beyond the slow window so both the previous
// and current moving averages exist.
func (m *MACrossover) MinCandles() int {
	return m.slowPeriod + 1
}

func (m *MACrossover) Analyze(closes []float64) core.Action {
	if len(closes) < m.MinCandles() {
		return core.ActionHold
	}

	fastMA := indicator.SMA(closes, m.fastPeriod)
	slowMA := indicator.SMA(closes, m.slowPeriod)
	if len(fastMA) < 2 || len(slowMA) < 2 {
		return core.ActionHold
	}

	currFast := fastMA[len(fastMA)-1]
	prevFast := fastMA[len(fastMA)-2]
	currSlow := slowMA[len(slowMA)-1]
	prevSlow := slowMA[len(slowMA)-2]

	// Golden cross: fast crosses above slow
	if prevFast <= prevSlow && currFast > currSlow {
		return core.ActionBuy
	}
	// Death cross: fast crosses below slow
	if prevFast >= prevSlow && currFast < currSlow {
		return core.ActionSell
	}
	return core.ActionHold
}
