package engine

import (
	"context"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/portfolio"
)

// CheckStops sweeps open positions against the supplied prices and closes
// any whose stop loss or take profit level has been crossed. Fills happen at
// the level itself, not at the observed price; the stop loss is checked
// first. Positions whose symbol is missing from the map are skipped. The
// caller drives the sweep, typically once per tick or candle.
func (e *Engine) CheckStops(ctx context.Context, prices map[string]float64) ([]portfolio.Trade, error) {
	var closed []portfolio.Trade
	for _, pos := range e.pf.Positions() {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}
		e.pf.SetMark(pos.Symbol, price)

		level, reason, hit := stopHit(pos, price)
		if !hit {
			continue
		}

		trade, err := e.close(pos, level, reason)
		if err != nil {
			return closed, err
		}
		if e.metrics != nil {
			e.metrics.RecordStopTriggered(string(reason))
		}
		closed = append(closed, *trade)
	}
	return closed, nil
}

// stopHit reports whether the price has crossed the position's stop loss or
// take profit, returning the level the exit fills at.
func stopHit(pos *portfolio.Position, price float64) (float64, portfolio.CloseReason, bool) {
	if pos.Side == core.SideLong {
		if pos.StopLoss > 0 && price <= pos.StopLoss {
			return pos.StopLoss, portfolio.CloseStopLoss, true
		}
		if pos.TakeProfit > 0 && price >= pos.TakeProfit {
			return pos.TakeProfit, portfolio.CloseTakeProfit, true
		}
		return 0, "", false
	}

	if pos.StopLoss > 0 && price >= pos.StopLoss {
		return pos.StopLoss, portfolio.CloseStopLoss, true
	}
	if pos.TakeProfit > 0 && price <= pos.TakeProfit {
		return pos.TakeProfit, portfolio.CloseTakeProfit, true
	}
	return 0, "", false
}
