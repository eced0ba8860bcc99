package strategy

import "github.com/northbeck/papertrade/internal/core"

// Sizing controls how Steps turns actions into orders.
type Sizing struct {
	// Fraction of current cash committed per entry.
	Fraction float64
	// StopLossPct is the fractional stop offset below entry; 0 disables it.
	StopLossPct float64
	// TakeProfitPct is the fractional target offset above entry; 0 disables it.
	TakeProfitPct float64
}

// DefaultSizing commits 10% of cash per entry with a 5% stop and 10% target.
func DefaultSizing() Sizing {
	return Sizing{
		Fraction:      0.10,
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
	}
}

// Steps adapts a signal strategy into a step function. Long only: a buy
// opens one position per symbol when flat, a sell closes the open position.
// Buys while holding and sells while flat are ignored.
func Steps(s Strategy, sizing Sizing) StepFunc {
	return func(v View) ([]core.Intent, error) {
		var intents []core.Intent
		for _, symbol := range v.Symbols {
			closes := v.Closes(symbol)
			if len(closes) < s.MinCandles() {
				continue
			}

			action := s.Analyze(closes)
			if action == core.ActionHold {
				continue
			}

			pos, held := v.Position(symbol)
			price := v.Prices[symbol]

			switch action {
			case core.ActionBuy:
				if held || price <= 0 {
					continue
				}
				quantity := v.Cash * sizing.Fraction / price
				if quantity <= 0 {
					continue
				}
				intent := core.Intent{
					Type:     core.IntentBuy,
					Symbol:   symbol,
					Quantity: quantity,
				}
				if sizing.StopLossPct > 0 {
					intent.StopLoss = price * (1 - sizing.StopLossPct)
				}
				if sizing.TakeProfitPct > 0 {
					intent.TakeProfit = price * (1 + sizing.TakeProfitPct)
				}
				intents = append(intents, intent)

			case core.ActionSell:
				if !held {
					continue
				}
				intents = append(intents, core.Intent{
					Type:       core.IntentClose,
					Symbol:     symbol,
					PositionID: pos.ID,
				})
			}
		}
		return intents, nil
	}
}
