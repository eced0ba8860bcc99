// Package replay plays a fixed set of historical candle series back
// through the MarketData interface. The backtester advances the step
// cursor one candle at a time so strategies and the engine see the
// same surface they would against a live venue.
package replay

import (
	"context"
	"fmt"

	"github.com/northbeck/papertrade/internal/core"
)

// Replay is a deterministic market data source over in-memory series.
// It performs no I/O; every answer is a pure function of the loaded
// candles and the current step.
type Replay struct {
	series map[string][]core.Candle
	step   int
}

// New creates a replay source over the given candle series.
func New(series map[string][]core.Candle) *Replay {
	return &Replay{series: series}
}

// SetStep positions the cursor on the given candle index.
func (r *Replay) SetStep(step int) {
	r.step = step
}

// Step returns the current candle index.
func (r *Replay) Step() int {
	return r.step
}

func (r *Replay) Name() string {
	return "replay"
}

// GetTicker synthesizes a quote from the candle at the current step:
// last = close, bid = low, ask = high.
func (r *Replay) GetTicker(_ context.Context, symbol string) (*core.Ticker, error) {
	c, err := r.current(symbol)
	if err != nil {
		return nil, err
	}

	return &core.Ticker{
		Symbol: symbol,
		Last:   c.Close,
		Bid:    c.Low,
		Ask:    c.High,
		High:   c.High,
		Low:    c.Low,
		Volume: c.Volume,
		Time:   c.Time,
	}, nil
}

// GetOHLCV returns the trailing window of up to limit candles ending at
// the current step. The timeframe argument is ignored; the loaded
// series defines it.
func (r *Replay) GetOHLCV(_ context.Context, symbol, _ string, limit int) ([]core.Candle, error) {
	candles, ok := r.series[symbol]
	if !ok {
		return nil, core.WrapError(core.ErrMarketData, fmt.Errorf("no series for %s", symbol))
	}
	if r.step >= len(candles) {
		return nil, core.WrapError(core.ErrMarketData,
			fmt.Errorf("step %d beyond series for %s", r.step, symbol))
	}

	end := r.step + 1
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}

	window := make([]core.Candle, end-start)
	copy(window, candles[start:end])
	return window, nil
}

// GetOrderBook synthesizes a single-level book from the current candle:
// one bid at the low, one ask at the high.
func (r *Replay) GetOrderBook(_ context.Context, symbol string, _ int) (*core.OrderBook, error) {
	c, err := r.current(symbol)
	if err != nil {
		return nil, err
	}

	return &core.OrderBook{
		Symbol: symbol,
		Bids:   []core.PriceLevel{{Price: c.Low, Size: c.Volume}},
		Asks:   []core.PriceLevel{{Price: c.High, Size: c.Volume}},
		Time:   c.Time,
	}, nil
}

func (r *Replay) Close() error {
	return nil
}

func (r *Replay) current(symbol string) (core.Candle, error) {
	candles, ok := r.series[symbol]
	if !ok {
		return core.Candle{}, core.WrapError(core.ErrMarketData,
			fmt.Errorf("no series for %s", symbol))
	}
	if r.step >= len(candles) {
		return core.Candle{}, core.WrapError(core.ErrMarketData,
			fmt.Errorf("step %d beyond series for %s", r.step, symbol))
	}
	return candles[r.step], nil
}
