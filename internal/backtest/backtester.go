// Package backtest replays candle history through the fill engine and
// summarizes the outcome. Each run gets a fresh portfolio and engine, the
// engine clock is pinned to candle time, and no wall-clock or random input
// reaches fill logic, so identical inputs produce identical trade histories.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/engine"
	"github.com/northbeck/papertrade/internal/exchange/replay"
	"github.com/northbeck/papertrade/internal/metrics"
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/northbeck/papertrade/internal/strategy"
)

// Config holds the simulation parameters for a run.
type Config struct {
	InitialBalance float64
	SlippageRate   float64
	FeeRate        float64
	// RiskFreeRate is the annualized rate subtracted in Sharpe and Sortino.
	RiskFreeRate float64
}

// DefaultConfig returns the standard run parameters: 10000 starting cash,
// 0.1% slippage and 0.1% fee per fill.
func DefaultConfig() Config {
	return Config{
		InitialBalance: 10000,
		SlippageRate:   0.001,
		FeeRate:        0.001,
	}
}

// Runner executes strategy runs over aligned candle series.
type Runner struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Registry
}

// New creates a runner with the given simulation parameters.
func New(cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// SetMetrics attaches a metrics registry. Nil disables instrumentation.
func (r *Runner) SetMetrics(reg *metrics.Registry) {
	r.metrics = reg
}

// RunStrategy replays the series against a signal strategy using the
// standard step adapter.
func (r *Runner) RunStrategy(ctx context.Context, s strategy.Strategy, sizing strategy.Sizing, series map[string][]core.Candle) (*Result, error) {
	return r.Run(ctx, s.Name(), series, strategy.Steps(s, sizing))
}

// Run replays the aligned candle series through a fresh portfolio and
// engine, invoking step once per candle index. After each step the stops
// are swept with that step's close prices and an equity snapshot is taken.
// A step error aborts the run and discards the partial result.
func (r *Runner) Run(ctx context.Context, name string, series map[string][]core.Candle, step strategy.StepFunc) (*Result, error) {
	started := time.Now()

	symbols, steps, err := validateSeries(series)
	if err != nil {
		r.record("rejected", started)
		return nil, err
	}

	pf := portfolio.New(r.cfg.InitialBalance)
	venue := replay.New(series)
	eng := engine.New(venue, pf, engine.Config{
		SlippageRate: r.cfg.SlippageRate,
		FeeRate:      r.cfg.FeeRate,
	}, r.logger)

	// The engine stamps fills with candle time, never the wall clock.
	var stepTime time.Time
	eng.SetClock(func() time.Time { return stepTime })

	r.logger.Info("backtest started",
		zap.String("strategy", name),
		zap.Strings("symbols", symbols),
		zap.Int("steps", steps),
	)

	curve := make([]EquityPoint, 0, steps)
	ref := series[symbols[0]]

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			r.record("cancelled", started)
			return nil, err
		}

		venue.SetStep(i)
		stepTime = ref[i].Time

		prices := make(map[string]float64, len(symbols))
		for _, sym := range symbols {
			prices[sym] = series[sym][i].Close
		}

		view := strategy.View{
			Step:      i,
			Time:      stepTime,
			Symbols:   symbols,
			Prices:    prices,
			Series:    window(series, symbols, i),
			Cash:      pf.Cash(),
			Equity:    pf.Equity(),
			Positions: snapshotPositions(pf),
		}

		intents, err := step(view)
		if err != nil {
			r.record("failed", started)
			return nil, core.WrapError(core.ErrStrategyFailed, fmt.Errorf("step %d: %w", i, err))
		}

		for _, intent := range intents {
			if err := eng.ExecuteIntent(ctx, intent); err != nil {
				if rejectionTolerated(err) {
					r.logger.Warn("intent rejected",
						zap.Int("step", i),
						zap.String("symbol", intent.Symbol),
						zap.Error(err),
					)
					continue
				}
				r.record("failed", started)
				return nil, err
			}
		}

		if _, err := eng.CheckStops(ctx, prices); err != nil {
			r.record("failed", started)
			return nil, err
		}

		for _, sym := range symbols {
			pf.SetMark(sym, prices[sym])
		}

		curve = append(curve, EquityPoint{
			Time:   stepTime,
			Equity: pf.Equity(),
			Cash:   pf.Cash(),
		})
	}

	result := &Result{
		Strategy:       name,
		Symbols:        symbols,
		Start:          ref[0].Time,
		End:            ref[steps-1].Time,
		Steps:          steps,
		InitialBalance: r.cfg.InitialBalance,
		FinalEquity:    pf.Equity(),
		Trades:         pf.Trades(),
		EquityCurve:    curve,
		Duration:       time.Since(started),
	}
	result.Metrics = CalculateMetrics(r.cfg.InitialBalance, curve, result.Trades,
		periodsPerYear(curve), r.cfg.RiskFreeRate)

	r.record("completed", started)
	r.logger.Info("backtest finished",
		zap.String("strategy", name),
		zap.Float64("final_equity", result.FinalEquity),
		zap.Int("trades", len(result.Trades)),
		zap.Duration("took", result.Duration),
	)
	return result, nil
}

// validateSeries checks that every symbol carries the same candle count and
// timestamps, each series ascending, and returns the sorted symbols.
func validateSeries(series map[string][]core.Candle) ([]string, int, error) {
	if len(series) == 0 {
		return nil, 0, core.WrapError(core.ErrMisalignedSeries, errors.New("no series provided"))
	}

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	ref := series[symbols[0]]
	if len(ref) == 0 {
		return nil, 0, core.WrapError(core.ErrMisalignedSeries,
			fmt.Errorf("empty series for %s", symbols[0]))
	}

	for _, sym := range symbols {
		candles := series[sym]
		if len(candles) != len(ref) {
			return nil, 0, core.WrapError(core.ErrMisalignedSeries,
				fmt.Errorf("%s has %d candles, %s has %d", sym, len(candles), symbols[0], len(ref)))
		}
		for i, c := range candles {
			if !c.IsValid() {
				return nil, 0, core.WrapError(core.ErrMisalignedSeries,
					fmt.Errorf("invalid candle for %s at index %d", sym, i))
			}
			if i > 0 && !candles[i-1].Time.Before(c.Time) {
				return nil, 0, core.WrapError(core.ErrMisalignedSeries,
					fmt.Errorf("timestamps for %s not ascending at index %d", sym, i))
			}
			if !c.Time.Equal(ref[i].Time) {
				return nil, 0, core.WrapError(core.ErrMisalignedSeries,
					fmt.Errorf("%s and %s differ at index %d", sym, symbols[0], i))
			}
		}
	}
	return symbols, len(ref), nil
}

// window builds the per-symbol candle prefix up to and including step i.
// Subslices share the input backing arrays; steps treat them as read-only.
func window(series map[string][]core.Candle, symbols []string, i int) map[string][]core.Candle {
	out := make(map[string][]core.Candle, len(symbols))
	for _, sym := range symbols {
		out[sym] = series[sym][:i+1]
	}
	return out
}

func snapshotPositions(pf *portfolio.Portfolio) []portfolio.Position {
	open := pf.Positions()
	out := make([]portfolio.Position, len(open))
	for i, p := range open {
		out[i] = *p
	}
	return out
}

// rejectionTolerated reports whether an intent failure is a normal trading
// outcome rather than a broken run. Order validation failures and closes of
// positions already taken out by a stop fall through; anything else aborts.
func rejectionTolerated(err error) bool {
	return errors.Is(err, core.ErrInsufficientFunds) ||
		errors.Is(err, core.ErrInvalidOrder) ||
		errors.Is(err, core.ErrInvalidStopLoss) ||
		errors.Is(err, core.ErrPositionNotFound)
}

// periodsPerYear infers the annualization factor from the curve's step
// spacing, assuming a continuously traded market.
func periodsPerYear(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 365
	}
	step := curve[1].Time.Sub(curve[0].Time)
	if step <= 0 {
		return 365
	}
	return float64(365*24*time.Hour) / float64(step)
}

func (r *Runner) record(status string, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordBacktest(status, time.Since(started).Seconds())
}
