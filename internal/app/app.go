// Package app wires the configured components into a running paper
// trading session: market data in, strategy intents through the fill
// engine, trades out to the journal and notifiers. The trading cycle is
// the single logical thread that owns the portfolio; everything the
// status API serves comes from snapshots published after each cycle.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/northbeck/papertrade/internal/api"
	"github.com/northbeck/papertrade/internal/config"
	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/engine"
	"github.com/northbeck/papertrade/internal/exchange"
	"github.com/northbeck/papertrade/internal/exchange/binance"
	"github.com/northbeck/papertrade/internal/journal"
	"github.com/northbeck/papertrade/internal/metrics"
	"github.com/northbeck/papertrade/internal/notify"
	"github.com/northbeck/papertrade/internal/notify/console"
	"github.com/northbeck/papertrade/internal/notify/telegram"
	"github.com/northbeck/papertrade/internal/notify/webhook"
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/northbeck/papertrade/internal/risk"
	"github.com/northbeck/papertrade/internal/strategy"
)

// seriesPad is how many candles beyond the strategy minimum each cycle
// fetches, so signals survive the occasional short venue response.
const seriesPad = 20

// App is a live paper trading session. It owns the portfolio, drives
// the trading cycle and publishes state for the status API.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	market    exchange.MarketData
	pf        *portfolio.Portfolio
	engine    *engine.Engine
	riskMgr   *risk.Manager
	strat     strategy.Strategy
	stepFn    strategy.StepFunc
	notifiers *notify.Registry
	registry  *metrics.Registry
	journal   *journal.Journal // nil when disabled
	server    *api.Server      // nil when disabled
	stream    *binance.Stream  // nil unless streaming on binance

	symbols   []string
	timeframe string
	limit     int
	interval  time.Duration
	runID     string

	streamMu     sync.Mutex
	streamPrices map[string]float64

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	cycles   int
	snapshot snapshot
}

// New builds a session from the configuration. The API server is
// constructed but not started; Start brings it up with the loop.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	market, err := exchange.New(exchange.Options{
		Venue:     cfg.Exchange.Venue,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
	})
	if err != nil {
		return nil, err
	}

	strat, ok := BuiltinStrategies().Get(cfg.Trading.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", cfg.Trading.Strategy)
	}
	sizing := strategy.Sizing{
		Fraction:      cfg.Trading.PositionFraction,
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
	}

	registry := metrics.NewRegistry()
	pf := portfolio.New(cfg.Trading.InitialBalance)
	eng := engine.New(market, pf, engine.Config{
		SlippageRate: cfg.Trading.SlippageRate,
		FeeRate:      cfg.Trading.FeeRate,
	}, logger)
	eng.SetMetrics(registry)

	symbols := append([]string(nil), cfg.Trading.Symbols...)
	sort.Strings(symbols)

	a := &App{
		cfg:    cfg,
		logger: logger,
		market: market,
		pf:     pf,
		engine: eng,
		riskMgr: risk.NewManager(risk.Config{
			RiskPerTrade: cfg.Risk.RiskPerTrade,
			MaxDrawdown:  cfg.Risk.MaxDrawdown,
		}),
		strat:        strat,
		stepFn:       strategy.Steps(strat, sizing),
		notifiers:    notify.NewRegistry(),
		registry:     registry,
		symbols:      symbols,
		timeframe:    intervalTimeframe(cfg.Trading.Interval),
		limit:        strat.MinCandles() + seriesPad,
		interval:     cfg.Trading.Interval,
		streamPrices: make(map[string]float64),
	}

	if err := a.buildNotifiers(); err != nil {
		return nil, err
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.journal = j
	}

	if cfg.API.Enabled {
		srv, err := api.NewServer(api.Config{Host: cfg.API.Host, Port: cfg.API.Port},
			api.Dependencies{Source: a, Metrics: registry}, logger)
		if err != nil {
			return nil, err
		}
		a.server = srv
	}

	if cfg.Exchange.Stream {
		if market.Name() == "binance" {
			a.stream = binance.NewStream(symbols, logger)
		} else {
			logger.Warn("ticker streaming is only available on binance, polling instead",
				zap.String("venue", market.Name()))
		}
	}

	a.publishSnapshot()
	return a, nil
}

// buildNotifiers constructs and registers the sinks enabled in config.
func (a *App) buildNotifiers() error {
	for name, nc := range a.cfg.Notifiers {
		if !nc.Enabled {
			continue
		}

		var sink notify.Notifier
		switch name {
		case "console":
			sink = console.New()
		case "webhook":
			sink = webhook.New("", nil)
		case "telegram":
			sink = telegram.New("", "")
		default:
			return fmt.Errorf("unknown notifier %q", name)
		}

		if err := sink.Init(notify.Config{Type: name, Params: nc.Params}); err != nil {
			return fmt.Errorf("notifier %s: %w", name, err)
		}
		if err := a.notifiers.Register(sink); err != nil {
			return err
		}
	}
	return nil
}

// RegisterNotifier adds an extra event sink to the session.
func (a *App) RegisterNotifier(n notify.Notifier) error {
	return a.notifiers.Register(n)
}

// SetMarket overrides the market data source. Must be called before
// Start.
func (a *App) SetMarket(m exchange.MarketData) {
	if m == nil {
		return
	}
	a.market = m
	a.engine.SetMarket(m)
}

// Start runs the trading loop until the context is cancelled. The
// status API and ticker stream come up and go down with the loop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	a.logger.Info("paper trading session starting",
		zap.String("venue", a.market.Name()),
		zap.String("strategy", a.strat.Name()),
		zap.Strings("symbols", a.symbols),
		zap.Duration("interval", a.interval),
		zap.Float64("balance", a.cfg.Trading.InitialBalance),
	)

	if a.journal != nil {
		id, err := a.journal.StartRun(ctx, "live", a.strat.Name(), a.symbols, a.cfg.Trading.InitialBalance)
		if err != nil {
			return err
		}
		a.runID = id
	}

	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				a.logger.Error("api server failed", zap.Error(err))
			}
		}()
	}

	if a.stream != nil {
		if err := a.stream.Connect(ctx); err != nil {
			a.logger.Warn("ticker stream unavailable, polling instead", zap.Error(err))
		} else {
			go a.watchStream(ctx)
		}
	}

	// Initial cycle, then the ticker cadence
	a.runTradingCycle(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return ctx.Err()
		case <-ticker.C:
			a.runTradingCycle(ctx)
		}
	}
}

// Stop cancels a running session.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Close releases the session's resources. It does not stop a running
// loop; cancel the Start context or call Stop first.
func (a *App) Close() error {
	var firstErr error
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.market.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RunOnce performs a single trading cycle (useful for testing).
func (a *App) RunOnce(ctx context.Context) {
	a.runTradingCycle(ctx)
}

// shutdown flushes the run record and stops the auxiliary services.
func (a *App) shutdown() {
	a.logger.Info("paper trading session shutting down",
		zap.Float64("equity", a.pf.Equity()),
		zap.Int("closed_trades", len(a.pf.Trades())),
	)

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("api server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	if a.stream != nil {
		a.stream.Close()
	}

	if a.journal != nil && a.runID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.journal.FinishRun(ctx, a.runID, a.pf.Equity()); err != nil {
			a.logger.Warn("failed to finish journal run", zap.Error(err))
		}
		cancel()
	}
}

// runTradingCycle executes one fetch, step, fill, sweep pass. Failures
// inside a cycle never stop the loop; the next tick retries.
func (a *App) runTradingCycle(ctx context.Context) {
	now := time.Now()

	prices := make(map[string]float64, len(a.symbols))
	series := make(map[string][]core.Candle, len(a.symbols))
	live := make([]string, 0, len(a.symbols))

	for _, sym := range a.symbols {
		if ctx.Err() != nil {
			return
		}

		candles, err := a.market.GetOHLCV(ctx, sym, a.timeframe, a.limit)
		if err != nil {
			a.observeMarket("error")
			a.logger.Warn("candle fetch failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		a.observeMarket("ok")

		price, ok := a.streamPrice(sym)
		if !ok {
			ticker, err := a.market.GetTicker(ctx, sym)
			if err != nil || !ticker.IsValid() {
				a.observeMarket("error")
				a.logger.Warn("price fetch failed", zap.String("symbol", sym), zap.Error(err))
				continue
			}
			a.observeMarket("ok")
			price = ticker.Last
		}

		series[sym] = candles
		prices[sym] = price
		live = append(live, sym)
	}

	if len(live) == 0 {
		a.logger.Warn("no market data this cycle")
		return
	}

	tradesBefore := len(a.pf.Trades())
	openBefore := make(map[string]struct{})
	for _, pos := range a.pf.Positions() {
		openBefore[pos.ID] = struct{}{}
	}

	view := strategy.View{
		Step:      a.cycles,
		Time:      now,
		Symbols:   live,
		Prices:    prices,
		Series:    series,
		Cash:      a.pf.Cash(),
		Equity:    a.pf.Equity(),
		Positions: a.positionsCopy(),
	}

	intents, err := a.stepFn(view)
	if err != nil {
		a.logger.Error("strategy step failed", zap.Error(err))
		return
	}

	for _, intent := range intents {
		if !a.approveIntent(intent, prices[intent.Symbol]) {
			continue
		}
		if err := a.engine.ExecuteIntent(ctx, intent); err != nil {
			a.logger.Warn("intent rejected",
				zap.String("symbol", intent.Symbol),
				zap.String("type", string(intent.Type)),
				zap.Error(err),
			)
		}
	}

	if _, err := a.engine.CheckStops(ctx, prices); err != nil {
		a.logger.Warn("stop sweep aborted", zap.Error(err))
	}

	for _, sym := range live {
		a.pf.SetMark(sym, prices[sym])
	}

	equity := a.pf.Equity()
	a.riskMgr.UpdatePeak(equity)
	a.registry.SetEquity(equity)
	a.registry.SetOpenPositions(len(a.pf.Positions()))

	a.emitAndRecord(ctx, now, tradesBefore, openBefore)

	a.mu.Lock()
	a.cycles++
	a.mu.Unlock()
	a.publishSnapshot()
}

// approveIntent runs the advisory risk checks for an entry. Closes and
// stopless entries pass through; pricing the loss needs a stop.
func (a *App) approveIntent(intent core.Intent, price float64) bool {
	if intent.Type == core.IntentClose || intent.StopLoss <= 0 {
		return true
	}

	assessment := a.riskMgr.ValidateTrade(a.pf, risk.TradePlan{
		EntryPrice: price,
		StopLoss:   intent.StopLoss,
		Quantity:   intent.Quantity,
	})
	if assessment.Valid {
		return true
	}

	a.logger.Warn("entry blocked by risk limits",
		zap.String("symbol", intent.Symbol),
		zap.Float64("cost", assessment.Cost),
		zap.Strings("reasons", assessment.Reasons),
	)
	a.registry.RecordOrderRejected("risk")
	return false
}

// emitAndRecord turns the cycle's fills into notifications and journal
// rows. Both sinks are additive; their failures are logged, never fatal.
func (a *App) emitAndRecord(ctx context.Context, now time.Time, tradesBefore int, openBefore map[string]struct{}) {
	trades := a.pf.Trades()
	closed := trades[tradesBefore:]

	var events []notify.Event
	for _, pos := range a.pf.Positions() {
		if _, ok := openBefore[pos.ID]; ok {
			continue
		}
		events = append(events, notify.PositionOpened(*pos))
	}
	for _, trade := range closed {
		events = append(events, notify.TradeClosed(trade))
	}
	for i := range events {
		events[i].Strategy = a.strat.Name()
	}

	if len(events) > 0 {
		for name, err := range a.notifiers.NotifyAllBatch(events) {
			a.logger.Warn("notifier failed", zap.String("notifier", name), zap.Error(err))
		}
	}

	if a.journal == nil || a.runID == "" {
		return
	}
	if err := a.journal.RecordTrades(ctx, a.runID, closed); err != nil {
		a.logger.Warn("journal trade write failed", zap.Error(err))
	}
	if err := a.journal.RecordEquity(ctx, a.runID, now, a.pf.Equity(), a.pf.Cash()); err != nil {
		a.logger.Warn("journal equity write failed", zap.Error(err))
	}
}

// streamPrice returns the latest websocket price for the symbol.
func (a *App) streamPrice(symbol string) (float64, bool) {
	if a.stream == nil {
		return 0, false
	}
	a.streamMu.Lock()
	defer a.streamMu.Unlock()
	price, ok := a.streamPrices[symbol]
	return price, ok
}

// watchStream drains ticker events into the live price cache. The cache
// is dropped on exit so later cycles poll instead of serving stale quotes.
func (a *App) watchStream(ctx context.Context) {
	defer func() {
		a.streamMu.Lock()
		a.streamPrices = make(map[string]float64)
		a.streamMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-a.stream.Err():
			a.logger.Warn("ticker stream failed, polling instead", zap.Error(err))
			return
		case tick, ok := <-a.stream.Tickers():
			if !ok {
				return
			}
			a.streamMu.Lock()
			a.streamPrices[tick.Symbol] = tick.Last
			a.streamMu.Unlock()
		}
	}
}

func (a *App) observeMarket(outcome string) {
	a.registry.RecordMarketDataRequest(a.market.Name(), outcome)
}

func (a *App) positionsCopy() []portfolio.Position {
	open := a.pf.Positions()
	out := make([]portfolio.Position, len(open))
	for i, p := range open {
		out[i] = *p
	}
	return out
}

// intervalTimeframe picks the venue candle size the strategy series is
// built from, matching the tick cadence.
func intervalTimeframe(d time.Duration) string {
	switch {
	case d < 5*time.Minute:
		return "1m"
	case d < 15*time.Minute:
		return "5m"
	case d < time.Hour:
		return "15m"
	case d < 4*time.Hour:
		return "1h"
	case d < 24*time.Hour:
		return "4h"
	default:
		return "1d"
	}
}
