// Package engine turns orders and strategy intents into simulated fills
// against the portfolio ledger. Fill prices come from the caller or from the
// attached market data source; slippage always moves the price against the
// trader and the fee is charged on the executed notional.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/exchange"
	"github.com/northbeck/papertrade/internal/metrics"
	"github.com/northbeck/papertrade/internal/portfolio"
)

// Config holds the fill simulation parameters.
type Config struct {
	// SlippageRate is the fraction by which fills move against the trader.
	SlippageRate float64
	// FeeRate is the fraction of executed notional charged per fill.
	FeeRate float64
}

// DefaultConfig returns the standard simulation parameters: 0.1% slippage
// and 0.1% fee per fill.
func DefaultConfig() Config {
	return Config{
		SlippageRate: 0.001,
		FeeRate:      0.001,
	}
}

// OrderRequest describes a market order. Price 0 means fill at the venue's
// current last price; StopLoss and TakeProfit 0 mean not set.
type OrderRequest struct {
	Symbol     string
	Quantity   float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

// Engine executes simulated trades against a single portfolio. Like the
// portfolio it assumes one logical thread of control; callers serialize
// operations themselves.
type Engine struct {
	market  exchange.MarketData
	pf      *portfolio.Portfolio
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// New creates an engine bound to the given market data source and portfolio.
func New(market exchange.MarketData, pf *portfolio.Portfolio, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		market: market,
		pf:     pf,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Backtests pin it to candle time so
// trade timestamps replay identically.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// SetMetrics attaches a metrics registry. Nil disables instrumentation.
func (e *Engine) SetMetrics(reg *metrics.Registry) {
	e.metrics = reg
}

// SetMarket swaps the market data source. The portfolio and its open
// positions are untouched.
func (e *Engine) SetMarket(m exchange.MarketData) {
	if m != nil {
		e.market = m
	}
}

// Portfolio returns the ledger the engine executes against.
func (e *Engine) Portfolio() *portfolio.Portfolio {
	return e.pf
}

// Buy opens a long position. The fill price is pushed up by slippage.
func (e *Engine) Buy(ctx context.Context, req OrderRequest) (*portfolio.Position, error) {
	return e.open(ctx, core.SideLong, req)
}

// Sell opens a short position. The fill price is pushed down by slippage.
func (e *Engine) Sell(ctx context.Context, req OrderRequest) (*portfolio.Position, error) {
	return e.open(ctx, core.SideShort, req)
}

func (e *Engine) open(ctx context.Context, side core.Side, req OrderRequest) (*portfolio.Position, error) {
	price := req.Price
	if price == 0 {
		var err error
		price, err = e.lastPrice(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
	}

	exec := price * (1 + e.cfg.SlippageRate*side.Sign())
	fee := exec * req.Quantity * e.cfg.FeeRate

	pos, err := e.pf.OpenPosition(portfolio.OpenRequest{
		Symbol:     req.Symbol,
		Side:       side,
		Quantity:   req.Quantity,
		Price:      exec,
		Fee:        fee,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Time:       e.now(),
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordOrderRejected(rejectReason(err))
		}
		return nil, err
	}

	e.pf.SetMark(req.Symbol, price)
	e.logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(side)),
		zap.Float64("quantity", pos.Quantity),
		zap.Float64("price", exec),
		zap.Float64("fee", fee),
	)
	if e.metrics != nil {
		e.metrics.RecordOrderPlaced(orderLabel(side))
	}
	e.observe()
	return pos, nil
}

// ClosePosition exits an open position at the given price, or at the current
// market price when price is 0. Slippage moves the fill against the closer:
// longs exit lower, shorts buy back higher.
func (e *Engine) ClosePosition(ctx context.Context, id string, price float64) (*portfolio.Trade, error) {
	pos, ok := e.pf.Position(id)
	if !ok {
		return nil, core.WrapError(core.ErrPositionNotFound, fmt.Errorf("id %s", id))
	}

	if price == 0 {
		var err error
		price, err = e.lastPrice(ctx, pos.Symbol)
		if err != nil {
			return nil, err
		}
	}

	e.pf.SetMark(pos.Symbol, price)
	return e.close(pos, price, portfolio.CloseManual)
}

// close fills the exit at the given price with slippage and fee applied and
// records the trade.
func (e *Engine) close(pos *portfolio.Position, price float64, reason portfolio.CloseReason) (*portfolio.Trade, error) {
	exec := price * (1 - e.cfg.SlippageRate*pos.Side.Sign())
	fee := exec * pos.Quantity * e.cfg.FeeRate

	trade, err := e.pf.ClosePosition(pos.ID, exec, fee, e.now(), reason)
	if err != nil {
		return nil, err
	}

	e.logger.Info("position closed",
		zap.String("id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("exit", exec),
		zap.Float64("pnl", trade.PnL),
	)
	if e.metrics != nil {
		e.metrics.RecordOrderPlaced("close")
	}
	e.observe()
	return trade, nil
}

// ExecuteIntent dispatches a strategy intent to the matching operation.
// Errors propagate to the caller unchanged.
func (e *Engine) ExecuteIntent(ctx context.Context, intent core.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	req := OrderRequest{
		Symbol:     intent.Symbol,
		Quantity:   intent.Quantity,
		Price:      intent.Price,
		StopLoss:   intent.StopLoss,
		TakeProfit: intent.TakeProfit,
	}

	switch intent.Type {
	case core.IntentBuy:
		_, err := e.Buy(ctx, req)
		return err
	case core.IntentSell:
		_, err := e.Sell(ctx, req)
		return err
	case core.IntentClose:
		_, err := e.ClosePosition(ctx, intent.PositionID, intent.Price)
		return err
	default:
		return core.WrapError(core.ErrInvalidOrder, fmt.Errorf("intent type %q", intent.Type))
	}
}

// Summary returns the current portfolio snapshot.
func (e *Engine) Summary() portfolio.Stats {
	return e.pf.Stats()
}

func (e *Engine) lastPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := e.market.GetTicker(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}
	if !ticker.IsValid() {
		return 0, core.WrapError(core.ErrMarketData, fmt.Errorf("no usable price for %s", symbol))
	}
	return ticker.Last, nil
}

// observe refreshes the portfolio gauges after a fill.
func (e *Engine) observe() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetOpenPositions(len(e.pf.Positions()))
	e.metrics.SetEquity(e.pf.Equity())
}

func orderLabel(side core.Side) string {
	if side == core.SideShort {
		return "sell"
	}
	return "buy"
}

// rejectReason maps an error to a bounded metric label.
func rejectReason(err error) string {
	var cerr *core.Error
	if errors.As(err, &cerr) {
		return strings.ToLower(cerr.Code)
	}
	return "error"
}
