package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northbeck/papertrade/internal/app"
	"github.com/northbeck/papertrade/internal/backtest"
	"github.com/northbeck/papertrade/internal/config"
	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/exchange"
	"github.com/northbeck/papertrade/internal/journal"
	"github.com/northbeck/papertrade/internal/notify/console"
	"github.com/northbeck/papertrade/internal/strategy"
)

var (
	backtestSymbol    string
	backtestStrategy  string
	backtestTimeframe string
	backtestLimit     int
	backtestBalance   float64
	backtestSave      bool
	backtestJournal   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest a strategy against historical candles",
	Long: `Backtest fetches historical candles from the configured venue, replays
them through the fill engine and prints performance statistics.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy name (required)")
	backtestCmd.Flags().StringVar(&backtestTimeframe, "timeframe", "", "candle timeframe, e.g. 1h")
	backtestCmd.Flags().IntVar(&backtestLimit, "limit", 0, "number of candles to fetch")
	backtestCmd.Flags().Float64Var(&backtestBalance, "balance", 0, "starting balance")
	backtestCmd.Flags().BoolVar(&backtestSave, "save", false, "archive the result in the report store")
	backtestCmd.Flags().BoolVar(&backtestJournal, "journal", false, "record the run in the trade journal")

	backtestCmd.MarkFlagRequired("symbol")
	backtestCmd.MarkFlagRequired("strategy")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	strategies := app.BuiltinStrategies()
	strat, ok := strategies.Get(backtestStrategy)
	if !ok {
		return fmt.Errorf("unknown strategy %q, available: %v", backtestStrategy, strategies.Names())
	}

	// Accepts "btc", "BTC-USDT", "btc/usdt" and the like.
	symbol := core.NormalizeSymbol(backtestSymbol, "USDT")
	if err := core.ValidateSymbol(symbol); err != nil {
		return err
	}

	timeframe := cfg.Backtest.Timeframe
	if backtestTimeframe != "" {
		timeframe = backtestTimeframe
	}
	limit := cfg.Backtest.Limit
	if backtestLimit > 0 {
		limit = backtestLimit
	}
	balance := cfg.Trading.InitialBalance
	if backtestBalance > 0 {
		balance = backtestBalance
	}

	market, err := exchange.New(exchange.Options{
		Venue:     cfg.Exchange.Venue,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
	})
	if err != nil {
		return err
	}
	defer market.Close()

	ctx := context.Background()

	log.Info("fetching candles",
		zap.String("venue", market.Name()),
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("limit", limit),
	)
	candles, err := market.GetOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return fmt.Errorf("fetching candles: %w", err)
	}
	if len(candles) < strat.MinCandles() {
		return fmt.Errorf("%d candles is too few for %s (needs %d)",
			len(candles), strat.Name(), strat.MinCandles())
	}

	runner := backtest.New(backtest.Config{
		InitialBalance: balance,
		SlippageRate:   cfg.Trading.SlippageRate,
		FeeRate:        cfg.Trading.FeeRate,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}, log)

	sizing := strategy.Sizing{
		Fraction:      cfg.Trading.PositionFraction,
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
	}
	series := map[string][]core.Candle{symbol: candles}

	result, err := runner.RunStrategy(ctx, strat, sizing, series)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	console.New().PrintBacktestResults(result)

	if backtestJournal {
		if err := recordRun(ctx, cfg, result); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
	}

	if backtestSave {
		key, err := archiveResult(ctx, cfg, result)
		if err != nil {
			return fmt.Errorf("archiving result: %w", err)
		}
		fmt.Printf("\nResult archived as %s\n", key)
	}

	return nil
}

// recordRun writes the finished backtest into the trade journal.
func recordRun(ctx context.Context, cfg *config.Config, result *backtest.Result) error {
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	id, err := j.StartRun(ctx, "backtest", result.Strategy, result.Symbols, result.InitialBalance)
	if err != nil {
		return err
	}
	if err := j.RecordTrades(ctx, id, result.Trades); err != nil {
		return err
	}
	for _, point := range result.EquityCurve {
		if err := j.RecordEquity(ctx, id, point.Time, point.Equity, point.Cash); err != nil {
			return err
		}
	}
	return j.FinishRun(ctx, id, result.FinalEquity)
}

// archiveResult saves the result under the configured report backend.
func archiveResult(ctx context.Context, cfg *config.Config, result *backtest.Result) (string, error) {
	store, err := newReportStore(cfg)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s-%s-%s",
		result.Strategy, result.Symbols[0], time.Now().UTC().Format("20060102-150405"))
	if err := store.Save(ctx, key, result); err != nil {
		return "", err
	}
	return key, nil
}
