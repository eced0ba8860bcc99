package console

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/northbeck/papertrade/internal/backtest"
	"github.com/northbeck/papertrade/internal/core"
	"github.com/northbeck/papertrade/internal/notify"
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/northbeck/papertrade/internal/risk"
)

func TestConsole_ImplementsNotifier(t *testing.T) {
	var _ notify.Notifier = (*Console)(nil)
}

func TestConsole_Send_Opened(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	err := c.Send(notify.Event{
		Type:     notify.EventPositionOpened,
		Time:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Symbol:   "BTCUSDT",
		Side:     core.SideLong,
		Quantity: 0.5,
		Price:    40040,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "OPEN") {
		t.Errorf("expected OPEN line, got %q", out)
	}
	if !strings.Contains(out, "BTCUSDT") || !strings.Contains(out, "$40040.00") {
		t.Errorf("missing symbol or price: %q", out)
	}
	// Event time, not wall clock.
	if !strings.Contains(out, "2024-01-15 10:30:00") {
		t.Errorf("expected event timestamp, got %q", out)
	}
}

func TestConsole_Send_Closed(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	c.Send(notify.Event{
		Type:       notify.EventTradeClosed,
		Time:       time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC),
		Symbol:     "ETHUSDT",
		Side:       core.SideShort,
		Quantity:   2,
		Price:      1900,
		PnL:        -50,
		PnLPercent: -2.5,
		Reason:     "stop_loss",
	})

	out := buf.String()
	if !strings.Contains(out, "CLOSE") {
		t.Errorf("expected CLOSE line, got %q", out)
	}
	if !strings.Contains(out, "$-50.00") || !strings.Contains(out, "-2.50%") {
		t.Errorf("missing P&L: %q", out)
	}
	if !strings.Contains(out, "[stop_loss]") {
		t.Errorf("missing close reason: %q", out)
	}
}

func TestConsole_SendBatch(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	events := []notify.Event{
		{Type: notify.EventPositionOpened, Symbol: "BTCUSDT", Side: core.SideLong},
		{Type: notify.EventTradeClosed, Symbol: "BTCUSDT", Side: core.SideLong},
	}
	if err := c.SendBatch(events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("expected 2 lines, got %d: %q", lines, buf.String())
	}
}

func TestConsole_PrintPortfolioSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	stats := portfolio.Stats{
		InitialBalance: 10000,
		Equity:         10500,
		Cash:           8000,
		TotalPnL:       500,
		PnLPercent:     5,
		OpenPositions:  1,
		ClosedTrades:   4,
		WinningTrades:  3,
		LosingTrades:   1,
		WinRate:        0.75,
		AvgWin:         200,
		AvgLoss:        -100,
	}
	positions := []portfolio.Position{{
		Symbol:     "BTCUSDT",
		Side:       core.SideLong,
		Quantity:   0.5,
		EntryPrice: 40000,
		StopLoss:   38000,
		OpenedAt:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}}

	c.PrintPortfolioSummary(stats, positions)

	out := buf.String()
	for _, want := range []string{
		"PAPER TRADING PORTFOLIO SUMMARY",
		"Initial Balance:     $10000.00",
		"Equity:              $10500.00",
		"Win Rate:            75.00%",
		"Avg Win:             $200.00",
		"BTCUSDT",
		"$38000.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	// Take profit never set: the table shows a dash.
	if !strings.Contains(out, "-") {
		t.Errorf("expected dash for unset target, got %q", out)
	}
}

func TestConsole_PrintBacktestResults(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	result := &backtest.Result{
		Strategy:       "ma_crossover",
		Symbols:        []string{"BTCUSDT"},
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Steps:          1440,
		InitialBalance: 10000,
		FinalEquity:    11200,
		Trades: []portfolio.Trade{{
			Symbol:     "BTCUSDT",
			Side:       core.SideLong,
			Quantity:   0.5,
			EntryPrice: 40000,
			ExitPrice:  42000,
			PnL:        1000,
			PnLPercent: 5,
			Duration:   6 * time.Hour,
			Reason:     portfolio.CloseTakeProfit,
		}},
		Metrics: backtest.Metrics{
			TotalReturnPct: 12,
			SharpeRatio:    1.8,
			SortinoRatio:   2.4,
			CalmarRatio:    math.Inf(1),
			MaxDrawdown:    0.08,
			MaxDrawdownAmt: 900,
			ProfitFactor:   3.5,
			WinRate:        0.6,
			TotalTrades:    1,
		},
	}

	c.PrintBacktestResults(result)

	out := buf.String()
	for _, want := range []string{
		"BACKTEST RESULTS",
		"Strategy:            ma_crossover",
		"Final Equity:        $11200.00",
		"Return %:            12.00%",
		"Sharpe Ratio:        1.80",
		"Max Drawdown:        8.00% ($900.00)",
		"Calmar Ratio:        INF",
		"take_profit",
		"$42000.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestConsole_PrintBacktestResults_TruncatesTrades(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	trades := make([]portfolio.Trade, 25)
	for i := range trades {
		trades[i] = portfolio.Trade{Symbol: "BTCUSDT", Side: core.SideLong, Reason: portfolio.CloseManual}
	}

	c.PrintBacktestResults(&backtest.Result{
		Strategy: "noisy",
		Symbols:  []string{"BTCUSDT"},
		Trades:   trades,
	})

	if !strings.Contains(buf.String(), "Last 10 trades:") {
		t.Errorf("expected trade table capped at 10, got %q", buf.String())
	}
}

func TestConsole_PrintRiskReport(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriter(&buf)

	c.PrintRiskReport(risk.Report{
		Equity:           9500,
		PeakEquity:       10000,
		CurrentDrawdown:  0.05,
		MaxDrawdownLimit: 0.20,
		RiskPerTrade:     0.02,
		CapitalAtRisk:    190,
		WinRate:          0.55,
		Kelly:            0.10,
		OpenPositions:    2,
	})

	out := buf.String()
	for _, want := range []string{
		"RISK MANAGEMENT REPORT",
		"Current Drawdown:    5.00%",
		"Max Drawdown Limit:  20.00%",
		"Peak Equity:         $10000.00",
		"Kelly Fraction:      10.00%",
		"Open Positions:      2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
