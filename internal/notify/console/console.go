// Package console prints trade events and summary reports to a terminal.
package console

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/northbeck/papertrade/internal/backtest"
	"github.com/northbeck/papertrade/internal/notify"
	"github.com/northbeck/papertrade/internal/portfolio"
	"github.com/northbeck/papertrade/internal/risk"
)

const banner = "============================================================"

// Console implements the Notifier interface for terminal output. Beyond
// event lines it renders the portfolio, backtest and risk reports.
type Console struct {
	out io.Writer
}

// New creates a console notifier writing to stdout.
func New() *Console {
	return &Console{out: os.Stdout}
}

// NewWriter creates a console notifier for tests.
func NewWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Init(cfg notify.Config) error { return nil }

// Send prints a single event line. Timestamps come from the event, not the
// wall clock, so replayed output is reproducible.
func (c *Console) Send(event notify.Event) error {
	ts := event.Time.Format("2006-01-02 15:04:05")

	switch event.Type {
	case notify.EventPositionOpened:
		fmt.Fprintf(c.out, "[%s] OPEN  %-5s %s %.4f @ $%.2f\n",
			ts, event.Side, event.Symbol, event.Quantity, event.Price)
	case notify.EventTradeClosed:
		fmt.Fprintf(c.out, "[%s] CLOSE %-5s %s %.4f @ $%.2f pnl $%.2f (%+.2f%%) [%s]\n",
			ts, event.Side, event.Symbol, event.Quantity, event.Price,
			event.PnL, event.PnLPercent, event.Reason)
	default:
		fmt.Fprintf(c.out, "[%s] %s %s\n", ts, event.Type, event.Symbol)
	}
	return nil
}

func (c *Console) SendBatch(events []notify.Event) error {
	for _, event := range events {
		if err := c.Send(event); err != nil {
			return err
		}
	}
	return nil
}

// PrintPortfolioSummary renders the account ledger summary plus a table of
// open positions.
func (c *Console) PrintPortfolioSummary(stats portfolio.Stats, positions []portfolio.Position) {
	fmt.Fprintf(c.out, "\n%s\n", banner)
	fmt.Fprintln(c.out, "PAPER TRADING PORTFOLIO SUMMARY")
	fmt.Fprintln(c.out, banner)
	fmt.Fprintf(c.out, "Initial Balance:     $%.2f\n", stats.InitialBalance)
	fmt.Fprintf(c.out, "Equity:              $%.2f\n", stats.Equity)
	fmt.Fprintf(c.out, "Cash:                $%.2f\n", stats.Cash)
	fmt.Fprintf(c.out, "Total P&L:           $%.2f\n", stats.TotalPnL)
	fmt.Fprintf(c.out, "P&L %%:               %.2f%%\n", stats.PnLPercent)
	fmt.Fprintf(c.out, "Realized P&L:        $%.2f\n", stats.RealizedPnL)
	fmt.Fprintf(c.out, "Unrealized P&L:      $%.2f\n", stats.UnrealizedPnL)
	fmt.Fprintf(c.out, "Open Positions:      %d\n", stats.OpenPositions)
	fmt.Fprintf(c.out, "Closed Trades:       %d\n", stats.ClosedTrades)
	fmt.Fprintf(c.out, "Win Rate:            %.2f%%\n", stats.WinRate*100)
	if stats.WinningTrades > 0 {
		fmt.Fprintf(c.out, "Avg Win:             $%.2f\n", stats.AvgWin)
	}
	if stats.LosingTrades > 0 {
		fmt.Fprintf(c.out, "Avg Loss:            $%.2f\n", stats.AvgLoss)
	}

	if len(positions) > 0 {
		fmt.Fprintln(c.out)
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Symbol", "Side", "Qty", "Entry", "Stop", "Target", "Opened")
		for _, pos := range positions {
			tbl.Append(
				pos.Symbol,
				string(pos.Side),
				fmt.Sprintf("%.4f", pos.Quantity),
				fmt.Sprintf("$%.2f", pos.EntryPrice),
				levelLabel(pos.StopLoss),
				levelLabel(pos.TakeProfit),
				pos.OpenedAt.Format("2006-01-02 15:04"),
			)
		}
		tbl.Render()
	}
	fmt.Fprintf(c.out, "%s\n\n", banner)
}

// PrintBacktestResults renders the run summary, performance metrics and the
// most recent closed trades.
func (c *Console) PrintBacktestResults(result *backtest.Result) {
	m := result.Metrics

	fmt.Fprintf(c.out, "\n%s\n", banner)
	fmt.Fprintln(c.out, "BACKTEST RESULTS")
	fmt.Fprintln(c.out, banner)
	fmt.Fprintf(c.out, "Strategy:            %s\n", result.Strategy)
	fmt.Fprintf(c.out, "Symbols:             %s\n", strings.Join(result.Symbols, ", "))
	fmt.Fprintf(c.out, "Period:              %s to %s (%d steps)\n",
		result.Start.Format("2006-01-02 15:04"),
		result.End.Format("2006-01-02 15:04"),
		result.Steps)
	fmt.Fprintf(c.out, "Initial Balance:     $%.2f\n", result.InitialBalance)
	fmt.Fprintf(c.out, "Final Equity:        $%.2f\n", result.FinalEquity)
	fmt.Fprintf(c.out, "Total Return:        $%.2f\n", result.FinalEquity-result.InitialBalance)
	fmt.Fprintf(c.out, "Return %%:            %.2f%%\n", m.TotalReturnPct)
	fmt.Fprintf(c.out, "Closed Trades:       %d\n", m.TotalTrades)
	fmt.Fprintf(c.out, "Win Rate:            %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(c.out, "Avg Win:             $%.2f\n", m.AvgWin)
	fmt.Fprintf(c.out, "Avg Loss:            $%.2f\n", m.AvgLoss)
	fmt.Fprintf(c.out, "Best Trade:          $%.2f\n", m.BestTrade)
	fmt.Fprintf(c.out, "Worst Trade:         $%.2f\n", m.WorstTrade)
	fmt.Fprintf(c.out, "Sharpe Ratio:        %.2f\n", m.SharpeRatio)
	fmt.Fprintf(c.out, "Sortino Ratio:       %s\n", ratioLabel(m.SortinoRatio))
	fmt.Fprintf(c.out, "Calmar Ratio:        %s\n", ratioLabel(m.CalmarRatio))
	fmt.Fprintf(c.out, "Max Drawdown:        %.2f%% ($%.2f)\n", m.MaxDrawdown*100, m.MaxDrawdownAmt)
	fmt.Fprintf(c.out, "Profit Factor:       %s\n", ratioLabel(m.ProfitFactor))

	if n := len(result.Trades); n > 0 {
		shown := result.Trades
		if n > 10 {
			shown = shown[n-10:]
		}
		fmt.Fprintf(c.out, "\nLast %d trades:\n", len(shown))
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Symbol", "Side", "Qty", "Entry", "Exit", "PnL", "PnL%", "Held", "Reason")
		for _, trade := range shown {
			tbl.Append(
				trade.Symbol,
				string(trade.Side),
				fmt.Sprintf("%.4f", trade.Quantity),
				fmt.Sprintf("$%.2f", trade.EntryPrice),
				fmt.Sprintf("$%.2f", trade.ExitPrice),
				fmt.Sprintf("$%.2f", trade.PnL),
				fmt.Sprintf("%+.2f%%", trade.PnLPercent),
				trade.Duration.String(),
				string(trade.Reason),
			)
		}
		tbl.Render()
	}
	fmt.Fprintf(c.out, "%s\n\n", banner)
}

// PrintRiskReport renders current account risk.
func (c *Console) PrintRiskReport(report risk.Report) {
	fmt.Fprintf(c.out, "\n%s\n", banner)
	fmt.Fprintln(c.out, "RISK MANAGEMENT REPORT")
	fmt.Fprintln(c.out, banner)
	fmt.Fprintf(c.out, "Current Drawdown:    %.2f%%\n", report.CurrentDrawdown*100)
	fmt.Fprintf(c.out, "Max Drawdown Limit:  %.2f%%\n", report.MaxDrawdownLimit*100)
	fmt.Fprintf(c.out, "Peak Equity:         $%.2f\n", report.PeakEquity)
	fmt.Fprintf(c.out, "Current Equity:      $%.2f\n", report.Equity)
	fmt.Fprintf(c.out, "Risk Per Trade:      %.2f%%\n", report.RiskPerTrade*100)
	fmt.Fprintf(c.out, "Capital at Risk:     $%.2f\n", report.CapitalAtRisk)
	fmt.Fprintf(c.out, "Win Rate:            %.2f%%\n", report.WinRate*100)
	fmt.Fprintf(c.out, "Kelly Fraction:      %.2f%%\n", report.Kelly*100)
	fmt.Fprintf(c.out, "Open Positions:      %d\n", report.OpenPositions)
	fmt.Fprintf(c.out, "%s\n\n", banner)
}

func levelLabel(level float64) string {
	if level <= 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", level)
}

func ratioLabel(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", v)
}
