package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/northbeck/papertrade/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the trade journal",
	Long:  `Commands for reading recorded runs, their trades and equity curves.`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE:  runJournalRuns,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades [run-id]",
	Short: "List the closed trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity [run-id]",
	Short: "Show the equity curve of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalEquityCmd)
}

// withJournal handles common journal setup and teardown.
func withJournal(fn func(ctx context.Context, j *journal.Journal) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	return fn(context.Background(), j)
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	return withJournal(func(ctx context.Context, j *journal.Journal) error {
		runs, err := j.Runs(ctx)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tKIND\tSTRATEGY\tSYMBOLS\tSTARTED\tENDED\tBALANCE\tFINAL EQUITY\t")
		fmt.Fprintln(w, "------\t----\t--------\t-------\t-------\t-----\t-------\t------------\t")

		for _, r := range runs {
			ended := "running"
			if !r.EndedAt.IsZero() {
				ended = r.EndedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t\n",
				r.ID, r.Kind, r.Strategy, strings.Join(r.Symbols, ","),
				r.StartedAt.Format("2006-01-02 15:04"), ended, r.InitialBalance, r.FinalEquity)
		}
		w.Flush()
		return nil
	})
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	return withJournal(func(ctx context.Context, j *journal.Journal) error {
		trades, err := j.Trades(ctx, args[0])
		if err != nil {
			return fmt.Errorf("listing trades: %w", err)
		}

		if len(trades) == 0 {
			fmt.Println("No trades recorded for this run.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tSIDE\tQTY\tENTRY\tEXIT\tP&L\tP&L %\tFEES\tREASON\tCLOSED\t")
		fmt.Fprintln(w, "------\t----\t---\t-----\t----\t---\t-----\t----\t------\t------\t")

		for _, t := range trades {
			plSign := ""
			if t.PnL >= 0 {
				plSign = "+"
			}
			fmt.Fprintf(w, "%s\t%s\t%.6f\t%.2f\t%.2f\t%s%.2f\t%s%.2f%%\t%.2f\t%s\t%s\t\n",
				t.Symbol, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice,
				plSign, t.PnL, plSign, t.PnLPercent, t.Fees, t.Reason,
				t.ClosedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
		return nil
	})
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	return withJournal(func(ctx context.Context, j *journal.Journal) error {
		curve, err := j.EquityCurve(ctx, args[0])
		if err != nil {
			return fmt.Errorf("reading equity curve: %w", err)
		}

		if len(curve) == 0 {
			fmt.Println("No equity snapshots recorded for this run.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tEQUITY\tCASH\t")
		fmt.Fprintln(w, "----\t------\t----\t")

		for _, p := range curve {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t\n",
				p.Time.Format("2006-01-02 15:04:05"), p.Equity, p.Cash)
		}
		w.Flush()
		return nil
	})
}
