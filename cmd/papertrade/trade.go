package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/northbeck/papertrade/internal/app"
	"github.com/northbeck/papertrade/internal/notify/console"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Run the live paper trading loop",
	Long: `Trade runs the configured strategy against live market data with virtual
money until interrupted. Fills, stops and fees are simulated locally.`,
	RunE: runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
}

func runTrade(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("building session: %w", err)
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := session.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := session.GetStats()
	fmt.Printf("\nSession finished after %d cycles.\n\n", stats.Cycles)

	c := console.New()
	c.PrintPortfolioSummary(stats.Portfolio, session.Positions())
	c.PrintRiskReport(session.RiskReport())
	return nil
}
