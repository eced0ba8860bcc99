package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northbeck/papertrade/internal/config"
	"github.com/northbeck/papertrade/internal/notify/console"
	"github.com/northbeck/papertrade/internal/storage/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect archived backtest reports",
	Long:  `Commands for listing and viewing results saved with backtest --save.`,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived report keys",
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Print an archived backtest result",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
}

// newReportStore builds the report store over the configured backend.
func newReportStore(cfg *config.Config) (*report.Store, error) {
	switch cfg.Report.Type {
	case "s3":
		return report.NewStore(report.NewS3(report.S3Config{
			Bucket:    cfg.Report.S3.Bucket,
			Region:    cfg.Report.S3.Region,
			Endpoint:  cfg.Report.S3.Endpoint,
			AccessKey: cfg.Report.S3.AccessKey,
			SecretKey: cfg.Report.S3.SecretKey,
			Prefix:    cfg.Report.S3.Prefix,
		})), nil
	default:
		fs, err := report.NewLocalFS(cfg.Report.Path)
		if err != nil {
			return nil, err
		}
		return report.NewStore(fs), nil
	}
}

func runReportsList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := newReportStore(cfg)
	if err != nil {
		return err
	}

	keys, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No reports archived.")
		return nil
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := newReportStore(cfg)
	if err != nil {
		return err
	}

	result, err := store.Load(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("loading report: %w", err)
	}

	console.New().PrintBacktestResults(result)
	return nil
}
