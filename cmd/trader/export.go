package main

import (
	"context"
	"fmt"
	"time"

	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/report"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *options) *cobra.Command {
	var (
		output string
		days   int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export trades and portfolio snapshots to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			db, err := database.NewDatabase(cfg.Database)
			if err != nil {
				return err
			}
			n, err := exportWorkbook(cmd.Context(), database.NewRepository(db), output, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d trades to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "reports/trades.xlsx", "Output workbook path")
	cmd.Flags().IntVar(&days, "days", 0, "Only include trades opened in the last N days (0 for all)")
	return cmd
}

func exportWorkbook(ctx context.Context, repo *database.Repository, path string, days int) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var since time.Time
	if days > 0 {
		since = time.Now().AddDate(0, 0, -days)
	}
	trades, err := repo.ListTrades(ctx, since, 0)
	if err != nil {
		return 0, err
	}
	snapshots, err := repo.ListSnapshots(ctx, 0)
	if err != nil {
		return 0, err
	}
	if err := report.ExportWorkbook(trades, snapshots, path); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(trades), nil
}
