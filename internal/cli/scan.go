package cli

import (
	"github.com/spf13/cobra"

	"sports-arb-scanner/internal/app"
)

var (
	scanSports      []string
	scanMinProfit   float64
	scanHorizonDays int
	scanMode        string
	scanChartDir    string
	scanSave        bool
	scanAlert       bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Fetch current odds once and print arbitrage opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScanOptions{
			Sports:   scanSports,
			Mode:     scanMode,
			ChartDir: scanChartDir,
			Save:     scanSave,
			Alert:    scanAlert,
		}
		if cmd.Flags().Changed("min-profit") {
			opts.MinProfitPct = &scanMinProfit
		}
		if cmd.Flags().Changed("horizon-days") {
			opts.HorizonDays = &scanHorizonDays
		}
		return getApp().Scan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanSports, "sport", nil, "Sport keys to scan (defaults to oddsapi.sports)")
	scanCmd.Flags().Float64Var(&scanMinProfit, "min-profit", 0, "Minimum margin in percent (defaults to scan.min_profit_pct)")
	scanCmd.Flags().IntVar(&scanHorizonDays, "horizon-days", 0, "Only events starting within this many days (0 disables)")
	scanCmd.Flags().StringVar(&scanMode, "mode", "", "Evaluation mode: margin, pairwise or both (defaults to scan.mode)")
	scanCmd.Flags().StringVar(&scanChartDir, "chart-dir", "", "Write a stake-split pie chart per opportunity into this directory")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Persist and publish the scan")
	scanCmd.Flags().BoolVar(&scanAlert, "alert", false, "Dispatch alerts for opportunities above the alert threshold")
}
