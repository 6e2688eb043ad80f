package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/homebatt/homebatt/app"
	"github.com/homebatt/homebatt/config"
	"github.com/homebatt/homebatt/core/model"
	"github.com/homebatt/homebatt/infra/prices"
)

var (
	planSoC    float64
	planPrices string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a one-shot strategy from the current price horizon",
	RunE:  plan,
}

func init() {
	planCmd.Flags().Float64Var(&planSoC, "soc", 0, "current state of charge in percent")
	planCmd.Flags().StringVar(&planPrices, "prices", "", "JSON price fixture instead of the live feed")
	rootCmd.AddCommand(planCmd)
}

func plan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.API.Enabled = false

	var fetcher prices.Fetcher = prices.NewClient(cfg.Prices)
	if planPrices != "" {
		fetcher = prices.FileSource{Path: planPrices}
	}
	svc := app.NewWithComponents(cfg, nil, fetcher, nil)
	defer func() { _ = svc.Close() }()

	now := time.Now()
	svc.OnTelemetry(model.BatteryState{SoCPercent: planSoC, Time: now})
	svc.Tick(cmd.Context(), now)

	strategy := svc.CurrentStrategy()
	if strategy == nil {
		return fmt.Errorf("no strategy: price horizon unavailable")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(strategy)
}
