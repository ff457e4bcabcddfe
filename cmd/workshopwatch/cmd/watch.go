package cmd

import (
	"context"
	"errors"
	"time"
	"workshopwatch/lib/serviceutil"
	"workshopwatch/lib/telemetry"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(
		&watchInterval, "interval", 0,
		"time between cycles, overrides interval_minutes from the config",
	)
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Runs capture/diff/notify cycles periodically until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if config.Collection == "" {
			serviceutil.Fatal("no collection configured", errors.New("set `collection` in the config"))
		}

		interval := watchInterval
		if interval == 0 {
			interval = time.Duration(config.IntervalMinutes) * time.Minute
		}
		if interval == 0 {
			interval = time.Minute * 30
		}

		ctx := serviceutil.SignalContext()
		tel, err := telemetry.SetupFromEnv(ctx, "workshopwatch")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer tel.Shutdown(context.Background())

		runner, closeStore, err := buildRunner(config)
		if err != nil {
			serviceutil.Fatal("failed to build pipeline", err)
		}
		defer closeStore()

		runner.Watch(ctx, interval)
	},
}
