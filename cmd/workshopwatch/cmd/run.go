package cmd

import (
	"context"
	"errors"
	"workshopwatch/internal/catalog"
	"workshopwatch/lib/serviceutil"
	"workshopwatch/lib/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [collection-id]",
	Short: "Executes one capture/diff/notify cycle and exits.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if len(args) > 0 {
			config.Collection = args[0]
		}
		if config.Collection == "" {
			serviceutil.Fatal("no collection configured", errors.New("set `collection` in the config or pass it as an argument"))
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

		_, err = runner.Run(ctx)
		if err != nil {
			// only the membership resolution failures land here,
			// everything else degrades into the capture itself
			switch {
			case errors.Is(err, catalog.ErrCollectionNotFound),
				errors.Is(err, catalog.ErrCollectionPrivate),
				errors.Is(err, catalog.ErrCollectionEmpty),
				errors.Is(err, catalog.ErrServiceUnreachable):
				serviceutil.Fatal("collection could not be processed", err)
			default:
				serviceutil.Fatal("run failed", err)
			}
		}
	},
}
