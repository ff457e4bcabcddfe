package cmd

import (
	"os"
	"time"
	"workshopwatch/internal/catalog"
	"workshopwatch/internal/fallback"
	"workshopwatch/internal/monitor"
	"workshopwatch/internal/notify"
	"workshopwatch/internal/snapshot"
	"workshopwatch/lib/configutil"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "workshopwatch",
	Short: "Captures a workshop collection, diffs it against the previous capture and posts the changes to a webhook.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "config.json5",
		"path to the configuration file",
	)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

type WebhookConfig struct {
	Url          string `json:"url"`
	BatchSize    int    `json:"batch_size"`
	PauseSeconds int    `json:"pause_seconds"`
}

type Config struct {
	Collection    string        `json:"collection"`
	BatchSize     int           `json:"batch_size"`
	Concurrency   int           `json:"concurrency"`
	SnapshotDb    string        `json:"snapshot_db"`
	CatalogUrl    string        `json:"catalog_url"`
	CommunityUrl  string        `json:"community_url"`
	ScrapeDelayMs int           `json:"scrape_delay_ms"`
	Webhook       WebhookConfig `json:"webhook"`
	// watch subcommand only
	IntervalMinutes int `json:"interval_minutes"`
}

func readConfig() (Config, error) {
	return configutil.Load[Config](configPath)
}

func buildRunner(config Config) (*monitor.Runner, func() error, error) {
	if config.SnapshotDb == "" {
		config.SnapshotDb = "workshopwatch.db"
	}
	store, err := snapshot.OpenStore(config.SnapshotDb)
	if err != nil {
		return nil, nil, err
	}

	cat := catalog.NewClient(catalog.ClientOptions{
		BaseUrl: config.CatalogUrl,
	})
	resolver := fallback.NewResolver(fallback.ResolverOptions{
		BaseUrl: config.CommunityUrl,
		Delay:   time.Duration(config.ScrapeDelayMs) * time.Millisecond,
	})

	sink := notify.NewWebhookSink(notify.WebhookSinkOptions{
		Url: config.Webhook.Url,
	})
	dispatcher := notify.NewDispatcher(sink, notify.DispatcherOptions{
		BatchSize: config.Webhook.BatchSize,
		Pause:     time.Duration(config.Webhook.PauseSeconds) * time.Second,
	})

	runner := monitor.New(cat, resolver, store, dispatcher, monitor.Options{
		Collection:  config.Collection,
		BatchSize:   config.BatchSize,
		Concurrency: config.Concurrency,
		PageBaseUrl: config.CommunityUrl,
	})
	return runner, store.Close, nil
}
