package cmd

import (
	"github.com/spf13/cobra"
)

// AddCommands adds the configuration flags to the command.
func AddCommands(cmd *cobra.Command, app *BaseApp) {
	config := app.Config

	/** ======================== Base Flags ========================== **/
	cmd.PersistentFlags().StringVarP(&app.ConfigFile, "config", "c",
		app.ConfigFile, "Load configuration from file (toml, yaml or json)")
	cmd.PersistentFlags().StringVarP(&config.Database, "database", "d",
		config.Database, "Path to the SQLite database with the local events")
	cmd.PersistentFlags().StringVar(&config.Logging.Encoder, "log-encoder",
		config.Logging.Encoder, "Log encoder: console or json")
	cmd.PersistentFlags().StringVar(&config.Logging.AppLoggerLevel, "log-level",
		config.Logging.AppLoggerLevel, "Logging level of the app")

	/** ======================== Metrics Flags ========================== **/
	cmd.PersistentFlags().BoolVar(&config.Metrics.Enabled, "metrics",
		config.Metrics.Enabled, "Serve prometheus metrics")
	cmd.PersistentFlags().StringVar(&config.Metrics.Listen, "metrics-listen",
		config.Metrics.Listen, "Address of the metrics server")
	cmd.PersistentFlags().StringVar(&config.Metrics.Push.URL, "metrics-push",
		config.Metrics.Push.URL, "Push metrics to the pushgateway at this url after sync")

	/** ======================== Sync Flags ========================== **/
	cmd.PersistentFlags().StringSliceVarP(&config.Relays, "relay", "r",
		config.Relays, "Relay URL to sync with. Can be passed multiple times")
	cmd.PersistentFlags().StringVar(&config.Sync.Filters, "filters",
		config.Sync.Filters, "JSON filter object sent with NEG-OPEN")
	cmd.PersistentFlags().IntVar(&config.Sync.FrameSizeLimit, "frame-size-limit",
		config.Sync.FrameSizeLimit, "Limit on the negentropy message size, 0 for no limit")
	cmd.PersistentFlags().DurationVar(&config.Sync.Timeout, "timeout",
		config.Sync.Timeout, "Limit on the duration of a sync session with a relay")
	cmd.PersistentFlags().IntVar(&config.Sync.MaxConcurrentRelays, "max-concurrent-relays",
		config.Sync.MaxConcurrentRelays, "Number of relays to sync with concurrently")
	cmd.PersistentFlags().BoolVar(&config.Sync.CheckCapabilities, "check-capabilities",
		config.Sync.CheckCapabilities, "Skip relays that don't advertise NIP-77 in their NIP-11 document")

	/** ======================== Serve Flags ========================== **/
	cmd.PersistentFlags().StringVar(&config.Serve.Listen, "listen",
		config.Serve.Listen, "Address to serve negentropy sync on")
	cmd.PersistentFlags().IntVar(&config.Serve.MaxSessions, "max-sessions",
		config.Serve.MaxSessions, "Maximum number of open sync sessions per client connection")
}
