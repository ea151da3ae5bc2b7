package main

import (
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dispatch/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Delivery assignment and lifecycle engine",
	Long: `Assigns restaurant orders to riders, drives each delivery through its
lifecycle, records rider earnings and streams row changes to observers.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// newRelicApp starts the New Relic agent, or returns nil when it is disabled
// or fails to start.
func newRelicApp(cfg config.NewRelicConfig, log zerolog.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize New Relic, continuing without APM")
		return nil
	}

	if err := nrApp.WaitForConnection(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("New Relic not connected yet")
	}
	log.Info().Str("app", cfg.AppName).Msg("New Relic enabled")
	return nrApp
}
