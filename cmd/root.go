/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/logging"
)

const sentryFlushTimeout = 2 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "safeher",
	Short: "SafeHer incident reporting backend",
	Long: `SafeHer accepts incident reports from users, lets moderators review
them and gives administrators statistics and exports.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logging.Setup(cfg.Log)
		return initSentry(cfg.Sentry)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		sentry.Flush(sentryFlushTimeout)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Cobra skips post-run hooks when a command fails, so the error path flushes
// sentry itself.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(sentryFlushTimeout)
		os.Exit(1)
	}
}

// initSentry enables error reporting when a DSN is configured.
func initSentry(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		AttachStacktrace: true,
	})
}
