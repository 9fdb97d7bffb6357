// Package cmd defines the dropwatch CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and registers subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dropwatch",
		Short: "Poll release feeds and code pages, announce new items once.",
		Long: `dropwatch runs one poll-and-notify cycle per configured channel and exits.
Each channel pairs a source (srrdb releases, a reward-link blog page, a QR-code
blog page) with a destination (Discord webhook or Pub/Sub topic) and keeps its
own seen set so items are announced at most once. Schedule it with cron or a
systemd timer.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newNormalizeCmd())
	cmd.AddCommand(newNFOCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
