package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/app"
	"github.com/JakeFAU/dropwatch/internal/config"
	"github.com/JakeFAU/dropwatch/internal/logging"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one poll cycle for every enabled channel",
		Long: `Loads the configuration, then for each enabled channel (or only --channel)
fetches candidates, skips those already seen, and dispatches one notification
per new item. Configuration errors abort before any network call.`,
		Args: cobra.NoArgs,
		RunE: runCycleCommand,
	}
	cmd.Flags().String("channel", "", "run only this channel")
	return cmd
}

func runCycleCommand(cmd *cobra.Command, _ []string) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("read --config: %w", err)
	}
	channel, err := cmd.Flags().GetString("channel")
	if err != nil {
		return fmt.Errorf("read --channel: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := cfg.Select(channel); err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	reports, err := a.Run(ctx, channel)
	for _, r := range reports {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: sent=%d attempted=%d skipped=%d failed=%d\n",
			r.Channel, r.Sent, r.Attempted, r.Skipped, r.Failed)
	}
	if err != nil {
		logger.Error("run finished with errors", zap.String("run_id", a.RunID()), zap.Error(err))
		return err
	}
	return nil
}
