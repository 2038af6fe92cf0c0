package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitscout/gitscout/internal/app"
)

// newServeCmd creates the 'serve' subcommand: the HTTP API plus the optional
// cron crawl schedule.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Starts the HTTP API for triggering crawl runs and querying saved users.
When crawl.schedule is configured, runs crawls on that cron schedule as
well.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	return a.Serve(cmd.Context())
}
