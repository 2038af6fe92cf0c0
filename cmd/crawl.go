package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand: a single run to completion.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl over the user directory",
		Long: `Resumes the directory walk from the last checkpoint, enriches and saves
every user it finds, and exits when the listing is exhausted.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	stats, err := a.RunCrawl(cmd.Context())
	if err != nil {
		return fmt.Errorf("crawl run: %w", err)
	}

	logger.Info("crawl complete",
		zap.Int("total_fetched", stats.TotalFetched),
		zap.Int("saved", stats.Saved),
		zap.Int("skipped_no_email", stats.SkippedNoEmail),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("errors", stats.Errors),
		zap.Int("last_cursor", stats.LastCursor),
		zap.Int("countries", len(stats.Countries)),
	)
	return nil
}
