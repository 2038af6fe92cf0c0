// Package cmd defines the CLI commands for the gitscout executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/config"
	"github.com/gitscout/gitscout/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitscout",
		Short: "A resumable crawler for the GitHub user directory.",
		Long: `gitscout walks the public GitHub user directory page by page, enriches
each user with an email and a location tag, and persists the results.
Crawls checkpoint their cursor so an interrupted run resumes where it
stopped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is environment only)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// bootstrap loads configuration and builds the logger shared by all
// subcommands.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
