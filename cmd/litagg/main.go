// Package main is the entry point for the litagg CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/litmesh/literature-aggregation-service/internal/config"
	"github.com/litmesh/literature-aggregation-service/internal/observability"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	flagConfig  string
	flagVerbose bool
)

// rootCmd is the base command for the litagg CLI.
var rootCmd = &cobra.Command{
	Use:   "litagg",
	Short: "Search scholarly databases from one place",
	Long: `litagg fans a query out to scholarly databases (PubMed, arXiv, OpenAlex,
Semantic Scholar, GitHub, Scopus), merges duplicate records across sources
and prints one ranked list.

Credentials are read from PUBMED_API_KEY, SEMANTIC_SCHOLAR_API_KEY,
GITHUB_TOKEN and SCOPUS_API_KEY. A source whose key is missing runs in its
open or throttled mode, or is skipped when the key is mandatory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagConfig != "" {
			return os.Setenv("LITAGG_CONFIG_PATH", flagConfig)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log connector activity to stderr")
}

// cliLogger builds a console logger for interactive use. Without --verbose
// only warnings and errors reach the terminal.
func cliLogger(cfg *config.Config) zerolog.Logger {
	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: cfg.Logging.TimeFormat,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
