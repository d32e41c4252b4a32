package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/litmesh/literature-aggregation-service/internal/config"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show how each source would be used for the next run",
	Long: `Sources prints the execution plan for the current configuration and
credentials: each connector's position, tier and the mode it would run in.
Key-required sources without a token appear as skipped, not as errors.`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, err := buildRegistry(cfg, nil)
	if err != nil {
		return err
	}

	creds := cfg.Credentials()
	pl, err := pipeline.New(pipeline.Config{
		Registry:         registry,
		Credentials:      creds,
		ConnectorTimeout: cfg.Pipeline.PerConnectorTimeout,
		Logger:           cliLogger(cfg),
	})
	if err != nil {
		return err
	}

	fmt.Printf("%-4s  %-17s  %-13s  %-14s  %-4s  %s\n", "Pos", "Source", "Tier", "Mode", "Key", "Note")
	fmt.Println(strings.Repeat("-", 72))

	for i, entry := range pl.Plan() {
		key := "no"
		if creds.Has(entry.Source) {
			key = "yes"
		}
		fmt.Printf("%-4d  %-17s  %-13s  %-14s  %-4s  %s\n",
			i+1, entry.Source, entry.Tier, entry.Mode, key, entry.SkipReason)
	}
	return nil
}
