package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/litmesh/literature-aggregation-service/internal/config"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one aggregated search across configured sources",
	Long: `Search fans the query out to every configured source, merges duplicate
records across sources and prints one ranked list. Connector failures are
reported on stderr and never abort the run as long as any source answered.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("from", 0, "publication year range start")
	searchCmd.Flags().Int("to", 0, "publication year range end")
	searchCmd.Flags().String("venue", "", "restrict to a journal or conference name")
	searchCmd.Flags().Int("max", 0, "maximum ranked works to return (default from config)")
	searchCmd.Flags().StringSlice("sources", nil, "restrict to these sources (comma-separated)")
	searchCmd.Flags().String("ranker", "", "ranking strategy: source_count or citations")
	searchCmd.Flags().Duration("timeout", 0, "per-connector timeout override")
	searchCmd.Flags().Bool("json", false, "print the full run result as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	yearFrom, _ := flags.GetInt("from")
	yearTo, _ := flags.GetInt("to")
	venue, _ := flags.GetString("venue")
	maxResults, _ := flags.GetInt("max")
	sources, _ := flags.GetStringSlice("sources")
	rankerName, _ := flags.GetString("ranker")
	timeout, _ := flags.GetDuration("timeout")
	asJSON, _ := flags.GetBool("json")

	if rankerName == "" {
		rankerName = cfg.Pipeline.Ranker
	}
	scorer, err := pipeline.ScorerByName(rankerName)
	if err != nil {
		return err
	}

	if timeout <= 0 {
		timeout = cfg.Pipeline.PerConnectorTimeout
	}
	if maxResults <= 0 {
		maxResults = cfg.Pipeline.MaxResults
	}

	registry, err := buildRegistry(cfg, sources)
	if err != nil {
		return err
	}

	pl, err := pipeline.New(pipeline.Config{
		Registry:         registry,
		Credentials:      cfg.Credentials(),
		ConnectorTimeout: timeout,
		Scorer:           scorer,
		Logger:           cliLogger(cfg),
	})
	if err != nil {
		return err
	}

	query := domain.Query{
		Text:       strings.Join(args, " "),
		YearFrom:   yearFrom,
		YearTo:     yearTo,
		Venue:      venue,
		MaxResults: maxResults,
	}

	result, err := pl.Run(cmd.Context(), query)
	if err != nil {
		return err
	}

	if asJSON {
		return pipeline.FormatJSON(result, os.Stdout)
	}

	pipeline.FormatTable(result, os.Stdout)
	printDiagnostics(result)
	return nil
}

// printDiagnostics summarizes each connector's outcome on stderr so the
// ranked list on stdout stays pipeable.
func printDiagnostics(result *pipeline.Result) {
	fmt.Fprintf(os.Stderr, "\nrun %s: %s in %dms\n", result.RunID, result.Status, result.DurationMS)
	for _, d := range result.Diagnostics {
		line := fmt.Sprintf("  %-17s %-13s %-7s", d.Source, d.Mode, d.Status)
		switch {
		case d.Status == pipeline.DiagnosticSkipped:
			line += " (" + d.SkipReason + ")"
		case d.Error != "":
			line += " " + d.Error
		default:
			line += fmt.Sprintf(" %d results in %dms", d.Results, d.DurationMS)
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
