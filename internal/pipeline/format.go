package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// FormatTable writes the ranked works as a human-readable table.
func FormatTable(result *Result, w io.Writer) {
	if len(result.Works) == 0 {
		fmt.Fprintln(w, "No works found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Year", "Score", "Sources")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, work := range result.Works {
		year := ""
		if work.Year > 0 {
			year = fmt.Sprintf("%d", work.Year)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6.2f  %s\n",
			i+1, truncate(work.Title, 60), formatAuthors(work.Authors), year,
			work.Score, joinSources(work.Sources))
	}

	fmt.Fprintf(w, "\n%d works", len(result.Works))
	if result.DuplicateCount > 0 {
		fmt.Fprintf(w, " (%d duplicates collapsed)", result.DuplicateCount)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the full result envelope as indented JSON.
func FormatJSON(result *Result, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func joinSources(sources []domain.SourceType) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func formatAuthors(authors []domain.Author) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0].Name, 20)
	default:
		return truncate(authors[0].Name, 14) + " et al."
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
