// Package connectors defines the contract shared by all source connectors and
// the infrastructure they are built on.
//
// Each external database (PubMed, arXiv, OpenAlex, Semantic Scholar, GitHub,
// Scopus) implements the Connector interface in its own subpackage, allowing
// the pipeline to fan a query out across sources concurrently with a unified
// API. Connectors are stateless between calls: the only side effect of Search
// is the outbound request.
//
// Example usage:
//
//	conn := arxiv.New(arxiv.Config{Enabled: true})
//	results, err := conn.Search(ctx, domain.Query{Text: "climate anxiety adolescents"})
package connectors

import (
	"context"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// Connector is the contract every source connector implements.
type Connector interface {
	// Search queries the external database for works matching the query and
	// returns them as raw per-source records. Failures are reported as
	// *domain.ConnectorError and never affect sibling connectors.
	//
	// Implementations must:
	//   - Respect context cancellation and deadlines
	//   - Apply their own rate limiting
	//   - Retain no state between calls
	Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error)

	// Source returns the type identifier for this connector. Used for
	// attribution, credential lookup, and routing.
	Source() domain.SourceType

	// Name returns a human-readable name for logging and display.
	Name() string

	// Tier returns the credential tier governing how the coordinator
	// invokes this connector.
	Tier() domain.Tier

	// Enabled reports whether the connector is available for searches.
	// A connector may be disabled through configuration.
	Enabled() bool
}
