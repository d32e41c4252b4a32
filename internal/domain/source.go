package domain

// SourceType identifies the external database a connector talks to.
type SourceType string

// Known source types, one per connector.
const (
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeGitHub          SourceType = "github"
	SourceTypeScopus          SourceType = "scopus"
)

// AllSourceTypes returns every known source type in default invocation order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypePubMed,
		SourceTypeArXiv,
		SourceTypeOpenAlex,
		SourceTypeSemanticScholar,
		SourceTypeGitHub,
		SourceTypeScopus,
	}
}

// IsValidSourceType reports whether s names a known source type.
func IsValidSourceType(s SourceType) bool {
	switch s {
	case SourceTypePubMed, SourceTypeArXiv, SourceTypeOpenAlex,
		SourceTypeSemanticScholar, SourceTypeGitHub, SourceTypeScopus:
		return true
	}
	return false
}

// Tier classifies how a connector relates to credentials. It governs whether
// and in which mode the coordinator invokes the connector.
type Tier string

const (
	// TierFree marks connectors that need no credential and are always invoked.
	TierFree Tier = "free"

	// TierKeyOptional marks connectors that call an authenticated,
	// higher-quota endpoint when a token is present and fall back to the
	// same provider's throttled public endpoint when it is not.
	TierKeyOptional Tier = "key_optional"

	// TierKeyRequired marks connectors that cannot operate without a token.
	// Without one they are skipped; the skip is recorded, never surfaced as
	// an error.
	TierKeyRequired Tier = "key_required"
)

// metadataPriority orders sources for conflict resolution when merging
// metadata fields of the same work. Lower index wins.
var metadataPriority = map[SourceType]int{
	SourceTypePubMed:          0,
	SourceTypeSemanticScholar: 1,
	SourceTypeOpenAlex:        2,
	SourceTypeArXiv:           3,
	SourceTypeScopus:          4,
	SourceTypeGitHub:          5,
}

// MetadataPriority returns the merge-conflict rank of a source. Unknown
// sources rank last.
func MetadataPriority(s SourceType) int {
	if p, ok := metadataPriority[s]; ok {
		return p
	}
	return len(metadataPriority)
}
