package domain

import "strings"

// WorkIdentifiers holds every external identifier a source may report for a
// single work. Any subset may be populated.
type WorkIdentifiers struct {
	DOI               string
	ArXivID           string
	PubMedID          string
	SemanticScholarID string
	OpenAlexID        string
	ScopusID          string
	Repository        string // owner/name for code records
}

// GenerateCanonicalID derives a canonical identifier from the available
// identifiers. Priority order: DOI > arXiv > PubMed > Semantic Scholar >
// OpenAlex > Scopus > repository. Returns empty string when no identifier is
// available.
func GenerateCanonicalID(ids WorkIdentifiers) string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// DOIs are case-insensitive; normalize to lowercase.
		return "doi:" + strings.ToLower(doi)
	}

	if arxiv := strings.TrimSpace(ids.ArXivID); arxiv != "" {
		return "arxiv:" + arxiv
	}

	if pmid := strings.TrimSpace(ids.PubMedID); pmid != "" {
		return "pmid:" + pmid
	}

	if s2 := strings.TrimSpace(ids.SemanticScholarID); s2 != "" {
		return "s2:" + s2
	}

	if openalex := strings.TrimSpace(ids.OpenAlexID); openalex != "" {
		return "openalex:" + openalex
	}

	if scopus := strings.TrimSpace(ids.ScopusID); scopus != "" {
		return "scopus:" + scopus
	}

	if repo := strings.TrimSpace(ids.Repository); repo != "" {
		return "github:" + strings.ToLower(repo)
	}

	return ""
}

// Keys returns every populated identifier in canonical form. Two results
// sharing any key refer to the same work.
func (ids WorkIdentifiers) Keys() []string {
	var keys []string
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		keys = append(keys, "doi:"+strings.ToLower(doi))
	}
	if arxiv := strings.TrimSpace(ids.ArXivID); arxiv != "" {
		keys = append(keys, "arxiv:"+arxiv)
	}
	if pmid := strings.TrimSpace(ids.PubMedID); pmid != "" {
		keys = append(keys, "pmid:"+pmid)
	}
	if s2 := strings.TrimSpace(ids.SemanticScholarID); s2 != "" {
		keys = append(keys, "s2:"+s2)
	}
	if openalex := strings.TrimSpace(ids.OpenAlexID); openalex != "" {
		keys = append(keys, "openalex:"+openalex)
	}
	if scopus := strings.TrimSpace(ids.ScopusID); scopus != "" {
		keys = append(keys, "scopus:"+scopus)
	}
	if repo := strings.TrimSpace(ids.Repository); repo != "" {
		keys = append(keys, "github:"+strings.ToLower(repo))
	}
	return keys
}

// Author is one work author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// String returns the author formatted for display.
func (a Author) String() string {
	if a.Affiliation == "" {
		return a.Name
	}
	return a.Name + " (" + a.Affiliation + ")"
}

// RawResult is one record as returned by a single connector. It is owned by
// the producing connector until handed to the merger and carries the source
// tag identifying where it came from.
type RawResult struct {
	Source        SourceType      `json:"source"`
	ExternalID    string          `json:"external_id"`
	Identifiers   WorkIdentifiers `json:"-"`
	Title         string          `json:"title"`
	Authors       []Author        `json:"authors,omitempty"`
	Abstract      string          `json:"abstract,omitempty"`
	Year          int             `json:"year,omitempty"`
	Venue         string          `json:"venue,omitempty"`
	URL           string          `json:"url,omitempty"`
	CitationCount int             `json:"citation_count,omitempty"`
}

// CanonicalID returns the canonical identifier for this result, or empty
// string when the source reported no usable identifier.
func (r *RawResult) CanonicalID() string {
	return GenerateCanonicalID(r.Identifiers)
}

// CanonicalWork is the deduplicated representation of one work across
// sources. It is created only by the merger and never mutated afterwards
// within a run.
type CanonicalWork struct {
	// CanonicalID is the identifier contributed by the highest-priority
	// source, in prefixed form (doi:, arxiv:, pmid:, ...).
	CanonicalID string `json:"canonical_id"`

	// Sources lists every contributing source tag, primary first.
	Sources []SourceType `json:"sources"`

	Title         string   `json:"title"`
	Authors       []Author `json:"authors,omitempty"`
	Abstract      string   `json:"abstract,omitempty"`
	Year          int      `json:"year,omitempty"`
	Venue         string   `json:"venue,omitempty"`
	URL           string   `json:"url,omitempty"`
	CitationCount int      `json:"citation_count,omitempty"`

	// Score is assigned by the ranking strategy; higher ranks earlier.
	Score float64 `json:"score"`
}

// HasSource reports whether s contributed to this work.
func (w *CanonicalWork) HasSource(s SourceType) bool {
	for _, tag := range w.Sources {
		if tag == s {
			return true
		}
	}
	return false
}

// ResultList is the pipeline's only output: CanonicalWorks ordered by the
// ranking policy. No two entries refer to the same underlying work, and the
// order is deterministic for identical inputs and policy.
type ResultList []CanonicalWork
