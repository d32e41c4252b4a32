package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// Scorer assigns a ranking score to a canonical work. Higher scores rank
// earlier. Implementations must be pure functions of the work so that
// identical inputs always produce identical orderings.
type Scorer interface {
	Score(work domain.CanonicalWork) float64
	Name() string
}

// Registered scorer names, selectable through configuration.
const (
	SourceCountScorerName = "source_count"
	CitationScorerName    = "citations"
)

// Recency boost parameters shared by the shipped scorers: works published
// within the window gain up to recencyBoostMax, scaling linearly down to
// zero at the window edge.
const (
	recencyWindowYears = 5
	recencyBoostMax    = 0.2
)

// ScorerByName returns the ranking strategy registered under name. The
// empty name selects the default SourceCountScorer. Unknown names are a
// configuration error.
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case "", SourceCountScorerName:
		return SourceCountScorer{}, nil
	case CitationScorerName:
		return CitationScorer{}, nil
	}
	return nil, domain.NewConfigurationError("pipeline.ranker", fmt.Sprintf("unknown scorer %q", name))
}

// SourceCountScorer ranks works by how many independent sources reported
// them, with a recency boost breaking ties in favor of newer works. It is
// the default strategy: a work confirmed by three databases outranks one
// seen by a single source.
type SourceCountScorer struct{}

// Name implements Scorer.
func (SourceCountScorer) Name() string { return SourceCountScorerName }

// Score implements Scorer.
func (SourceCountScorer) Score(work domain.CanonicalWork) float64 {
	return float64(len(work.Sources)) + recencyBoost(work.Year)
}

// CitationScorer ranks works by log-scaled citation count with the same
// recency boost. The log keeps heavily cited classics from drowning out
// everything recent.
type CitationScorer struct{}

// Name implements Scorer.
func (CitationScorer) Name() string { return CitationScorerName }

// Score implements Scorer.
func (CitationScorer) Score(work domain.CanonicalWork) float64 {
	return math.Log1p(float64(work.CitationCount)) + recencyBoost(work.Year)
}

// recencyBoost returns the additive boost for a publication year. Unknown
// years (zero) get no boost.
func recencyBoost(year int) float64 {
	if year <= 0 {
		return 0
	}
	age := time.Now().Year() - year
	if age < 0 {
		age = 0
	}
	if age >= recencyWindowYears {
		return 0
	}
	return recencyBoostMax * (1 - float64(age)/float64(recencyWindowYears))
}

// Rank scores every work with the given scorer and sorts the list into its
// final order: score descending, then year descending, then canonical ID
// ascending. The sort is stable, so works tied on all three keys keep their
// merge order.
func Rank(works domain.ResultList, scorer Scorer) domain.ResultList {
	for i := range works {
		works[i].Score = scorer.Score(works[i])
	}

	sort.SliceStable(works, func(i, j int) bool {
		if works[i].Score != works[j].Score {
			return works[i].Score > works[j].Score
		}
		if works[i].Year != works[j].Year {
			return works[i].Year > works[j].Year
		}
		return works[i].CanonicalID < works[j].CanonicalID
	})

	return works
}
