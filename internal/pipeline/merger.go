package pipeline

import (
	"sort"

	"github.com/litmesh/literature-aggregation-service/internal/dedup"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// authorOverlapThreshold is the minimum fuzzy overlap at which a longer
// author list from a lower-priority source replaces a shorter one.
const authorOverlapThreshold = 0.5

// MergeStats summarizes one merge pass.
type MergeStats struct {
	// RawCount is the number of raw results entering the merge.
	RawCount int

	// WorkCount is the number of canonical works after deduplication.
	WorkCount int

	// DuplicateCount is the number of raw results folded into an existing
	// canonical work.
	DuplicateCount int
}

// Merge folds raw per-source results into deduplicated canonical works.
//
// Two results belong to the same work when they share any identifier key,
// or, lacking that, when their normalized titles and publication years
// match. Identity is transitive: a result sharing a DOI with one record and
// a title with another unites all three. The returned works preserve
// first-seen order of the input, so a deterministic input order yields a
// deterministic output order.
func Merge(raw []domain.RawResult) (domain.ResultList, MergeStats) {
	stats := MergeStats{RawCount: len(raw)}
	if len(raw) == 0 {
		return domain.ResultList{}, stats
	}

	// Union-find over result indices. Roots are always the earliest index
	// in their group, keeping grouping independent of key iteration order.
	parent := make([]int, len(raw))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra > rb {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	index := make(map[string]int)
	for i := range raw {
		for _, key := range identityKeys(&raw[i]) {
			if j, ok := index[key]; ok {
				union(i, j)
			} else {
				index[key] = i
			}
		}
	}

	// Gather group members in ascending index order.
	groups := make(map[int][]int)
	var roots []int
	for i := range raw {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}

	works := make(domain.ResultList, 0, len(roots))
	for _, root := range roots {
		members := make([]domain.RawResult, 0, len(groups[root]))
		for _, i := range groups[root] {
			members = append(members, raw[i])
		}
		works = append(works, buildWork(members))
	}

	stats.WorkCount = len(works)
	stats.DuplicateCount = stats.RawCount - stats.WorkCount
	return works, stats
}

// identityKeys returns every key under which a result claims identity: all
// populated identifier keys plus the title/year fallback key.
func identityKeys(r *domain.RawResult) []string {
	keys := r.Identifiers.Keys()
	if k := dedup.TitleYearKey(r.Title, r.Year); k != "" {
		keys = append(keys, "title:"+k)
	}
	return keys
}

// buildWork collapses one identity group into a canonical work. The
// contributor from the highest-priority source supplies the canonical ID
// and wins metadata conflicts; lower-priority contributors fill fields the
// winner left empty. Citation counts take the maximum across contributors.
func buildWork(group []domain.RawResult) domain.CanonicalWork {
	contributors := make([]domain.RawResult, len(group))
	copy(contributors, group)
	sort.SliceStable(contributors, func(i, j int) bool {
		return domain.MetadataPriority(contributors[i].Source) < domain.MetadataPriority(contributors[j].Source)
	})

	primary := contributors[0]
	work := domain.CanonicalWork{
		CanonicalID:   primary.CanonicalID(),
		Title:         primary.Title,
		Authors:       primary.Authors,
		Abstract:      primary.Abstract,
		Year:          primary.Year,
		Venue:         primary.Venue,
		URL:           primary.URL,
		CitationCount: primary.CitationCount,
	}

	seen := make(map[domain.SourceType]bool, len(contributors))
	for _, c := range contributors {
		if !seen[c.Source] {
			seen[c.Source] = true
			work.Sources = append(work.Sources, c.Source)
		}
	}

	for _, c := range contributors[1:] {
		if work.CanonicalID == "" {
			work.CanonicalID = c.CanonicalID()
		}
		if work.Title == "" {
			work.Title = c.Title
		}
		if work.Abstract == "" {
			work.Abstract = c.Abstract
		}
		if work.Year == 0 {
			work.Year = c.Year
		}
		if work.Venue == "" {
			work.Venue = c.Venue
		}
		if work.URL == "" {
			work.URL = c.URL
		}
		if c.CitationCount > work.CitationCount {
			work.CitationCount = c.CitationCount
		}
		work.Authors = betterAuthors(work.Authors, c.Authors)
	}

	return work
}

// betterAuthors keeps the current author list unless the candidate is a
// longer list describing the same people, which usually means the current
// source truncated the list.
func betterAuthors(current, candidate []domain.Author) []domain.Author {
	if len(current) == 0 {
		return candidate
	}
	if len(candidate) <= len(current) {
		return current
	}
	if dedup.AuthorOverlap(current, candidate) >= authorOverlapThreshold {
		return candidate
	}
	return current
}
