package dedup

import (
	"strings"
	"unicode"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// NormalizeName canonicalizes an author name for comparison. The name is
// lowercased, "Last, First" ordering is flipped to "First Last", everything
// except letters and spaces is dropped, and runs of whitespace collapse to
// a single space.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	// Flip "last, first" to "first last".
	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// AuthorOverlap computes a fuzzy overlap score between two author lists,
// 0.0 when either list is empty or nothing matches and 1.0 for a perfect
// match. Greedy best-match pairing assigns each name in the smaller list
// to the most similar unclaimed name in the larger list, and the summed
// pair similarity is divided by the union count, Jaccard style. The score
// is symmetric.
func AuthorOverlap(a, b []domain.Author) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small := normalizedNames(a)
	large := normalizedNames(b)
	if len(small) > len(large) {
		small, large = large, small
	}

	claimed := make([]bool, len(large))
	total := 0.0
	matched := 0

	for _, name := range small {
		best := 0.0
		bestIdx := -1
		for j, cand := range large {
			if claimed[j] {
				continue
			}
			if s := nameSimilarity(name, cand); s > best {
				best = s
				bestIdx = j
			}
		}
		if bestIdx >= 0 {
			claimed[bestIdx] = true
			total += best
			matched++
		}
	}

	union := len(small) + len(large) - matched
	if union == 0 {
		return 0
	}
	return total / float64(union)
}

// nameSimilarity scores two normalized names between 0.0 and 1.0. The last
// name (final token) must match for any score at all. Given matching last
// names: identical first names score 1.0, a matching single-letter initial
// 0.9, a missing first name on either side 0.7, and conflicting first
// names 0.3.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	partsA := strings.Fields(a)
	partsB := strings.Fields(b)

	if partsA[len(partsA)-1] != partsB[len(partsB)-1] {
		return 0
	}

	firstA := partsA[:len(partsA)-1]
	firstB := partsB[:len(partsB)-1]

	switch {
	case len(firstA) == 0 || len(firstB) == 0:
		return 0.7
	case strings.Join(firstA, " ") == strings.Join(firstB, " "):
		return 1.0
	case isInitialMatch(firstA[0], firstB[0]):
		return 0.9
	}
	return 0.3
}

// isInitialMatch reports whether one token is a single-letter initial of
// the other.
func isInitialMatch(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) == 1 && len(b) > 1 && a[0] == b[0]
}

func normalizedNames(authors []domain.Author) []string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = NormalizeName(a.Name)
	}
	return names
}
