// Package dedup provides the normalization primitives used to decide when
// results from different sources describe the same published work: title
// and author-name canonicalization, and a fuzzy author-list overlap score.
package dedup

import (
	"strconv"
	"strings"
	"unicode"
)

// NormalizeTitle canonicalizes a work title for identity comparison. The
// title is lowercased and reduced to letters, digits, and single spaces so
// that punctuation and formatting differences between sources do not
// defeat matching.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleYearKey builds the fallback identity key for results that share no
// recognized identifier: two results map to the same key when their
// normalized titles match and they carry the same publication year.
// Returns "" when the title normalizes to nothing, since a bare year is
// not identifying.
func TitleYearKey(title string, year int) string {
	t := NormalizeTitle(title)
	if t == "" {
		return ""
	}
	return t + "|" + strconv.Itoa(year)
}
