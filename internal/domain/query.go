package domain

import "strings"

// Query is one search request issued to the pipeline. It is a value type and
// immutable once issued; connectors receive it by value and never modify it.
type Query struct {
	// Text is the opaque search string.
	Text string

	// YearFrom and YearTo bound the publication year range. Zero means
	// unbounded on that side.
	YearFrom int
	YearTo   int

	// Venue restricts results to a journal or conference name where the
	// source supports venue filtering. Connectors without venue search
	// ignore it.
	Venue string

	// MaxResults caps how many records each connector may return and how
	// many ranked works the run yields. Zero means connector defaults and
	// an uncapped result list.
	MaxResults int
}

// IsZero reports whether the query carries no search text.
func (q Query) IsZero() bool {
	return strings.TrimSpace(q.Text) == ""
}

// HasYearRange reports whether at least one year bound is set.
func (q Query) HasYearRange() bool {
	return q.YearFrom > 0 || q.YearTo > 0
}

// InYearRange reports whether year falls inside the query's bounds. Works
// with unknown year (0) are never excluded by the range filter; sources that
// cannot filter server-side rely on this for client-side filtering.
func (q Query) InYearRange(year int) bool {
	if year == 0 {
		return true
	}
	if q.YearFrom > 0 && year < q.YearFrom {
		return false
	}
	if q.YearTo > 0 && year > q.YearTo {
		return false
	}
	return true
}
