package domain

import "sort"

// CredentialSet maps source types to authentication tokens. It is built once
// at startup, is read-only for the life of the process, and may be shared
// across concurrent connector invocations without locking.
type CredentialSet struct {
	tokens map[SourceType]string
}

// NewCredentialSet builds a credential set from the given mapping. Entries
// with empty tokens are dropped; absence of a token is the signal the
// coordinator acts on.
func NewCredentialSet(tokens map[SourceType]string) CredentialSet {
	set := CredentialSet{tokens: make(map[SourceType]string, len(tokens))}
	for source, token := range tokens {
		if token != "" {
			set.tokens[source] = token
		}
	}
	return set
}

// Token returns the token for source and whether one is present.
func (c CredentialSet) Token(source SourceType) (string, bool) {
	token, ok := c.tokens[source]
	return token, ok
}

// Has reports whether a token is present for source.
func (c CredentialSet) Has(source SourceType) bool {
	_, ok := c.tokens[source]
	return ok
}

// Sources returns the sources holding tokens, sorted for stable output.
// Tokens themselves are never exposed through this method.
func (c CredentialSet) Sources() []SourceType {
	sources := make([]SourceType, 0, len(c.tokens))
	for source := range c.tokens {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}
