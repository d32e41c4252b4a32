package connectors

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// mockConnector is a configurable Connector implementation for tests.
type mockConnector struct {
	source     domain.SourceType
	name       string
	tier       domain.Tier
	enabled    bool
	searchFunc func(ctx context.Context, query domain.Query) ([]domain.RawResult, error)
}

func (m *mockConnector) Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query)
	}
	return nil, nil
}

func (m *mockConnector) Source() domain.SourceType { return m.source }

func (m *mockConnector) Name() string {
	if m.name != "" {
		return m.name
	}
	return string(m.source)
}

func (m *mockConnector) Tier() domain.Tier {
	if m.tier != "" {
		return m.tier
	}
	return domain.TierFree
}

func (m *mockConnector) Enabled() bool { return m.enabled }

func newMockConnector(source domain.SourceType) *mockConnector {
	return &mockConnector{source: source, enabled: true}
}

func TestNewRegistry(t *testing.T) {
	t.Run("creates empty registry", func(t *testing.T) {
		registry := NewRegistry()

		require.NotNil(t, registry)
		assert.Equal(t, 0, registry.Len())
		assert.Empty(t, registry.Sources())
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("registers connectors in call order", func(t *testing.T) {
		registry := NewRegistry()

		registry.Register(newMockConnector(domain.SourceTypeArXiv))
		registry.Register(newMockConnector(domain.SourceTypePubMed))
		registry.Register(newMockConnector(domain.SourceTypeOpenAlex))

		assert.Equal(t, 3, registry.Len())
		assert.Equal(t, []domain.SourceType{
			domain.SourceTypeArXiv,
			domain.SourceTypePubMed,
			domain.SourceTypeOpenAlex,
		}, registry.Sources())
	})

	t.Run("replacing a connector keeps its position", func(t *testing.T) {
		registry := NewRegistry()

		registry.Register(newMockConnector(domain.SourceTypeArXiv))
		registry.Register(newMockConnector(domain.SourceTypePubMed))
		registry.Register(newMockConnector(domain.SourceTypeOpenAlex))

		replacement := newMockConnector(domain.SourceTypePubMed)
		replacement.name = "pubmed-v2"
		registry.Register(replacement)

		assert.Equal(t, 3, registry.Len())
		assert.Equal(t, []domain.SourceType{
			domain.SourceTypeArXiv,
			domain.SourceTypePubMed,
			domain.SourceTypeOpenAlex,
		}, registry.Sources())

		got := registry.Get(domain.SourceTypePubMed)
		require.NotNil(t, got)
		assert.Equal(t, "pubmed-v2", got.Name())
	})
}

func TestRegistry_Remove(t *testing.T) {
	t.Run("removes a registered connector", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))
		registry.Register(newMockConnector(domain.SourceTypePubMed))

		removed := registry.Remove(domain.SourceTypeArXiv)

		assert.True(t, removed)
		assert.Equal(t, 1, registry.Len())
		assert.Equal(t, []domain.SourceType{domain.SourceTypePubMed}, registry.Sources())

		assert.Nil(t, registry.Get(domain.SourceTypeArXiv))
	})

	t.Run("returns false for unknown connector", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))

		removed := registry.Remove(domain.SourceTypeScopus)

		assert.False(t, removed)
		assert.Equal(t, 1, registry.Len())
	})
}

func TestRegistry_Reorder(t *testing.T) {
	t.Run("applies the requested order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))
		registry.Register(newMockConnector(domain.SourceTypePubMed))
		registry.Register(newMockConnector(domain.SourceTypeOpenAlex))

		err := registry.Reorder([]domain.SourceType{
			domain.SourceTypeOpenAlex,
			domain.SourceTypeArXiv,
			domain.SourceTypePubMed,
		})

		require.NoError(t, err)
		assert.Equal(t, []domain.SourceType{
			domain.SourceTypeOpenAlex,
			domain.SourceTypeArXiv,
			domain.SourceTypePubMed,
		}, registry.Sources())
	})

	t.Run("omitted connectors keep their relative order after the listed ones", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))
		registry.Register(newMockConnector(domain.SourceTypePubMed))
		registry.Register(newMockConnector(domain.SourceTypeOpenAlex))
		registry.Register(newMockConnector(domain.SourceTypeGitHub))

		err := registry.Reorder([]domain.SourceType{domain.SourceTypeGitHub})

		require.NoError(t, err)
		assert.Equal(t, []domain.SourceType{
			domain.SourceTypeGitHub,
			domain.SourceTypeArXiv,
			domain.SourceTypePubMed,
			domain.SourceTypeOpenAlex,
		}, registry.Sources())
	})

	t.Run("rejects unregistered sources", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))

		err := registry.Reorder([]domain.SourceType{domain.SourceTypeScopus})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})

	t.Run("rejects duplicate sources", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))
		registry.Register(newMockConnector(domain.SourceTypePubMed))

		err := registry.Reorder([]domain.SourceType{
			domain.SourceTypeArXiv,
			domain.SourceTypeArXiv,
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})
}

func TestRegistry_Ordered(t *testing.T) {
	t.Run("returns connectors in registry order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeScopus))
		registry.Register(newMockConnector(domain.SourceTypeArXiv))

		ordered := registry.Ordered()

		require.Len(t, ordered, 2)
		assert.Equal(t, domain.SourceTypeScopus, ordered[0].Source())
		assert.Equal(t, domain.SourceTypeArXiv, ordered[1].Source())
	})

	t.Run("returned slice is a snapshot", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceTypeArXiv))

		ordered := registry.Ordered()
		registry.Register(newMockConnector(domain.SourceTypePubMed))

		assert.Len(t, ordered, 1)
		assert.Equal(t, 2, registry.Len())
	})
}

func TestRegistry_Get(t *testing.T) {
	t.Run("returns registered connector", func(t *testing.T) {
		registry := NewRegistry()
		mock := newMockConnector(domain.SourceTypeSemanticScholar)
		registry.Register(mock)

		got := registry.Get(domain.SourceTypeSemanticScholar)

		require.NotNil(t, got)
		assert.Same(t, mock, got)
	})

	t.Run("returns nil for unknown source", func(t *testing.T) {
		registry := NewRegistry()

		assert.Nil(t, registry.Get(domain.SourceTypePubMed))
	})
}

func TestRegistry_Concurrency(t *testing.T) {
	t.Run("is safe for concurrent use", func(t *testing.T) {
		registry := NewRegistry()

		sources := domain.AllSourceTypes()
		var wg sync.WaitGroup

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				source := sources[n%len(sources)]
				registry.Register(newMockConnector(source))
			}(i)
		}

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = registry.Ordered()
				_ = registry.Sources()
				_ = registry.Len()
			}()
		}

		wg.Wait()

		assert.Equal(t, len(sources), registry.Len(),
			fmt.Sprintf("each of the %d sources should be registered once", len(sources)))
	})
}
