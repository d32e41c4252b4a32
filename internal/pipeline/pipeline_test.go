package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

func newTestPipeline(t *testing.T, registry *connectors.Registry, creds domain.CredentialSet) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Registry:         registry,
		Credentials:      creds,
		ConnectorTimeout: 2 * time.Second,
		Logger:           zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

// recordingSink captures results handed to the event sink.
type recordingSink struct {
	mu      sync.Mutex
	results []*Result
}

func (s *recordingSink) RunCompleted(ctx context.Context, result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func TestNew(t *testing.T) {
	t.Run("requires a registry", func(t *testing.T) {
		_, err := New(Config{ConnectorTimeout: time.Second})

		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("requires a positive connector timeout", func(t *testing.T) {
		_, err := New(Config{Registry: connectors.NewRegistry()})

		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
	})

	t.Run("defaults the scorer", func(t *testing.T) {
		p, err := New(Config{
			Registry:         connectors.NewRegistry(),
			ConnectorTimeout: time.Second,
			Logger:           zerolog.Nop(),
		})

		require.NoError(t, err)
		assert.Equal(t, SourceCountScorerName, p.scorer.Name())
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Run("merges results from multiple connectors", func(t *testing.T) {
		arxiv := newMockConnector(domain.SourceTypeArXiv)
		arxiv.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{
				{
					Source:      domain.SourceTypeArXiv,
					Identifiers: domain.WorkIdentifiers{ArXivID: "2106.03847"},
					Title:       "Highly Accurate Protein Structure Prediction",
					Year:        2021,
				},
			}, nil
		}
		openalex := newMockConnector(domain.SourceTypeOpenAlex)
		openalex.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{
				{
					Source:      domain.SourceTypeOpenAlex,
					Identifiers: domain.WorkIdentifiers{OpenAlexID: "W3177828909"},
					Title:       "Highly accurate protein structure prediction",
					Year:        2021,
				},
				{
					Source:      domain.SourceTypeOpenAlex,
					Identifiers: domain.WorkIdentifiers{OpenAlexID: "W2741809807"},
					Title:       "A Different Work Entirely",
					Year:        2018,
				},
			}, nil
		}

		p := newTestPipeline(t, newTestRegistry(arxiv, openalex), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "protein structure"})

		require.NoError(t, err)
		assert.Equal(t, StatusOK, result.Status)
		assert.Equal(t, "protein structure", result.Query)
		assert.NotEmpty(t, result.RunID)
		_, parseErr := uuid.Parse(result.RunID)
		assert.NoError(t, parseErr)

		assert.Equal(t, 3, result.RawCount)
		assert.Equal(t, 2, result.WorkCount)
		assert.Equal(t, 1, result.DuplicateCount)
		require.Len(t, result.Works, 2)

		// The doubly-sourced work outranks the single-source one.
		assert.Len(t, result.Works[0].Sources, 2)

		require.Len(t, result.Diagnostics, 2)
		for _, diag := range result.Diagnostics {
			assert.Equal(t, DiagnosticOK, diag.Status)
			assert.Equal(t, ModeOpen, diag.Mode)
		}
	})

	t.Run("caps ranked works at the query's max results", func(t *testing.T) {
		arxiv := newMockConnector(domain.SourceTypeArXiv)
		arxiv.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{
				{Source: domain.SourceTypeArXiv, Identifiers: domain.WorkIdentifiers{ArXivID: "2301.11111"}, Title: "First Work", Year: 2023},
				{Source: domain.SourceTypeArXiv, Identifiers: domain.WorkIdentifiers{ArXivID: "2302.22222"}, Title: "Second Work", Year: 2023},
				{Source: domain.SourceTypeArXiv, Identifiers: domain.WorkIdentifiers{ArXivID: "2303.33333"}, Title: "Third Work", Year: 2023},
			}, nil
		}

		p := newTestPipeline(t, newTestRegistry(arxiv), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "anything", MaxResults: 2})

		require.NoError(t, err)
		// WorkCount still reports everything that was merged.
		assert.Equal(t, 3, result.WorkCount)
		assert.Len(t, result.Works, 2)
	})

	t.Run("partial status when a connector fails", func(t *testing.T) {
		healthy := newMockConnector(domain.SourceTypeArXiv)
		healthy.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{rawResult(domain.SourceTypeArXiv, "Survivor", 2020)}, nil
		}
		broken := newMockConnector(domain.SourceTypeOpenAlex)
		broken.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return nil, domain.NewConnectorError(domain.SourceTypeOpenAlex, domain.KindRateLimited, 429, "slow down", nil)
		}

		p := newTestPipeline(t, newTestRegistry(healthy, broken), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		require.NoError(t, err)
		assert.Equal(t, StatusPartial, result.Status)
		require.Len(t, result.Works, 1)
		assert.Equal(t, "Survivor", result.Works[0].Title)

		require.Len(t, result.Diagnostics, 2)
		assert.Equal(t, DiagnosticFailed, result.Diagnostics[1].Status)
		assert.Equal(t, string(domain.KindRateLimited), result.Diagnostics[1].ErrorKind)
		assert.Contains(t, result.Diagnostics[1].Error, "slow down")
	})

	t.Run("all connectors failing returns an aggregate error", func(t *testing.T) {
		brokenA := newMockConnector(domain.SourceTypeArXiv)
		brokenA.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return nil, domain.NewConnectorError(domain.SourceTypeArXiv, domain.KindUnreachable, 503, "down", nil)
		}
		brokenB := newMockConnector(domain.SourceTypeOpenAlex)
		brokenB.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return nil, domain.NewConnectorError(domain.SourceTypeOpenAlex, domain.KindRateLimited, 429, "limited", nil)
		}

		p := newTestPipeline(t, newTestRegistry(brokenA, brokenB), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		assert.Nil(t, result)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAllConnectorsFailed)
		assert.Contains(t, err.Error(), "arxiv")
		assert.Contains(t, err.Error(), "openalex")
	})

	t.Run("missing credential for a key-required connector is not an error", func(t *testing.T) {
		keyRequired := newMockConnector(domain.SourceTypeScopus)
		keyRequired.tier = domain.TierKeyRequired

		p := newTestPipeline(t, newTestRegistry(keyRequired), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		require.NoError(t, err)
		assert.Equal(t, StatusOK, result.Status)
		assert.Empty(t, result.Works)

		require.Len(t, result.Diagnostics, 1)
		assert.Equal(t, DiagnosticSkipped, result.Diagnostics[0].Status)
		assert.Equal(t, SkipReasonMissingCredential, result.Diagnostics[0].SkipReason)
	})

	t.Run("diagnostics record the execution mode per connector", func(t *testing.T) {
		keyed := newMockConnector(domain.SourceTypeSemanticScholar)
		keyed.tier = domain.TierKeyOptional
		keyless := newMockConnector(domain.SourceTypePubMed)
		keyless.tier = domain.TierKeyOptional

		creds := domain.NewCredentialSet(map[domain.SourceType]string{
			domain.SourceTypeSemanticScholar: "s2-key",
		})
		p := newTestPipeline(t, newTestRegistry(keyed, keyless), creds)

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		require.NoError(t, err)
		require.Len(t, result.Diagnostics, 2)
		assert.Equal(t, ModeAuthenticated, result.Diagnostics[0].Mode)
		assert.Equal(t, ModeThrottled, result.Diagnostics[1].Mode)
	})

	t.Run("cancellation returns no partial results", func(t *testing.T) {
		quick := newMockConnector(domain.SourceTypeArXiv)
		quick.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{rawResult(domain.SourceTypeArXiv, "Already Fetched", 2020)}, nil
		}
		stuck := newMockConnector(domain.SourceTypeOpenAlex)
		stuck.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		p := newTestPipeline(t, newTestRegistry(quick, stuck), domain.NewCredentialSet(nil))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		result, err := p.Run(ctx, domain.Query{Text: "anything"})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("a timed out connector still yields partial results", func(t *testing.T) {
		fast := newMockConnector(domain.SourceTypeArXiv)
		fast.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{rawResult(domain.SourceTypeArXiv, "Fast Enough", 2020)}, nil
		}
		slow := newMockConnector(domain.SourceTypeOpenAlex)
		slow.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		p, err := New(Config{
			Registry:         newTestRegistry(fast, slow),
			Credentials:      domain.NewCredentialSet(nil),
			ConnectorTimeout: 50 * time.Millisecond,
			Logger:           zerolog.Nop(),
		})
		require.NoError(t, err)

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		require.NoError(t, err)
		assert.Equal(t, StatusPartial, result.Status)
		require.Len(t, result.Works, 1)
		assert.Equal(t, "Fast Enough", result.Works[0].Title)
		assert.Equal(t, string(domain.KindTimeout), result.Diagnostics[1].ErrorKind)
	})

	t.Run("identical inputs produce identical ordering", func(t *testing.T) {
		buildRegistry := func(delayA, delayB time.Duration) *connectors.Registry {
			a := newMockConnector(domain.SourceTypeArXiv)
			a.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
				time.Sleep(delayA)
				return []domain.RawResult{
					{Source: domain.SourceTypeArXiv, Identifiers: domain.WorkIdentifiers{ArXivID: "2106.03847"}, Title: "Alpha", Year: 2015},
					{Source: domain.SourceTypeArXiv, Identifiers: domain.WorkIdentifiers{ArXivID: "1807.03039"}, Title: "Beta", Year: 2015},
				}, nil
			}
			b := newMockConnector(domain.SourceTypeOpenAlex)
			b.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
				time.Sleep(delayB)
				return []domain.RawResult{
					{Source: domain.SourceTypeOpenAlex, Identifiers: domain.WorkIdentifiers{OpenAlexID: "W1234"}, Title: "Gamma", Year: 2015},
				}, nil
			}
			return newTestRegistry(a, b)
		}

		runOrder := func(registry *connectors.Registry) []string {
			p := newTestPipeline(t, registry, domain.NewCredentialSet(nil))
			result, err := p.Run(context.Background(), domain.Query{Text: "anything"})
			require.NoError(t, err)
			ids := make([]string, len(result.Works))
			for i, w := range result.Works {
				ids[i] = w.CanonicalID
			}
			return ids
		}

		first := runOrder(buildRegistry(30*time.Millisecond, 0))
		second := runOrder(buildRegistry(0, 30*time.Millisecond))

		assert.Equal(t, first, second, "arrival order must not leak into the ranking")
	})

	t.Run("empty registry returns ErrNoConnectors", func(t *testing.T) {
		p := newTestPipeline(t, connectors.NewRegistry(), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNoConnectors)
	})

	t.Run("blank query is rejected before execution", func(t *testing.T) {
		conn := newMockConnector(domain.SourceTypeArXiv)
		invoked := false
		conn.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			invoked = true
			return nil, nil
		}
		p := newTestPipeline(t, newTestRegistry(conn), domain.NewCredentialSet(nil))

		result, err := p.Run(context.Background(), domain.Query{Text: "   "})

		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, domain.IsConfigurationError(err))
		assert.False(t, invoked)
	})

	t.Run("event sink receives the completed run", func(t *testing.T) {
		conn := newMockConnector(domain.SourceTypeArXiv)
		conn.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{rawResult(domain.SourceTypeArXiv, "Observed", 2020)}, nil
		}

		sink := &recordingSink{}
		p, err := New(Config{
			Registry:         newTestRegistry(conn),
			Credentials:      domain.NewCredentialSet(nil),
			ConnectorTimeout: time.Second,
			Logger:           zerolog.Nop(),
			Events:           sink,
		})
		require.NoError(t, err)

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		require.NoError(t, err)
		require.Len(t, sink.results, 1)
		assert.Equal(t, result.RunID, sink.results[0].RunID)
	})

	t.Run("scorer selection shows up in the envelope", func(t *testing.T) {
		conn := newMockConnector(domain.SourceTypeArXiv)
		conn.searchFunc = func(ctx context.Context, q domain.Query) ([]domain.RawResult, error) {
			return []domain.RawResult{rawResult(domain.SourceTypeArXiv, "Scored", 2020)}, nil
		}

		p, err := New(Config{
			Registry:         newTestRegistry(conn),
			Credentials:      domain.NewCredentialSet(nil),
			ConnectorTimeout: time.Second,
			Scorer:           CitationScorer{},
			Logger:           zerolog.Nop(),
		})
		require.NoError(t, err)

		result, err := p.Run(context.Background(), domain.Query{Text: "anything"})

		require.NoError(t, err)
		assert.Equal(t, CitationScorerName, result.Scorer)
	})
}
