package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubConnector implements connectors.Connector for handler tests.
type stubConnector struct {
	source   domain.SourceType
	tier     domain.Tier
	disabled bool
	searchFn func(ctx context.Context, query domain.Query) ([]domain.RawResult, error)
}

func (c *stubConnector) Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	if c.searchFn != nil {
		return c.searchFn(ctx, query)
	}
	return nil, nil
}

func (c *stubConnector) Source() domain.SourceType { return c.source }
func (c *stubConnector) Name() string              { return string(c.source) }
func (c *stubConnector) Tier() domain.Tier         { return c.tier }
func (c *stubConnector) Enabled() bool             { return !c.disabled }

// fixedResults returns a search function that always yields the given
// results.
func fixedResults(results ...domain.RawResult) func(context.Context, domain.Query) ([]domain.RawResult, error) {
	return func(_ context.Context, _ domain.Query) ([]domain.RawResult, error) {
		return results, nil
	}
}

func arxivResult(id, title string, year int) domain.RawResult {
	return domain.RawResult{
		Source:      domain.SourceTypeArXiv,
		ExternalID:  id,
		Identifiers: domain.WorkIdentifiers{ArXivID: id},
		Title:       title,
		Year:        year,
	}
}

func openalexResult(id, doi, title string, year int) domain.RawResult {
	return domain.RawResult{
		Source:      domain.SourceTypeOpenAlex,
		ExternalID:  id,
		Identifiers: domain.WorkIdentifiers{OpenAlexID: id, DOI: doi},
		Title:       title,
		Year:        year,
	}
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestServer creates a Server over the given connectors with a fast
// per-connector timeout and no metrics or events.
func newTestServer(t *testing.T, creds domain.CredentialSet, conns ...connectors.Connector) *Server {
	t.Helper()

	registry := connectors.NewRegistry()
	for _, conn := range conns {
		registry.Register(conn)
	}

	s, err := NewServer(
		Config{DefaultMaxResults: 25},
		pipeline.Config{
			Registry:         registry,
			Credentials:      creds,
			ConnectorTimeout: 2 * time.Second,
			Logger:           zerolog.Nop(),
		},
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("failed to build test server: %v", err)
	}
	return s
}

// serveHTTP dispatches a request through the server's router and returns
// the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, r)
	return rr
}

func postSearch(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serveHTTP(s, req)
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Tests: POST /v1/search
// ---------------------------------------------------------------------------

func TestHandleSearch_Success(t *testing.T) {
	arxiv := &stubConnector{
		source: domain.SourceTypeArXiv,
		tier:   domain.TierFree,
		searchFn: fixedResults(
			arxivResult("2301.00001", "Attention Everywhere", 2023),
		),
	}
	openalex := &stubConnector{
		source: domain.SourceTypeOpenAlex,
		tier:   domain.TierFree,
		searchFn: fixedResults(
			openalexResult("W100", "10.1000/xyz", "Sparse Retrieval at Scale", 2022),
		),
	}

	s := newTestServer(t, domain.CredentialSet{}, arxiv, openalex)
	rr := postSearch(s, `{"query":"neural retrieval"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result pipeline.Result
	decodeJSON(t, rr, &result)

	if result.Status != pipeline.StatusOK {
		t.Errorf("expected status ok, got %s", result.Status)
	}
	if result.RunID == "" {
		t.Error("expected a run ID")
	}
	if result.WorkCount != 2 {
		t.Errorf("expected 2 works, got %d", result.WorkCount)
	}
	if len(result.Diagnostics) != 2 {
		t.Errorf("expected 2 diagnostics, got %d", len(result.Diagnostics))
	}
}

func TestHandleSearch_InvalidJSON(t *testing.T) {
	s := newTestServer(t, domain.CredentialSet{}, &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree})
	rr := postSearch(s, `{"query": `)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != "invalid_request" {
		t.Errorf("expected invalid_request, got %s", resp.Error)
	}
}

func TestHandleSearch_ValidationFailures(t *testing.T) {
	cases := []struct {
		name         string
		body         string
		detailSubstr string
	}{
		{"missing query", `{}`, "query is required"},
		{"whitespace query", `{"query":"   "}`, "query is required"},
		{"query too long", `{"query":"` + strings.Repeat("a", 1025) + `"}`, "query must be at most"},
		{"year before range", `{"query":"q","year_from":1500}`, "year_from"},
		{"inverted year range", `{"query":"q","year_from":2020,"year_to":2010}`, "year_to"},
		{"zero max results", `{"query":"q","max_results":0,"year_from":2020}`, ""},
		{"oversized max results", `{"query":"q","max_results":500}`, "max_results"},
		{"unknown source", `{"query":"q","sources":["wos"]}`, "must be one of"},
		{"repeated source", `{"query":"q","sources":["arxiv","arxiv"]}`, "must not repeat"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree}
			s := newTestServer(t, domain.CredentialSet{}, conn)
			rr := postSearch(s, tc.body)

			if tc.name == "zero max results" {
				// Zero means "use the server default", not a violation.
				if rr.Code != http.StatusOK {
					t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
				}
				return
			}

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}

			var resp errorResponse
			decodeJSON(t, rr, &resp)
			if resp.Error != "validation_failed" {
				t.Errorf("expected validation_failed, got %s", resp.Error)
			}
			if tc.detailSubstr != "" && !strings.Contains(resp.Detail, tc.detailSubstr) {
				t.Errorf("expected detail containing %q, got %q", tc.detailSubstr, resp.Detail)
			}
		})
	}
}

func TestHandleSearch_ForwardsQueryFields(t *testing.T) {
	var captured domain.Query
	conn := &stubConnector{
		source: domain.SourceTypeArXiv,
		tier:   domain.TierFree,
		searchFn: func(_ context.Context, query domain.Query) ([]domain.RawResult, error) {
			captured = query
			return []domain.RawResult{arxivResult("2106.04560", "Scaling Vision Transformers", 2021)}, nil
		},
	}

	s := newTestServer(t, domain.CredentialSet{}, conn)
	rr := postSearch(s, `{"query":"  vision transformers ","year_from":2020,"year_to":2022,"venue":"NeurIPS","max_results":10}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Text != "vision transformers" {
		t.Errorf("expected trimmed query text, got %q", captured.Text)
	}
	if captured.YearFrom != 2020 || captured.YearTo != 2022 {
		t.Errorf("expected year range 2020-2022, got %d-%d", captured.YearFrom, captured.YearTo)
	}
	if captured.Venue != "NeurIPS" {
		t.Errorf("expected venue NeurIPS, got %q", captured.Venue)
	}
	if captured.MaxResults != 10 {
		t.Errorf("expected max results 10, got %d", captured.MaxResults)
	}
}

func TestHandleSearch_AppliesDefaultMaxResults(t *testing.T) {
	var captured domain.Query
	conn := &stubConnector{
		source: domain.SourceTypeArXiv,
		tier:   domain.TierFree,
		searchFn: func(_ context.Context, query domain.Query) ([]domain.RawResult, error) {
			captured = query
			return nil, nil
		},
	}

	s := newTestServer(t, domain.CredentialSet{}, conn)
	rr := postSearch(s, `{"query":"graph neural networks"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.MaxResults != 25 {
		t.Errorf("expected server default max results 25, got %d", captured.MaxResults)
	}
}

func TestHandleSearch_SourceRestriction(t *testing.T) {
	arxivCalled := false
	openalexCalled := false

	arxiv := &stubConnector{
		source: domain.SourceTypeArXiv,
		tier:   domain.TierFree,
		searchFn: func(_ context.Context, _ domain.Query) ([]domain.RawResult, error) {
			arxivCalled = true
			return []domain.RawResult{arxivResult("2301.00002", "Retrieval Augmentation", 2023)}, nil
		},
	}
	openalex := &stubConnector{
		source: domain.SourceTypeOpenAlex,
		tier:   domain.TierFree,
		searchFn: func(_ context.Context, _ domain.Query) ([]domain.RawResult, error) {
			openalexCalled = true
			return nil, nil
		},
	}

	s := newTestServer(t, domain.CredentialSet{}, arxiv, openalex)
	rr := postSearch(s, `{"query":"retrieval","sources":["arxiv"]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !arxivCalled {
		t.Error("expected the requested connector to run")
	}
	if openalexCalled {
		t.Error("expected the excluded connector to stay idle")
	}

	var result pipeline.Result
	decodeJSON(t, rr, &result)
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(result.Diagnostics))
	}
	if result.Diagnostics[0].Source != domain.SourceTypeArXiv {
		t.Errorf("expected arxiv diagnostic, got %s", result.Diagnostics[0].Source)
	}
}

func TestHandleSearch_RestrictionWithoutMatch(t *testing.T) {
	s := newTestServer(t, domain.CredentialSet{}, &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree})
	rr := postSearch(s, `{"query":"q","sources":["scopus"]}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != "configuration_error" {
		t.Errorf("expected configuration_error, got %s", resp.Error)
	}
}

func TestHandleSearch_AllConnectorsFailed(t *testing.T) {
	conn := &stubConnector{
		source: domain.SourceTypeArXiv,
		tier:   domain.TierFree,
		searchFn: func(_ context.Context, _ domain.Query) ([]domain.RawResult, error) {
			return nil, domain.NewConnectorError(domain.SourceTypeArXiv, domain.KindUnreachable, 0, "connection refused", nil)
		},
	}

	s := newTestServer(t, domain.CredentialSet{}, conn)
	rr := postSearch(s, `{"query":"q"}`)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != "all_connectors_failed" {
		t.Errorf("expected all_connectors_failed, got %s", resp.Error)
	}
}

func TestHandleSearch_ClientDisconnected(t *testing.T) {
	conn := &stubConnector{
		source: domain.SourceTypeArXiv,
		tier:   domain.TierFree,
		searchFn: func(ctx context.Context, _ domain.Query) ([]domain.RawResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	s := newTestServer(t, domain.CredentialSet{}, conn)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	rr := serveHTTP(s, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp errorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != "cancelled" {
		t.Errorf("expected cancelled, got %s", resp.Error)
	}
}

// ---------------------------------------------------------------------------
// Tests: GET /v1/sources
// ---------------------------------------------------------------------------

func TestHandleSources(t *testing.T) {
	pubmed := &stubConnector{source: domain.SourceTypePubMed, tier: domain.TierKeyOptional}
	arxiv := &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree}
	scopus := &stubConnector{source: domain.SourceTypeScopus, tier: domain.TierKeyRequired}

	s := newTestServer(t, domain.CredentialSet{}, pubmed, arxiv, scopus)
	rr := serveHTTP(s, httptest.NewRequest(http.MethodGet, "/v1/sources", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp sourcesResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(resp.Sources))
	}

	byName := map[string]sourceStatus{}
	for _, src := range resp.Sources {
		byName[src.Source] = src
	}

	if got := byName["pubmed"]; got.Mode != string(pipeline.ModeThrottled) || got.Credential {
		t.Errorf("expected pubmed throttled without credential, got %+v", got)
	}
	if got := byName["arxiv"]; got.Mode != string(pipeline.ModeOpen) || got.Tier != string(domain.TierFree) {
		t.Errorf("expected arxiv open, got %+v", got)
	}
	scopusStatus := byName["scopus"]
	if scopusStatus.Mode != string(pipeline.ModeSkipped) {
		t.Errorf("expected scopus skipped, got %+v", scopusStatus)
	}
	if scopusStatus.SkipReason != pipeline.SkipReasonMissingCredential {
		t.Errorf("expected missing_credential skip reason, got %q", scopusStatus.SkipReason)
	}
	if !scopusStatus.Enabled {
		t.Error("expected scopus to report enabled even while skipped")
	}

	for i, src := range resp.Sources {
		if src.Position != i+1 {
			t.Errorf("expected position %d, got %d", i+1, src.Position)
		}
	}
}

func TestHandleSources_WithCredentials(t *testing.T) {
	pubmed := &stubConnector{source: domain.SourceTypePubMed, tier: domain.TierKeyOptional}
	scopus := &stubConnector{source: domain.SourceTypeScopus, tier: domain.TierKeyRequired}

	creds := domain.NewCredentialSet(map[domain.SourceType]string{
		domain.SourceTypePubMed: "pm-token",
		domain.SourceTypeScopus: "sc-token",
	})

	s := newTestServer(t, creds, pubmed, scopus)
	rr := serveHTTP(s, httptest.NewRequest(http.MethodGet, "/v1/sources", nil))

	var resp sourcesResponse
	decodeJSON(t, rr, &resp)

	for _, src := range resp.Sources {
		if src.Mode != string(pipeline.ModeAuthenticated) {
			t.Errorf("expected %s authenticated, got %s", src.Source, src.Mode)
		}
		if !src.Credential {
			t.Errorf("expected %s to report a credential", src.Source)
		}
	}

	if strings.Contains(rr.Body.String(), "pm-token") || strings.Contains(rr.Body.String(), "sc-token") {
		t.Error("token values must never appear in responses")
	}
}

// ---------------------------------------------------------------------------
// Tests: health and readiness
// ---------------------------------------------------------------------------

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, domain.CredentialSet{}, &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree})
	rr := serveHTTP(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestHandleReadiness(t *testing.T) {
	t.Run("ready with connectors", func(t *testing.T) {
		s := newTestServer(t, domain.CredentialSet{}, &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree})
		rr := serveHTTP(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp map[string]string
		decodeJSON(t, rr, &resp)
		if resp["status"] != "ready" {
			t.Errorf("expected status ready, got %s", resp["status"])
		}
		if resp["connectors"] != "1" {
			t.Errorf("expected 1 connector, got %s", resp["connectors"])
		}
	})

	t.Run("not ready without connectors", func(t *testing.T) {
		s := newTestServer(t, domain.CredentialSet{})
		rr := serveHTTP(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}

		var resp map[string]string
		decodeJSON(t, rr, &resp)
		if resp["status"] != "not_ready" {
			t.Errorf("expected status not_ready, got %s", resp["status"])
		}
	})
}

// ---------------------------------------------------------------------------
// Tests: request body limit
// ---------------------------------------------------------------------------

func TestHandleSearch_OversizedBody(t *testing.T) {
	s := newTestServer(t, domain.CredentialSet{}, &stubConnector{source: domain.SourceTypeArXiv, tier: domain.TierFree})

	var b bytes.Buffer
	b.WriteString(`{"query":"`)
	b.WriteString(strings.Repeat("x", maxRequestBodySize+16))
	b.WriteString(`"}`)

	rr := postSearch(s, b.String())

	// The limited reader truncates the body mid-string, so decoding fails.
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
