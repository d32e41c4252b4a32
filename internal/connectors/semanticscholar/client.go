package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the rate limit for the shared unauthenticated pool.
	DefaultRateLimit = 1.0

	// KeyedRateLimit is the rate limit with an API key.
	KeyedRateLimit = 10.0

	// DefaultBurstSize is the default burst size without an API key.
	DefaultBurstSize = 1

	// KeyedBurstSize is the default burst size with an API key.
	KeyedBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per request.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,venue,journal,authors,citationCount"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	BaseURL string

	// APIKey is the optional API key. Without it requests go through the
	// shared public pool at a reduced rate instead of failing.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. When zero the limit
	// is chosen from the API key presence.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum number of results to return per search.
	MaxResults int

	// MaxRetries is the number of retries on 429 and 5xx responses. Zero
	// keeps each search at a single attempt.
	MaxRetries int

	// Enabled indicates whether this source participates in searches.
	Enabled bool
}

// Client implements the connectors.Connector interface for Semantic Scholar.
type Client struct {
	httpClient *connectors.HTTPClient
	config     Config
}

// Compile-time check that Client implements Connector.
var _ connectors.Connector = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one is created from the configuration settings.
func NewClient(cfg Config, httpClient *connectors.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		if cfg.APIKey != "" {
			cfg.RateLimit = KeyedRateLimit
		} else {
			cfg.RateLimit = DefaultRateLimit
		}
	}
	if cfg.BurstSize == 0 {
		if cfg.APIKey != "" {
			cfg.BurstSize = KeyedBurstSize
		} else {
			cfg.BurstSize = DefaultBurstSize
		}
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	if httpClient == nil {
		httpClient = connectors.NewHTTPClient(connectors.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
			MaxRetries:   cfg.MaxRetries,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Search queries Semantic Scholar for works matching the given query.
func (c *Client) Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(domain.SourceTypeSemanticScholar, err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.RawResult, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		results = append(results, c.paperToResult(&searchResp.Data[i]))
	}

	return results, nil
}

// Source returns the source type identifier.
func (c *Client) Source() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Tier returns the access tier for this source.
func (c *Client) Tier() domain.Tier {
	return domain.TierKeyOptional
}

// Enabled returns whether this source participates in searches.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// Authenticated reports whether requests carry an API key.
func (c *Client) Authenticated() bool {
	return c.config.APIKey != ""
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(query domain.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", query.Text)
	q.Set("fields", paperFields)

	limit := query.MaxResults
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	// Semantic Scholar filters by year range: "2019-2023", "2019-", "-2023".
	switch {
	case query.YearFrom > 0 && query.YearTo > 0:
		q.Set("year", fmt.Sprintf("%d-%d", query.YearFrom, query.YearTo))
	case query.YearFrom > 0:
		q.Set("year", fmt.Sprintf("%d-", query.YearFrom))
	case query.YearTo > 0:
		q.Set("year", fmt.Sprintf("-%d", query.YearTo))
	}

	if query.Venue != "" {
		q.Set("venue", query.Venue)
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	kind := domain.KindForStatus(resp.StatusCode)

	// Read the error body (limit to 1MB to prevent resource exhaustion).
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewConnectorError(
			domain.SourceTypeSemanticScholar, kind, resp.StatusCode,
			"failed to read error response", err,
		)
	}

	message := string(body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			message = errResp.Error
		} else if errResp.Message != "" {
			message = errResp.Message
		}
	}

	return domain.NewConnectorError(
		domain.SourceTypeSemanticScholar, kind, resp.StatusCode, message, nil,
	)
}

// paperToResult converts a single API paper result to a raw search result.
func (c *Client) paperToResult(paper *PaperResult) domain.RawResult {
	identifiers := domain.WorkIdentifiers{
		SemanticScholarID: paper.PaperID,
	}
	if paper.ExternalIDs != nil {
		identifiers.DOI = paper.ExternalIDs.DOI
		identifiers.ArXivID = paper.ExternalIDs.ArXiv
		identifiers.PubMedID = paper.ExternalIDs.PubMed
	}

	venue := paper.Venue
	if venue == "" && paper.Journal != nil {
		venue = paper.Journal.Name
	}

	authors := make([]domain.Author, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		if a.Name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: a.Name})
	}

	var workURL string
	if paper.PaperID != "" {
		workURL = "https://www.semanticscholar.org/paper/" + paper.PaperID
	}

	return domain.RawResult{
		Source:        domain.SourceTypeSemanticScholar,
		ExternalID:    paper.PaperID,
		Identifiers:   identifiers,
		Title:         paper.Title,
		Authors:       authors,
		Abstract:      paper.Abstract,
		Year:          paper.Year,
		Venue:         venue,
		URL:           workURL,
		CitationCount: paper.CitationCount,
	}
}
