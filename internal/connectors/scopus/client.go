package scopus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

const (
	// DefaultBaseURL is the default Scopus API base URL.
	DefaultBaseURL = "https://api.elsevier.com/content"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// apiKeyHeader is the HTTP header name for the Scopus API key.
	apiKeyHeader = "X-ELS-APIKey"

	// sourceName is the human-readable name for this source.
	sourceName = "Scopus"
)

// Config holds configuration for the Scopus client.
type Config struct {
	// BaseURL is the Scopus API base URL.
	BaseURL string

	// APIKey is the Elsevier API key. Required for all Scopus requests;
	// without it the connector reports itself disabled.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// MaxRetries is the number of retries on 429 and 5xx responses. Zero
	// keeps each search at a single attempt.
	MaxRetries int

	// Enabled indicates whether this source participates in searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the connectors.Connector interface for Scopus.
type Client struct {
	config     Config
	httpClient *connectors.HTTPClient
}

// Ensure Client implements the Connector interface.
var _ connectors.Connector = (*Client)(nil)

// New creates a new Scopus client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := connectors.NewHTTPClient(connectors.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
		MaxRetries:   cfg.MaxRetries,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Scopus client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *connectors.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Scopus for works matching the given query.
func (c *Client) Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(domain.SourceTypeScopus, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewConnectorError(
			domain.SourceTypeScopus,
			domain.KindForStatus(resp.StatusCode),
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the JSON response (limit body to 10MB).
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.RawResult, 0, len(searchResp.SearchResults.Entries))
	for i := range searchResp.SearchResults.Entries {
		result, ok := c.entryToResult(&searchResp.SearchResults.Entries[i])
		if ok {
			results = append(results, result)
		}
	}

	return results, nil
}

// Source returns the source type identifier.
func (c *Client) Source() domain.SourceType {
	return domain.SourceTypeScopus
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Tier returns the access tier for this source.
func (c *Client) Tier() domain.Tier {
	return domain.TierKeyRequired
}

// Enabled returns whether this source participates in searches.
// Scopus requires an API key, so a missing key disables the connector.
func (c *Client) Enabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

// buildSearchURL constructs the Scopus search API URL.
func (c *Client) buildSearchURL(query domain.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search/scopus"

	queryParts := []string{fmt.Sprintf("TITLE-ABS-KEY(%s)", query.Text)}

	// Scopus year filters are exclusive bounds.
	if query.YearFrom > 0 && query.YearTo > 0 {
		queryParts = append(queryParts, fmt.Sprintf("PUBYEAR > %d AND PUBYEAR < %d",
			query.YearFrom-1, query.YearTo+1))
	} else if query.YearFrom > 0 {
		queryParts = append(queryParts, fmt.Sprintf("PUBYEAR > %d", query.YearFrom-1))
	} else if query.YearTo > 0 {
		queryParts = append(queryParts, fmt.Sprintf("PUBYEAR < %d", query.YearTo+1))
	}

	if query.Venue != "" {
		queryParts = append(queryParts, fmt.Sprintf("SRCTITLE(%s)", query.Venue))
	}

	urlQuery := url.Values{}
	urlQuery.Set("query", strings.Join(queryParts, " AND "))
	urlQuery.Set("view", "COMPLETE")

	maxResults := query.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	urlQuery.Set("count", strconv.Itoa(maxResults))

	baseURL.RawQuery = urlQuery.Encode()
	return baseURL.String(), nil
}

// entryToResult converts a Scopus entry to a raw search result.
func (c *Client) entryToResult(entry *Entry) (domain.RawResult, bool) {
	// dc:identifier carries the Scopus ID as "SCOPUS_ID:85012345678".
	scopusID := strings.TrimSpace(strings.TrimPrefix(entry.Identifier, "SCOPUS_ID:"))

	identifiers := domain.WorkIdentifiers{
		DOI:      strings.TrimSpace(entry.DOI),
		PubMedID: strings.TrimSpace(entry.PubMedID),
		ScopusID: scopusID,
	}

	title := strings.TrimSpace(entry.Title)
	if domain.GenerateCanonicalID(identifiers) == "" && title == "" {
		return domain.RawResult{}, false
	}

	var year int
	if entry.CoverDate != "" {
		if t, err := time.Parse("2006-01-02", entry.CoverDate); err == nil {
			year = t.Year()
		}
	}

	citationCount, _ := strconv.Atoi(entry.CitedByCount)

	var workURL string
	if entry.EID != "" {
		workURL = "https://www.scopus.com/record/display.uri?eid=" + entry.EID
	}

	return domain.RawResult{
		Source:        domain.SourceTypeScopus,
		ExternalID:    scopusID,
		Identifiers:   identifiers,
		Title:         title,
		Authors:       extractAuthors(entry),
		Abstract:      strings.TrimSpace(entry.Description),
		Year:          year,
		Venue:         strings.TrimSpace(entry.PublicationName),
		URL:           workURL,
		CitationCount: citationCount,
	}, true
}

// extractAuthors extracts authors from the Scopus entry. The COMPLETE view
// author list is preferred, falling back to dc:creator (first author only).
func extractAuthors(entry *Entry) []domain.Author {
	if entry.Authors != nil && len(entry.Authors.Authors) > 0 {
		authors := make([]domain.Author, 0, len(entry.Authors.Authors))
		for _, sa := range entry.Authors.Authors {
			name := strings.TrimSpace(sa.Name)
			if name == "" {
				if sa.GivenName != "" && sa.Surname != "" {
					name = sa.GivenName + " " + sa.Surname
				} else if sa.Surname != "" {
					name = sa.Surname
				}
			}
			if name == "" {
				continue
			}
			authors = append(authors, domain.Author{Name: name})
		}
		return authors
	}

	if creator := strings.TrimSpace(entry.Creator); creator != "" {
		return []domain.Author{{Name: creator}}
	}

	return nil
}
