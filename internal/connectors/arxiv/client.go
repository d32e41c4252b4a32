// Package arxiv provides a connector for the arXiv preprint archive.
// The arXiv API is free and requires no credentials.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

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

// Client implements the connectors.Connector interface for arXiv.
type Client struct {
	config     Config
	httpClient *connectors.HTTPClient
}

// Ensure Client implements the Connector interface.
var _ connectors.Connector = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := connectors.NewHTTPClient(connectors.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *connectors.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv for works matching the given query.
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
		return nil, domain.ClassifyError(domain.SourceTypeArXiv, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewConnectorError(
			domain.SourceTypeArXiv,
			domain.KindForStatus(resp.StatusCode),
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.RawResult, 0, len(feed.Entries))
	for i := range feed.Entries {
		result, ok := c.entryToResult(&feed.Entries[i])
		if ok {
			results = append(results, result)
		}
	}

	return results, nil
}

// Source returns the source type identifier.
func (c *Client) Source() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Tier returns the access tier for this source.
func (c *Client) Tier() domain.Tier {
	return domain.TierFree
}

// Enabled returns whether this source participates in searches.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(query domain.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	values := url.Values{}

	searchQuery := "all:" + query.Text
	if query.HasYearRange() {
		searchQuery = searchQuery + " AND " + buildDateFilter(query.YearFrom, query.YearTo)
	}
	values.Set("search_query", searchQuery)

	maxResults := query.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	values.Set("max_results", strconv.Itoa(maxResults))

	// Sort by submission date (newest first)
	values.Set("sortBy", "submittedDate")
	values.Set("sortOrder", "descending")

	baseURL.RawQuery = values.Encode()
	return baseURL.String(), nil
}

// buildDateFilter constructs the arXiv submittedDate filter from a year range.
func buildDateFilter(yearFrom, yearTo int) string {
	fromStr := "*"
	if yearFrom > 0 {
		fromStr = fmt.Sprintf("%04d01010000", yearFrom)
	}

	toStr := "*"
	if yearTo > 0 {
		toStr = fmt.Sprintf("%04d12312359", yearTo)
	}

	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr)
}

// entryToResult converts an arXiv Atom entry to a raw search result.
func (c *Client) entryToResult(entry *Entry) (domain.RawResult, bool) {
	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return domain.RawResult{}, false
	}

	var year int
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			year = t.Year()
		}
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	// arXiv wraps titles and abstracts with newlines and extra whitespace.
	title := normalizeWhitespace(entry.Title)
	abstract := normalizeWhitespace(entry.Summary)

	return domain.RawResult{
		Source:     domain.SourceTypeArXiv,
		ExternalID: arxivID,
		Identifiers: domain.WorkIdentifiers{
			ArXivID: arxivID,
			DOI:     strings.TrimSpace(entry.DOI),
		},
		Title:    title,
		Authors:  authors,
		Abstract: abstract,
		Year:     year,
		Venue:    strings.TrimSpace(entry.JournalRef),
		URL:      "https://arxiv.org/abs/" + arxivID,
	}, true
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	return strings.Join(fields, " ")
}
