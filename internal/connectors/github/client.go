package github

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
	// DefaultBaseURL is the default GitHub API base URL.
	DefaultBaseURL = "https://api.github.com"

	// DefaultRateLimit is the search rate limit without a token
	// (10 requests per minute).
	DefaultRateLimit = 10.0 / 60.0

	// KeyedRateLimit is the search rate limit with a token
	// (30 requests per minute).
	KeyedRateLimit = 30.0 / 60.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	// The GitHub search API caps per_page at 100.
	DefaultMaxResults = 30

	// acceptHeader pins the REST API version.
	acceptHeader = "application/vnd.github.v3+json"

	// sourceName is the human-readable name for this source.
	sourceName = "GitHub"
)

// Config holds configuration for the GitHub client.
type Config struct {
	// BaseURL is the GitHub API base URL.
	BaseURL string

	// Token is the optional personal access token. Without it searches
	// run against the unauthenticated 10 req/min pool instead of failing.
	Token string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. When zero the limit
	// is chosen from the token presence.
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
		if c.Token != "" {
			c.RateLimit = KeyedRateLimit
		} else {
			c.RateLimit = DefaultRateLimit
		}
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.MaxResults > 100 {
		c.MaxResults = 100
	}
}

// Client implements the connectors.Connector interface for GitHub.
type Client struct {
	config     Config
	httpClient *connectors.HTTPClient
}

// Ensure Client implements the Connector interface.
var _ connectors.Connector = (*Client)(nil)

// New creates a new GitHub client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := connectors.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Token != "" {
		httpCfg.APIKey = "Bearer " + cfg.Token
		httpCfg.APIKeyHeader = "Authorization"
	}

	return &Client{
		config:     cfg,
		httpClient: connectors.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new GitHub client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *connectors.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries GitHub for repositories matching the given query.
func (c *Client) Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(domain.SourceTypeGitHub, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]domain.RawResult, 0, len(searchResp.Items))
	for i := range searchResp.Items {
		result, ok := repoToResult(&searchResp.Items[i])
		if ok {
			results = append(results, result)
		}
	}

	return results, nil
}

// Source returns the source type identifier.
func (c *Client) Source() domain.SourceType {
	return domain.SourceTypeGitHub
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

// Authenticated reports whether requests carry an access token.
func (c *Client) Authenticated() bool {
	return c.config.Token != ""
}

// buildSearchURL constructs the repository search URL.
func (c *Client) buildSearchURL(query domain.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search/repositories"

	q := query.Text
	switch {
	case query.YearFrom > 0 && query.YearTo > 0:
		q += fmt.Sprintf(" created:%04d-01-01..%04d-12-31", query.YearFrom, query.YearTo)
	case query.YearFrom > 0:
		q += fmt.Sprintf(" created:>=%04d-01-01", query.YearFrom)
	case query.YearTo > 0:
		q += fmt.Sprintf(" created:<=%04d-12-31", query.YearTo)
	}

	maxResults := query.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	values := url.Values{}
	values.Set("q", q)
	values.Set("sort", "stars")
	values.Set("order", "desc")
	values.Set("per_page", strconv.Itoa(maxResults))

	baseURL.RawQuery = values.Encode()
	return baseURL.String(), nil
}

// errorFromResponse builds a ConnectorError from a non-OK response.
func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	message := string(body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	return domain.NewConnectorError(
		domain.SourceTypeGitHub,
		domain.KindForStatus(resp.StatusCode),
		resp.StatusCode,
		message,
		nil,
	)
}

// repoToResult converts a repository record to a raw search result.
// Stars stand in for the citation count.
func repoToResult(repo *Repository) (domain.RawResult, bool) {
	fullName := strings.TrimSpace(repo.FullName)
	if fullName == "" {
		return domain.RawResult{}, false
	}

	var authors []domain.Author
	if repo.Owner.Login != "" {
		authors = []domain.Author{{Name: repo.Owner.Login}}
	}

	var year int
	if !repo.CreatedAt.IsZero() {
		year = repo.CreatedAt.Year()
	}

	return domain.RawResult{
		Source:        domain.SourceTypeGitHub,
		ExternalID:    fullName,
		Identifiers:   domain.WorkIdentifiers{Repository: fullName},
		Title:         fullName,
		Authors:       authors,
		Abstract:      strings.TrimSpace(repo.Description),
		Year:          year,
		URL:           repo.HTMLURL,
		CitationCount: repo.StargazersCount,
	}, true
}
