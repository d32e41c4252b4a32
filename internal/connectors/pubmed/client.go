package pubmed

import (
	"context"
	"encoding/xml"
	"errors"
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
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	DefaultRateLimit = 3.0

	// KeyedRateLimit is the rate limit with an API key (10 requests/second).
	KeyedRateLimit = 10.0

	// DefaultBurstSize is the default burst size without an API key.
	DefaultBurstSize = 3

	// KeyedBurstSize is the default burst size with an API key.
	KeyedBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	BaseURL string

	// APIKey is the NCBI API key. Optional: without it the client falls
	// back to the public 3 req/sec profile instead of failing.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. When zero the limit
	// is chosen from the API key presence (10 keyed, 3 keyless).
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the default maximum results per search.
	MaxResults int

	// MaxRetries is the number of retries on 429 and 5xx responses. Zero
	// keeps each search at a single attempt.
	MaxRetries int

	// Enabled indicates whether this source participates in searches.
	Enabled bool
}

// applyDefaults applies default values to the config. The rate profile
// depends on whether an API key is present.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		if c.APIKey != "" {
			c.RateLimit = KeyedRateLimit
		} else {
			c.RateLimit = DefaultRateLimit
		}
	}
	if c.BurstSize == 0 {
		if c.APIKey != "" {
			c.BurstSize = KeyedBurstSize
		} else {
			c.BurstSize = DefaultBurstSize
		}
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the connectors.Connector interface for PubMed.
type Client struct {
	config     Config
	httpClient *connectors.HTTPClient
}

// Compile-time check that Client implements Connector.
var _ connectors.Connector = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := connectors.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
	}

	return &Client{
		config:     cfg,
		httpClient: connectors.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *connectors.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PubMed for works matching the given query.
// It performs a two-step search:
//  1. esearch.fcgi - retrieves PMIDs matching the query
//  2. efetch.fcgi - retrieves full article metadata for the PMIDs
func (c *Client) Search(ctx context.Context, query domain.Query) ([]domain.RawResult, error) {
	if !c.config.Enabled {
		return nil, errors.New("pubmed connector is disabled")
	}

	searchResult, err := c.esearch(ctx, query)
	if err != nil {
		return nil, err
	}

	// PhraseNotFound means no match, not a failure.
	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		return []domain.RawResult{}, nil
	}

	if len(searchResult.IDList.IDs) == 0 {
		return []domain.RawResult{}, nil
	}

	articles, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RawResult, 0, len(articles.Articles))
	for i := range articles.Articles {
		results = append(results, c.articleToResult(&articles.Articles[i]))
	}

	return results, nil
}

// Source returns the source type identifier.
func (c *Client) Source() domain.SourceType {
	return domain.SourceTypePubMed
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

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, query domain.Query) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	term := query.Text
	if query.Venue != "" {
		term += fmt.Sprintf(" AND %q[Journal]", query.Venue)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("usehistory", "n")

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	q.Set("retmax", strconv.Itoa(maxResults))

	if query.HasYearRange() {
		q.Set("datetype", "pdat") // publication date
		if query.YearFrom > 0 {
			q.Set("mindate", fmt.Sprintf("%04d/01/01", query.YearFrom))
		}
		if query.YearTo > 0 {
			q.Set("maxdate", fmt.Sprintf("%04d/12/31", query.YearTo))
		}
	}

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(domain.SourceTypePubMed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewConnectorError(
			domain.SourceTypePubMed,
			domain.KindForStatus(resp.StatusCode),
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	var result ESearchResult
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding esearch response: %w", err)
	}

	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ClassifyError(domain.SourceTypePubMed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewConnectorError(
			domain.SourceTypePubMed,
			domain.KindForStatus(resp.StatusCode),
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	var result PubmedArticleSet
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding efetch response: %w", err)
	}

	return &result, nil
}

// articleToResult converts a PubmedArticle to a raw search result.
func (c *Client) articleToResult(article *PubmedArticle) domain.RawResult {
	citation := article.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID.Value)

	identifiers := domain.WorkIdentifiers{
		DOI:      extractDOI(citation.Article, article.PubmedData),
		PubMedID: pmid,
	}

	venue := citation.Article.Journal.Title
	if venue == "" {
		venue = citation.Article.Journal.ISOAbbreviation
	}

	var workURL string
	if pmid != "" {
		workURL = "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}

	return domain.RawResult{
		Source:      domain.SourceTypePubMed,
		ExternalID:  pmid,
		Identifiers: identifiers,
		Title:       strings.TrimSpace(citation.Article.ArticleTitle),
		Authors:     extractAuthors(citation.Article.AuthorList),
		Abstract:    extractAbstract(citation.Article.Abstract),
		Year:        extractYear(citation.Article),
		Venue:       venue,
		URL:         workURL,
	}
}

// extractDOI extracts the DOI from article metadata.
// ELocationID is checked first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return strings.TrimSpace(eloc.Value)
		}
	}

	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return strings.TrimSpace(aid.Value)
		}
	}

	return ""
}

// extractYear extracts the publication year. ArticleDate is preferred,
// falling back to the journal issue PubDate, then MedlineDate.
func extractYear(article Article) int {
	for _, ad := range article.ArticleDate {
		if year, err := strconv.Atoi(ad.Year); err == nil && year > 0 {
			return year
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		if year, err := strconv.Atoi(pubDate.Year); err == nil {
			return year
		}
	}

	// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021", etc.
	if pubDate.MedlineDate != "" {
		parts := strings.Fields(pubDate.MedlineDate)
		if len(parts) > 0 {
			yearStr := strings.Split(parts[0], "-")[0]
			if year, err := strconv.Atoi(yearStr); err == nil {
				return year
			}
		}
	}

	return 0
}

// extractAbstract concatenates multiple abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// extractAuthors converts PubMed authors to domain authors.
func extractAuthors(authorList *AuthorList) []domain.Author {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]domain.Author, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else {
			nameParts := make([]string, 0, 2)
			if a.ForeName != "" {
				nameParts = append(nameParts, a.ForeName)
			}
			if a.LastName != "" {
				nameParts = append(nameParts, a.LastName)
			}
			name = strings.Join(nameParts, " ")
		}

		if name == "" {
			continue
		}

		var affiliation string
		if len(a.AffiliationInfo) > 0 {
			affiliation = a.AffiliationInfo[0].Affiliation
		}

		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: affiliation,
		})
	}

	return authors
}
