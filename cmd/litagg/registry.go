package main

import (
	"fmt"
	"strings"

	"github.com/litmesh/literature-aggregation-service/internal/config"
	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/arxiv"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/github"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/openalex"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/pubmed"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/scopus"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/semanticscholar"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// buildRegistry constructs connectors in configured order. A non-empty
// only list restricts the registry to those sources, order preserved.
func buildRegistry(cfg *config.Config, only []string) (*connectors.Registry, error) {
	want := make(map[domain.SourceType]bool, len(only))
	for _, raw := range only {
		src := domain.SourceType(strings.TrimSpace(raw))
		if !domain.IsValidSourceType(src) {
			return nil, fmt.Errorf("unknown source %q", raw)
		}
		want[src] = true
	}

	registry := connectors.NewRegistry()
	for _, source := range cfg.Pipeline.Order() {
		if len(want) > 0 && !want[source] {
			continue
		}
		conn, err := buildConnector(source, cfg)
		if err != nil {
			return nil, err
		}
		registry.Register(conn)
	}

	if registry.Len() == 0 {
		return nil, fmt.Errorf("no configured connector matches the requested sources")
	}
	return registry, nil
}

// buildConnector maps one connector's configuration onto its client, the
// same wiring the server performs at startup.
func buildConnector(source domain.SourceType, cfg *config.Config) (connectors.Connector, error) {
	cc, ok := cfg.Connectors.ByID(source)
	if !ok {
		return nil, fmt.Errorf("no configuration section for connector %q", source)
	}

	switch source {
	case domain.SourceTypeArXiv:
		return arxiv.New(arxiv.Config{
			BaseURL:    cc.BaseURL,
			Timeout:    cc.Timeout,
			RateLimit:  cc.EffectiveRateLimit(),
			BurstSize:  cc.BurstSize,
			MaxResults: cc.MaxResults,
			MaxRetries: cc.RetryMaxAttempts,
			Enabled:    cc.Enabled,
		}), nil
	case domain.SourceTypeOpenAlex:
		return openalex.New(openalex.Config{
			BaseURL:    cc.BaseURL,
			Email:      cc.Email,
			Timeout:    cc.Timeout,
			RateLimit:  cc.EffectiveRateLimit(),
			BurstSize:  cc.BurstSize,
			MaxResults: cc.MaxResults,
			MaxRetries: cc.RetryMaxAttempts,
			Enabled:    cc.Enabled,
		}), nil
	case domain.SourceTypePubMed:
		return pubmed.New(pubmed.Config{
			BaseURL:    cc.BaseURL,
			APIKey:     cc.APIKey,
			Timeout:    cc.Timeout,
			RateLimit:  cc.EffectiveRateLimit(),
			BurstSize:  cc.BurstSize,
			MaxResults: cc.MaxResults,
			MaxRetries: cc.RetryMaxAttempts,
			Enabled:    cc.Enabled,
		}), nil
	case domain.SourceTypeSemanticScholar:
		return semanticscholar.NewClient(semanticscholar.Config{
			BaseURL:    cc.BaseURL,
			APIKey:     cc.APIKey,
			Timeout:    cc.Timeout,
			RateLimit:  cc.EffectiveRateLimit(),
			BurstSize:  cc.BurstSize,
			MaxResults: cc.MaxResults,
			MaxRetries: cc.RetryMaxAttempts,
			Enabled:    cc.Enabled,
		}, nil), nil
	case domain.SourceTypeGitHub:
		return github.New(github.Config{
			BaseURL:    cc.BaseURL,
			Token:      cc.APIKey,
			Timeout:    cc.Timeout,
			RateLimit:  cc.EffectiveRateLimit(),
			BurstSize:  cc.BurstSize,
			MaxResults: cc.MaxResults,
			MaxRetries: cc.RetryMaxAttempts,
			Enabled:    cc.Enabled,
		}), nil
	case domain.SourceTypeScopus:
		return scopus.New(scopus.Config{
			BaseURL:    cc.BaseURL,
			APIKey:     cc.APIKey,
			Timeout:    cc.Timeout,
			RateLimit:  cc.EffectiveRateLimit(),
			BurstSize:  cc.BurstSize,
			MaxResults: cc.MaxResults,
			MaxRetries: cc.RetryMaxAttempts,
			Enabled:    cc.Enabled,
		}), nil
	default:
		return nil, fmt.Errorf("unknown connector %q", source)
	}
}
