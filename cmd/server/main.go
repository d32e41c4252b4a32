// Package main provides the entry point for the literature aggregation
// service server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/litmesh/literature-aggregation-service/internal/config"
	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/arxiv"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/github"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/openalex"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/pubmed"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/scopus"
	"github.com/litmesh/literature-aggregation-service/internal/connectors/semanticscholar"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/events"
	"github.com/litmesh/literature-aggregation-service/internal/observability"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
	httpserver "github.com/litmesh/literature-aggregation-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = observability.WithComponent(logger, "server")
	logger.Info().Msg("literature-aggregation-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Assemble the connector registry in configured order.
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build connector registry: %w", err)
	}

	creds := cfg.Credentials()
	for _, conn := range registry.Ordered() {
		logger.Info().
			Str("source", string(conn.Source())).
			Str("tier", string(conn.Tier())).
			Bool("enabled", conn.Enabled()).
			Bool("credential", creds.Has(conn.Source())).
			Msg("connector registered")
	}

	scorer, err := pipeline.ScorerByName(cfg.Pipeline.Ranker)
	if err != nil {
		return fmt.Errorf("select ranker: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("litagg")
	}

	// Optional kafka run-summary export.
	var sink pipeline.EventSink
	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher = events.NewPublisher(events.Config{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			ClientID:     cfg.Events.ClientID,
			BatchSize:    cfg.Events.BatchSize,
			BatchTimeout: cfg.Events.BatchTimeout,
		}, logger)
		sink = publisher
		logger.Info().
			Strs("brokers", cfg.Events.Brokers).
			Str("topic", cfg.Events.Topic).
			Msg("run summary publisher enabled")
	}

	pipelineCfg := pipeline.Config{
		Registry:         registry,
		Credentials:      creds,
		ConnectorTimeout: cfg.Pipeline.PerConnectorTimeout,
		Scorer:           scorer,
		Logger:           logger,
		Metrics:          metrics,
		Events:           sink,
	}

	// Create the HTTP REST API server.
	httpSrv, err := httpserver.NewServer(httpserver.Config{
		Address:           cfg.Server.HTTPAddress(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		DefaultMaxResults: cfg.Pipeline.MaxResults,
	}, pipelineCfg, logger)
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Int("connectors", registry.Len()).
		Str("ranker", scorer.Name())
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("literature-aggregation-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("run summary publisher close error")
		}
	}

	logger.Info().Msg("literature-aggregation-service shutdown complete")
	return nil
}

// buildRegistry constructs one connector per entry in pipeline.connector_order
// and registers them in that order, which becomes the plan order.
func buildRegistry(cfg *config.Config) (*connectors.Registry, error) {
	registry := connectors.NewRegistry()

	for _, source := range cfg.Pipeline.Order() {
		conn, err := buildConnector(source, cfg)
		if err != nil {
			return nil, err
		}
		registry.Register(conn)
	}

	return registry, nil
}

// buildConnector maps one connector's file configuration onto its client.
// The rate limit is chosen from credential presence; burst sizes of zero
// let each client pick its own tier-appropriate default.
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
