// Package observability provides logging and metrics support for the
// literature aggregation service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for connector calls and pipeline runs
//   - Context helpers for propagating correlation IDs
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("pipeline run started")
//
// Add connector context to a logger:
//
//	logger = observability.WithSourceContext(logger, "pubmed", "authenticated")
//
// # Metrics
//
// Initialize metrics once and record through the helpers:
//
//	metrics := observability.NewMetrics("litagg")
//	metrics.RecordConnectorSuccess("arxiv", "open", 25, 1.2)
//	metrics.RecordPipelineRun("ok", 3.4, 40, 12, 25)
//
// # Context Helpers
//
// Store and retrieve correlation IDs:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithRunID(ctx, runID)
//
//	logger := observability.ContextLogger(ctx, baseLogger)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - run_id: Pipeline run identifier
//   - source: Connector source (pubmed, arxiv, etc.)
//   - mode: Connector execution mode (open, authenticated, throttled, skipped)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
