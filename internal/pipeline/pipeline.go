// Package pipeline orchestrates one aggregation run: it plans which
// connectors participate and in which mode, fans the query out across them,
// merges the raw per-source results into deduplicated canonical works, and
// ranks the merged list with a pluggable scoring strategy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/observability"
)

// Terminal run statuses reported in the result envelope and metrics.
const (
	StatusOK        = "ok"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Diagnostic statuses per connector.
const (
	DiagnosticOK      = "ok"
	DiagnosticFailed  = "failed"
	DiagnosticSkipped = "skipped"
)

// Diagnostic records how one connector fared during a run, including the
// suppressed skips that never surface as errors.
type Diagnostic struct {
	Source     domain.SourceType `json:"source"`
	Mode       Mode              `json:"mode"`
	Status     string            `json:"status"`
	Results    int               `json:"results"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	SkipReason string            `json:"skip_reason,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// Result is the envelope returned by a run: the ranked works plus enough
// diagnostics to explain where they came from and what was left out.
type Result struct {
	RunID          string            `json:"run_id"`
	Query          string            `json:"query"`
	Status         string            `json:"status"`
	Scorer         string            `json:"scorer"`
	Works          domain.ResultList `json:"works"`
	Diagnostics    []Diagnostic      `json:"diagnostics"`
	RawCount       int               `json:"raw_count"`
	WorkCount      int               `json:"work_count"`
	DuplicateCount int               `json:"duplicate_count"`
	DurationMS     int64             `json:"duration_ms"`
}

// EventSink receives completed run envelopes for asynchronous export.
// Implementations must not block: the pipeline calls the sink inline at the
// end of a run.
type EventSink interface {
	RunCompleted(ctx context.Context, result *Result)
}

// Config assembles a Pipeline's collaborators.
type Config struct {
	// Registry holds the configured connectors. Required.
	Registry *connectors.Registry

	// Credentials is the read-only token set consulted during planning.
	Credentials domain.CredentialSet

	// ConnectorTimeout bounds each individual connector search. Must be
	// positive.
	ConnectorTimeout time.Duration

	// Scorer ranks the merged works. Nil selects SourceCountScorer.
	Scorer Scorer

	// Logger receives run and connector events.
	Logger zerolog.Logger

	// Metrics is optional; nil disables metric recording.
	Metrics *observability.Metrics

	// Events is optional; nil disables event export.
	Events EventSink
}

// Pipeline is the single entry point for aggregation runs. It is safe for
// concurrent use: runs share the registry and credential set read-only and
// keep all per-run state on the stack.
type Pipeline struct {
	registry    *connectors.Registry
	coordinator *Coordinator
	scorer      Scorer
	logger      zerolog.Logger
	metrics     *observability.Metrics
	events      EventSink
}

// New validates the configuration and assembles a Pipeline. Structural
// problems (missing registry, non-positive timeout) are configuration
// errors; they surface here, before any run starts.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil {
		return nil, domain.NewConfigurationError("registry", "connector registry is required")
	}
	if cfg.ConnectorTimeout <= 0 {
		return nil, domain.NewConfigurationError("connector_timeout", "must be positive")
	}

	scorer := cfg.Scorer
	if scorer == nil {
		scorer = SourceCountScorer{}
	}

	logger := observability.WithComponent(cfg.Logger, "pipeline")

	return &Pipeline{
		registry:    cfg.Registry,
		coordinator: NewCoordinator(cfg.Registry, cfg.Credentials, cfg.ConnectorTimeout, cfg.Logger, cfg.Metrics),
		scorer:      scorer,
		logger:      logger,
		metrics:     cfg.Metrics,
		events:      cfg.Events,
	}, nil
}

// Plan exposes the coordinator's execution plan for the current registry
// order and credential set.
func (p *Pipeline) Plan() []ConnectorPlan {
	return p.coordinator.Plan()
}

// Run executes one aggregation run end to end.
//
// Connector failures never abort the run: they are recorded in the
// diagnostics and the remaining results still merge. Run returns an error
// only when the run as a whole produced nothing it can stand behind: the
// query or registry is unusable before execution, the caller's context was
// cancelled (no partial results are returned), or every invoked connector
// failed and not a single raw result was gathered.
func (p *Pipeline) Run(ctx context.Context, query domain.Query) (*Result, error) {
	if query.IsZero() {
		return nil, domain.NewConfigurationError("query", "search text is required")
	}
	if p.registry.Len() == 0 {
		return nil, domain.ErrNoConnectors
	}

	start := time.Now()
	runID := uuid.New().String()
	logger := observability.WithRunContext(p.logger, runID)

	logger.Info().
		Str("query", query.Text).
		Str("scorer", p.scorer.Name()).
		Msg("run started")

	outcomes := p.coordinator.Execute(ctx, query)

	if err := ctx.Err(); err != nil {
		elapsed := time.Since(start)
		logger.Warn().Dur("elapsed", elapsed).Msg("run cancelled")
		if p.metrics != nil {
			p.metrics.RecordPipelineFailed(StatusCancelled, elapsed.Seconds())
		}
		return nil, err
	}

	var (
		raw         []domain.RawResult
		diagnostics = make([]Diagnostic, 0, len(outcomes))
		invoked     int
		failed      int
		failures    []string
	)

	for _, outcome := range outcomes {
		diagnostics = append(diagnostics, diagnosticFor(outcome))

		if outcome.Mode == ModeSkipped {
			continue
		}
		invoked++
		if outcome.Err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %s", outcome.Source, outcome.Err))
			continue
		}
		raw = append(raw, outcome.Results...)
	}

	if invoked > 0 && failed == invoked && len(raw) == 0 {
		elapsed := time.Since(start)
		logger.Error().
			Int("connectors", invoked).
			Dur("elapsed", elapsed).
			Msg("all connectors failed")
		if p.metrics != nil {
			p.metrics.RecordPipelineFailed(StatusFailed, elapsed.Seconds())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrAllConnectorsFailed, strings.Join(failures, "; "))
	}

	works, stats := Merge(raw)
	works = Rank(works, p.scorer)
	if query.MaxResults > 0 && len(works) > query.MaxResults {
		works = works[:query.MaxResults]
	}

	status := StatusOK
	if failed > 0 {
		status = StatusPartial
	}

	elapsed := time.Since(start)
	result := &Result{
		RunID:          runID,
		Query:          query.Text,
		Status:         status,
		Scorer:         p.scorer.Name(),
		Works:          works,
		Diagnostics:    diagnostics,
		RawCount:       stats.RawCount,
		WorkCount:      stats.WorkCount,
		DuplicateCount: stats.DuplicateCount,
		DurationMS:     elapsed.Milliseconds(),
	}

	logger.Info().
		Str("status", status).
		Int("raw_results", stats.RawCount).
		Int("works", stats.WorkCount).
		Int("duplicates", stats.DuplicateCount).
		Dur("elapsed", elapsed).
		Msg("run completed")

	if p.metrics != nil {
		p.metrics.RecordPipelineRun(status, elapsed.Seconds(), stats.WorkCount, stats.DuplicateCount, len(works))
	}
	if p.events != nil {
		p.events.RunCompleted(ctx, result)
	}

	return result, nil
}

// diagnosticFor converts a connector outcome into its envelope form.
func diagnosticFor(outcome ConnectorOutcome) Diagnostic {
	diag := Diagnostic{
		Source:     outcome.Source,
		Mode:       outcome.Mode,
		Results:    len(outcome.Results),
		SkipReason: outcome.SkipReason,
		DurationMS: outcome.Duration.Milliseconds(),
	}

	switch {
	case outcome.Mode == ModeSkipped:
		diag.Status = DiagnosticSkipped
	case outcome.Err != nil:
		diag.Status = DiagnosticFailed
		diag.Error = outcome.Err.Error()
		var cerr *domain.ConnectorError
		if errors.As(outcome.Err, &cerr) {
			diag.ErrorKind = string(cerr.Kind)
		}
	default:
		diag.Status = DiagnosticOK
	}

	return diag
}
