package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/observability"
)

// Mode is how the coordinator invokes a connector within one run.
type Mode string

const (
	// ModeOpen marks a free connector invoked without credentials.
	ModeOpen Mode = "open"

	// ModeAuthenticated marks a connector invoked with a token, using the
	// provider's authenticated, higher-quota variant.
	ModeAuthenticated Mode = "authenticated"

	// ModeThrottled marks a key-optional connector falling back to the
	// provider's public, rate-limited variant because no token is present.
	ModeThrottled Mode = "throttled"

	// ModeSkipped marks a connector left out of the run entirely. The skip
	// is recorded in the run diagnostics but never surfaces as an error.
	ModeSkipped Mode = "skipped"
)

// Skip reasons recorded on ModeSkipped plans.
const (
	SkipReasonMissingCredential = "missing_credential"
	SkipReasonDisabled          = "disabled"
)

// DefaultConnectorTimeout bounds a single connector search when the
// coordinator is built without an explicit timeout.
const DefaultConnectorTimeout = 30 * time.Second

// ConnectorPlan is one connector's resolved execution decision for a run.
type ConnectorPlan struct {
	Source     domain.SourceType `json:"source"`
	Tier       domain.Tier       `json:"tier"`
	Mode       Mode              `json:"mode"`
	SkipReason string            `json:"skip_reason,omitempty"`
}

// Invoked reports whether the plan results in an actual search.
func (p ConnectorPlan) Invoked() bool {
	return p.Mode != ModeSkipped
}

// ConnectorOutcome is what one planned connector produced during a run.
// Skipped connectors appear with ModeSkipped, no results, and no error.
type ConnectorOutcome struct {
	Source     domain.SourceType
	Mode       Mode
	SkipReason string
	Results    []domain.RawResult
	Err        error
	Duration   time.Duration
}

// Coordinator resolves which connectors participate in a run and in which
// mode, then fans the query out across them concurrently. Mode selection
// follows the connector's credential tier: free connectors always run open,
// key-optional connectors run authenticated with a token and throttled
// without one, and key-required connectors run authenticated with a token
// and are skipped without one.
type Coordinator struct {
	registry    *connectors.Registry
	credentials domain.CredentialSet
	timeout     time.Duration
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewCoordinator creates a coordinator over the given registry and
// credential set. A non-positive timeout falls back to
// DefaultConnectorTimeout. Metrics may be nil.
func NewCoordinator(registry *connectors.Registry, credentials domain.CredentialSet, timeout time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultConnectorTimeout
	}
	return &Coordinator{
		registry:    registry,
		credentials: credentials,
		timeout:     timeout,
		logger:      observability.WithComponent(logger, "coordinator"),
		metrics:     metrics,
	}
}

// Plan resolves the execution plan for the current registry order and
// credential set. The plan lists every registered connector, skipped ones
// included, in invocation order.
func (c *Coordinator) Plan() []ConnectorPlan {
	conns := c.registry.Ordered()
	plans := make([]ConnectorPlan, 0, len(conns))
	for _, conn := range conns {
		plans = append(plans, c.planFor(conn))
	}
	return plans
}

// Execute fans the query out across every planned connector, one goroutine
// per invoked connector, each bounded by the per-connector timeout. It
// blocks until all connectors have completed or timed out and returns one
// outcome per registered connector, in plan order regardless of completion
// order. A failing or slow connector never affects its siblings; errors are
// recorded on the outcome, not returned.
func (c *Coordinator) Execute(ctx context.Context, query domain.Query) []ConnectorOutcome {
	conns := c.registry.Ordered()

	type indexed struct {
		idx     int
		outcome ConnectorOutcome
	}

	outcomes := make([]ConnectorOutcome, len(conns))
	resultChan := make(chan indexed, len(conns))
	var wg sync.WaitGroup

	for i, conn := range conns {
		plan := c.planFor(conn)

		if !plan.Invoked() {
			outcomes[i] = ConnectorOutcome{
				Source:     plan.Source,
				Mode:       ModeSkipped,
				SkipReason: plan.SkipReason,
			}
			c.logger.Debug().
				Str("source", string(plan.Source)).
				Str("reason", plan.SkipReason).
				Msg("connector skipped")
			if c.metrics != nil {
				c.metrics.RecordConnectorSkipped(string(plan.Source), plan.SkipReason)
			}
			continue
		}

		wg.Add(1)
		go func(idx int, conn connectors.Connector, plan ConnectorPlan) {
			defer wg.Done()
			resultChan <- indexed{idx: idx, outcome: c.invoke(ctx, conn, plan, query)}
		}(i, conn, plan)
	}

	// Close the channel once all searches complete so collection terminates.
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		outcomes[r.idx] = r.outcome
	}

	return outcomes
}

// invoke runs a single connector search under the per-connector timeout and
// converts the call into an outcome.
func (c *Coordinator) invoke(ctx context.Context, conn connectors.Connector, plan ConnectorPlan, query domain.Query) ConnectorOutcome {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger := observability.WithSourceContext(c.logger, string(plan.Source), string(plan.Mode))

	start := time.Now()
	results, err := conn.Search(cctx, query)
	elapsed := time.Since(start)

	outcome := ConnectorOutcome{
		Source:   plan.Source,
		Mode:     plan.Mode,
		Results:  results,
		Duration: elapsed,
	}

	if err != nil {
		cerr := domain.ClassifyError(plan.Source, err)
		outcome.Err = cerr
		outcome.Results = nil
		logger.Warn().
			Err(cerr).
			Dur("elapsed", elapsed).
			Msg("connector search failed")
		if c.metrics != nil {
			c.metrics.RecordConnectorFailure(string(plan.Source), string(plan.Mode), string(cerr.Kind), elapsed.Seconds())
		}
		return outcome
	}

	logger.Debug().
		Int("results", len(results)).
		Dur("elapsed", elapsed).
		Msg("connector search completed")
	if c.metrics != nil {
		c.metrics.RecordConnectorSuccess(string(plan.Source), string(plan.Mode), len(results), elapsed.Seconds())
	}
	return outcome
}

// planFor maps one connector's tier and credential state to an execution
// decision. Disabled connectors are skipped regardless of tier, except that
// a key-required connector missing its token reports the credential as the
// reason rather than the disablement it implies.
func (c *Coordinator) planFor(conn connectors.Connector) ConnectorPlan {
	source := conn.Source()
	plan := ConnectorPlan{Source: source, Tier: conn.Tier()}

	switch conn.Tier() {
	case domain.TierKeyOptional:
		if c.credentials.Has(source) {
			plan.Mode = ModeAuthenticated
		} else {
			plan.Mode = ModeThrottled
		}
	case domain.TierKeyRequired:
		if c.credentials.Has(source) {
			plan.Mode = ModeAuthenticated
		} else {
			plan.Mode = ModeSkipped
			plan.SkipReason = SkipReasonMissingCredential
		}
	default:
		plan.Mode = ModeOpen
	}

	if !conn.Enabled() && plan.Mode != ModeSkipped {
		plan.Mode = ModeSkipped
		plan.SkipReason = SkipReasonDisabled
	}

	return plan
}
