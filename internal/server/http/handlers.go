package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/observability"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

const (
	// maxRequestBodySize limits request bodies to 1 MB.
	maxRequestBodySize = 1 << 20
)

// validate checks incoming request payloads. Field names in validation
// errors use the JSON names clients actually sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// searchRequest is the payload for POST /v1/search.
type searchRequest struct {
	Query      string   `json:"query" validate:"required,max=1024"`
	YearFrom   int      `json:"year_from" validate:"omitempty,gte=1800,lte=2200"`
	YearTo     int      `json:"year_to" validate:"omitempty,gte=1800,lte=2200,gtefield=YearFrom"`
	Venue      string   `json:"venue" validate:"omitempty,max=256"`
	MaxResults int      `json:"max_results" validate:"omitempty,gte=1,lte=100"`
	Sources    []string `json:"sources" validate:"omitempty,max=6,unique,dive,oneof=pubmed arxiv openalex semantic_scholar github scopus"`
}

// handleSearch runs an aggregation pass and returns the full run result,
// ranked works and per-connector diagnostics included.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	logger := observability.ContextLogger(r.Context(), s.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	req.Venue = strings.TrimSpace(req.Venue)

	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationMessage(err))
		return
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = s.maxResults
	}

	query := domain.Query{
		Text:       req.Query,
		YearFrom:   req.YearFrom,
		YearTo:     req.YearTo,
		Venue:      req.Venue,
		MaxResults: maxResults,
	}

	pl := s.pipeline
	if len(req.Sources) > 0 {
		pl, err = s.pipelineFor(req.Sources)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	result, err := pl.Run(r.Context(), query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug().Err(err).Msg("search abandoned by caller")
		} else {
			logger.Error().Err(err).Msg("search run failed")
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// pipelineFor assembles a pipeline restricted to the requested sources,
// preserving configured order. Connectors the deployment never registered
// cannot be summoned by request.
func (s *Server) pipelineFor(requested []string) (*pipeline.Pipeline, error) {
	want := make(map[domain.SourceType]bool, len(requested))
	for _, raw := range requested {
		want[domain.SourceType(raw)] = true
	}

	restricted := connectors.NewRegistry()
	for _, conn := range s.pipelineCfg.Registry.Ordered() {
		if want[conn.Source()] {
			restricted.Register(conn)
		}
	}
	if restricted.Len() == 0 {
		return nil, domain.NewConfigurationError("sources", "no configured connector matches the requested sources")
	}

	cfg := s.pipelineCfg
	cfg.Registry = restricted
	return pipeline.New(cfg)
}

// handleSources reports each configured connector as the planner would
// treat it right now: position, tier, mode and skip reason.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	plan := s.pipeline.Plan()
	writeJSON(w, http.StatusOK, buildSourcesResponse(plan, s.pipelineCfg.Registry, s.pipelineCfg.Credentials))
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadiness reports whether the service can take search traffic.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pipelineCfg.Registry == nil || s.pipelineCfg.Registry.Len() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "no connectors registered",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ready",
		"connectors": strconv.Itoa(s.pipelineCfg.Registry.Len()),
	})
}

// writeDomainError maps pipeline and domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsConfigurationError(err) || errors.Is(err, domain.ErrNoConnectors):
		writeError(w, http.StatusUnprocessableEntity, "configuration_error", err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusBadRequest, "cancelled", "request cancelled before the run completed")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "run exceeded its deadline")
	case errors.Is(err, domain.ErrAllConnectorsFailed):
		writeError(w, http.StatusBadGateway, "all_connectors_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "min", "gte":
			msgs = append(msgs, fe.Field()+" must be at least "+fe.Param())
		case "max", "lte":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param())
		case "gtefield":
			msgs = append(msgs, fe.Field()+" must not precede "+fe.Param())
		case "oneof":
			msgs = append(msgs, fe.Field()+" must be one of: "+fe.Param())
		case "unique":
			msgs = append(msgs, fe.Field()+" must not repeat values")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
