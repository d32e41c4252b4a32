package httpserver

import (
	"github.com/litmesh/literature-aggregation-service/internal/connectors"
	"github.com/litmesh/literature-aggregation-service/internal/domain"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

// errorResponse is the JSON envelope for every non-2xx response. Error is
// a stable machine-readable code; Detail is human-readable context.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// sourceStatus describes one connector as the planner would treat it for
// the next run. Credential reports token presence only; the token itself
// never appears in any response.
type sourceStatus struct {
	Position   int    `json:"position"`
	Source     string `json:"source"`
	Tier       string `json:"tier"`
	Mode       string `json:"mode"`
	SkipReason string `json:"skip_reason,omitempty"`
	Enabled    bool   `json:"enabled"`
	Credential bool   `json:"credential"`
}

// sourcesResponse lists connectors in plan order.
type sourcesResponse struct {
	Sources []sourceStatus `json:"sources"`
}

// buildSourcesResponse projects a connector plan into the public source
// listing, joining in registration state and credential presence.
func buildSourcesResponse(plan []pipeline.ConnectorPlan, registry *connectors.Registry, creds domain.CredentialSet) sourcesResponse {
	resp := sourcesResponse{Sources: make([]sourceStatus, 0, len(plan))}
	for i, entry := range plan {
		status := sourceStatus{
			Position:   i + 1,
			Source:     string(entry.Source),
			Tier:       string(entry.Tier),
			Mode:       string(entry.Mode),
			SkipReason: entry.SkipReason,
			Credential: creds.Has(entry.Source),
		}
		if conn := registry.Get(entry.Source); conn != nil {
			status.Enabled = conn.Enabled()
		}
		resp.Sources = append(resp.Sources, status)
	}
	return resp
}
