package service

import (
	"context"

	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/internal/pipeline/filter"
	"estate_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	sourceFilters = "filters"
	sourceAPI     = "api"
)

func (s *Service) GetFilters(ctx context.Context, userID uuid.UUID) transport.FiltersResponse {
	return toFiltersResponse(s.workspaces.Get(ctx, userID).Filters.Filters())
}

// ReplaceFilters stores body as the user's whole filter specification.
// Nothing is stored when any field is malformed.
func (s *Service) ReplaceFilters(ctx context.Context, userID uuid.UUID, body []byte) (transport.FiltersResponse, error) {
	return s.saveFilters(ctx, userID, func(filter.Spec) (filter.Spec, []filter.Issue, error) {
		return filter.Decode(body)
	})
}

// PatchFilters overlays the fields present in body onto the stored
// specification.
func (s *Service) PatchFilters(ctx context.Context, userID uuid.UUID, body []byte) (transport.FiltersResponse, error) {
	return s.saveFilters(ctx, userID, func(current filter.Spec) (filter.Spec, []filter.Issue, error) {
		return filter.DecodeInto(current, body)
	})
}

// ClearFilters resets the user's filters, which also clears the agent
// selection.
func (s *Service) ClearFilters(ctx context.Context, userID uuid.UUID) transport.FiltersResponse {
	return toFiltersResponse(s.workspaces.Get(ctx, userID).ClearFilters(ctx, sourceFilters))
}

func (s *Service) saveFilters(ctx context.Context, userID uuid.UUID, decode func(current filter.Spec) (filter.Spec, []filter.Issue, error)) (transport.FiltersResponse, error) {
	ws := s.workspaces.Get(ctx, userID)
	stored, err := ws.SaveFilters(ctx, sourceFilters, func(current filter.Spec) (filter.Spec, error) {
		spec, issues, err := decode(current)
		if err := decodeError(issues, err); err != nil {
			return filter.Spec{}, err
		}
		return spec, nil
	})
	if err != nil {
		return transport.FiltersResponse{}, err
	}
	return toFiltersResponse(stored), nil
}

func (s *Service) GetAgentSelection(ctx context.Context, userID uuid.UUID) transport.AgentSelectionResponse {
	return transport.AgentSelectionResponse{SelectedAgent: s.workspaces.Get(ctx, userID).Selection.Selected()}
}

// SetAgentSelection changes the selected agent. The filter store follows
// through its subscription.
func (s *Service) SetAgentSelection(ctx context.Context, userID uuid.UUID, req transport.AgentSelectionRequest) transport.AgentSelectionResponse {
	source := req.Source
	if source == "" {
		source = sourceAPI
	}
	sel := s.workspaces.Get(ctx, userID).Selection
	changed := sel.Set(ctx, req.SelectedAgent, source)
	return transport.AgentSelectionResponse{SelectedAgent: sel.Selected(), Changed: changed}
}

func decodeError(issues []filter.Issue, err error) error {
	if err != nil {
		return apperr.BadRequest("filters must be a JSON object")
	}
	if len(issues) > 0 {
		return apperr.Validation("invalid filters").WithDetails(issues)
	}
	return nil
}

func toFiltersResponse(spec filter.Spec) transport.FiltersResponse {
	return transport.FiltersResponse{Filters: spec, ActiveCount: spec.ActiveCount()}
}
