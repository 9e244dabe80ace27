package service

import (
	"slices"

	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

func agentNames(members []repository.TeamMember) map[string]string {
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID.String()] = m.DisplayName
	}
	return names
}

func agentID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func toBoardLead(lead repository.Lead, names map[string]string) domain.Lead {
	assignedTo := agentID(lead.AssignedAgentID)
	return domain.Lead{
		ID:                lead.ID,
		Name:              lead.Name,
		Status:            lead.Status,
		PipelineType:      lead.PipelineType,
		Tags:              slices.Clone(lead.Tags),
		AssignedTo:        assignedTo,
		AssignedToName:    names[assignedTo],
		Budget:            lead.Budget,
		DesiredLocation:   lead.DesiredLocation,
		PurchaseTimeframe: lead.PurchaseTimeframe,
		PropertyType:      lead.PropertyType,
		LastContactedAt:   lead.LastContactedAt,
	}
}

func toLeadResponse(lead repository.Lead, names map[string]string) transport.LeadResponse {
	assignedTo := agentID(lead.AssignedAgentID)
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}
	actions := lead.Actions
	if actions == nil {
		actions = []domain.Action{}
	}
	return transport.LeadResponse{
		ID:                lead.ID,
		Name:              lead.Name,
		Phone:             lead.Phone,
		Email:             lead.Email,
		Status:            lead.Status,
		StatusLabel:       domain.Label(lead.PipelineType, lead.Status),
		PipelineType:      lead.PipelineType,
		Tags:              tags,
		AssignedTo:        assignedTo,
		AssignedToName:    names[assignedTo],
		Budget:            lead.Budget,
		DesiredLocation:   lead.DesiredLocation,
		PurchaseTimeframe: lead.PurchaseTimeframe,
		PropertyType:      lead.PropertyType,
		Actions:           actions,
		LastContactedAt:   lead.LastContactedAt,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}
