package transport

import (
	"time"

	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/internal/pipeline/filter"

	"github.com/google/uuid"
)

// BoardQuery selects the pipeline shown on a board.
type BoardQuery struct {
	PipelineType string `form:"pipelineType" json:"pipelineType" validate:"omitempty,pipeline_type"`
}

type CreateLeadRequest struct {
	Name              string   `json:"name" validate:"required,min=2,max=200"`
	Phone             string   `json:"phone" validate:"required,min=6,max=32"`
	Email             string   `json:"email,omitempty" validate:"omitempty,email,max=254"`
	PipelineType      string   `json:"pipelineType,omitempty" validate:"omitempty,pipeline_type"`
	Status            string   `json:"status,omitempty" validate:"omitempty,pipeline_status"`
	Tags              []string `json:"tags,omitempty" validate:"max=20,dive,max=50"`
	AssignedTo        string   `json:"assignedTo,omitempty" validate:"omitempty,uuid"`
	Budget            string   `json:"budget,omitempty" validate:"max=50"`
	DesiredLocation   string   `json:"desiredLocation,omitempty" validate:"max=200"`
	PurchaseTimeframe string   `json:"purchaseTimeframe,omitempty" validate:"max=100"`
	PropertyType      string   `json:"propertyType,omitempty" validate:"max=100"`
}

type MoveLeadRequest struct {
	LeadID   uuid.UUID `json:"leadId" validate:"required"`
	ToStatus string    `json:"toStatus" validate:"required,pipeline_status"`
}

type MoveLeadResponse struct {
	Outcome string         `json:"outcome"`
	Notice  *notice.Notice `json:"notice,omitempty"`
}

type ChangePipelineTypeRequest struct {
	PipelineType string `json:"pipelineType" validate:"required,pipeline_type"`
}

type ChangePipelineTypeResponse struct {
	Lead          LeadResponse    `json:"lead"`
	Changed       bool            `json:"changed"`
	StatusChanged bool            `json:"statusChanged"`
	Action        *domain.Action  `json:"action,omitempty"`
	Notices       []notice.Notice `json:"notices"`
}

type LeadResponse struct {
	ID                uuid.UUID           `json:"id"`
	Name              string              `json:"name"`
	Phone             string              `json:"phone"`
	Email             *string             `json:"email,omitempty"`
	Status            domain.Status       `json:"status"`
	StatusLabel       string              `json:"statusLabel"`
	PipelineType      domain.PipelineType `json:"pipelineType"`
	Tags              []string            `json:"tags"`
	AssignedTo        string              `json:"assignedTo,omitempty"`
	AssignedToName    string              `json:"assignedToName,omitempty"`
	Budget            string              `json:"budget,omitempty"`
	DesiredLocation   string              `json:"desiredLocation,omitempty"`
	PurchaseTimeframe string              `json:"purchaseTimeframe,omitempty"`
	PropertyType      string              `json:"propertyType,omitempty"`
	Actions           []domain.Action     `json:"actions"`
	LastContactedAt   *time.Time          `json:"lastContactedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

type BoardResponse struct {
	PipelineType      domain.PipelineType `json:"pipelineType"`
	PipelineLabel     string              `json:"pipelineLabel"`
	Columns           []domain.Column     `json:"columns"`
	Filters           filter.Spec         `json:"filters"`
	ActiveFilterCount int                 `json:"activeFilterCount"`
	SelectedAgent     *string             `json:"selectedAgent"`
	TotalCount        int                 `json:"totalCount"`
	VisibleCount      int                 `json:"visibleCount"`
}

type StatusOption struct {
	Value domain.Status `json:"value"`
	Label string        `json:"label"`
}

type StatusesResponse struct {
	PipelineType  domain.PipelineType `json:"pipelineType"`
	PipelineLabel string              `json:"pipelineLabel"`
	Default       domain.Status       `json:"default"`
	Statuses      []StatusOption      `json:"statuses"`
}

type FiltersResponse struct {
	Filters     filter.Spec `json:"filters"`
	ActiveCount int         `json:"activeCount"`
}

type AgentSelectionRequest struct {
	SelectedAgent *string `json:"selectedAgent" validate:"omitempty,max=100"`
	Source        string  `json:"source" validate:"omitempty,max=64"`
}

type AgentSelectionResponse struct {
	SelectedAgent *string `json:"selectedAgent"`
	Changed       bool    `json:"changed"`
}

type TeamMemberResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}
