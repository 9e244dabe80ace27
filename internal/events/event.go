// Package events defines the lead and pipeline events exchanged between
// modules, and re-exports the bus from platform/events so modules only
// import this package.
package events

import (
	"estate_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// BoardChange is implemented by events after which the organization's
// pipeline boards are stale.
type BoardChange interface {
	Event
	BoardScope() (organizationID, leadID uuid.UUID)
}

// BoardChangeEvents returns the names of every event implementing
// BoardChange.
func BoardChangeEvents() []string {
	return []string{
		LeadCreated{}.EventName(),
		LeadStatusChanged{}.EventName(),
		LeadPipelineTypeChanged{}.EventName(),
	}
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a lead is entered manually.
type LeadCreated struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	OrganizationID  uuid.UUID  `json:"organizationId"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
	PipelineType    string     `json:"pipelineType"`
	Status          string     `json:"status"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

func (e LeadCreated) BoardScope() (uuid.UUID, uuid.UUID) { return e.OrganizationID, e.LeadID }

// LeadStatusChanged is published after a status change is durably stored.
type LeadStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ActorID        uuid.UUID `json:"actorId"`
	PipelineType   string    `json:"pipelineType"`
	OldStatus      string    `json:"oldStatus"`
	NewStatus      string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

func (e LeadStatusChanged) BoardScope() (uuid.UUID, uuid.UUID) { return e.OrganizationID, e.LeadID }

// LeadPipelineTypeChanged is published when a lead moves to another pipeline.
type LeadPipelineTypeChanged struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	OrganizationID  uuid.UUID `json:"organizationId"`
	ActorID         uuid.UUID `json:"actorId"`
	OldPipelineType string    `json:"oldPipelineType"`
	NewPipelineType string    `json:"newPipelineType"`
	OldStatus       string    `json:"oldStatus"`
	NewStatus       string    `json:"newStatus"`
}

func (e LeadPipelineTypeChanged) EventName() string { return "leads.lead.pipeline_type_changed" }

func (e LeadPipelineTypeChanged) BoardScope() (uuid.UUID, uuid.UUID) {
	return e.OrganizationID, e.LeadID
}

// FollowUpDue is published by the scheduler worker when a scheduled
// follow-up action reaches its due time.
type FollowUpDue struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	ActionID        uuid.UUID  `json:"actionId"`
	OrganizationID  uuid.UUID  `json:"organizationId"`
	AssignedAgentID *uuid.UUID `json:"assignedAgentId,omitempty"`
	Note            string     `json:"note"`
}

func (e FollowUpDue) EventName() string { return "leads.followup.due" }

// =============================================================================
// Pipeline Preference Events
// =============================================================================

// AgentSelectionChanged is broadcast whenever a user's selected agent changes.
// Source names the session or component that made the change so listeners
// can ignore their own echo.
type AgentSelectionChanged struct {
	BaseEvent
	UserID        uuid.UUID `json:"userId"`
	SelectedAgent *string   `json:"selectedAgent"`
	Source        string    `json:"source"`
}

func (e AgentSelectionChanged) EventName() string { return "agent-selection-changed" }
