package repository

import (
	"context"
	"time"

	"estate_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (Lead, error)
	ListByPipeline(ctx context.Context, organizationID uuid.UUID, pipelineType domain.PipelineType) ([]Lead, error)
}

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	UpdateStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.Status, lastContactedAt time.Time) error
	SetStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.Status) error
	UpdatePipelineType(ctx context.Context, id, organizationID uuid.UUID, pipelineType domain.PipelineType) error
	SoftDelete(ctx context.Context, id, organizationID uuid.UUID) error
}

// ActionStore reads and appends entries of a lead's action history.
type ActionStore interface {
	AppendAction(ctx context.Context, leadID, organizationID uuid.UUID, action domain.Action) error
	GetAction(ctx context.Context, leadID, organizationID, actionID uuid.UUID) (domain.Action, bool, error)
}

// TeamReader provides the agents of an organization.
type TeamReader interface {
	ListTeamMembers(ctx context.Context, organizationID uuid.UUID) ([]TeamMember, error)
	UserIDForAgent(ctx context.Context, organizationID, agentID uuid.UUID) (uuid.UUID, bool, error)
}

// Reconciler scans leads whose status does not belong to their pipeline.
type Reconciler interface {
	ListInvalidStatus(ctx context.Context, afterID uuid.UUID, limit int) ([]Lead, error)
	SetStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.Status) error
}

// LeadsRepository is the full repository used by the leads service.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	ActionStore
	TeamReader
}

var (
	_ LeadsRepository = (*Repository)(nil)
	_ Reconciler      = (*Repository)(nil)
)
