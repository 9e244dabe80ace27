package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"estate_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	Name              string
	Phone             string
	Email             *string
	Status            domain.Status
	PipelineType      domain.PipelineType
	Tags              []string
	AssignedAgentID   *uuid.UUID
	Budget            string
	DesiredLocation   string
	PurchaseTimeframe string
	PropertyType      string
	Actions           []domain.Action
	LastContactedAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateLeadParams struct {
	OrganizationID    uuid.UUID
	Name              string
	Phone             string
	Email             *string
	Status            domain.Status
	PipelineType      domain.PipelineType
	Tags              []string
	AssignedAgentID   *uuid.UUID
	Budget            string
	DesiredLocation   string
	PurchaseTimeframe string
	PropertyType      string
}

type TeamMember struct {
	ID          uuid.UUID
	UserID      *uuid.UUID
	DisplayName string
	Email       *string
}

const leadColumns = `id, organization_id, name, phone, email, status, pipeline_type, tags, assigned_agent_id,
	budget, desired_location, purchase_timeframe, property_type, action_history, last_contacted_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var (
		lead    Lead
		status  string
		ptype   string
		actions []byte
	)
	err := row.Scan(
		&lead.ID, &lead.OrganizationID, &lead.Name, &lead.Phone, &lead.Email, &status, &ptype, &lead.Tags, &lead.AssignedAgentID,
		&lead.Budget, &lead.DesiredLocation, &lead.PurchaseTimeframe, &lead.PropertyType, &actions, &lead.LastContactedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	lead.Status = domain.Status(status)
	lead.PipelineType = domain.PipelineType(ptype)
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &lead.Actions); err != nil {
			return Lead{}, fmt.Errorf("decode action history of lead %s: %w", lead.ID, err)
		}
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (organization_id, name, phone, email, status, pipeline_type, tags, assigned_agent_id,
			budget, desired_location, purchase_timeframe, property_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+leadColumns,
		params.OrganizationID, params.Name, params.Phone, params.Email, string(params.Status), string(params.PipelineType), tags,
		params.AssignedAgentID, params.Budget, params.DesiredLocation, params.PurchaseTimeframe, params.PropertyType,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, id, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ListByPipeline returns the live leads of one pipeline, oldest first so
// board columns keep a stable order.
func (r *Repository) ListByPipeline(ctx context.Context, organizationID uuid.UUID, pipelineType domain.PipelineType) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE organization_id = $1 AND pipeline_type = $2 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, organizationID, string(pipelineType))
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// UpdateStatus stores a status chosen by a user, who is then considered to
// have contacted the lead at lastContactedAt.
func (r *Repository) UpdateStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.Status, lastContactedAt time.Time) error {
	return r.execOne(ctx, `
		UPDATE leads SET status = $3, last_contacted_at = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, id, organizationID, string(status), lastContactedAt)
}

// SetStatus corrects a status without touching the contact timestamp.
func (r *Repository) SetStatus(ctx context.Context, id, organizationID uuid.UUID, status domain.Status) error {
	return r.execOne(ctx, `
		UPDATE leads SET status = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, id, organizationID, string(status))
}

func (r *Repository) UpdatePipelineType(ctx context.Context, id, organizationID uuid.UUID, pipelineType domain.PipelineType) error {
	return r.execOne(ctx, `
		UPDATE leads SET pipeline_type = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, id, organizationID, string(pipelineType))
}

func (r *Repository) SoftDelete(ctx context.Context, id, organizationID uuid.UUID) error {
	return r.execOne(ctx, `
		UPDATE leads SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, id, organizationID)
}

// AppendAction adds action to the end of the lead's action history.
func (r *Repository) AppendAction(ctx context.Context, leadID, organizationID uuid.UUID, action domain.Action) error {
	payload, err := json.Marshal([]domain.Action{action})
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	return r.execOne(ctx, `
		UPDATE leads SET action_history = action_history || $3::jsonb, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, leadID, organizationID, payload)
}

func (r *Repository) GetAction(ctx context.Context, leadID, organizationID, actionID uuid.UUID) (domain.Action, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT entry
		FROM leads, jsonb_array_elements(action_history) AS entry
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL AND entry->>'id' = $3
		LIMIT 1
	`, leadID, organizationID, actionID.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Action{}, false, nil
	}
	if err != nil {
		return domain.Action{}, false, err
	}

	var action domain.Action
	if err := json.Unmarshal(raw, &action); err != nil {
		return domain.Action{}, false, fmt.Errorf("decode action %s: %w", actionID, err)
	}
	return action, true, nil
}

func (r *Repository) ListTeamMembers(ctx context.Context, organizationID uuid.UUID) ([]TeamMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, display_name, email
		FROM team_members
		WHERE organization_id = $1 AND is_active = true
		ORDER BY display_name ASC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]TeamMember, 0)
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.UserID, &m.DisplayName, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return members, nil
}

func (r *Repository) UserIDForAgent(ctx context.Context, organizationID, agentID uuid.UUID) (uuid.UUID, bool, error) {
	var userID *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT user_id FROM team_members WHERE id = $1 AND organization_id = $2
	`, agentID, organizationID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && userID == nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return *userID, true, nil
}

// ListInvalidStatus returns up to limit live leads, ordered by id and
// starting after afterID, whose status is not part of their pipeline.
// Unknown pipeline types are checked against the purchase statuses.
func (r *Repository) ListInvalidStatus(ctx context.Context, afterID uuid.UUID, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE deleted_at IS NULL AND id > $1
			AND NOT (CASE pipeline_type
				WHEN 'rental' THEN status = ANY($3)
				WHEN 'owner' THEN status = ANY($4)
				ELSE status = ANY($2)
			END)
		ORDER BY id ASC
		LIMIT $5
	`, afterID,
		statusStrings(domain.PipelinePurchase),
		statusStrings(domain.PipelineRental),
		statusStrings(domain.PipelineOwner),
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func statusStrings(pipelineType domain.PipelineType) []string {
	statuses := domain.StatusesForPipeline(pipelineType)
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
