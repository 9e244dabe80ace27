package transition

import (
	"context"
	"fmt"
	"time"

	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// ActionWriter appends an entry to a lead's action history.
type ActionWriter interface {
	AppendAction(ctx context.Context, leadID uuid.UUID, action domain.Action) error
}

// ActionWriterFunc adapts a function to ActionWriter.
type ActionWriterFunc func(ctx context.Context, leadID uuid.UUID, action domain.Action) error

// AppendAction calls f.
func (f ActionWriterFunc) AppendAction(ctx context.Context, leadID uuid.UUID, action domain.Action) error {
	return f(ctx, leadID, action)
}

// FollowUpScheduler queues a reminder for a scheduled action.
type FollowUpScheduler interface {
	ScheduleFollowUp(ctx context.Context, leadID, actionID, organizationID uuid.UUID, agentID string, runAt time.Time) error
}

// PipelineTypeChange describes a lead moving from one pipeline to another.
type PipelineTypeChange struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	LeadID         uuid.UUID
	LeadName       string
	AssignedTo     string
	Status         domain.Status
	From           domain.PipelineType
	To             domain.PipelineType
}

// PipelineTypeResult reports what a pipeline change did.
type PipelineTypeResult struct {
	// Changed is false when the lead already was in the target pipeline.
	Changed bool
	// Status is the lead status after the change.
	Status        domain.Status
	StatusChanged bool
	// Action is the requalification call, nil when it could not be stored.
	Action  *domain.Action
	Notices []notice.Notice
}

// PipelineTransitioner keeps a lead consistent with its new pipeline and
// schedules its requalification.
type PipelineTransitioner struct {
	actions   ActionWriter
	followUps FollowUpScheduler
	notifier  notice.Notifier
	log       *logger.Logger
	now       func() time.Time
	newID     func() uuid.UUID
}

// NewPipelineTransitioner creates a transitioner. followUps may be nil.
func NewPipelineTransitioner(actions ActionWriter, followUps FollowUpScheduler, notifier notice.Notifier, log *logger.Logger) *PipelineTransitioner {
	return &PipelineTransitioner{
		actions:   actions,
		followUps: followUps,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// RequalificationNote is the note of the call action created when a lead
// changes pipeline.
func RequalificationNote(from, to domain.PipelineType) string {
	return fmt.Sprintf("Lead déplacé du pipeline %s vers le pipeline %s : requalification nécessaire.",
		domain.PipelineLabel(from), domain.PipelineLabel(to))
}

// HandlePipelineTypeTransition runs after a lead's pipeline type changed.
// When the current status does not exist in the new pipeline, the
// recommended status is stored through applyStatus and the user is told.
// A scheduled requalification call is then always appended to the lead's
// history. The two steps fail independently: an action failure never undoes
// the status correction.
func (p *PipelineTransitioner) HandlePipelineTypeTransition(ctx context.Context, change PipelineTypeChange, applyStatus func(context.Context, domain.Status) error) PipelineTypeResult {
	result := PipelineTypeResult{Status: change.Status}
	if change.From == change.To {
		return result
	}
	result.Changed = true

	if !domain.IsStatusValidForPipeline(change.Status, change.To) {
		next := domain.RecommendedStatusForTransition(change.Status, change.To)
		if err := applyStatus(ctx, next); err != nil {
			p.log.Error("status correction after pipeline change failed",
				"error", err,
				"leadId", change.LeadID,
				"status", change.Status,
				"target", next,
			)
			p.emit(ctx, change.UserID, &result, notice.Failure("Erreur",
				fmt.Sprintf("Impossible d'ajuster le statut de %s.", change.LeadName)))
		} else {
			result.Status = next
			result.StatusChanged = true
			p.emit(ctx, change.UserID, &result, notice.Success("Statut ajusté",
				fmt.Sprintf("Le statut « %s » n'existe pas dans le pipeline %s : %s passe au statut « %s ».",
					domain.Label(change.From, change.Status),
					domain.PipelineLabel(change.To),
					change.LeadName,
					domain.Label(change.To, next))))
		}
	}

	now := p.now()
	action := domain.Action{
		ID:          p.newID(),
		Type:        domain.ActionCall,
		Status:      domain.ActionScheduled,
		ScheduledAt: now,
		Note:        RequalificationNote(change.From, change.To),
		CreatedAt:   now,
	}
	if err := p.actions.AppendAction(ctx, change.LeadID, action); err != nil {
		p.log.Error("requalification action could not be created",
			"error", err,
			"leadId", change.LeadID,
		)
		p.emit(ctx, change.UserID, &result, notice.Failure("Erreur",
			fmt.Sprintf("Impossible de créer la tâche de requalification pour %s.", change.LeadName)))
		return result
	}
	result.Action = &action

	if p.followUps != nil {
		if err := p.followUps.ScheduleFollowUp(ctx, change.LeadID, action.ID, change.OrganizationID, change.AssignedTo, action.ScheduledAt); err != nil {
			p.log.Warn("requalification reminder not scheduled", "error", err, "leadId", change.LeadID, "actionId", action.ID)
		}
	}
	return result
}

func (p *PipelineTransitioner) emit(ctx context.Context, userID uuid.UUID, result *PipelineTypeResult, n notice.Notice) {
	result.Notices = append(result.Notices, n)
	if p.notifier != nil {
		p.notifier.Notify(ctx, userID, n)
	}
}
