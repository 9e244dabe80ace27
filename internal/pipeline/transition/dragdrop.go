// Package transition orchestrates lead status changes: drag-and-drop moves
// on a board and moves between pipelines.
package transition

import (
	"context"
	"fmt"
	"time"

	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/pipeline/board"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// StatusUpdater durably stores a lead's new status together with the time
// it was last contacted.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, leadID uuid.UUID, status domain.Status, lastContactedAt time.Time) error
}

// Outcome is how a move ended.
type Outcome string

const (
	OutcomeNoOp       Outcome = "noop"
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeRejected means the target column does not belong to the
	// board's pipeline; nothing was touched.
	OutcomeRejected   Outcome = "rejected"
)

// MoveRequest describes one drop of a lead card onto a column.
type MoveRequest struct {
	// Key is the board cache key of the board the card was dragged on.
	Key          string
	UserID       uuid.UUID
	LeadID       uuid.UUID
	LeadName     string
	PipelineType domain.PipelineType
	From         domain.Status
	To           domain.Status
}

// MoveResult reports the outcome of a move and the notice shown to the user.
type MoveResult struct {
	Outcome Outcome
	Notice  *notice.Notice
	Phases  []Phase
}

// Orchestrator applies drag-and-drop status changes optimistically to the
// board cache and reconciles them with the store.
type Orchestrator struct {
	cache    *board.Cache
	updater  StatusUpdater
	notifier notice.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cache *board.Cache, updater StatusUpdater, notifier notice.Notifier, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		updater:  updater,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Move performs a drop. Dropping a card on its own column does nothing.
// Otherwise the cached board is rewritten first, then the status is stored;
// on failure the board is restored from its snapshot. The returned error is
// nil for no-ops and commits; a target status outside the pipeline yields
// OutcomeRejected with a validation error.
func (o *Orchestrator) Move(ctx context.Context, req MoveRequest) (MoveResult, error) {
	if !domain.IsStatusValidForPipeline(req.To, req.PipelineType) {
		return MoveResult{Outcome: OutcomeRejected, Phases: []Phase{PhaseIdle}},
			apperr.Validation(fmt.Sprintf("status %q is not valid for pipeline %q", req.To, req.PipelineType))
	}

	g := newGesture()
	g.advance(PhaseDragging)
	g.advance(PhaseDropped)

	if req.From == req.To {
		g.advance(PhaseIdle)
		return MoveResult{Outcome: OutcomeNoOp, Phases: g.trace}, nil
	}

	g.advance(PhaseMutating)
	tx := o.cache.Begin(req.Key)
	tx.Apply(board.MoveItem(req.LeadID, req.From, req.To))

	err := o.updater.UpdateStatus(ctx, req.LeadID, req.To, o.now())
	if err != nil {
		tx.Rollback()
		g.advance(PhaseRolledBack)
		g.advance(PhaseIdle)

		o.log.Error("lead status update failed, board restored",
			"error", err,
			"leadId", req.LeadID,
			"from", req.From,
			"to", req.To,
		)
		n := notice.Failure("Erreur", fmt.Sprintf("Impossible de mettre à jour le statut de %s.", req.LeadName))
		o.notify(ctx, req.UserID, n)
		return MoveResult{Outcome: OutcomeRolledBack, Notice: &n, Phases: g.trace},
			apperr.Unavailable("lead status update failed", err)
	}

	tx.Commit()
	g.advance(PhaseCommitted)
	g.advance(PhaseIdle)

	n := notice.Success("Statut mis à jour",
		fmt.Sprintf("%s est maintenant au statut « %s ».", req.LeadName, domain.Label(req.PipelineType, req.To)))
	o.notify(ctx, req.UserID, n)
	return MoveResult{Outcome: OutcomeCommitted, Notice: &n, Phases: g.trace}, nil
}

func (o *Orchestrator) notify(ctx context.Context, userID uuid.UUID, n notice.Notice) {
	if o.notifier != nil {
		o.notifier.Notify(ctx, userID, n)
	}
}

// StatusUpdaterFunc adapts a function to StatusUpdater.
type StatusUpdaterFunc func(ctx context.Context, leadID uuid.UUID, status domain.Status, lastContactedAt time.Time) error

// UpdateStatus calls f.
func (f StatusUpdaterFunc) UpdateStatus(ctx context.Context, leadID uuid.UUID, status domain.Status, lastContactedAt time.Time) error {
	return f(ctx, leadID, status, lastContactedAt)
}
