package scheduler

import (
	"context"
	"fmt"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ActionReader loads one entry of a lead's action history. found is false
// when the lead or the action no longer exists.
type ActionReader interface {
	GetAction(ctx context.Context, leadID, organizationID, actionID uuid.UUID) (action domain.Action, found bool, err error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	actions ActionReader
	bus     events.Bus
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, actions ActionReader, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(actions, bus, log)
	w.server = server
	return w, nil
}

func newWorker(actions ActionReader, bus events.Bus, log *logger.Logger) *Worker {
	w := &Worker{
		mux:     asynq.NewServeMux(),
		actions: actions,
		bus:     bus,
		log:     log,
	}
	w.mux.HandleFunc(TaskFollowUpDue, w.handleFollowUpDue)
	return w
}

// Run processes tasks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return
	}
	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("scheduler worker stopped")
}

func (w *Worker) handleFollowUpDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowUpDuePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: lead id: %v", asynq.SkipRetry, err)
	}
	actionID, err := uuid.Parse(payload.ActionID)
	if err != nil {
		return fmt.Errorf("%w: action id: %v", asynq.SkipRetry, err)
	}
	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return fmt.Errorf("%w: organization id: %v", asynq.SkipRetry, err)
	}

	action, found, err := w.actions.GetAction(ctx, leadID, orgID, actionID)
	if err != nil {
		return err
	}
	if !found || action.Status != domain.ActionScheduled {
		w.log.Debug("follow-up skipped", "leadId", leadID, "actionId", actionID, "found", found)
		return nil
	}

	if w.bus == nil {
		return nil
	}

	return w.bus.PublishSync(ctx, events.FollowUpDue{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          leadID,
		ActionID:        actionID,
		OrganizationID:  orgID,
		AssignedAgentID: parseOptionalUUID(payload.AgentID),
		Note:            action.Note,
	})
}

func parseOptionalUUID(value string) *uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		return nil
	}
	return &id
}
