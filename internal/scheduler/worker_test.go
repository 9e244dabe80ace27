package scheduler

import (
	"context"
	"errors"
	"testing"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeActions struct {
	action domain.Action
	found  bool
	err    error
}

func (f fakeActions) GetAction(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (domain.Action, bool, error) {
	return f.action, f.found, f.err
}

func collectFollowUps(bus *events.InMemoryBus) *[]events.FollowUpDue {
	var got []events.FollowUpDue
	bus.Subscribe(events.FollowUpDue{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		got = append(got, e.(events.FollowUpDue))
		return nil
	}))
	return &got
}

func followUpTask(t *testing.T, payload FollowUpDuePayload) *asynq.Task {
	t.Helper()
	task, err := NewFollowUpDueTask(payload)
	if err != nil {
		t.Fatalf("NewFollowUpDueTask: %v", err)
	}
	return task
}

func TestFollowUpDuePublishesEvent(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	got := collectFollowUps(bus)
	agentID := uuid.New()
	payload := FollowUpDuePayload{
		LeadID:         uuid.NewString(),
		ActionID:       uuid.NewString(),
		OrganizationID: uuid.NewString(),
		AgentID:        agentID.String(),
	}

	w := newWorker(fakeActions{found: true, action: domain.Action{Status: domain.ActionScheduled, Note: "rappeler"}}, bus, logger.Discard())
	if err := w.handleFollowUpDue(context.Background(), followUpTask(t, payload)); err != nil {
		t.Fatalf("handleFollowUpDue: %v", err)
	}

	if len(*got) != 1 {
		t.Fatalf("expected one event, got %d", len(*got))
	}
	evt := (*got)[0]
	if evt.LeadID.String() != payload.LeadID || evt.Note != "rappeler" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.AssignedAgentID == nil || *evt.AssignedAgentID != agentID {
		t.Fatalf("agent not forwarded: %v", evt.AssignedAgentID)
	}
}

func TestFollowUpDueSkipsCompletedActions(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	got := collectFollowUps(bus)
	payload := FollowUpDuePayload{LeadID: uuid.NewString(), ActionID: uuid.NewString(), OrganizationID: uuid.NewString()}

	for _, reader := range []fakeActions{
		{found: false},
		{found: true, action: domain.Action{Status: domain.ActionDone}},
	} {
		w := newWorker(reader, bus, logger.Discard())
		if err := w.handleFollowUpDue(context.Background(), followUpTask(t, payload)); err != nil {
			t.Fatalf("handleFollowUpDue: %v", err)
		}
	}
	if len(*got) != 0 {
		t.Fatalf("no event expected, got %d", len(*got))
	}
}

func TestFollowUpDueRejectsMalformedPayloads(t *testing.T) {
	w := newWorker(fakeActions{}, nil, logger.Discard())
	err := w.handleFollowUpDue(context.Background(), followUpTask(t, FollowUpDuePayload{LeadID: "nope"}))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	err = w.handleFollowUpDue(context.Background(), asynq.NewTask(TaskFollowUpDue, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for invalid json, got %v", err)
	}
}

func TestFollowUpDueReturnsReaderErrors(t *testing.T) {
	w := newWorker(fakeActions{err: errors.New("db down")}, nil, logger.Discard())
	payload := FollowUpDuePayload{LeadID: uuid.NewString(), ActionID: uuid.NewString(), OrganizationID: uuid.NewString()}
	if err := w.handleFollowUpDue(context.Background(), followUpTask(t, payload)); err == nil {
		t.Fatalf("expected the reader error so the task is retried")
	}
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache.internal:6380/2", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected options: %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("expected insecure TLS config")
	}
}
