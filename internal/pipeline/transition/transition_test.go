package transition

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/pipeline/board"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/logger"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type statusCall struct {
	leadID uuid.UUID
	status domain.Status
	at     time.Time
}

type fakeUpdater struct {
	err   error
	calls []statusCall
	// seen captures the cached board at the time of the remote call.
	seen  []domain.Column
	cache *board.Cache
	key   string
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, leadID uuid.UUID, status domain.Status, at time.Time) error {
	f.calls = append(f.calls, statusCall{leadID: leadID, status: status, at: at})
	if f.cache != nil {
		f.seen, _ = f.cache.Get(f.key)
	}
	return f.err
}

type recordingNotifier struct {
	notices []notice.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, _ uuid.UUID, n notice.Notice) {
	r.notices = append(r.notices, n)
}

type fakeActions struct {
	err     error
	actions []domain.Action
}

func (f *fakeActions) AppendAction(_ context.Context, _ uuid.UUID, action domain.Action) error {
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, action)
	return nil
}

type fakeFollowUps struct {
	scheduled []uuid.UUID
}

func (f *fakeFollowUps) ScheduleFollowUp(_ context.Context, _, actionID, _ uuid.UUID, _ string, _ time.Time) error {
	f.scheduled = append(f.scheduled, actionID)
	return nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func boardWith(leadID uuid.UUID) []domain.Column {
	columns, _ := domain.GroupByStatus(domain.PipelinePurchase, []domain.Lead{
		{ID: leadID, Name: "Alice Martin", Status: domain.StatusNew, PipelineType: domain.PipelinePurchase, Tags: []string{"Vip"}},
		{ID: uuid.New(), Name: "Bruno Petit", Status: domain.StatusVisit, PipelineType: domain.PipelinePurchase},
	})
	return columns
}

func newOrchestrator(cache *board.Cache, updater StatusUpdater, notifier notice.Notifier) *Orchestrator {
	o := NewOrchestrator(cache, updater, notifier, logger.Discard())
	o.now = func() time.Time { return fixedNow }
	return o
}

func TestMoveToSameColumnIsNoOp(t *testing.T) {
	cache := board.NewCache(0)
	leadID := uuid.New()
	cache.Put("k", boardWith(leadID))
	before, _ := cache.Get("k")

	updater := &fakeUpdater{}
	notifier := &recordingNotifier{}
	result, err := newOrchestrator(cache, updater, notifier).Move(context.Background(), MoveRequest{
		Key: "k", LeadID: leadID, LeadName: "Alice Martin",
		PipelineType: domain.PipelinePurchase, From: domain.StatusNew, To: domain.StatusNew,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != OutcomeNoOp {
		t.Fatalf("outcome = %s, want noop", result.Outcome)
	}
	if len(updater.calls) != 0 {
		t.Fatalf("no remote call expected, got %d", len(updater.calls))
	}
	if len(notifier.notices) != 0 {
		t.Fatalf("no notice expected")
	}
	after, _ := cache.Get("k")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("cache mutated (-before +after):\n%s", diff)
	}
	want := []Phase{PhaseIdle, PhaseDragging, PhaseDropped, PhaseIdle}
	if diff := cmp.Diff(want, result.Phases); diff != "" {
		t.Fatalf("phases (-want +got):\n%s", diff)
	}
}

func TestMoveCommitsAndInvalidates(t *testing.T) {
	cache := board.NewCache(0)
	leadID := uuid.New()
	cache.Put("k", boardWith(leadID))

	updater := &fakeUpdater{cache: cache, key: "k"}
	notifier := &recordingNotifier{}
	result, err := newOrchestrator(cache, updater, notifier).Move(context.Background(), MoveRequest{
		Key: "k", LeadID: leadID, LeadName: "Alice Martin",
		PipelineType: domain.PipelinePurchase, From: domain.StatusNew, To: domain.StatusContacted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeCommitted {
		t.Fatalf("outcome = %s, want committed", result.Outcome)
	}

	if len(updater.calls) != 1 || updater.calls[0].status != domain.StatusContacted || !updater.calls[0].at.Equal(fixedNow) {
		t.Fatalf("unexpected remote calls: %+v", updater.calls)
	}

	// the optimistic move is visible before the remote call resolves
	if len(updater.seen) < 2 || len(updater.seen[0].Items) != 0 || len(updater.seen[1].Items) != 1 {
		t.Fatalf("optimistic move not applied before the remote call: %+v", updater.seen)
	}
	if updater.seen[1].Items[0].Status != domain.StatusContacted {
		t.Fatalf("moved item keeps its old status")
	}

	if _, ok := cache.Get("k"); ok {
		t.Fatalf("commit must invalidate the board")
	}
	if len(notifier.notices) != 1 || notifier.notices[0].Variant != notice.VariantDefault {
		t.Fatalf("expected one success notice, got %+v", notifier.notices)
	}
	if !strings.Contains(notifier.notices[0].Description, "Alice Martin") || !strings.Contains(notifier.notices[0].Description, "Contacté") {
		t.Fatalf("notice must name the lead and the new status: %q", notifier.notices[0].Description)
	}
	want := []Phase{PhaseIdle, PhaseDragging, PhaseDropped, PhaseMutating, PhaseCommitted, PhaseIdle}
	if diff := cmp.Diff(want, result.Phases); diff != "" {
		t.Fatalf("phases (-want +got):\n%s", diff)
	}
}

func TestMoveFailureRestoresSnapshot(t *testing.T) {
	cache := board.NewCache(0)
	leadID := uuid.New()
	cache.Put("k", boardWith(leadID))
	before, _ := cache.Get("k")

	updater := &fakeUpdater{err: errors.New("connection reset"), cache: cache, key: "k"}
	notifier := &recordingNotifier{}
	result, err := newOrchestrator(cache, updater, notifier).Move(context.Background(), MoveRequest{
		Key: "k", LeadID: leadID, LeadName: "Alice Martin",
		PipelineType: domain.PipelinePurchase, From: domain.StatusNew, To: domain.StatusSigned,
	})

	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected an unavailable error, got %v", err)
	}
	if result.Outcome != OutcomeRolledBack {
		t.Fatalf("outcome = %s, want rolled_back", result.Outcome)
	}

	after, ok := cache.Get("k")
	if !ok {
		t.Fatalf("rollback must keep the board cached")
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("board differs from the snapshot (-before +after):\n%s", diff)
	}
	if len(notifier.notices) != 1 || notifier.notices[0].Variant != notice.VariantDestructive {
		t.Fatalf("expected one destructive notice, got %+v", notifier.notices)
	}
	if !strings.Contains(notifier.notices[0].Description, "Alice Martin") {
		t.Fatalf("failure notice must name the lead")
	}
	want := []Phase{PhaseIdle, PhaseDragging, PhaseDropped, PhaseMutating, PhaseRolledBack, PhaseIdle}
	if diff := cmp.Diff(want, result.Phases); diff != "" {
		t.Fatalf("phases (-want +got):\n%s", diff)
	}
}

func TestMoveRejectsStatusOutsidePipeline(t *testing.T) {
	cache := board.NewCache(0)
	updater := &fakeUpdater{}
	result, err := newOrchestrator(cache, updater, nil).Move(context.Background(), MoveRequest{
		Key: "k", LeadID: uuid.New(),
		PipelineType: domain.PipelineRental, From: domain.StatusNew, To: domain.StatusProposal,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if result.Outcome != OutcomeRejected {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeRejected)
	}
	if len(updater.calls) != 0 {
		t.Fatalf("no remote call expected")
	}
}

func TestMoveWithoutCachedBoardStillUpdates(t *testing.T) {
	cache := board.NewCache(0)
	updater := &fakeUpdater{}
	result, err := newOrchestrator(cache, updater, nil).Move(context.Background(), MoveRequest{
		Key: "missing", LeadID: uuid.New(),
		PipelineType: domain.PipelineOwner, From: domain.StatusNewContact, To: domain.StatusQualification,
	})
	if err != nil || result.Outcome != OutcomeCommitted {
		t.Fatalf("expected commit, got %s / %v", result.Outcome, err)
	}
	if len(updater.calls) != 1 {
		t.Fatalf("expected the remote update to run")
	}
}

func TestPhaseTable(t *testing.T) {
	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseIdle, PhaseDragging, true},
		{PhaseIdle, PhaseMutating, false},
		{PhaseDropped, PhaseIdle, true},
		{PhaseMutating, PhaseIdle, false},
		{PhaseCommitted, PhaseRolledBack, false},
		{PhaseRolledBack, PhaseIdle, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func newTransitioner(actions ActionWriter, followUps FollowUpScheduler, notifier notice.Notifier) *PipelineTransitioner {
	p := NewPipelineTransitioner(actions, followUps, notifier, logger.Discard())
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestPipelineChangeKeepsValidStatus(t *testing.T) {
	actions := &fakeActions{}
	notifier := &recordingNotifier{}
	applied := 0

	result := newTransitioner(actions, nil, notifier).HandlePipelineTypeTransition(context.Background(), PipelineTypeChange{
		LeadID: uuid.New(), LeadName: "Alice Martin", Status: domain.StatusVisit,
		From: domain.PipelinePurchase, To: domain.PipelineRental,
	}, func(context.Context, domain.Status) error {
		applied++
		return nil
	})

	if applied != 0 || result.StatusChanged || result.Status != domain.StatusVisit {
		t.Fatalf("status must stay Visit, got %+v (applied %d)", result, applied)
	}
	if len(notifier.notices) != 0 {
		t.Fatalf("no notice expected for a valid status")
	}
	if len(actions.actions) != 1 {
		t.Fatalf("expected one requalification action, got %d", len(actions.actions))
	}
	action := actions.actions[0]
	if action.Type != domain.ActionCall || action.Status != domain.ActionScheduled || !action.ScheduledAt.Equal(fixedNow) {
		t.Fatalf("unexpected action: %+v", action)
	}
	if action.Note != RequalificationNote(domain.PipelinePurchase, domain.PipelineRental) {
		t.Fatalf("unexpected note: %q", action.Note)
	}
}

func TestPipelineChangeCorrectsInvalidStatus(t *testing.T) {
	actions := &fakeActions{}
	notifier := &recordingNotifier{}
	var applied []domain.Status

	result := newTransitioner(actions, nil, notifier).HandlePipelineTypeTransition(context.Background(), PipelineTypeChange{
		LeadID: uuid.New(), LeadName: "Alice Martin", Status: domain.StatusProposal,
		From: domain.PipelinePurchase, To: domain.PipelineRental,
	}, func(_ context.Context, s domain.Status) error {
		applied = append(applied, s)
		return nil
	})

	if len(applied) != 1 || applied[0] != domain.StatusNew {
		t.Fatalf("expected the rental default to be applied, got %v", applied)
	}
	if !result.StatusChanged || result.Status != domain.StatusNew {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.notices))
	}
	desc := notifier.notices[0].Description
	if !strings.Contains(desc, "Offre") || !strings.Contains(desc, "Nouveau") {
		t.Fatalf("notice must name both statuses: %q", desc)
	}
	if len(actions.actions) != 1 {
		t.Fatalf("expected a requalification action")
	}
}

func TestPipelineChangeToSameTypeIsNoOp(t *testing.T) {
	actions := &fakeActions{}
	result := newTransitioner(actions, nil, nil).HandlePipelineTypeTransition(context.Background(), PipelineTypeChange{
		Status: domain.StatusVisit, From: domain.PipelineRental, To: domain.PipelineRental,
	}, func(context.Context, domain.Status) error {
		t.Fatalf("applyStatus must not run")
		return nil
	})
	if result.Changed || len(actions.actions) != 0 {
		t.Fatalf("expected no-op, got %+v", result)
	}
}

func TestActionFailureDoesNotUndoStatusCorrection(t *testing.T) {
	actions := &fakeActions{err: errors.New("insert failed")}
	notifier := &recordingNotifier{}

	result := newTransitioner(actions, nil, notifier).HandlePipelineTypeTransition(context.Background(), PipelineTypeChange{
		LeadID: uuid.New(), LeadName: "Alice Martin", Status: domain.StatusProposal,
		From: domain.PipelinePurchase, To: domain.PipelineOwner,
	}, func(context.Context, domain.Status) error { return nil })

	if result.Status != domain.StatusNewContact || !result.StatusChanged {
		t.Fatalf("status correction must stand, got %+v", result)
	}
	if result.Action != nil {
		t.Fatalf("no action expected")
	}
	if len(notifier.notices) != 2 || notifier.notices[1].Variant != notice.VariantDestructive {
		t.Fatalf("expected correction notice then destructive notice, got %+v", notifier.notices)
	}
}

func TestStatusFailureStillCreatesAction(t *testing.T) {
	actions := &fakeActions{}
	notifier := &recordingNotifier{}

	result := newTransitioner(actions, nil, notifier).HandlePipelineTypeTransition(context.Background(), PipelineTypeChange{
		LeadID: uuid.New(), LeadName: "Alice Martin", Status: domain.StatusProposal,
		From: domain.PipelinePurchase, To: domain.PipelineRental,
	}, func(context.Context, domain.Status) error { return errors.New("timeout") })

	if result.StatusChanged || result.Status != domain.StatusProposal {
		t.Fatalf("status must be reported unchanged, got %+v", result)
	}
	if len(actions.actions) != 1 {
		t.Fatalf("action step must still run")
	}
	if len(notifier.notices) != 1 || notifier.notices[0].Variant != notice.VariantDestructive {
		t.Fatalf("expected a destructive notice, got %+v", notifier.notices)
	}
}

func TestFollowUpIsScheduledForTheAction(t *testing.T) {
	actions := &fakeActions{}
	followUps := &fakeFollowUps{}

	result := newTransitioner(actions, followUps, nil).HandlePipelineTypeTransition(context.Background(), PipelineTypeChange{
		LeadID: uuid.New(), Status: domain.StatusNew,
		From: domain.PipelineRental, To: domain.PipelinePurchase,
	}, func(context.Context, domain.Status) error { return nil })

	if result.Action == nil || len(followUps.scheduled) != 1 || followUps.scheduled[0] != result.Action.ID {
		t.Fatalf("expected a reminder for the new action, got %v", followUps.scheduled)
	}
}
