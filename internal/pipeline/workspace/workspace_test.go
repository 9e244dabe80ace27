package workspace

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"estate_crm_backend/internal/pipeline/filter"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/kvstore"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

func TestSelectionChangeUpdatesAgentFilter(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(kvstore.NewMemory(), "crm", nil, logger.Discard())
	ws := reg.Get(ctx, uuid.New())

	agent := "agent-7"
	ws.Selection.Set(ctx, &agent, "board")

	got := ws.Filters.Filters().AssignedTo
	if got == nil || *got != agent {
		t.Fatalf("expected agent filter %q, got %v", agent, got)
	}

	ws.Selection.Set(ctx, nil, "board")
	if ws.Filters.Filters().AssignedTo != nil {
		t.Fatalf("expected agent filter to be cleared")
	}
}

func TestGetReturnsSameWorkspace(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(kvstore.NewMemory(), "crm", nil, logger.Discard())
	userID := uuid.New()

	if reg.Get(ctx, userID) != reg.Get(ctx, userID) {
		t.Fatalf("expected the cached workspace")
	}
	if reg.Get(ctx, userID) == reg.Get(ctx, uuid.New()) {
		t.Fatalf("users must not share a workspace")
	}
}

func TestWritesFromAnotherInstanceAreVisible(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	replicaA := NewRegistry(kv, "crm", nil, logger.Discard())
	replicaB := NewRegistry(kv, "crm", nil, logger.Discard())
	userID := uuid.New()

	// B holds the workspace in memory before A writes.
	if got := replicaB.Get(ctx, userID).Filters.Filters(); got.Location != "" {
		t.Fatalf("unexpected initial filters: %+v", got)
	}

	agent := "agent-5"
	_, err := replicaA.Get(ctx, userID).SaveFilters(ctx, "filters", func(current filter.Spec) (filter.Spec, error) {
		current.Location = "Nice"
		current.AssignedTo = &agent
		return current, nil
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	ws := replicaB.Get(ctx, userID)
	if got := ws.Filters.Filters(); got.Location != "Nice" {
		t.Fatalf("filters saved on another instance not visible: %+v", got)
	}
	if got := ws.Selection.Selected(); got == nil || *got != agent {
		t.Fatalf("selection saved on another instance not visible: %v", got)
	}
}

func TestSaveFiltersMovesSelection(t *testing.T) {
	ctx := context.Background()
	ws := NewRegistry(kvstore.NewMemory(), "crm", nil, logger.Discard()).Get(ctx, uuid.New())

	agent := "agent-2"
	stored, err := ws.SaveFilters(ctx, "filters", func(current filter.Spec) (filter.Spec, error) {
		current.AssignedTo = &agent
		return current, nil
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stored.AssignedTo == nil || *stored.AssignedTo != agent {
		t.Fatalf("stored agent filter = %v", stored.AssignedTo)
	}
	if got := ws.Selection.Selected(); got == nil || *got != agent {
		t.Fatalf("selection = %v, want %q", got, agent)
	}

	cleared := ws.ClearFilters(ctx, "filters")
	if cleared.IsActive() || ws.Selection.Selected() != nil {
		t.Fatalf("clear must reset filters and selection")
	}
}

func TestSaveFiltersStoresNothingOnError(t *testing.T) {
	ctx := context.Background()
	ws := NewRegistry(kvstore.NewMemory(), "crm", nil, logger.Discard()).Get(ctx, uuid.New())

	_, err := ws.SaveFilters(ctx, "filters", func(current filter.Spec) (filter.Spec, error) {
		current.Location = "ignored"
		return current, apperr.Validation("invalid filters")
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected the decode error, got %v", err)
	}
	if got := ws.Filters.Filters(); got.Location != "" {
		t.Fatalf("nothing must be stored, got %+v", got)
	}
}

func TestConcurrentSavesKeepFiltersAndSelectionInStep(t *testing.T) {
	ctx := context.Background()
	ws := NewRegistry(kvstore.NewMemory(), "crm", nil, logger.Discard()).Get(ctx, uuid.New())

	var wg sync.WaitGroup
	for _, a := range []string{"agent-a", "agent-b", "agent-c", "agent-d"} {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			_, _ = ws.SaveFilters(ctx, "filters", func(current filter.Spec) (filter.Spec, error) {
				current.AssignedTo = &agent
				return current, nil
			})
		}(a)
	}
	wg.Wait()

	filtered := ws.Filters.Filters().AssignedTo
	selected := ws.Selection.Selected()
	if filtered == nil || selected == nil || *filtered != *selected {
		t.Fatalf("filters and selection diverged: filter=%v selection=%v", filtered, selected)
	}
}

type gatedKV struct {
	kvstore.Store
	prefix  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedKV) Get(ctx context.Context, key string) (string, error) {
	if strings.HasPrefix(key, g.prefix) {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Store.Get(ctx, key)
}

func TestSlowLoadDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	slowUser := uuid.New()
	kv := &gatedKV{
		Store:   kvstore.NewMemory(),
		prefix:  kvstore.Key("crm", "user", slowUser.String()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg := NewRegistry(kv, "crm", nil, logger.Discard())

	slowDone := make(chan struct{})
	go func() {
		reg.Get(ctx, slowUser)
		close(slowDone)
	}()
	<-kv.entered

	otherDone := make(chan struct{})
	go func() {
		reg.Get(ctx, uuid.New())
		close(otherDone)
	}()

	select {
	case <-otherDone:
	case <-time.After(time.Second):
		t.Fatalf("another user's Get waited for a slow load")
	}
	close(kv.release)
	<-slowDone
}

func TestSweepReleasesIdleWorkspaces(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	reg := NewRegistry(kv, "crm", nil, logger.Discard())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	idle, active := uuid.New(), uuid.New()
	agent := "agent-3"
	reg.Get(ctx, idle).Selection.Set(ctx, &agent, "board")

	now = now.Add(20 * time.Minute)
	reg.Get(ctx, active)

	if removed := reg.Sweep(10 * time.Minute); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected only the active workspace to remain, got %d", reg.Len())
	}

	ws := reg.Get(ctx, idle)
	if got := ws.Selection.Selected(); got == nil || *got != agent {
		t.Fatalf("selection not restored: %v", got)
	}
	if got := ws.Filters.Filters().AssignedTo; got == nil || *got != agent {
		t.Fatalf("agent filter not restored: %v", got)
	}
}

func TestNamespaceIsPerUser(t *testing.T) {
	reg := NewRegistry(kvstore.NewMemory(), "crm", nil, logger.Discard())
	userID := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	if got, want := reg.Namespace(userID), "crm:user:7c9e6679-7425-40de-944b-e07fc1f90ae7"; got != want {
		t.Fatalf("namespace = %q, want %q", got, want)
	}
}
