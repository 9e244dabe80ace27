// Package workspace assembles the per-user board preferences: the persisted
// filter specification and the shared agent selection, kept in step.
package workspace

import (
	"context"
	"sync"
	"time"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/pipeline/filter"
	"estate_crm_backend/internal/pipeline/filterstore"
	"estate_crm_backend/internal/pipeline/selection"
	"estate_crm_backend/platform/kvstore"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Workspace is the preference state of one user.
type Workspace struct {
	UserID    uuid.UUID
	Filters   *filterstore.Store
	Selection *selection.Store

	// saveMu serializes filter writes so read-modify-write saves of one
	// user never interleave.
	saveMu sync.Mutex
}

// SaveFilters stores the result of fn, called with the current filters,
// and moves the agent selection to its assignedTo criterion. Nothing is
// stored when fn fails.
func (w *Workspace) SaveFilters(ctx context.Context, source string, fn func(current filter.Spec) (filter.Spec, error)) (filter.Spec, error) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	next, err := fn(w.Filters.Filters())
	if err != nil {
		return filter.Spec{}, err
	}
	stored := w.Filters.Set(ctx, next)
	if w.Selection.Set(ctx, stored.AssignedTo, source) {
		stored = w.Filters.Filters()
	}
	return stored, nil
}

// ClearFilters clears the agent selection and resets the filters to their
// defaults, removing the persisted entry.
func (w *Workspace) ClearFilters(ctx context.Context, source string) filter.Spec {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.Selection.Set(ctx, nil, source)
	return w.Filters.Clear(ctx)
}

func (w *Workspace) reload(ctx context.Context) {
	w.Filters.Load(ctx)
	w.Selection.Load(ctx)
}

type entry struct {
	ws       *Workspace
	lastUsed time.Time
}

// Registry hands out one Workspace per user. Every Get refreshes the
// workspace from storage, so preferences written through another API
// instance are picked up. Idle workspaces are dropped by Sweep.
type Registry struct {
	kv     kvstore.Store
	prefix string
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	spaces map[uuid.UUID]*entry
}

// NewRegistry creates a registry storing preferences under prefix.
func NewRegistry(kv kvstore.Store, prefix string, bus events.Bus, log *logger.Logger) *Registry {
	return &Registry{
		kv:     kv,
		prefix: prefix,
		bus:    bus,
		log:    log,
		now:    time.Now,
		spaces: make(map[uuid.UUID]*entry),
	}
}

// Namespace returns the storage namespace of userID.
func (r *Registry) Namespace(userID uuid.UUID) string {
	return kvstore.Key(r.prefix, "user", userID.String())
}

// Get returns the workspace of userID with its state freshly loaded.
// Storage is read outside the registry lock.
func (r *Registry) Get(ctx context.Context, userID uuid.UUID) *Workspace {
	r.mu.Lock()
	e, ok := r.spaces[userID]
	if ok {
		e.lastUsed = r.now()
	}
	r.mu.Unlock()

	if ok {
		e.ws.reload(ctx)
		return e.ws
	}

	ws := r.open(ctx, userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.spaces[userID]; ok {
		e.lastUsed = r.now()
		return e.ws
	}
	r.spaces[userID] = &entry{ws: ws, lastUsed: r.now()}
	return ws
}

func (r *Registry) open(ctx context.Context, userID uuid.UUID) *Workspace {
	ns := r.Namespace(userID)
	filters := filterstore.New(r.kv, ns, r.log)
	sel := selection.New(userID, r.kv, ns, r.bus, r.log)

	ws := &Workspace{UserID: userID, Filters: filters, Selection: sel}
	ws.reload(ctx)
	sel.Subscribe(func(ctx context.Context, change selection.Change) {
		filters.UpdateAgentFilter(ctx, change.SelectedAgent)
	})
	return ws
}

// Len returns the number of workspaces held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Sweep forgets workspaces unused for longer than idle. Their state stays
// in storage and is reloaded by the next Get.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	removed := 0
	for userID, e := range r.spaces {
		if e.lastUsed.Before(cutoff) {
			delete(r.spaces, userID)
			removed++
		}
	}
	if removed > 0 {
		r.log.Debug("idle workspaces released", "count", removed)
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}
