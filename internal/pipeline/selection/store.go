// Package selection holds the agent a user has selected on the pipeline
// board. The selection is shared by every consumer in the user's workspace:
// listeners are notified synchronously and each accepted change is
// broadcast on the event bus.
package selection

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/kvstore"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// StorageKey is the fixed key, inside a user namespace, that holds the
// selected agent.
const StorageKey = "selected_agent"

// Change describes one accepted selection update.
type Change struct {
	SelectedAgent *string
	Source        string
}

// Listener is called synchronously for every accepted change. A listener
// that writes back to the store must pass on the ctx it was given; Set
// recognises it and drops the echo.
type Listener func(ctx context.Context, change Change)

type propagatingKey struct{}

// withPropagating marks ctx as carrying a change of s to its listeners.
func withPropagating(ctx context.Context, s *Store) context.Context {
	stores, _ := ctx.Value(propagatingKey{}).([]*Store)
	return context.WithValue(ctx, propagatingKey{}, append(slices.Clip(stores), s))
}

func propagating(ctx context.Context, s *Store) bool {
	stores, _ := ctx.Value(propagatingKey{}).([]*Store)
	return slices.Contains(stores, s)
}

// Store is the shared selection container for one user.
type Store struct {
	userID uuid.UUID
	kv     kvstore.Store
	key    string
	bus    events.Bus
	log    *logger.Logger

	// setMu serializes changes: a Set from another request waits for the
	// one in flight instead of being lost.
	setMu sync.Mutex

	mu        sync.Mutex
	selected  *string
	listeners map[int]Listener
	nextID    int

	// updating is set while a change is being applied and propagated.
	updating atomic.Bool
}

// New creates an empty selection store for userID. bus may be nil.
func New(userID uuid.UUID, kv kvstore.Store, namespace string, bus events.Bus, log *logger.Logger) *Store {
	return &Store{
		userID:    userID,
		kv:        kv,
		key:       kvstore.Key(namespace, StorageKey),
		bus:       bus,
		log:       log,
		listeners: make(map[int]Listener),
	}
}

// Load restores the persisted selection. Failures leave the selection empty.
// While a change is in flight the current selection is kept.
func (s *Store) Load(ctx context.Context) *string {
	if !s.setMu.TryLock() {
		return s.Selected()
	}
	defer s.setMu.Unlock()

	raw, err := s.kv.Get(ctx, s.key)
	var selected *string
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
	case err != nil:
		s.log.PreferenceError("load", s.key, err)
	case raw != "":
		selected = &raw
	}

	s.mu.Lock()
	s.selected = selected
	s.mu.Unlock()
	return clonePtr(selected)
}

// Selected returns the current selection, nil meaning "all agents".
func (s *Store) Selected() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePtr(s.selected)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Updating reports whether a change is currently being propagated.
func (s *Store) Updating() bool {
	return s.updating.Load()
}

// Set changes the selection on behalf of source. Concurrent calls are
// applied one after the other. It returns false when the call was ignored:
// either the value is unchanged or the call is an echo made from within
// this store's own listeners.
func (s *Store) Set(ctx context.Context, agent *string, source string) bool {
	if propagating(ctx, s) {
		s.log.Debug("agent selection echo ignored", "source", source)
		return false
	}
	s.setMu.Lock()
	defer s.setMu.Unlock()

	s.updating.Store(true)
	defer s.updating.Store(false)

	if agent != nil && *agent == "" {
		agent = nil
	}

	s.mu.Lock()
	if equalPtr(s.selected, agent) {
		s.mu.Unlock()
		return false
	}
	s.selected = clonePtr(agent)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, id := range sortedIDs(s.listeners) {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	s.persist(ctx, agent)

	ctx = withPropagating(ctx, s)
	change := Change{SelectedAgent: clonePtr(agent), Source: source}
	for _, fn := range listeners {
		fn(ctx, change)
	}

	if s.bus != nil {
		err := s.bus.PublishSync(ctx, events.AgentSelectionChanged{
			BaseEvent:     events.NewBaseEvent(),
			UserID:        s.userID,
			SelectedAgent: clonePtr(agent),
			Source:        source,
		})
		if err != nil {
			s.log.Warn("agent selection broadcast failed", "error", err, "userId", s.userID)
		}
	}
	return true
}

func (s *Store) persist(ctx context.Context, agent *string) {
	if agent == nil {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			s.log.PreferenceError("delete", s.key, err)
		}
		return
	}
	if err := s.kv.Set(ctx, s.key, *agent); err != nil {
		s.log.PreferenceError("save", s.key, err)
	}
}

func sortedIDs(m map[int]Listener) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
