// Package filterstore keeps a user's board filter specification durable in
// the preferences store.
package filterstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"estate_crm_backend/internal/pipeline/filter"
	"estate_crm_backend/platform/kvstore"
	"estate_crm_backend/platform/logger"
)

// StorageKey is the fixed key, inside a user namespace, that holds the
// serialized filter specification.
const StorageKey = "pipeline_filters"

// Store is the in-memory filter specification of one user, written through
// to a kvstore.Store on every change. Storage failures are logged and never
// returned.
type Store struct {
	mu   sync.Mutex
	kv   kvstore.Store
	key  string
	spec filter.Spec
	log  *logger.Logger
}

// New creates a store for namespace holding the default specification.
// Call Load to restore the persisted copy.
func New(kv kvstore.Store, namespace string, log *logger.Logger) *Store {
	return &Store{
		kv:   kv,
		key:  kvstore.Key(namespace, StorageKey),
		spec: filter.Default(),
		log:  log,
	}
}

// Key returns the storage key used by this store.
func (s *Store) Key() string {
	return s.key
}

// Load replaces the in-memory specification with the persisted one,
// decoded field by field over the defaults. A missing or unreadable entry
// leaves the defaults in place.
func (s *Store) Load(ctx context.Context) filter.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := filter.Default()

	raw, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
	case err != nil:
		s.log.PreferenceError("load", s.key, err)
	default:
		decoded, issues, decodeErr := filter.Decode([]byte(raw))
		if decodeErr != nil {
			s.log.PreferenceError("decode", s.key, decodeErr)
			break
		}
		for _, issue := range issues {
			s.log.Debug("persisted filter field defaulted", "key", s.key, "field", issue.Field, "reason", issue.Reason)
		}
		spec = decoded
	}

	s.spec = spec
	return spec.Clone()
}

// Filters returns a copy of the current specification.
func (s *Store) Filters() filter.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec.Clone()
}

// Set replaces the specification and persists it.
func (s *Store) Set(ctx context.Context, spec filter.Spec) filter.Spec {
	return s.Update(ctx, func(filter.Spec) filter.Spec { return spec })
}

// Update applies fn to the current specification and persists the result.
// fn runs under the store lock, so concurrent updates never interleave.
func (s *Store) Update(ctx context.Context, fn func(filter.Spec) filter.Spec) filter.Spec {
	s.mu.Lock()
	next := fn(s.spec.Clone()).Clone()
	s.spec = next
	s.persist(ctx, next)
	s.mu.Unlock()
	return next.Clone()
}

// Clear resets the specification to defaults and removes the persisted
// entry entirely.
func (s *Store) Clear(ctx context.Context) filter.Spec {
	s.mu.Lock()
	s.spec = filter.Default()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.log.PreferenceError("delete", s.key, err)
	}
	s.mu.Unlock()
	return filter.Default()
}

// UpdateAgentFilter changes only the assignedTo criterion. A nil or empty
// agent removes it.
func (s *Store) UpdateAgentFilter(ctx context.Context, agent *string) filter.Spec {
	return s.Update(ctx, func(current filter.Spec) filter.Spec {
		if agent == nil || *agent == "" {
			current.AssignedTo = nil
			return current
		}
		a := *agent
		current.AssignedTo = &a
		return current
	})
}

func (s *Store) persist(ctx context.Context, spec filter.Spec) {
	data, err := json.Marshal(spec)
	if err != nil {
		s.log.PreferenceError("encode", s.key, err)
		return
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		s.log.PreferenceError("save", s.key, err)
	}
}
