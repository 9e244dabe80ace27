package board

import (
	"estate_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// Tx is an optimistic mutation of one cached board. Begin captures a deep
// snapshot; Apply rewrites the cached board; Commit or Rollback ends the
// transaction and releases the key.
type Tx struct {
	cache *Cache
	key   string
	lock  *keyLock

	snapshot []domain.Column
	present  bool
	done     bool
}

// Begin starts a transaction on key. It blocks while another transaction
// on the same key is open.
func (c *Cache) Begin(key string) *Tx {
	lock := c.lockKey(key)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	return &Tx{
		cache:    c,
		key:      key,
		lock:     lock,
		snapshot: domain.CloneColumns(entry.columns),
		present:  ok,
	}
}

// Key returns the key the transaction operates on.
func (t *Tx) Key() string {
	return t.key
}

// Snapshot returns a copy of the board as it was when the transaction began.
// The second value is false when nothing was cached.
func (t *Tx) Snapshot() ([]domain.Column, bool) {
	return domain.CloneColumns(t.snapshot), t.present
}

// Apply replaces the cached board with fn's result. fn receives a copy of
// the current board. When nothing is cached under the key Apply does
// nothing and returns false.
func (t *Tx) Apply(fn func([]domain.Column) []domain.Column) bool {
	if t.done {
		return false
	}
	c := t.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[t.key]
	if !ok {
		return false
	}
	entry.columns = domain.CloneColumns(fn(domain.CloneColumns(entry.columns)))
	c.entries[t.key] = entry
	return true
}

// Commit ends the transaction and invalidates the key so the next read
// reconciles against the source of truth.
func (t *Tx) Commit() {
	if t.done {
		return
	}
	t.done = true
	t.cache.Invalidate(t.key)
	t.cache.unlockKey(t.key, t.lock)
}

// Rollback restores the snapshot taken by Begin and ends the transaction.
func (t *Tx) Rollback() {
	if t.done {
		return
	}
	t.done = true

	c := t.cache
	c.mu.Lock()
	if t.present {
		entry := c.entries[t.key]
		entry.columns = domain.CloneColumns(t.snapshot)
		if entry.expiresAt.IsZero() && c.ttl > 0 {
			entry.expiresAt = c.now().Add(c.ttl)
		}
		c.entries[t.key] = entry
	} else {
		delete(c.entries, t.key)
	}
	c.mu.Unlock()

	c.unlockKey(t.key, t.lock)
}

// MoveItem returns a mutation that moves the lead leadID from the column
// with status from to the end of the column with status to, updating its
// status. Boards without the lead or the target column are returned
// unchanged.
func MoveItem(leadID uuid.UUID, from, to domain.Status) func([]domain.Column) []domain.Column {
	return func(columns []domain.Column) []domain.Column {
		src, dst := -1, -1
		for i, col := range columns {
			switch col.Status {
			case from:
				src = i
			case to:
				dst = i
			}
		}
		if src < 0 || dst < 0 {
			return columns
		}

		items := columns[src].Items
		for j, item := range items {
			if item.ID != leadID {
				continue
			}
			columns[src].Items = append(items[:j:j], items[j+1:]...)
			item.Status = to
			columns[dst].Items = append(columns[dst].Items, item)
			break
		}
		return columns
	}
}
