// Package board holds the server-side read model of pipeline boards and the
// transactional wrapper used for optimistic status changes.
package board

import (
	"strings"
	"sync"
	"time"

	"estate_crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// KeyPrefix is the prefix of every board cache key.
const KeyPrefix = "pipelineData"

// Key returns the cache key of an organization's board for pipelineType.
func Key(organizationID uuid.UUID, pipelineType domain.PipelineType) string {
	return KeyPrefix + ":" + organizationID.String() + ":" + string(pipelineType)
}

// cacheEntry holds a cached board with expiration.
type cacheEntry struct {
	columns   []domain.Column
	expiresAt time.Time
}

// Cache stores boards by key. Values are deep-copied on the way in and out,
// so callers never share column slices with the cache. Mutations of one key
// through Begin are serialized.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	locks   map[string]*keyLock
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache whose entries expire after ttl. A ttl of zero
// or less keeps entries until they are invalidated.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		locks:   make(map[string]*keyLock),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the board stored under key.
func (c *Cache) Get(key string) ([]domain.Column, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return domain.CloneColumns(entry.columns), true
}

// Put stores a copy of columns under key.
func (c *Cache) Put(key string, columns []domain.Column) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, domain.CloneColumns(columns))
}

// Invalidate drops the board stored under key so the next read refetches it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix drops every board whose key starts with prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) putLocked(key string, columns []domain.Column) {
	entry := cacheEntry{columns: columns}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = entry
}

// keyLock serializes transactions on one key. refs counts the holders and
// waiters; the lock is dropped from the cache when it reaches zero.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (c *Cache) lockKey(key string) *keyLock {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return l
}

func (c *Cache) unlockKey(key string, l *keyLock) {
	l.mu.Unlock()

	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
	c.mu.Unlock()
}
