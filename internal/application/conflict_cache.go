package application

import (
	"strings"
	"sync"
	"time"
)

// conflictCache stores recent live conflict results so repeated queries for
// the same slot skip the detector while bookings remain unchanged.
type conflictCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]conflictCacheEntry
	generation uint64
}

type conflictCacheEntry struct {
	conflicts []Conflict
	expiresAt time.Time
}

func newConflictCache(ttl time.Duration, maxEntries int, now func() time.Time) *conflictCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &conflictCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]conflictCacheEntry),
	}
}

func (c *conflictCache) Get(key string) ([]Conflict, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneConflicts(entry.conflicts), true
}

// Generation identifies the current set of bookings. Read it before querying
// and hand it to Store.
func (c *conflictCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Store caches conflicts computed at generation. Results computed before the
// latest Invalidate are dropped and Store reports false.
func (c *conflictCache) Store(key string, conflicts []Conflict, generation uint64) bool {
	if c == nil {
		return false
	}
	cloned := cloneConflicts(conflicts)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = conflictCacheEntry{conflicts: cloned, expiresAt: expiry}
	return true
}

func (c *conflictCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]conflictCacheEntry)
	c.generation++
	c.mu.Unlock()
}

func (c *conflictCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *conflictCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneConflicts(conflicts []Conflict) []Conflict {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]Conflict, len(conflicts))
	copy(out, conflicts)
	return out
}

// conflictCacheKey is built from the resolved venue and UTC interval, so
// equivalent raw inputs share an entry.
func conflictCacheKey(venueID string, start, end time.Time, excludeID string) string {
	builder := strings.Builder{}
	builder.WriteString(venueID)
	builder.WriteString("|")
	builder.WriteString(start.UTC().Format(time.RFC3339))
	builder.WriteString("|")
	builder.WriteString(end.UTC().Format(time.RFC3339))
	builder.WriteString("|")
	builder.WriteString(excludeID)
	return builder.String()
}
