package reactiveschema

import (
	"hash/fnv"
	"sync"

	"github.com/goccy/go-json"
)

// CacheKey identifies one cached evaluation result (spec.md §4.I): the
// evaluation key (or table path), a content hash of the dependency values
// that fed it, and the owning evaluation-data instance id, so a clone's
// still-shared document doesn't collide with a divergent sibling's cache.
type CacheKey struct {
	EvaluationKey string
	ValueHash     uint64
	InstanceID    int64
}

// ComputeValueHash hashes a dependency-value slice into the content-hash
// half of a CacheKey. The sentinel 0 (returned for a dependency-free key,
// or if marshalling ever fails) matches every other dependency-free key for
// the same evaluation, which is the desired behaviour: a node with no
// dependencies has exactly one cache entry regardless of unrelated data
// changes.
func ComputeValueHash(values []any) uint64 {
	if len(values) == 0 {
		return 0
	}
	data, err := json.Marshal(values)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// CacheStats reports the counters exposed by cache_stats() (spec.md §6).
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// ResultCache is the concurrent map described in spec.md §4.I: get/insert/
// remove/retain/clear, with relaxed hit/miss counters. Grounded on
// original_source/src/eval_cache.rs / rlogic/cache.rs's fingerprint-keyed
// map shape, rebuilt here over Go's sync.RWMutex rather than a lock-free
// structure since this engine's single process-local exclusion lock already
// serialises the calls that matter (spec.md §5).
type ResultCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]any
	hits    uint64
	misses  uint64
}

// NewResultCache builds an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{entries: map[CacheKey]any{}}
}

// Get looks up key, bumping the hit or miss counter.
func (c *ResultCache) Get(key CacheKey) (any, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return v, ok
}

// Insert stores value under key, overwriting any existing entry.
func (c *ResultCache) Insert(key CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Remove deletes key if present; a no-op otherwise.
func (c *ResultCache) Remove(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Retain keeps only entries for which keep returns true (spec.md §4.G
// step 1's "purge cache entries whose dependency set intersects any
// canonicalised changed path").
func (c *ResultCache) Retain(keep func(CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if !keep(k) {
			delete(c.entries, k)
		}
	}
}

// Clear empties the cache and resets its counters.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[CacheKey]any{}
	c.hits, c.misses = 0, 0
}

// Len reports the current entry count.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports a snapshot of the hit/miss counters and current size.
func (c *ResultCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}
