package reactiveschema

import "testing"

func TestComputeValueHashDeterministicAndSensitive(t *testing.T) {
	h1 := ComputeValueHash([]any{1.0, "x", true})
	h2 := ComputeValueHash([]any{1.0, "x", true})
	if h1 != h2 {
		t.Fatalf("expected identical inputs to hash identically, got %d vs %d", h1, h2)
	}
	h3 := ComputeValueHash([]any{1.0, "y", true})
	if h1 == h3 {
		t.Fatalf("expected different inputs to hash differently")
	}
}

func TestComputeValueHashEmptyIsSentinelZero(t *testing.T) {
	if h := ComputeValueHash(nil); h != 0 {
		t.Errorf("ComputeValueHash(nil) = %d, want 0", h)
	}
	if h := ComputeValueHash([]any{}); h != 0 {
		t.Errorf("ComputeValueHash([]) = %d, want 0", h)
	}
}

func TestResultCacheGetInsertRemove(t *testing.T) {
	c := NewResultCache()
	key := CacheKey{EvaluationKey: "#/a", ValueHash: 1, InstanceID: 1}

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Insert(key, 42.0)
	v, ok := c.Get(key)
	if !ok || v != 42.0 {
		t.Fatalf("expected hit with 42.0, got %v, %v", v, ok)
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	c.Remove(key)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss after remove")
	}
}

func TestResultCacheRetain(t *testing.T) {
	c := NewResultCache()
	keep := CacheKey{EvaluationKey: "#/keep", ValueHash: 1, InstanceID: 1}
	drop := CacheKey{EvaluationKey: "#/drop", ValueHash: 1, InstanceID: 1}
	c.Insert(keep, 1.0)
	c.Insert(drop, 2.0)

	c.Retain(func(k CacheKey) bool { return k.EvaluationKey == "#/keep" })

	if _, ok := c.Get(keep); !ok {
		t.Error("expected kept entry to survive Retain")
	}
	if _, ok := c.Get(drop); ok {
		t.Error("expected dropped entry to be removed by Retain")
	}
}

func TestResultCacheClear(t *testing.T) {
	c := NewResultCache()
	c.Insert(CacheKey{EvaluationKey: "#/a", ValueHash: 1, InstanceID: 1}, 1.0)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d entries", c.Len())
	}
	stats := c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("expected counters reset after Clear, got %+v", stats)
	}
}
