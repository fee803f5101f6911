package cache

import (
	"testing"
)

// has looks the key up and releases immediately. Only meaningful at the
// end of a scenario: the lookup itself reorders the list.
func has(c Cache, key string) bool {
	h := c.Lookup(key, nil)
	if h == nil {
		return false
	}
	c.Release(h, false)
	return true
}

func newLRUShardTest(t *testing.T, opt Options) Cache {
	t.Helper()
	opt.ShardBits = 0 // deterministic: one global list
	c, err := NewLRU(opt)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Oldest entries go first when no priorities are in play.
func TestLRU_EvictionOrder(t *testing.T) {
	t.Parallel()

	c := newLRUShardTest(t, Options{Capacity: 60})

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Insert(k, "v", 20, nil, PriorityLow); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}
	if err := c.Insert("d", "v", 20, nil, PriorityLow); err != nil {
		t.Fatalf("Insert d: %v", err)
	}

	if has(c, "a") {
		t.Fatal("a must be evicted first")
	}
	for _, k := range []string{"b", "c", "d"} {
		if !has(c, k) {
			t.Fatalf("%s must survive", k)
		}
	}
}

// A hit shields an entry: the untouched one goes instead.
func TestLRU_HitDefersEviction(t *testing.T) {
	t.Parallel()

	c := newLRUShardTest(t, Options{Capacity: 60})

	c.Insert("a", "v", 20, nil, PriorityLow)
	c.Insert("b", "v", 20, nil, PriorityLow)
	c.Insert("c", "v", 20, nil, PriorityLow)

	if !has(c, "a") { // reorders: b is now oldest
		t.Fatal("expect hit for a")
	}
	c.Insert("d", "v", 20, nil, PriorityLow)

	if has(c, "b") {
		t.Fatal("b must be evicted")
	}
	if !has(c, "a") || !has(c, "c") || !has(c, "d") {
		t.Fatal("a, c, d must survive")
	}
}

// With a high-pri pool, low-priority churn must not push out
// high-priority entries: lows enter at the midpoint, below the pool.
func TestLRU_HighPriPoolShieldsFromLowChurn(t *testing.T) {
	t.Parallel()

	c := newLRUShardTest(t, Options{Capacity: 100, HighPriPoolRatio: 0.5})

	c.Insert("h1", "v", 20, nil, PriorityHigh)
	c.Insert("h2", "v", 20, nil, PriorityHigh)

	// Low churn well past total capacity.
	for i := 0; i < 20; i++ {
		key := "l" + string(rune('a'+i))
		if err := c.Insert(key, "v", 20, nil, PriorityLow); err != nil {
			t.Fatalf("Insert %s: %v", key, err)
		}
	}

	if !has(c, "h1") || !has(c, "h2") {
		t.Fatal("high-pri entries must survive low-pri churn")
	}
}

// When the pool overflows its quota, the oldest high-pri entries are
// demoted and become ordinary eviction candidates.
func TestLRU_PoolOverflowDemotes(t *testing.T) {
	t.Parallel()

	// Pool quota 50: three 20-charge high entries overflow it, demoting h1.
	c := newLRUShardTest(t, Options{Capacity: 100, HighPriPoolRatio: 0.5})

	c.Insert("h1", "v", 20, nil, PriorityHigh)
	c.Insert("h2", "v", 20, nil, PriorityHigh)
	c.Insert("h3", "v", 20, nil, PriorityHigh)

	// Fill the rest with lows, then one more to force an eviction.
	c.Insert("l1", "v", 20, nil, PriorityLow)
	c.Insert("l2", "v", 20, nil, PriorityLow)
	c.Insert("l3", "v", 20, nil, PriorityLow)

	if has(c, "h1") {
		t.Fatal("demoted h1 must be the eviction victim")
	}
	for _, k := range []string{"h2", "h3", "l1", "l2", "l3"} {
		if !has(c, k) {
			t.Fatalf("%s must survive", k)
		}
	}
}

// A hit keeps a low-priority entry in the low segment; it does not climb
// into the high-pri pool.
func TestLRU_HitStaysInSegment(t *testing.T) {
	t.Parallel()

	c := newLRUShardTest(t, Options{Capacity: 60, HighPriPoolRatio: 0.5})

	c.Insert("l1", "v", 20, nil, PriorityLow)
	c.Insert("l2", "v", 20, nil, PriorityLow)
	c.Insert("h1", "v", 20, nil, PriorityHigh)

	// l1 is hit repeatedly; it still must not outrank the pool.
	for i := 0; i < 3; i++ {
		if !has(c, "l1") {
			t.Fatal("expect hit for l1")
		}
	}

	// Two inserts drain the low segment: l2 then l1 go, h1 stays.
	c.Insert("l3", "v", 20, nil, PriorityLow)
	c.Insert("l4", "v", 20, nil, PriorityLow)

	if has(c, "l1") || has(c, "l2") {
		t.Fatal("hit low-pri entries must still drain before the pool")
	}
	if !has(c, "h1") {
		t.Fatal("h1 must survive in the pool")
	}
}

// Pinned entries are skipped in place; eviction takes the next oldest.
func TestLRU_PinnedEntriesSkipped(t *testing.T) {
	t.Parallel()

	c := newLRUShardTest(t, Options{Capacity: 60})

	h, err := c.InsertHandle("a", "v", 20, nil, PriorityLow)
	if err != nil {
		t.Fatalf("InsertHandle: %v", err)
	}
	c.Insert("b", "v", 20, nil, PriorityLow)
	c.Insert("c", "v", 20, nil, PriorityLow)

	// a is oldest but pinned: b is the victim.
	c.Insert("d", "v", 20, nil, PriorityLow)

	if has(c, "b") {
		t.Fatal("b must be evicted while a is pinned")
	}
	if !has(c, "a") {
		t.Fatal("pinned a must survive")
	}
	c.Release(h, false)
}

// A zero pool ratio disables the split entirely: priorities are ignored.
func TestLRU_ZeroRatioIgnoresPriority(t *testing.T) {
	t.Parallel()

	c := newLRUShardTest(t, Options{Capacity: 60, HighPriPoolRatio: 0})

	c.Insert("h", "v", 20, nil, PriorityHigh)
	c.Insert("l1", "v", 20, nil, PriorityLow)
	c.Insert("l2", "v", 20, nil, PriorityLow)
	c.Insert("l3", "v", 20, nil, PriorityLow)

	if has(c, "h") {
		t.Fatal("oldest entry must go regardless of priority")
	}
}
