package cache

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func newClockShardTest(t *testing.T, opt Options) Cache {
	t.Helper()
	opt.ShardBits = 0 // deterministic: one ring, one hand
	c, err := NewClock(opt)
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// A recently hit entry gets a second chance: the hand clears its bit and
// evicts the next cold slot instead.
func TestClock_SecondChance(t *testing.T) {
	t.Parallel()

	c := newClockShardTest(t, Options{Capacity: 60})

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Insert(k, "v", 20, nil, PriorityLow); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	// Touch a; its recency bit shields it from the next sweep.
	if h := c.Lookup("a", nil); h == nil {
		t.Fatal("expect hit for a")
	} else {
		c.Release(h, false)
	}

	c.Insert("d", "v", 20, nil, PriorityLow)

	if has(c, "b") {
		t.Fatal("cold b must be the victim")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !has(c, k) {
			t.Fatalf("%s must survive", k)
		}
	}
}

// An entry whose bit was spent survives one sweep but not two.
func TestClock_SecondChanceIsSpent(t *testing.T) {
	t.Parallel()

	c := newClockShardTest(t, Options{Capacity: 60})

	c.Insert("a", "v", 20, nil, PriorityLow)
	c.Insert("b", "v", 20, nil, PriorityLow)
	c.Insert("c", "v", 20, nil, PriorityLow)

	if h := c.Lookup("a", nil); h != nil {
		c.Release(h, false)
	}

	c.Insert("d", "v", 20, nil, PriorityLow) // clears a's bit, evicts b
	c.Insert("e", "v", 20, nil, PriorityLow) // evicts cold c
	c.Insert("f", "v", 20, nil, PriorityLow) // hand returns to a, now cold

	if has(c, "a") {
		t.Fatal("a's second chance must be spent")
	}
}

// Pinned slots are passed over without losing their recency bit.
func TestClock_PinnedSlotsSkipped(t *testing.T) {
	t.Parallel()

	c := newClockShardTest(t, Options{Capacity: 60})

	// a comes first in hand order but is pinned: the sweep passes over it
	// and takes b.
	h, err := c.InsertHandle("a", "v", 20, nil, PriorityLow)
	if err != nil {
		t.Fatalf("InsertHandle: %v", err)
	}
	c.Insert("b", "v", 20, nil, PriorityLow)
	c.Insert("c", "v", 20, nil, PriorityLow)

	c.Insert("d", "v", 20, nil, PriorityLow)

	if has(c, "b") {
		t.Fatal("b must be evicted while a is pinned")
	}
	if !has(c, "a") {
		t.Fatal("pinned a must survive")
	}
	c.Release(h, false)
}

// Erase frees a ring slot; later inserts reuse it.
func TestClock_SlotReuse(t *testing.T) {
	t.Parallel()

	c := newClockShardTest(t, Options{Capacity: 200})

	for _, k := range []string{"a", "b", "c"} {
		c.Insert(k, "v", 20, nil, PriorityLow)
	}
	c.Erase("b")
	c.Insert("d", "v", 20, nil, PriorityLow)

	if has(c, "b") {
		t.Fatal("b must stay erased")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !has(c, k) {
			t.Fatalf("%s must survive", k)
		}
	}
	if got := c.GetUsage(); got != 60 {
		t.Fatalf("usage = %d, want 60", got)
	}
}

// The lock-light hit path must agree with concurrent inserts on the
// write path about refcounts and pinned accounting.
func TestClock_ConcurrentLookupInsert(t *testing.T) {
	t.Parallel()

	c := newClockShardTest(t, Options{Capacity: 10_000})

	keys := []string{"k0", "k1", "k2", "k3"}
	for _, k := range keys {
		if err := c.Insert(k, "v", 100, nil, PriorityLow); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		id := w
		g.Go(func() error {
			for i := 0; i < 2000; i++ {
				k := keys[(id+i)%len(keys)]
				if i%16 == 0 {
					if err := c.Insert(k, "v", 100, nil, PriorityLow); err != nil {
						return err
					}
					continue
				}
				if h := c.Lookup(k, nil); h != nil {
					c.Release(h, false)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := c.GetPinnedUsage(); got != 0 {
		t.Fatalf("pinned = %d after all releases, want 0", got)
	}
}
