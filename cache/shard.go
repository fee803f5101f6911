package cache

import (
	"math"
	"sync/atomic"
)

// cacheShard is the per-shard engine behind the sharded router. Exactly
// two variants implement it, selected at construction: lruShard
// (recency order with a priority split) and clockShard (second-chance
// ring). Shards share no state with each other; every method is safe for
// concurrent use.
type cacheShard interface {
	// insert creates or replaces the mapping for key. When wantHandle is
	// set the returned entry carries one extra reference the caller must
	// release. A nil entry with nil error means the insert succeeded
	// without a handle.
	insert(key string, hash uint64, value any, charge uint64,
		deleter DeleterFunc, pri Priority, wantHandle bool) (*entry, error)

	// lookup returns a referenced entry or nil.
	lookup(key string) *entry

	// release drops a handle reference, optionally force-erasing the
	// index entry. Reports whether the entry was fully destroyed.
	release(e *entry, forceErase bool) bool

	// erase removes the index entry; destruction waits for handles.
	erase(key string)

	setCapacity(capacity uint64)
	setStrictCapacityLimit(strict bool)

	getUsage() uint64
	getPinnedUsage() uint64

	// applyToAll visits every in-index entry. locked selects whether the
	// shard mutex is held across the walk.
	applyToAll(fn func(key string, value any, charge uint64), locked bool)

	// eraseUnrefEntries removes every entry with no outstanding handle.
	eraseUnrefEntries()

	// entryCount reports the number of in-index entries.
	entryCount() int
}

// overBudget reports whether base+need exceeds capacity, without the sum
// wrapping on large charges.
func overBudget(base, need, capacity uint64) bool {
	if base > capacity {
		return true
	}
	return need > capacity-base
}

// usageWouldWrap reports whether adding add to base overflows uint64.
func usageWouldWrap(base, add uint64) bool {
	return add > math.MaxUint64-base
}

// freeEntry invokes the deleter unless the cache was disowned. Call sites
// run it outside the shard mutex so arbitrary deleter code cannot
// re-enter the lock.
func freeEntry(e *entry, disowned *atomic.Bool) {
	if e.deleter == nil || disowned.Load() {
		return
	}
	e.deleter(e.key, e.value)
}

// freeAll runs freeEntry over a batch collected under the shard mutex.
func freeAll(batch []*entry, disowned *atomic.Bool) {
	for _, e := range batch {
		freeEntry(e, disowned)
	}
}
