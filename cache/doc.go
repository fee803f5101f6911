// Package cache provides a sharded, capacity-bounded, concurrent
// key/value cache with reference-counted handles, built as a block-cache
// style component for storage engines: values carry an explicit charge
// against capacity, entries can be pinned by callers while eviction runs
// around them, and an optional secondary tier catches what the volatile
// tier drops.
//
// # Design
//
//   - Sharding: keys are hashed (XXH64) to one of 2^num_shard_bits
//     shards, each with its own lock, hash index and eviction structure.
//     Shards share no mutable state, so the cache scales with cores;
//     the shard count defaults to a capacity-based heuristic.
//
//   - Handles: Lookup and InsertHandle pin an entry and return an opaque
//     Handle that must be released exactly once. A pinned entry can be
//     evicted from the index while still referenced; it then lives on,
//     unfindable, until its last handle goes, and only then is its
//     deleter invoked, exactly once per inserted value.
//
//   - Eviction: two interchangeable variants, selected at construction.
//     The LRU variant splits the recency order into a low-pri and a
//     high-pri segment ("midpoint insertion"): low-priority entries
//     enter mid-list and age out faster if they never see a hit. The
//     CLOCK variant trades exact ordering for a lock-light hit path: a
//     hit just sets a bit, and a rotating hand grants second chances.
//
//   - Capacity: usage counts the charge of indexed entries (optionally
//     plus per-entry metadata). With a strict capacity limit, Insert
//     fails with ErrCacheFull instead of overflowing; otherwise usage
//     may transiently exceed capacity while entries are pinned.
//
//   - Tiered path: with a TieredCache configured, LookupWithHelper
//     consults the secondary tier on a miss and may hand back a
//     not-ready handle; callers poll IsReady or block in Wait, then
//     check Value for nil. InsertWithHelper offers every value to the
//     tier through the ItemHelper serialization callbacks. Providers
//     backed by bigcache and Redis live under tiered/.
//
// # Basic usage
//
//	c, _ := cache.NewLRUCache(64 << 20)
//	_ = c.Insert("blk:1", block, uint64(len(block.Data)), blockDeleter, cache.PriorityLow)
//	if h := c.Lookup("blk:1", nil); h != nil {
//	    use(c.Value(h).(*Block))
//	    c.Release(h, false)
//	}
//
// # From an option string
//
//	c, err := cache.NewFromString("capacity=1G; num_shard_bits=6; strict_capacity_limit=true")
//
// All operations are amortized O(1): one map access plus constant
// pointer or bit work under a shard lock; CLOCK hits avoid the exclusive
// lock entirely.
package cache
