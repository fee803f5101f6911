package cache

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"
)

// Priority classifies an entry for eviction. With a non-zero high-pri pool
// ratio, HIGH entries live in a reserved segment at the recent end of the
// LRU order and are evicted only after the low-pri segment drains.
type Priority int8

const (
	PriorityLow Priority = iota
	PriorityHigh
)

// DeleterFunc destroys a cached value. It is invoked exactly once per
// inserted value, after the entry has left the index and its last handle
// has been released, and always outside the shard mutex. Deleters must
// not fail and must not call back into the cache destroying the entry.
type DeleterFunc func(key string, value any)

// entry is the record a shard stores per key.
//
// Ownership of fields is split: list links, slot, in-index and pool flags
// are guarded by the owning shard's mutex; refs and the CLOCK recency bit
// are atomic so hot paths can touch them without the lock.
type entry struct {
	key   string
	value any
	hash  uint64

	charge      uint64 // caller-supplied cost
	totalCharge uint64 // charge plus metadata, per MetadataChargePolicy

	deleter  DeleterFunc
	priority Priority

	// refs counts outstanding handles, plus one while the entry is
	// reachable through the shard index. The entry is destroyed exactly
	// when refs reaches zero.
	refs atomic.Int32

	// recency is the CLOCK "used recently" bit, set on lookup hits
	// without the shard mutex.
	recency atomic.Bool

	// detached marks an entry that was never indexed: it carries a value
	// materialized from the secondary tier when promotion into the
	// volatile tier was rejected. It dies with its single handle.
	detached bool

	// ---- guarded by the shard mutex ----
	inIndex   bool
	inHighPri bool // LRU: currently inside the high-pri pool
	slot      int  // CLOCK: ring position
	prev      *entry
	next      *entry
}

// ref acquires one more reference. It fails once refs has dropped to
// zero, i.e. the entry is already being destroyed; the CAS loop makes a
// stale handle observable instead of resurrecting the entry.
// Returns the reference count seen before the increment.
func (e *entry) ref() (prev int32, ok bool) {
	for {
		r := e.refs.Load()
		if r <= 0 {
			return r, false
		}
		if e.refs.CompareAndSwap(r, r+1) {
			return r, true
		}
	}
}

// unref drops one reference and reports whether it was the last.
func (e *entry) unref() bool {
	r := e.refs.Add(-1)
	if r < 0 {
		panic("blockcache: entry reference count went negative")
	}
	return r == 0
}

// evictable reports whether only the in-index reference remains.
// Shard mutex must be held for a stable answer.
func (e *entry) evictable() bool {
	return e.refs.Load() == 1
}

// entryOverhead is the fixed bookkeeping cost charged per entry under
// MetadataChargePolicyFull, on top of the key bytes.
const entryOverhead = uint64(unsafe.Sizeof(entry{}))

// metaCharge returns the metadata portion of an entry's total charge.
func metaCharge(policy MetadataChargePolicy, key string) uint64 {
	if policy != MetadataChargePolicyFull {
		return 0
	}
	return entryOverhead + uint64(len(key))
}

// totalChargeFor combines the caller's charge with the metadata charge.
// A combination that would wrap uint64 is rejected rather than silently
// accounted as a tiny entry.
func totalChargeFor(policy MetadataChargePolicy, key string, charge uint64) (uint64, error) {
	meta := metaCharge(policy, key)
	if charge > math.MaxUint64-meta {
		return 0, fmt.Errorf("%w: charge %d overflows with metadata charge %d", ErrInvalidArgument, charge, meta)
	}
	return charge + meta, nil
}
