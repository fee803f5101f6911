package cache

import (
	"sync"
	"sync/atomic"

	"github.com/blockbound/blockcache/internal/util"
)

// clockShard is the second-chance shard variant, intended for shards
// where lookup throughput dominates. Entries live in a circular slot
// buffer with a rotating hand; a hit only sets the entry's recency bit
// and bumps its refcount atomically under the read lock, so hot lookups
// never contend on the write lock the way LRU relinking does.
//
// Insert, erase and the eviction sweep take the write lock. A slot whose
// bit is set gets it cleared and survives one more pass; a pinned slot is
// skipped with its bit untouched.
type clockShard struct {
	mu sync.RWMutex

	capacity    uint64
	strictLimit bool
	metaPolicy  MetadataChargePolicy

	usage uint64 // total charge of in-index entries

	table     map[string]*entry
	ring      []*entry
	freeSlots []int
	hand      int

	disowned *atomic.Bool

	_      util.CacheLinePad
	pinned util.PaddedAtomicInt64 // updated on the lock-light lookup path
}

func newClockShard(capacity uint64, strict bool,
	metaPolicy MetadataChargePolicy, disowned *atomic.Bool) *clockShard {

	return &clockShard{
		capacity:    capacity,
		strictLimit: strict,
		metaPolicy:  metaPolicy,
		table:       make(map[string]*entry),
		disowned:    disowned,
	}
}

// -------------------- public shard operations --------------------

func (s *clockShard) insert(key string, hash uint64, value any, charge uint64,
	deleter DeleterFunc, pri Priority, wantHandle bool) (*entry, error) {

	total, err := totalChargeFor(s.metaPolicy, key, charge)
	if err != nil {
		return nil, err
	}
	e := &entry{
		key:         key,
		value:       value,
		hash:        hash,
		charge:      charge,
		totalCharge: total,
		deleter:     deleter,
		priority:    pri,
	}

	var freed []*entry
	s.mu.Lock()

	old := s.table[key]
	var oldTotal uint64
	if old != nil {
		oldTotal = old.totalCharge
	}

	s.evictLocked(e.totalCharge, oldTotal, old, &freed)

	if usageWouldWrap(s.usage-oldTotal, e.totalCharge) {
		s.mu.Unlock()
		freeAll(freed, s.disowned)
		return nil, ErrCacheFull
	}
	if s.strictLimit && overBudget(s.usage-oldTotal, e.totalCharge, s.capacity) {
		s.mu.Unlock()
		freeAll(freed, s.disowned)
		return nil, ErrCacheFull
	}

	if old != nil {
		s.removeFromIndexLocked(old)
		if old.unref() {
			freed = append(freed, old)
		}
	}

	if wantHandle {
		e.refs.Store(2)
		s.pinned.Add(int64(e.totalCharge))
	} else {
		e.refs.Store(1)
	}
	e.inIndex = true
	s.table[key] = e
	s.addSlotLocked(e)
	s.usage += e.totalCharge

	s.mu.Unlock()
	freeAll(freed, s.disowned)

	if wantHandle {
		return e, nil
	}
	return nil, nil
}

// lookup is the lock-light hot path: a read lock for the table access, an
// atomic refcount acquire and an atomic bit set. No relinking.
func (s *clockShard) lookup(key string) *entry {
	s.mu.RLock()
	e := s.table[key]
	if e == nil {
		s.mu.RUnlock()
		return nil
	}
	prev, ok := e.ref()
	if !ok {
		// In-index entries always hold the index reference; reaching
		// zero here is impossible while we hold the read lock.
		s.mu.RUnlock()
		return nil
	}
	if prev == 1 {
		s.pinned.Add(int64(e.totalCharge))
	}
	e.recency.Store(true)
	s.mu.RUnlock()
	return e
}

func (s *clockShard) release(e *entry, forceErase bool) bool {
	if e == nil {
		return false
	}
	s.mu.Lock()
	if forceErase && e.inIndex {
		s.removeFromIndexLocked(e)
		e.unref() // index reference; the caller's handle remains
	}
	last := e.unref()
	switch {
	case last && !e.detached:
		s.pinned.Add(-int64(e.totalCharge))
	case !last && e.inIndex && e.evictable():
		s.pinned.Add(-int64(e.totalCharge))
	}
	s.mu.Unlock()

	if last {
		freeEntry(e, s.disowned)
	}
	return last
}

func (s *clockShard) erase(key string) {
	s.mu.Lock()
	e := s.table[key]
	var last bool
	if e != nil {
		s.removeFromIndexLocked(e)
		last = e.unref()
	}
	s.mu.Unlock()
	if last {
		freeEntry(e, s.disowned)
	}
}

func (s *clockShard) setCapacity(capacity uint64) {
	var freed []*entry
	s.mu.Lock()
	s.capacity = capacity
	s.evictLocked(0, 0, nil, &freed)
	s.mu.Unlock()
	freeAll(freed, s.disowned)
}

func (s *clockShard) setStrictCapacityLimit(strict bool) {
	s.mu.Lock()
	s.strictLimit = strict
	s.mu.Unlock()
}

func (s *clockShard) getUsage() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

func (s *clockShard) getPinnedUsage() uint64 {
	return uint64(s.pinned.Load())
}

func (s *clockShard) applyToAll(fn func(key string, value any, charge uint64), locked bool) {
	if locked {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	for _, e := range s.table {
		fn(e.key, e.value, e.charge)
	}
}

func (s *clockShard) eraseUnrefEntries() {
	var freed []*entry
	s.mu.Lock()
	for _, e := range s.ring {
		if e == nil || !e.evictable() {
			continue
		}
		s.removeFromIndexLocked(e)
		e.unref()
		freed = append(freed, e)
	}
	s.mu.Unlock()
	freeAll(freed, s.disowned)
}

func (s *clockShard) entryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// -------------------- internals (write lock held) --------------------

// evictLocked advances the hand until enough charge is reclaimable. Two
// sweeps bound the scan: the first visit of a slot clears its recency
// bit, the second may evict it. Anything still resident afterwards is
// pinned (or the skip entry) and cannot be evicted now.
func (s *clockShard) evictLocked(need, reclaim uint64, skip *entry, freed *[]*entry) {
	if len(s.ring) == 0 {
		return
	}
	for steps := 2 * len(s.ring); steps > 0 && overBudget(s.usage-reclaim, need, s.capacity); steps-- {
		e := s.ring[s.hand]
		s.hand = (s.hand + 1) % len(s.ring)
		switch {
		case e == nil || e == skip:
		case !e.evictable():
			// Pinned: skipped without clearing the bit.
		case e.recency.Swap(false):
			// Second chance.
		default:
			s.removeFromIndexLocked(e)
			if e.unref() {
				*freed = append(*freed, e)
			}
		}
	}
}

func (s *clockShard) addSlotLocked(e *entry) {
	if n := len(s.freeSlots); n > 0 {
		e.slot = s.freeSlots[n-1]
		s.freeSlots = s.freeSlots[:n-1]
		s.ring[e.slot] = e
		return
	}
	e.slot = len(s.ring)
	s.ring = append(s.ring, e)
}

func (s *clockShard) removeFromIndexLocked(e *entry) {
	delete(s.table, e.key)
	s.ring[e.slot] = nil
	s.freeSlots = append(s.freeSlots, e.slot)
	e.inIndex = false
	s.usage -= e.totalCharge
}

var _ cacheShard = (*clockShard)(nil)
