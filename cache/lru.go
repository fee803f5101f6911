package cache

import (
	"sync"
	"sync/atomic"
)

// lruShard is the recency-ordered shard variant. It keeps a map index and
// one intrusive circular list threaded through a sentinel: sentinel.next
// is the oldest entry (eviction end), sentinel.prev the most recent.
//
// With a non-zero high-pri pool ratio the list is logically split in two
// segments: [sentinel.next .. lowPriTail] holds low-priority entries,
// (lowPriTail .. sentinel.prev] high-priority ones. High-pri entries are
// appended at the global recent end; low-pri entries are appended at the
// midpoint (the recent end of the low segment), so entries that never see
// another hit age out faster than promoted ones.
type lruShard struct {
	mu sync.Mutex

	capacity    uint64
	strictLimit bool
	metaPolicy  MetadataChargePolicy

	usage       uint64 // total charge of in-index entries
	pinnedUsage uint64 // charge of entries held alive by handles

	highPriPoolRatio    float64
	highPriPoolCapacity uint64
	highPriPoolUsage    uint64

	table map[string]*entry

	sentinel   entry
	lowPriTail *entry // newest low-pri entry; &sentinel when segment empty

	disowned *atomic.Bool
}

func newLRUShard(capacity uint64, strict bool, ratio float64,
	metaPolicy MetadataChargePolicy, disowned *atomic.Bool) *lruShard {

	s := &lruShard{
		capacity:         capacity,
		strictLimit:      strict,
		metaPolicy:       metaPolicy,
		highPriPoolRatio: ratio,
		table:            make(map[string]*entry),
		disowned:         disowned,
	}
	s.sentinel.next = &s.sentinel
	s.sentinel.prev = &s.sentinel
	s.lowPriTail = &s.sentinel
	s.highPriPoolCapacity = uint64(float64(capacity) * ratio)
	return s
}

// -------------------- public shard operations --------------------

func (s *lruShard) insert(key string, hash uint64, value any, charge uint64,
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

	// Make room. The entry being replaced is excluded from the scan: its
	// charge is already accounted as reclaimed, and the capacity check
	// below runs against the delta.
	s.evictLocked(e.totalCharge, oldTotal, old, &freed)

	if usageWouldWrap(s.usage-oldTotal, e.totalCharge) {
		// Even an unlimited cache cannot account this entry.
		s.mu.Unlock()
		freeAll(freed, s.disowned)
		return nil, ErrCacheFull
	}
	if s.strictLimit && overBudget(s.usage-oldTotal, e.totalCharge, s.capacity) {
		// Rejected. The old mapping, if any, stays untouched and the
		// caller keeps ownership of the new value.
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
		e.refs.Store(2) // index reference plus the caller's handle
		s.pinnedUsage += e.totalCharge
	} else {
		e.refs.Store(1)
	}
	e.inIndex = true
	s.table[key] = e
	s.listAddLocked(e)
	s.usage += e.totalCharge

	s.mu.Unlock()
	freeAll(freed, s.disowned)

	if wantHandle {
		return e, nil
	}
	return nil, nil
}

func (s *lruShard) lookup(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.table[key]
	if e == nil {
		return nil
	}
	if prev, _ := e.ref(); prev == 1 {
		s.pinnedUsage += e.totalCharge
	}
	e.recency.Store(true)
	s.touchLocked(e)
	return e
}

func (s *lruShard) release(e *entry, forceErase bool) bool {
	if e == nil {
		return false
	}
	s.mu.Lock()
	if forceErase && e.inIndex {
		s.removeFromIndexLocked(e)
		// Drop the index reference; the caller's handle is still
		// outstanding, so this cannot be the last one.
		e.unref()
	}
	last := e.unref()
	switch {
	case last && !e.detached:
		// Shadow entries stay in pinned usage until they die.
		s.pinnedUsage -= e.totalCharge
	case !last && e.inIndex && e.evictable():
		// Back to only the index reference: evictable again.
		s.pinnedUsage -= e.totalCharge
	}
	s.mu.Unlock()

	if last {
		freeEntry(e, s.disowned)
	}
	return last
}

func (s *lruShard) erase(key string) {
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

func (s *lruShard) setCapacity(capacity uint64) {
	var freed []*entry
	s.mu.Lock()
	s.capacity = capacity
	s.highPriPoolCapacity = uint64(float64(capacity) * s.highPriPoolRatio)
	s.maintainPoolSizeLocked()
	s.evictLocked(0, 0, nil, &freed)
	s.mu.Unlock()
	freeAll(freed, s.disowned)
}

func (s *lruShard) setStrictCapacityLimit(strict bool) {
	s.mu.Lock()
	s.strictLimit = strict
	s.mu.Unlock()
}

func (s *lruShard) getUsage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *lruShard) getPinnedUsage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinnedUsage
}

func (s *lruShard) applyToAll(fn func(key string, value any, charge uint64), locked bool) {
	if locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	for _, e := range s.table {
		fn(e.key, e.value, e.charge)
	}
}

func (s *lruShard) eraseUnrefEntries() {
	var freed []*entry
	s.mu.Lock()
	for e := s.sentinel.next; e != &s.sentinel; {
		next := e.next
		if e.evictable() {
			s.removeFromIndexLocked(e)
			e.unref()
			freed = append(freed, e)
		}
		e = next
	}
	s.mu.Unlock()
	freeAll(freed, s.disowned)
}

func (s *lruShard) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// -------------------- internals (mu held) --------------------

// evictLocked scans from the oldest end until
// usage - reclaim + need <= capacity, no evictable entry remains, or the
// list is exhausted. Pinned entries are skipped in place; skip excludes
// the entry being replaced by the in-flight insert.
func (s *lruShard) evictLocked(need, reclaim uint64, skip *entry, freed *[]*entry) {
	for e := s.sentinel.next; e != &s.sentinel && overBudget(s.usage-reclaim, need, s.capacity); {
		next := e.next
		if e != skip && e.evictable() {
			s.removeFromIndexLocked(e)
			if e.unref() {
				*freed = append(*freed, e)
			}
		}
		e = next
	}
}

// removeFromIndexLocked unlinks e from the table, the list, and the
// accounting. It does not drop the index reference; callers do, so they
// can tell whether destruction is due.
func (s *lruShard) removeFromIndexLocked(e *entry) {
	delete(s.table, e.key)
	s.listRemoveLocked(e)
	if e.inHighPri {
		s.highPriPoolUsage -= e.totalCharge
		e.inHighPri = false
	}
	e.inIndex = false
	s.usage -= e.totalCharge
}

// listAddLocked places a fresh entry per its priority: HIGH into the
// reserved pool at the recent end, LOW at the midpoint.
func (s *lruShard) listAddLocked(e *entry) {
	if s.highPriPoolRatio > 0 && e.priority == PriorityHigh {
		e.inHighPri = true
		s.spliceRecentLocked(e)
		s.highPriPoolUsage += e.totalCharge
		s.maintainPoolSizeLocked()
	} else {
		e.inHighPri = false
		s.spliceMidpointLocked(e)
	}
}

// touchLocked moves a hit entry to the recent end of its own segment.
func (s *lruShard) touchLocked(e *entry) {
	s.listRemoveLocked(e)
	if e.inHighPri {
		s.spliceRecentLocked(e)
		s.maintainPoolSizeLocked()
	} else {
		s.spliceMidpointLocked(e)
	}
}

// maintainPoolSizeLocked demotes the oldest high-pri entries into the low
// segment until the pool fits its quota again.
func (s *lruShard) maintainPoolSizeLocked() {
	for s.highPriPoolUsage > s.highPriPoolCapacity {
		demoted := s.lowPriTail.next
		if demoted == &s.sentinel {
			break
		}
		s.lowPriTail = demoted
		demoted.inHighPri = false
		s.highPriPoolUsage -= demoted.totalCharge
	}
}

// spliceRecentLocked inserts e at the global most-recent end.
func (s *lruShard) spliceRecentLocked(e *entry) {
	e.next = &s.sentinel
	e.prev = s.sentinel.prev
	e.prev.next = e
	s.sentinel.prev = e
}

// spliceMidpointLocked inserts e right after the newest low-pri entry and
// marks it the new low segment tail.
func (s *lruShard) spliceMidpointLocked(e *entry) {
	e.next = s.lowPriTail.next
	e.prev = s.lowPriTail
	e.prev.next = e
	e.next.prev = e
	s.lowPriTail = e
}

func (s *lruShard) listRemoveLocked(e *entry) {
	if s.lowPriTail == e {
		s.lowPriTail = e.prev
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

var _ cacheShard = (*lruShard)(nil)
