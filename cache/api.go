package cache

// Cache is a sharded, capacity-bounded key/value cache with a
// reference-counted handle protocol. All methods are safe for concurrent
// use by multiple goroutines.
//
// Values are opaque to the cache and owned by it once inserted: each is
// destroyed exactly once through its deleter after it has left the index
// and its last handle was released. A charge, conventionally bytes,
// counts against the capacity; eviction frees charge automatically.
type Cache interface {
	// Name identifies the eviction variant ("lru_cache" or "clock_cache").
	Name() string

	// Insert creates or replaces the mapping for key. On success the
	// cache owns value and will call deleter exactly once; under a
	// strict capacity limit ErrCacheFull is returned and the caller
	// keeps ownership (deleter is not called).
	Insert(key string, value any, charge uint64, deleter DeleterFunc, pri Priority) error

	// InsertHandle is Insert plus an immediately-pinned handle to the
	// new entry, which the caller must release exactly once.
	InsertHandle(key string, value any, charge uint64, deleter DeleterFunc, pri Priority) (*Handle, error)

	// Lookup returns a handle to the entry for key, or nil on a miss.
	// stats, when non-nil, records the outcome (at most once per call).
	Lookup(key string, stats Statistics) *Handle

	// Ref acquires one more reference on a handle's entry. It returns
	// false if the entry has already been fully destroyed, which cannot
	// happen for a handle whose release protocol was followed.
	Ref(h *Handle) bool

	// Release drops the handle's reference. With forceErase the entry is
	// also removed from the index even if still reachable, making it die
	// as soon as the last reference goes. Reports whether this call
	// destroyed the entry.
	Release(h *Handle, forceErase bool) bool

	// Value returns the payload behind a handle obtained from a
	// successful Lookup, or nil if a tiered handle failed to
	// materialize.
	Value(h *Handle) any

	// Erase removes the index entry for key if present; the underlying
	// entry survives until all handles to it are released.
	Erase(key string)

	// NewID returns a process-wide strictly increasing id, usable as a
	// unique key-prefix by clients sharing one cache.
	NewID() uint64

	// SetCapacity redistributes a new total capacity across shards and
	// evicts from any shard now over quota.
	SetCapacity(capacity uint64)

	SetStrictCapacityLimit(strict bool)
	HasStrictCapacityLimit() bool
	GetCapacity() uint64

	// GetUsage sums the charge of all indexed entries across shards.
	GetUsage() uint64

	// GetHandleUsage returns the total charge (including metadata, per
	// policy) of the entry behind a handle.
	GetHandleUsage(h *Handle) uint64

	// GetPinnedUsage sums the charge of entries kept alive by
	// outstanding handles, including entries already evicted from the
	// index but not yet destroyed.
	GetPinnedUsage() uint64

	// GetCharge returns the caller-supplied charge of a handle's entry.
	GetCharge(h *Handle) uint64

	// ApplyToAllEntries visits every indexed entry. With threadSafe the
	// shard locks are held across each shard's walk; without it the
	// traversal is unsynchronized and only safe on a quiesced cache.
	ApplyToAllEntries(fn func(key string, value any, charge uint64), threadSafe bool)

	// EraseUnRefEntries removes every entry with no outstanding handle.
	// Best-effort under concurrent inserts.
	EraseUnRefEntries()

	// InsertWithHelper inserts into the volatile tier using the helper's
	// deleter and, when a tiered cache is configured, offers the value
	// to the secondary tier regardless of the volatile outcome.
	InsertWithHelper(key string, value any, helper *ItemHelper, charge uint64, pri Priority) error

	// LookupWithHelper additionally consults the secondary tier on a
	// volatile miss, rebuilding the value via create. With wait=false
	// the returned handle may not be ready: poll IsReady or block in
	// Wait, then check Value for nil (tier failures surface as a nil
	// value, not an error).
	LookupWithHelper(key string, helper *ItemHelper, create CreateFunc,
		pri Priority, wait bool, stats Statistics) *Handle

	// IsReady reports whether a handle's value has materialized.
	IsReady(h *Handle) bool

	// Wait blocks until the handle is ready. A ready handle does not
	// imply a valid value; check Value for nil afterwards.
	Wait(h *Handle)

	// WaitAll waits for every handle in hs.
	WaitAll(hs []*Handle)

	// DisownData makes the cache leak its values on destruction: no
	// deleter runs after this call. Only for process shutdown.
	DisownData()

	// GetPrintableOptions renders the construction-time options.
	GetPrintableOptions() string

	// Close destroys every unreferenced entry. Entries still pinned by
	// handles are left to their handles and logged.
	Close() error
}
