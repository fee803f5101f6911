package cache

// MetadataChargePolicy selects whether per-entry bookkeeping overhead
// counts against capacity alongside the caller-supplied charge.
type MetadataChargePolicy int8

const (
	// MetadataChargePolicyDont counts only the caller-supplied charge.
	MetadataChargePolicyDont MetadataChargePolicy = iota
	// MetadataChargePolicyFull additionally charges the fixed entry
	// overhead plus the key bytes. This is the default.
	MetadataChargePolicyFull
)

// DefaultHighPriPoolRatio is the high-pri pool fraction used by the
// NewLRUCache convenience constructor and the option-string factory.
const DefaultHighPriPoolRatio = 0.5

// Options configures a cache. The zero value is usable with a Capacity:
// one shard, soft capacity limit, no high-pri pool, metadata uncharged.
type Options struct {
	// Capacity is the total charge budget, conventionally bytes. It is
	// split evenly (ceiling division) across shards.
	Capacity uint64

	// ShardBits selects 2^ShardBits shards. Negative means automatic:
	// every shard gets at least 512KiB of budget, capped at 6 bits.
	// Values above 19 are rejected with ErrInvalidArgument.
	ShardBits int

	// StrictCapacityLimit makes Insert fail with ErrCacheFull instead of
	// overflowing capacity when nothing more can be evicted.
	StrictCapacityLimit bool

	// HighPriPoolRatio reserves this fraction of capacity for HIGH
	// priority entries (LRU variant only). Zero disables the pool; the
	// valid range is [0, 1].
	HighPriPoolRatio float64

	// MetadataChargePolicy controls whether entry bookkeeping overhead
	// is charged. The convenience constructors and the option-string
	// factory select MetadataChargePolicyFull.
	MetadataChargePolicy MetadataChargePolicy

	// UseAdaptiveMutex is accepted for option-string compatibility and
	// recorded in GetPrintableOptions. Go's sync.Mutex already spins
	// adaptively before parking, so no alternative lock is selected.
	UseAdaptiveMutex bool

	// Logger receives warnings from the tiered path and from shutdown.
	// Nil disables logging.
	Logger Logger

	// TieredCache, when set, is consulted by LookupWithHelper on a
	// volatile miss and offered every InsertWithHelper value.
	TieredCache TieredCache
}

// withDefaults fills in the ambient collaborators. Numeric fields are
// validated by the constructors, not coerced here.
func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = NopLogger{}
	}
	return o
}
