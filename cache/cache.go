package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/blockbound/blockcache/internal/singleflight"
	"github.com/blockbound/blockcache/internal/util"
)

// maxShardBitsLimit rejects absurd shard counts before they allocate.
const maxShardBitsLimit = 19

// shardedCache hashes every key to one of 2^shardBits shards and forwards
// the operation there. Shards share no mutable state, so there is no
// cross-shard coordination on any path; the router only aggregates.
type shardedCache struct {
	name      string
	shardBits int
	shards    []cacheShard
	opt       Options

	capacity atomic.Uint64
	strict   atomic.Bool
	disowned atomic.Bool

	ids util.PaddedAtomicUint64

	tiered TieredCache
	sf     singleflight.Group[tierValue]
	log    Logger
}

// tierValue is the outcome of one coalesced secondary-tier fetch: the
// handle promoted by the flight leader (nil on a miss) and a claim flag
// so exactly one waiter inherits the flight's reference.
type tierValue struct {
	h       *Handle
	claimed *atomic.Bool
}

// NewLRUCache builds an LRU cache with the conventional defaults: auto
// shard count, soft capacity limit, half the capacity reserved for
// high-priority entries, metadata fully charged.
func NewLRUCache(capacity uint64) (Cache, error) {
	return NewLRU(Options{
		Capacity:             capacity,
		ShardBits:            -1,
		HighPriPoolRatio:     DefaultHighPriPoolRatio,
		MetadataChargePolicy: MetadataChargePolicyFull,
	})
}

// NewLRU builds an LRU cache from explicit Options.
func NewLRU(opt Options) (Cache, error) {
	if opt.HighPriPoolRatio < 0 || opt.HighPriPoolRatio > 1 {
		return nil, fmt.Errorf("%w: high_pri_pool_ratio %v outside [0, 1]",
			ErrInvalidArgument, opt.HighPriPoolRatio)
	}
	return newSharded("lru_cache", opt, func(c *shardedCache, perShard uint64) cacheShard {
		return newLRUShard(perShard, opt.StrictCapacityLimit, opt.HighPriPoolRatio,
			opt.MetadataChargePolicy, &c.disowned)
	})
}

// NewClockCache builds a CLOCK cache with auto shard count and metadata
// fully charged. Intended for workloads where Lookup throughput
// dominates: hits only set a bit instead of relinking a list.
func NewClockCache(capacity uint64) (Cache, error) {
	return NewClock(Options{
		Capacity:             capacity,
		ShardBits:            -1,
		MetadataChargePolicy: MetadataChargePolicyFull,
	})
}

// NewClock builds a CLOCK cache from explicit Options.
// HighPriPoolRatio is ignored: CLOCK has no priority split.
func NewClock(opt Options) (Cache, error) {
	return newSharded("clock_cache", opt, func(c *shardedCache, perShard uint64) cacheShard {
		return newClockShard(perShard, opt.StrictCapacityLimit,
			opt.MetadataChargePolicy, &c.disowned)
	})
}

func newSharded(name string, opt Options,
	build func(c *shardedCache, perShard uint64) cacheShard) (*shardedCache, error) {

	if opt.ShardBits > maxShardBitsLimit {
		return nil, fmt.Errorf("%w: num_shard_bits %d exceeds %d",
			ErrInvalidArgument, opt.ShardBits, maxShardBitsLimit)
	}
	if opt.MetadataChargePolicy != MetadataChargePolicyDont &&
		opt.MetadataChargePolicy != MetadataChargePolicyFull {
		return nil, fmt.Errorf("%w: unknown metadata charge policy %d",
			ErrInvalidArgument, opt.MetadataChargePolicy)
	}

	bits := opt.ShardBits
	if bits < 0 {
		bits = util.DefaultShardBits(opt.Capacity)
	}
	numShards := 1 << bits

	opt = opt.withDefaults()
	c := &shardedCache{
		name:      name,
		shardBits: bits,
		opt:       opt,
		tiered:    opt.TieredCache,
		log:       opt.Logger,
	}
	c.capacity.Store(opt.Capacity)
	c.strict.Store(opt.StrictCapacityLimit)

	perShard := perShardCapacity(opt.Capacity, numShards)
	c.shards = make([]cacheShard, numShards)
	for i := range c.shards {
		c.shards[i] = build(c, perShard)
	}
	return c, nil
}

// perShardCapacity splits the total budget evenly, rounding up so the
// shards never sum below the configured capacity.
func perShardCapacity(total uint64, numShards int) uint64 {
	return (total + uint64(numShards) - 1) / uint64(numShards)
}

func (c *shardedCache) shardFor(hash uint64) cacheShard {
	return c.shards[util.ShardIndex(hash, len(c.shards))]
}

// ---- Cache implementation ----

func (c *shardedCache) Name() string { return c.name }

func (c *shardedCache) Insert(key string, value any, charge uint64,
	deleter DeleterFunc, pri Priority) error {

	hash := util.HashKey(key)
	_, err := c.shardFor(hash).insert(key, hash, value, charge, deleter, pri, false)
	return err
}

func (c *shardedCache) InsertHandle(key string, value any, charge uint64,
	deleter DeleterFunc, pri Priority) (*Handle, error) {

	hash := util.HashKey(key)
	e, err := c.shardFor(hash).insert(key, hash, value, charge, deleter, pri, true)
	if err != nil {
		return nil, err
	}
	return &Handle{e: e}, nil
}

func (c *shardedCache) Lookup(key string, stats Statistics) *Handle {
	e := c.shardFor(util.HashKey(key)).lookup(key)
	if e == nil {
		recordMiss(stats)
		return nil
	}
	recordHit(stats)
	return &Handle{e: e}
}

func (c *shardedCache) Ref(h *Handle) bool {
	e := h.entryOrNil()
	if e == nil {
		return false
	}
	_, ok := e.ref()
	return ok
}

func (c *shardedCache) Release(h *Handle, forceErase bool) bool {
	if h == nil {
		return false
	}
	if h.done != nil {
		// A pending tiered handle settles before it can be released.
		<-h.done
	}
	e := h.e
	if e == nil {
		return false
	}
	return c.shardFor(e.hash).release(e, forceErase)
}

func (c *shardedCache) Value(h *Handle) any {
	e := h.entryOrNil()
	if e == nil {
		return nil
	}
	return e.value
}

func (c *shardedCache) Erase(key string) {
	c.shardFor(util.HashKey(key)).erase(key)
}

func (c *shardedCache) NewID() uint64 {
	return c.ids.Add(1)
}

func (c *shardedCache) SetCapacity(capacity uint64) {
	c.capacity.Store(capacity)
	perShard := perShardCapacity(capacity, len(c.shards))
	for _, s := range c.shards {
		s.setCapacity(perShard)
	}
}

func (c *shardedCache) SetStrictCapacityLimit(strict bool) {
	c.strict.Store(strict)
	for _, s := range c.shards {
		s.setStrictCapacityLimit(strict)
	}
}

func (c *shardedCache) HasStrictCapacityLimit() bool {
	return c.strict.Load()
}

func (c *shardedCache) GetCapacity() uint64 {
	return c.capacity.Load()
}

func (c *shardedCache) GetUsage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.getUsage()
	}
	return total
}

func (c *shardedCache) GetHandleUsage(h *Handle) uint64 {
	e := h.entryOrNil()
	if e == nil {
		return 0
	}
	return e.totalCharge
}

func (c *shardedCache) GetPinnedUsage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.getPinnedUsage()
	}
	return total
}

func (c *shardedCache) GetCharge(h *Handle) uint64 {
	e := h.entryOrNil()
	if e == nil {
		return 0
	}
	return e.charge
}

func (c *shardedCache) ApplyToAllEntries(fn func(key string, value any, charge uint64), threadSafe bool) {
	for _, s := range c.shards {
		s.applyToAll(fn, threadSafe)
	}
}

func (c *shardedCache) EraseUnRefEntries() {
	for _, s := range c.shards {
		s.eraseUnrefEntries()
	}
}

// ---- tiered path ----

func (c *shardedCache) InsertWithHelper(key string, value any,
	helper *ItemHelper, charge uint64, pri Priority) error {

	if helper == nil {
		return fmt.Errorf("%w: nil item helper", ErrInvalidArgument)
	}
	if c.tiered != nil {
		// Best-effort offer to the secondary tier, regardless of the
		// volatile outcome.
		if err := c.tiered.Insert(key, value, helper); err != nil {
			c.log.Warn("secondary tier insert failed",
				Fields{"tier": c.tiered.Name(), "key": key, "err": err.Error()})
		}
	}
	return c.Insert(key, value, charge, helper.Delete, pri)
}

func (c *shardedCache) LookupWithHelper(key string, helper *ItemHelper,
	create CreateFunc, pri Priority, wait bool, stats Statistics) *Handle {

	hash := util.HashKey(key)
	if e := c.shardFor(hash).lookup(key); e != nil {
		recordHit(stats)
		return &Handle{e: e}
	}
	recordMiss(stats)
	if c.tiered == nil || create == nil {
		return nil
	}

	if wait {
		v, _ := c.fetchCoalesced(key, hash, helper, create, pri)
		return c.handleFromFlight(key, hash, v)
	}

	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		v, _ := c.fetchCoalesced(key, hash, helper, create, pri)
		if hv := c.handleFromFlight(key, hash, v); hv != nil {
			h.e = hv.e
		}
		// Otherwise h.e stays nil: Value reports nil after Wait.
	}()
	return h
}

// fetchCoalesced reads key from the secondary tier, collapsing
// concurrent misses on the same key into one fetch. The flight also
// promotes the materialized object, so one fetch creates at most one
// entry no matter how many waiters shared it.
func (c *shardedCache) fetchCoalesced(key string, hash uint64, helper *ItemHelper,
	create CreateFunc, pri Priority) (tierValue, error) {

	return c.sf.Do(context.Background(), key, func() (tierValue, error) {
		th := c.tiered.Lookup(key, create, true)
		if th == nil {
			return tierValue{}, nil
		}
		th.Wait()
		obj, charge := th.Value()
		if obj == nil {
			return tierValue{}, nil
		}
		return tierValue{
			h:       c.promote(key, hash, obj, charge, helper, pri),
			claimed: &atomic.Bool{},
		}, nil
	})
}

// handleFromFlight turns a shared fetch outcome into a caller-owned
// handle. The first claimant inherits the flight's reference; every
// other waiter takes its own through the shard index. A waiter that
// finds the promoted entry already evicted reports a miss.
func (c *shardedCache) handleFromFlight(key string, hash uint64, v tierValue) *Handle {
	if v.h == nil {
		return nil
	}
	if v.claimed.CompareAndSwap(false, true) {
		return v.h
	}
	if e := c.shardFor(hash).lookup(key); e != nil {
		return &Handle{e: e}
	}
	return nil
}

// promote moves a materialized secondary hit into the volatile tier. If
// a strict capacity limit rejects it, the object is handed back through
// a detached entry that dies with its single handle, so the waiters
// still get the value they waited for.
func (c *shardedCache) promote(key string, hash uint64, obj any, charge uint64,
	helper *ItemHelper, pri Priority) *Handle {

	var deleter DeleterFunc
	if helper != nil {
		deleter = helper.Delete
	}
	h, err := c.InsertHandle(key, obj, charge, deleter, pri)
	if err == nil {
		return h
	}
	c.log.Debug("secondary hit not promoted", Fields{"key": key, "err": err.Error()})
	e := &entry{
		key:         key,
		value:       obj,
		hash:        hash,
		charge:      charge,
		totalCharge: charge + metaCharge(c.opt.MetadataChargePolicy, key),
		deleter:     deleter,
		detached:    true,
	}
	e.refs.Store(1)
	return &Handle{e: e}
}

func (c *shardedCache) IsReady(h *Handle) bool {
	if h == nil {
		return true
	}
	return h.ready()
}

func (c *shardedCache) Wait(h *Handle) {
	if h != nil && h.done != nil {
		<-h.done
	}
}

func (c *shardedCache) WaitAll(hs []*Handle) {
	for _, h := range hs {
		c.Wait(h)
	}
}

// ---- lifecycle ----

func (c *shardedCache) DisownData() {
	c.disowned.Store(true)
}

func (c *shardedCache) GetPrintableOptions() string {
	meta := "dont_charge_cache_metadata"
	if c.opt.MetadataChargePolicy == MetadataChargePolicyFull {
		meta = "full_charge_cache_metadata"
	}
	return fmt.Sprintf(
		"    capacity : %d\n"+
			"    num_shard_bits : %d\n"+
			"    strict_capacity_limit : %t\n"+
			"    high_pri_pool_ratio : %.3f\n"+
			"    use_adaptive_mutex : %t\n"+
			"    metadata_charge_policy : %s\n",
		c.capacity.Load(), c.shardBits, c.strict.Load(),
		c.opt.HighPriPoolRatio, c.opt.UseAdaptiveMutex, meta)
}

func (c *shardedCache) Close() error {
	c.EraseUnRefEntries()
	leaked := 0
	for _, s := range c.shards {
		leaked += s.entryCount()
	}
	if leaked > 0 {
		c.log.Warn("cache closed with pinned entries still alive",
			Fields{"entries": leaked})
	}
	if c.tiered != nil {
		return c.tiered.Close()
	}
	return nil
}

func recordHit(stats Statistics) {
	if stats != nil {
		stats.RecordHit()
	}
}

func recordMiss(stats Statistics) {
	if stats != nil {
		stats.RecordMiss()
	}
}
