// Package bigcache provides an in-process secondary tier backed by
// allegro/bigcache. Flattened values live in bigcache's GC-transparent
// byte arenas, so a large cold tier does not inflate GC scan time the
// way the volatile tier's object graph would.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/blockbound/blockcache/cache"
	"github.com/blockbound/blockcache/codec"
)

// Options configures the tier. Zero values get defaults in New.
type Options struct {
	// Shards for the underlying bigcache; power of two. Default 256.
	Shards int

	// LifeWindow is how long an entry may stay before bigcache drops
	// it. Default 10 minutes.
	LifeWindow time.Duration

	// HardMaxCacheSizeMB bounds the tier's memory. 0 = unbounded.
	HardMaxCacheSizeMB int

	// Codec for stored blobs. Default codec.Raw: this tier dies with
	// the process, so envelope versioning buys nothing.
	Codec codec.Codec

	// Allocator for flatten buffers. Default cache.NewPooledAllocator,
	// since every insert needs a scratch buffer of the value's size.
	Allocator cache.Allocator

	// Logger for lookup/insert failures. Nil disables logging.
	Logger cache.Logger
}

// Tier is a cache.TieredCache backed by bigcache.
type Tier struct {
	bc    *bc.BigCache
	codec codec.Codec
	alloc cache.Allocator
	log   cache.Logger
}

// New builds the tier. The bigcache instance is owned by the tier and
// shut down by Close.
func New(opt Options) (*Tier, error) {
	if opt.Shards <= 0 {
		opt.Shards = 256
	}
	if opt.LifeWindow <= 0 {
		opt.LifeWindow = 10 * time.Minute
	}
	if opt.Codec == nil {
		opt.Codec = codec.Raw{}
	}
	if opt.Allocator == nil {
		opt.Allocator = cache.NewPooledAllocator()
	}
	if opt.Logger == nil {
		opt.Logger = cache.NopLogger{}
	}

	cfg := bc.DefaultConfig(opt.LifeWindow)
	cfg.Shards = opt.Shards
	cfg.HardMaxCacheSize = opt.HardMaxCacheSizeMB
	cfg.Verbose = false

	c, err := bc.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &Tier{bc: c, codec: opt.Codec, alloc: opt.Allocator, log: opt.Logger}, nil
}

func (t *Tier) Name() string { return "bigcache_tier" }

// Insert flattens obj through the helper and stores the blob. bigcache
// copies on Set, so the scratch buffer goes straight back to the pool.
func (t *Tier) Insert(key string, obj any, helper *cache.ItemHelper) error {
	buf, err := cache.FlattenForTier(obj, helper, t.alloc)
	if err != nil {
		return err
	}
	defer t.alloc.Release(buf)

	blob, err := t.codec.Encode(codec.Envelope{Version: codec.EnvelopeVersion, Payload: buf})
	if err != nil {
		return err
	}
	return t.bc.Set(key, blob)
}

// Lookup answers synchronously (the data is already in memory), so both
// wait modes return a ready handle.
func (t *Tier) Lookup(key string, create cache.CreateFunc, _ bool) cache.TieredHandle {
	blob, err := t.bc.Get(key)
	if err != nil {
		if !errors.Is(err, bc.ErrEntryNotFound) {
			t.log.Warn("bigcache tier lookup failed", cache.Fields{"key": key, "err": err.Error()})
		}
		return nil
	}
	env, err := t.codec.Decode(blob)
	if err != nil {
		t.log.Warn("bigcache tier blob rejected", cache.Fields{"key": key, "err": err.Error()})
		return nil
	}
	obj, charge, err := create(env.Payload)
	if err != nil {
		t.log.Warn("value reconstruction failed", cache.Fields{"key": key, "err": err.Error()})
		return cache.NewReadyTieredHandle(nil, 0)
	}
	return cache.NewReadyTieredHandle(obj, charge)
}

func (t *Tier) Erase(key string) {
	// Best-effort; a missing key is fine.
	_ = t.bc.Delete(key)
}

func (t *Tier) Close() error {
	return t.bc.Close()
}

var _ cache.TieredCache = (*Tier)(nil)
