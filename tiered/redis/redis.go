// Package redis provides a secondary tier backed by a Redis server
// (or cluster), letting warm blocks survive process restarts and be
// shared across replicas.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blockbound/blockcache/cache"
	"github.com/blockbound/blockcache/codec"
)

// Options configures the tier.
type Options struct {
	// Client is the redis client to use. Required.
	Client redis.UniversalClient

	// CloseClient makes Close shut the client down. Set only when this
	// tier exclusively owns it.
	CloseClient bool

	// Namespace prefixes every key, keeping separate caches from
	// colliding on a shared server. Default "blockcache".
	Namespace string

	// TTL for stored blobs. 0 means no expiry.
	TTL time.Duration

	// OpTimeout bounds each redis round trip. Default 250ms.
	OpTimeout time.Duration

	// Codec for stored blobs. Default codec.Msgpack: blobs outlive the
	// process, so they carry a versioned envelope.
	Codec codec.Codec

	// Allocator for flatten buffers. Default cache.NewPooledAllocator.
	Allocator cache.Allocator

	// Logger for I/O failures. Nil disables logging.
	Logger cache.Logger
}

// Tier is a cache.TieredCache backed by redis. Lookups are served
// asynchronously: the returned handle becomes ready once the round
// trip completes.
type Tier struct {
	rdb       redis.UniversalClient
	closeRdb  bool
	namespace string
	ttl       time.Duration
	opTimeout time.Duration
	codec     codec.Codec
	alloc     cache.Allocator
	log       cache.Logger
}

// New builds the tier.
func New(opt Options) (*Tier, error) {
	if opt.Client == nil {
		return nil, errors.New("redis tier: nil client")
	}
	if opt.Namespace == "" {
		opt.Namespace = "blockcache"
	}
	if opt.OpTimeout <= 0 {
		opt.OpTimeout = 250 * time.Millisecond
	}
	if opt.Codec == nil {
		opt.Codec = codec.Msgpack{}
	}
	if opt.Allocator == nil {
		opt.Allocator = cache.NewPooledAllocator()
	}
	if opt.Logger == nil {
		opt.Logger = cache.NopLogger{}
	}
	return &Tier{
		rdb:       opt.Client,
		closeRdb:  opt.CloseClient,
		namespace: opt.Namespace,
		ttl:       opt.TTL,
		opTimeout: opt.OpTimeout,
		codec:     opt.Codec,
		alloc:     opt.Allocator,
		log:       opt.Logger,
	}, nil
}

func (t *Tier) Name() string { return "redis_tier" }

func (t *Tier) key(key string) string { return t.namespace + ":" + key }

// Insert flattens obj and SETs the blob. Network errors surface to the
// caller; the volatile tier treats a failed offer as non-fatal.
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
	ctx, cancel := context.WithTimeout(context.Background(), t.opTimeout)
	defer cancel()
	return t.rdb.Set(ctx, t.key(key), blob, t.ttl).Err()
}

// Lookup starts the round trip immediately on the handle's goroutine.
// With wait=true the handle has resolved before Lookup returns; with
// wait=false the caller polls IsReady or blocks in Wait.
func (t *Tier) Lookup(key string, create cache.CreateFunc, wait bool) cache.TieredHandle {
	h := cache.NewPendingTieredHandle(func() (any, uint64) {
		return t.fetch(key, create)
	})
	if wait {
		h.Wait()
	}
	return h
}

func (t *Tier) fetch(key string, create cache.CreateFunc) (any, uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opTimeout)
	defer cancel()

	blob, err := t.rdb.Get(ctx, t.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.log.Warn("redis tier lookup failed", cache.Fields{"key": key, "err": err.Error()})
		}
		return nil, 0
	}
	env, err := t.codec.Decode(blob)
	if err != nil {
		t.log.Warn("redis tier blob rejected", cache.Fields{"key": key, "err": err.Error()})
		return nil, 0
	}
	obj, charge, err := create(env.Payload)
	if err != nil {
		t.log.Warn("value reconstruction failed", cache.Fields{"key": key, "err": err.Error()})
		return nil, 0
	}
	return obj, charge
}

func (t *Tier) Erase(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opTimeout)
	defer cancel()
	if err := t.rdb.Del(ctx, t.key(key)).Err(); err != nil {
		t.log.Warn("redis tier erase failed", cache.Fields{"key": key, "err": err.Error()})
	}
}

// Close releases the client only when this tier owns it. Safe to call
// multiple times.
func (t *Tier) Close() error {
	if !t.closeRdb {
		return nil
	}
	if err := t.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

var _ cache.TieredCache = (*Tier)(nil)
