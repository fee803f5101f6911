// Package util contains internal helpers (hashing, shard sizing, padding).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// HashKey hashes a cache key with 64-bit XXH64.
// The same value is used for shard selection and is kept on the entry so
// Release/Erase can route back to the owning shard without re-hashing.
func HashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}

// ShardIndex maps a 64-bit key hash to a shard index.
// The shard count is always 1<<bits, so masking is exact.
func ShardIndex(hash uint64, numShards int) int {
	return int(hash & uint64(numShards-1))
}
