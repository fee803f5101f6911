package util

// MaxShardBits caps the shard count at 2^6 = 64 shards. Beyond that the
// per-shard slice of capacity gets too small to hold useful working sets,
// while lock contention is already negligible.
const MaxShardBits = 6

// minShardSize is the smallest capacity slice worth giving its own lock
// and eviction structure: 512 KiB.
const minShardSize = 512 * 1024

// DefaultShardBits picks a shard-bit count for a given capacity so that
// every shard covers at least minShardSize bytes of budget, capped at
// MaxShardBits. A tiny cache gets a single shard.
func DefaultShardBits(capacity uint64) int {
	bits := 0
	numShards := capacity / minShardSize
	for numShards >>= 1; numShards != 0; numShards >>= 1 {
		bits++
		if bits >= MaxShardBits {
			return MaxShardBits
		}
	}
	return bits
}
