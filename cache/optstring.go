package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// NewFromString builds a cache from a textual option string.
//
// Two forms are accepted:
//
//	"16M"                     — a bare size: an LRU cache of that capacity
//	"capacity=16M; type=lru_cache; num_shard_bits=4"
//
// Recognized keys: type (lru_cache | clock_cache), capacity,
// num_shard_bits, strict_capacity_limit, high_pri_pool_ratio,
// use_adaptive_mutex, metadata_charge_policy. Sizes take an optional
// K/M/G/T suffix (powers of 1024).
//
// An unknown type yields ErrNotFound; anything malformed, including an
// unknown option key, yields ErrInvalidArgument.
func NewFromString(value string) (Cache, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty cache option string", ErrInvalidArgument)
	}

	if !strings.Contains(value, "=") {
		capacity, err := parseSize(value)
		if err != nil {
			return nil, err
		}
		return NewLRUCache(capacity)
	}

	kind := "lru_cache"
	opt := Options{
		ShardBits:            -1,
		HighPriPoolRatio:     DefaultHighPriPoolRatio,
		MetadataChargePolicy: MetadataChargePolicyFull,
	}

	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: option %q is not key=value", ErrInvalidArgument, pair)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)

		var err error
		switch k {
		case "type":
			kind = v
		case "capacity":
			opt.Capacity, err = parseSize(v)
		case "num_shard_bits":
			opt.ShardBits, err = strconv.Atoi(v)
		case "strict_capacity_limit":
			opt.StrictCapacityLimit, err = strconv.ParseBool(v)
		case "high_pri_pool_ratio":
			opt.HighPriPoolRatio, err = strconv.ParseFloat(v, 64)
		case "use_adaptive_mutex":
			opt.UseAdaptiveMutex, err = strconv.ParseBool(v)
		case "metadata_charge_policy":
			opt.MetadataChargePolicy, err = parseMetaPolicy(v)
		default:
			return nil, fmt.Errorf("%w: unknown cache option %q", ErrInvalidArgument, k)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: option %s=%q: %v", ErrInvalidArgument, k, v, err)
		}
	}

	switch kind {
	case "lru_cache", "lru":
		return NewLRU(opt)
	case "clock_cache", "clock":
		return NewClock(opt)
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrNotFound, kind)
	}
}

// parseSize reads a non-negative integer with an optional K/M/G/T
// (power-of-1024) suffix.
func parseSize(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidArgument)
	}
	shift := 0
	switch s[len(s)-1] {
	case 'k', 'K':
		shift = 10
	case 'm', 'M':
		shift = 20
	case 'g', 'G':
		shift = 30
	case 't', 'T':
		shift = 40
	}
	digits := s
	if shift != 0 {
		digits = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(strings.TrimSpace(digits), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed size %q", ErrInvalidArgument, s)
	}
	if shift > 0 && n > (^uint64(0))>>shift {
		return 0, fmt.Errorf("%w: size %q overflows", ErrInvalidArgument, s)
	}
	return n << shift, nil
}

func parseMetaPolicy(s string) (MetadataChargePolicy, error) {
	switch s {
	case "dont_charge_cache_metadata", "dont_charge":
		return MetadataChargePolicyDont, nil
	case "full_charge_cache_metadata", "full_charge":
		return MetadataChargePolicyFull, nil
	default:
		return 0, fmt.Errorf("unknown metadata charge policy %q", s)
	}
}
