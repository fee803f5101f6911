// Command bench runs a synthetic workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockbound/blockcache/cache"
	pmet "github.com/blockbound/blockcache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		capacity  = flag.Uint64("cap", 64<<20, "cache capacity (charge bytes)")
		shardBits = flag.Int("shard_bits", -1, "log2 of shard count (-1 = auto)")
		policy    = flag.String("policy", "lru", "eviction policy: lru | clock")
		strict    = flag.Bool("strict", false, "strict capacity limit")
		hiRatio   = flag.Float64("high_pri_ratio", cache.DefaultHighPriPoolRatio, "high-priority pool ratio (lru only)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys      = flag.Int("keys", 1_000_000, "keyspace size")
		valueSize = flag.Uint64("value_size", 1024, "charge per inserted entry")
		zipfS     = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV     = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload   = flag.Int("preload", 0, "preload entries (0 = half of capacity)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Build cache ----
	opt := cache.Options{
		Capacity:            *capacity,
		ShardBits:           *shardBits,
		StrictCapacityLimit: *strict,
		HighPriPoolRatio:    *hiRatio,
	}
	var (
		c   cache.Cache
		err error
	)
	switch *policy {
	case "lru":
		c, err = cache.NewLRU(opt)
	case "clock":
		c, err = cache.NewClock(opt)
	default:
		log.Fatalf("unknown policy: %q (use lru or clock)", *policy)
	}
	if err != nil {
		log.Fatalf("build cache: %v", err)
	}
	defer func() { _ = c.Close() }()

	// ---- Prometheus metrics (on DefaultServeMux) ----
	var stats cache.Statistics
	if *metricsAddr != "" {
		stats = pmet.New(nil, "blockcache", "bench", nil)
		prometheus.MustRegister(pmet.NewCollector(c, "blockcache", "bench", nil))
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = int(*capacity / *valueSize / 2)
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		_ = c.Insert(k, []byte(k), *valueSize, nil, cache.PriorityLow)
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	chargeVal := *valueSize
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if h := c.Lookup(keyByZipf(), stats); h != nil {
						atomic.AddUint64(&hits, 1)
						c.Release(h, false)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					k := keyByZipf()
					_ = c.Insert(k, []byte(k), chargeVal, nil, cache.PriorityLow)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("policy=%s cap=%d shard_bits=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *capacity, *shardBits, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("usage=%d pinned=%d\n", c.GetUsage(), c.GetPinnedUsage())
}
