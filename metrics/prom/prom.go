// Package prom exports cache activity and occupancy as Prometheus
// metrics: an Adapter implementing cache.Statistics for the lookup
// counters, and a Collector sampling a live cache's capacity and usage
// gauges at scrape time.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockbound/blockcache/cache"
)

// Adapter implements cache.Statistics and exports Prometheus counters.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

// New constructs a Prometheus statistics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses)
	return a
}

// RecordHit increments the hit counter.
func (a *Adapter) RecordHit() { a.hits.Inc() }

// RecordMiss increments the miss counter.
func (a *Adapter) RecordMiss() { a.misses.Inc() }

var _ cache.Statistics = (*Adapter)(nil)

// Collector samples a cache's occupancy on every scrape. Occupancy
// moves with every insert and release, so sampling at scrape time is
// cheaper than pushing gauge updates from the hot path.
type Collector struct {
	c cache.Cache

	capacity    *prometheus.Desc
	usage       *prometheus.Desc
	pinnedUsage *prometheus.Desc
}

// NewCollector builds a Collector for c. Register it with a
// prometheus.Registerer; it is not registered automatically.
func NewCollector(c cache.Cache, ns, sub string, constLabels prometheus.Labels) *Collector {
	fq := func(name string) string {
		return prometheus.BuildFQName(ns, sub, name)
	}
	return &Collector{
		c:           c,
		capacity:    prometheus.NewDesc(fq("capacity_bytes"), "Configured cache capacity", nil, constLabels),
		usage:       prometheus.NewDesc(fq("usage_bytes"), "Total charge of resident entries", nil, constLabels),
		pinnedUsage: prometheus.NewDesc(fq("pinned_usage_bytes"), "Total charge of entries pinned by handles", nil, constLabels),
	}
}

func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- col.capacity
	ch <- col.usage
	ch <- col.pinnedUsage
}

func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(col.capacity, prometheus.GaugeValue, float64(col.c.GetCapacity()))
	ch <- prometheus.MustNewConstMetric(col.usage, prometheus.GaugeValue, float64(col.c.GetUsage()))
	ch <- prometheus.MustNewConstMetric(col.pinnedUsage, prometheus.GaugeValue, float64(col.c.GetPinnedUsage()))
}

var _ prometheus.Collector = (*Collector)(nil)
