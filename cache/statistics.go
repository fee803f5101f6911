package cache

// Statistics is an optional sink for lookup outcomes, passed per Lookup
// call. For every call exactly one of RecordHit/RecordMiss is invoked, at
// most once. A nil Statistics disables recording for that call.
//
// A lookup that misses the volatile tier but hits the secondary tier is
// recorded as a miss: the sink observes the fast path only.
type Statistics interface {
	RecordHit()
	RecordMiss()
}

// NoopStatistics discards all signals. Useful as an explicit placeholder
// where a Statistics value is required.
type NoopStatistics struct{}

func (NoopStatistics) RecordHit()  {}
func (NoopStatistics) RecordMiss() {}

var _ Statistics = NoopStatistics{}
