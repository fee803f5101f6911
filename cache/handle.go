package cache

// Handle is an opaque capability referencing a live cache entry. It
// guarantees the entry will not be destroyed while outstanding, but
// grants no exclusive access to the value: the cache treats values as
// immutable once inserted, and concurrent holders must coordinate any
// payload mutation themselves.
//
// Every handle must be released exactly once via Cache.Release. Releasing
// twice, or releasing a handle obtained from a different cache, is
// undefined behavior.
type Handle struct {
	e *entry

	// done is non-nil for handles returned by a tiered lookup before the
	// secondary tier has produced the value. It is closed once
	// materialization finishes; e stays nil when the tier failed, so the
	// value accessor reports nil rather than an error.
	done chan struct{}
}

// ready reports whether the handle's value can be read. Always true for
// volatile-tier handles.
func (h *Handle) ready() bool {
	if h.done == nil {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// entryOrNil returns the backing entry if the handle is ready.
// Reading h.e is only safe after the done channel closed: the
// materializing goroutine publishes e before close(done).
func (h *Handle) entryOrNil() *entry {
	if h == nil || !h.ready() {
		return nil
	}
	return h.e
}
