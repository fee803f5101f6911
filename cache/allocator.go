package cache

import "sync"

// Allocator supplies byte buffers for flattening values on the
// secondary-tier save path. Values themselves are garbage collected, so
// this is the only place the cache handles raw buffers; a custom
// implementation can recycle them.
type Allocator interface {
	// Allocate returns a buffer of exactly n bytes.
	Allocate(n int) []byte

	// Release returns a buffer obtained from Allocate. The caller must
	// not use it afterwards.
	Release(buf []byte)
}

// NewDefaultAllocator returns the fallback allocator: plain make, GC
// reclaim, no pooling.
func NewDefaultAllocator() Allocator { return defaultAllocator{} }

type defaultAllocator struct{}

func (defaultAllocator) Allocate(n int) []byte { return make([]byte, n) }
func (defaultAllocator) Release([]byte)        {}

// NewPooledAllocator returns an allocator that recycles buffers through a
// sync.Pool. Buffers are reused when their capacity suffices and dropped
// to the GC otherwise, so a burst of large saves does not pin memory.
func NewPooledAllocator() Allocator { return &pooledAllocator{} }

type pooledAllocator struct {
	pool sync.Pool // holds *[]byte
}

func (a *pooledAllocator) Allocate(n int) []byte {
	if p, _ := a.pool.Get().(*[]byte); p != nil && cap(*p) >= n {
		return (*p)[:n]
	}
	return make([]byte, n)
}

func (a *pooledAllocator) Release(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:0]
	a.pool.Put(&buf)
}
