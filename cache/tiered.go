package cache

import "fmt"

// ItemHelper bundles the callbacks a secondary tier needs to persist a
// cached object as flat bytes. The cache stores plain object references;
// a tier stores serialized data, so the conversion must come from the
// caller. Objects in the cache can outlive any single tier
// configuration, which is why these stay plain functions rather than
// methods on the value.
type ItemHelper struct {
	// Size returns the number of bytes SaveTo will produce for obj.
	Size func(obj any) uint64

	// SaveTo writes length bytes of obj's flat form starting at offset
	// into buf. A tier may call it repeatedly with increasing offsets
	// for chunked writes; len(buf) == length on every call.
	SaveTo func(obj any, offset, length uint64, buf []byte) error

	// Delete destroys the in-memory object. Used as the entry deleter
	// by InsertWithHelper.
	Delete DeleterFunc
}

// CreateFunc rebuilds an in-memory object from the flat bytes a
// secondary tier returned. buf is only valid during the call. The
// returned charge is what the rebuilt object costs in the volatile tier.
type CreateFunc func(buf []byte) (obj any, charge uint64, err error)

// TieredCache is the delegate protocol for a slower secondary tier.
// Implementations are best-effort: a failed insert or lookup must never
// fail the volatile path.
type TieredCache interface {
	Name() string

	// Insert offers an object to the tier. The tier may serialize it
	// immediately through the helper or decline silently.
	Insert(key string, obj any, helper *ItemHelper) error

	// Lookup fetches key and rebuilds the object through create. With
	// wait=true the returned handle is ready; with wait=false the fetch
	// may proceed asynchronously. A nil return means a definite miss
	// known without I/O.
	Lookup(key string, create CreateFunc, wait bool) TieredHandle

	// Erase removes key from the tier, best-effort.
	Erase(key string)

	Close() error
}

// TieredHandle is a possibly-pending result of a tier lookup. After Wait
// returns, a nil object from Value means the tier missed or failed;
// there is no error code on this path.
type TieredHandle interface {
	Ready() bool
	Wait()
	Value() (obj any, charge uint64)
}

// NewReadyTieredHandle wraps an already-materialized lookup result (or a
// miss, with a nil obj). In-process tiers answer synchronously and use
// this for both wait modes.
func NewReadyTieredHandle(obj any, charge uint64) TieredHandle {
	return readyTieredHandle{obj: obj, charge: charge}
}

type readyTieredHandle struct {
	obj    any
	charge uint64
}

func (readyTieredHandle) Ready() bool { return true }
func (readyTieredHandle) Wait()       {}
func (h readyTieredHandle) Value() (any, uint64) {
	return h.obj, h.charge
}

// NewPendingTieredHandle runs fetch on its own goroutine and returns a
// handle that becomes ready when it finishes. fetch reports a miss or
// failure by returning a nil object.
func NewPendingTieredHandle(fetch func() (obj any, charge uint64)) TieredHandle {
	h := &pendingTieredHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.obj, h.charge = fetch()
	}()
	return h
}

type pendingTieredHandle struct {
	done   chan struct{}
	obj    any
	charge uint64
}

func (h *pendingTieredHandle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *pendingTieredHandle) Wait() { <-h.done }

func (h *pendingTieredHandle) Value() (any, uint64) {
	if !h.Ready() {
		return nil, 0
	}
	return h.obj, h.charge
}

// FlattenForTier serializes obj through the helper into a buffer from
// alloc, writing in fixed-size chunks so helpers see the increasing-
// offset protocol. The caller must hand the buffer back to
// alloc.Release.
func FlattenForTier(obj any, helper *ItemHelper, alloc Allocator) ([]byte, error) {
	if helper == nil || helper.Size == nil || helper.SaveTo == nil {
		return nil, fmt.Errorf("%w: tier insert needs size and save callbacks", ErrInvalidArgument)
	}
	const chunk = 16 << 10

	size := helper.Size(obj)
	buf := alloc.Allocate(int(size))
	for off := uint64(0); off < size; off += chunk {
		n := min(uint64(chunk), size-off)
		if err := helper.SaveTo(obj, off, n, buf[off:off+n]); err != nil {
			alloc.Release(buf)
			return nil, err
		}
	}
	return buf, nil
}
