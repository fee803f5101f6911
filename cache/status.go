package cache

import "errors"

// Sentinel errors returned by cache constructors and Insert.
// Handle-protocol misuse (double release, releasing a foreign handle) is
// not reported through errors; it is a contract violation on the caller.
var (
	// ErrCacheFull is returned by Insert when the cache has a strict
	// capacity limit and eviction could not free enough charge. The
	// caller keeps ownership of the value: the deleter is NOT invoked.
	ErrCacheFull = errors.New("blockcache: insert rejected: over capacity")

	// ErrNotFound is returned by NewFromString for an unknown cache type.
	ErrNotFound = errors.New("blockcache: not found")

	// ErrInvalidArgument is returned for malformed option strings and
	// out-of-range Options fields.
	ErrInvalidArgument = errors.New("blockcache: invalid argument")
)
