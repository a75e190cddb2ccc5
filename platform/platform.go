// Package platform defines the primitive operations an allocation space is
// built on: page mappings, an optional contiguous break, an optional remap
// call, lock construction and an entropy source. A space never touches the
// operating system directly; everything goes through a Platform.
//
// Optional capabilities are expressed as separate interfaces (Remapper,
// Breaker, LockerFactory) and are discovered once, when a space is created.
package platform

import (
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnsupported indicates the platform lacks the requested capability.
	ErrUnsupported = errors.New("platform: operation not supported")

	// ErrExhausted indicates the platform has no memory left to hand out.
	ErrExhausted = errors.New("platform: memory exhausted")

	// ErrNotMapped indicates an unmap of a range the platform never mapped.
	ErrNotMapped = errors.New("platform: range not mapped")
)

// Platform is the minimum binding a space needs.
type Platform interface {
	// PageSize returns the granule of Map and Unmap. Always a power of two.
	PageSize() uintptr

	// Granularity returns the preferred size unit for new segments. Always
	// a power of two and a multiple of PageSize.
	Granularity() uintptr

	// Map returns size bytes of zeroed, page-aligned, read-write memory.
	Map(size uintptr) (uintptr, error)

	// Unmap releases [addr, addr+size). The range is either a whole
	// mapping or a page-aligned tail of one.
	Unmap(addr, size uintptr) error

	// Entropy returns a value used to seed a space's footer magic.
	Entropy() uint64
}

// Remapper is implemented by platforms that can resize a mapping.
type Remapper interface {
	// Remap resizes the mapping at addr from oldSize to newSize bytes.
	// With mayMove false the mapping must stay where it is or the call fails.
	Remap(addr, oldSize, newSize uintptr, mayMove bool) (uintptr, error)
}

// Breaker is implemented by platforms with a contiguous, sbrk-style break.
//
// The embedded Locker serializes whole sequences of Break and Grow calls.
// It is shared by every space using the same break, so callers hold it
// across a query-then-grow sequence.
type Breaker interface {
	sync.Locker

	// Break returns the current break address.
	Break() uintptr

	// Grow moves the break by delta bytes and returns the previous break.
	// A negative delta shrinks it.
	Grow(delta int) (uintptr, error)
}

// LockerFactory is implemented by platforms that supply their own space locks.
type LockerFactory interface {
	NewLocker() sync.Locker
}

// Decommitter is implemented by platforms that can return the pages of a
// range to the system while keeping it mapped.
type Decommitter interface {
	Decommit(addr, size uintptr) error
}
