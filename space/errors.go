package space

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNoMemory indicates the platform could not supply more memory.
	ErrNoMemory = errors.New("space: out of memory")

	// ErrTooLarge indicates a request above the largest representable chunk.
	ErrTooLarge = errors.New("space: request exceeds maximum size")

	// ErrOverflow indicates a count * size computation wrapped.
	ErrOverflow = errors.New("space: size computation overflows")

	// ErrFootprintLimit indicates growth would exceed the footprint limit.
	ErrFootprintLimit = errors.New("space: footprint limit reached")

	// ErrBadPointer indicates an address that is not a live chunk of the space.
	ErrBadPointer = errors.New("space: address is not a live chunk of this space")

	// ErrCorrupted indicates an internal consistency check failed.
	ErrCorrupted = errors.New("space: heap corruption detected")

	// ErrNotInPlace indicates ReallocInPlace could not resize without moving.
	ErrNotInPlace = errors.New("space: cannot resize in place")

	// ErrCapacityTooSmall indicates a region too small to hold a space.
	ErrCapacityTooSmall = errors.New("space: capacity too small for bookkeeping")

	// ErrInvalidGranularity indicates a granularity that is not a power of
	// two multiple of the page size.
	ErrInvalidGranularity = errors.New("space: invalid granularity")

	// ErrNoPlatform indicates New was called without a platform binding.
	ErrNoPlatform = errors.New("space: no platform binding")

	// ErrDestroyed indicates a call on a destroyed space.
	ErrDestroyed = errors.New("space: space destroyed")
)

// UsageError reports an address handed to Free, Realloc or a similar call
// that does not validate as a live chunk of the space.
type UsageError struct {
	Space  string
	Op     string
	Addr   uintptr
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("space %s: %s(%#x): %s", e.Space, e.Op, e.Addr, e.Reason)
}

func (e *UsageError) Unwrap() error { return ErrBadPointer }

// CorruptionError reports a failed internal consistency check. Under
// PolicyProceed the space has been reset when this error is returned.
type CorruptionError struct {
	Space  string
	Addr   uintptr
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("space %s: corrupted chunk at %#x: %s", e.Space, e.Addr, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return ErrCorrupted }
