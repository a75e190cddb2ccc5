package space

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/spacekit/platform"
)

var (
	defaultOnce  sync.Once
	defaultSpace *Space
)

// Default returns the process-wide space, creating it on first use. It grows
// through the process break when one can be reserved, and through plain
// mappings otherwise.
func Default() *Space {
	defaultOnce.Do(func() {
		var p platform.Platform = platform.OS()
		cfg := DefaultConfig
		if b, err := platform.ProcessBreak(); err == nil {
			p = b
			cfg.Contiguous = true
		} else {
			WARN("no process break, default space uses mappings only: %v\n", err)
		}
		s, err := New(p, &cfg)
		if err != nil {
			panic(errors.Wrap(err, "space: cannot create the default space"))
		}
		defaultSpace = s
	})
	return defaultSpace
}

// Malloc allocates from the default space.
func Malloc(n uintptr) (unsafe.Pointer, error) { return Default().Malloc(n) }

// Free releases an allocation of the default space.
func Free(ptr unsafe.Pointer) error { return Default().Free(ptr) }

// Calloc allocates zeroed memory from the default space.
func Calloc(count, size uintptr) (unsafe.Pointer, error) { return Default().Calloc(count, size) }

// Realloc resizes an allocation of the default space.
func Realloc(ptr unsafe.Pointer, n uintptr) (unsafe.Pointer, error) {
	return Default().Realloc(ptr, n)
}

// Memalign allocates aligned memory from the default space.
func Memalign(alignment, n uintptr) (unsafe.Pointer, error) {
	return Default().Memalign(alignment, n)
}

// UsableSize reports the usable bytes of an allocation of the default space.
func UsableSize(ptr unsafe.Pointer) uintptr { return Default().UsableSize(ptr) }

// Trim releases unused memory of the default space.
func Trim(pad uintptr) bool { return Default().Trim(pad) }
