//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly) && !windows

package vmem

// Supported is false: callers must use a Go-heap binding instead.
const Supported = false

const Granularity = 64 * 1024

// Map is unavailable without an mmap-capable OS.
func Map(size uintptr) (uintptr, error) {
	return 0, ErrUnsupported
}

// Unmap is unavailable without an mmap-capable OS.
func Unmap(addr, size uintptr) error {
	return ErrUnsupported
}

// Decommit is a no-op.
func Decommit(addr, size uintptr) error {
	return nil
}
