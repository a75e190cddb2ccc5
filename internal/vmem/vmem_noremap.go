//go:build !linux

package vmem

// Remap is only available on Linux.
func Remap(addr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	return 0, ErrUnsupported
}
