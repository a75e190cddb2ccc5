//go:build linux

package vmem

import "golang.org/x/sys/unix"

// Remap resizes the mapping at addr. When mayMove is false the mapping must
// be resized where it is or the call fails.
func Remap(addr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	var flags uintptr
	if mayMove {
		flags = unix.MREMAP_MAYMOVE
	}
	r, _, errno := unix.Syscall6(unix.SYS_MREMAP, addr, oldSize, newSize, flags, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return r, nil
}
