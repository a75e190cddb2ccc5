//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Supported reports whether Map and Unmap reach the operating system.
const Supported = true

// Granularity is the preferred size unit for new mappings.
const Granularity = 64 * 1024

// Map returns size bytes of zeroed, private, read-write memory.
func Map(size uintptr) (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, nil, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	return uintptr(p), nil
}

// Unmap releases [addr, addr+size). The range may be any page-aligned part
// of a previous mapping.
func Unmap(addr, size uintptr) error {
	return unix.MunmapPtr(unsafe.Pointer(addr), size)
}

// Decommit hands the pages of [addr, addr+size) back to the OS while keeping
// the range mapped; later reads see zeroes.
func Decommit(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	return unix.Madvise(unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), unix.MADV_DONTNEED)
}
