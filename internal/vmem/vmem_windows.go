//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const Supported = true

// Granularity matches the Windows allocation granularity.
const Granularity = 64 * 1024

// Map reserves and commits size bytes of zeroed read-write memory.
func Map(size uintptr) (uintptr, error) {
	return windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
}

// Unmap releases [addr, addr+size). VirtualFree can only release whole
// reservations, so the range must be a run of complete regions that were
// each returned by Map.
func Unmap(addr, size uintptr) error {
	var info windows.MemoryBasicInformation
	for size > 0 {
		if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
			return err
		}
		if info.BaseAddress != addr || info.AllocationBase != addr ||
			info.State != windows.MEM_COMMIT || info.RegionSize > size {
			return ErrUnsupported
		}
		if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
			return err
		}
		addr += info.RegionSize
		size -= info.RegionSize
	}
	return nil
}

// Decommit is a no-op on Windows; released break pages stay committed.
func Decommit(addr, size uintptr) error {
	return nil
}
