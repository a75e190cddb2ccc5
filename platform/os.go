package platform

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/spacekit/internal/vmem"
)

type osPlatform struct{}

var (
	_ Platform    = osPlatform{}
	_ Remapper    = osPlatform{}
	_ Decommitter = osPlatform{}
)

// OS returns the binding to the operating system's virtual memory calls.
// On platforms without mappings it returns a Go-heap binding instead.
func OS() Platform {
	if !vmem.Supported {
		return NewHeap(0)
	}
	return osPlatform{}
}

func (osPlatform) PageSize() uintptr { return vmem.PageSize() }

func (osPlatform) Granularity() uintptr {
	return max(uintptr(vmem.Granularity), vmem.PageSize())
}

func (osPlatform) Map(size uintptr) (uintptr, error) {
	addr, err := vmem.Map(size)
	if err != nil {
		return 0, errors.CombineErrors(ErrExhausted, err)
	}
	return addr, nil
}

func (osPlatform) Unmap(addr, size uintptr) error {
	return vmem.Unmap(addr, size)
}

func (osPlatform) Remap(addr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	naddr, err := vmem.Remap(addr, oldSize, newSize, mayMove)
	if errors.Is(err, vmem.ErrUnsupported) {
		return 0, ErrUnsupported
	}
	return naddr, err
}

func (osPlatform) Decommit(addr, size uintptr) error {
	return vmem.Decommit(addr, size)
}

func (osPlatform) Entropy() uint64 {
	return uint64(time.Now().UnixNano()) ^ 0x55555555
}
