package platform

import (
	"math"
	"runtime/debug"
	"sync"
	"time"
	"unsafe"

	"github.com/joshuapare/spacekit/internal/vmem"
)

const (
	heapPageSize    = 4096
	heapGranularity = 64 * 1024

	// heapMaxMap bounds a single mapping: 4 GiB, or 256 MiB on 32-bit.
	heapMaxMap = 1 << (28 + 4*(^uintptr(0)>>63))
)

// Heap is a Platform for tests and sandboxes that need deterministic,
// countable mappings. Regions come from anonymous OS mappings where the
// system has them and from Go byte slices otherwise.
//
// Memory handed out by Heap is invisible to the garbage collector's pointer
// scan: Go pointers stored in it do not keep their targets alive.
type Heap struct {
	mu      sync.Mutex
	limit   uintptr
	mapped  uintptr
	maps    int
	unmaps  int
	regions map[uintptr]*heapRegion
}

type heapRegion struct {
	buf   []byte  // nil for OS-backed regions
	size  uintptr // bytes still counted as mapped
	alloc uintptr // bytes obtained from the OS
}

var _ Platform = (*Heap)(nil)

// NewHeap returns a Go-heap binding. A non-zero limit caps the bytes that
// may be mapped at once; Map fails with ErrExhausted beyond it.
func NewHeap(limit uintptr) *Heap {
	return &Heap{
		limit:   limit,
		regions: make(map[uintptr]*heapRegion),
	}
}

func (h *Heap) PageSize() uintptr    { return heapPageSize }
func (h *Heap) Granularity() uintptr { return heapGranularity }

// Map fails with ErrExhausted for sizes above the limit, or above a cap
// derived from the Go memory limit when no limit is set.
func (h *Heap) Map(size uintptr) (uintptr, error) {
	if size == 0 || size > maxHeapMap() {
		return 0, ErrExhausted
	}
	size = (size + heapPageSize - 1) &^ (heapPageSize - 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limit != 0 && (size > h.limit || h.mapped > h.limit-size) {
		return 0, ErrExhausted
	}
	// One spare page keeps regions from ever being adjacent and, for Go
	// slices, lets the region start on a page boundary.
	r := &heapRegion{size: size, alloc: size + heapPageSize}
	var base uintptr
	if vmem.Supported {
		mm, err := vmem.Map(r.alloc)
		if err != nil {
			return 0, ErrExhausted
		}
		base = mm
	} else {
		r.buf = make([]byte, r.alloc)
		base = (uintptr(unsafe.Pointer(&r.buf[0])) + heapPageSize - 1) &^ (heapPageSize - 1)
	}
	h.regions[base] = r
	h.mapped += size
	h.maps++
	return base, nil
}

// maxHeapMap is the largest single mapping: heapMaxMap, lowered to half the
// Go memory limit when one is configured.
func maxHeapMap() uintptr {
	m := uintptr(heapMaxMap)
	if lim := debug.SetMemoryLimit(-1); lim > 0 && lim < math.MaxInt64 {
		m = min(m, uintptr(lim)/2)
	}
	return m
}

func (h *Heap) Unmap(addr, size uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for base, r := range h.regions {
		if addr < base || addr >= base+r.size {
			continue
		}
		switch {
		case addr == base && size == r.size:
			if r.buf == nil {
				if err := vmem.Unmap(base, r.alloc); err != nil {
					return err
				}
			}
			delete(h.regions, base)
		case addr > base && addr+size == base+r.size:
			// Tail release: the bytes stay reserved until the whole region
			// goes but are no longer counted.
			r.size -= size
		default:
			return ErrNotMapped
		}
		h.mapped -= size
		h.unmaps++
		return nil
	}
	return ErrNotMapped
}

func (h *Heap) Entropy() uint64 {
	return uint64(time.Now().UnixNano())
}

// Mapped returns the bytes currently mapped.
func (h *Heap) Mapped() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mapped
}

// MapCalls returns the number of successful Map calls.
func (h *Heap) MapCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maps
}

// UnmapCalls returns the number of successful Unmap calls.
func (h *Heap) UnmapCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unmaps
}

// Regions returns the number of live mappings.
func (h *Heap) Regions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.regions)
}
