package space

import (
	"unsafe"

	"github.com/joshuapare/spacekit/internal/buf"
	"github.com/joshuapare/spacekit/internal/format"
)

// ialloc carves count adjacent chunks out of one allocation. With
// sameSize set every element is sizes[0] bytes; otherwise element i is
// sizes[i] bytes. The chunks are independently freeable.
func (s *Space) ialloc(count uintptr, sizes []uintptr, sameSize, zero bool) ([]unsafe.Pointer, error) {
	if count == 0 {
		return []unsafe.Pointer{}, nil
	}

	var elemSize, total uintptr
	if sameSize {
		if sizes[0] >= format.MaxRequest {
			return nil, ErrTooLarge
		}
		elemSize = format.RequestToSize(sizes[0])
		var ok bool
		if total, ok = buf.MulOverflowSafe(count, elemSize); !ok {
			return nil, ErrOverflow
		}
	} else {
		for _, n := range sizes {
			if n >= format.MaxRequest {
				return nil, ErrTooLarge
			}
			var ok bool
			if total, ok = buf.AddOverflowSafe(total, format.RequestToSize(n)); !ok {
				return nil, ErrOverflow
			}
		}
	}
	if total >= format.MaxRequest {
		return nil, ErrTooLarge
	}

	// The elements must share one segment chunk, never a direct mapping.
	wasMmap := s.useMmap
	s.useMmap = false
	mem, err := s.malloc(total - format.ChunkOverhead)
	s.useMmap = wasMmap
	if err != nil {
		return nil, err
	}

	p := memToChunk(mem)
	remainder := p.size()
	if zero {
		format.Clear(mem, remainder-format.ChunkOverhead)
	}

	out := make([]unsafe.Pointer, count)
	for i := range count {
		out[i] = unsafe.Pointer(p.mem())
		if i == count-1 {
			// The last element absorbs any slack.
			s.setSizeAndPinuseOfInuseChunk(p, remainder)
			break
		}
		size := elemSize
		if !sameSize {
			size = format.RequestToSize(sizes[i])
		}
		remainder -= size
		s.setSizeAndPinuseOfInuseChunk(p, size)
		p = p.plus(size)
	}
	return out, nil
}

// bulkFree frees every non-nil entry of ptrs and clears it. Entries that do
// not belong to s are left in place and counted. Runs of adjacent chunks
// are merged before being freed.
func (s *Space) bulkFree(ptrs []unsafe.Pointer) int {
	unfreed := 0
	for i, ptr := range ptrs {
		if ptr == nil {
			continue
		}
		mem := uintptr(ptr)
		p, reason := s.checkInUse(mem)
		if reason != "" {
			unfreed++
			continue
		}
		ptrs[i] = nil
		psize := p.size()
		if i+1 < len(ptrs) && !p.mapped() {
			next := p.plus(psize)
			if uintptr(ptrs[i+1]) == next.mem() {
				if _, r := s.checkInUse(next.mem()); r == "" {
					s.setInuse(p, psize+next.size())
					ptrs[i+1] = unsafe.Pointer(p.mem())
					continue
				}
			}
		}
		s.disposeChunk(p, psize)
	}
	if s.topSize > s.trimCheck {
		s.sysTrim(0)
	}
	return unfreed
}
