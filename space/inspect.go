package space

import (
	"unsafe"

	"github.com/joshuapare/spacekit/internal/format"
)

// Visitor receives one chunk of a heap walk. For an in-use chunk, start is
// its payload address and used the usable bytes. For a free chunk, start is
// the first byte after its bookkeeping fields and used is 0.
type Visitor func(start, end unsafe.Pointer, used uintptr)

// walkSegment calls fn for every chunk of sg in address order, stopping at
// the top chunk or the fence posts that end the segment.
func (s *Space) walkSegment(sg *segment, fn func(q chunk) bool) {
	q := chunk(format.AlignAsChunk(sg.base))
	for sg.holds(uintptr(q)) && q.head() != format.FencepostHead {
		if !fn(q) || q == s.top {
			return
		}
		size := q.size()
		if size == 0 {
			s.corrupt(q, "zero sized chunk in segment walk")
		}
		q = q.plus(size)
	}
}

// inspectAll walks every segment and direct mapping.
func (s *Space) inspectAll(visit Visitor) {
	for sg := s.seg; sg != nil; sg = sg.next {
		s.walkSegment(sg, func(q chunk) bool {
			next := q.next()
			sz := q.size()
			var start, used uintptr
			switch {
			case q.inuse():
				start, used = q.mem(), sz-format.ChunkOverhead
			case format.IsSmall(sz):
				start = uintptr(q) + format.SmallChunkSize
			default:
				start = uintptr(q) + format.TreeChunkSize
			}
			// Skip chunks that are all bookkeeping.
			if start < uintptr(next) {
				visit(unsafe.Pointer(start), unsafe.Pointer(next), used)
			}
			return true
		})
	}
	for p := range s.direct {
		sz := p.size()
		visit(unsafe.Pointer(p.mem()), unsafe.Pointer(uintptr(p)+sz), sz-format.MmapChunkOverhead)
	}
}
