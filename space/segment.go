package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

type segFlags uint

const (
	segMapped segFlags = 1 // obtained from platform.Map
	segExtern segFlags = 8 // supplied by the caller, never released
)

// segment is one contiguous range of memory owned by a space. Segments
// obtained from a break carry neither flag.
type segment struct {
	base  uintptr
	size  uintptr
	next  *segment
	flags segFlags
}

func (sg *segment) end() uintptr            { return sg.base + sg.size }
func (sg *segment) holds(addr uintptr) bool { return addr >= sg.base && addr < sg.end() }
func (sg *segment) isMapped() bool          { return sg.flags&segMapped != 0 }
func (sg *segment) isExtern() bool          { return sg.flags&segExtern != 0 }

func (sg *segment) kind() string {
	switch {
	case sg.isExtern():
		return "extern"
	case sg.isMapped():
		return "mapped"
	default:
		return "break"
	}
}

// segmentHolding returns the segment containing addr, or nil.
func (s *Space) segmentHolding(addr uintptr) *segment {
	for sg := s.seg; sg != nil; sg = sg.next {
		if sg.holds(addr) {
			return sg
		}
	}
	return nil
}

// segmentCount returns the number of segments.
func (s *Space) segmentCount() int {
	n := 0
	for sg := s.seg; sg != nil; sg = sg.next {
		n++
	}
	return n
}

// writeSegmentRecord stores a copy of sg in the payload of the record chunk
// at p. The copy is informational; the list in the space is authoritative.
func writeSegmentRecord(p chunk, sg *segment) {
	mem := p.mem()
	format.PutWord(mem, sg.base)
	format.PutWord(mem+format.WordSize, sg.size)
	format.PutWord(mem+2*format.WordSize, 0)
	format.PutWord(mem+3*format.WordSize, uintptr(sg.flags))
}
