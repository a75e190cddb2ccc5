package space

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/spacekit/internal/format"
)

// MemInfo is a mallinfo-style summary of a space. All sizes are in bytes.
type MemInfo struct {
	Arena    uintptr // obtained for segments
	FreeBlks int     // free chunks, top included
	Mapped   uintptr // held by direct mappings
	MaxTotal uintptr // maximum footprint so far
	InUse    uintptr // allocated, overhead included
	Free     uintptr // free, top included
	KeepCost uintptr // releasable by Trim(0)
}

// Stats summarizes the memory a space holds.
type Stats struct {
	MaxSystem uintptr // maximum footprint so far
	System    uintptr // current footprint
	InUse     uintptr // allocated, overhead included

	Segments       int
	DirectMappings int
	Corruptions    int
}

func (s *Space) memInfo() MemInfo {
	if s.top == 0 {
		return MemInfo{MaxTotal: s.maxFootprint}
	}
	nfree := 1 // top
	mfree := s.topSize + format.TopFootSize
	sum := mfree
	for sg := s.seg; sg != nil; sg = sg.next {
		s.walkSegment(sg, func(q chunk) bool {
			if q == s.top {
				return false
			}
			sz := q.size()
			sum += sz
			if !q.inuse() {
				mfree += sz
				nfree++
			}
			return true
		})
	}
	return MemInfo{
		Arena:    sum,
		FreeBlks: nfree,
		Mapped:   s.footprint - sum,
		MaxTotal: s.maxFootprint,
		InUse:    s.footprint - mfree,
		Free:     mfree,
		KeepCost: s.topSize,
	}
}

func (s *Space) stats() Stats {
	st := Stats{
		MaxSystem:      s.maxFootprint,
		System:         s.footprint,
		Segments:       s.segmentCount(),
		DirectMappings: len(s.direct),
		Corruptions:    s.corruptions,
	}
	if s.top == 0 {
		return st
	}
	used := s.footprint - (s.topSize + format.TopFootSize)
	for sg := s.seg; sg != nil; sg = sg.next {
		s.walkSegment(sg, func(q chunk) bool {
			if q == s.top {
				return false
			}
			if !q.inuse() {
				used -= q.size()
			}
			return true
		})
	}
	st.InUse = used
	return st
}

// PrintStats writes a summary of the space to w.
func (s *Space) PrintStats(w io.Writer) {
	st := s.Stats()
	fmt.Fprintf(w, "space %s\n", s.name)
	fmt.Fprintf(w, "max system bytes = %10d (%s)\n", st.MaxSystem, humanize.IBytes(uint64(st.MaxSystem)))
	fmt.Fprintf(w, "system bytes     = %10d (%s)\n", st.System, humanize.IBytes(uint64(st.System)))
	fmt.Fprintf(w, "in use bytes     = %10d (%s)\n", st.InUse, humanize.IBytes(uint64(st.InUse)))
	fmt.Fprintf(w, "segments         = %10d\n", st.Segments)
	fmt.Fprintf(w, "direct mappings  = %10d\n", st.DirectMappings)
	if st.Corruptions > 0 {
		fmt.Fprintf(w, "corruption resets= %10d\n", st.Corruptions)
	}
}
