package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

// sysTrim returns unused memory at the end of the top segment to the
// platform, keeping pad bytes of top, then releases every other segment
// that holds nothing. It reports whether anything was released.
func (s *Space) sysTrim(pad uintptr) bool {
	var released uintptr
	if pad >= format.MaxRequest || s.top == 0 {
		return false
	}

	pad += format.TopFootSize
	if s.topSize > pad {
		unit := s.granularity
		extra := ((s.topSize-pad+(unit-1))/unit - 1) * unit
		sg := s.segmentHolding(uintptr(s.top))
		switch {
		case sg == nil, sg.isExtern(), extra == 0:
		case sg.isMapped():
			if sg.size >= extra {
				released = s.shrinkMapping(sg, extra)
			}
		case s.brk != nil:
			released = s.shrinkBreak(sg, extra)
		}
		if released != 0 {
			sg.size -= released
			s.footprint -= released
			s.initTop(s.top, s.topSize-released)
			if DBGon() {
				DBG("%s: trimmed %d bytes off segment %#x\n", s.name, released, sg.base)
			}
		}
	}

	released += s.releaseUnusedSegments()

	// Stop trying on every free if nothing could be released.
	if released == 0 && s.topSize > s.trimCheck {
		s.trimCheck = Unlimited
	}
	return released != 0
}

// shrinkMapping gives back the last extra bytes of a mapped segment, in
// place through the remapper when there is one.
func (s *Space) shrinkMapping(sg *segment, extra uintptr) uintptr {
	newsize := sg.size - extra
	if s.remap != nil {
		if _, err := s.remap.Remap(sg.base, sg.size, newsize, false); err == nil {
			return extra
		}
	}
	if err := s.plat.Unmap(sg.base+newsize, extra); err != nil {
		if DBGon() {
			DBG("%s: unmap of segment tail %#x failed: %v\n", s.name, sg.base+newsize, err)
		}
		return 0
	}
	return extra
}

// shrinkBreak lowers the break by up to extra bytes when sg ends at it.
func (s *Space) shrinkBreak(sg *segment, extra uintptr) uintptr {
	if extra >= format.HalfMaxSize {
		extra = format.HalfMaxSize + 1 - s.granularity
	}
	b := s.brk
	b.Lock()
	defer b.Unlock()
	oldBr := b.Break()
	if oldBr != sg.end() {
		return 0
	}
	if _, err := b.Grow(-int(extra)); err != nil {
		return 0
	}
	if newBr := b.Break(); newBr < oldBr {
		return oldBr - newBr
	}
	return 0
}

// releaseUnusedSegments unmaps mapped segments, other than the top one,
// that consist of a single free chunk. It returns the bytes released.
func (s *Space) releaseUnusedSegments() uintptr {
	var released uintptr
	nsegs := 0
	pred := s.seg
	if pred == nil {
		return 0
	}
	for sg := pred.next; sg != nil; {
		next := sg.next
		nsegs++
		if sg.isMapped() && !sg.isExtern() {
			p := chunk(format.AlignAsChunk(sg.base))
			psize := p.size()
			if !p.inuse() && uintptr(p)+psize >= sg.end()-format.TopFootSize {
				if p == s.dv {
					s.dv, s.dvSize = 0, 0
				} else {
					s.unlinkLargeChunk(p)
				}
				if err := s.plat.Unmap(sg.base, sg.size); err == nil {
					released += sg.size
					s.footprint -= sg.size
					pred.next = next
					if DBGon() {
						DBG("%s: released segment %#x (%d bytes)\n", s.name, sg.base, sg.size)
					}
					sg = next
					continue
				}
				s.insertLargeChunk(p, psize)
			}
		}
		pred = sg
		sg = next
	}
	s.releaseChecks = max(nsegs, s.cfg.ReleaseCheckRate)
	return released
}
