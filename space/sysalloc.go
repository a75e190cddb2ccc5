package space

import (
	"github.com/joshuapare/spacekit/internal/buf"
	"github.com/joshuapare/spacekit/internal/format"
)

// sysAlloc obtains memory from the platform for a request of nb bytes that
// no free chunk or the top could satisfy.
//
// Sources, in order:
//  1. a direct mapping when nb reaches the mmap threshold
//  2. the break, when the space is contiguous
//  3. a new mapping
//  4. the break as a non-contiguous last resort
//
// New memory extends the top segment when adjacent to it, is prepended to a
// segment it ends at, or becomes a new head segment.
func (s *Space) sysAlloc(nb uintptr) (uintptr, error) {
	if s.useMmap && nb >= s.mmapThreshold && s.topSize != 0 {
		if mem := s.mmapAlloc(nb); mem != 0 {
			return mem, nil
		}
	}

	padded, ok := buf.AddOverflowSafe(nb, format.SysAllocPadding)
	if !ok {
		return 0, ErrNoMemory
	}
	asize := s.granularityAlign(padded)
	if asize <= nb {
		return 0, ErrNoMemory // wrapped
	}
	if s.footprintLimit != 0 {
		if fp := s.footprint + asize; fp <= s.footprint || fp > s.footprintLimit {
			return 0, ErrFootprintLimit
		}
	}

	var (
		tbase, tsize uintptr
		flags        segFlags
		found        bool
	)
	if s.contiguous {
		tbase, tsize, found = s.growBreak(nb, asize)
	}
	if !found && s.plat != nil && asize < format.HalfMaxSize {
		if mp, err := s.plat.Map(asize); err == nil {
			tbase, tsize, flags, found = mp, asize, segMapped, true
		} else if DBGon() {
			DBG("%s: map of %d bytes failed: %v\n", s.name, asize, err)
		}
	}
	if !found && s.brk != nil {
		tbase, tsize, found = s.breakNonContiguous(nb, asize)
	}
	if !found {
		return 0, ErrNoMemory
	}

	s.footprint += tsize
	s.maxFootprint = max(s.maxFootprint, s.footprint)
	if DBGon() {
		DBG("%s: obtained %d bytes at %#x (%s)\n", s.name, tsize, tbase, (&segment{flags: flags}).kind())
	}

	if s.top == 0 {
		s.initFirstSegment(tbase, tsize, flags)
	} else if sg := s.segmentEndingAt(tbase); sg != nil && !sg.isExtern() &&
		sg.flags&segMapped == flags && sg.holds(uintptr(s.top)) {
		// Adjacent to the top segment: grow the top.
		sg.size += tsize
		s.initTop(s.top, s.topSize+tsize)
	} else {
		if tbase < s.leastAddr {
			s.leastAddr = tbase
		}
		if sg := s.segmentStartingAt(tbase + tsize); sg != nil && !sg.isExtern() && sg.flags&segMapped == flags {
			oldbase := sg.base
			sg.base = tbase
			sg.size += tsize
			return s.prependAlloc(tbase, oldbase, nb), nil
		}
		s.addSegment(tbase, tsize, flags)
	}

	if nb < s.topSize {
		return s.splitTop(nb), nil
	}
	return 0, ErrNoMemory
}

func (s *Space) segmentEndingAt(addr uintptr) *segment {
	for sg := s.seg; sg != nil; sg = sg.next {
		if sg.end() == addr {
			return sg
		}
	}
	return nil
}

func (s *Space) segmentStartingAt(addr uintptr) *segment {
	for sg := s.seg; sg != nil; sg = sg.next {
		if sg.base == addr {
			return sg
		}
	}
	return nil
}

// growBreak extends the break for a contiguous space. It returns the range
// obtained, which need not be adjacent to the current top.
func (s *Space) growBreak(nb, asize uintptr) (tbase, tsize uintptr, ok bool) {
	b := s.brk
	b.Lock()
	defer b.Unlock()

	var (
		ssize uintptr
		br    uintptr
		brOK  bool
	)
	var ss *segment
	if s.top != 0 {
		ss = s.segmentHolding(uintptr(s.top))
	}
	if ss == nil {
		// First break segment.
		base := b.Break()
		ssize = asize
		if base&(s.pageSize-1) != 0 {
			ssize += s.pageAlign(base) - base
		}
		fp := s.footprint + ssize
		if ssize > nb && ssize < format.HalfMaxSize &&
			(s.footprintLimit == 0 || (fp > s.footprint && fp <= s.footprintLimit)) {
			if got, err := b.Grow(int(ssize)); err == nil {
				if got == base {
					return got, ssize, true
				}
				br, brOK = got, true
			}
		}
	} else {
		// Extend the segment holding top, asking only for what top lacks.
		ssize = s.granularityAlign(nb - s.topSize + format.SysAllocPadding)
		if ssize < format.HalfMaxSize {
			if got, err := b.Grow(int(ssize)); err == nil {
				if got == ss.end() {
					return got, ssize, true
				}
				br, brOK = got, true
			}
		}
	}

	if !brOK {
		s.disableContiguous()
		return 0, 0, false
	}
	// Someone else moved the break: keep what we got and top it up.
	if ssize < format.HalfMaxSize && ssize < nb+format.SysAllocPadding {
		esize := s.granularityAlign(nb + format.SysAllocPadding - ssize)
		if esize < format.HalfMaxSize {
			if _, err := b.Grow(int(esize)); err == nil {
				ssize += esize
			} else {
				_, _ = b.Grow(-int(ssize))
				s.disableContiguous()
				return 0, 0, false
			}
		}
	}
	return br, ssize, true
}

func (s *Space) disableContiguous() {
	if s.contiguous && DBGon() {
		DBG("%s: break not contiguous, falling back to mappings\n", s.name)
	}
	s.contiguous = false
}

// breakNonContiguous takes asize bytes from the break without requiring
// adjacency.
func (s *Space) breakNonContiguous(nb, asize uintptr) (tbase, tsize uintptr, ok bool) {
	if asize >= format.HalfMaxSize {
		return 0, 0, false
	}
	b := s.brk
	b.Lock()
	br, err := b.Grow(int(asize))
	end := b.Break()
	b.Unlock()
	if err != nil || br >= end {
		return 0, 0, false
	}
	if ssize := end - br; ssize > nb+format.TopFootSize {
		return br, ssize, true
	}
	return 0, 0, false
}

// mmapAlloc serves nb bytes from a dedicated mapping. It returns 0 on
// failure so the caller can fall back to segments.
//
// Layout: [offset pad][chunk of psize][footer][fence post][zero head]. The
// chunk's prevFoot holds offset and its head has neither in-use bit set.
func (s *Space) mmapAlloc(nb uintptr) uintptr {
	want, ok := buf.AddOverflowSafe(nb, 6*format.WordSize+format.AlignMask)
	if !ok {
		return 0
	}
	mmsize := s.pageAlign(want)
	if mmsize <= nb {
		return 0
	}
	if s.footprintLimit != 0 {
		if fp := s.footprint + mmsize; fp <= s.footprint || fp > s.footprintLimit {
			return 0
		}
	}
	mm, err := s.plat.Map(mmsize)
	if err != nil {
		return 0
	}

	offset := format.AlignOffset(format.ChunkToMem(mm))
	psize := mmsize - offset - format.MmapFootPad
	p := chunk(mm + offset)
	p.setPrevFoot(offset)
	p.setHead(format.MakeHead(psize, 0))
	s.markInuseFoot(p, psize)
	p.plus(psize).setHead(format.FencepostHead)
	p.plus(psize + format.WordSize).setHead(0)

	if s.leastAddr == 0 || mm < s.leastAddr {
		s.leastAddr = mm
	}
	s.footprint += mmsize
	s.maxFootprint = max(s.maxFootprint, s.footprint)
	s.direct[p] = struct{}{}
	if DBGon() {
		DBG("%s: direct mapping of %d bytes at %#x\n", s.name, mmsize, mm)
	}
	return p.mem()
}

// mmapResize resizes a directly mapped chunk to hold nb bytes. It returns 0
// when the chunk must be moved by copying instead.
func (s *Space) mmapResize(oldp chunk, nb uintptr, canMove bool) chunk {
	oldsize := oldp.size()
	if format.IsSmall(nb) {
		// Small chunks do not belong in their own mapping.
		return 0
	}
	if oldsize >= nb+format.WordSize && oldsize-nb <= s.granularity<<1 {
		return oldp
	}
	if s.remap == nil {
		return 0
	}

	// offset covers the alignment pad and, after memalign, the whole lead.
	offset := oldp.prevFoot()
	oldmmsize := oldsize + offset + format.MmapFootPad
	want, ok := buf.AddOverflowSafe(nb+offset, 6*format.WordSize+format.AlignMask)
	if !ok || want < offset {
		return 0
	}
	newmmsize := s.pageAlign(want)
	if s.footprintLimit != 0 && newmmsize > oldmmsize {
		if fp := s.footprint + (newmmsize - oldmmsize); fp <= s.footprint || fp > s.footprintLimit {
			return 0
		}
	}
	cp, err := s.remap.Remap(uintptr(oldp)-offset, oldmmsize, newmmsize, canMove)
	if err != nil {
		return 0
	}

	newp := chunk(cp + offset)
	psize := newmmsize - offset - format.MmapFootPad
	newp.setHead(format.MakeHead(psize, 0))
	s.markInuseFoot(newp, psize)
	newp.plus(psize).setHead(format.FencepostHead)
	newp.plus(psize + format.WordSize).setHead(0)

	if cp < s.leastAddr {
		s.leastAddr = cp
	}
	s.footprint = s.footprint + newmmsize - oldmmsize
	s.maxFootprint = max(s.maxFootprint, s.footprint)
	delete(s.direct, oldp)
	s.direct[newp] = struct{}{}
	return newp
}

// prependAlloc serves nb bytes from the front of newbase, a range just
// obtained that ends where the segment formerly starting at oldbase begins.
// The rest of the new range is merged with the first chunk of that segment.
func (s *Space) prependAlloc(newbase, oldbase, nb uintptr) uintptr {
	p := chunk(format.AlignAsChunk(newbase))
	oldfirst := chunk(format.AlignAsChunk(oldbase))
	psize := uintptr(oldfirst - p)
	q := p.plus(nb)
	qsize := psize - nb
	s.setSizeAndPinuseOfInuseChunk(p, nb)

	switch {
	case oldfirst == s.top:
		s.topSize += qsize
		s.top = q
		q.setHead(format.MakeHead(s.topSize, format.PInuseBit))
	case oldfirst == s.dv:
		s.dvSize += qsize
		s.dv = q
		setSizeAndPinuseOfFreeChunk(q, s.dvSize)
	default:
		if !oldfirst.inuse() {
			nsize := oldfirst.size()
			s.unlinkChunk(oldfirst, nsize)
			oldfirst = oldfirst.plus(nsize)
			qsize += nsize
		}
		setFreeWithPinuse(q, qsize, oldfirst)
		s.insertChunk(q, qsize)
	}
	return p.mem()
}

// addSegment makes [tbase, tbase+tsize) the new head segment and top. The
// tail of the old top becomes a segment record chunk followed by fence
// posts; what remains in front of the record is freed.
func (s *Space) addSegment(tbase, tsize uintptr, flags segFlags) {
	oldTop := uintptr(s.top)
	oldsp := s.segmentHolding(oldTop)
	if oldsp == nil {
		s.corrupt(s.top, "top outside every segment")
	}
	oldEnd := oldsp.end()
	ssize := format.PadRequest(format.SegmentRecordSize)
	rawsp := oldEnd - (ssize + 4*format.WordSize + format.AlignMask)
	asp := rawsp + format.AlignOffset(format.ChunkToMem(rawsp))
	csp := asp
	if asp < oldTop+format.MinChunkSize {
		csp = oldTop
	}
	sp := chunk(csp)
	p := sp.plus(ssize)

	s.initTop(chunk(tbase), tsize-format.TopFootSize)

	s.setSizeAndPinuseOfInuseChunk(sp, ssize)
	writeSegmentRecord(sp, oldsp)
	s.seg = &segment{base: tbase, size: tsize, flags: flags, next: s.seg}

	nfences := 0
	for {
		nextp := p.plus(format.WordSize)
		p.setHead(format.FencepostHead)
		nfences++
		if uintptr(nextp)+format.OffHead >= oldEnd {
			break
		}
		p = nextp
	}
	if nfences < 2 {
		BUG("%s: segment at %#x ends with %d fence posts\n", s.name, oldsp.base, nfences)
	}

	if csp != oldTop {
		q := chunk(oldTop)
		psize := csp - oldTop
		setFreeWithPinuse(q, psize, sp)
		s.insertChunk(q, psize)
	}
}
