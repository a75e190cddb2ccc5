package space

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/spacekit/internal/format"
)

// validate checks the structural invariants of s without modifying it:
//   - every chunk lies inside its segment and tiles it exactly
//   - no two free chunks are adjacent
//   - pinuse bits agree with the previous chunk's state
//   - in-use footers carry the space's footer value; free footers carry the size
//   - every free chunk other than dv and top is in exactly the right bin
//   - bin bitmaps match bin occupancy
//   - the footprint equals the memory held by segments and direct mappings
func (s *Space) validate() error {
	if s.top == 0 {
		if s.seg != nil {
			return errors.New("space has segments but no top chunk")
		}
		return nil
	}

	freeInSegments := 0
	for sg := s.seg; sg != nil; sg = sg.next {
		n, err := s.validateSegment(sg)
		if err != nil {
			return err
		}
		freeInSegments += n
	}
	if sg := s.segmentHolding(uintptr(s.top)); sg != s.seg {
		return errors.Newf("top %#x is not in the head segment", uintptr(s.top))
	}
	if s.top.size() != s.topSize || !s.top.pinuse() {
		return errors.Newf("top head %s does not match top size %d", s.top.head(), s.topSize)
	}

	binned, err := s.validateBins()
	if err != nil {
		return err
	}
	if s.dv != 0 {
		if s.dv.inuse() || s.dv.size() != s.dvSize {
			return errors.Newf("dv %#x head %s does not match dv size %d", uintptr(s.dv), s.dv.head(), s.dvSize)
		}
		binned++
	} else if s.dvSize != 0 {
		return errors.Newf("dv size %d without a dv", s.dvSize)
	}
	if binned != freeInSegments {
		return errors.Newf("%d free chunks in segments but %d in bins", freeInSegments, binned)
	}

	if s.corruptions == 0 {
		var held uintptr
		for sg := s.seg; sg != nil; sg = sg.next {
			held += sg.size
		}
		for p := range s.direct {
			held += p.size() + p.prevFoot() + format.MmapFootPad
		}
		if held != s.footprint {
			return errors.Newf("footprint %d but segments and mappings hold %d", s.footprint, held)
		}
	}
	if s.footprint > s.maxFootprint {
		return errors.Newf("footprint %d above maximum %d", s.footprint, s.maxFootprint)
	}
	return nil
}

// validateSegment walks sg and returns the number of free chunks in it,
// top excluded.
func (s *Space) validateSegment(sg *segment) (int, error) {
	nfree := 0
	prevFree := false
	first := true
	q := chunk(format.AlignAsChunk(sg.base))
	for {
		if !sg.holds(uintptr(q)) || uintptr(q)+format.ChunkOverhead > sg.end() {
			return 0, errors.Newf("segment %#x: walk left the segment at %#x", sg.base, uintptr(q))
		}
		h := q.head()
		if h == format.FencepostHead {
			break
		}
		if !format.IsAligned(q.mem()) {
			return 0, errors.Wrapf(format.ErrMisaligned, "segment %#x: chunk %#x", sg.base, uintptr(q))
		}
		if !first && h.PrevInUse() == prevFree {
			return 0, errors.Newf("segment %#x: chunk %#x pinuse disagrees with its predecessor", sg.base, uintptr(q))
		}
		if q == s.top {
			if prevFree {
				return 0, errors.Newf("free chunk before top %#x", uintptr(q))
			}
			if uintptr(q)+s.topSize+format.TopFootSize != sg.end() {
				return 0, errors.Newf("top %#x does not end %d bytes before its segment", uintptr(q), format.TopFootSize)
			}
			return nfree, nil
		}
		if err := format.CheckHead(h); err != nil {
			return 0, errors.Wrapf(err, "segment %#x: chunk %#x head %s", sg.base, uintptr(q), h)
		}

		size := h.Size()
		next := q.plus(size)
		if uintptr(next) >= sg.end() {
			return 0, errors.Newf("segment %#x: chunk %#x size %d overruns", sg.base, uintptr(q), size)
		}
		if h.CurInUse() {
			if next.prevFoot() != s.footer() {
				return 0, errors.Newf("chunk %#x footer %#x does not match the space", uintptr(q), next.prevFoot())
			}
			prevFree = false
		} else {
			if prevFree {
				return 0, errors.Newf("adjacent free chunks at %#x", uintptr(q))
			}
			if next.prevFoot() != size {
				return 0, errors.Newf("free chunk %#x footer %d does not match size %d", uintptr(q), next.prevFoot(), size)
			}
			nfree++
			prevFree = true
		}
		first = false
		q = next
	}
	if prevFree {
		return 0, errors.Newf("segment %#x ends in a free chunk", sg.base)
	}
	return nfree, nil
}

// validateBins checks every bin and returns the number of chunks in them.
func (s *Space) validateBins() (int, error) {
	n := 0
	for i := uint(0); i < format.NSmallBins; i++ {
		h := s.smallBins[i]
		if (h != 0) != s.smallMapIsMarked(i) {
			return 0, errors.Newf("small bin %d occupancy disagrees with the bitmap", i)
		}
		if h == 0 {
			continue
		}
		p := h
		for {
			if p.inuse() || p.size() != format.SmallIndexToSize(i) {
				return 0, errors.Newf("small bin %d holds chunk %#x with head %s", i, uintptr(p), p.head())
			}
			if p.fd().bk() != p || p.bk().fd() != p {
				return 0, errors.Newf("small bin %d links broken at %#x", i, uintptr(p))
			}
			if p == s.dv || p == s.top {
				return 0, errors.Newf("small bin %d holds dv or top", i)
			}
			n++
			if p = p.fd(); p == h {
				break
			}
		}
	}
	for i := uint(0); i < format.NTreeBins; i++ {
		t := s.treeBins[i]
		if (t != 0) != s.treeMapIsMarked(i) {
			return 0, errors.Newf("tree bin %d occupancy disagrees with the bitmap", i)
		}
		if t == 0 {
			continue
		}
		if t.parent() != treeRoot {
			return 0, errors.Newf("tree bin %d root %#x has parent %#x", i, uintptr(t), uintptr(t.parent()))
		}
		c, err := s.validateTree(t, i)
		if err != nil {
			return 0, err
		}
		n += c
	}
	return n, nil
}

// validateTree checks the subtree at t of bin i and returns its chunk count.
func (s *Space) validateTree(t chunk, i uint) (int, error) {
	lo := format.MinSizeForTreeIndex(i)
	hi := Unlimited
	if i+1 < format.NTreeBins {
		hi = format.MinSizeForTreeIndex(i+1) - 1
	}
	size := t.size()
	n := 0
	u := t
	for {
		if u.inuse() || u.size() != size || u.index() != i {
			return 0, errors.Newf("tree bin %d node %#x head %s index %d", i, uintptr(u), u.head(), u.index())
		}
		if size < lo || size > hi {
			return 0, errors.Newf("tree bin %d holds size %d outside [%d, %d]", i, size, lo, hi)
		}
		if u.fd().bk() != u || u.bk().fd() != u {
			return 0, errors.Newf("tree bin %d sibling links broken at %#x", i, uintptr(u))
		}
		if u != t && u.parent() != 0 {
			return 0, errors.Newf("tree bin %d sibling %#x has a parent", i, uintptr(u))
		}
		n++
		if u = u.fd(); u == t {
			break
		}
	}
	for dir := uintptr(0); dir < 2; dir++ {
		c := t.child(dir)
		if c == 0 {
			continue
		}
		if c.parent() != t {
			return 0, errors.Newf("tree bin %d child %#x does not point back to %#x", i, uintptr(c), uintptr(t))
		}
		if c.size() == size {
			return 0, errors.Newf("tree bin %d child %#x repeats size %d", i, uintptr(c), size)
		}
		m, err := s.validateTree(c, i)
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}
