package space

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/spacekit/internal/buf"
	"github.com/joshuapare/spacekit/internal/format"
)

// disposition says where a released chunk ended up.
type disposition int

const (
	toTop disposition = iota
	toDV
	toSmallBin
	toTreeBin
	toPlatform
)

// checkInUse checks that mem is the payload address of a live chunk of s
// and returns the chunk, or the reason it is not one. Every read it makes
// is bounds checked against the segment or mapping the address claims to
// belong to.
func (s *Space) checkInUse(mem uintptr) (chunk, string) {
	if !format.IsAligned(mem) {
		return 0, format.ErrMisaligned.Error()
	}
	p := memToChunk(mem)

	if _, ok := s.direct[p]; ok {
		if p.head().Flags()&format.InuseBits != 0 {
			return 0, "direct mapping head lost its flags"
		}
		if p.plus(p.size()).prevFoot() != s.footer() {
			return 0, "footer does not match this space"
		}
		return p, ""
	}

	sg := s.segmentHolding(uintptr(p))
	if sg == nil || !buf.Within(sg.base, sg.size, uintptr(p), format.MinChunkSize) {
		return 0, "address outside every segment"
	}
	h := p.head()
	if !h.CurInUse() {
		return 0, "chunk is not in use"
	}
	size := h.Size()
	if size < format.MinChunkSize || size&format.AlignMask != 0 ||
		!buf.Within(sg.base, sg.size, uintptr(p), size+format.ChunkOverhead) {
		return 0, "chunk size overruns its segment"
	}
	next := p.plus(size)
	if next.prevFoot() != s.footer() {
		return 0, "footer does not match this space"
	}
	if !next.pinuse() {
		return 0, "next chunk does not record this one as in use"
	}
	return p, ""
}

// validateInUse is checkInUse reporting failures as usage errors of op.
func (s *Space) validateInUse(op string, mem uintptr) (chunk, error) {
	p, reason := s.checkInUse(mem)
	if reason != "" {
		return 0, s.usageError(op, mem, reason)
	}
	return p, nil
}

// free releases the chunk whose payload starts at mem.
func (s *Space) free(mem uintptr) error {
	p, err := s.validateInUse("free", mem)
	if err != nil {
		return err
	}
	s.freeChunk(p)
	return nil
}

// freeChunk releases the validated in-use chunk p.
func (s *Space) freeChunk(p chunk) {
	if p.mapped() {
		if _, err := s.unmapDirect(p); err != nil {
			WARN("%s: %v\n", s.name, err)
		}
		return
	}
	switch s.disposeChunk(p, p.size()) {
	case toTop:
		if s.topSize > s.trimCheck {
			s.sysTrim(0)
		}
	case toTreeBin:
		if s.releaseChecks--; s.releaseChecks == 0 {
			s.releaseUnusedSegments()
		}
	}
}

// disposeChunk frees p, of psize bytes, merging it with free neighbours.
func (s *Space) disposeChunk(p chunk, psize uintptr) disposition {
	if p.mapped() {
		if _, err := s.unmapDirect(p); err != nil {
			WARN("%s: %v\n", s.name, err)
		}
		return toPlatform
	}

	next := p.plus(psize)
	if !p.pinuse() {
		prevsize := p.prevFoot()
		p = p.prev()
		psize += prevsize
		if !s.okAddress(p) {
			s.corrupt(p, "previous chunk outside the space")
		}
		if p != s.dv {
			s.unlinkChunk(p, prevsize)
		} else if next.head()&format.InuseBits == format.InuseBits {
			s.dvSize = psize
			setFreeWithPinuse(p, psize, next)
			return toDV
		}
	}

	if !s.okAddress(next) {
		s.corrupt(next, "next chunk outside the space")
	}
	if !next.cinuse() {
		switch next {
		case s.top:
			s.topSize += psize
			s.top = p
			p.setHead(format.MakeHead(s.topSize, format.PInuseBit))
			if p == s.dv {
				s.dv, s.dvSize = 0, 0
			}
			return toTop
		case s.dv:
			s.dvSize += psize
			s.dv = p
			setSizeAndPinuseOfFreeChunk(p, s.dvSize)
			return toDV
		}
		nsize := next.size()
		psize += nsize
		s.unlinkChunk(next, nsize)
		setSizeAndPinuseOfFreeChunk(p, psize)
		if p == s.dv {
			s.dvSize = psize
			return toDV
		}
	} else {
		setFreeWithPinuse(p, psize, next)
	}

	s.insertChunk(p, psize)
	if format.IsSmall(psize) {
		return toSmallBin
	}
	return toTreeBin
}

// unmapDirect returns a directly mapped chunk to the platform.
func (s *Space) unmapDirect(p chunk) (uintptr, error) {
	offset := p.prevFoot()
	total := p.size() + offset + format.MmapFootPad
	delete(s.direct, p)
	if err := s.plat.Unmap(uintptr(p)-offset, total); err != nil {
		return 0, errors.Wrapf(err, "unmap direct chunk %#x", uintptr(p))
	}
	s.footprint -= total
	return total, nil
}
