package space

import (
	"math/bits"

	"github.com/joshuapare/spacekit/internal/format"
)

// Small bins hold free chunks of exactly one size each. A bin is a circular
// doubly linked ring threaded through fd/bk and headed by its most recently
// inserted chunk, so pops and pushes both happen at the head.

func idxToBit(i uint) uint32 { return 1 << i }

// leastBit isolates the lowest set bit of x.
func leastBit(x uint32) uint32 { return x & -x }

// leftBits returns the bits strictly above the single bit in x.
func leftBits(x uint32) uint32 { return (x << 1) | -(x << 1) }

func bitToIndex(x uint32) uint { return uint(bits.TrailingZeros32(x)) }

func (s *Space) markSmallMap(i uint)          { s.smallMap |= idxToBit(i) }
func (s *Space) clearSmallMap(i uint)         { s.smallMap &^= idxToBit(i) }
func (s *Space) smallMapIsMarked(i uint) bool { return s.smallMap&idxToBit(i) != 0 }

func (s *Space) insertSmallChunk(p chunk, size uintptr) {
	i := format.SmallIndex(size)
	h := s.smallBins[i]
	if h == 0 {
		s.markSmallMap(i)
		p.setFd(p)
		p.setBk(p)
	} else {
		if !s.okAddress(h) {
			s.corrupt(h, "small bin head outside the space")
		}
		last := h.bk()
		p.setFd(h)
		p.setBk(last)
		last.setFd(p)
		h.setBk(p)
	}
	s.smallBins[i] = p
}

func (s *Space) unlinkSmallChunk(p chunk, size uintptr) {
	i := format.SmallIndex(size)
	f, b := p.fd(), p.bk()
	if f == p {
		if b != p || s.smallBins[i] != p {
			s.corrupt(p, "broken singleton small bin")
		}
		s.smallBins[i] = 0
		s.clearSmallMap(i)
		return
	}
	if !s.okAddress(f) || !s.okAddress(b) || f.bk() != p || b.fd() != p {
		s.corrupt(p, "small bin links do not point back")
	}
	f.setBk(b)
	b.setFd(f)
	if s.smallBins[i] == p {
		s.smallBins[i] = f
	}
}

// unlinkFirstSmallChunk pops the head of bin i, which must be non-empty.
func (s *Space) unlinkFirstSmallChunk(i uint) chunk {
	p := s.smallBins[i]
	if !s.okAddress(p) {
		s.corrupt(p, "small bin head outside the space")
	}
	s.unlinkSmallChunk(p, format.SmallIndexToSize(i))
	return p
}

// replaceDV makes p the designated victim, binning the previous one.
func (s *Space) replaceDV(p chunk, size uintptr) {
	if s.dvSize != 0 {
		s.insertChunk(s.dv, s.dvSize)
	}
	s.dvSize = size
	s.dv = p
}

// insertChunk files a free chunk into the small or tree bins by size.
func (s *Space) insertChunk(p chunk, size uintptr) {
	if format.IsSmall(size) {
		s.insertSmallChunk(p, size)
		return
	}
	s.insertLargeChunk(p, size)
}

func (s *Space) unlinkChunk(p chunk, size uintptr) {
	if format.IsSmall(size) {
		s.unlinkSmallChunk(p, size)
		return
	}
	s.unlinkLargeChunk(p)
}
