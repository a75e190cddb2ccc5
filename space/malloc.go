package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

// malloc returns the payload address of a chunk able to hold bytes.
//
// Search order:
//  1. small request: exact or next small bin, then the dv when it fits,
//     then any larger small bin (remainder becomes the dv), then the
//     smallest tree chunk
//  2. large request: best fit in the tree bins unless the dv fits better
//  3. the dv
//  4. the top chunk
//  5. the platform
func (s *Space) malloc(bytes uintptr) (uintptr, error) {
	var nb uintptr
	switch {
	case bytes <= format.MaxSmallRequest:
		nb = format.RequestToSize(bytes)
		idx := format.SmallIndex(nb)
		smallbits := s.smallMap >> idx

		if smallbits&3 != 0 {
			// Remainderless fit in this bin or the next.
			idx += uint(^smallbits & 1)
			p := s.unlinkFirstSmallChunk(idx)
			s.setInuseAndPinuse(p, format.SmallIndexToSize(idx))
			return p.mem(), nil
		}

		if nb > s.dvSize {
			if smallbits != 0 {
				left := (smallbits << idx) & leftBits(idxToBit(idx))
				i := bitToIndex(leastBit(left))
				p := s.unlinkFirstSmallChunk(i)
				psize := format.SmallIndexToSize(i)
				if rsize := psize - nb; rsize < format.MinChunkSize {
					s.setInuseAndPinuse(p, psize)
				} else {
					s.setSizeAndPinuseOfInuseChunk(p, nb)
					r := p.plus(nb)
					setSizeAndPinuseOfFreeChunk(r, rsize)
					s.replaceDV(r, rsize)
				}
				return p.mem(), nil
			}
			if s.treeMap != 0 {
				return s.tmallocSmall(nb), nil
			}
		}

	case bytes >= format.MaxRequest:
		return 0, ErrTooLarge

	default:
		nb = format.PadRequest(bytes)
		if s.treeMap != 0 {
			if mem := s.tmallocLarge(nb); mem != 0 {
				return mem, nil
			}
		}
	}

	if nb <= s.dvSize {
		p := s.dv
		if rsize := s.dvSize - nb; rsize >= format.MinChunkSize {
			r := p.plus(nb)
			s.dv = r
			s.dvSize = rsize
			setSizeAndPinuseOfFreeChunk(r, rsize)
			s.setSizeAndPinuseOfInuseChunk(p, nb)
		} else {
			dvs := s.dvSize
			s.dv, s.dvSize = 0, 0
			s.setInuseAndPinuse(p, dvs)
		}
		return p.mem(), nil
	}

	if nb < s.topSize {
		return s.splitTop(nb), nil
	}

	return s.sysAlloc(nb)
}

// splitTop carves nb bytes off the front of the top chunk, which must be
// larger than nb.
func (s *Space) splitTop(nb uintptr) uintptr {
	s.topSize -= nb
	p := s.top
	r := p.plus(nb)
	s.top = r
	r.setHead(format.MakeHead(s.topSize, format.PInuseBit))
	s.setSizeAndPinuseOfInuseChunk(p, nb)
	return p.mem()
}
