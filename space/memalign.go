package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

// memalign returns a payload of bytes aligned to alignment. Alignments that
// are not a power of two are rounded up to the next one.
func (s *Space) memalign(alignment, bytes uintptr) (uintptr, error) {
	if alignment <= format.Alignment {
		return s.malloc(bytes)
	}
	if alignment < format.MinChunkSize {
		alignment = format.MinChunkSize
	}
	if !format.IsPowerOfTwo(alignment) {
		a := uintptr(format.Alignment << 1)
		for a < alignment && a != 0 {
			a <<= 1
		}
		if a == 0 {
			return 0, ErrTooLarge
		}
		alignment = a
	}
	if bytes >= format.MaxRequest-alignment {
		return 0, ErrTooLarge
	}

	// Over-allocate so an aligned chunk with a freeable lead fits inside.
	nb := format.RequestToSize(bytes)
	req := nb + alignment + format.MinChunkSize - format.ChunkOverhead
	mem, err := s.malloc(req)
	if err != nil {
		return 0, err
	}

	p := memToChunk(mem)
	if mem&(alignment-1) != 0 {
		br := memToChunk((mem + alignment - 1) &^ (alignment - 1))
		pos := br
		if uintptr(br-p) < format.MinChunkSize {
			pos = br.plus(alignment)
		}
		newp := pos
		leadsize := uintptr(pos - p)
		newsize := p.size() - leadsize

		if p.mapped() {
			// The lead stays part of the mapping's offset.
			newp.setPrevFoot(p.prevFoot() + leadsize)
			newp.setHead(format.MakeHead(newsize, 0))
			delete(s.direct, p)
			s.direct[newp] = struct{}{}
		} else {
			s.setInuse(newp, newsize)
			s.setInuse(p, leadsize)
			s.disposeChunk(p, leadsize)
		}
		p = newp
	}

	if !p.mapped() {
		if size := p.size(); size > nb+format.MinChunkSize {
			rsize := size - nb
			r := p.plus(nb)
			s.setInuse(p, nb)
			s.setInuse(r, rsize)
			s.disposeChunk(r, rsize)
		}
	}
	return p.mem(), nil
}
