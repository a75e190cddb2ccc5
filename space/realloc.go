package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

// tryReallocChunk resizes the in-use chunk p to nb bytes without moving its
// payload, except that a direct mapping may move when canMove is set. It
// returns 0 when the chunk cannot be resized that way.
func (s *Space) tryReallocChunk(p chunk, nb uintptr, canMove bool) chunk {
	if p.mapped() {
		return s.mmapResize(p, nb, canMove)
	}

	oldsize := p.size()
	next := p.plus(oldsize)
	switch {
	case oldsize >= nb:
		if rsize := oldsize - nb; rsize >= format.MinChunkSize {
			r := p.plus(nb)
			s.setInuse(p, nb)
			s.setInuse(r, rsize)
			s.disposeChunk(r, rsize)
		}
		return p

	case next == s.top:
		if oldsize+s.topSize <= nb {
			return 0
		}
		newtopsize := oldsize + s.topSize - nb
		newtop := p.plus(nb)
		s.setInuse(p, nb)
		newtop.setHead(format.MakeHead(newtopsize, format.PInuseBit))
		s.top = newtop
		s.topSize = newtopsize
		return p

	case next == s.dv:
		dvs := s.dvSize
		if oldsize+dvs < nb {
			return 0
		}
		if dsize := oldsize + dvs - nb; dsize >= format.MinChunkSize {
			r := p.plus(nb)
			n := r.plus(dsize)
			s.setInuse(p, nb)
			setSizeAndPinuseOfFreeChunk(r, dsize)
			n.clearPinuse()
			s.dv, s.dvSize = r, dsize
		} else {
			s.setInuse(p, oldsize+dvs)
			s.dv, s.dvSize = 0, 0
		}
		return p

	case !next.cinuse():
		nextsize := next.size()
		if oldsize+nextsize < nb {
			return 0
		}
		s.unlinkChunk(next, nextsize)
		if rsize := oldsize + nextsize - nb; rsize < format.MinChunkSize {
			s.setInuse(p, oldsize+nextsize)
		} else {
			r := p.plus(nb)
			s.setInuse(p, nb)
			s.setInuse(r, rsize)
			s.disposeChunk(r, rsize)
		}
		return p
	}
	return 0
}

// realloc resizes the allocation at mem to bytes, moving it when it cannot
// be resized in place. Returned errors have already been reported.
func (s *Space) realloc(mem, bytes uintptr) (uintptr, error) {
	p, err := s.validateInUse("realloc", mem)
	if err != nil {
		return 0, err
	}
	if newp := s.tryReallocChunk(p, format.RequestToSize(bytes), true); newp != 0 {
		return newp.mem(), nil
	}

	nmem, err := s.malloc(bytes)
	if err != nil {
		return 0, s.allocFailure(bytes, err)
	}
	oc := p.size() - p.overhead()
	format.Copy(nmem, mem, min(oc, bytes))
	// p was validated above and malloc never touches in-use chunks.
	s.freeChunk(p)
	return nmem, nil
}

// reallocInPlace resizes the allocation at mem without moving it.
func (s *Space) reallocInPlace(mem, bytes uintptr) (uintptr, error) {
	p, err := s.validateInUse("realloc in place", mem)
	if err != nil {
		return 0, err
	}
	if newp := s.tryReallocChunk(p, format.RequestToSize(bytes), false); newp != 0 {
		return newp.mem(), nil
	}
	return 0, ErrNotInPlace
}
