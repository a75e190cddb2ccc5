package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

// Tree bins hold free chunks of at least format.MinLargeSize bytes. Each bin
// is a bitwise trie: at depth d a node's child is picked by the d-th size bit
// below the bits fixed by the bin index. Chunks of a size already present in
// the trie hang off that node in a ring through fd/bk and have a zero parent.

// treeRoot is the parent of a bin's root node.
const treeRoot chunk = 1

func (s *Space) markTreeMap(i uint)          { s.treeMap |= idxToBit(i) }
func (s *Space) clearTreeMap(i uint)         { s.treeMap &^= idxToBit(i) }
func (s *Space) treeMapIsMarked(i uint) bool { return s.treeMap&idxToBit(i) != 0 }

func (s *Space) insertLargeChunk(x chunk, size uintptr) {
	i := format.TreeIndex(size)
	x.setIndex(i)
	x.setChild(0, 0)
	x.setChild(1, 0)
	if !s.treeMapIsMarked(i) {
		s.markTreeMap(i)
		s.treeBins[i] = x
		x.setParent(treeRoot)
		x.setFd(x)
		x.setBk(x)
		return
	}

	t := s.treeBins[i]
	k := size << format.LeftShiftForTreeIndex(i)
	for {
		if t.size() != size {
			dir := uintptr(k >> (bitsPerWord - 1) & 1)
			k <<= 1
			if c := t.child(dir); c != 0 {
				t = c
				continue
			}
			if !s.okAddress(t) {
				s.corrupt(t, "tree node outside the space")
			}
			t.setChild(dir, x)
			x.setParent(t)
			x.setFd(x)
			x.setBk(x)
			return
		}
		f := t.fd()
		if !s.okAddress(t) || !s.okAddress(f) {
			s.corrupt(t, "tree sibling ring outside the space")
		}
		t.setFd(x)
		f.setBk(x)
		x.setFd(f)
		x.setBk(t)
		x.setParent(0)
		return
	}
}

// unlinkLargeChunk removes x from its tree bin.
//
// If x has siblings, its ring successor takes its place in the trie. If not,
// the rightmost leaf of its subtree does.
func (s *Space) unlinkLargeChunk(x chunk) {
	xp := x.parent()
	var r chunk
	if x.bk() != x {
		f := x.fd()
		r = x.bk()
		if !s.okAddress(f) || f.bk() != x || r.fd() != x {
			s.corrupt(x, "tree sibling links do not point back")
		}
		f.setBk(r)
		r.setFd(f)
	} else {
		rp := x.childAddr(1)
		if r = x.child(1); r == 0 {
			rp = x.childAddr(0)
			r = x.child(0)
		}
		if r != 0 {
			for {
				if c := r.child(1); c != 0 {
					rp, r = r.childAddr(1), c
				} else if c := r.child(0); c != 0 {
					rp, r = r.childAddr(0), c
				} else {
					break
				}
			}
			if !s.okAddress(chunk(rp)) {
				s.corrupt(chunk(rp), "tree leaf slot outside the space")
			}
			format.PutWord(rp, 0)
		}
	}

	if xp == 0 {
		// x was a sibling; the trie is untouched.
		return
	}
	i := x.index()
	switch {
	case xp == treeRoot:
		if s.treeBins[i] != x {
			s.corrupt(x, "tree root does not match its bin")
		}
		s.treeBins[i] = r
		if r == 0 {
			s.clearTreeMap(i)
		}
	case s.okAddress(xp):
		if xp.child(0) == x {
			xp.setChild(0, r)
		} else {
			xp.setChild(1, r)
		}
	default:
		s.corrupt(xp, "tree parent outside the space")
	}
	if r == 0 {
		return
	}
	if !s.okAddress(r) {
		s.corrupt(r, "replacement node outside the space")
	}
	r.setParent(xp)
	for dir := uintptr(0); dir < 2; dir++ {
		if c := x.child(dir); c != 0 {
			if !s.okAddress(c) {
				s.corrupt(c, "tree child outside the space")
			}
			r.setChild(dir, c)
			c.setParent(r)
		}
	}
}

// tmallocSmall serves a small request from the smallest chunk in the tree
// bins. The remainder, if any, becomes the designated victim.
func (s *Space) tmallocSmall(nb uintptr) uintptr {
	i := bitToIndex(leastBit(s.treeMap))
	v := s.treeBins[i]
	t := v
	rsize := t.size() - nb
	for t = t.leftmostChild(); t != 0; t = t.leftmostChild() {
		if trem := t.size() - nb; trem < rsize {
			rsize = trem
			v = t
		}
	}
	if !s.okAddress(v) {
		s.corrupt(v, "tree node outside the space")
	}
	r := v.plus(nb)
	if !okNext(v, r) {
		s.corrupt(v, "tree node smaller than request")
	}
	s.unlinkLargeChunk(v)
	if rsize < format.MinChunkSize {
		s.setInuseAndPinuse(v, rsize+nb)
	} else {
		s.setSizeAndPinuseOfInuseChunk(v, nb)
		setSizeAndPinuseOfFreeChunk(r, rsize)
		s.replaceDV(r, rsize)
	}
	return v.mem()
}

// tmallocLarge serves a large request by best fit. It returns 0 when no
// tree chunk fits better than the designated victim.
func (s *Space) tmallocLarge(nb uintptr) uintptr {
	var v chunk
	rsize := -nb // larger than any real remainder
	idx := format.TreeIndex(nb)
	t := s.treeBins[idx]
	if t != 0 {
		// Walk the trie along nb's bits, remembering the deepest right
		// subtree not taken.
		sizebits := nb << format.LeftShiftForTreeIndex(idx)
		var rst chunk
		for {
			if trem := t.size() - nb; trem < rsize {
				v = t
				if rsize = trem; rsize == 0 {
					break
				}
			}
			rt := t.child(1)
			t = t.child(uintptr(sizebits >> (bitsPerWord - 1) & 1))
			if rt != 0 && rt != t {
				rst = rt
			}
			if t == 0 {
				t = rst
				break
			}
			sizebits <<= 1
		}
	}
	if t == 0 && v == 0 {
		// Nothing in the exact bin: take the smallest of the next bin up.
		if left := leftBits(idxToBit(idx)) & s.treeMap; left != 0 {
			t = s.treeBins[bitToIndex(leastBit(left))]
		}
	}
	for t != 0 {
		if trem := t.size() - nb; trem < rsize {
			rsize = trem
			v = t
		}
		t = t.leftmostChild()
	}

	if v == 0 || rsize >= s.dvSize-nb {
		return 0
	}
	if !s.okAddress(v) {
		s.corrupt(v, "tree node outside the space")
	}
	r := v.plus(nb)
	if !okNext(v, r) {
		s.corrupt(v, "tree node smaller than request")
	}
	s.unlinkLargeChunk(v)
	if rsize < format.MinChunkSize {
		s.setInuseAndPinuse(v, rsize+nb)
	} else {
		s.setSizeAndPinuseOfInuseChunk(v, nb)
		setSizeAndPinuseOfFreeChunk(r, rsize)
		s.insertChunk(r, rsize)
	}
	return v.mem()
}
