package space

import (
	"github.com/joshuapare/spacekit/internal/format"
)

// chunk is the address of a chunk header. The same address is read as a
// small free chunk (fd, bk) or a tree node (fd, bk, children, parent,
// index) depending on its size; both views share the accessors below.
type chunk uintptr

func memToChunk(mem uintptr) chunk { return chunk(format.MemToChunk(mem)) }

func (p chunk) mem() uintptr                 { return format.ChunkToMem(uintptr(p)) }
func (p chunk) plus(off uintptr) chunk       { return p + chunk(off) }
func (p chunk) minus(off uintptr) chunk      { return p - chunk(off) }
func (p chunk) head() format.Head            { return format.LoadHead(uintptr(p)) }
func (p chunk) setHead(h format.Head)        { format.StoreHead(uintptr(p), h) }
func (p chunk) size() uintptr                { return p.head().Size() }
func (p chunk) prevFoot() uintptr            { return format.Word(uintptr(p) + format.OffPrevFoot) }
func (p chunk) setPrevFoot(v uintptr)        { format.PutWord(uintptr(p)+format.OffPrevFoot, v) }
func (p chunk) next() chunk                  { return p.plus(p.size()) }
func (p chunk) prev() chunk                  { return p.minus(p.prevFoot()) }
func (p chunk) pinuse() bool                 { return p.head().PrevInUse() }
func (p chunk) cinuse() bool                 { return p.head().CurInUse() }
func (p chunk) inuse() bool                  { return p.head().InUse() }
func (p chunk) mapped() bool                 { return p.head().Mapped() }
func (p chunk) clearPinuse()                 { p.setHead(p.head().WithoutPrevInUse()) }
func (p chunk) setPinuse()                   { p.setHead(p.head().WithPrevInUse()) }
func (p chunk) word(off uintptr) chunk       { return chunk(format.Word(uintptr(p) + off)) }
func (p chunk) setWord(off uintptr, v chunk) { format.PutWord(uintptr(p)+off, uintptr(v)) }

// Free-list links.
func (p chunk) fd() chunk     { return p.word(format.OffFd) }
func (p chunk) bk() chunk     { return p.word(format.OffBk) }
func (p chunk) setFd(v chunk) { p.setWord(format.OffFd, v) }
func (p chunk) setBk(v chunk) { p.setWord(format.OffBk, v) }

// Tree node fields.
func (p chunk) childAddr(i uintptr) uintptr {
	return uintptr(p) + format.OffChild0 + i*format.WordSize
}
func (p chunk) child(i uintptr) chunk       { return chunk(format.Word(p.childAddr(i))) }
func (p chunk) setChild(i uintptr, c chunk) { format.PutWord(p.childAddr(i), uintptr(c)) }
func (p chunk) parent() chunk               { return p.word(format.OffParent) }
func (p chunk) setParent(v chunk)           { p.setWord(format.OffParent, v) }
func (p chunk) index() uint                 { return uint(format.Word(uintptr(p) + format.OffIndex)) }
func (p chunk) setIndex(i uint)             { format.PutWord(uintptr(p)+format.OffIndex, uintptr(i)) }

// leftmostChild returns child[0] if present, else child[1].
func (p chunk) leftmostChild() chunk {
	if c := p.child(0); c != 0 {
		return c
	}
	return p.child(1)
}

// overhead returns the bookkeeping bytes of an in-use chunk.
func (p chunk) overhead() uintptr {
	if p.mapped() {
		return format.MmapChunkOverhead
	}
	return format.ChunkOverhead
}

// Boundary-tag updates. Footers are always on: every in-use chunk stamps the
// next chunk's prevFoot with the space's footer value.

// footer is the value stored after every in-use chunk of s.
func (s *Space) footer() uintptr {
	return s.id() ^ s.magic
}

func (s *Space) markInuseFoot(p chunk, size uintptr) {
	p.plus(size).setPrevFoot(s.footer())
}

// setInuse marks p in use with the given size, keeping its pinuse bit, and
// sets pinuse on the following chunk.
func (s *Space) setInuse(p chunk, size uintptr) {
	p.setHead(format.MakeHead(size, p.head()&format.PInuseBit|format.CInuseBit))
	p.plus(size).setPinuse()
	s.markInuseFoot(p, size)
}

// setInuseAndPinuse marks p in use with pinuse set, and sets pinuse on the
// following chunk.
func (s *Space) setInuseAndPinuse(p chunk, size uintptr) {
	p.setHead(format.MakeHead(size, format.InuseBits))
	p.plus(size).setPinuse()
	s.markInuseFoot(p, size)
}

// setSizeAndPinuseOfInuseChunk marks p in use without touching its successor.
func (s *Space) setSizeAndPinuseOfInuseChunk(p chunk, size uintptr) {
	p.setHead(format.MakeHead(size, format.InuseBits))
	s.markInuseFoot(p, size)
}

// setSizeAndPinuseOfFreeChunk writes the head and size footer of a free chunk.
func setSizeAndPinuseOfFreeChunk(p chunk, size uintptr) {
	p.setHead(format.MakeHead(size, format.PInuseBit))
	p.plus(size).setPrevFoot(size)
}

// setFreeWithPinuse frees p and clears the pinuse bit of its successor n.
func setFreeWithPinuse(p chunk, size uintptr, n chunk) {
	n.clearPinuse()
	setSizeAndPinuseOfFreeChunk(p, size)
}
