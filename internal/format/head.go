package format

import "fmt"

// Head is the boundary tag stored in a chunk's head word.
//
// Layout:
//
//	bit 0   PInuseBit  previous physical chunk is in use
//	bit 1   CInuseBit  this chunk is in use
//	bit 2   Flag4Bit   unused by the engine, preserved across updates
//	rest    chunk size (always a multiple of Alignment)
//
// A chunk with neither in-use bit set is a directly mapped chunk.
type Head uintptr

const (
	PInuseBit Head = 1
	CInuseBit Head = 2
	Flag4Bit  Head = 4

	InuseBits = PInuseBit | CInuseBit
	FlagBits  = InuseBits | Flag4Bit

	// FencepostHead marks the word pairs that terminate a segment walk.
	FencepostHead = InuseBits | Head(WordSize)
)

// MakeHead packs a size and flag bits.
func MakeHead(size uintptr, flags Head) Head {
	return Head(size) | (flags & FlagBits)
}

// Size returns the chunk size with the flag bits masked off.
func (h Head) Size() uintptr { return uintptr(h &^ FlagBits) }

// Flags returns only the flag bits.
func (h Head) Flags() Head { return h & FlagBits }

// PrevInUse reports whether the physically preceding chunk is in use.
func (h Head) PrevInUse() bool { return h&PInuseBit != 0 }

// CurInUse reports whether this chunk is in use.
func (h Head) CurInUse() bool { return h&CInuseBit != 0 }

// InUse reports whether the chunk is in use, counting mapped chunks.
func (h Head) InUse() bool { return h&InuseBits != PInuseBit }

// Mapped reports whether the chunk was obtained by a dedicated mapping.
func (h Head) Mapped() bool { return h&InuseBits == 0 }

// Flag4 reports the spare flag bit.
func (h Head) Flag4() bool { return h&Flag4Bit != 0 }

// WithSize replaces the size and keeps the flags.
func (h Head) WithSize(size uintptr) Head { return MakeHead(size, h.Flags()) }

// WithPrevInUse sets PInuseBit.
func (h Head) WithPrevInUse() Head { return h | PInuseBit }

// WithoutPrevInUse clears PInuseBit.
func (h Head) WithoutPrevInUse() Head { return h &^ PInuseBit }

func (h Head) String() string {
	state := "free"
	switch {
	case h == FencepostHead:
		return "fencepost"
	case h.Mapped():
		state = "mapped"
	case h.CurInUse():
		state = "inuse"
	}
	return fmt.Sprintf("%s size=%d pinuse=%t", state, h.Size(), h.PrevInUse())
}
