// Package format describes the in-memory layout of allocator chunks: the
// word offsets of every chunk field, the size classes of both bin indices,
// the boundary-tag encoding and the alignment arithmetic shared by the
// engine. Nothing here knows about spaces or locking; the package only
// answers "where is this field" and "what does this word mean".
package format

import "unsafe"

const (
	// WordSize is the width of one chunk header word.
	WordSize = unsafe.Sizeof(uintptr(0))

	// Alignment is the payload alignment of every chunk (two words).
	Alignment = 2 * WordSize

	// AlignMask masks the low bits that must be zero in an aligned address.
	AlignMask = Alignment - 1

	// ChunkOverhead is the per-chunk bookkeeping of an in-use chunk: the head
	// word plus the footer kept in the next chunk's prevFoot word.
	ChunkOverhead = 2 * WordSize

	// MmapChunkOverhead is the bookkeeping of a directly mapped chunk.
	MmapChunkOverhead = 2 * WordSize

	// MmapFootPad is the trailing pad of a direct mapping: footer plus two
	// fence post heads.
	MmapFootPad = 4 * WordSize

	// MinChunkSize is the smallest chunk: prevFoot, head, fd and bk.
	MinChunkSize = (4*WordSize + AlignMask) &^ AlignMask

	// MinRequest is the largest request that still maps to MinChunkSize.
	MinRequest = MinChunkSize - ChunkOverhead - 1

	// MaxRequest bounds user requests so that padding can never wrap.
	MaxRequest = ^uintptr(0) - (MinChunkSize << 2) + 1

	// HalfMaxSize bounds single break adjustments.
	HalfMaxSize = ^uintptr(0) >> 1
)

// Chunk field offsets, relative to the chunk address.
//
// Layout of a chunk (all fields one word):
//
//	0x00  prevFoot   size of the previous chunk if it is free, else its footer
//	0x08  head       size | flag bits (see Head)
//	0x10  fd         free only: next chunk in the bin ring
//	0x18  bk         free only: previous chunk in the bin ring
//	0x20  child[0]   large free only
//	0x28  child[1]   large free only
//	0x30  parent     large free only
//	0x38  index      large free only: tree bin index
const (
	OffPrevFoot = 0
	OffHead     = WordSize
	OffFd       = 2 * WordSize
	OffBk       = 3 * WordSize
	OffChild0   = 4 * WordSize
	OffChild1   = 5 * WordSize
	OffParent   = 6 * WordSize
	OffIndex    = 7 * WordSize

	// SmallChunkSize is the byte span of the fields of a small free chunk.
	SmallChunkSize = 4 * WordSize

	// TreeChunkSize is the byte span of the fields of a large free chunk.
	TreeChunkSize = 8 * WordSize
)

// Bin geometry.
const (
	NSmallBins    = 32
	NTreeBins     = 32
	SmallBinShift = 3
	TreeBinShift  = 8

	// MinLargeSize is the first chunk size served by the tree bins.
	MinLargeSize = uintptr(1) << TreeBinShift

	// MaxSmallSize is the largest chunk size served by the small bins.
	MaxSmallSize = MinLargeSize - 1

	// MaxSmallRequest is the largest request whose padded size is small.
	MaxSmallRequest = MaxSmallSize - AlignMask - ChunkOverhead
)

// Segment bookkeeping.
const (
	// SegmentRecordSize is the size of a segment record: base, size, next
	// and flags.
	SegmentRecordSize = 4 * WordSize

	// TopFootSize is reserved at the end of the segment holding top so a
	// segment record and fence posts can be written there when the space
	// moves on to a new segment.
	TopFootSize = ((SegmentRecordSize + ChunkOverhead + AlignMask) &^ AlignMask) + MinChunkSize

	// SysAllocPadding is added to every system request for a new segment.
	SysAllocPadding = TopFootSize + Alignment
)
