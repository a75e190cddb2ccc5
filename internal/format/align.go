package format

import "math/bits"

// Alignment and size-class arithmetic for chunks.

// AlignOffset returns the distance from addr up to the next Alignment boundary.
//
// Example:
//
//	AlignOffset(0x1000) = 0
//	AlignOffset(0x1008) = 8
func AlignOffset(addr uintptr) uintptr {
	if addr&AlignMask == 0 {
		return 0
	}
	return (Alignment - (addr & AlignMask)) & AlignMask
}

// AlignUp rounds n up to a multiple of unit, which must be a power of two.
//
// Example:
//
//	AlignUp(1, 4096)    = 4096
//	AlignUp(4096, 4096) = 4096
//	AlignUp(4097, 4096) = 8192
func AlignUp(n, unit uintptr) uintptr {
	return (n + unit - 1) &^ (unit - 1)
}

// IsAligned reports whether addr is a multiple of Alignment.
func IsAligned(addr uintptr) bool {
	return addr&AlignMask == 0
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// PadRequest converts a user request into a chunk size, overhead included.
func PadRequest(req uintptr) uintptr {
	return (req + ChunkOverhead + AlignMask) &^ AlignMask
}

// RequestToSize is PadRequest clamped to MinChunkSize.
func RequestToSize(req uintptr) uintptr {
	if req < MinRequest {
		return MinChunkSize
	}
	return PadRequest(req)
}

// ChunkToMem returns the payload address of the chunk at p.
func ChunkToMem(p uintptr) uintptr { return p + 2*WordSize }

// MemToChunk returns the chunk address owning the payload at mem.
func MemToChunk(mem uintptr) uintptr { return mem - 2*WordSize }

// AlignAsChunk returns the first chunk address at or after base whose
// payload is aligned.
func AlignAsChunk(base uintptr) uintptr {
	return base + AlignOffset(ChunkToMem(base))
}

// IsSmall reports whether a chunk of size s belongs in a small bin.
func IsSmall(s uintptr) bool {
	return s>>SmallBinShift < NSmallBins
}

// SmallIndex returns the small bin index of a chunk of size s.
func SmallIndex(s uintptr) uint {
	return uint(s >> SmallBinShift)
}

// SmallIndexToSize returns the chunk size held by small bin i.
func SmallIndexToSize(i uint) uintptr {
	return uintptr(i) << SmallBinShift
}

// TreeIndex returns the tree bin index of a chunk of size s.
//
// Each power of two above MinLargeSize is split into two bins, keyed on the
// bit below the leading one.
func TreeIndex(s uintptr) uint {
	x := s >> TreeBinShift
	switch {
	case x == 0:
		return 0
	case x > 0xFFFF:
		return NTreeBins - 1
	}
	k := uint(bits.Len(uint(x)) - 1)
	return (k << 1) + uint((s>>(k+TreeBinShift-1))&1)
}

// LeftShiftForTreeIndex is the shift that moves the first undecided size bit
// of bin i into the top bit of a word.
func LeftShiftForTreeIndex(i uint) uint {
	if i == NTreeBins-1 {
		return 0
	}
	return (uint(bits.UintSize) - 1) - ((i >> 1) + TreeBinShift - 2)
}

// MinSizeForTreeIndex returns the smallest chunk size held by tree bin i.
func MinSizeForTreeIndex(i uint) uintptr {
	return (uintptr(1) << ((i >> 1) + TreeBinShift)) |
		(uintptr(i&1) << ((i >> 1) + TreeBinShift - 1))
}
