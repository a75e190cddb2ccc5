package format

import "testing"

func TestAlignOffset(t *testing.T) {
	cases := []struct {
		addr, want uintptr
	}{
		{0x1000, 0},
		{0x1000 + Alignment, 0},
		{0x1001, Alignment - 1},
		{0x1000 + WordSize, Alignment - WordSize},
	}
	for _, c := range cases {
		if got := AlignOffset(c.addr); got != c.want {
			t.Fatalf("AlignOffset(%#x)=%d want %d", c.addr, got, c.want)
		}
		if !IsAligned(c.addr + AlignOffset(c.addr)) {
			t.Fatalf("addr %#x not aligned after offset", c.addr)
		}
	}
}

func TestRequestToSize(t *testing.T) {
	if got := RequestToSize(0); got != MinChunkSize {
		t.Fatalf("RequestToSize(0)=%d want %d", got, MinChunkSize)
	}
	if got := RequestToSize(MinRequest); got != MinChunkSize {
		t.Fatalf("RequestToSize(MinRequest)=%d want %d", got, MinChunkSize)
	}
	for req := uintptr(0); req < 4096; req++ {
		s := RequestToSize(req)
		if s&AlignMask != 0 {
			t.Fatalf("RequestToSize(%d)=%d is not aligned", req, s)
		}
		if s < req+ChunkOverhead {
			t.Fatalf("RequestToSize(%d)=%d leaves no room for overhead", req, s)
		}
	}
	if PadRequest(MaxSmallRequest) > MaxSmallSize {
		t.Fatalf("MaxSmallRequest pads to a large chunk")
	}
}

func TestSmallIndex(t *testing.T) {
	for s := MinChunkSize; s < MinLargeSize; s += Alignment {
		if !IsSmall(s) {
			t.Fatalf("size %d should be small", s)
		}
		if SmallIndexToSize(SmallIndex(s)) != s {
			t.Fatalf("small index round trip failed for %d", s)
		}
	}
	if IsSmall(MinLargeSize) {
		t.Fatalf("MinLargeSize must not be small")
	}
}

func TestTreeIndexBounds(t *testing.T) {
	if TreeIndex(MinLargeSize) != 0 {
		t.Fatalf("first large size must map to bin 0")
	}
	for i := uint(0); i < NTreeBins-1; i++ {
		lo := MinSizeForTreeIndex(i)
		if got := TreeIndex(lo); got != i {
			t.Fatalf("TreeIndex(%d)=%d want %d", lo, got, i)
		}
		next := MinSizeForTreeIndex(i + 1)
		if got := TreeIndex(next - Alignment); got != i {
			t.Fatalf("TreeIndex(%d)=%d want %d", next-Alignment, got, i)
		}
	}
	if TreeIndex(^uintptr(0)&^AlignMask) != NTreeBins-1 {
		t.Fatalf("huge sizes must map to the last bin")
	}
}

func TestLeftShiftForTreeIndex(t *testing.T) {
	// The leading bit and the half-bin bit are decided by the bin index, so
	// the shift must bring the next lower bit into the top position.
	for i := uint(0); i < NTreeBins-1; i++ {
		k := (i >> 1) + TreeBinShift
		lo := MinSizeForTreeIndex(i)
		if (lo<<LeftShiftForTreeIndex(i))>>(WordSize*8-1) != 0 {
			t.Fatalf("bin %d: decided bits leaked into the top position", i)
		}
		probe := lo | uintptr(1)<<(k-2)
		if (probe<<LeftShiftForTreeIndex(i))>>(WordSize*8-1) != 1 {
			t.Fatalf("bin %d: first undecided bit not in the top position", i)
		}
	}
	if LeftShiftForTreeIndex(NTreeBins-1) != 0 {
		t.Fatalf("last bin must not shift")
	}
}

func TestAlignUpAndPowerOfTwo(t *testing.T) {
	if AlignUp(1, 4096) != 4096 || AlignUp(4096, 4096) != 4096 || AlignUp(4097, 4096) != 8192 {
		t.Fatalf("AlignUp mismatch")
	}
	if !IsPowerOfTwo(64) || IsPowerOfTwo(0) || IsPowerOfTwo(48) {
		t.Fatalf("IsPowerOfTwo mismatch")
	}
	if MaxRequest+PadRequest(0) < MaxRequest {
		// padding a maximal request must not wrap
		t.Fatalf("MaxRequest too large")
	}
}
