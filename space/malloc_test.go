package space

import (
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/spacekit/internal/format"
)

func TestMalloc_ZeroBytes(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	p := mustMalloc(t, s, 0)
	assert.Zero(t, addr(p)%format.Alignment)
	assert.Equal(t, format.MinChunkSize-format.ChunkOverhead, s.UsableSize(p))
	require.NoError(t, s.Free(p))
	requireValid(t, s)
}

func TestMalloc_MaxSizeFailsWithoutSideEffects(t *testing.T) {
	var failures []uintptr
	cfg := DefaultConfig
	cfg.OnAllocFailure = func(size uintptr, err error) { failures = append(failures, size) }
	s, h := newTestSpace(t, &cfg)

	before := s.Footprint()
	maps := h.MapCalls()

	p, err := s.Malloc(^uintptr(0))
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Nil(t, p)

	p, err = s.Malloc(format.MaxRequest - 1)
	require.Error(t, err)
	assert.Nil(t, p)

	assert.Equal(t, before, s.Footprint())
	assert.Equal(t, maps, h.MapCalls())
	assert.Len(t, failures, 2)
	requireValid(t, s)
}

func TestMalloc_ImpossibleSizesReturnErrors(t *testing.T) {
	s, h := newTestSpace(t, nil)
	before := s.Footprint()

	_, err := s.Malloc(^uintptr(0) >> 2)
	require.ErrorIs(t, err, ErrNoMemory)
	_, err = s.Memalign(^uintptr(0)>>24, 64)
	require.ErrorIs(t, err, ErrNoMemory)

	assert.Equal(t, before, s.Footprint())
	assert.Equal(t, 1, h.Regions())
	requireValid(t, s)
	require.NoError(t, s.Free(mustMalloc(t, s, 100)))
}

func TestMalloc_AlignmentAndUsableSize(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	var ptrs []unsafe.Pointer
	for n := uintptr(1); n < 700; n += 13 {
		p := mustMalloc(t, s, n)
		require.Zero(t, addr(p)%format.Alignment, "size %d", n)
		require.GreaterOrEqual(t, s.UsableSize(p), n)
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		fill(s, p, byte(i))
	}
	for i, p := range ptrs {
		requireFilled(t, p, byte(i), s.UsableSize(p))
	}
	requireValid(t, s)
}

func TestMalloc_SmallBinIsLIFO(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	a := mustMalloc(t, s, 40)
	_ = mustMalloc(t, s, 40)
	b := mustMalloc(t, s, 40)
	_ = mustMalloc(t, s, 40)

	require.NoError(t, s.Free(a))
	require.NoError(t, s.Free(b))
	requireValid(t, s)

	assert.Equal(t, b, mustMalloc(t, s, 40), "most recently freed chunk first")
	assert.Equal(t, a, mustMalloc(t, s, 40))
	requireValid(t, s)
}

func TestMalloc_SplitRemainderBecomesVictim(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	x := mustMalloc(t, s, 1008) // 1024 byte chunk
	_ = mustMalloc(t, s, 16)    // keeps x away from top
	require.NoError(t, s.Free(x))

	p1 := mustMalloc(t, s, 40)
	assert.Equal(t, x, p1, "small request split from the smallest tree chunk")
	assert.Equal(t, uintptr(1024-64), s.dvSize)

	p2 := mustMalloc(t, s, 40)
	assert.Equal(t, addr(x)+64, addr(p2), "next small request served from the victim")
	requireValid(t, s)
}

func TestMalloc_DirectMapping(t *testing.T) {
	s, h := newTestSpace(t, nil)
	before := s.Footprint()
	maps := h.MapCalls()

	p := mustMalloc(t, s, 1<<20)
	assert.Equal(t, maps+1, h.MapCalls())
	assert.Equal(t, 1, s.Stats().DirectMappings)
	assert.Greater(t, s.Footprint(), before+1<<20-1)
	assert.GreaterOrEqual(t, s.UsableSize(p), uintptr(1<<20))
	fill(s, p, 3)
	requireValid(t, s)

	unmaps := h.UnmapCalls()
	require.NoError(t, s.Free(p))
	assert.Equal(t, unmaps+1, h.UnmapCalls())
	assert.Equal(t, before, s.Footprint())
	assert.Zero(t, s.Stats().DirectMappings)
	requireValid(t, s)
}

func TestMalloc_GrowsNewSegments(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	var ptrs []unsafe.Pointer
	for range 64 {
		ptrs = append(ptrs, mustMalloc(t, s, 16000))
	}
	assert.Greater(t, s.Stats().Segments, 1)
	requireValid(t, s)

	for _, p := range ptrs {
		require.NoError(t, s.Free(p))
	}
	requireValid(t, s)
}

// Allocate 1000 chunks of 64 bytes, free them all, and serve 500 chunks of
// 128 bytes from the coalesced span without asking the platform for more.
func TestMalloc_ReusesCoalescedSpan(t *testing.T) {
	s, h := newTestSpace(t, nil)

	small := make([]unsafe.Pointer, 1000)
	for i := range small {
		small[i] = mustMalloc(t, s, 64)
	}
	maps := h.MapCalls()

	for i := 0; i < len(small); i += 2 {
		require.NoError(t, s.Free(small[i]))
	}
	requireValid(t, s)
	for i := 1; i < len(small); i += 2 {
		require.NoError(t, s.Free(small[i]))
	}
	requireValid(t, s)

	for range 500 {
		p := mustMalloc(t, s, 128)
		assert.Zero(t, addr(p)%format.Alignment)
	}
	assert.Equal(t, maps, h.MapCalls(), "no new segments")
	requireValid(t, s)
}

type liveAlloc struct {
	seed byte
	size uintptr
}

func TestMalloc_RandomRoundTrip(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	rng := rand.New(rand.NewPCG(1, 2))
	live := make(map[unsafe.Pointer]liveAlloc)

	ops := 20000
	if testing.Short() {
		ops = 3000
	}
	for i := range ops {
		if len(live) > 0 && rng.IntN(100) < 45 {
			for p, a := range live {
				requireFilled(t, p, a.seed, a.size)
				require.NoError(t, s.Free(p))
				delete(live, p)
				break
			}
		} else {
			var n uintptr
			switch r := rng.IntN(100); {
			case r < 70:
				n = uintptr(rng.IntN(256))
			case r < 95:
				n = uintptr(256 + rng.IntN(60000))
			default:
				n = uintptr(DefaultMmapThreshold + rng.IntN(1<<20))
			}
			p := mustMalloc(t, s, n)
			_, dup := live[p]
			require.False(t, dup, "address %p handed out twice", p)
			seed := byte(i)
			fill(s, p, seed)
			live[p] = liveAlloc{seed: seed, size: s.UsableSize(p)}
		}
		if i%1000 == 0 {
			requireValid(t, s)
		}
	}
	for p, a := range live {
		requireFilled(t, p, a.seed, a.size)
		require.NoError(t, s.Free(p))
	}
	requireValid(t, s)
}
