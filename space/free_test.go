package space

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/spacekit/internal/format"
)

func TestFree_Nil(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	require.NoError(t, s.Free(nil))
}

// Freeing two adjacent chunks in either order must leave one free chunk
// spanning both.
func TestFree_CoalescingIsOrderIndependent(t *testing.T) {
	for _, tc := range []struct {
		name        string
		firstSecond bool
	}{
		{"low then high", true},
		{"high then low", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSpace(t, nil)
			a := mustMalloc(t, s, 48) // 64 byte chunks
			b := mustMalloc(t, s, 48)
			_ = mustMalloc(t, s, 48)
			require.Equal(t, addr(a)+64, addr(b))

			if tc.firstSecond {
				require.NoError(t, s.Free(a))
				require.NoError(t, s.Free(b))
			} else {
				require.NoError(t, s.Free(b))
				require.NoError(t, s.Free(a))
			}
			requireValid(t, s)

			var free [][2]uintptr
			s.InspectAll(func(start, end unsafe.Pointer, used uintptr) {
				if used == 0 && uintptr(end) <= addr(b)+64 {
					free = append(free, [2]uintptr{uintptr(start), uintptr(end)})
				}
			})
			require.Len(t, free, 1)
			assert.Equal(t, addr(b)+48, free[0][1], "span ends where the third chunk begins")

			// The merged span serves a request for both chunks at once.
			assert.Equal(t, a, mustMalloc(t, s, 112))
			requireValid(t, s)
		})
	}
}

func TestFree_MergesIntoTop(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	top := s.topSize

	a := mustMalloc(t, s, 500)
	b := mustMalloc(t, s, 500)
	require.NoError(t, s.Free(a))
	require.NoError(t, s.Free(b))

	assert.Equal(t, top, s.topSize)
	assert.Zero(t, s.smallMap)
	assert.Zero(t, s.treeMap)
	requireValid(t, s)
}

func TestFree_UsageErrorAborts(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	p := mustMalloc(t, s, 256)
	clear(s.Bytes(p))

	r := catchPanic(func() { _ = s.Free(unsafe.Add(p, 32)) })
	require.IsType(t, &UsageError{}, r)
	ue := r.(*UsageError)
	assert.Equal(t, addr(p)+32, ue.Addr)
	assert.Equal(t, "free", ue.Op)

	// The lock was released by the unwinding panic.
	q := mustMalloc(t, s, 32)
	require.NoError(t, s.Free(q))
	require.NoError(t, s.Free(p))
	requireValid(t, s)
}

func TestFree_UsageErrorProceeds(t *testing.T) {
	var reported []*UsageError
	cfg := ConfigDiagnostic
	cfg.OnUsageError = func(e *UsageError) { reported = append(reported, e) }
	s, _ := newTestSpace(t, &cfg)

	keep := mustMalloc(t, s, 100)
	fill(s, keep, 9)

	other, _ := newTestSpace(t, nil)
	foreign := mustMalloc(t, other, 100)

	for _, bad := range []unsafe.Pointer{
		foreign,              // another space
		unsafe.Add(keep, 8),  // misaligned
		unsafe.Add(keep, 48), // inside a live chunk
	} {
		err := s.Free(bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBadPointer), "%v", err)
	}
	require.Len(t, reported, 3)
	assert.Equal(t, format.ErrMisaligned.Error(), reported[1].Reason)

	// Unrelated chunks keep working.
	requireFilled(t, keep, 9, s.UsableSize(keep))
	p := mustMalloc(t, s, 100)
	require.NoError(t, s.Free(p))
	require.NoError(t, s.Free(keep))
	requireValid(t, s)
}

func TestFree_DoubleFreeIsUsageError(t *testing.T) {
	s, _ := newTestSpace(t, &ConfigDiagnostic)
	p := mustMalloc(t, s, 64)
	_ = mustMalloc(t, s, 64)
	require.NoError(t, s.Free(p))

	err := s.Free(p)
	require.ErrorIs(t, err, ErrBadPointer)
	requireValid(t, s)
}

func TestFree_ForgedFooterIsRejected(t *testing.T) {
	s, _ := newTestSpace(t, &ConfigDiagnostic)
	p := mustMalloc(t, s, 64)
	_ = mustMalloc(t, s, 64)

	c := memToChunk(addr(p))
	next := c.plus(c.size())
	saved := next.prevFoot()
	next.setPrevFoot(saved ^ 0x10)

	err := s.Free(p)
	var ue *UsageError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, ue.Reason, "footer")

	next.setPrevFoot(saved)
	require.NoError(t, s.Free(p))
	requireValid(t, s)
}

// corruptSmallBin frees two chunks into the same small bin and overwrites
// the forward link of the bin head with an address below the space.
func corruptSmallBin(t *testing.T, s *Space) {
	t.Helper()
	a := mustMalloc(t, s, 40)
	_ = mustMalloc(t, s, 40)
	b := mustMalloc(t, s, 40)
	_ = mustMalloc(t, s, 40)
	require.NoError(t, s.Free(a))
	require.NoError(t, s.Free(b))
	*(*uintptr)(b) = 0x10 // fd of the free chunk
}

func TestCorruption_Aborts(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	corruptSmallBin(t, s)

	r := catchPanic(func() { _, _ = s.Malloc(40) })
	require.IsType(t, &CorruptionError{}, r)
	assert.ErrorIs(t, r.(error), ErrCorrupted)
	assert.Zero(t, s.Corruptions())
}

func TestCorruption_ProceedResetsSpace(t *testing.T) {
	var (
		s      *Space
		hooked []int
	)
	cfg := ConfigDiagnostic
	cfg.OnCorruption = func(*CorruptionError) { hooked = append(hooked, s.Corruptions()) }
	s, _ = newTestSpace(t, &cfg)
	corruptSmallBin(t, s)
	footprint := s.Footprint()

	p, err := s.Malloc(40)
	assert.Nil(t, p)
	require.ErrorIs(t, err, ErrCorrupted)
	assert.Equal(t, []int{1}, hooked, "the hook runs unlocked after the reset")
	assert.Equal(t, 1, s.Corruptions())
	assert.Equal(t, footprint, s.Footprint(), "reset does not release memory")

	// The space starts over with a fresh segment.
	q := mustMalloc(t, s, 40)
	fill(s, q, 1)
	require.NoError(t, s.Free(q))
	requireValid(t, s)
}
