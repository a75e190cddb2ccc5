package space

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemalign_PowersOfTwo(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	var ptrs []unsafe.Pointer
	for align := uintptr(32); align <= 64<<10; align <<= 1 {
		for _, n := range []uintptr{1, 100, 5000} {
			p, err := s.Memalign(align, n)
			require.NoError(t, err)
			require.Zero(t, addr(p)%align, "align %d size %d", align, n)
			require.GreaterOrEqual(t, s.UsableSize(p), n)
			fill(s, p, byte(align))
			ptrs = append(ptrs, p)
		}
		requireValid(t, s)
	}
	for _, p := range ptrs {
		require.NoError(t, s.Free(p))
	}
	requireValid(t, s)
}

func TestMemalign_SmallAlignmentIsMalloc(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	p, err := s.Memalign(8, 40)
	require.NoError(t, err)
	assert.Zero(t, addr(p)%16)
	require.NoError(t, s.Free(p))
}

func TestMemalign_RoundsUpNonPowerOfTwo(t *testing.T) {
	s, _ := newTestSpace(t, nil)
	for range 8 {
		p, err := s.Memalign(48, 10)
		require.NoError(t, err)
		assert.Zero(t, addr(p)%64)
		_ = mustMalloc(t, s, 24) // shift the next candidate
	}
	requireValid(t, s)
}

func TestMemalign_DirectMapping(t *testing.T) {
	s, _ := newTestSpace(t, nil)

	p, err := s.Memalign(4096, 1<<20)
	require.NoError(t, err)
	assert.Zero(t, addr(p)%4096)
	assert.Equal(t, 1, s.Stats().DirectMappings)
	fill(s, p, 9)
	requireFilled(t, p, 9, 1<<20)
	requireValid(t, s)

	before := s.Footprint()
	require.NoError(t, s.Free(p))
	assert.Less(t, s.Footprint(), before)
	assert.Zero(t, s.Stats().DirectMappings)
	requireValid(t, s)
}

func TestMemalign_TooLarge(t *testing.T) {
	s, _ := newTestSpace(t, &ConfigDiagnostic)
	p, err := s.Memalign(64, Unlimited-32)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Nil(t, p)
}
