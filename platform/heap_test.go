package platform

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap_MapIsZeroedAndAligned(t *testing.T) {
	h := NewHeap(0)

	addr, err := h.Map(10000)
	require.NoError(t, err)
	assert.Zero(t, addr%h.PageSize(), "mapping must be page aligned")

	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), 10000)
	for i, b := range mem {
		require.Zerof(t, b, "byte %d not zeroed", i)
	}
	mem[9999] = 0xff

	assert.Equal(t, uintptr(12288), h.Mapped(), "size rounds up to pages")
	assert.Equal(t, 1, h.MapCalls())
}

func TestHeap_TailUnmap(t *testing.T) {
	h := NewHeap(0)
	addr, err := h.Map(4 * 4096)
	require.NoError(t, err)

	require.NoError(t, h.Unmap(addr+3*4096, 4096))
	assert.Equal(t, uintptr(3*4096), h.Mapped())

	// Middle ranges cannot be released.
	require.ErrorIs(t, h.Unmap(addr+4096, 4096), ErrNotMapped)

	require.NoError(t, h.Unmap(addr, 3*4096))
	assert.Zero(t, h.Mapped())
	assert.Zero(t, h.Regions())
	assert.Equal(t, 2, h.UnmapCalls())
}

func TestHeap_Limit(t *testing.T) {
	h := NewHeap(64 * 1024)
	_, err := h.Map(48 * 1024)
	require.NoError(t, err)

	_, err = h.Map(32 * 1024)
	require.ErrorIs(t, err, ErrExhausted)

	_, err = h.Map(16 * 1024)
	require.NoError(t, err)
}

func TestHeap_UnmapUnknown(t *testing.T) {
	h := NewHeap(0)
	require.ErrorIs(t, h.Unmap(0x1000, 4096), ErrNotMapped)
}

func TestHeap_ImpossibleSizes(t *testing.T) {
	for _, h := range []*Heap{NewHeap(0), NewHeap(1 << 20)} {
		for _, size := range []uintptr{heapMaxMap + 1, ^uintptr(0) >> 1, ^uintptr(0) - 100} {
			_, err := h.Map(size)
			require.ErrorIs(t, err, ErrExhausted, "size %#x", size)
		}
		assert.Zero(t, h.MapCalls())
		assert.Zero(t, h.Mapped())
	}
}

func TestHeap_RegionsNeverAdjacent(t *testing.T) {
	h := NewHeap(0)
	var bases []uintptr
	for range 8 {
		addr, err := h.Map(64 << 10)
		require.NoError(t, err)
		bases = append(bases, addr)
	}
	for _, a := range bases {
		for _, b := range bases {
			assert.NotEqual(t, a+64<<10, b, "region %#x ends where %#x starts", a, b)
		}
	}
	for _, a := range bases {
		require.NoError(t, h.Unmap(a, 64<<10))
	}
	assert.Zero(t, h.Regions())
}
