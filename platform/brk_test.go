package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreak_GrowAndShrink(t *testing.T) {
	b, err := NewBreak(NewHeap(0), 1<<20)
	require.NoError(t, err)
	defer b.Close()

	base, end := b.Reserved()
	assert.Equal(t, uintptr(1<<20), end-base)

	b.Lock()
	defer b.Unlock()

	old, err := b.Grow(8192)
	require.NoError(t, err)
	assert.Equal(t, base, old)
	assert.Equal(t, base+8192, b.Break())

	old, err = b.Grow(-4096)
	require.NoError(t, err)
	assert.Equal(t, base+8192, old)
	assert.Equal(t, base+4096, b.Break())

	old, err = b.Grow(0)
	require.NoError(t, err)
	assert.Equal(t, base+4096, old, "zero delta queries the break")
}

func TestBreak_Exhaustion(t *testing.T) {
	b, err := NewBreak(NewHeap(0), 64*1024)
	require.NoError(t, err)
	defer b.Close()

	b.Lock()
	defer b.Unlock()

	_, err = b.Grow(128 * 1024)
	require.ErrorIs(t, err, ErrExhausted)

	_, err = b.Grow(-1)
	require.ErrorIs(t, err, ErrExhausted, "cannot shrink below the reservation")

	_, err = b.Grow(64 * 1024)
	require.NoError(t, err)
}

func TestBreak_ForwardsMappings(t *testing.T) {
	h := NewHeap(0)
	b, err := NewBreak(h, 64*1024)
	require.NoError(t, err)

	addr, err := b.Map(4096)
	require.NoError(t, err)
	require.NoError(t, b.Unmap(addr, 4096))

	_, err = b.Remap(addr, 4096, 8192, true)
	require.ErrorIs(t, err, ErrUnsupported)

	require.NoError(t, b.Close())
	assert.Zero(t, h.Regions())
}

func TestProcessBreak_Singleton(t *testing.T) {
	if testing.Short() {
		t.Skip("reserves address space")
	}
	a, err := ProcessBreak()
	require.NoError(t, err)
	b, err := ProcessBreak()
	require.NoError(t, err)
	assert.Same(t, a, b)
}
