package platform

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOS_MapUnmap(t *testing.T) {
	p := OS()
	page := p.PageSize()
	require.NotZero(t, page)
	assert.Zero(t, p.Granularity()%page, "granularity must be a page multiple")

	addr, err := p.Map(4 * page)
	require.NoError(t, err)
	*(*byte)(unsafe.Pointer(addr + 4*page - 1)) = 1
	require.NoError(t, p.Unmap(addr, 4*page))
}

func TestOS_EntropyVaries(t *testing.T) {
	p := OS()
	assert.NotEqual(t, uint64(0), p.Entropy())
}
