package space

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/spacekit/internal/vmem"
	"github.com/joshuapare/spacekit/platform"
)

// newTestSpace creates a space on a fresh heap platform and destroys it when
// the test ends.
func newTestSpace(t *testing.T, cfg *Config) (*Space, *platform.Heap) {
	t.Helper()
	h := platform.NewHeap(0)
	s, err := New(h, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = s.Destroy() })
	return s, h
}

// newRegion returns n bytes for NewWithBase. The bytes come from an OS
// mapping where there is one, so checkptr accepts the space's pointer
// arithmetic under -race.
func newRegion(t *testing.T, n int) []byte {
	t.Helper()
	if !vmem.Supported {
		return make([]byte, n)
	}
	mm, err := vmem.Map(uintptr(n))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vmem.Unmap(mm, uintptr(n)) })
	return unsafe.Slice((*byte)(unsafe.Pointer(mm)), n)
}

func requireValid(t *testing.T, s *Space) {
	t.Helper()
	require.NoError(t, s.Validate())
}

func mustMalloc(t *testing.T, s *Space, n uintptr) unsafe.Pointer {
	t.Helper()
	p, err := s.Malloc(n)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// fill writes a pattern derived from seed over the usable bytes of p.
func fill(s *Space, p unsafe.Pointer, seed byte) {
	b := s.Bytes(p)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
}

// requireFilled checks the pattern written by fill.
func requireFilled(t *testing.T, p unsafe.Pointer, seed byte, n uintptr) {
	t.Helper()
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		if b[i] != seed+byte(i*7) {
			require.Failf(t, "pattern mismatch", "ptr %p byte %d: got %#x want %#x", p, i, b[i], seed+byte(i*7))
		}
	}
}

// catchPanic runs f and returns the value it panicked with, if any.
func catchPanic(f func()) (r any) {
	defer func() { r = recover() }()
	f()
	return nil
}

func addr(p unsafe.Pointer) uintptr { return uintptr(p) }
