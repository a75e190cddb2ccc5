//go:build linux

package vmem

import (
	"testing"
	"unsafe"
)

func TestRemapGrowAndShrink(t *testing.T) {
	page := PageSize()
	addr, err := Map(page)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	*(*byte)(unsafe.Pointer(addr)) = 0x5a

	grown, err := Remap(addr, page, 8*page, true)
	if err != nil {
		t.Fatalf("Remap grow: %v", err)
	}
	if *(*byte)(unsafe.Pointer(grown)) != 0x5a {
		t.Fatalf("contents lost across remap")
	}

	shrunk, err := Remap(grown, 8*page, 2*page, false)
	if err != nil {
		t.Fatalf("Remap shrink: %v", err)
	}
	if shrunk != grown {
		t.Fatalf("in-place shrink moved the mapping")
	}
	if err := Unmap(shrunk, 2*page); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}
