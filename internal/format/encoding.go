package format

import "unsafe"

// Raw word access to chunk memory.
//
// Chunk memory is never owned by the Go heap in the usual sense: it comes
// from a platform mapping or a caller-supplied region, and addresses are
// carried around as uintptr. Every dereference of such an address goes
// through this file.

// Word loads the word at addr.
func Word(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// PutWord stores v at addr.
func PutWord(addr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

// LoadHead reads the head word of the chunk at p.
func LoadHead(p uintptr) Head {
	return Head(Word(p + OffHead))
}

// StoreHead writes the head word of the chunk at p.
func StoreHead(p uintptr, h Head) {
	PutWord(p+OffHead, uintptr(h))
}

// Bytes returns n bytes starting at addr as a slice.
func Bytes(addr, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Clear zeroes n bytes at addr.
func Clear(addr, n uintptr) {
	clear(Bytes(addr, n))
}

// Copy copies n bytes from src to dst. The ranges may overlap.
func Copy(dst, src, n uintptr) {
	copy(Bytes(dst, n), Bytes(src, n))
}
