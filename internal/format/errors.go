package format

import "errors"

var (
	// ErrMisaligned indicates an address that is not a multiple of Alignment.
	ErrMisaligned = errors.New("format: misaligned chunk address")
	// ErrBadHead indicates a head word whose size cannot describe a chunk.
	ErrBadHead = errors.New("format: invalid chunk head")
)

// CheckHead validates a head word read from memory: the size must be
// aligned and at least MinChunkSize unless it is a fence post.
func CheckHead(h Head) error {
	if h == FencepostHead {
		return nil
	}
	s := h.Size()
	if s&AlignMask != 0 || s < MinChunkSize {
		return ErrBadHead
	}
	return nil
}
