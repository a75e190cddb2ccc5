package space

import (
	"unsafe"

	"github.com/joshuapare/spacekit/internal/buf"
	"github.com/joshuapare/spacekit/internal/format"
)

// Every exported method takes the space lock and releases it on return,
// including when a usage error or corruption panic unwinds through it.

// Malloc returns at least n usable bytes aligned to 16. Malloc(0) returns a
// valid minimum-size allocation.
func (s *Space) Malloc(n uintptr) (ptr unsafe.Pointer, err error) {
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	mem, err := s.malloc(n)
	if err != nil {
		return nil, s.allocFailure(n, err)
	}
	return unsafe.Pointer(mem), nil
}

// Free releases an allocation of s. Free(nil) does nothing.
func (s *Space) Free(ptr unsafe.Pointer) (err error) {
	if ptr == nil {
		return nil
	}
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return ErrDestroyed
	}
	return s.free(uintptr(ptr))
}

// Calloc returns count*size zeroed bytes.
func (s *Space) Calloc(count, size uintptr) (ptr unsafe.Pointer, err error) {
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	n, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return nil, s.allocFailure(Unlimited, ErrOverflow)
	}
	mem, err := s.malloc(n)
	if err != nil {
		return nil, s.allocFailure(n, err)
	}
	// Fresh mappings are already zero.
	if p := memToChunk(mem); !p.mapped() {
		format.Clear(mem, p.size()-p.overhead())
	}
	return unsafe.Pointer(mem), nil
}

// Realloc resizes an allocation, preserving min(old, n) bytes of content.
// Realloc(nil, n) is Malloc(n). Realloc(ptr, 0) frees ptr and returns nil.
// On failure the original allocation is left untouched.
func (s *Space) Realloc(ptr unsafe.Pointer, n uintptr) (out unsafe.Pointer, err error) {
	if ptr == nil {
		return s.Malloc(n)
	}
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	switch {
	case n >= format.MaxRequest:
		return nil, s.allocFailure(n, ErrTooLarge)
	case n == 0:
		return nil, s.free(uintptr(ptr))
	}
	mem, err := s.realloc(uintptr(ptr), n)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(mem), nil
}

// ReallocInPlace resizes an allocation without moving it. It returns
// ErrNotInPlace, leaving the allocation unchanged, when that is impossible.
func (s *Space) ReallocInPlace(ptr unsafe.Pointer, n uintptr) (out unsafe.Pointer, err error) {
	if ptr == nil {
		return nil, ErrNotInPlace
	}
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	if n >= format.MaxRequest {
		return nil, s.allocFailure(n, ErrTooLarge)
	}
	mem, err := s.reallocInPlace(uintptr(ptr), n)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(mem), nil
}

// Memalign returns n bytes aligned to alignment. An alignment that is not a
// power of two is rounded up to one.
func (s *Space) Memalign(alignment, n uintptr) (ptr unsafe.Pointer, err error) {
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	mem, err := s.memalign(alignment, n)
	if err != nil {
		return nil, s.allocFailure(n, err)
	}
	return unsafe.Pointer(mem), nil
}

// IndependentCalloc returns count zeroed allocations of size bytes each,
// carved from one contiguous block. Each may be freed on its own.
func (s *Space) IndependentCalloc(count, size uintptr) (ptrs []unsafe.Pointer, err error) {
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	ptrs, err = s.ialloc(count, []uintptr{size}, true, true)
	if err != nil {
		return nil, s.allocFailure(size, err)
	}
	return ptrs, nil
}

// IndependentComalloc returns one allocation per entry of sizes, carved
// from one contiguous block. Contents are not zeroed.
func (s *Space) IndependentComalloc(sizes []uintptr) (ptrs []unsafe.Pointer, err error) {
	s.acquire()
	defer s.release(&err)
	if s.destroyed {
		return nil, ErrDestroyed
	}
	ptrs, err = s.ialloc(uintptr(len(sizes)), sizes, false, false)
	if err != nil {
		return nil, s.allocFailure(0, err)
	}
	return ptrs, nil
}

// BulkFree frees every allocation in ptrs, setting each freed entry to nil.
// It returns the number of entries that do not belong to s; those are left
// in place.
func (s *Space) BulkFree(ptrs []unsafe.Pointer) (unfreed int) {
	s.acquire()
	defer s.release(nil)
	if s.destroyed {
		return len(ptrs)
	}
	return s.bulkFree(ptrs)
}

// Trim returns unused memory to the platform, keeping pad bytes at the top
// for future requests. It reports whether anything was released.
func (s *Space) Trim(pad uintptr) (released bool) {
	s.acquire()
	defer s.release(nil)
	if s.destroyed {
		return false
	}
	return s.sysTrim(pad)
}

// UsableSize returns the bytes available at ptr, or 0 when ptr is not a
// live allocation of s.
func (s *Space) UsableSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}
	s.acquire()
	defer s.release(nil)
	if s.destroyed {
		return 0
	}
	p, reason := s.checkInUse(uintptr(ptr))
	if reason != "" {
		return 0
	}
	return p.size() - p.overhead()
}

// Bytes returns the usable bytes of an allocation as a slice. It returns
// nil when ptr is not a live allocation of s.
func (s *Space) Bytes(ptr unsafe.Pointer) []byte {
	n := s.UsableSize(ptr)
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

// Footprint returns the bytes currently obtained from the platform.
func (s *Space) Footprint() uintptr {
	s.acquire()
	defer s.unlock()
	return s.footprint
}

// MaxFootprint returns the largest footprint so far.
func (s *Space) MaxFootprint() uintptr {
	s.acquire()
	defer s.unlock()
	return s.maxFootprint
}

// FootprintLimit returns the footprint limit, or Unlimited.
func (s *Space) FootprintLimit() uintptr {
	s.acquire()
	defer s.unlock()
	if s.footprintLimit == 0 {
		return Unlimited
	}
	return s.footprintLimit
}

// SetFootprintLimit caps the footprint at n rounded up to the granularity
// and returns the new limit. Zero or Unlimited removes the limit. A limit
// below the current footprint only prevents further growth.
func (s *Space) SetFootprintLimit(n uintptr) uintptr {
	s.acquire()
	defer s.unlock()
	if n == 0 || n == Unlimited || n > Unlimited-s.granularity {
		s.footprintLimit = 0
		return Unlimited
	}
	s.footprintLimit = s.granularityAlign(n)
	return s.footprintLimit
}

// SetTrimThreshold sets the top size above which a free trims the space.
// Unlimited disables trimming on free.
func (s *Space) SetTrimThreshold(n uintptr) {
	s.acquire()
	defer s.unlock()
	s.trimThreshold = n
	s.trimCheck = n
}

// SetMmapThreshold sets the request size served by a dedicated mapping.
func (s *Space) SetMmapThreshold(n uintptr) {
	s.acquire()
	defer s.unlock()
	s.mmapThreshold = n
}

// SetGranularity sets the unit in which segments are requested. It must be
// a power of two no smaller than the page size.
func (s *Space) SetGranularity(n uintptr) error {
	s.acquire()
	defer s.unlock()
	if !format.IsPowerOfTwo(n) || n < s.pageSize {
		return ErrInvalidGranularity
	}
	s.granularity = n
	return nil
}

// TrackLargeChunks stops (enable true) or resumes serving large requests
// from dedicated mappings. With tracking on, every chunk lives in a segment
// and Destroy reclaims all of them. It returns the previous setting.
func (s *Space) TrackLargeChunks(enable bool) bool {
	s.acquire()
	defer s.unlock()
	was := !s.useMmap
	s.useMmap = !enable && s.plat != nil
	return was
}

// InspectAll calls visit for every chunk of s, in use or free. visit runs
// with the space locked and must not call back into s.
func (s *Space) InspectAll(visit Visitor) {
	s.acquire()
	defer s.release(nil)
	if s.destroyed {
		return
	}
	s.inspectAll(visit)
}

// MemInfo returns a mallinfo-style summary.
func (s *Space) MemInfo() (mi MemInfo) {
	s.acquire()
	defer s.release(nil)
	return s.memInfo()
}

// Stats returns footprint and usage totals.
func (s *Space) Stats() (st Stats) {
	s.acquire()
	defer s.release(nil)
	return s.stats()
}

// Validate walks the whole space and reports the first broken invariant.
func (s *Space) Validate() error {
	s.acquire()
	defer s.unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	return s.validate()
}
