// Package space implements a general-purpose memory allocator in the
// dlmalloc tradition, managing any number of isolated allocation spaces.
//
// # Overview
//
// A Space hands out 16-byte aligned blocks carved from segments it obtains
// through a platform.Platform. Every block is a chunk with a boundary tag:
// a head word holding the chunk size and in-use flags, and a footer written
// into the following chunk. Adjacent free chunks are always coalesced, so
// the space can be walked chunk by chunk without any side index.
//
// # Key Types
//
//   - Space: one arena with its own bins, segments, lock and tunables
//   - Config: creation parameters and error hooks, with presets
//   - MemInfo, Stats: usage summaries
//   - UsageError, CorruptionError: misuse and detected corruption
//
// # Creating a Space
//
//	s, err := space.New(platform.OS(), nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Destroy()
//
//	p, err := s.Malloc(128)
//	if err != nil {
//	    return err
//	}
//	copy(s.Bytes(p), payload)
//	err = s.Free(p)
//
// A space can also manage a caller-supplied region with NewWithBase, in
// which case it never releases that region. The package-level Malloc, Free
// and friends act on the lazily created Default space.
//
// # Allocation Strategy
//
// Free chunks below 256 bytes sit in 32 exact-size bins; larger ones sit in
// 32 tree bins, each a bitwise trie keyed on the size bits below the bin's
// range. Requests are served, in order, from an exact small bin, the
// designated victim (the remainder of the last split), a larger small bin,
// a best-fit tree chunk, the top chunk, and finally new platform memory.
// Requests of MmapThreshold bytes or more get a dedicated mapping.
//
// Freed memory at the top of the newest segment is returned to the platform
// once the top grows beyond TrimThreshold, and segments that become entirely
// free are unmapped during periodic sweeps.
//
// # Error Handling
//
// Allocation failures return ErrNoMemory, ErrTooLarge, ErrOverflow or
// ErrFootprintLimit after invoking Config.OnAllocFailure. Freeing an address
// that is not a live chunk of the space is a usage error, and a broken
// internal link is corruption. Under PolicyAbort both panic; under
// PolicyProceed usage errors are returned and corruption resets the space,
// abandoning every outstanding allocation.
//
// # Thread Safety
//
// Each space has its own lock (sync.Mutex by default, a spin lock or none
// via Config.Lock). Spaces never share state, except that spaces growing
// through the same platform.Breaker serialize on its lock.
//
// # Debugging
//
// Set SPACE_LOG_ALLOC to log segment growth, trimming and failures.
// Validate checks every structural invariant and is cheap enough for tests.
package space
