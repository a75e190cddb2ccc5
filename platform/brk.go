package platform

import (
	"sync"
)

// DefaultBreakReserve is the address range reserved by ProcessBreak.
const DefaultBreakReserve = 256 << 20

// Break emulates a contiguous, sbrk-style heap inside one reservation taken
// from a parent platform. It forwards Map, Unmap and the other Platform calls
// to the parent, so a space using it can mix break growth with mappings.
//
// Callers hold the Break's lock across Break/Grow sequences.
type Break struct {
	Platform

	mu   sync.Mutex
	base uintptr
	brk  uintptr
	end  uintptr
}

var (
	_ Platform = (*Break)(nil)
	_ Breaker  = (*Break)(nil)

	processBreak     *Break
	processBreakErr  error
	processBreakOnce sync.Once
)

// NewBreak reserves reserve bytes from parent and serves break growth from
// them.
func NewBreak(parent Platform, reserve uintptr) (*Break, error) {
	page := parent.PageSize()
	reserve = (reserve + page - 1) &^ (page - 1)
	base, err := parent.Map(reserve)
	if err != nil {
		return nil, err
	}
	return &Break{
		Platform: parent,
		base:     base,
		brk:      base,
		end:      base + reserve,
	}, nil
}

// ProcessBreak returns the break shared by the whole process. It is created
// on first use from the OS binding.
func ProcessBreak() (*Break, error) {
	processBreakOnce.Do(func() {
		processBreak, processBreakErr = NewBreak(OS(), DefaultBreakReserve)
	})
	return processBreak, processBreakErr
}

func (b *Break) Lock()   { b.mu.Lock() }
func (b *Break) Unlock() { b.mu.Unlock() }

// Break returns the current break.
func (b *Break) Break() uintptr { return b.brk }

// Grow moves the break by delta bytes and returns the old break.
func (b *Break) Grow(delta int) (uintptr, error) {
	old := b.brk
	switch {
	case delta > 0:
		if uintptr(delta) > b.end-b.brk {
			return 0, ErrExhausted
		}
		b.brk += uintptr(delta)
	case delta < 0:
		d := uintptr(-delta)
		if d > b.brk-b.base {
			return 0, ErrExhausted
		}
		b.brk -= d
		if dc, ok := b.Platform.(Decommitter); ok {
			page := b.Platform.PageSize()
			from := (b.brk + page - 1) &^ (page - 1)
			if from < old {
				_ = dc.Decommit(from, old-from)
			}
		}
	}
	return old, nil
}

// Reserved returns the bounds of the reservation.
func (b *Break) Reserved() (base, end uintptr) {
	return b.base, b.end
}

// Close releases the reservation. The break must not be used afterwards.
func (b *Break) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.Platform.Unmap(b.base, b.end-b.base)
	b.brk, b.end = b.base, b.base
	return err
}

// Remap forwards to the parent platform when it can remap.
func (b *Break) Remap(addr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	if r, ok := b.Platform.(Remapper); ok {
		return r.Remap(addr, oldSize, newSize, mayMove)
	}
	return 0, ErrUnsupported
}
