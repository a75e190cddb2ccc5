package space

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/spacekit/platform"
)

// spinsPerYield is the number of failed acquisitions between yields.
const spinsPerYield = 63

// spinLock is a test-and-set lock that yields the processor every
// spinsPerYield failed attempts.
type spinLock struct {
	state atomic.Uint32
}

var _ sync.Locker = (*spinLock)(nil)

func (l *spinLock) Lock() {
	for spins := 1; !l.state.CompareAndSwap(0, 1); spins++ {
		if spins&spinsPerYield == 0 {
			runtime.Gosched()
		}
	}
}

func (l *spinLock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

func (l *spinLock) Unlock() {
	l.state.Store(0)
}

// newLocker resolves the lock of a new space. A platform that builds its own
// locks wins over the configured kind.
func newLocker(kind LockKind, p platform.Platform) sync.Locker {
	if kind == LockNone {
		return nil
	}
	if f, ok := p.(platform.LockerFactory); ok {
		return f.NewLocker()
	}
	if kind == LockSpin {
		return &spinLock{}
	}
	return &sync.Mutex{}
}
