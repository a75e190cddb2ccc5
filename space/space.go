package space

import (
	"math/bits"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/spacekit/internal/buf"
	"github.com/joshuapare/spacekit/internal/format"
	"github.com/joshuapare/spacekit/platform"
)

const bitsPerWord = bits.UintSize

// Space is an independent allocation arena.
// - Small free chunks live in exact-size rings, large ones in bitwise tries
// - The designated victim (dv) is the preferred source for small requests
// - The top chunk borders the end of the newest segment and is never binned
// - Requests at or above the mmap threshold get their own mapping.
type Space struct {
	name string
	cfg  Config

	plat  platform.Platform
	remap platform.Remapper // nil when the platform cannot remap
	brk   platform.Breaker  // nil when the platform has no break
	lock  sync.Locker       // nil for LockNone

	// Bin bitmaps and bins
	smallMap  uint32
	treeMap   uint32
	smallBins [format.NSmallBins]chunk
	treeBins  [format.NTreeBins]chunk

	dv      chunk // designated victim
	dvSize  uintptr
	top     chunk // 0 until the first segment exists
	topSize uintptr

	// leastAddr is the lowest address ever obtained; chunk links below it
	// are corrupt.
	leastAddr uintptr

	trimCheck     uintptr // top size that triggers a trim on free
	releaseChecks int     // large frees left before the next segment sweep
	magic         uintptr

	// Tunables, fixed at creation unless changed through the setters
	granularity   uintptr
	pageSize      uintptr
	trimThreshold uintptr
	mmapThreshold uintptr
	useMmap       bool
	contiguous    bool

	footprint      uintptr
	maxFootprint   uintptr
	footprintLimit uintptr // 0 = none

	seg    *segment           // head segment holds top
	direct map[chunk]struct{} // live directly mapped chunks
	mem    []byte             // caller region of NewWithBase, kept reachable

	corruptions int
	destroyed   bool
}

// New creates a space whose memory comes from p. With a nil cfg the
// DefaultConfig is used.
func New(p platform.Platform, cfg *Config) (*Space, error) {
	if p == nil {
		return nil, ErrNoPlatform
	}
	s, err := newSpace(p, cfg)
	if err != nil {
		return nil, err
	}

	if s.contiguous && s.brk != nil && s.cfg.Capacity == 0 {
		// The first segment comes from the break on the first request.
		return s, nil
	}

	rs := s.granularity
	if s.cfg.Capacity != 0 {
		var ok bool
		if rs, ok = buf.AddOverflowSafe(s.cfg.Capacity, format.TopFootSize+s.pageSize); !ok || rs >= format.HalfMaxSize {
			return nil, errors.Wrapf(ErrTooLarge, "space %s: capacity %d", s.name, s.cfg.Capacity)
		}
	}
	tsize := s.granularityAlign(rs)
	if s.footprintLimit != 0 && tsize > s.footprintLimit {
		return nil, errors.Wrapf(ErrFootprintLimit, "space %s: first segment of %d bytes", s.name, tsize)
	}
	tbase, err := p.Map(tsize)
	if err != nil {
		return nil, errors.Wrapf(errors.CombineErrors(ErrNoMemory, err), "space %s: first segment", s.name)
	}
	s.footprint = tsize
	s.maxFootprint = tsize
	s.initFirstSegment(tbase, tsize, segMapped)
	if DBGon() {
		DBG("%s: created with %d byte segment at %#x\n", s.name, tsize, tbase)
	}
	return s, nil
}

// NewWithBase creates a space managing mem. The region is never released by
// the space and must stay valid until Destroy. When p is non-nil the space
// grows through it once mem is exhausted; otherwise it is fixed-size.
func NewWithBase(mem []byte, p platform.Platform, cfg *Config) (*Space, error) {
	if uintptr(len(mem)) < minBaseCapacity {
		return nil, ErrCapacityTooSmall
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	start := format.AlignUp(base, format.Alignment)
	end := (base + uintptr(len(mem))) &^ format.AlignMask
	if end <= start || end-start < minBaseCapacity {
		return nil, ErrCapacityTooSmall
	}

	s, err := newSpace(p, cfg)
	if err != nil {
		return nil, err
	}
	s.mem = mem
	size := end - start
	s.footprint = size
	s.maxFootprint = size
	s.initFirstSegment(start, size, segExtern)
	return s, nil
}

func newSpace(p platform.Platform, cfg *Config) (*Space, error) {
	c := DefaultConfig
	if cfg != nil {
		c = *cfg
	}
	pageSize := uintptr(4096)
	if p != nil {
		pageSize = p.PageSize()
	}
	c, err := c.normalize(pageSize, platformGranularity(p))
	if err != nil {
		return nil, err
	}

	s := &Space{
		name:           c.Name,
		cfg:            c,
		plat:           p,
		lock:           newLocker(c.Lock, p),
		granularity:    c.Granularity,
		pageSize:       pageSize,
		trimThreshold:  c.TrimThreshold,
		mmapThreshold:  c.MmapThreshold,
		useMmap:        !c.NoMmap && p != nil,
		footprintLimit: c.FootprintLimit,
		direct:         make(map[chunk]struct{}),
	}
	if p != nil {
		s.remap, _ = p.(platform.Remapper)
		s.brk, _ = p.(platform.Breaker)
		s.magic = uintptr(p.Entropy())
	}
	s.contiguous = c.Contiguous && s.brk != nil
	s.magic = (s.magic | 8) &^ 7 // nonzero, low bits clear
	return s, nil
}

// initFirstSegment makes [tbase, tbase+tsize) the only segment and turns it
// into the top chunk.
func (s *Space) initFirstSegment(tbase, tsize uintptr, flags segFlags) {
	if s.leastAddr == 0 || tbase < s.leastAddr {
		s.leastAddr = tbase
	}
	s.seg = &segment{base: tbase, size: tsize, flags: flags}
	s.releaseChecks = s.cfg.ReleaseCheckRate
	s.initBins()
	s.initTop(chunk(tbase), tsize-format.TopFootSize)
}

func (s *Space) initBins() {
	s.smallMap, s.treeMap = 0, 0
	clear(s.smallBins[:])
	clear(s.treeBins[:])
	s.dv, s.dvSize = 0, 0
}

// initTop makes the aligned part of [p, p+psize) the top chunk and writes
// the fake head that ends it.
func (s *Space) initTop(p chunk, psize uintptr) {
	offset := format.AlignOffset(p.mem())
	p = p.plus(offset)
	psize -= offset

	s.top = p
	s.topSize = psize
	p.setHead(format.MakeHead(psize, format.PInuseBit))
	p.plus(psize).setHead(format.Head(format.TopFootSize))
	s.trimCheck = s.trimThreshold
}

func (s *Space) granularityAlign(n uintptr) uintptr { return format.AlignUp(n, s.granularity) }
func (s *Space) pageAlign(n uintptr) uintptr        { return format.AlignUp(n, s.pageSize) }

// id is the address of the space descriptor, mixed into every footer.
func (s *Space) id() uintptr { return uintptr(unsafe.Pointer(s)) }

func (s *Space) okAddress(p chunk) bool { return uintptr(p) >= s.leastAddr }

func okNext(p, n chunk) bool { return p < n }

// ============================================================================
// Locking and error policy
// ============================================================================

func (s *Space) acquire() {
	if s.lock != nil {
		s.lock.Lock()
	}
}

func (s *Space) unlock() {
	if s.lock != nil {
		s.lock.Unlock()
	}
}

// release unlocks s at the end of a locked operation. A corruption panic
// raised inside the operation is turned into *err under PolicyProceed;
// anything else keeps unwinding.
func (s *Space) release(err *error) {
	r := recover()
	if r == nil {
		s.unlock()
		return
	}
	ce, ok := r.(*CorruptionError)
	if !ok || s.cfg.Policy == PolicyAbort {
		s.unlock()
		panic(r)
	}
	ERR("%s: %s, resetting space\n", s.name, ce.Reason)
	s.resetOnError()
	s.unlock()
	if s.cfg.OnCorruption != nil {
		s.cfg.OnCorruption(ce)
	}
	if err != nil {
		*err = ce
	}
}

// corrupt aborts the current operation with a *CorruptionError.
func (s *Space) corrupt(p chunk, reason string) {
	panic(&CorruptionError{Space: s.name, Addr: uintptr(p), Reason: reason})
}

// usageError reports an address that is not a live chunk of s.
func (s *Space) usageError(op string, addr uintptr, reason string) error {
	e := &UsageError{Space: s.name, Op: op, Addr: addr, Reason: reason}
	if s.cfg.Policy == PolicyAbort {
		panic(e)
	}
	if WARNon() {
		WARN("%s\n", e)
	}
	if s.cfg.OnUsageError != nil {
		s.cfg.OnUsageError(e)
	}
	return e
}

// allocFailure reports a request of n bytes that could not be satisfied.
func (s *Space) allocFailure(n uintptr, err error) error {
	if DBGon() {
		DBG("%s: request of %d bytes failed: %v\n", s.name, n, err)
	}
	if s.cfg.OnAllocFailure != nil {
		s.cfg.OnAllocFailure(n, err)
	}
	return err
}

// resetOnError forgets every chunk and segment. Memory obtained so far is
// not returned and stays counted in the footprint.
func (s *Space) resetOnError() {
	s.corruptions++
	s.initBins()
	s.top, s.topSize = 0, 0
	s.seg = nil
	s.direct = make(map[chunk]struct{})
	s.trimCheck = 0
}

// ============================================================================
// Lifecycle
// ============================================================================

// Destroy releases every segment and direct mapping the space obtained from
// its platform and returns the number of bytes released. Caller supplied
// regions are left alone. Break segments are released only when they end at
// the current break. The space must not be used afterwards.
func (s *Space) Destroy() (freed uintptr, err error) {
	s.acquire()
	defer s.unlock()
	if s.destroyed {
		return 0, ErrDestroyed
	}

	for sg := s.seg; sg != nil; sg = sg.next {
		switch {
		case sg.isExtern():
		case sg.isMapped():
			if uerr := s.plat.Unmap(sg.base, sg.size); uerr != nil {
				err = errors.CombineErrors(err, errors.Wrapf(uerr, "unmap segment %#x", sg.base))
				continue
			}
			freed += sg.size
		default:
			freed += s.releaseBreakSegment(sg)
		}
	}
	for p := range s.direct {
		n, uerr := s.unmapDirect(p)
		if uerr != nil {
			err = errors.CombineErrors(err, uerr)
			continue
		}
		freed += n
	}

	if DBGon() {
		DBG("%s: destroyed, %d bytes released\n", s.name, freed)
	}
	s.initBins()
	s.top, s.topSize = 0, 0
	s.seg = nil
	s.direct = nil
	s.mem = nil
	s.footprint -= min(freed, s.footprint)
	s.destroyed = true
	return freed, err
}

// releaseBreakSegment shrinks the break by sg when sg ends at it.
func (s *Space) releaseBreakSegment(sg *segment) uintptr {
	if s.brk == nil || sg.size >= format.HalfMaxSize {
		return 0
	}
	s.brk.Lock()
	defer s.brk.Unlock()
	if s.brk.Break() != sg.end() {
		return 0
	}
	if _, err := s.brk.Grow(-int(sg.size)); err != nil {
		return 0
	}
	return sg.size
}

// Name returns the configured name of the space.
func (s *Space) Name() string { return s.name }

// Corruptions returns how many times the space was reset after detecting
// corruption under PolicyProceed.
func (s *Space) Corruptions() int {
	s.acquire()
	defer s.unlock()
	return s.corruptions
}
