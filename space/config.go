package space

import (
	"github.com/joshuapare/spacekit/internal/format"
	"github.com/joshuapare/spacekit/platform"
)

// Unlimited disables a threshold or limit when assigned to it.
const Unlimited = ^uintptr(0)

const (
	// DefaultGranularity is the unit in which segments are requested.
	DefaultGranularity = 64 * 1024

	// DefaultTrimThreshold is the top chunk size above which a free trims.
	DefaultTrimThreshold = 2 * 1024 * 1024

	// DefaultMmapThreshold is the request size served by a dedicated mapping.
	DefaultMmapThreshold = 256 * 1024

	// DefaultReleaseCheckRate is the number of large frees between sweeps
	// for releasable segments.
	DefaultReleaseCheckRate = 4095

	// minBaseCapacity is the smallest region NewWithBase accepts.
	minBaseCapacity = 128 * format.WordSize
)

// ErrorPolicy selects what happens on usage errors and detected corruption.
type ErrorPolicy int

const (
	// PolicyAbort panics with a *UsageError or *CorruptionError.
	PolicyAbort ErrorPolicy = iota

	// PolicyProceed reports the error through the hooks and returns it.
	// Corruption resets the space, losing every outstanding allocation.
	PolicyProceed
)

func (p ErrorPolicy) String() string {
	if p == PolicyProceed {
		return "proceed"
	}
	return "abort"
}

// LockKind selects the lock guarding a space.
type LockKind int

const (
	LockMutex LockKind = iota // sync.Mutex
	LockSpin                  // spin lock yielding every 64 attempts
	LockNone                  // caller provides exclusion
)

// Config defines how a space acquires memory and reacts to errors.
// Zero values select the defaults.
type Config struct {
	// Name for this space (for logs and errors)
	Name string

	// Capacity of the first segment. Zero requests one granularity unit.
	Capacity uintptr

	// Segment sizing and release
	Granularity   uintptr // power of two, multiple of the page size
	TrimThreshold uintptr // top size that triggers trimming on free; Unlimited disables
	MmapThreshold uintptr // requests at or above it get their own mapping

	// FootprintLimit caps the bytes obtained from the platform. It is
	// rounded up to the granularity. Zero or Unlimited means no limit.
	FootprintLimit uintptr

	// ReleaseCheckRate is the number of frees into the tree bins between
	// sweeps for segments that hold nothing. Zero or less selects
	// DefaultReleaseCheckRate.
	ReleaseCheckRate int

	Lock LockKind

	// NoMmap keeps every chunk inside segments, so Destroy reclaims all of
	// them.
	NoMmap bool

	// Contiguous grows the space through the platform's break first when
	// the platform implements platform.Breaker.
	Contiguous bool

	Policy ErrorPolicy

	// OnAllocFailure and OnUsageError run with the space locked and must
	// not call back into it. OnCorruption runs after the space has been
	// reset and unlocked.
	OnAllocFailure func(size uintptr, err error)
	OnUsageError   func(*UsageError)
	OnCorruption   func(*CorruptionError)
}

// Predefined configurations.
var (
	// DefaultConfig: locked, mapped segments, direct mappings for large
	// requests, abort on misuse.
	DefaultConfig = Config{Name: "default"}

	// ConfigEmbedded: single-threaded space living in one region.
	ConfigEmbedded = Config{
		Name:   "embedded",
		Lock:   LockNone,
		NoMmap: true,
	}

	// ConfigDiagnostic: report misuse and reset on corruption instead of
	// panicking.
	ConfigDiagnostic = Config{
		Name:   "diagnostic",
		Policy: PolicyProceed,
	}

	// ConfigBreak: prefers contiguous break growth.
	ConfigBreak = Config{
		Name:       "break",
		Contiguous: true,
	}
)

// normalize fills defaults and validates the configuration against the
// platform page size and preferred granularity.
func (c Config) normalize(pageSize, granularity uintptr) (Config, error) {
	if c.Name == "" {
		c.Name = "space"
	}
	if c.Granularity == 0 {
		c.Granularity = max(granularity, pageSize)
	}
	if !format.IsPowerOfTwo(pageSize) || !format.IsPowerOfTwo(c.Granularity) || c.Granularity < pageSize {
		return c, ErrInvalidGranularity
	}
	if c.TrimThreshold == 0 {
		c.TrimThreshold = DefaultTrimThreshold
	}
	if c.MmapThreshold == 0 {
		c.MmapThreshold = DefaultMmapThreshold
	}
	if c.FootprintLimit > Unlimited-c.Granularity {
		c.FootprintLimit = 0
	}
	c.FootprintLimit = format.AlignUp(c.FootprintLimit, c.Granularity)
	if c.ReleaseCheckRate <= 0 {
		c.ReleaseCheckRate = DefaultReleaseCheckRate
	}
	return c, nil
}

func platformGranularity(p platform.Platform) uintptr {
	if p == nil {
		return DefaultGranularity
	}
	return p.Granularity()
}
