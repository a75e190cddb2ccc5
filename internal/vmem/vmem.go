// Package vmem provides the platform-specific virtual memory calls used by
// the default platform binding: anonymous mappings, partial unmaps, remaps
// and page decommit.
package vmem

import (
	"errors"
	"os"
)

// ErrUnsupported indicates the running platform lacks the requested call.
var ErrUnsupported = errors.New("vmem: unsupported on this platform")

// PageSize returns the operating system page size.
func PageSize() uintptr {
	return uintptr(os.Getpagesize())
}
