// Package buf contains overflow-checked size arithmetic used by the allocator.
package buf

import "math/bits"

// AddOverflowSafe adds a and b, returning ok = false when the sum wraps.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	sum, carry := bits.Add(uint(a), uint(b), 0)
	if carry != 0 {
		return 0, false
	}
	return uintptr(sum), true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the product wraps.
// This is essential for count * elementSize calculations in calloc-style calls.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	hi, lo := bits.Mul(uint(a), uint(b))
	if hi != 0 {
		return 0, false
	}
	return uintptr(lo), true
}

// Within reports whether [addr, addr+n) lies inside [base, base+size).
func Within(base, size, addr, n uintptr) bool {
	if addr < base {
		return false
	}
	end, ok := AddOverflowSafe(addr, n)
	if !ok {
		return false
	}
	limit, ok := AddOverflowSafe(base, size)
	if !ok {
		return false
	}
	return end <= limit
}
