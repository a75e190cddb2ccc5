package buf

import (
	"math"
	"testing"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxUint, 1); ok {
		t.Fatalf("expected overflow when adding to MaxUint")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(1000, 64); !ok || p != 64000 {
		t.Fatalf("MulOverflowSafe(1000,64)=%d,%v", p, ok)
	}
	if p, ok := MulOverflowSafe(0, math.MaxUint); !ok || p != 0 {
		t.Fatalf("zero operand must not overflow")
	}
	if _, ok := MulOverflowSafe(math.MaxUint/2+1, 2); ok {
		t.Fatalf("expected overflow")
	}
}

func TestWithin(t *testing.T) {
	if !Within(0x1000, 0x100, 0x1000, 0x100) {
		t.Fatalf("exact span should be within")
	}
	if Within(0x1000, 0x100, 0x10f8, 0x10) {
		t.Fatalf("span crossing the end should be rejected")
	}
	if Within(0x1000, 0x100, 0xff8, 8) {
		t.Fatalf("span before base should be rejected")
	}
	if Within(0x1000, 0x100, math.MaxUint-4, 8) {
		t.Fatalf("wrapping span should be rejected")
	}
}
