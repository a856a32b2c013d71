package fpmath_test

import (
	"math"
	"testing"

	"SynthSettle/internal/fpmath"
)

// ============================================================================
// Test: DivideInt128 rounding
// ============================================================================

func TestDivideInt128_RoundDown(t *testing.T) {
	cases := []struct {
		a, b, denom int64
		want        int64
	}{
		{7, 1, 2, 3},
		{-7, 1, 2, -4}, // floor, not truncation
		{6, 1, 2, 3},
		{-6, 1, 2, -3},
		{0, 1, 5, 0},
	}

	for _, c := range cases {
		num := fpmath.MultiplyInt128(c.a, c.b)
		got := fpmath.DivideInt128(num, c.denom, fpmath.RoundDown)
		fpmath.ReleaseInt128(num)
		if got != c.want {
			t.Errorf("DivideInt128(%d*%d, %d, down) = %d, want %d", c.a, c.b, c.denom, got, c.want)
		}
	}
}

func TestDivideInt128_RoundUp(t *testing.T) {
	cases := []struct {
		a, b, denom int64
		want        int64
	}{
		{7, 1, 2, 4},
		{6, 1, 2, 3},
		{-7, 1, 2, -3}, // ceiling of -3.5
		{1, 1, 5, 1},
	}

	for _, c := range cases {
		num := fpmath.MultiplyInt128(c.a, c.b)
		got := fpmath.DivideInt128(num, c.denom, fpmath.RoundUp)
		fpmath.ReleaseInt128(num)
		if got != c.want {
			t.Errorf("DivideInt128(%d*%d, %d, up) = %d, want %d", c.a, c.b, c.denom, got, c.want)
		}
	}
}

func TestDivideInt128_RoundHalfEven(t *testing.T) {
	cases := []struct {
		a, b, denom int64
		want        int64
	}{
		{5, 1, 2, 2},  // 2.5 rounds to even 2
		{7, 1, 2, 4},  // 3.5 rounds to even 4
		{9, 1, 4, 2},  // 2.25 rounds down
		{11, 1, 4, 3}, // 2.75 rounds up
	}

	for _, c := range cases {
		num := fpmath.MultiplyInt128(c.a, c.b)
		got := fpmath.DivideInt128(num, c.denom, fpmath.RoundHalfEven)
		fpmath.ReleaseInt128(num)
		if got != c.want {
			t.Errorf("DivideInt128(%d*%d, %d, half-even) = %d, want %d", c.a, c.b, c.denom, got, c.want)
		}
	}
}

// ============================================================================
// Test: saturating arithmetic
// ============================================================================

func TestSatAdd_Saturates(t *testing.T) {
	if got := fpmath.SatAdd(math.MaxInt64, 1); got != math.MaxInt64 {
		t.Errorf("SatAdd(max, 1) = %d, want MaxInt64", got)
	}
	if got := fpmath.SatAdd(math.MinInt64, -1); got != math.MinInt64 {
		t.Errorf("SatAdd(min, -1) = %d, want MinInt64", got)
	}
	if got := fpmath.SatAdd(40, 2); got != 42 {
		t.Errorf("SatAdd(40, 2) = %d, want 42", got)
	}
}

func TestSatSub_Saturates(t *testing.T) {
	if got := fpmath.SatSub(math.MaxInt64, -1); got != math.MaxInt64 {
		t.Errorf("SatSub(max, -1) = %d, want MaxInt64", got)
	}
	if got := fpmath.SatSub(math.MinInt64, 1); got != math.MinInt64 {
		t.Errorf("SatSub(min, 1) = %d, want MinInt64", got)
	}
	if got := fpmath.SatSub(10, 4); got != 6 {
		t.Errorf("SatSub(10, 4) = %d, want 6", got)
	}
}

func TestSatAddUint64_Saturates(t *testing.T) {
	if got := fpmath.SatAddUint64(math.MaxUint64, 1); got != math.MaxUint64 {
		t.Errorf("SatAddUint64(max, 1) = %d, want MaxUint64", got)
	}
}

// ============================================================================
// Test: checked arithmetic and conversions
// ============================================================================

func TestCheckedAdd(t *testing.T) {
	if _, ok := fpmath.CheckedAdd(math.MaxInt64, 1); ok {
		t.Error("CheckedAdd(max, 1) should overflow")
	}
	if _, ok := fpmath.CheckedAdd(math.MinInt64, -1); ok {
		t.Error("CheckedAdd(min, -1) should overflow")
	}
	if v, ok := fpmath.CheckedAdd(-5, 3); !ok || v != -2 {
		t.Errorf("CheckedAdd(-5, 3) = %d, %v; want -2, true", v, ok)
	}
}

func TestCheckedAddUint64(t *testing.T) {
	if _, ok := fpmath.CheckedAddUint64(math.MaxUint64, 1); ok {
		t.Error("CheckedAddUint64(max, 1) should overflow")
	}
	if v, ok := fpmath.CheckedAddUint64(1, 2); !ok || v != 3 {
		t.Errorf("CheckedAddUint64(1, 2) = %d, %v; want 3, true", v, ok)
	}
}

func TestUint64ToInt64(t *testing.T) {
	if _, ok := fpmath.Uint64ToInt64(math.MaxInt64 + 1); ok {
		t.Error("conversion above MaxInt64 should fail")
	}
	if v, ok := fpmath.Uint64ToInt64(math.MaxInt64); !ok || v != math.MaxInt64 {
		t.Errorf("Uint64ToInt64(MaxInt64) = %d, %v", v, ok)
	}
}

func TestAbs(t *testing.T) {
	if got := fpmath.Abs(math.MinInt64); got != uint64(math.MaxInt64)+1 {
		t.Errorf("Abs(MinInt64) = %d, want %d", got, uint64(math.MaxInt64)+1)
	}
	if got := fpmath.Abs(-42); got != 42 {
		t.Errorf("Abs(-42) = %d, want 42", got)
	}
	if got := fpmath.Abs(7); got != 7 {
		t.Errorf("Abs(7) = %d, want 7", got)
	}
}

// ============================================================================
// Test: margin helpers
// ============================================================================

func TestRequiredMargin(t *testing.T) {
	// fraction 1/5, price 1.0, magnitude 100 -> exactly 20
	fifth := fpmath.FractionScale / 5
	if got := fpmath.RequiredMargin(fifth, fpmath.PriceScale, 100); got != 20 {
		t.Errorf("RequiredMargin(1/5, 1.0, 100) = %d, want 20", got)
	}

	// magnitude 101 -> ceil(20.2) = 21
	if got := fpmath.RequiredMargin(fifth, fpmath.PriceScale, 101); got != 21 {
		t.Errorf("RequiredMargin(1/5, 1.0, 101) = %d, want 21", got)
	}

	// zero price requires nothing
	if got := fpmath.RequiredMargin(fifth, 0, 100); got != 0 {
		t.Errorf("RequiredMargin(1/5, 0, 100) = %d, want 0", got)
	}
}

func TestSustainableMagnitude(t *testing.T) {
	fifth := fpmath.FractionScale / 5

	// margin 20 at fraction 1/5, price 1.0 backs exactly 100
	if got := fpmath.SustainableMagnitude(20, fifth, fpmath.PriceScale); got != 100 {
		t.Errorf("SustainableMagnitude(20, 1/5, 1.0) = %d, want 100", got)
	}

	// margin 19 backs floor(95) = 95
	if got := fpmath.SustainableMagnitude(19, fifth, fpmath.PriceScale); got != 95 {
		t.Errorf("SustainableMagnitude(19, 1/5, 1.0) = %d, want 95", got)
	}

	if got := fpmath.SustainableMagnitude(20, fifth, 0); got != 0 {
		t.Errorf("SustainableMagnitude with zero price = %d, want 0", got)
	}
}

func TestRequiredMargin_RoundTripWithSustainable(t *testing.T) {
	// The magnitude a margin sustains must itself require no more than
	// that margin: req(sustain(m)) <= m.
	fifth := fpmath.FractionScale / 5
	for margin := uint64(1); margin < 200; margin++ {
		mag := fpmath.SustainableMagnitude(margin, fifth, fpmath.PriceScale)
		req := fpmath.RequiredMargin(fifth, fpmath.PriceScale, mag)
		if req > margin {
			t.Fatalf("margin=%d sustains mag=%d but requires %d", margin, mag, req)
		}
	}
}

func TestVariation(t *testing.T) {
	// delta +0.5, inventory 10 -> +5
	if got := fpmath.Variation(fpmath.PriceScale/2, 10); got != 5 {
		t.Errorf("Variation(0.5, 10) = %d, want 5", got)
	}
	// delta -0.5, inventory 10 -> -5
	if got := fpmath.Variation(-fpmath.PriceScale/2, 10); got != -5 {
		t.Errorf("Variation(-0.5, 10) = %d, want -5", got)
	}
	// delta -1.0, inventory -3 -> +3 (shorts gain when price falls)
	if got := fpmath.Variation(-fpmath.PriceScale, -3); got != 3 {
		t.Errorf("Variation(-1.0, -3) = %d, want 3", got)
	}
	if got := fpmath.Variation(0, 100); got != 0 {
		t.Errorf("Variation(0, 100) = %d, want 0", got)
	}
}

func TestHaircutFloor(t *testing.T) {
	// ratio 99/100 applied to 100 -> 99
	if got := fpmath.HaircutFloor(100, 99, 100); got != 99 {
		t.Errorf("HaircutFloor(100, 99, 100) = %d, want 99", got)
	}
	// ratio 100/150 applied to 75 -> floor(50) = 50
	if got := fpmath.HaircutFloor(75, 100, 150); got != 50 {
		t.Errorf("HaircutFloor(75, 100, 150) = %d, want 50", got)
	}
	// ratio 1/3 applied to 10 -> 3
	if got := fpmath.HaircutFloor(10, 1, 3); got != 3 {
		t.Errorf("HaircutFloor(10, 1, 3) = %d, want 3", got)
	}
}
