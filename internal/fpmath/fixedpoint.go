package fpmath

import (
	"math"
	"math/big"
	"sync"
)

// Fixed-point scales. Prices carry 6 decimal places; margin fractions are
// parts-per-million (Permill-style), so 1_000_000 == 1.0.
const (
	PriceScale    int64 = 1_000_000
	FractionScale int64 = 1_000_000
)

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding
	RoundDown                        // Toward negative infinity (floor)
	RoundUp                          // Away from floor when a remainder exists (ceiling)
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow.
// The caller must release the result with ReleaseInt128.
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// ReleaseInt128 returns a pooled big.Int obtained from MultiplyInt128.
func ReleaseInt128(v *big.Int) {
	putInt128(v)
}

// DivideInt128 performs numerator / denominator with rounding.
// denominator must be positive. DivMod yields a floored quotient with a
// non-negative remainder, so the corrections below hold for negative
// numerators as well. The quotient saturates to the int64 range.
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := clampBigInt64(quotient)

	switch roundingMode {
	case RoundHalfEven:
		half := big.NewInt(denominator / 2)
		cmp := remainder.Cmp(half)

		if cmp > 0 {
			result = SatAdd(result, 1)
		} else if cmp == 0 && denominator%2 == 0 {
			// remainder == half and even denominator: round to even
			if result%2 != 0 {
				result = SatAdd(result, 1)
			}
		}

	case RoundUp:
		if remainder.Sign() != 0 {
			result = SatAdd(result, 1)
		}

	case RoundDown:
		// DivMod already floors
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

func clampBigInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}

// === Saturating arithmetic (engine passes: total, never aborting) ===

// SatAdd adds two int64 values, saturating at the int64 bounds.
func SatAdd(a, b int64) int64 {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		if a > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

// SatSub subtracts b from a, saturating at the int64 bounds.
func SatSub(a, b int64) int64 {
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return diff
}

// SatAddUint64 adds two uint64 values, saturating at MaxUint64.
func SatAddUint64(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}

// === Checked arithmetic (single-caller operations: abort on ambiguity) ===

// CheckedAdd adds two int64 values, reporting overflow.
func CheckedAdd(a, b int64) (int64, bool) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, false
	}
	return sum, true
}

// CheckedAddUint64 adds two uint64 values, reporting overflow.
func CheckedAddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// === Signed/unsigned domain conversions ===

// Uint64ToInt64 converts a magnitude into the signed domain.
// Fails when the value exceeds what int64 can hold.
func Uint64ToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// Int64ToUint64 converts a non-negative signed value into the unsigned domain.
func Int64ToUint64(v int64) (uint64, bool) {
	if v < 0 {
		return 0, false
	}
	return uint64(v), true
}

// Abs returns |v| as a uint64. Total: |MinInt64| fits in uint64.
func Abs(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// SignOf returns -1, 0 or +1 for a signed quantity.
func SignOf(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
