package fpmath

import (
	"math"
	"math/big"
)

// Margin and netting helpers. Requirements round up (conservative toward
// forcing liquidation); surviving sizes and haircuts round down
// (conservative toward leaving less exposure). All results saturate.

// RequiredMargin computes ceil(fraction * price * magnitude) in settlement
// currency units, where fraction is FractionScale-based and price is
// PriceScale-based. Saturates to MaxUint64.
func RequiredMargin(fraction, price int64, magnitude uint64) uint64 {
	if fraction <= 0 || price <= 0 || magnitude == 0 {
		return 0
	}

	num := getInt128()
	num.Mul(big.NewInt(fraction), big.NewInt(price))
	num.Mul(num, new(big.Int).SetUint64(magnitude))

	denom := getInt128()
	denom.Mul(big.NewInt(FractionScale), big.NewInt(PriceScale))

	quotient := getInt128()
	remainder := getInt128()
	quotient.DivMod(num, denom, remainder)
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}

	result := clampBigUint64(quotient)

	putInt128(num)
	putInt128(denom)
	putInt128(quotient)
	putInt128(remainder)

	return result
}

// SustainableMagnitude computes floor(margin / (fraction * price)): the
// largest position magnitude a margin balance can back at the given
// fraction. Returns 0 when fraction or price is non-positive.
func SustainableMagnitude(margin uint64, fraction, price int64) uint64 {
	if fraction <= 0 || price <= 0 || margin == 0 {
		return 0
	}

	num := getInt128()
	num.SetUint64(margin)
	num.Mul(num, big.NewInt(FractionScale))
	num.Mul(num, big.NewInt(PriceScale))

	denom := getInt128()
	denom.Mul(big.NewInt(fraction), big.NewInt(price))

	quotient := getInt128()
	quotient.Quo(num, denom)

	result := clampBigUint64(quotient)

	putInt128(num)
	putInt128(denom)
	putInt128(quotient)

	return result
}

// Variation computes delta * inventory / PriceScale with banker's rounding,
// saturating to the int64 range. delta is a PriceScale-based price move;
// the result is in settlement currency units.
func Variation(delta, inventory int64) int64 {
	if delta == 0 || inventory == 0 {
		return 0
	}
	product := MultiplyInt128(delta, inventory)
	result := DivideInt128(product, PriceScale, RoundHalfEven)
	putInt128(product)
	return result
}

// HaircutFloor computes floor(magnitude * num / den): the pro-rata matched
// quantity for an account on the haircut side of netting. den must be
// non-zero and >= num.
func HaircutFloor(magnitude, num, den uint64) uint64 {
	if magnitude == 0 || num == 0 || den == 0 {
		return 0
	}

	product := getInt128()
	product.SetUint64(magnitude)
	product.Mul(product, new(big.Int).SetUint64(num))

	quotient := getInt128()
	quotient.Quo(product, new(big.Int).SetUint64(den))

	result := clampBigUint64(quotient)

	putInt128(product)
	putInt128(quotient)

	return result
}

func clampBigUint64(v *big.Int) uint64 {
	if v.Sign() <= 0 {
		return 0
	}
	if v.IsUint64() {
		return v.Uint64()
	}
	return math.MaxUint64
}
