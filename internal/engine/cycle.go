package engine

import (
	"math"

	"SynthSettle/internal/fpmath"
)

// Revalue applies the oracle price movement to every account's margin.
// When the oracle has no current price the pass is a no-op; everything
// downstream still runs against the stale reference price. Only margin is
// mutated; position and inventory are untouched.
func (e *Engine) Revalue() {
	newPrice, ok := e.oracle.Price()
	if !ok {
		return
	}

	p0, set := e.store.RefPrice()
	if !set {
		p0 = newPrice
	}
	delta := fpmath.SatSub(newPrice, p0)

	// Stored unconditionally: even a zero delta resolves the unset state.
	e.store.SetRefPrice(newPrice)

	for _, account := range e.store.MarginAccounts() {
		variation := fpmath.Variation(delta, e.store.Inventory(account))
		e.store.SetMargin(account, applyVariation(e.store.Margin(account), variation))
	}
}

// applyVariation adds a signed variation to a margin balance, clamping at
// zero and saturating at MaxUint64.
func applyVariation(margin uint64, variation int64) uint64 {
	if variation >= 0 {
		return fpmath.SatAddUint64(margin, uint64(variation))
	}
	loss := fpmath.Abs(variation)
	if loss >= margin {
		return 0
	}
	return margin - loss
}

// Liquidate shrinks or wipes under-collateralized positions. Requirements
// round up, surviving sizes round down, and every step saturates: a
// batch pass has no single caller to report errors to.
//
// Tiering per account: a zeroed margin is a full unwind; a raw position
// whose liquidation-margin requirement still fits the margin passes
// untouched; otherwise the position collapses to the matched inventory,
// or further down to the largest magnitude the margin can back at the
// initial-margin fraction, signed by the inventory side.
func (e *Engine) Liquidate() {
	price, set := e.store.RefPrice()
	if !set {
		return
	}

	liq := e.cfg.LiquidationMarginFraction
	initial := e.cfg.InitialMarginFraction

	for _, account := range e.store.MarginAccounts() {
		margin := e.store.Margin(account)

		if margin == 0 {
			// Terminal until a new position entry.
			e.store.SetPosition(account, 0)
			e.store.SetInventory(account, 0)
			continue
		}

		position := e.store.Position(account)
		reqRaw := fpmath.RequiredMargin(liq, price, fpmath.Abs(position))
		if reqRaw <= margin {
			continue
		}

		inventory := e.store.Inventory(account)
		reqInv := fpmath.RequiredMargin(initial, price, fpmath.Abs(inventory))
		if price == 0 || reqInv > margin {
			// Keep matched exposure and margin; discard the unmatched excess.
			e.store.SetPosition(account, inventory)
			continue
		}

		// Shrink to the largest magnitude the margin sustains. Sign taken
		// from inventory, the economically real matched side, not the stale
		// position.
		newMag := fpmath.SustainableMagnitude(margin, initial, price)
		e.store.SetPosition(account, signedMagnitude(fpmath.SignOf(inventory), newMag))
	}
}

// signedMagnitude builds sign*magnitude, saturating to the int64 range.
func signedMagnitude(sign int64, magnitude uint64) int64 {
	signed, ok := fpmath.Uint64ToInt64(magnitude)
	if !ok {
		signed = math.MaxInt64
	}
	return sign * signed
}

// NetInterest recomputes every account's matched inventory from the raw
// positions. The smaller side is fully matched; the larger side takes a
// pro-rata floor haircut, so the matched totals balance up to one unit of
// rounding loss per haircut-side account. Ties treat the shorts as the
// filled side (the ratio is 1, so both sides match fully either way).
func (e *Engine) NetInterest() {
	e.store.ClearInventories()

	var longs, shorts uint64
	for _, account := range e.store.PositionAccounts() {
		position := e.store.Position(account)
		switch {
		case position > 0:
			longs = fpmath.SatAddUint64(longs, uint64(position))
		case position < 0:
			shorts = fpmath.SatAddUint64(shorts, fpmath.Abs(position))
		}
	}

	// One empty side means matching is impossible this cycle.
	if longs == 0 || shorts == 0 {
		return
	}

	shortsFilled := shorts <= longs
	smaller, larger := shorts, longs
	if !shortsFilled {
		smaller, larger = longs, shorts
	}

	for _, account := range e.store.PositionAccounts() {
		position := e.store.Position(account)
		if position == 0 {
			continue
		}

		onFilledSide := (position < 0) == shortsFilled
		if onFilledSide {
			e.store.SetInventory(account, position)
			continue
		}

		matched := fpmath.HaircutFloor(fpmath.Abs(position), smaller, larger)
		e.store.SetInventory(account, signedMagnitude(fpmath.SignOf(position), matched))
	}
}
