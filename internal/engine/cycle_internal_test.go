package engine

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"SynthSettle/internal/fpmath"
	"SynthSettle/internal/ledger"
)

// Properties of the cycle passes that need direct store access to set up
// arbitrary ledger states.

type fixedOracle struct {
	price int64
	has   bool
}

func (o fixedOracle) Price() (int64, bool) { return o.price, o.has }

func newBareEngine(t *testing.T, oracle Oracle) *Engine {
	t.Helper()
	eng, err := New(Config{
		InitialMarginFraction:     fpmath.FractionScale / 5,
		LiquidationMarginFraction: fpmath.FractionScale / 10,
		Currency:                  "SYN",
		PoolAccount:               uuid.New(),
	}, ledger.NewStore(), oracle, ledger.NewMemoryBank(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

type seededAccount struct {
	id        uuid.UUID
	position  int64
	inventory int64
	margin    uint64
}

func randomAccounts(rng *rand.Rand, n int) []seededAccount {
	accounts := make([]seededAccount, n)
	for i := range accounts {
		accounts[i] = seededAccount{
			id:        uuid.New(),
			position:  rng.Int63n(2001) - 1000,
			inventory: rng.Int63n(2001) - 1000,
			margin:    uint64(rng.Int63n(500)),
		}
	}
	return accounts
}

func seedStore(store *ledger.Store, accounts []seededAccount) {
	for _, a := range accounts {
		store.SetPosition(a.id, a.position)
		store.SetInventory(a.id, a.inventory)
		store.SetMargin(a.id, a.margin)
	}
}

func TestRunCycle_DeterministicAcrossInsertionOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	accounts := randomAccounts(rng, 50)
	oracle := fixedOracle{price: 900_000, has: true}

	first := newBareEngine(t, oracle)
	seedStore(first.store, accounts)
	first.store.SetRefPrice(fpmath.PriceScale)

	// Same accounts, reversed insertion order and a second map layout.
	second := newBareEngine(t, oracle)
	for i := len(accounts) - 1; i >= 0; i-- {
		seedStore(second.store, accounts[i:i+1])
	}
	second.store.SetRefPrice(fpmath.PriceScale)

	first.RunCycle()
	second.RunCycle()

	for _, a := range accounts {
		if fp, sp := first.PositionOf(a.id), second.PositionOf(a.id); fp != sp {
			t.Errorf("account %s: position %d vs %d", a.id, fp, sp)
		}
		if fi, si := first.InventoryOf(a.id), second.InventoryOf(a.id); fi != si {
			t.Errorf("account %s: inventory %d vs %d", a.id, fi, si)
		}
		if fm, sm := first.MarginOf(a.id), second.MarginOf(a.id); fm != sm {
			t.Errorf("account %s: margin %d vs %d", a.id, fm, sm)
		}
	}
}

func TestNetInterest_BalancesWithinHaircutRounding(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 20; trial++ {
		eng := newBareEngine(t, fixedOracle{})
		accounts := randomAccounts(rng, 30)
		seedStore(eng.store, accounts)

		eng.NetInterest()

		var longSum, shortSum uint64
		var haircutAccounts uint64
		for _, a := range accounts {
			inv := eng.InventoryOf(a.id)
			switch {
			case inv > 0:
				longSum += uint64(inv)
			case inv < 0:
				shortSum += fpmath.Abs(inv)
			}
			// A floor haircut loses at most one unit per account on the
			// haircut side.
			if inv != 0 && fpmath.Abs(inv) != fpmath.Abs(eng.PositionOf(a.id)) {
				haircutAccounts++
			}
		}

		var gap uint64
		if longSum > shortSum {
			gap = longSum - shortSum
		} else {
			gap = shortSum - longSum
		}
		if gap > haircutAccounts {
			t.Errorf("trial %d: matched totals %d vs %d diverge by %d with %d haircut accounts",
				trial, longSum, shortSum, gap, haircutAccounts)
		}

		// The filled side always matches in full.
		for _, a := range accounts {
			inv := eng.InventoryOf(a.id)
			if fpmath.Abs(inv) > fpmath.Abs(eng.PositionOf(a.id)) {
				t.Errorf("trial %d: inventory %d exceeds position %d", trial, inv, eng.PositionOf(a.id))
			}
		}
	}
}

func TestLiquidate_NeverGrowsExposureOrMargin(t *testing.T) {
	rng := rand.New(rand.NewSource(13))

	for trial := 0; trial < 20; trial++ {
		eng := newBareEngine(t, fixedOracle{})
		accounts := randomAccounts(rng, 30)
		seedStore(eng.store, accounts)
		eng.store.SetRefPrice(rng.Int63n(3 * fpmath.PriceScale))

		eng.Liquidate()

		for _, a := range accounts {
			if got := fpmath.Abs(eng.PositionOf(a.id)); got > fpmath.Abs(a.position) && got > fpmath.Abs(a.inventory) {
				t.Errorf("trial %d: |position| grew from %d (inv %d) to %d",
					trial, a.position, a.inventory, got)
			}
			if got := eng.MarginOf(a.id); got > a.margin {
				t.Errorf("trial %d: margin grew from %d to %d", trial, a.margin, got)
			}
		}
	}
}
