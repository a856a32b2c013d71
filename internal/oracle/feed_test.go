package oracle_test

import (
	"testing"

	"SynthSettle/internal/oracle"
)

func TestFeed_EmptyUntilFirstUpdate(t *testing.T) {
	feed := oracle.NewFeed()

	if _, ok := feed.Price(); ok {
		t.Error("empty feed should report no price")
	}
}

func TestFeed_AcceptsNewerSequences(t *testing.T) {
	feed := oracle.NewFeed()

	if !feed.Update(1_000_000, 1) {
		t.Fatal("first update rejected")
	}
	if !feed.Update(1_100_000, 5) {
		t.Fatal("gapped sequence should be accepted")
	}

	price, ok := feed.Price()
	if !ok || price != 1_100_000 {
		t.Errorf("price = %d, %v; want 1100000, true", price, ok)
	}
}

func TestFeed_DropsStaleSequences(t *testing.T) {
	feed := oracle.NewFeed()
	feed.Update(1_000_000, 10)

	if feed.Update(900_000, 10) {
		t.Error("equal sequence should be dropped")
	}
	if feed.Update(900_000, 3) {
		t.Error("older sequence should be dropped")
	}

	price, _ := feed.Price()
	if price != 1_000_000 {
		t.Errorf("price = %d, want the original 1000000", price)
	}
}

func TestFeed_ZeroPriceIsValid(t *testing.T) {
	feed := oracle.NewFeed()
	feed.Update(0, 1)

	price, ok := feed.Price()
	if !ok || price != 0 {
		t.Errorf("price = %d, %v; want 0, true", price, ok)
	}
}
