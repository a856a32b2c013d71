// Package oracle holds the external reference price between settlement
// cycles. The feed is written by the price ingestion goroutine and read by
// the settlement shell, so unlike the engine it carries its own lock.
package oracle

import "sync"

// Feed is the latest-value price cache. Updates carry a source sequence;
// stale sequences are silently dropped (idempotent, matching at-least-once
// delivery from the price stream), and gaps are tolerated because only the
// newest price matters to settlement.
type Feed struct {
	mu       sync.Mutex
	price    int64
	sequence int64
	has      bool
}

func NewFeed() *Feed {
	return &Feed{}
}

// Update records a price observation. It reports whether the observation
// was accepted; a sequence at or below the last accepted one is stale.
func (f *Feed) Update(price int64, sequence int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.has && sequence <= f.sequence {
		return false
	}

	f.price = price
	f.sequence = sequence
	f.has = true
	return true
}

// Price returns the latest accepted price, false if none has arrived yet.
// Satisfies the settlement engine's oracle contract.
func (f *Feed) Price() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.has
}

// Sequence returns the source sequence of the latest accepted price. Used
// when seeding the feed from a restored snapshot.
func (f *Feed) Sequence() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sequence
}
