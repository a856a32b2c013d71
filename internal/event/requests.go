// Package event defines the typed messages crossing the service boundary:
// inbound requests consumed from NATS and outbound settlement events
// published after the engine commits.
package event

import (
	"fmt"

	"github.com/google/uuid"
)

// PriceUpdate is an oracle price observation for the instrument.
type PriceUpdate struct {
	Instrument string
	Price      int64 // fixed-point, price scale
	Sequence   int64 // monotonic per instrument
	Timestamp  int64 // epoch microseconds, versioned input
}

func (p *PriceUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:price:%d", p.Instrument, p.Sequence)
}

// AdjustRequest is a participant's position-entry call received over the
// adjust stream. RequestID is the stable dedup key across redeliveries.
type AdjustRequest struct {
	RequestID     uuid.UUID
	Account       uuid.UUID
	DeltaPosition int64
	DeltaMargin   int64
	Sequence      int64
	Timestamp     int64
}

func (a *AdjustRequest) IdempotencyKey() string {
	return a.RequestID.String()
}

// TopUpRequest is a pure collateral deposit with no position change.
type TopUpRequest struct {
	RequestID uuid.UUID
	Account   uuid.UUID
	Amount    uint64
	Sequence  int64
	Timestamp int64
}

func (t *TopUpRequest) IdempotencyKey() string {
	return t.RequestID.String()
}
