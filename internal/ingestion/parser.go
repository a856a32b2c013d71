package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"SynthSettle/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into
// a typed request. The shell validates and converts before the serialized
// engine call; parse failures are terminal for the message.
func ParseRawEvent(raw RawEvent, eventType string) (interface{}, error) {
	switch eventType {
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	case "AdjustRequest":
		return parseAdjustRequest(raw.Data)
	case "TopUpRequest":
		return parseTopUpRequest(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type priceUpdateJSON struct {
	Instrument  string `json:"instrument"`
	Price       int64  `json:"price"`
	Sequence    int64  `json:"price_sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}
	if j.Price < 0 {
		return nil, fmt.Errorf("parse PriceUpdate: negative price %d", j.Price)
	}
	return &event.PriceUpdate{
		Instrument: j.Instrument,
		Price:      j.Price,
		Sequence:   j.Sequence,
		Timestamp:  j.TimestampUs,
	}, nil
}

type adjustRequestJSON struct {
	RequestID     string `json:"request_id"`
	Account       string `json:"account"`
	DeltaPosition int64  `json:"delta_position"`
	DeltaMargin   int64  `json:"delta_margin"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parseAdjustRequest(data []byte) (*event.AdjustRequest, error) {
	var j adjustRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AdjustRequest: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	return &event.AdjustRequest{
		RequestID:     requestID,
		Account:       account,
		DeltaPosition: j.DeltaPosition,
		DeltaMargin:   j.DeltaMargin,
		Sequence:      j.Sequence,
		Timestamp:     j.TimestampUs,
	}, nil
}

type topUpRequestJSON struct {
	RequestID   string `json:"request_id"`
	Account     string `json:"account"`
	Amount      uint64 `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseTopUpRequest(data []byte) (*event.TopUpRequest, error) {
	var j topUpRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TopUpRequest: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	return &event.TopUpRequest{
		RequestID: requestID,
		Account:   account,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}
