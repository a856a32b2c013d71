package ingestion_test

import (
	"testing"

	"github.com/google/uuid"

	"SynthSettle/internal/event"
	"SynthSettle/internal/ingestion"
)

func TestParseRawEvent_PriceUpdate(t *testing.T) {
	raw := ingestion.RawEvent{
		Subject: "synth.prices.SYNUSD",
		Data:    []byte(`{"instrument":"SYNUSD","price":1250000,"price_sequence":42,"timestamp_us":1700000000000000}`),
	}

	parsed, err := ingestion.ParseRawEvent(raw, "PriceUpdate")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	update, ok := parsed.(*event.PriceUpdate)
	if !ok {
		t.Fatalf("parsed type %T, want *event.PriceUpdate", parsed)
	}
	if update.Price != 1_250_000 || update.Sequence != 42 || update.Instrument != "SYNUSD" {
		t.Errorf("unexpected fields: %+v", update)
	}
}

func TestParseRawEvent_NegativePriceRejected(t *testing.T) {
	raw := ingestion.RawEvent{
		Data: []byte(`{"instrument":"SYNUSD","price":-1,"price_sequence":1}`),
	}

	if _, err := ingestion.ParseRawEvent(raw, "PriceUpdate"); err == nil {
		t.Error("negative price should fail to parse")
	}
}

func TestParseRawEvent_AdjustRequest(t *testing.T) {
	requestID := uuid.New()
	account := uuid.New()
	raw := ingestion.RawEvent{
		Data: []byte(`{"request_id":"` + requestID.String() + `","account":"` + account.String() +
			`","delta_position":100,"delta_margin":-20,"sequence":7,"timestamp_us":1}`),
	}

	parsed, err := ingestion.ParseRawEvent(raw, "AdjustRequest")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	req, ok := parsed.(*event.AdjustRequest)
	if !ok {
		t.Fatalf("parsed type %T, want *event.AdjustRequest", parsed)
	}
	if req.RequestID != requestID || req.Account != account {
		t.Error("identifiers did not round-trip")
	}
	if req.DeltaPosition != 100 || req.DeltaMargin != -20 {
		t.Errorf("deltas = %d, %d; want 100, -20", req.DeltaPosition, req.DeltaMargin)
	}
}

func TestParseRawEvent_BadUUID(t *testing.T) {
	raw := ingestion.RawEvent{
		Data: []byte(`{"request_id":"not-a-uuid","account":"also-bad","amount":5}`),
	}

	if _, err := ingestion.ParseRawEvent(raw, "TopUpRequest"); err == nil {
		t.Error("malformed request_id should fail to parse")
	}
}

func TestParseRawEvent_UnknownType(t *testing.T) {
	if _, err := ingestion.ParseRawEvent(ingestion.RawEvent{Data: []byte(`{}`)}, "Bogus"); err == nil {
		t.Error("unknown event type should fail")
	}
}
