package queue

import (
	"testing"
	"time"
)

func TestNewMessageEncodesBatchID(t *testing.T) {
	now := time.Date(2026, time.January, 30, 22, 0, 0, 0, time.FixedZone("x", 3600))
	msg := NewMessage("batch-123", "request-456", now)
	if msg.EnqueuedAt != "2026-01-30T21:00:00Z" || msg.Version != MessageVersion {
		t.Fatalf("unexpected stamp %+v", msg)
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got != msg {
		t.Fatalf("decoded %+v, want %+v", got, msg)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
