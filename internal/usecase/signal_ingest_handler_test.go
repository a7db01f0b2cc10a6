package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/service/store"
)

func TestHandleConvertsMillisecondTimestamps(t *testing.T) {
	m := store.NewManager()
	h := NewSignalIngestHandler("signals", m, nil, nopMetrics{})

	ev := models.NewSignalEvent(1704758400123, "DOGE/USDT", models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.15, models.PriceBucket(0.15))
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	snap := m.Snapshot("DOGE/USDT")
	if len(snap) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(snap))
	}
	if want := 1704758400123.0 / 1000; snap[0].TS != want {
		t.Fatalf("ts = %v, want %v (converted to seconds)", snap[0].TS, want)
	}
}

func TestHandleReturnsValidationErrorForRetry(t *testing.T) {
	m := store.NewManager()
	h := NewSignalIngestHandler("signals", m, nil, nopMetrics{})

	ev := models.NewSignalEvent(1000, "DOGE/USDT", models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.15, models.PriceBucket(0.15))
	ev.Side = "HOLD"
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// the consumer retries on error and eventually routes the payload to
	// the DLQ, so the reject must surface instead of being swallowed
	if err := h.Handle(context.Background(), b); err == nil {
		t.Fatalf("expected validation error for bad side")
	}
	if m.Size() != 0 {
		t.Fatalf("rejected event must not be stored, size = %d", m.Size())
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	h := NewSignalIngestHandler("signals", store.NewManager(), nil, nopMetrics{})
	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}
