package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func validEvent() *SignalEvent {
	return NewSignalEvent(1704758400.0, "DOGE/USDT", SideBuy, LevelConfirmed, TypeIceberg, 85, 0.15068, PriceBucket(0.15068))
}

func TestGenerateKey(t *testing.T) {
	got := GenerateKey(TypeIceberg, "DOGE/USDT", SideBuy, LevelConfirmed, "price_0.15068")
	want := "iceberg:DOGE/USDT:BUY:CONFIRMED:price_0.15068"
	if got != want {
		t.Fatalf("GenerateKey = %q, want %q", got, want)
	}
}

func TestValidateOK(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SignalEvent)
		field  string
	}{
		{"empty symbol", func(e *SignalEvent) { e.Symbol = "" }, "symbol"},
		{"empty key", func(e *SignalEvent) { e.Key = "" }, "key"},
		{"bad side", func(e *SignalEvent) { e.Side = "HOLD" }, "side"},
		{"empty level", func(e *SignalEvent) { e.Level = "" }, "level"},
		{"empty type", func(e *SignalEvent) { e.Type = "" }, "type"},
		{"confidence above range", func(e *SignalEvent) { e.Confidence = 101 }, "confidence"},
		{"confidence below range", func(e *SignalEvent) { e.Confidence = -1 }, "confidence"},
		{"short key", func(e *SignalEvent) { e.Key = "iceberg:DOGE/USDT:BUY" }, "key"},
		{"key type mismatch", func(e *SignalEvent) { e.Type = TypeWhale }, "key"},
		{"key side mismatch", func(e *SignalEvent) { e.Side = SideSell }, "key"},
	}
	for _, tc := range cases {
		ev := validEvent()
		tc.mutate(ev)
		err := ev.Validate()
		if err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %T", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: error field = %s, want %s", tc.name, verr.Field, tc.field)
		}
	}
}

func TestValidateAllowsLevelSegmentMismatch(t *testing.T) {
	// Detectors reuse the original key when upgrading a signal's level.
	ev := validEvent()
	ev.Key = GenerateKey(ev.Type, ev.Symbol, ev.Side, LevelActivity, "price_0.15068")
	ev.Level = LevelConfirmed
	if err := ev.Validate(); err != nil {
		t.Fatalf("level-upgraded key rejected: %v", err)
	}
}

func TestValidateAllowsUnknownLevelAndType(t *testing.T) {
	ev := validEvent()
	ev.Type = "orderflow"
	ev.Level = "EXPERIMENTAL"
	ev.Key = GenerateKey(ev.Type, ev.Symbol, ev.Side, ev.Level, "market")
	if err := ev.Validate(); err != nil {
		t.Fatalf("unknown level/type rejected: %v", err)
	}
}

func TestClampConfidence(t *testing.T) {
	if got := ClampConfidence(150); got != 100 {
		t.Fatalf("clamp(150) = %v, want 100", got)
	}
	if got := ClampConfidence(-5); got != 0 {
		t.Fatalf("clamp(-5) = %v, want 0", got)
	}
	if got := ClampConfidence(42.5); got != 42.5 {
		t.Fatalf("clamp(42.5) = %v, want 42.5", got)
	}
}

func TestAddModifierClampsAndLogs(t *testing.T) {
	ev := validEvent()
	ev.AddModifier("resonance", 10)
	ev.AddModifier("type_combo", 30)
	if ev.Confidence != 100 {
		t.Fatalf("confidence = %v, want clamped 100", ev.Confidence)
	}
	if len(ev.Modifiers) != 2 {
		t.Fatalf("modifier log length = %d, want 2", len(ev.Modifiers))
	}
	if ev.Modifiers[1].Source != "type_combo" || ev.Modifiers[1].Delta != 30 {
		t.Fatalf("unexpected modifier entry: %+v", ev.Modifiers[1])
	}
}

func TestAddRelatedDedupes(t *testing.T) {
	ev := validEvent()
	ev.AddRelated("whale:DOGE/USDT:BUY:CONFIRMED:market")
	ev.AddRelated("whale:DOGE/USDT:BUY:CONFIRMED:market")
	if len(ev.RelatedSignals) != 1 {
		t.Fatalf("related keys = %d, want 1", len(ev.RelatedSignals))
	}
}

func TestJSONRoundTripPreservesUnknownFields(t *testing.T) {
	payload := []byte(`{
		"ts": 1704758400.0,
		"symbol": "DOGE/USDT",
		"side": "BUY",
		"level": "CONFIRMED",
		"confidence": 85,
		"price": 0.15068,
		"type": "iceberg",
		"key": "iceberg:DOGE/USDT:BUY:CONFIRMED:price_0.15068",
		"data": {"cumulative_filled": 120000.0, "refill_count": 4},
		"detector_build": "v2.3.1",
		"spoof_score": 0.12
	}`)

	var ev SignalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != TypeIceberg {
		t.Fatalf("type = %q, want iceberg", ev.Type)
	}
	if ev.BaseConfidence != 85 {
		t.Fatalf("base confidence = %v, want 85", ev.BaseConfidence)
	}
	extras, ok := ev.Metadata["extras"].(map[string]interface{})
	if !ok {
		t.Fatalf("metadata.extras missing: %#v", ev.Metadata)
	}
	if extras["detector_build"] != "v2.3.1" {
		t.Fatalf("extras lost detector_build: %#v", extras)
	}

	out, err := json.Marshal(&ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again SignalEvent
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	extras, ok = again.Metadata["extras"].(map[string]interface{})
	if !ok || extras["spoof_score"] != 0.12 {
		t.Fatalf("extras did not survive round trip: %#v", again.Metadata)
	}
	if again.Data["refill_count"] != float64(4) {
		t.Fatalf("data payload altered: %#v", again.Data)
	}
}

func TestSignalTypeAlias(t *testing.T) {
	payload := []byte(`{"ts": 1, "symbol": "BTC/USDT", "side": "SELL", "level": "WARNING",
		"confidence": 50, "price": 61000, "signal_type": "whale",
		"key": "whale:BTC/USDT:SELL:WARNING:market"}`)
	var ev SignalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != TypeWhale {
		t.Fatalf("type = %q, want whale", ev.Type)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ev := validEvent()
	ev.Data = map[string]interface{}{"notional": 1500.0}
	cp := ev.Clone()
	cp.Data["notional"] = 9999.0
	cp.AddModifier("resonance", 5)
	cp.AddRelated("liq:DOGE/USDT:SELL:CRITICAL:market")
	if ev.Data["notional"] != 1500.0 {
		t.Fatalf("clone shares data map")
	}
	if len(ev.Modifiers) != 0 || len(ev.RelatedSignals) != 0 {
		t.Fatalf("clone shares slices")
	}
}
