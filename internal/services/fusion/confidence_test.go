package fusion

import (
	"testing"

	"FlowRadar/internal/domain/models"
)

func correlated(t *testing.T, events ...*models.SignalEvent) Relations {
	t.Helper()
	rel, _ := NewEngine(CorrelationConfig{}).Correlate(events)
	return rel
}

func findModifier(ev *models.SignalEvent, source string) (float64, bool) {
	for _, m := range ev.Modifiers {
		if m.Source == source {
			return m.Delta, true
		}
	}
	return 0, false
}

func TestResonanceBoost(t *testing.T) {
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
	b := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15004)
	rel := correlated(t, a, b)

	NewModifier(ModifierConfig{}).Apply([]*models.SignalEvent{a, b}, rel)
	if a.Confidence != 65 {
		t.Fatalf("confidence = %v, want 65 (+5 resonance)", a.Confidence)
	}
	if delta, ok := findModifier(a, SourceResonance); !ok || delta != 5 {
		t.Fatalf("resonance entry missing or wrong: %v %v", delta, ok)
	}
	if _, ok := findModifier(a, SourceTypeCombo); ok {
		t.Fatalf("same-type pair must not earn a combo bonus")
	}
}

func TestResonanceCap(t *testing.T) {
	events := make([]*models.SignalEvent, 0, 7)
	for i := 0; i < 7; i++ {
		ev := sig(1000+float64(i), models.SideBuy, models.LevelConfirmed, models.TypeWhale, 50, 0.15)
		ev.Key = models.GenerateKey(ev.Type, ev.Symbol, ev.Side, ev.Level, models.TimeBucket(ev.TS, 1))
		events = append(events, ev)
	}
	rel := correlated(t, events...)
	NewModifier(ModifierConfig{}).Apply(events, rel)
	// 6 same-side relations would be +30, capped at +25
	if events[0].Confidence != 75 {
		t.Fatalf("confidence = %v, want 75 (capped resonance)", events[0].Confidence)
	}
}

func TestConflictPenaltyCap(t *testing.T) {
	buy := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
	s1 := sig(1001, models.SideSell, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
	s2 := sig(1002, models.SideSell, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
	s3 := sig(1003, models.SideSell, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
	s1.Key += ":a"
	s2.Key += ":b"
	s3.Key += ":c"
	events := []*models.SignalEvent{buy, s1, s2, s3}
	rel := correlated(t, events...)

	NewModifier(ModifierConfig{}).Apply(events, rel)
	// 3 opposite relations would be -15, capped at -10; no same-side boost
	if delta, ok := findModifier(buy, SourceConflict); !ok || delta != -10 {
		t.Fatalf("conflict penalty = %v (%v), want -10", delta, ok)
	}
	if buy.Confidence != 50 {
		t.Fatalf("confidence = %v, want 50", buy.Confidence)
	}
}

func TestBoostAndPenaltyClampOnce(t *testing.T) {
	base := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 95, 0.15)
	events := []*models.SignalEvent{base}
	for i := 0; i < 5; i++ {
		ev := sig(1001+float64(i), models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
		ev.Key += ":b" + string(rune('0'+i))
		events = append(events, ev)
	}
	for i := 0; i < 2; i++ {
		ev := sig(1006+float64(i), models.SideSell, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
		ev.Key += ":s" + string(rune('0'+i))
		events = append(events, ev)
	}
	rel := correlated(t, events...)

	NewModifier(ModifierConfig{}).Apply(events, rel)
	// +25 resonance and -10 conflict sum to +15 before the single clamp;
	// clamping the boost on its own would eat the headroom and land at 90
	if base.Confidence != 100 {
		t.Fatalf("confidence = %v, want 100 (sum then clamp)", base.Confidence)
	}
	if delta, ok := findModifier(base, SourceResonance); !ok || delta != 25 {
		t.Fatalf("resonance = %v (%v), want 25", delta, ok)
	}
	if delta, ok := findModifier(base, SourceConflict); !ok || delta != -10 {
		t.Fatalf("conflict penalty = %v (%v), want -10", delta, ok)
	}
}

func TestTypeComboBonus(t *testing.T) {
	ice := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15000)
	whale := sig(1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15003)
	liq := sig(1100, models.SideBuy, models.LevelCritical, models.TypeLiquidation, 62, 0.15008)
	events := []*models.SignalEvent{ice, whale, liq}
	rel := correlated(t, events...)

	NewModifier(ModifierConfig{}).Apply(events, rel)
	for _, ev := range events {
		if delta, ok := findModifier(ev, SourceTypeCombo); !ok || delta != 30 {
			t.Fatalf("%s combo bonus = %v (%v), want 30", ev.Key, delta, ok)
		}
		if delta, ok := findModifier(ev, SourceResonance); !ok || delta != 10 {
			t.Fatalf("%s resonance = %v (%v), want 10", ev.Key, delta, ok)
		}
	}
	if ice.Confidence != 95 {
		t.Fatalf("iceberg confidence = %v, want 95", ice.Confidence)
	}
}

func TestPairComboBonus(t *testing.T) {
	whale := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 50, 0.15)
	liq := sig(1010, models.SideSell, models.LevelCritical, models.TypeLiquidation, 50, 0.15)
	events := []*models.SignalEvent{whale, liq}
	rel := correlated(t, events...)

	NewModifier(ModifierConfig{}).Apply(events, rel)
	// combo counts distinct types regardless of side
	if delta, ok := findModifier(whale, SourceTypeCombo); !ok || delta != 20 {
		t.Fatalf("whale+liq combo = %v (%v), want 20", delta, ok)
	}
}

func TestConfidenceStaysInBounds(t *testing.T) {
	ice := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 95, 0.15000)
	whale := sig(1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 98, 0.15003)
	liq := sig(1100, models.SideBuy, models.LevelCritical, models.TypeLiquidation, 99, 0.15008)
	events := []*models.SignalEvent{ice, whale, liq}
	rel := correlated(t, events...)

	NewModifier(ModifierConfig{}).Apply(events, rel)
	for _, ev := range events {
		if ev.Confidence < 0 || ev.Confidence > 100 {
			t.Fatalf("%s confidence %v out of bounds", ev.Key, ev.Confidence)
		}
	}
	if ice.Confidence != 100 {
		t.Fatalf("iceberg confidence = %v, want clamped 100", ice.Confidence)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ice := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15000)
	whale := sig(1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15003)
	events := []*models.SignalEvent{ice, whale}
	rel := correlated(t, events...)

	m := NewModifier(ModifierConfig{})
	m.Apply(events, rel)
	first := ice.Confidence
	firstLog := len(ice.Modifiers)

	m.Apply(events, rel)
	if ice.Confidence != first {
		t.Fatalf("second pass changed confidence: %v -> %v", first, ice.Confidence)
	}
	if len(ice.Modifiers) != firstLog {
		t.Fatalf("second pass grew the modifier log: %d -> %d", firstLog, len(ice.Modifiers))
	}
}

func TestNoRelationsNoChange(t *testing.T) {
	ev := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15)
	NewModifier(ModifierConfig{}).Apply([]*models.SignalEvent{ev}, Relations{})
	if ev.Confidence != 60 || len(ev.Modifiers) != 0 {
		t.Fatalf("unrelated event mutated: conf=%v log=%v", ev.Confidence, ev.Modifiers)
	}
}
