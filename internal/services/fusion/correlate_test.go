package fusion

import (
	"testing"

	"FlowRadar/internal/domain/models"
)

func hasRelation(rel Relations, a, b *models.SignalEvent) bool {
	for _, k := range rel[a.Key] {
		if k == b.Key {
			return true
		}
	}
	return false
}

func TestCorrelateEmptyAndSingle(t *testing.T) {
	e := NewEngine(CorrelationConfig{})
	rel, stats := e.Correlate(nil)
	if len(rel) != 0 || stats.PairsChecked != 0 {
		t.Fatalf("empty batch produced relations: %v", rel)
	}
	rel, _ = e.Correlate([]*models.SignalEvent{sig(100, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15)})
	if len(rel) != 0 {
		t.Fatalf("single event related to something: %v", rel)
	}
}

func TestCorrelateLinksCloseSignals(t *testing.T) {
	e := NewEngine(CorrelationConfig{})
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15000)
	b := sig(1100, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.15005)
	rel, stats := e.Correlate([]*models.SignalEvent{a, b})
	if !hasRelation(rel, a, b) || !hasRelation(rel, b, a) {
		t.Fatalf("close signals not linked: %v", rel)
	}
	if stats.RelationsFound == 0 {
		t.Fatalf("stats did not count the relation: %+v", stats)
	}
	if len(a.RelatedSignals) != 1 || a.RelatedSignals[0] != b.Key {
		t.Fatalf("related key not appended to event: %v", a.RelatedSignals)
	}
}

func TestCorrelateWindowBoundaryInclusive(t *testing.T) {
	e := NewEngine(CorrelationConfig{WindowSeconds: 300})
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15)
	b := sig(1300, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.15)
	c := sig(1300.5, models.SideBuy, models.LevelConfirmed, models.TypeLiquidation, 70, 0.15)
	rel, _ := e.Correlate([]*models.SignalEvent{a, b, c})
	if !hasRelation(rel, a, b) {
		t.Fatalf("exact 300s boundary must be inclusive")
	}
	if hasRelation(rel, a, c) {
		t.Fatalf("300.5s apart must not correlate")
	}
}

func TestCorrelatePriceTooFar(t *testing.T) {
	e := NewEngine(CorrelationConfig{})
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.1500)
	b := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.1600)
	rel, _ := e.Correlate([]*models.SignalEvent{a, b})
	if hasRelation(rel, a, b) {
		t.Fatalf("prices 6.7%% apart must not correlate at 0.1%% tolerance")
	}
}

func TestCorrelatePerTypeExpansion(t *testing.T) {
	// liq gets ±0.2%, so a liq/whale pair overlaps where a whale/whale pair
	// at the same distance does not.
	e := NewEngine(CorrelationConfig{})
	liq := sig(1000, models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 100.0)
	whale := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 100.2)
	rel, _ := e.Correlate([]*models.SignalEvent{liq, whale})
	if !hasRelation(rel, liq, whale) {
		t.Fatalf("liq expansion must reach the whale signal")
	}

	w1 := sig(1000, models.SideSell, models.LevelConfirmed, models.TypeWhale, 80, 100.0)
	w2 := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 100.2)
	rel, _ = e.Correlate([]*models.SignalEvent{w1, w2})
	if hasRelation(rel, w1, w2) {
		t.Fatalf("whale bands at 0.05%% must not reach 0.2%% apart")
	}
}

func TestCorrelateSideIsNotAFilter(t *testing.T) {
	e := NewEngine(CorrelationConfig{})
	buy := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15)
	sell := sig(1010, models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 0.15)
	rel, _ := e.Correlate([]*models.SignalEvent{buy, sell})
	if !hasRelation(rel, buy, sell) {
		t.Fatalf("opposite sides must still correlate")
	}
}

func TestCorrelateDifferentSymbols(t *testing.T) {
	e := NewEngine(CorrelationConfig{})
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15)
	b := models.NewSignalEvent(1000, "BTC/USDT", models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15, models.PriceBucket(0.15))
	rel, _ := e.Correlate([]*models.SignalEvent{a, b})
	if len(rel) != 0 {
		t.Fatalf("different symbols must never correlate: %v", rel)
	}
}

func TestCorrelateThreeWay(t *testing.T) {
	e := NewEngine(CorrelationConfig{})
	ice := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15000)
	whale := sig(1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15003)
	liq := sig(1100, models.SideBuy, models.LevelCritical, models.TypeLiquidation, 62, 0.15008)
	rel, _ := e.Correlate([]*models.SignalEvent{ice, whale, liq})
	for _, pair := range [][2]*models.SignalEvent{{ice, whale}, {ice, liq}, {whale, liq}} {
		if !hasRelation(rel, pair[0], pair[1]) {
			t.Fatalf("%s and %s not linked", pair[0].Key, pair[1].Key)
		}
	}
}

func TestCorrelateLargePriceScale(t *testing.T) {
	// At BTC-scale prices the expanded band covers far more than one bucket;
	// the engine must still find the overlap.
	e := NewEngine(CorrelationConfig{})
	a := sig(1000, models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 61000)
	b := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 61080)
	rel, _ := e.Correlate([]*models.SignalEvent{a, b})
	if !hasRelation(rel, a, b) {
		t.Fatalf("wide-band prices must still correlate")
	}
}
