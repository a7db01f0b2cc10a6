package fusion

import (
	"testing"

	"FlowRadar/internal/domain/models"
)

func sig(ts float64, side models.SignalSide, level models.SignalLevel, typ models.SignalType, conf, price float64) *models.SignalEvent {
	return models.NewSignalEvent(ts, "DOGE/USDT", side, level, typ, conf, price, models.PriceBucket(price))
}

func TestSortKeyOrdering(t *testing.T) {
	p := DefaultPriorityConfig()

	critical := sig(100, models.SideBuy, models.LevelCritical, models.TypeIceberg, 50, 0.15)
	confirmed := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeLiquidation, 90, 0.15)
	if !p.SortKey(critical).Less(p.SortKey(confirmed)) {
		t.Fatalf("CRITICAL must sort before CONFIRMED regardless of type")
	}

	liq := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeLiquidation, 50, 0.15)
	whale := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 90, 0.15)
	if !p.SortKey(liq).Less(p.SortKey(whale)) {
		t.Fatalf("liq must sort before whale at equal level")
	}

	newer := sig(200, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 50, 0.15)
	older := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 50, 0.15)
	if !p.SortKey(newer).Less(p.SortKey(older)) {
		t.Fatalf("newer signal must sort before older at equal ranks")
	}
}

func TestUnknownTagsRankLast(t *testing.T) {
	p := DefaultPriorityConfig()
	if got := p.LevelRank("EXPERIMENTAL"); got != DefaultRank {
		t.Fatalf("unknown level rank = %d, want %d", got, DefaultRank)
	}
	if got := p.TypeRank("orderflow"); got != DefaultRank {
		t.Fatalf("unknown type rank = %d, want %d", got, DefaultRank)
	}

	known := sig(100, models.SideBuy, models.LevelActivity, models.TypeKGod, 10, 0.15)
	unknown := sig(100, models.SideBuy, "EXPERIMENTAL", "orderflow", 99, 0.15)
	if !p.SortKey(known).Less(p.SortKey(unknown)) {
		t.Fatalf("known categories must sort before unknown ones")
	}
}

func TestCompare(t *testing.T) {
	p := DefaultPriorityConfig()
	a := sig(100, models.SideBuy, models.LevelCritical, models.TypeLiquidation, 90, 0.15)
	b := sig(100, models.SideSell, models.LevelWarning, models.TypeIceberg, 40, 0.15)
	if p.Compare(a, b) != -1 {
		t.Fatalf("Compare(a,b) = %d, want -1", p.Compare(a, b))
	}
	if p.Compare(b, a) != 1 {
		t.Fatalf("Compare(b,a) = %d, want 1", p.Compare(b, a))
	}
	c := sig(100, models.SideSell, models.LevelCritical, models.TypeLiquidation, 10, 0.20)
	if p.Compare(a, c) != 0 {
		t.Fatalf("Compare(a,c) = %d, want 0", p.Compare(a, c))
	}
}

func TestSortIsStableForEqualKeys(t *testing.T) {
	p := DefaultPriorityConfig()
	first := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15)
	second := sig(100, models.SideSell, models.LevelConfirmed, models.TypeWhale, 80, 0.16)
	events := []*models.SignalEvent{first, second}
	p.Sort(events)
	if events[0] != first || events[1] != second {
		t.Fatalf("equal sort keys must keep arrival order")
	}
}

func TestCustomRankTables(t *testing.T) {
	p := NewPriorityConfig(nil, map[models.SignalType]int{models.TypeKGod: 1, models.TypeLiquidation: 4})
	kgod := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeKGod, 50, 0.15)
	liq := sig(100, models.SideBuy, models.LevelConfirmed, models.TypeLiquidation, 50, 0.15)
	if !p.SortKey(kgod).Less(p.SortKey(liq)) {
		t.Fatalf("injected rank table must override the default ordering")
	}
}
