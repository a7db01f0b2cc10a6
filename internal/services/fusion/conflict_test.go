package fusion

import (
	"testing"

	"FlowRadar/internal/domain/models"
)

func TestResolveTypeRankWinsOverLevel(t *testing.T) {
	// A CRITICAL liq SELL beats a CONFIRMED iceberg BUY on type rank alone.
	liq := sig(1000, models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 0.15000)
	ice := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 85, 0.15005)
	events := []*models.SignalEvent{liq, ice}
	rel := correlated(t, events...)

	stats := NewResolver(ResolverConfig{}, DefaultPriorityConfig()).Resolve(events, rel)
	if stats.ConflictsDetected != 1 || stats.ConflictsResolved != 1 {
		t.Fatalf("stats = %+v, want 1 detected, 1 resolved", stats)
	}
	if delta, ok := findModifier(ice, SourcePenalty); !ok || delta != -10 {
		t.Fatalf("loser penalty = %v (%v), want -10", delta, ok)
	}
	if ice.Confidence != 75 {
		t.Fatalf("loser confidence = %v, want 75", ice.Confidence)
	}
	if _, ok := findModifier(liq, SourcePenalty); ok {
		t.Fatalf("winner must not be penalized")
	}
	if len(events) != 2 {
		t.Fatalf("loser must stay in the batch")
	}
}

func TestResolveLevelBreaksTypeTie(t *testing.T) {
	crit := sig(1000, models.SideSell, models.LevelCritical, models.TypeWhale, 60, 0.15000)
	conf := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 90, 0.15004)
	events := []*models.SignalEvent{crit, conf}
	rel := correlated(t, events...)

	NewResolver(ResolverConfig{}, DefaultPriorityConfig()).Resolve(events, rel)
	if _, ok := findModifier(crit, SourcePenalty); ok {
		t.Fatalf("CRITICAL side must win a type tie")
	}
	if _, ok := findModifier(conf, SourcePenalty); !ok {
		t.Fatalf("CONFIRMED side must lose a type tie")
	}
}

func TestResolveConfidenceBreaksFullRankTie(t *testing.T) {
	hi := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 80, 0.15000)
	lo := sig(1010, models.SideSell, models.LevelConfirmed, models.TypeWhale, 70, 0.15004)
	events := []*models.SignalEvent{hi, lo}
	rel := correlated(t, events...)

	NewResolver(ResolverConfig{}, DefaultPriorityConfig()).Resolve(events, rel)
	if _, ok := findModifier(hi, SourcePenalty); ok {
		t.Fatalf("higher confidence must win")
	}
	if delta, ok := findModifier(lo, SourcePenalty); !ok || delta != -10 {
		t.Fatalf("lower confidence must take the penalty, got %v (%v)", delta, ok)
	}
}

func TestResolveFullTieKeepsAndPenalizesBoth(t *testing.T) {
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 75, 0.15000)
	b := sig(1010, models.SideSell, models.LevelConfirmed, models.TypeWhale, 75, 0.15004)
	events := []*models.SignalEvent{a, b}
	rel := correlated(t, events...)

	stats := NewResolver(ResolverConfig{}, DefaultPriorityConfig()).Resolve(events, rel)
	if stats.Unresolved != 1 || stats.ConflictsResolved != 0 {
		t.Fatalf("stats = %+v, want 1 unresolved", stats)
	}
	for _, ev := range events {
		if delta, ok := findModifier(ev, SourceUnresolved); !ok || delta != -10 {
			t.Fatalf("%s unresolved penalty = %v (%v), want -10", ev.Key, delta, ok)
		}
		if ev.Confidence != 65 {
			t.Fatalf("%s confidence = %v, want 65", ev.Key, ev.Confidence)
		}
		if flagged, _ := ev.Metadata["unresolved_conflict"].(bool); !flagged {
			t.Fatalf("%s missing unresolved flag", ev.Key)
		}
	}
}

func TestResolveConfigurablePenalties(t *testing.T) {
	liq := sig(1000, models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 0.15000)
	ice := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 85, 0.15005)
	events := []*models.SignalEvent{liq, ice}
	rel := correlated(t, events...)

	NewResolver(ResolverConfig{LoserPenalty: 25, UnresolvedPenalty: 5}, DefaultPriorityConfig()).Resolve(events, rel)
	if delta, ok := findModifier(ice, SourcePenalty); !ok || delta != -25 {
		t.Fatalf("configured penalty = %v (%v), want -25", delta, ok)
	}
}

func TestResolveNoConflictPassThrough(t *testing.T) {
	a := sig(1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 60, 0.15000)
	b := sig(1010, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.15004)
	events := []*models.SignalEvent{a, b}
	rel := correlated(t, events...)

	stats := NewResolver(ResolverConfig{}, DefaultPriorityConfig()).Resolve(events, rel)
	if stats.ConflictsDetected != 0 || stats.Penalized != 0 {
		t.Fatalf("same-side batch must pass through, stats = %+v", stats)
	}
	if len(a.Modifiers) != 0 || len(b.Modifiers) != 0 {
		t.Fatalf("no-conflict batch must be unchanged")
	}
}

func TestResolveTransitiveGrouping(t *testing.T) {
	// a(BUY) conflicts with b(SELL); b conflicts with c(BUY); all three form
	// one group, so c stands with a on the winning BUY side.
	a := sig(1000, models.SideBuy, models.LevelCritical, models.TypeLiquidation, 90, 0.15000)
	b := sig(1100, models.SideSell, models.LevelConfirmed, models.TypeWhale, 70, 0.15005)
	c := sig(1200, models.SideBuy, models.LevelActivity, models.TypeIceberg, 40, 0.15010)
	events := []*models.SignalEvent{a, b, c}
	rel := correlated(t, events...)

	stats := NewResolver(ResolverConfig{}, DefaultPriorityConfig()).Resolve(events, rel)
	if stats.ConflictsDetected != 1 {
		t.Fatalf("transitive group must count once, stats = %+v", stats)
	}
	if _, ok := findModifier(b, SourcePenalty); !ok {
		t.Fatalf("sell side must lose to the liq champion")
	}
	if _, ok := findModifier(a, SourcePenalty); ok {
		t.Fatalf("winning champion must not be penalized")
	}
	if _, ok := findModifier(c, SourcePenalty); ok {
		t.Fatalf("winning-side member must not be penalized")
	}
}
