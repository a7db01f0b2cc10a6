package usecase

import (
	"context"
	"testing"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/service/store"
	"FlowRadar/internal/services/fusion"
)

type nopMetrics struct{}

func (nopMetrics) RecordIngested(string, string)        {}
func (nopMetrics) RecordRejected(string)                {}
func (nopMetrics) RecordReplaced(string)                {}
func (nopMetrics) RecordSuppressed(string)              {}
func (nopMetrics) RecordEvicted()                       {}
func (nopMetrics) RecordIndexResync()                   {}
func (nopMetrics) RecordStoreSize(int)                  {}
func (nopMetrics) RecordConflict(string)                {}
func (nopMetrics) RecordAdvice(string, string)          {}
func (nopMetrics) RecordPublished(string)               {}
func (nopMetrics) RecordThrottled(string)               {}
func (nopMetrics) RecordPipelineLatency(string, float64) {}
func (nopMetrics) RecordError(string)                   {}

type capturePublisher struct {
	results []*models.PipelineResult
}

func (p *capturePublisher) Publish(_ context.Context, r *models.PipelineResult) error {
	p.results = append(p.results, r)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type fixedThrottle struct{ allow bool }

func (t fixedThrottle) Allow(context.Context, string, models.Advice) (bool, error) {
	return t.allow, nil
}

func newTestPipeline(manager *store.Manager, opts ...PipelineOption) *FusionPipeline {
	priority := fusion.DefaultPriorityConfig()
	return NewFusionPipeline(
		manager,
		fusion.NewEngine(fusion.CorrelationConfig{}),
		fusion.NewModifier(fusion.ModifierConfig{}),
		fusion.NewResolver(fusion.ResolverConfig{}, priority),
		fusion.NewAdvisor(fusion.AdvisorConfig{}),
		priority,
		nopMetrics{},
		nil,
		opts...,
	)
}

func addSignal(t *testing.T, m *store.Manager, ts float64, side models.SignalSide, level models.SignalLevel, typ models.SignalType, conf, price float64) {
	t.Helper()
	ev := models.NewSignalEvent(ts, "DOGE/USDT", side, level, typ, conf, price, models.PriceBucket(price))
	if err := m.Add(ev); err != nil {
		t.Fatalf("add signal: %v", err)
	}
}

func TestRunSymbolResonantBundleIsStrongBuy(t *testing.T) {
	// three corroborating BUY signals in one window and price band
	m := store.NewManager()
	addSignal(t, m, 1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15000)
	addSignal(t, m, 1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15003)
	addSignal(t, m, 1100, models.SideBuy, models.LevelCritical, models.TypeLiquidation, 62, 0.15008)

	pub := &capturePublisher{}
	p := newTestPipeline(m, WithPublishers(pub))
	res, err := p.RunSymbol(context.Background(), "DOGE/USDT")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Recommendation.Advice != models.AdviceStrongBuy {
		t.Fatalf("advice = %s, want STRONG_BUY", res.Recommendation.Advice)
	}
	for _, ev := range res.Signals {
		combo := false
		for _, mod := range ev.Modifiers {
			if mod.Source == fusion.SourceTypeCombo && mod.Delta == 30 {
				combo = true
			}
		}
		if !combo {
			t.Fatalf("%s missing the three-type combo bonus: %+v", ev.Key, ev.Modifiers)
		}
		if len(ev.RelatedSignals) != 2 {
			t.Fatalf("%s related to %d signals, want 2", ev.Key, len(ev.RelatedSignals))
		}
	}
	if len(pub.results) != 1 {
		t.Fatalf("published %d results, want 1", len(pub.results))
	}
	fstats, cstats := p.LastStats()
	if fstats.RelationsFound == 0 {
		t.Fatalf("fusion stats empty: %+v", fstats)
	}
	if cstats.ConflictsDetected != 0 {
		t.Fatalf("same-side batch detected conflicts: %+v", cstats)
	}
}

func TestRunSymbolConflictKeepsPenalizedLoser(t *testing.T) {
	// a CRITICAL liq SELL against a CONFIRMED iceberg BUY: liq wins on type
	// rank, the iceberg stays with a logged penalty
	m := store.NewManager()
	addSignal(t, m, 1000, models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 0.15000)
	addSignal(t, m, 1010, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 85, 0.15005)

	p := newTestPipeline(m)
	res, err := p.RunSymbol(context.Background(), "DOGE/USDT")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Signals) != 2 {
		t.Fatalf("loser was dropped: %d signals", len(res.Signals))
	}

	var iceberg *models.SignalEvent
	for _, ev := range res.Signals {
		if ev.Type == models.TypeIceberg {
			iceberg = ev
		}
	}
	if iceberg == nil {
		t.Fatalf("iceberg missing from result")
	}
	penalized := false
	for _, mod := range iceberg.Modifiers {
		if mod.Source == fusion.SourcePenalty {
			penalized = true
		}
	}
	if !penalized {
		t.Fatalf("iceberg not penalized: %+v", iceberg.Modifiers)
	}
	if res.Signals[0].Type != models.TypeLiquidation {
		t.Fatalf("ranked first = %s, want liq", res.Signals[0].Type)
	}
	if res.Recommendation.Advice != models.AdviceStrongSell {
		t.Fatalf("advice = %s, want STRONG_SELL", res.Recommendation.Advice)
	}
}

func TestRunSymbolDoesNotMutateStore(t *testing.T) {
	m := store.NewManager()
	addSignal(t, m, 1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15000)
	addSignal(t, m, 1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15003)

	p := newTestPipeline(m)
	if _, err := p.RunSymbol(context.Background(), "DOGE/USDT"); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, ev := range m.Snapshot("DOGE/USDT") {
		if len(ev.Modifiers) != 0 || len(ev.RelatedSignals) != 0 {
			t.Fatalf("pipeline pass mutated stored event %s", ev.Key)
		}
	}
}

func TestRunSymbolRepeatedPassesAgree(t *testing.T) {
	m := store.NewManager()
	addSignal(t, m, 1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15000)
	addSignal(t, m, 1050, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 60, 0.15003)

	p := newTestPipeline(m)
	first, err := p.RunSymbol(context.Background(), "DOGE/USDT")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	second, err := p.RunSymbol(context.Background(), "DOGE/USDT")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := range first.Signals {
		if first.Signals[i].Confidence != second.Signals[i].Confidence {
			t.Fatalf("pass results diverged: %v vs %v",
				first.Signals[i].Confidence, second.Signals[i].Confidence)
		}
	}
	if first.Recommendation.Advice != second.Recommendation.Advice {
		t.Fatalf("advice diverged: %s vs %s", first.Recommendation.Advice, second.Recommendation.Advice)
	}
}

func TestThrottleSuppressesPublish(t *testing.T) {
	m := store.NewManager()
	addSignal(t, m, 1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15)

	pub := &capturePublisher{}
	p := newTestPipeline(m, WithPublishers(pub), WithThrottle(fixedThrottle{allow: false}))
	if _, err := p.RunSymbol(context.Background(), "DOGE/USDT"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(pub.results) != 0 {
		t.Fatalf("throttled result was published")
	}
}

func TestRunAllCoversEverySymbol(t *testing.T) {
	m := store.NewManager()
	addSignal(t, m, 1000, models.SideBuy, models.LevelConfirmed, models.TypeIceberg, 55, 0.15)
	btc := models.NewSignalEvent(1000, "BTC/USDT", models.SideSell, models.LevelCritical, models.TypeLiquidation, 80, 61000, "market")
	if err := m.Add(btc); err != nil {
		t.Fatalf("add: %v", err)
	}

	p := newTestPipeline(m)
	results, err := p.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.Symbol] = true
	}
	if !seen["DOGE/USDT"] || !seen["BTC/USDT"] {
		t.Fatalf("missing symbol results: %v", seen)
	}
}
